package recall

import (
	"context"
	"math"
	"sort"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/matrix"
	"github.com/rushteam/brewrec/pipeline"
	"github.com/rushteam/brewrec/pkg/utils"
	"github.com/rushteam/brewrec/similarity"
)

// UserBasedCF 是基于用户的协同过滤召回源（User-User CF）。
//
// 算法流程：
//  1. 确定 5 个种子物品（显式给出，或取已有用户评分最高的 5 个）
//  2. 在效用矩阵的私有副本上注入查询用户：种子物品评 QueryRating 分，其余为 0
//  3. 每个真实用户与查询用户在种子列上计算余弦相似度；查询用户自身相似度为 -Inf，永不成为近邻
//  4. 用户按相似度降序排列（稳定排序）
//  5. 对每个非种子物品，取排名靠前且评过该物品（评分≠0）的 Neighbors 个用户，
//     预测分 = mean(rating_u * sim_u)；没有任何近邻评过时预测分为 NaN
//
// 返回所有非种子物品及其预测分，排序与截断交给后续 rank / rerank 节点。
type UserBasedCF struct {
	Utility *matrix.UtilityMatrix

	// Neighbors 每个物品参与加权的近邻用户数（默认 10）
	Neighbors int

	// QueryRating 注入查询用户时种子物品的评分（默认 5）
	QueryRating float64

	// Config 提供默认值，为空时使用 core.DefaultRecommendConfig
	Config core.RecommendConfig
}

func (r *UserBasedCF) Name() string        { return "recall.user_cf" }
func (r *UserBasedCF) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall
func (r *UserBasedCF) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *UserBasedCF) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Utility == nil {
		return nil, core.InvalidInputError(core.ModuleRecommend, "recall: user_cf has no utility matrix")
	}
	seeds, err := ResolveSeeds(r.Utility, rctx)
	if err != nil {
		return nil, err
	}

	cfg := r.Config
	if cfg == nil {
		cfg = &core.DefaultRecommendConfig{}
	}
	neighbors := r.Neighbors
	if neighbors <= 0 {
		neighbors = cfg.DefaultNeighbors()
	}
	rating := r.QueryRating
	if rating <= 0 {
		rating = cfg.DefaultQueryRating()
	}

	q, err := r.Utility.WithQueryUser(seeds, rating)
	if err != nil {
		return nil, err
	}

	// 用户相似度
	type userSimilarity struct {
		row int
		sim float64
	}
	rows, cols := q.Dims()
	seedIdx := q.SeedIndex()
	query := q.QueryRow()
	ranked := make([]userSimilarity, 0, rows)
	userRows := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		if q.IsQueryRow(i) {
			ranked = append(ranked, userSimilarity{row: i, sim: math.Inf(-1)})
			continue
		}
		userRows[i] = q.RowView(i)
		ranked = append(ranked, userSimilarity{row: i, sim: similarity.CosineOn(userRows[i], query, seedIdx)})
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].sim > ranked[b].sim
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	isSeed := make(map[int]struct{}, len(seedIdx))
	for _, j := range seedIdx {
		isSeed[j] = struct{}{}
	}

	itemIDs := r.Utility.Items()
	out := make([]*core.Item, 0, cols-len(seedIdx))
	for j := 0; j < cols; j++ {
		if _, ok := isSeed[j]; ok {
			continue
		}
		var sum float64
		var used int
		for _, us := range ranked {
			if used == neighbors {
				break
			}
			if q.IsQueryRow(us.row) {
				continue
			}
			v := userRows[us.row][j]
			if v == 0 {
				continue
			}
			sum += v * us.sim
			used++
		}
		score := math.NaN()
		if used > 0 {
			score = sum / float64(used)
		}
		it := core.NewScoredItem(itemIDs[j], score)
		it.Meta["neighbors"] = used
		it.PutLabel("recall_source", utils.Label{Value: "user_cf", Source: "recall"})
		out = append(out, it)
	}
	return out, nil
}

// ItemBasedCF 是加权的物品协同过滤召回源。
//
// 预测分 = mean_rating(item) * Σ_j sim(item, seed_j)
//
// mean_rating 优先取 ItemMeans（评分日志按物品分组的均值），缺失时取效用矩阵中该物品非零评分的均值；
// 两者都没有时预测分为 NaN。Similarity 可以是直接观测的相似度矩阵，也可以是隐因子相似度矩阵。
type ItemBasedCF struct {
	Utility    *matrix.UtilityMatrix
	Similarity *matrix.SimilarityMatrix

	// ItemMeans 物品平均评分（可选）
	ItemMeans map[string]float64

	// Label 写入 recall_source 的值，默认 item_cf
	Label string
}

func (r *ItemBasedCF) Name() string        { return "recall.item_cf" }
func (r *ItemBasedCF) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall
func (r *ItemBasedCF) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *ItemBasedCF) Recall(
	_ context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Similarity == nil {
		return nil, core.InvalidInputError(core.ModuleRecommend, "recall: item_cf has no similarity matrix")
	}
	seeds, err := ResolveSeeds(r.Utility, rctx)
	if err != nil {
		return nil, err
	}
	for _, s := range seeds {
		if !r.Similarity.Has(s) {
			return nil, core.InvalidInputError(core.ModuleRecommend, "recall: seed item %q missing from similarity matrix", s)
		}
	}

	var candidates []string
	if r.Utility != nil {
		rest, err := r.Utility.DropColumns(seeds...)
		if err != nil {
			return nil, err
		}
		candidates = rest.Items()
	} else {
		seedSet := toSet(seeds)
		for _, id := range r.Similarity.IDs() {
			if _, ok := seedSet[id]; !ok {
				candidates = append(candidates, id)
			}
		}
	}

	label := r.Label
	if label == "" {
		label = "item_cf"
	}

	out := make([]*core.Item, 0, len(candidates))
	for _, id := range candidates {
		score := math.NaN()
		if mean, ok := r.itemMean(id); ok && r.Similarity.Has(id) {
			var simSum float64
			for _, s := range seeds {
				v, _ := r.Similarity.Score(id, s)
				simSum += v
			}
			score = mean * simSum
		}
		it := core.NewScoredItem(id, score)
		it.PutLabel("recall_source", utils.Label{Value: label, Source: "recall"})
		out = append(out, it)
	}
	return out, nil
}

func (r *ItemBasedCF) itemMean(id string) (float64, bool) {
	if m, ok := r.ItemMeans[id]; ok {
		return m, true
	}
	if r.Utility != nil {
		return r.Utility.ItemMean(id)
	}
	return 0, false
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
