package recall

import (
	"context"
	"sort"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/matrix"
	"github.com/rushteam/brewrec/pipeline"
	"github.com/rushteam/brewrec/pkg/utils"
)

// Policy 是基于物品相似度的候选选择策略。
type Policy string

const (
	// PolicyGlobal 每个种子取 PerSeed 个最相似物品，汇总后按相似度全局降序，
	// 依次去重、跳过种子，直到凑满 TopN 个。
	PolicyGlobal Policy = "global"

	// PolicyRoundRobin 按种子顺序，每个种子沿自己的相似度排名取 Quota 个
	// 尚未入选且不是种子的物品。结果顺序 = 种子顺序 + 排名顺序，不做全局重排。
	PolicyRoundRobin Policy = "round_robin"
)

// ParsePolicy 解析配置中的策略名，空串视为 PolicyGlobal。
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyGlobal:
		return PolicyGlobal, nil
	case PolicyRoundRobin:
		return PolicyRoundRobin, nil
	default:
		return "", core.InvalidInputError(core.ModuleRecommend, "recall: unknown content policy %q", s)
	}
}

// ContentRecall 是基于物品相似度矩阵的召回源（Item-Item / Content-Based）。
//
// Similarity 可以是评分列余弦相似度，也可以是隐因子相似度。
// 物品自身永远不会出现在自己的近邻列表里。
// Item.Score 为与来源种子的相似度；RoundRobin 策略的结果顺序本身有意义，后续不要再按分数重排。
type ContentRecall struct {
	Similarity *matrix.SimilarityMatrix

	// Utility 仅用于已有用户的种子解析（可选）
	Utility *matrix.UtilityMatrix

	Policy Policy

	// PerSeed 全局策略下每个种子取的相似物品数（默认 10）
	PerSeed int

	// Quota 轮询策略下每个种子贡献的物品数（默认 2）
	Quota int

	// TopN 全局策略凑满的物品数（默认 10）
	TopN int

	// Label 写入 recall_source 的值，默认 content
	Label string

	Config core.RecommendConfig
}

func (r *ContentRecall) Name() string        { return "recall.content" }
func (r *ContentRecall) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall
func (r *ContentRecall) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *ContentRecall) Recall(
	_ context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Similarity == nil {
		return nil, core.InvalidInputError(core.ModuleRecommend, "recall: content recall has no similarity matrix")
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

	cfg := r.Config
	if cfg == nil {
		cfg = &core.DefaultRecommendConfig{}
	}

	var picked []matrix.Neighbor
	var origins []string
	switch r.Policy {
	case PolicyRoundRobin:
		quota := r.Quota
		if quota <= 0 {
			quota = cfg.DefaultPerSeedQuota()
		}
		picked, origins, err = selectRoundRobin(r.Similarity.Neighbors, seeds, quota)
	case "", PolicyGlobal:
		perSeed := r.PerSeed
		if perSeed <= 0 {
			perSeed = cfg.DefaultPerSeedCandidates()
		}
		topN := r.TopN
		if topN <= 0 {
			topN = cfg.DefaultTopN()
		}
		picked, origins, err = selectGlobal(r.Similarity.Neighbors, seeds, perSeed, topN)
	default:
		return nil, core.InvalidInputError(core.ModuleRecommend, "recall: unknown content policy %q", r.Policy)
	}
	if err != nil {
		return nil, err
	}

	label := r.Label
	if label == "" {
		label = "content"
	}
	return neighborItems(picked, origins, label), nil
}

// neighborLookup 返回 id 的相似物品（按相似度降序），n <= 0 表示全部。
type neighborLookup func(id string, n int) ([]matrix.Neighbor, error)

func neighborItems(picked []matrix.Neighbor, origins []string, label string) []*core.Item {
	out := make([]*core.Item, 0, len(picked))
	for i, nb := range picked {
		it := core.NewScoredItem(nb.ID, nb.Score)
		it.Meta["seed"] = origins[i]
		it.Meta["rank"] = i + 1
		it.PutLabel("recall_source", utils.Label{Value: label, Source: "recall"})
		out = append(out, it)
	}
	return out
}

func selectGlobal(lookup neighborLookup, seeds []string, perSeed, topN int) ([]matrix.Neighbor, []string, error) {
	type candidate struct {
		matrix.Neighbor
		seed string
	}
	pool := make([]candidate, 0, len(seeds)*perSeed)
	for _, s := range seeds {
		nbs, err := lookup(s, perSeed)
		if err != nil {
			return nil, nil, err
		}
		for _, nb := range nbs {
			pool = append(pool, candidate{Neighbor: nb, seed: s})
		}
	}
	sort.SliceStable(pool, func(a, b int) bool {
		return pool[a].Score > pool[b].Score
	})

	seedSet := toSet(seeds)
	chosen := make(map[string]struct{}, topN)
	var picked []matrix.Neighbor
	var origins []string
	for _, c := range pool {
		if len(picked) == topN {
			break
		}
		if _, ok := seedSet[c.ID]; ok {
			continue
		}
		if _, ok := chosen[c.ID]; ok {
			continue
		}
		chosen[c.ID] = struct{}{}
		picked = append(picked, c.Neighbor)
		origins = append(origins, c.seed)
	}
	return picked, origins, nil
}

func selectRoundRobin(lookup neighborLookup, seeds []string, quota int) ([]matrix.Neighbor, []string, error) {
	seedSet := toSet(seeds)
	chosen := make(map[string]struct{}, len(seeds)*quota)
	var picked []matrix.Neighbor
	var origins []string
	for _, s := range seeds {
		nbs, err := lookup(s, 0)
		if err != nil {
			return nil, nil, err
		}
		count := 0
		for _, nb := range nbs {
			if count == quota {
				break
			}
			if _, ok := seedSet[nb.ID]; ok {
				continue
			}
			if _, ok := chosen[nb.ID]; ok {
				continue
			}
			chosen[nb.ID] = struct{}{}
			picked = append(picked, nb)
			origins = append(origins, s)
			count++
		}
	}
	return picked, origins, nil
}
