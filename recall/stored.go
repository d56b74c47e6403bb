package recall

import (
	"context"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/matrix"
	"github.com/rushteam/brewrec/pipeline"
)

// NeighborStore 读取预先发布的相似物品列表（按相似度降序），n <= 0 表示全部。
// store.SnapshotStore 实现了该接口。
type NeighborStore interface {
	Neighbors(ctx context.Context, item string, n int) ([]matrix.Neighbor, error)
}

// StoredNeighbors 是基于已发布相似物品列表的内容召回源，
// 不需要在进程内持有完整的相似度矩阵，适合多个进程共享 Redis 中的同一份快照。
//
// 选择策略与 ContentRecall 相同；轮询策略只能走到已发布列表的末尾，
// 发布的列表过短时结果可能不足 Quota*5 个。分数相同的物品按存储的顺序排列。
type StoredNeighbors struct {
	Store NeighborStore

	// Utility 仅用于已有用户的种子解析（可选）
	Utility *matrix.UtilityMatrix

	Policy  Policy
	PerSeed int
	Quota   int
	TopN    int

	Config core.RecommendConfig
}

func (r *StoredNeighbors) Name() string        { return "recall.stored" }
func (r *StoredNeighbors) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall
func (r *StoredNeighbors) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *StoredNeighbors) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Store == nil {
		return nil, core.InvalidInputError(core.ModuleRecommend, "recall: stored neighbors recall has no store")
	}
	seeds, err := ResolveSeeds(r.Utility, rctx)
	if err != nil {
		return nil, err
	}
	lookup := func(id string, n int) ([]matrix.Neighbor, error) {
		nbs, err := r.Store.Neighbors(ctx, id, n)
		if err != nil {
			return nil, err
		}
		if len(nbs) == 0 {
			return nil, core.InvalidInputError(core.ModuleRecommend, "recall: no published neighbors for seed %q", id)
		}
		return nbs, nil
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
		picked, origins, err = selectRoundRobin(lookup, seeds, quota)
	case "", PolicyGlobal:
		perSeed := r.PerSeed
		if perSeed <= 0 {
			perSeed = cfg.DefaultPerSeedCandidates()
		}
		topN := r.TopN
		if topN <= 0 {
			topN = cfg.DefaultTopN()
		}
		picked, origins, err = selectGlobal(lookup, seeds, perSeed, topN)
	default:
		return nil, core.InvalidInputError(core.ModuleRecommend, "recall: unknown content policy %q", r.Policy)
	}
	if err != nil {
		return nil, err
	}
	return neighborItems(picked, origins, "stored"), nil
}
