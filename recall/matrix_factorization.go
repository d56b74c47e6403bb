package recall

import (
	"context"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/matrix"
	"github.com/rushteam/brewrec/model"
	"github.com/rushteam/brewrec/pipeline"
)

// MFRecall 是基于隐因子（NMF）的召回源。
//
// 核心思想：把效用矩阵分解为用户隐向量与物品隐向量，
// 在隐空间里计算物品余弦相似度，再按内容策略从种子出发选物品。
// 默认使用轮询策略（每个种子 2 个）。
//
// 首次调用时分解（由 model.Latent 缓存），分解是整个系统唯一的重计算，受 ctx 取消/超时约束。
type MFRecall struct {
	Latent *model.Latent

	// Utility 仅用于已有用户的种子解析（可选）
	Utility *matrix.UtilityMatrix

	// Policy 为空时使用 PolicyRoundRobin
	Policy Policy

	PerSeed int
	Quota   int
	TopN    int

	Config core.RecommendConfig
}

func (r *MFRecall) Name() string        { return "recall.latent" }
func (r *MFRecall) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall
func (r *MFRecall) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *MFRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Latent == nil {
		return nil, core.InvalidInputError(core.ModuleRecommend, "recall: latent recall has no factors")
	}
	// 先校验种子，避免无效请求触发分解
	if _, err := ResolveSeeds(r.Utility, rctx); err != nil {
		return nil, err
	}
	sim, err := r.Latent.ItemSimilarity(ctx)
	if err != nil {
		return nil, err
	}

	policy := r.Policy
	if policy == "" {
		policy = PolicyRoundRobin
	}
	content := &ContentRecall{
		Similarity: sim,
		Utility:    r.Utility,
		Policy:     policy,
		PerSeed:    r.PerSeed,
		Quota:      r.Quota,
		TopN:       r.TopN,
		Label:      "latent",
		Config:     r.Config,
	}
	return content.Recall(ctx, rctx)
}

// LatentItemCF 是使用隐空间物品相似度的加权物品协同过滤，
// 打分规则同 ItemBasedCF：mean_rating(item) * Σ sim_latent(item, seed)。
type LatentItemCF struct {
	Latent  *model.Latent
	Utility *matrix.UtilityMatrix

	ItemMeans map[string]float64
}

func (r *LatentItemCF) Name() string        { return "recall.latent_item_cf" }
func (r *LatentItemCF) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall
func (r *LatentItemCF) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *LatentItemCF) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Latent == nil {
		return nil, core.InvalidInputError(core.ModuleRecommend, "recall: latent item_cf has no factors")
	}
	if _, err := ResolveSeeds(r.Utility, rctx); err != nil {
		return nil, err
	}
	sim, err := r.Latent.ItemSimilarity(ctx)
	if err != nil {
		return nil, err
	}
	cf := &ItemBasedCF{
		Utility:    r.Utility,
		Similarity: sim,
		ItemMeans:  r.ItemMeans,
		Label:      "latent_item_cf",
	}
	return cf.Recall(ctx, rctx)
}
