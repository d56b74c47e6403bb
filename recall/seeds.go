package recall

import (
	"context"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/matrix"
	"github.com/rushteam/brewrec/pipeline"
	"github.com/rushteam/brewrec/pkg/utils"
)

// ResolveSeeds 确定本次请求的种子物品并回写到 rctx.Seeds。
//
//   - 显式种子：校验数量为 matrix.SeedSize、无重复；提供了效用矩阵时还要求种子是矩阵的列
//   - 已有用户：取该用户评分最高的 5 个物品（分数相同按列顺序）
//
// 未知用户返回 INVALID_INPUT；用户评过分的物品不足 5 个返回 INSUFFICIENT_DATA。
func ResolveSeeds(u *matrix.UtilityMatrix, rctx *core.RecommendContext) ([]string, error) {
	if rctx == nil {
		return nil, core.InvalidInputError(core.ModuleRecommend, "recall: nil recommend context")
	}

	if len(rctx.Seeds) > 0 {
		if u != nil {
			if _, err := u.SeedIndex(rctx.Seeds); err != nil {
				return nil, err
			}
		} else if err := validateSeedSet(rctx.Seeds); err != nil {
			return nil, err
		}
		return append([]string(nil), rctx.Seeds...), nil
	}

	if rctx.UserID == "" {
		return nil, core.InvalidInputError(core.ModuleRecommend, "recall: request has neither seeds nor user")
	}
	if u == nil {
		return nil, core.InvalidInputError(core.ModuleRecommend, "recall: resolving seeds for user %q needs a utility matrix", rctx.UserID)
	}
	if !u.HasUser(rctx.UserID) {
		return nil, core.InvalidInputError(core.ModuleRecommend, "recall: unknown user %q", rctx.UserID)
	}
	rated, err := u.RatedCount(rctx.UserID)
	if err != nil {
		return nil, err
	}
	if rated < matrix.SeedSize {
		return nil, core.InsufficientDataError(core.ModuleRecommend, "recall: user %q rated %d items, need %d to form a seed", rctx.UserID, rated, matrix.SeedSize)
	}
	seeds, err := u.TopKByRating(rctx.UserID, matrix.SeedSize)
	if err != nil {
		return nil, err
	}
	rctx.Seeds = seeds
	return append([]string(nil), seeds...), nil
}

func validateSeedSet(seeds []string) error {
	if len(seeds) != matrix.SeedSize {
		return core.InvalidInputError(core.ModuleRecommend, "recall: need exactly %d seed items, got %d", matrix.SeedSize, len(seeds))
	}
	seen := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		if _, dup := seen[s]; dup {
			return core.InvalidInputError(core.ModuleRecommend, "recall: duplicate seed item %q", s)
		}
		seen[s] = struct{}{}
	}
	return nil
}

// SeedNode 是种子解析节点，放在 Pipeline 最前面，
// 之后的召回源与 SeedFilter 都读取 rctx.Seeds。
type SeedNode struct {
	Utility *matrix.UtilityMatrix
}

func (n *SeedNode) Name() string        { return "recall.seeds" }
func (n *SeedNode) Kind() pipeline.Kind { return pipeline.KindSeed }

func (n *SeedNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	fromUser := rctx != nil && len(rctx.Seeds) == 0
	if _, err := ResolveSeeds(n.Utility, rctx); err != nil {
		return nil, err
	}
	if fromUser {
		rctx.PutLabel("seed_source", utils.Label{Value: "top_rated", Source: "seed"})
	} else {
		rctx.PutLabel("seed_source", utils.Label{Value: "explicit", Source: "seed"})
	}
	return items, nil
}
