package filter

import (
	"context"

	"github.com/rushteam/brewrec/core"
)

// SeedFilter 过滤掉本次请求的种子物品，保证推荐结果与种子不相交。
type SeedFilter struct{}

func (f *SeedFilter) Name() string {
	return "filter.seed"
}

func (f *SeedFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	return rctx.IsSeed(item.ID), nil
}
