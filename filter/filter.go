// Package filter 提供候选过滤：种子、已评分、黑名单与 CEL 表达式。
package filter

import (
	"context"

	"github.com/rushteam/brewrec/core"
)

// Filter 判断候选是否应被剔除，返回 true 表示剔除。
type Filter interface {
	Name() string
	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}

// Preparer 由需要按请求加载数据的过滤器实现。
// FilterNode 在每次 Process 开始时调用一次 Prepare，本次请求内改用返回的过滤器。
type Preparer interface {
	Prepare(ctx context.Context, rctx *core.RecommendContext) (Filter, error)
}

// setFilter 剔除集合内的物品。
type setFilter struct {
	name string
	ids  map[string]struct{}
}

func (f *setFilter) Name() string { return f.name }

func (f *setFilter) ShouldFilter(_ context.Context, _ *core.RecommendContext, item *core.Item) (bool, error) {
	if item == nil {
		return true, nil
	}
	_, ok := f.ids[item.ID]
	return ok, nil
}
