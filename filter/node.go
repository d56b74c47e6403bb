package filter

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/pipeline"
)

// FilterNode 是过滤 Node，可以组合多个过滤器进行过滤。
// 如果任何一个过滤器返回 true，该物品就会被过滤掉；保留的物品保持原顺序。
type FilterNode struct {
	Filters []Filter

	// Strict 为 true 时过滤器出错直接中断；否则记录日志后跳过该过滤器
	Strict bool

	Logger zerolog.Logger
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	filters, err := n.prepare(ctx, rctx)
	if err != nil {
		return nil, err
	}

	out := make([]*core.Item, 0, len(items))
	filtered := make(map[string]int)

	for _, item := range items {
		if item == nil {
			continue
		}

		reason := ""
		for _, f := range filters {
			ok, err := f.ShouldFilter(ctx, rctx, item)
			if err != nil {
				if n.Strict {
					return nil, err
				}
				n.Logger.Warn().Err(err).Str("filter", f.Name()).Str("item", item.ID).Msg("filter failed, skipped")
				continue
			}
			if ok {
				reason = f.Name()
				break
			}
		}

		if reason != "" {
			filtered[reason]++
			continue
		}
		out = append(out, item)
	}

	if len(filtered) > 0 {
		ev := n.Logger.Debug()
		for name, c := range filtered {
			ev = ev.Int(name, c)
		}
		ev.Msg("items filtered")
	}
	return out, nil
}

// prepare 为实现了 Preparer 的过滤器加载本次请求的数据。
// 非 Strict 模式下加载失败的过滤器被跳过。
func (n *FilterNode) prepare(ctx context.Context, rctx *core.RecommendContext) ([]Filter, error) {
	filters := make([]Filter, 0, len(n.Filters))
	for _, f := range n.Filters {
		p, ok := f.(Preparer)
		if !ok {
			filters = append(filters, f)
			continue
		}
		prepared, err := p.Prepare(ctx, rctx)
		if err != nil {
			if n.Strict {
				return nil, err
			}
			n.Logger.Warn().Err(err).Str("filter", f.Name()).Msg("filter prepare failed, skipped")
			continue
		}
		filters = append(filters, prepared)
	}
	return filters, nil
}
