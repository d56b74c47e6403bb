package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/brewrec/core"
)

// Pipeline 顺序执行 Nodes，上一节点的输出是下一节点的输入。
// 内置策略的形态是：种子解析 → 召回打分 → 剔除种子 → 排序 → TopN。
//
// Pipeline 本身无状态，可以被多个请求并发 Run，前提是各节点只读共享数据。
type Pipeline struct {
	Nodes []Node

	// Logger 为空时不输出节点日志
	Logger *zerolog.Logger
}

// Run 在节点之间检查 ctx；节点错误会带上节点名返回。
func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		out, err := node.Process(ctx, rctx, items)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.Name(), err)
		}
		if p.Logger != nil {
			p.Logger.Debug().
				Str("node", node.Name()).
				Str("kind", string(node.Kind())).
				Int("in", len(items)).
				Int("out", len(out)).
				Dur("elapsed", time.Since(start)).
				Msg("node processed")
		}
		items = out
	}
	return items, nil
}
