package filter

import (
	"context"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/pkg/dsl"
)

// ExprFilter 用 CEL 表达式过滤物品：表达式为 true 的物品被过滤掉。
// 例如 `item.score < 0.1` 去掉与种子几乎不相似的候选。
type ExprFilter struct {
	program *dsl.Program
}

// NewExprFilter 编译表达式并创建过滤器。
func NewExprFilter(expr string) (*ExprFilter, error) {
	p, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{program: p}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

func (f *ExprFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	return f.program.Eval(item, rctx)
}
