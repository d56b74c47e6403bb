// Package pipeline 把一个推荐策略表示成顺序执行的 Node 链，并支持从 YAML/JSON 组装。
package pipeline

import (
	"context"

	"github.com/rushteam/brewrec/core"
)

// Kind 标记节点所处的阶段，用于日志。
type Kind string

const (
	KindSeed        Kind = "seed"   // 确定本次请求的 5 个种子物品
	KindRecall      Kind = "recall" // 生成候选并打分
	KindFilter      Kind = "filter"
	KindRank        Kind = "rank"
	KindReRank      Kind = "rerank" // TopN 截断、风格打散
	KindPostProcess Kind = "postprocess"
)

// Node 接收上一阶段的候选并返回新的候选。
// 召回节点忽略输入；过滤与重排节点保持未被剔除候选的相对顺序。
type Node interface {
	Name() string
	Kind() Kind
	Process(ctx context.Context, rctx *core.RecommendContext, items []*core.Item) ([]*core.Item, error)
}

// NodeBuilder 由节点配置构建 Node。
type NodeBuilder func(config map[string]interface{}) (Node, error)

// Func 把一个函数包装成 Node。
type Func struct {
	NodeName string
	NodeKind Kind
	Fn       func(ctx context.Context, rctx *core.RecommendContext, items []*core.Item) ([]*core.Item, error)
}

func (f Func) Name() string { return f.NodeName }
func (f Func) Kind() Kind   { return f.NodeKind }

func (f Func) Process(ctx context.Context, rctx *core.RecommendContext, items []*core.Item) ([]*core.Item, error) {
	return f.Fn(ctx, rctx, items)
}
