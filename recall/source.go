// Package recall 生成候选：种子解析、User-CF、Item-CF、内容相似、隐因子与多路召回。
package recall

import (
	"context"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/pipeline"
)

// Source 是召回源：返回带预测分的候选，尚未剔除种子、排序或截断。
// Fanout 并发调用多个 Source 并合并结果。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

// SourceNode 是可以直接挂在 Pipeline 上的召回源，Process 忽略输入候选。
type SourceNode interface {
	Source
	pipeline.Node
}

var (
	_ SourceNode = (*UserBasedCF)(nil)
	_ SourceNode = (*ItemBasedCF)(nil)
	_ SourceNode = (*ContentRecall)(nil)
	_ SourceNode = (*MFRecall)(nil)
	_ SourceNode = (*LatentItemCF)(nil)
	_ SourceNode = (*StoredNeighbors)(nil)
	_ SourceNode = (*Fanout)(nil)
)
