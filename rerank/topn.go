package rerank

import (
	"context"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/pipeline"
)

// TopNNode 是一个 Top-N 截断节点，用于在排序后截取前 N 个不重复的物品。
// 通常放在 Pipeline 最后。
//
// 示例：
//
//	pipeline := &pipeline.Pipeline{
//	    Nodes: []pipeline.Node{
//	        &recall.SeedNode{...},
//	        &recall.UserBasedCF{...},
//	        &filter.FilterNode{Filters: []filter.Filter{&filter.SeedFilter{}}},
//	        &rank.ScoreSortNode{},
//	        &rerank.TopNNode{N: 10, Strict: true},
//	    },
//	}
type TopNNode struct {
	// N 要保留的物品数量（Top N），N <= 0 时不截断
	N int

	// Strict 为 true 时，不重复物品不足 N 个返回 INSUFFICIENT_DATA，
	// 而不是返回一个更短的列表
	Strict bool
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.N <= 0 {
		return items, nil
	}

	out := make([]*core.Item, 0, n.N)
	seen := make(map[string]struct{}, n.N)
	for _, it := range items {
		if len(out) == n.N {
			break
		}
		if it == nil {
			continue
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}

	if n.Strict && len(out) < n.N {
		return nil, core.InsufficientDataError(core.ModuleRecommend, "rerank: only %d distinct candidates, need %d", len(out), n.N)
	}
	return out, nil
}
