package rerank

import (
	"context"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/pipeline"
	"github.com/rushteam/brewrec/pkg/utils"
)

// Diversity 按啤酒风格打散：每种风格最多保留 MaxPerStyle 个排在前面的物品。
//
// 风格取 Styles[item.ID]，没有时取 label "style"；两者都没有的物品总是保留。
// Backfill 为 true 时超出配额的物品按原顺序接在末尾，而不是丢弃，
// 这样后面的 Strict TopN 不会因为打散而数据不足。
type Diversity struct {
	Styles      map[string]string
	MaxPerStyle int // 默认 1
	Backfill    bool
}

func (n *Diversity) Name() string        { return "rerank.diversity" }
func (n *Diversity) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *Diversity) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}
	limit := max(n.MaxPerStyle, 1)

	perStyle := make(map[string]int)
	kept := make([]*core.Item, 0, len(items))
	var overflow []*core.Item
	for _, it := range items {
		if it == nil {
			continue
		}
		style, ok := n.styleOf(it)
		switch {
		case !ok:
			kept = append(kept, it)
		case perStyle[style] < limit:
			perStyle[style]++
			kept = append(kept, it)
		default:
			overflow = append(overflow, it)
		}
	}
	if n.Backfill {
		kept = append(kept, overflow...)
	}
	return kept, nil
}

// styleOf 查找物品风格；来自 Styles 时顺带写入 style label 供解释。
func (n *Diversity) styleOf(it *core.Item) (string, bool) {
	if s := n.Styles[it.ID]; s != "" {
		it.PutLabel("style", utils.Label{Value: s, Source: "rerank"})
		return s, true
	}
	if lbl, ok := it.Labels["style"]; ok && lbl.Value != "" {
		return lbl.Value, true
	}
	return "", false
}
