// Package rank 提供按预测分排序的节点。
package rank

import (
	"context"
	"sort"
	"strconv"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/pipeline"
	"github.com/rushteam/brewrec/pkg/utils"
)

// ScoreSortNode 按 item.Score 降序稳定排序；NaN（预测值未定义）排在最后，
// 分数相同保持召回顺序。
type ScoreSortNode struct{}

func (n *ScoreSortNode) Name() string        { return "rank.sort" }
func (n *ScoreSortNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *ScoreSortNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	SortByScore(items)
	for i, it := range items {
		if it == nil {
			continue
		}
		it.PutLabel("rank_position", utils.Label{Value: strconv.Itoa(i + 1), Source: "rank"})
	}
	return items, nil
}

// SortByScore 原地排序，规则同 ScoreSortNode。
func SortByScore(items []*core.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		if !a.HasScore() {
			return false
		}
		if !b.HasScore() {
			return true
		}
		return a.Score > b.Score
	})
}
