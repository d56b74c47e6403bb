package core

import (
	"math"

	"github.com/rushteam/brewrec/pkg/utils"
)

// Item 是推荐链路中的统一承载结构：分数、元信息、标签。
// Labels 用于解释与策略驱动；Score 用于排序决策。
//
// Score 为 NaN 表示预测值未定义（例如没有任何近邻评过该物品），
// 排序阶段会把它放到最后。
type Item struct {
	ID     string
	Score  float64
	Meta   map[string]any
	Labels map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:     id,
		Score:  0,
		Meta:   make(map[string]any),
		Labels: make(map[string]utils.Label),
	}
}

// NewScoredItem 创建带分数的 Item。
func NewScoredItem(id string, score float64) *Item {
	it := NewItem(id)
	it.Score = score
	return it
}

// HasScore 返回预测分数是否有定义。
func (it *Item) HasScore() bool {
	return !math.IsNaN(it.Score)
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// ItemIDs 提取 items 的 ID 序列（保持顺序）。
func ItemIDs(items []*Item) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		ids = append(ids, it.ID)
	}
	return ids
}
