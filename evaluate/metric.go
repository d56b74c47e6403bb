// Package evaluate 是离线评估：对已有用户跑一次推荐，
// 用该用户真实的评分历史给推荐结果打分。
package evaluate

import (
	"math"
	"sort"

	"github.com/rushteam/brewrec/core"
)

// Undefined 表示评估结果无定义（推荐结果与用户评分历史没有交集）。
var Undefined = math.NaN()

// IsUndefined 判断评估结果是否无定义。
func IsUndefined(score float64) bool { return math.IsNaN(score) }

// Metric 根据推荐结果与用户评分历史计算一个分数。
type Metric func(recs []string, history []core.Rating) float64

const (
	MetricPercentile = "percentile"
	MetricResidual   = "residual"
	// MetricCustom 是调用方自带 Metric 但没给名字时的指标标签
	MetricCustom = "custom"
)

// ParseMetric 按名字取评估指标。
func ParseMetric(name string) (Metric, error) {
	switch name {
	case MetricPercentile, "":
		return Percentile, nil
	case MetricResidual:
		return Residual, nil
	default:
		return nil, core.InvalidInputError(core.ModuleEvaluate, "evaluate: unknown metric %q", name)
	}
}

// Residual = 命中物品真实评分的均值 - 用户全部评分的均值。
// 为正说明推荐结果好于用户的平均口味。用户重复评过的物品按每条记录计入。
func Residual(recs []string, history []core.Rating) float64 {
	if len(history) == 0 {
		return Undefined
	}
	wanted := make(map[string]struct{}, len(recs))
	for _, id := range recs {
		wanted[id] = struct{}{}
	}

	var all, hit float64
	var hits int
	for _, r := range history {
		all += r.Value
		if _, ok := wanted[r.ItemID]; ok {
			hit += r.Value
			hits++
		}
	}
	if hits == 0 {
		return Undefined
	}
	return hit/float64(hits) - all/float64(len(history))
}

// Percentile 把用户的评分历史按评分升序（稳定）排列，
// 每个命中的推荐物品取 排名/总数（排名从 1 开始），求平均后乘 100。
// 同一物品在历史中出现多次时，每次出现都单独计入。
func Percentile(recs []string, history []core.Rating) float64 {
	if len(history) == 0 {
		return Undefined
	}
	sorted := append([]core.Rating(nil), history...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value < sorted[j].Value
	})

	positions := make(map[string][]int, len(sorted))
	for i, r := range sorted {
		positions[r.ItemID] = append(positions[r.ItemID], i+1)
	}

	n := float64(len(sorted))
	var sum float64
	var hits int
	for _, id := range recs {
		for _, rank := range positions[id] {
			sum += float64(rank) / n
			hits++
		}
	}
	if hits == 0 {
		return Undefined
	}
	return sum / float64(hits) * 100
}
