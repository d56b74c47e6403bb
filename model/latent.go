package model

import "sort"

// StyleCount 是某个隐因子分组内一个类别及其物品数。
type StyleCount struct {
	Style string `json:"style"`
	Count int    `json:"count"`
}

// TopStylesPerFeature 把每个物品归入载荷最大的隐因子，
// 再统计每个隐因子分组内出现最多的 n 个类别（按数量降序，数量相同按类别名升序）。
// 没有类别的物品不参与统计；没有任何物品的隐因子返回空切片。
func TopStylesPerFeature(f *Factors, categories map[string]string, n int) map[int][]StyleCount {
	k := f.Features()
	counts := make([]map[string]int, k)
	for i := range counts {
		counts[i] = make(map[string]int)
	}

	for _, item := range f.items {
		style, ok := categories[item]
		if !ok || style == "" {
			continue
		}
		feature, _ := f.DominantFeature(item)
		counts[feature][style]++
	}

	out := make(map[int][]StyleCount, k)
	for feature, m := range counts {
		styles := make([]StyleCount, 0, len(m))
		for style, c := range m {
			styles = append(styles, StyleCount{Style: style, Count: c})
		}
		sort.Slice(styles, func(a, b int) bool {
			if styles[a].Count != styles[b].Count {
				return styles[a].Count > styles[b].Count
			}
			return styles[a].Style < styles[b].Style
		})
		if n > 0 && len(styles) > n {
			styles = styles[:n]
		}
		out[feature] = styles
	}
	return out
}
