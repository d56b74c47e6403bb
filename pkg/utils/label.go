// Package utils 提供推荐链路上的 Label 类型。
package utils

import "strings"

// Label 记录物品或请求在链路中的来历，例如 recall_source=user_cf、rank_position=3。
// Value 与 Source 都是自由文本，同名 Label 按 MergeLabel 累积。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // seed / recall / rank / rerank ...
}

// MergeLabel 合并同名 Label：
//   - Value 以 '|' 累积，已经出现过的值不重复追加
//   - Source 以 ',' 累积，规则同上
func MergeLabel(existing Label, incoming Label) Label {
	return Label{
		Value:  appendPart(existing.Value, incoming.Value, "|"),
		Source: appendPart(existing.Source, incoming.Source, ","),
	}
}

func appendPart(acc, part, sep string) string {
	switch {
	case part == "":
		return acc
	case acc == "":
		return part
	}
	for _, p := range strings.Split(acc, sep) {
		if p == part {
			return acc
		}
	}
	return acc + sep + part
}
