package matrix

import "strings"

// SearchItems 按关键字（不区分大小写的子串匹配）查找物品，按列顺序返回。
// 关键字为空时返回 nil。
func (u *UtilityMatrix) SearchItems(keyword string) []string {
	keyword = strings.TrimSpace(strings.ToLower(keyword))
	if keyword == "" {
		return nil
	}
	var out []string
	for _, id := range u.items {
		if strings.Contains(strings.ToLower(id), keyword) {
			out = append(out, id)
		}
	}
	return out
}
