package core

// Rating 是一条评分记录（用户、物品、评分、物品类别），由外部数据源提供，不可变。
type Rating struct {
	UserID   string  `json:"user_id"`
	ItemID   string  `json:"item_id"`
	Value    float64 `json:"value"`
	Category string  `json:"category,omitempty"`
}

// RatingLog 是评分日志，保留原始顺序。
type RatingLog []Rating

// ByUser 返回某个用户的全部评分（保持日志顺序）。
func (l RatingLog) ByUser(userID string) []Rating {
	var out []Rating
	for _, r := range l {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

// HasUser 判断日志中是否存在该用户。
func (l RatingLog) HasUser(userID string) bool {
	for _, r := range l {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// Users 返回日志中出现过的用户（按首次出现顺序去重）。
func (l RatingLog) Users() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range l {
		if _, ok := seen[r.UserID]; ok {
			continue
		}
		seen[r.UserID] = struct{}{}
		out = append(out, r.UserID)
	}
	return out
}

// UserMean 返回用户全部评分的均值；用户不存在时 ok 为 false。
func (l RatingLog) UserMean(userID string) (mean float64, ok bool) {
	var sum float64
	var n int
	for _, r := range l {
		if r.UserID == userID {
			sum += r.Value
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// ItemMeans 按物品分组求评分均值。
func (l RatingLog) ItemMeans() map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range l {
		sums[r.ItemID] += r.Value
		counts[r.ItemID]++
	}
	out := make(map[string]float64, len(sums))
	for id, s := range sums {
		out[id] = s / float64(counts[id])
	}
	return out
}

// Categories 返回物品到类别的映射，同一物品取首次出现的类别。
func (l RatingLog) Categories() map[string]string {
	out := make(map[string]string)
	for _, r := range l {
		if r.Category == "" {
			continue
		}
		if _, ok := out[r.ItemID]; !ok {
			out[r.ItemID] = r.Category
		}
	}
	return out
}
