// Package matrix 管理用户×物品效用矩阵与物品×物品相似度矩阵。
//
// 矩阵在构造完成后只读：所有“修改”操作（注入查询用户、删除列）都返回新实例，
// 调用方持有的矩阵不会被改动，可以安全地在并发请求之间共享。
// ID 到行列下标的映射在构造时一次性解析。
package matrix

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/brewrec/core"
)

// SeedSize 是一次推荐请求的种子物品数量。
const SeedSize = 5

// UtilityMatrix 是用户×物品评分矩阵，0 表示未评分。
type UtilityMatrix struct {
	users     []string
	items     []string
	userIndex map[string]int
	itemIndex map[string]int
	data      *mat.Dense
}

// NewUtilityMatrix 由行数据构造效用矩阵。rows[i] 是 users[i] 在 items 各列上的评分。
func NewUtilityMatrix(users, items []string, rows [][]float64) (*UtilityMatrix, error) {
	if len(users) == 0 || len(items) == 0 {
		return nil, core.InvalidInputError(core.ModuleMatrix, "matrix: utility matrix needs at least one user and one item")
	}
	if len(rows) != len(users) {
		return nil, core.InvalidInputError(core.ModuleMatrix, "matrix: got %d rows for %d users", len(rows), len(users))
	}
	userIndex, err := indexOf(users, "user")
	if err != nil {
		return nil, err
	}
	itemIndex, err := indexOf(items, "item")
	if err != nil {
		return nil, err
	}

	data := mat.NewDense(len(users), len(items), nil)
	for i, row := range rows {
		if len(row) != len(items) {
			return nil, core.InvalidInputError(core.ModuleMatrix, "matrix: row %q has %d values, want %d", users[i], len(row), len(items))
		}
		for j, v := range row {
			if v < 0 {
				return nil, core.InvalidInputError(core.ModuleMatrix, "matrix: negative rating %v for (%q, %q)", v, users[i], items[j])
			}
		}
		data.SetRow(i, row)
	}

	return &UtilityMatrix{
		users:     append([]string(nil), users...),
		items:     append([]string(nil), items...),
		userIndex: userIndex,
		itemIndex: itemIndex,
		data:      data,
	}, nil
}

// FromRatings 把评分日志透视为效用矩阵。用户、物品按首次出现顺序排列，
// 同一 (用户, 物品) 的重复评分取均值。
func FromRatings(log core.RatingLog) (*UtilityMatrix, error) {
	var users, items []string
	userIndex := make(map[string]int)
	itemIndex := make(map[string]int)
	for _, r := range log {
		if _, ok := userIndex[r.UserID]; !ok {
			userIndex[r.UserID] = len(users)
			users = append(users, r.UserID)
		}
		if _, ok := itemIndex[r.ItemID]; !ok {
			itemIndex[r.ItemID] = len(items)
			items = append(items, r.ItemID)
		}
	}

	rows := make([][]float64, len(users))
	counts := make([][]int, len(users))
	for i := range rows {
		rows[i] = make([]float64, len(items))
		counts[i] = make([]int, len(items))
	}
	for _, r := range log {
		i, j := userIndex[r.UserID], itemIndex[r.ItemID]
		rows[i][j] += r.Value
		counts[i][j]++
	}
	for i := range rows {
		for j := range rows[i] {
			if counts[i][j] > 1 {
				rows[i][j] /= float64(counts[i][j])
			}
		}
	}
	return NewUtilityMatrix(users, items, rows)
}

func indexOf(ids []string, kind string) (map[string]int, error) {
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, dup := index[id]; dup {
			return nil, core.InvalidInputError(core.ModuleMatrix, "matrix: duplicate %s id %q", kind, id)
		}
		index[id] = i
	}
	return index, nil
}

func (u *UtilityMatrix) Users() []string { return append([]string(nil), u.users...) }
func (u *UtilityMatrix) Items() []string { return append([]string(nil), u.items...) }
func (u *UtilityMatrix) NumUsers() int   { return len(u.users) }
func (u *UtilityMatrix) NumItems() int   { return len(u.items) }

// Dense 返回底层矩阵的只读视图。
func (u *UtilityMatrix) Dense() mat.Matrix { return u.data }

func (u *UtilityMatrix) HasUser(id string) bool {
	_, ok := u.userIndex[id]
	return ok
}

func (u *UtilityMatrix) HasItem(id string) bool {
	_, ok := u.itemIndex[id]
	return ok
}

// ItemIndex 返回物品所在列下标。
func (u *UtilityMatrix) ItemIndex(id string) (int, bool) {
	j, ok := u.itemIndex[id]
	return j, ok
}

// Rating 返回 (用户, 物品) 的评分，未知 ID 返回 INVALID_INPUT。
func (u *UtilityMatrix) Rating(user, item string) (float64, error) {
	i, ok := u.userIndex[user]
	if !ok {
		return 0, core.InvalidInputError(core.ModuleMatrix, "matrix: unknown user %q", user)
	}
	j, ok := u.itemIndex[item]
	if !ok {
		return 0, core.InvalidInputError(core.ModuleMatrix, "matrix: unknown item %q", item)
	}
	return u.data.At(i, j), nil
}

// Row 返回用户评分行的副本。
func (u *UtilityMatrix) Row(user string) ([]float64, error) {
	i, ok := u.userIndex[user]
	if !ok {
		return nil, core.InvalidInputError(core.ModuleMatrix, "matrix: unknown user %q", user)
	}
	return mat.Row(nil, i, u.data), nil
}

// Column 返回物品评分列的副本。
func (u *UtilityMatrix) Column(item string) ([]float64, error) {
	j, ok := u.itemIndex[item]
	if !ok {
		return nil, core.InvalidInputError(core.ModuleMatrix, "matrix: unknown item %q", item)
	}
	return mat.Col(nil, j, u.data), nil
}

// ItemMean 返回物品非零评分的均值，没有任何评分时 ok 为 false。
func (u *UtilityMatrix) ItemMean(item string) (mean float64, ok bool) {
	j, found := u.itemIndex[item]
	if !found {
		return 0, false
	}
	var sum float64
	var n int
	for i := range u.users {
		if v := u.data.At(i, j); v != 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// RatedCount 返回用户评过分的物品数。
func (u *UtilityMatrix) RatedCount(user string) (int, error) {
	row, err := u.Row(user)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, v := range row {
		if v != 0 {
			n++
		}
	}
	return n, nil
}

// TopKByRating 返回用户评分最高的 k 个物品，分数相同按列顺序（稳定排序）。
func (u *UtilityMatrix) TopKByRating(user string, k int) ([]string, error) {
	row, err := u.Row(user)
	if err != nil {
		return nil, err
	}
	order := make([]int, len(row))
	for j := range order {
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool {
		return row[order[a]] > row[order[b]]
	})
	if k > len(order) {
		k = len(order)
	}
	if k < 0 {
		k = 0
	}
	out := make([]string, 0, k)
	for _, j := range order[:k] {
		out = append(out, u.items[j])
	}
	return out, nil
}

// DropColumns 返回去掉指定物品列后的新矩阵，原矩阵不变。
func (u *UtilityMatrix) DropColumns(items ...string) (*UtilityMatrix, error) {
	drop := make(map[int]struct{}, len(items))
	for _, id := range items {
		j, ok := u.itemIndex[id]
		if !ok {
			return nil, core.InvalidInputError(core.ModuleMatrix, "matrix: cannot drop unknown column %q", id)
		}
		drop[j] = struct{}{}
	}
	if len(drop) == len(u.items) {
		return nil, core.InvalidInputError(core.ModuleMatrix, "matrix: dropping every column leaves an empty matrix")
	}

	keep := make([]int, 0, len(u.items)-len(drop))
	kept := make([]string, 0, len(u.items)-len(drop))
	for j, id := range u.items {
		if _, ok := drop[j]; ok {
			continue
		}
		keep = append(keep, j)
		kept = append(kept, id)
	}

	rows := make([][]float64, len(u.users))
	for i := range u.users {
		row := make([]float64, len(keep))
		for c, j := range keep {
			row[c] = u.data.At(i, j)
		}
		rows[i] = row
	}
	return NewUtilityMatrix(u.users, kept, rows)
}

// RemoveColumn 是 DropColumns 的单列形式。
func (u *UtilityMatrix) RemoveColumn(item string) (*UtilityMatrix, error) {
	return u.DropColumns(item)
}

// SeedIndex 校验种子并返回它们的列下标：数量必须为 SeedSize，不可重复，必须是矩阵中的列。
func (u *UtilityMatrix) SeedIndex(seeds []string) ([]int, error) {
	if len(seeds) != SeedSize {
		return nil, core.InvalidInputError(core.ModuleMatrix, "matrix: need exactly %d seed items, got %d", SeedSize, len(seeds))
	}
	idx := make([]int, 0, len(seeds))
	seen := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		if _, dup := seen[s]; dup {
			return nil, core.InvalidInputError(core.ModuleMatrix, "matrix: duplicate seed item %q", s)
		}
		seen[s] = struct{}{}
		j, ok := u.itemIndex[s]
		if !ok {
			return nil, core.InvalidInputError(core.ModuleMatrix, "matrix: seed item %q is not a column", s)
		}
		idx = append(idx, j)
	}
	return idx, nil
}
