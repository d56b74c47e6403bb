package matrix

import (
	"gonum.org/v1/gonum/mat"
)

// QueryMatrix 是请求级的效用矩阵副本：在原矩阵所有真实用户之后追加一行“查询用户”。
// 查询行用显式下标标记，不占用任何用户 ID，因此不会与真实用户冲突。
type QueryMatrix struct {
	base    *UtilityMatrix
	data    *mat.Dense
	seedIdx []int
}

// WithQueryUser 注入查询用户：种子物品评分为 rating，其余为 0。
// 返回私有副本，调用方的矩阵不被修改。
// 种子数量不是 SeedSize、有重复或不在列中时返回 INVALID_INPUT。
func (u *UtilityMatrix) WithQueryUser(seeds []string, rating float64) (*QueryMatrix, error) {
	seedIdx, err := u.SeedIndex(seeds)
	if err != nil {
		return nil, err
	}

	n, m := u.data.Dims()
	data := mat.NewDense(n+1, m, nil)
	data.Slice(0, n, 0, m).(*mat.Dense).Copy(u.data)
	for _, j := range seedIdx {
		data.Set(n, j, rating)
	}

	return &QueryMatrix{
		base:    u,
		data:    data,
		seedIdx: seedIdx,
	}, nil
}

// Base 返回注入前的原矩阵。
func (q *QueryMatrix) Base() *UtilityMatrix { return q.base }

// Dims 返回 (真实用户数+1, 物品数)。
func (q *QueryMatrix) Dims() (int, int) { return q.data.Dims() }

// QueryIndex 返回查询行下标。
func (q *QueryMatrix) QueryIndex() int { return q.base.NumUsers() }

// IsQueryRow 判断第 i 行是否为查询用户。
func (q *QueryMatrix) IsQueryRow(i int) bool { return i == q.QueryIndex() }

// SeedIndex 返回种子物品的列下标（请求顺序）。
func (q *QueryMatrix) SeedIndex() []int { return append([]int(nil), q.seedIdx...) }

// At 返回第 i 行第 j 列的评分。
func (q *QueryMatrix) At(i, j int) float64 { return q.data.At(i, j) }

// RowView 返回第 i 行的只读切片副本。
func (q *QueryMatrix) RowView(i int) []float64 { return mat.Row(nil, i, q.data) }

// QueryRow 返回查询用户的评分行。
func (q *QueryMatrix) QueryRow() []float64 { return q.RowView(q.QueryIndex()) }

// UserID 返回第 i 行对应的真实用户 ID；查询行返回空串。
func (q *QueryMatrix) UserID(i int) string {
	if q.IsQueryRow(i) {
		return ""
	}
	return q.base.users[i]
}
