package model

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/matrix"
)

// Factors 是 NMF 的结果：用户隐因子矩阵 (用户×k) 与物品隐因子矩阵 (k×物品)。
// 两者元素均非负。
type Factors struct {
	users []string
	items []string
	w     *mat.Dense
	h     *mat.Dense

	// Err 是最终的重构误差 ||X - WH||_F
	Err float64

	// Iterations 是实际迭代次数
	Iterations int
}

// NewFactors 由行数据重建 Factors（用于从快照恢复）。
// userRows[i] 是用户 i 的隐向量，itemRows[j] 是物品 j 的隐向量，长度都为 k。
func NewFactors(users, items []string, userRows, itemRows [][]float64) (*Factors, error) {
	if len(users) == 0 || len(items) == 0 {
		return nil, core.InvalidInputError(core.ModuleModel, "model: factors need at least one user and one item")
	}
	if len(userRows) != len(users) || len(itemRows) != len(items) {
		return nil, core.InvalidInputError(core.ModuleModel, "model: factor rows do not match ids")
	}
	k := len(userRows[0])
	if k == 0 {
		return nil, core.InvalidInputError(core.ModuleModel, "model: empty latent vectors")
	}
	w := mat.NewDense(len(users), k, nil)
	for i, row := range userRows {
		if len(row) != k {
			return nil, core.InvalidInputError(core.ModuleModel, "model: user %q has %d features, want %d", users[i], len(row), k)
		}
		w.SetRow(i, row)
	}
	h := mat.NewDense(k, len(items), nil)
	for j, row := range itemRows {
		if len(row) != k {
			return nil, core.InvalidInputError(core.ModuleModel, "model: item %q has %d features, want %d", items[j], len(row), k)
		}
		h.SetCol(j, row)
	}
	return &Factors{
		users: append([]string(nil), users...),
		items: append([]string(nil), items...),
		w:     w,
		h:     h,
	}, nil
}

func (f *Factors) Users() []string { return append([]string(nil), f.users...) }
func (f *Factors) Items() []string { return append([]string(nil), f.items...) }

// Features 返回隐因子个数 k。
func (f *Factors) Features() int {
	_, k := f.w.Dims()
	return k
}

// UserFeatures 返回用户×k 矩阵的只读视图。
func (f *Factors) UserFeatures() mat.Matrix { return f.w }

// ItemFeatures 返回物品×k 矩阵的只读视图（H 的转置）。
func (f *Factors) ItemFeatures() mat.Matrix { return f.h.T() }

// UserRows 返回每个用户的隐向量副本。
func (f *Factors) UserRows() [][]float64 {
	rows := make([][]float64, len(f.users))
	for i := range f.users {
		rows[i] = mat.Row(nil, i, f.w)
	}
	return rows
}

// ItemRows 返回每个物品的隐向量副本。
func (f *Factors) ItemRows() [][]float64 {
	rows := make([][]float64, len(f.items))
	for j := range f.items {
		rows[j] = mat.Col(nil, j, f.h)
	}
	return rows
}

// ItemVector 返回物品隐向量，物品未知时 ok 为 false。
func (f *Factors) ItemVector(item string) (vec []float64, ok bool) {
	for j, id := range f.items {
		if id == item {
			return mat.Col(nil, j, f.h), true
		}
	}
	return nil, false
}

// UserVector 返回用户隐向量，用户未知时 ok 为 false。
func (f *Factors) UserVector(user string) (vec []float64, ok bool) {
	for i, id := range f.users {
		if id == user {
			return mat.Row(nil, i, f.w), true
		}
	}
	return nil, false
}

// DominantFeature 返回物品载荷最大的隐因子下标（并列取最小下标）。
func (f *Factors) DominantFeature(item string) (int, bool) {
	vec, ok := f.ItemVector(item)
	if !ok {
		return 0, false
	}
	return floats.MaxIdx(vec), true
}

// ItemSimilarity 基于物品隐向量计算物品×物品余弦相似度矩阵。
func (f *Factors) ItemSimilarity() *matrix.SimilarityMatrix {
	sim, _ := matrix.FromFeatures(f.items, f.ItemFeatures())
	return sim
}

// UserSimilarity 基于用户隐向量计算用户×用户余弦相似度矩阵。
func (f *Factors) UserSimilarity() *matrix.SimilarityMatrix {
	sim, _ := matrix.FromFeatures(f.users, f.w)
	return sim
}
