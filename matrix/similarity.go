package matrix

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/similarity"
)

// diagonalTolerance 允许外部预计算矩阵的对角线存在浮点误差。
const diagonalTolerance = 1e-6

// SimilarityMatrix 是物品×物品相似度矩阵，对称，sim(i,i)=1，只读。
type SimilarityMatrix struct {
	ids   []string
	index map[string]int
	data  *mat.SymDense
}

// Neighbor 是相似物品及其相似度。
type Neighbor struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// NewSimilarityMatrix 由外部预计算的方阵构造相似度矩阵。
// 要求方阵、对称、取值在 [-1, 1]、对角线为 1（容忍微小误差后固定为 1）。
func NewSimilarityMatrix(ids []string, rows [][]float64) (*SimilarityMatrix, error) {
	if len(ids) == 0 {
		return nil, core.InvalidInputError(core.ModuleMatrix, "matrix: similarity matrix needs at least one item")
	}
	if len(rows) != len(ids) {
		return nil, core.InvalidInputError(core.ModuleMatrix, "matrix: similarity matrix has %d rows for %d items", len(rows), len(ids))
	}
	index, err := indexOf(ids, "item")
	if err != nil {
		return nil, err
	}

	n := len(ids)
	for i, row := range rows {
		if len(row) != n {
			return nil, core.InvalidInputError(core.ModuleMatrix, "matrix: similarity row %q has %d values, want %d", ids[i], len(row), n)
		}
	}
	data := mat.NewSymDense(n, nil)
	for i, row := range rows {
		if math.Abs(row[i]-1) > diagonalTolerance {
			return nil, core.InvalidInputError(core.ModuleMatrix, "matrix: self similarity of %q is %v, want 1", ids[i], row[i])
		}
		for j := i + 1; j < n; j++ {
			v := row[j]
			if math.IsNaN(v) || v < -1-diagonalTolerance || v > 1+diagonalTolerance {
				return nil, core.InvalidInputError(core.ModuleMatrix, "matrix: similarity (%q, %q) = %v out of [-1, 1]", ids[i], ids[j], v)
			}
			if math.Abs(v-rows[j][i]) > diagonalTolerance {
				return nil, core.InvalidInputError(core.ModuleMatrix, "matrix: similarity (%q, %q) is not symmetric", ids[i], ids[j])
			}
			data.SetSym(i, j, math.Max(-1, math.Min(1, v)))
		}
		data.SetSym(i, i, 1)
	}

	return &SimilarityMatrix{ids: append([]string(nil), ids...), index: index, data: data}, nil
}

// ItemCosine 基于效用矩阵的物品列（跨全部用户）计算物品相似度矩阵。
func ItemCosine(u *UtilityMatrix) *SimilarityMatrix {
	return fromSym(u.items, similarity.Pairwise(u.data.T()))
}

// FromFeatures 基于特征矩阵的行（例如隐因子物品矩阵）计算相似度矩阵。
func FromFeatures(ids []string, features mat.Matrix) (*SimilarityMatrix, error) {
	r, _ := features.Dims()
	if r != len(ids) {
		return nil, core.InvalidInputError(core.ModuleMatrix, "matrix: %d feature rows for %d ids", r, len(ids))
	}
	if _, err := indexOf(ids, "item"); err != nil {
		return nil, err
	}
	return fromSym(ids, similarity.Pairwise(features)), nil
}

func fromSym(ids []string, data *mat.SymDense) *SimilarityMatrix {
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}
	return &SimilarityMatrix{ids: append([]string(nil), ids...), index: index, data: data}
}

func (s *SimilarityMatrix) IDs() []string { return append([]string(nil), s.ids...) }
func (s *SimilarityMatrix) Len() int      { return len(s.ids) }

func (s *SimilarityMatrix) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Score 返回两个物品的相似度，任一物品未知时 ok 为 false。
func (s *SimilarityMatrix) Score(a, b string) (score float64, ok bool) {
	i, ok := s.index[a]
	if !ok {
		return 0, false
	}
	j, ok := s.index[b]
	if !ok {
		return 0, false
	}
	return s.data.At(i, j), true
}

// Rows 返回矩阵的行数据副本，用于序列化。
func (s *SimilarityMatrix) Rows() [][]float64 {
	n := len(s.ids)
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		rows[i] = mat.Row(nil, i, s.data)
	}
	return rows
}

// Neighbors 返回与 id 最相似的 n 个物品（降序，不含自身，相同分数按列顺序）。
// n <= 0 时返回全部。
func (s *SimilarityMatrix) Neighbors(id string, n int) ([]Neighbor, error) {
	i, ok := s.index[id]
	if !ok {
		return nil, core.InvalidInputError(core.ModuleMatrix, "matrix: unknown item %q in similarity matrix", id)
	}
	out := make([]Neighbor, 0, len(s.ids)-1)
	for j, other := range s.ids {
		if j == i {
			continue
		}
		out = append(out, Neighbor{ID: other, Score: s.data.At(i, j)})
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Score > out[b].Score
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out, nil
}
