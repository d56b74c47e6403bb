// Package similarity 提供评分向量之间的余弦相似度计算。
//
// 同一套实现同时服务于：
//   - 物品-物品：物品列向量（跨全部用户）
//   - 用户-用户：用户行向量，限定在种子物品列上比较
//   - 隐空间：隐因子矩阵的行向量
package similarity

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Cosine 计算两个等长向量的余弦相似度：dot(a,b) / (|a|*|b|)。
// 任一向量范数为 0 或长度不一致时返回 0（不返回 NaN）。结果截断到 [-1, 1]。
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return clamp(floats.Dot(a, b) / (na * nb))
}

// CosineOn 只在 idx 指定的维度上计算余弦相似度。
// 用于把用户评分向量限定在种子物品列上比较。
func CosineOn(a, b []float64, idx []int) float64 {
	if len(a) != len(b) || len(idx) == 0 {
		return 0
	}
	sa := make([]float64, 0, len(idx))
	sb := make([]float64, 0, len(idx))
	for _, i := range idx {
		if i < 0 || i >= len(a) {
			return 0
		}
		sa = append(sa, a[i])
		sb = append(sb, b[i])
	}
	return Cosine(sa, sb)
}

// Pairwise 计算矩阵所有行两两之间的余弦相似度，返回对称矩阵，对角线固定为 1。
func Pairwise(rows mat.Matrix) *mat.SymDense {
	r, c := rows.Dims()
	vecs := make([][]float64, r)
	norms := make([]float64, r)
	for i := 0; i < r; i++ {
		v := make([]float64, c)
		mat.Row(v, i, rows)
		vecs[i] = v
		norms[i] = floats.Norm(v, 2)
	}

	out := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		out.SetSym(i, i, 1)
		for j := i + 1; j < r; j++ {
			var s float64
			if norms[i] != 0 && norms[j] != 0 {
				s = clamp(floats.Dot(vecs[i], vecs[j]) / (norms[i] * norms[j]))
			}
			out.SetSym(i, j, s)
		}
	}
	return out
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
