// Package model 提供效用矩阵的非负矩阵分解（NMF）以及基于隐因子的诊断工具。
package model

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/matrix"
)

// epsilon 防止乘法更新中除零。
const epsilon = 1e-10

// NMFConfig 是 NMF 的参数。
type NMFConfig struct {
	// Features 隐因子个数 k
	Features int `koanf:"features" yaml:"features" json:"features"`

	// MaxIter 最大迭代次数
	MaxIter int `koanf:"max_iter" yaml:"max_iter" json:"max_iter"`

	// Tol 相对误差下降小于 Tol 时停止
	Tol float64 `koanf:"tol" yaml:"tol" json:"tol"`

	// Seed 随机初始化种子，相同种子得到相同分解结果
	Seed uint64 `koanf:"seed" yaml:"seed" json:"seed"`
}

// DefaultNMFConfig 返回默认参数。
func DefaultNMFConfig() NMFConfig {
	return NMFConfig{
		Features: 10,
		MaxIter:  200,
		Tol:      1e-4,
		Seed:     0,
	}
}

// Validate 校验参数。
func (c NMFConfig) Validate() error {
	if c.Features <= 0 {
		return core.InvalidInputError(core.ModuleModel, "model: features must be positive, got %d", c.Features)
	}
	if c.MaxIter <= 0 {
		return core.InvalidInputError(core.ModuleModel, "model: max_iter must be positive, got %d", c.MaxIter)
	}
	if c.Tol < 0 {
		return core.InvalidInputError(core.ModuleModel, "model: tol must be non-negative, got %v", c.Tol)
	}
	return nil
}

// NMF 把非负效用矩阵 X (用户×物品) 分解为 W (用户×k) 与 H (k×物品)，
// 最小化 ||X - WH||_F^2，W、H 非负。
//
// 初始化：W、H 的元素取 |N(0,1)| * sqrt(mean(X)/k)，随机源由 Seed 固定。
// 迭代：Lee & Seung 乘法更新。
type NMF struct {
	cfg    NMFConfig
	logger zerolog.Logger
}

// NewNMF 创建 NMF 分解器。
func NewNMF(cfg NMFConfig, logger zerolog.Logger) *NMF {
	return &NMF{
		cfg:    cfg,
		logger: logger.With().Str("component", "nmf").Logger(),
	}
}

// Factorize 执行分解。ctx 在每轮迭代检查一次，取消后返回 ctx.Err() 的包装。
func (n *NMF) Factorize(ctx context.Context, u *matrix.UtilityMatrix) (*Factors, error) {
	if err := n.cfg.Validate(); err != nil {
		return nil, err
	}
	if u == nil {
		return nil, core.InvalidInputError(core.ModuleModel, "model: nil utility matrix")
	}

	x := mat.DenseCopyOf(u.Dense())
	rows, cols := x.Dims()
	k := n.cfg.Features

	w, h := n.initFactors(x, rows, cols, k)

	var (
		wh      mat.Dense
		initErr = frobenius(x, w, h, &wh)
		prevErr = initErr
		curErr  = initErr
		iter    int
		denom   mat.Dense
		gram    mat.Dense
		wtx     = mat.NewDense(k, cols, nil)
		xht     = mat.NewDense(rows, k, nil)
		hht     = mat.NewDense(k, k, nil)
		wtw     = mat.NewDense(k, k, nil)
	)

	for iter = 1; iter <= n.cfg.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("model: factorization interrupted at iteration %d: %w", iter, err)
		}

		// H <- H .* (W^T X) ./ (W^T W H)
		wtx.Mul(w.T(), x)
		wtw.Mul(w.T(), w)
		denom.Mul(wtw, h)
		multiplicativeUpdate(h, wtx, &denom)

		// W <- W .* (X H^T) ./ (W H H^T)
		xht.Mul(x, h.T())
		hht.Mul(h, h.T())
		gram.Mul(w, hht)
		multiplicativeUpdate(w, xht, &gram)

		curErr = frobenius(x, w, h, &wh)
		if initErr > 0 && (prevErr-curErr)/initErr < n.cfg.Tol {
			break
		}
		prevErr = curErr
	}
	if iter > n.cfg.MaxIter {
		iter = n.cfg.MaxIter
	}

	n.logger.Debug().
		Int("features", k).
		Int("iterations", iter).
		Float64("reconstruction_err", curErr).
		Msg("factorization finished")

	return &Factors{
		users:      u.Users(),
		items:      u.Items(),
		w:          w,
		h:          h,
		Err:        curErr,
		Iterations: iter,
	}, nil
}

func (n *NMF) initFactors(x *mat.Dense, rows, cols, k int) (*mat.Dense, *mat.Dense) {
	mean := mat.Sum(x) / float64(rows*cols)
	avg := math.Sqrt(mean / float64(k))
	rng := rand.New(rand.NewPCG(n.cfg.Seed, n.cfg.Seed))

	h := mat.NewDense(k, cols, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < cols; j++ {
			h.Set(i, j, avg*math.Abs(rng.NormFloat64()))
		}
	}
	w := mat.NewDense(rows, k, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < k; j++ {
			w.Set(i, j, avg*math.Abs(rng.NormFloat64()))
		}
	}
	return w, h
}

func multiplicativeUpdate(dst *mat.Dense, numer, denom mat.Matrix) {
	r, c := dst.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := dst.At(i, j) * numer.At(i, j) / (denom.At(i, j) + epsilon)
			if v < 0 {
				v = 0
			}
			dst.Set(i, j, v)
		}
	}
}

func frobenius(x, w, h *mat.Dense, wh *mat.Dense) float64 {
	wh.Mul(w, h)
	var diff mat.Dense
	diff.Sub(x, wh)
	return mat.Norm(&diff, 2)
}
