package model

import (
	"context"
	"sync"
	"time"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/matrix"
)

// Latent 缓存一次分解结果及其派生的相似度矩阵，并发安全。
// 分解失败（包括超时）不会被缓存，下次调用会重试。
type Latent struct {
	nmf     *NMF
	utility *matrix.UtilityMatrix
	timeout time.Duration

	mu      sync.Mutex
	factors *Factors
	itemSim *matrix.SimilarityMatrix
	userSim *matrix.SimilarityMatrix
}

// NewLatent 创建按需分解的缓存。timeout <= 0 表示只受调用方 ctx 约束。
func NewLatent(nmf *NMF, u *matrix.UtilityMatrix, timeout time.Duration) *Latent {
	return &Latent{nmf: nmf, utility: u, timeout: timeout}
}

// LatentFromFactors 用已有的分解结果（例如从快照恢复）创建缓存。
func LatentFromFactors(f *Factors) *Latent {
	return &Latent{factors: f}
}

// Factors 返回分解结果，首次调用时执行分解。
func (l *Latent) Factors(ctx context.Context) (*Factors, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.factorsLocked(ctx)
}

func (l *Latent) factorsLocked(ctx context.Context) (*Factors, error) {
	if l.factors != nil {
		return l.factors, nil
	}
	if l.nmf == nil || l.utility == nil {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeUnavailable, "model: no factors and no factorizer configured")
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	f, err := l.nmf.Factorize(ctx, l.utility)
	if err != nil {
		return nil, err
	}
	l.factors = f
	return f, nil
}

// ItemSimilarity 返回隐空间物品相似度矩阵。
func (l *Latent) ItemSimilarity(ctx context.Context) (*matrix.SimilarityMatrix, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.itemSim != nil {
		return l.itemSim, nil
	}
	f, err := l.factorsLocked(ctx)
	if err != nil {
		return nil, err
	}
	l.itemSim = f.ItemSimilarity()
	return l.itemSim, nil
}

// UserSimilarity 返回隐空间用户相似度矩阵。
func (l *Latent) UserSimilarity(ctx context.Context) (*matrix.SimilarityMatrix, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.userSim != nil {
		return l.userSim, nil
	}
	f, err := l.factorsLocked(ctx)
	if err != nil {
		return nil, err
	}
	l.userSim = f.UserSimilarity()
	return l.userSim, nil
}
