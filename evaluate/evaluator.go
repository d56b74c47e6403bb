package evaluate

import (
	"context"
	"math"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/brewrec/core"
)

// Recommender 是被评估的推荐策略：为已有用户生成推荐列表。
type Recommender interface {
	RecommendExisting(ctx context.Context, userID string) ([]string, error)
}

// RecommenderFunc 让普通函数满足 Recommender。
type RecommenderFunc func(ctx context.Context, userID string) ([]string, error)

func (f RecommenderFunc) RecommendExisting(ctx context.Context, userID string) ([]string, error) {
	return f(ctx, userID)
}

// Evaluator 绑定一个策略与一个指标。
type Evaluator struct {
	// Strategy 仅用于日志与指标标签
	Strategy string

	Recommender Recommender

	// Ratings 是真实评分日志
	Ratings core.RatingLog

	// Metric 为空时使用 Percentile
	Metric Metric
	// MetricName 是指标标签；为空时 Metric 为 nil 取 percentile，否则取 custom
	MetricName string

	Logger zerolog.Logger
}

// Evaluate 为已有用户跑一次推荐并打分。
//
// 推荐返回 INSUFFICIENT_DATA（用户评分太少凑不出种子、候选不足等）时返回 Undefined 且不报错；
// 其它错误（未知用户等）原样返回。
func (e *Evaluator) Evaluate(ctx context.Context, userID string) (float64, error) {
	if e.Recommender == nil {
		return Undefined, core.InvalidInputError(core.ModuleEvaluate, "evaluate: no recommender for strategy %q", e.Strategy)
	}
	logger := e.Logger.With().Str("strategy", e.Strategy).Str("user", userID).Logger()

	recs, err := e.Recommender.RecommendExisting(ctx, userID)
	if err != nil {
		if core.IsInsufficientData(err) {
			logger.Warn().Err(err).Msg("evaluation undefined")
			recordUndefined(e.Strategy, reasonInsufficientData)
			return Undefined, nil
		}
		return Undefined, err
	}

	metric, name := e.metric()
	score := metric(recs, e.Ratings.ByUser(userID))
	if IsUndefined(score) {
		logger.Debug().Strs("recs", recs).Msg("no overlap with rating history")
		recordUndefined(e.Strategy, reasonNoOverlap)
		return Undefined, nil
	}
	recordScore(e.Strategy, name, score)
	logger.Debug().Float64("score", score).Msg("user evaluated")
	return score, nil
}

func (e *Evaluator) metric() (Metric, string) {
	metric, name := e.Metric, e.MetricName
	if metric == nil {
		metric = Percentile
		if name == "" {
			name = MetricPercentile
		}
	}
	if name == "" {
		name = MetricCustom
	}
	return metric, name
}

// Report 是批量评估的结果。Scores 与 Users 一一对应。
type Report struct {
	Users  []string
	Scores []float64

	// Mean 是有定义分数的均值，全部无定义时为 NaN
	Mean      float64
	Defined   int
	Undefined int
}

// EvaluateAll 并发评估多个用户，concurrency <= 0 时不限并发。
// 任何一个用户返回错误都会取消其余评估并返回该错误。
func (e *Evaluator) EvaluateAll(ctx context.Context, users []string, concurrency int) (*Report, error) {
	scores := make([]float64, len(users))

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, u := range users {
		g.Go(func() error {
			score, err := e.Evaluate(gctx, u)
			if err != nil {
				return err
			}
			scores[i] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Users: append([]string(nil), users...), Scores: scores}
	var sum float64
	for _, s := range scores {
		if IsUndefined(s) {
			report.Undefined++
			continue
		}
		sum += s
		report.Defined++
	}
	report.Mean = math.NaN()
	if report.Defined > 0 {
		report.Mean = sum / float64(report.Defined)
	}
	e.Logger.Info().
		Str("strategy", e.Strategy).
		Int("users", len(users)).
		Int("defined", report.Defined).
		Float64("mean", report.Mean).
		Msg("evaluation finished")
	return report, nil
}
