package evaluate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 评估无定义的原因
const (
	reasonNoOverlap        = "no_overlap"
	reasonInsufficientData = "insufficient_data"
)

var (
	// EvaluationScores 记录有定义的评估分数，按策略与指标区分。
	EvaluationScores = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brewrec_evaluation_score",
			Help:    "Evaluation scores of recommendations for existing users",
			Buckets: []float64{-2, -1, -0.5, 0, 0.5, 1, 2, 25, 50, 75, 90, 100},
		},
		[]string{"strategy", "metric"},
	)

	// EvaluationUndefinedTotal 统计无定义的评估次数。
	EvaluationUndefinedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brewrec_evaluation_undefined_total",
			Help: "Total number of evaluations without a defined score",
		},
		[]string{"strategy", "reason"},
	)
)

func recordScore(strategy, metric string, score float64) {
	EvaluationScores.WithLabelValues(strategy, metric).Observe(score)
}

func recordUndefined(strategy, reason string) {
	EvaluationUndefinedTotal.WithLabelValues(strategy, reason).Inc()
}
