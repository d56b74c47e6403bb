package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rushteam/brewrec/core"
)

var (
	// RecommendDuration 记录每个策略一次推荐的耗时。
	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brewrec_recommend_duration_seconds",
			Help:    "Duration of recommendation requests in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"strategy"},
	)

	// RecommendErrorsTotal 按策略与错误代码统计失败的推荐请求。
	RecommendErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brewrec_recommend_errors_total",
			Help: "Total number of failed recommendation requests",
		},
		[]string{"strategy", "code"},
	)
)

func recordRecommend(strategy string, elapsed time.Duration, err error) {
	RecommendDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if err == nil {
		return
	}
	code := core.ErrorCodeInternalError
	if de := core.GetDomainError(err); de != nil {
		code = de.Code
	}
	RecommendErrorsTotal.WithLabelValues(strategy, code).Inc()
}
