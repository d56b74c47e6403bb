// Package brewrec 是一个基于评分日志的啤酒推荐工具包。
//
// 设计要点：
// - Pipeline-first: 每个推荐策略都是 Node 链（种子解析 → 召回 → 过滤 → 排序 → 截断）
// - 快照只读: 效用矩阵、相似度矩阵与隐因子在启动时构建，请求之间共享
// - 错误分类: INVALID_INPUT 与 INSUFFICIENT_DATA 区分调用方错误与数据不足
package brewrec

import (
	"github.com/rs/zerolog"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/matrix"
	"github.com/rushteam/brewrec/model"
	"github.com/rushteam/brewrec/pipeline"
	"github.com/rushteam/brewrec/service"
)

// 轻量 facade：便于直接 import "brewrec" 使用核心抽象。
type (
	Pipeline = pipeline.Pipeline
	Node     = pipeline.Node
	Kind     = pipeline.Kind
	Rating   = core.Rating
	Service  = service.Service
	Settings = service.Settings
	Result   = service.Result
)

const (
	KindSeed   = pipeline.KindSeed
	KindRecall = pipeline.KindRecall
	KindFilter = pipeline.KindFilter
	KindRank   = pipeline.KindRank
	KindReRank = pipeline.KindReRank
)

// NewService 由评分日志直接创建推荐服务，相似度与隐因子按需计算。
// settings.NMF 为零值时使用 model.DefaultNMFConfig。
func NewService(log []Rating, settings Settings, logger zerolog.Logger) (*Service, error) {
	if settings.NMF == (model.NMFConfig{}) {
		settings.NMF = model.DefaultNMFConfig()
	}
	ratings := core.RatingLog(log)
	u, err := matrix.FromRatings(ratings)
	if err != nil {
		return nil, err
	}
	return service.New(&service.Snapshot{Ratings: ratings, Utility: u}, settings, logger)
}
