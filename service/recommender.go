// Package service 把快照数据与各推荐策略组装成一个可并发调用的推荐服务。
package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rushteam/brewrec/config"
	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/evaluate"
	"github.com/rushteam/brewrec/matrix"
	"github.com/rushteam/brewrec/model"
	"github.com/rushteam/brewrec/pipeline"
	"github.com/rushteam/brewrec/store"
)

// Snapshot 是服务运行所需的只读数据，所有请求共享。
type Snapshot = store.Snapshot

// Settings 是服务参数。
type Settings struct {
	// Recommend 提供 TopN、近邻数、种子评分等默认值，为空时使用 core.DefaultRecommendConfig
	Recommend core.RecommendConfig

	// NMF 快照里没有分解结果时使用的分解参数
	NMF model.NMFConfig

	// FactorizeTimeout 按需分解的超时，0 表示只受请求 ctx 约束
	FactorizeTimeout time.Duration

	// Pipelines 自定义策略（YAML 配置），策略名不能与内置策略重名
	Pipelines map[string]*pipeline.Config

	// Store 黑名单等过滤数据（可选）
	Store core.Store
}

// SettingsFromConfig 把应用配置转换为服务参数，并读取自定义策略的 YAML/JSON 文件。
func SettingsFromConfig(cfg *config.AppConfig) (Settings, error) {
	s := Settings{
		Recommend:        cfg.Recommend,
		NMF:              cfg.NMF,
		FactorizeTimeout: cfg.Recommend.FactorizeTimeout,
	}
	if len(cfg.Pipelines) == 0 {
		return s, nil
	}
	s.Pipelines = make(map[string]*pipeline.Config, len(cfg.Pipelines))
	for name, path := range cfg.Pipelines {
		pc, err := pipeline.Load(path)
		if err != nil {
			return Settings{}, fmt.Errorf("load pipeline %s: %w", name, err)
		}
		s.Pipelines[name] = pc
	}
	return s, nil
}

// Service 是推荐服务。创建后只读，可被多个 goroutine 同时调用。
type Service struct {
	snap       *Snapshot
	latent     *model.Latent
	styles     map[string]string
	strategies map[string]*pipeline.Pipeline
	logger     zerolog.Logger
}

// Result 是一次推荐的结果。
type Result struct {
	RequestID string
	Strategy  string

	// Seeds 是实际使用的种子（已有用户请求时为其评分最高的 5 个物品）
	Seeds []string

	Items []*core.Item
}

// IDs 返回推荐物品 ID（保持顺序）。
func (r *Result) IDs() []string {
	return core.ItemIDs(r.Items)
}

// New 创建推荐服务。快照必须包含效用矩阵；相似度矩阵为空时由效用矩阵计算。
func New(snap *Snapshot, settings Settings, logger zerolog.Logger) (*Service, error) {
	if snap == nil || snap.Utility == nil {
		return nil, core.InvalidInputError(core.ModuleService, "service: snapshot has no utility matrix")
	}
	if settings.Recommend == nil {
		settings.Recommend = &core.DefaultRecommendConfig{}
	}
	cp := *snap
	snap = &cp
	if snap.Similarity == nil {
		snap.Similarity = matrix.ItemCosine(snap.Utility)
	}
	logger = logger.With().Str("component", "service").Logger()

	s := &Service{
		snap:       snap,
		styles:     snap.Ratings.Categories(),
		strategies: make(map[string]*pipeline.Pipeline),
		logger:     logger,
	}
	if snap.Factors != nil {
		s.latent = model.LatentFromFactors(snap.Factors)
	} else {
		if err := settings.NMF.Validate(); err != nil {
			return nil, err
		}
		nmf := model.NewNMF(settings.NMF, logger)
		s.latent = model.NewLatent(nmf, snap.Utility, settings.FactorizeTimeout)
	}

	res := &config.Resources{
		Utility:    snap.Utility,
		Similarity: snap.Similarity,
		Latent:     s.latent,
		ItemMeans:  itemMeans(snap),
		Styles:     s.styles,
		Store:      settings.Store,
		Recommend:  settings.Recommend,
		Logger:     logger,
	}
	for _, name := range BuiltinStrategies() {
		p, err := newStrategy(name, res, logger)
		if err != nil {
			return nil, err
		}
		s.strategies[name] = p
	}
	for name, pc := range settings.Pipelines {
		if _, ok := s.strategies[name]; ok {
			return nil, core.InvalidInputError(core.ModuleService, "service: custom pipeline %q shadows a built-in strategy", name)
		}
		p, err := newCustomStrategy(name, pc, res)
		if err != nil {
			return nil, err
		}
		s.strategies[name] = p
	}
	return s, nil
}

// itemMeans 优先使用评分日志的物品均值，日志为空时由效用矩阵计算。
func itemMeans(snap *Snapshot) map[string]float64 {
	if len(snap.Ratings) > 0 {
		return snap.Ratings.ItemMeans()
	}
	means := make(map[string]float64, snap.Utility.NumItems())
	for _, id := range snap.Utility.Items() {
		if m, ok := snap.Utility.ItemMean(id); ok {
			means[id] = m
		}
	}
	return means
}

// Strategies 返回全部可用策略名（排序）。
func (s *Service) Strategies() []string {
	names := make([]string, 0, len(s.strategies))
	for name := range s.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Recommend 以 5 个显式种子做推荐。
func (s *Service) Recommend(ctx context.Context, strategy string, seeds []string) (*Result, error) {
	if len(seeds) == 0 {
		return nil, core.InvalidInputError(core.ModuleService, "service: no seed items")
	}
	return s.run(ctx, strategy, &core.RecommendContext{Seeds: append([]string(nil), seeds...)})
}

// RecommendExisting 为已有用户做推荐，种子取该用户评分最高的 5 个物品。
func (s *Service) RecommendExisting(ctx context.Context, strategy, userID string) (*Result, error) {
	if userID == "" {
		return nil, core.InvalidInputError(core.ModuleService, "service: empty user id")
	}
	return s.run(ctx, strategy, &core.RecommendContext{UserID: userID})
}

func (s *Service) run(ctx context.Context, strategy string, rctx *core.RecommendContext) (*Result, error) {
	p, ok := s.strategies[strategy]
	if !ok {
		return nil, core.InvalidInputError(core.ModuleService, "service: unknown strategy %q", strategy)
	}
	rctx.RequestID = uuid.NewString()
	rctx.Params = map[string]any{"strategy": strategy}
	logger := s.logger.With().Str("request_id", rctx.RequestID).Str("strategy", strategy).Logger()

	start := time.Now()
	items, err := p.Run(logger.WithContext(ctx), rctx, nil)
	recordRecommend(strategy, time.Since(start), err)
	if err != nil {
		logger.Debug().Err(err).Msg("recommend failed")
		return nil, err
	}
	logger.Debug().Strs("seeds", rctx.Seeds).Int("items", len(items)).Dur("elapsed", time.Since(start)).Msg("recommend done")
	return &Result{
		RequestID: rctx.RequestID,
		Strategy:  strategy,
		Seeds:     append([]string(nil), rctx.Seeds...),
		Items:     items,
	}, nil
}

// Recommender 返回某个策略的已有用户推荐，供 evaluate 使用。
func (s *Service) Recommender(strategy string) (evaluate.Recommender, error) {
	if _, ok := s.strategies[strategy]; !ok {
		return nil, core.InvalidInputError(core.ModuleService, "service: unknown strategy %q", strategy)
	}
	return evaluate.RecommenderFunc(func(ctx context.Context, userID string) ([]string, error) {
		res, err := s.RecommendExisting(ctx, strategy, userID)
		if err != nil {
			return nil, err
		}
		return res.IDs(), nil
	}), nil
}

// Evaluator 创建绑定到 strategy 的评估器。
func (s *Service) Evaluator(strategy, metric string) (*evaluate.Evaluator, error) {
	rec, err := s.Recommender(strategy)
	if err != nil {
		return nil, err
	}
	m, err := evaluate.ParseMetric(metric)
	if err != nil {
		return nil, err
	}
	if metric == "" {
		metric = evaluate.MetricPercentile
	}
	return &evaluate.Evaluator{
		Strategy:    strategy,
		Recommender: rec,
		Ratings:     s.snap.Ratings,
		Metric:      m,
		MetricName:  metric,
		Logger:      s.logger,
	}, nil
}

// SimilarUsers 返回隐空间里与 userID 最相似的 n 个用户（n <= 0 表示全部）。
func (s *Service) SimilarUsers(ctx context.Context, userID string, n int) ([]matrix.Neighbor, error) {
	sim, err := s.latent.UserSimilarity(ctx)
	if err != nil {
		return nil, err
	}
	if !sim.Has(userID) {
		return nil, core.InvalidInputError(core.ModuleService, "service: unknown user %q", userID)
	}
	return sim.Neighbors(userID, n)
}

// Search 按关键字查找物品。
func (s *Service) Search(keyword string) []string {
	return s.snap.Utility.SearchItems(keyword)
}

// Styles 返回每个隐因子分组里最常见的 n 个啤酒风格。
func (s *Service) Styles(ctx context.Context, n int) (map[int][]model.StyleCount, error) {
	if len(s.styles) == 0 {
		return nil, core.InsufficientDataError(core.ModuleService, "service: rating log has no item categories")
	}
	f, err := s.latent.Factors(ctx)
	if err != nil {
		return nil, err
	}
	return model.TopStylesPerFeature(f, s.styles, n), nil
}

// Factors 返回（必要时计算）隐因子分解结果，例如写回快照。
func (s *Service) Factors(ctx context.Context) (*model.Factors, error) {
	return s.latent.Factors(ctx)
}
