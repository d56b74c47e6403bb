package service

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/rushteam/brewrec/config"
	_ "github.com/rushteam/brewrec/config/builders"
	"github.com/rushteam/brewrec/filter"
	"github.com/rushteam/brewrec/pipeline"
	"github.com/rushteam/brewrec/rank"
	"github.com/rushteam/brewrec/recall"
	"github.com/rushteam/brewrec/rerank"
)

// 内置策略
const (
	StrategyUserCF       = "user_cf"        // 用户协同过滤
	StrategyContent      = "content"        // 物品相似度，全局策略
	StrategyContentRR    = "content_rr"     // 物品相似度，轮询策略
	StrategyItemCF       = "item_cf"        // 加权物品协同过滤
	StrategyLatent       = "latent"         // 隐因子相似度，轮询策略
	StrategyLatentItemCF = "latent_item_cf" // 隐因子相似度加权的物品协同过滤
)

// BuiltinStrategies 返回内置策略名（排序）。
func BuiltinStrategies() []string {
	names := []string{StrategyUserCF, StrategyContent, StrategyContentRR, StrategyItemCF, StrategyLatent, StrategyLatentItemCF}
	sort.Strings(names)
	return names
}

// newStrategy 根据策略名组装 Pipeline：种子解析 → 召回 → 去种子 → 排序 → Top N。
// 轮询策略的结果顺序本身有意义，不经过排序节点。
func newStrategy(name string, res *config.Resources, logger zerolog.Logger) (*pipeline.Pipeline, error) {
	cfg := res.RecommendConfig()
	var source pipeline.Node
	sorted := true

	switch name {
	case StrategyUserCF:
		source = &recall.UserBasedCF{Utility: res.Utility, Config: cfg}
	case StrategyContent:
		source = &recall.ContentRecall{Similarity: res.Similarity, Utility: res.Utility, Policy: recall.PolicyGlobal, Config: cfg}
	case StrategyContentRR:
		source = &recall.ContentRecall{Similarity: res.Similarity, Utility: res.Utility, Policy: recall.PolicyRoundRobin, Config: cfg}
		sorted = false
	case StrategyItemCF:
		source = &recall.ItemBasedCF{Utility: res.Utility, Similarity: res.Similarity, ItemMeans: res.ItemMeans}
	case StrategyLatent:
		source = &recall.MFRecall{Latent: res.Latent, Utility: res.Utility, Policy: recall.PolicyRoundRobin, Config: cfg}
		sorted = false
	case StrategyLatentItemCF:
		source = &recall.LatentItemCF{Latent: res.Latent, Utility: res.Utility, ItemMeans: res.ItemMeans}
	default:
		return nil, fmt.Errorf("unsupported strategy: %s", name)
	}

	nodes := []pipeline.Node{
		&recall.SeedNode{Utility: res.Utility},
		source,
		&filter.FilterNode{Filters: []filter.Filter{&filter.SeedFilter{}}, Strict: true, Logger: logger},
	}
	if sorted {
		nodes = append(nodes, &rank.ScoreSortNode{})
	}
	nodes = append(nodes, &rerank.TopNNode{N: cfg.DefaultTopN(), Strict: true})

	l := logger.With().Str("strategy", name).Logger()
	return &pipeline.Pipeline{Nodes: nodes, Logger: &l}, nil
}

// newCustomStrategy 用 YAML 配置组装 Pipeline，节点类型见 config/builders。
func newCustomStrategy(name string, cfg *pipeline.Config, res *config.Resources) (*pipeline.Pipeline, error) {
	if cfg.Pipeline.Name == "" {
		cfg.Pipeline.Name = name
	}
	p, err := config.BuildPipeline(cfg, res)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", name, err)
	}
	return p, nil
}
