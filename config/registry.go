// Package config 负责配置驱动：Pipeline 节点注册表（YAML → Node）与应用配置（koanf）。
package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/matrix"
	"github.com/rushteam/brewrec/model"
	"github.com/rushteam/brewrec/pipeline"
)

// 使用配置驱动时，需在入口处 import _ "github.com/rushteam/brewrec/config/builders"
// 以触发内置 Node（recall.user_cf、recall.content、filter、rerank.topn 等）的 init 注册。

// Resources 是构建节点时可用的快照数据。节点只读共享这些对象。
type Resources struct {
	Utility    *matrix.UtilityMatrix
	Similarity *matrix.SimilarityMatrix
	Latent     *model.Latent

	// ItemMeans 评分日志中的物品平均分（item_cf 使用）
	ItemMeans map[string]float64

	// Styles 物品风格（rerank.diversity 使用）
	Styles map[string]string

	// Store 黑名单等过滤数据的存储（可选）
	Store core.Store

	// Recommend 召回与 Top N 的默认参数，节点配置未指定时使用；为空时用 core.DefaultRecommendConfig
	Recommend core.RecommendConfig

	Logger zerolog.Logger
}

// RecommendConfig 返回 Recommend，为空时返回内置默认值。
func (r *Resources) RecommendConfig() core.RecommendConfig {
	if r == nil || r.Recommend == nil {
		return &core.DefaultRecommendConfig{}
	}
	return r.Recommend
}

// NodeBuilder 根据快照资源与节点配置构建 Node。
// 各组件在 init 中调用 Register(typeName, builder) 即可被配置驱动。
type NodeBuilder func(res *Resources, cfg map[string]interface{}) (pipeline.Node, error)

var (
	defaultBuilders   = make(map[string]NodeBuilder)
	defaultBuildersMu sync.RWMutex
)

// Register 注册一种 Node 的构建逻辑。重复注册时后者覆盖前者。
func Register(typeName string, builder NodeBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	defaultBuildersMu.Lock()
	defer defaultBuildersMu.Unlock()
	defaultBuilders[typeName] = builder
}

// SupportedTypes 返回当前已注册的 Node 类型列表（排序），用于错误提示与校验。
func SupportedTypes() []string {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	types := make([]string, 0, len(defaultBuilders))
	for t := range defaultBuilders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Factory 返回绑定了 res 的 NodeFactory，包含所有已注册的 Node 类型。
func Factory(res *Resources) *pipeline.NodeFactory {
	if res == nil {
		res = &Resources{Logger: zerolog.Nop()}
	}
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	f := pipeline.NewNodeFactory()
	for typeName, builder := range defaultBuilders {
		b := builder
		f.Register(typeName, func(cfg map[string]interface{}) (pipeline.Node, error) {
			if cfg == nil {
				cfg = map[string]interface{}{}
			}
			return b(res, cfg)
		})
	}
	return f
}

// ValidatePipelineConfig 校验 pipeline 结构，并确认所有节点类型均已注册。
func ValidatePipelineConfig(cfg *pipeline.Config) error {
	if cfg == nil {
		return core.InvalidInputError(core.ModuleRecommend, "config: nil pipeline config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	for i, nc := range cfg.Pipeline.Nodes {
		if _, ok := defaultBuilders[nc.Type]; !ok {
			return core.InvalidInputError(core.ModuleRecommend, "config: node %d has unsupported type %q", i, nc.Type)
		}
	}
	return nil
}

// BuildPipeline 校验并构建 Pipeline，Logger 取自 res。
func BuildPipeline(cfg *pipeline.Config, res *Resources) (*pipeline.Pipeline, error) {
	if err := ValidatePipelineConfig(cfg); err != nil {
		return nil, err
	}
	p, err := cfg.BuildPipeline(Factory(res))
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", cfg.Pipeline.Name, err)
	}
	if res != nil {
		logger := res.Logger.With().Str("pipeline", cfg.Pipeline.Name).Logger()
		p.Logger = &logger
	}
	return p, nil
}
