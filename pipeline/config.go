package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/brewrec/core"
)

// Config 描述一个自定义策略：
//
//	pipeline:
//	  name: hybrid
//	  nodes:
//	    - type: recall.seeds
//	    - type: recall.fanout
//	      config: {...}
//	    - type: rerank.topn
type Config struct {
	Pipeline struct {
		Name  string       `yaml:"name" json:"name"`
		Nodes []NodeConfig `yaml:"nodes" json:"nodes"`
	} `yaml:"pipeline" json:"pipeline"`
}

// NodeConfig 是单个节点；Config 的键由节点的构建器解释。
type NodeConfig struct {
	Type   string                 `yaml:"type" json:"type"`
	Config map[string]interface{} `yaml:"config" json:"config"`
}

// Load 按扩展名读取 YAML（.yaml/.yml）或 JSON（.json）配置。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml", "":
		return ParseYAML(data)
	default:
		return nil, core.InvalidInputError(core.ModuleRecommend, "pipeline: unsupported config format %q", path)
	}
}

// ParseYAML 解析 YAML 配置。顶层出现未知字段（例如把 nodes 写错位置）视为错误。
func ParseYAML(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, core.WrapError(core.ModuleRecommend, core.ErrorCodeInvalidInput, "pipeline: parse yaml", err)
	}
	cfg.normalize()
	return &cfg, nil
}

// ParseJSON 解析 JSON 配置。
func ParseJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, core.WrapError(core.ModuleRecommend, core.ErrorCodeInvalidInput, "pipeline: parse json", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Pipeline.Name = strings.TrimSpace(c.Pipeline.Name)
	for i := range c.Pipeline.Nodes {
		c.Pipeline.Nodes[i].Type = strings.TrimSpace(c.Pipeline.Nodes[i].Type)
	}
}

// Validate 只检查结构；节点类型是否已注册由构建方检查。
func (c *Config) Validate() error {
	if len(c.Pipeline.Nodes) == 0 {
		return core.InvalidInputError(core.ModuleRecommend, "pipeline: %q has no nodes", c.Pipeline.Name)
	}
	for i, nc := range c.Pipeline.Nodes {
		if nc.Type == "" {
			return core.InvalidInputError(core.ModuleRecommend, "pipeline: %q node %d has no type", c.Pipeline.Name, i)
		}
	}
	return nil
}

// BuildPipeline 用 factory 依次构建节点。factory 由 config 包绑定快照资源后提供。
func (c *Config) BuildPipeline(factory *NodeFactory) (*Pipeline, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(c.Pipeline.Nodes))
	for i, nc := range c.Pipeline.Nodes {
		node, err := factory.Build(nc.Type, nc.Config)
		if err != nil {
			return nil, fmt.Errorf("node %d (%s): %w", i, nc.Type, err)
		}
		nodes = append(nodes, node)
	}
	return &Pipeline{Nodes: nodes}, nil
}

// NodeFactory 按类型名构建节点。
type NodeFactory struct {
	builders map[string]NodeBuilder
}

func NewNodeFactory() *NodeFactory {
	return &NodeFactory{builders: make(map[string]NodeBuilder)}
}

func (f *NodeFactory) Register(nodeType string, builder NodeBuilder) {
	f.builders[nodeType] = builder
}

// Types 返回已注册的类型（排序）。
func (f *NodeFactory) Types() []string {
	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (f *NodeFactory) Build(nodeType string, config map[string]interface{}) (Node, error) {
	builder, ok := f.builders[nodeType]
	if !ok {
		return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeNotSupported,
			fmt.Sprintf("pipeline: unknown node type %q (supported: %v)", nodeType, f.Types()))
	}
	return builder(config)
}
