package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/model"
)

// EnvPrefix 是环境变量前缀。嵌套字段用双下划线分隔：
// BREWREC_STORE__BACKEND=redis -> store.backend，BREWREC_RECOMMEND__TOP_N=10 -> recommend.top_n。
const EnvPrefix = "BREWREC_"

// AppConfig 是命令行与服务的应用配置。
// 优先级：环境变量 > 配置文件 > 默认值。
type AppConfig struct {
	Recommend RecommendSettings `koanf:"recommend"`
	NMF       model.NMFConfig   `koanf:"nmf"`
	Store     StoreConfig       `koanf:"store"`
	Evaluate  EvaluateConfig    `koanf:"evaluate"`
	Log       LogConfig         `koanf:"log"`

	// Pipelines 自定义策略：策略名 -> Pipeline YAML 文件
	Pipelines map[string]string `koanf:"pipelines"`
}

// RecommendSettings 是推荐链路的默认参数，实现 core.RecommendConfig。
type RecommendSettings struct {
	TopN        int     `koanf:"top_n" validate:"min=1"`
	Neighbors   int     `koanf:"neighbors" validate:"min=1"`
	QueryRating float64 `koanf:"query_rating" validate:"gt=0"`
	PerSeed     int     `koanf:"per_seed" validate:"min=1"`
	Quota       int     `koanf:"quota" validate:"min=1"`

	// FactorizeTimeout 隐因子分解的超时，0 表示只受请求 ctx 约束
	FactorizeTimeout time.Duration `koanf:"factorize_timeout" validate:"min=0"`
}

var _ core.RecommendConfig = RecommendSettings{}

func (s RecommendSettings) DefaultTopN() int { return s.TopN }
func (s RecommendSettings) DefaultNeighbors() int { return s.Neighbors }
func (s RecommendSettings) DefaultQueryRating() float64 { return s.QueryRating }
func (s RecommendSettings) DefaultPerSeedCandidates() int { return s.PerSeed }
func (s RecommendSettings) DefaultPerSeedQuota() int { return s.Quota }

// StoreConfig 选择快照存储后端。
type StoreConfig struct {
	Backend string `koanf:"backend" validate:"oneof=memory redis badger"`
	Prefix  string `koanf:"prefix"`

	Redis  RedisConfig  `koanf:"redis"`
	Badger BadgerConfig `koanf:"badger"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr" validate:"omitempty,hostname_port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"min=0"`
}

type BadgerConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// EvaluateConfig 是离线评估参数。
type EvaluateConfig struct {
	Metric      string `koanf:"metric" validate:"oneof=percentile residual"`
	Concurrency int    `koanf:"concurrency" validate:"min=1,max=256"`
}

// LogConfig 是日志参数。
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// DefaultAppConfig 返回默认配置。
func DefaultAppConfig() *AppConfig {
	d := &core.DefaultRecommendConfig{}
	return &AppConfig{
		Recommend: RecommendSettings{
			TopN:             d.DefaultTopN(),
			Neighbors:        d.DefaultNeighbors(),
			QueryRating:      d.DefaultQueryRating(),
			PerSeed:          d.DefaultPerSeedCandidates(),
			Quota:            d.DefaultPerSeedQuota(),
			FactorizeTimeout: 30 * time.Second,
		},
		NMF: model.DefaultNMFConfig(),
		Store: StoreConfig{
			Backend: "memory",
			Prefix:  "brewrec:",
			Redis:   RedisConfig{Addr: "127.0.0.1:6379"},
		},
		Evaluate: EvaluateConfig{
			Metric:      "percentile",
			Concurrency: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load 依次加载默认值、配置文件（path 为空时跳过）与 BREWREC_ 环境变量，并校验。
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultAppConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &AppConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey 把 BREWREC_STORE__BADGER__IN_MEMORY 转成 store.badger.in_memory。
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 校验字段范围以及后端相关的必填项。
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return core.WrapError(core.ModuleService, core.ErrorCodeInvalidInput, "config: invalid app config", err)
	}
	if err := c.NMF.Validate(); err != nil {
		return err
	}
	switch c.Store.Backend {
	case "redis":
		if c.Store.Redis.Addr == "" {
			return core.InvalidInputError(core.ModuleService, "config: store.redis.addr is required for the redis backend")
		}
	case "badger":
		if c.Store.Badger.Path == "" && !c.Store.Badger.InMemory {
			return core.InvalidInputError(core.ModuleService, "config: store.badger.path is required unless in_memory is set")
		}
	}
	for name, path := range c.Pipelines {
		if name == "" || path == "" {
			return core.InvalidInputError(core.ModuleService, "config: pipeline entries need a name and a file")
		}
	}
	return nil
}

// NewLogger 按配置创建 zerolog.Logger，w 为空时写到 stderr。
func (c LogConfig) NewLogger(w io.Writer) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		return zerolog.Nop(), core.InvalidInputError(core.ModuleService, "config: bad log level %q", c.Level)
	}
	if c.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("app", "brewrec").Logger(), nil
}
