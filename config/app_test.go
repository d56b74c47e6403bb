package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rushteam/brewrec/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "brewrec.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Recommend.TopN != 10 || cfg.Recommend.Neighbors != 10 || cfg.Recommend.Quota != 2 {
		t.Errorf("Load() recommend = %+v, want library defaults", cfg.Recommend)
	}
	if cfg.Recommend.QueryRating != 5 {
		t.Errorf("Load() query_rating = %v, want 5", cfg.Recommend.QueryRating)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Load() store.backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.NMF.Features != 10 {
		t.Errorf("Load() nmf.features = %d, want 10", cfg.NMF.Features)
	}
	if cfg.Evaluate.Metric != "percentile" {
		t.Errorf("Load() evaluate.metric = %q, want percentile", cfg.Evaluate.Metric)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
recommend:
  neighbors: 20
  factorize_timeout: 5s
nmf:
  features: 4
  seed: 7
store:
  backend: badger
  badger:
    path: /var/lib/brewrec
evaluate:
  metric: residual
pipelines:
  hybrid: pipelines/hybrid.yaml
`)
	t.Setenv("BREWREC_NMF__FEATURES", "6")
	t.Setenv("BREWREC_LOG__FORMAT", "console")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Recommend.Neighbors != 20 {
		t.Errorf("neighbors = %d, want 20 from file", cfg.Recommend.Neighbors)
	}
	if cfg.Recommend.TopN != 10 {
		t.Errorf("top_n = %d, want default 10", cfg.Recommend.TopN)
	}
	if cfg.Recommend.FactorizeTimeout != 5*time.Second {
		t.Errorf("factorize_timeout = %v, want 5s", cfg.Recommend.FactorizeTimeout)
	}
	if cfg.NMF.Features != 6 {
		t.Errorf("nmf.features = %d, want 6 from env", cfg.NMF.Features)
	}
	if cfg.NMF.Seed != 7 {
		t.Errorf("nmf.seed = %d, want 7", cfg.NMF.Seed)
	}
	if cfg.Store.Backend != "badger" || cfg.Store.Badger.Path != "/var/lib/brewrec" {
		t.Errorf("store = %+v, want badger at /var/lib/brewrec", cfg.Store)
	}
	if cfg.Log.Format != "console" {
		t.Errorf("log.format = %q, want console from env", cfg.Log.Format)
	}
	if got := cfg.Pipelines["hybrid"]; got != "pipelines/hybrid.yaml" {
		t.Errorf("pipelines[hybrid] = %q", got)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown backend", "store:\n  backend: postgres\n"},
		{"badger without path", "store:\n  backend: badger\n"},
		{"zero top_n", "recommend:\n  top_n: 0\n"},
		{"unknown metric", "evaluate:\n  metric: rmse\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"zero features", "nmf:\n  features: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if !core.IsInvalidInput(err) {
				t.Errorf("Load() error = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() error = nil, want error for a missing file")
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"BREWREC_STORE__BACKEND":           "store.backend",
		"BREWREC_STORE__BADGER__IN_MEMORY": "store.badger.in_memory",
		"BREWREC_RECOMMEND__TOP_N":         "recommend.top_n",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LogConfig{Level: "info", Format: "json"}.NewLogger(&buf)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Debug().Msg("hidden")
	logger.Info().Str("component", "test").Msg("visible")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written at info level: %s", out)
	}
	if !strings.Contains(out, `"component":"test"`) || !strings.Contains(out, `"app":"brewrec"`) {
		t.Errorf("log output = %s, want component and app fields", out)
	}

	if _, err := (LogConfig{Level: "loud", Format: "json"}).NewLogger(&buf); !core.IsInvalidInput(err) {
		t.Errorf("NewLogger() error = %v, want INVALID_INPUT", err)
	}
}
