package builders

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rushteam/brewrec/config"
	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/filter"
	"github.com/rushteam/brewrec/matrix"
	"github.com/rushteam/brewrec/model"
	"github.com/rushteam/brewrec/pipeline"
	"github.com/rushteam/brewrec/recall"
	"github.com/rushteam/brewrec/rerank"
	"github.com/rushteam/brewrec/store"
)

func newResources(t *testing.T) *config.Resources {
	t.Helper()
	users := []string{"u0", "u1", "u2", "u3", "u4"}
	items := make([]string, 16)
	for j := range items {
		items[j] = fmt.Sprintf("i%02d", j)
	}
	rows := make([][]float64, len(users))
	for u := range rows {
		rows[u] = make([]float64, len(items))
		for j := range items {
			rows[u][j] = float64(1 + (u*7+j*3)%5)
		}
	}
	utility, err := matrix.NewUtilityMatrix(users, items, rows)
	if err != nil {
		t.Fatalf("NewUtilityMatrix() error = %v", err)
	}
	nmf := model.NewNMF(model.NMFConfig{Features: 3, MaxIter: 50, Tol: 1e-6, Seed: 1}, zerolog.Nop())
	means := make(map[string]float64, len(items))
	styles := make(map[string]string, len(items))
	for j, id := range items {
		means[id], _ = utility.ItemMean(id)
		styles[id] = fmt.Sprintf("style%d", j%4)
	}
	mem := store.NewMemoryStore()
	t.Cleanup(func() { _ = mem.Close() })
	return &config.Resources{
		Utility:    utility,
		Similarity: matrix.ItemCosine(utility),
		Latent:     model.NewLatent(nmf, utility, 0),
		ItemMeans:  means,
		Styles:     styles,
		Store:      mem,
		Logger:     zerolog.Nop(),
	}
}

var testSeeds = []string{"i00", "i01", "i02", "i03", "i04"}

func runYAML(t *testing.T, res *config.Resources, doc string, rctx *core.RecommendContext) ([]*core.Item, error) {
	t.Helper()
	cfg, err := pipeline.ParseYAML([]byte(doc))
	if err != nil {
		t.Fatalf("ParseYAML() error = %v", err)
	}
	p, err := config.BuildPipeline(cfg, res)
	if err != nil {
		t.Fatalf("BuildPipeline() error = %v", err)
	}
	return p.Run(context.Background(), rctx, nil)
}

func assertRecommendation(t *testing.T, items []*core.Item, seeds []string) {
	t.Helper()
	if len(items) != 10 {
		t.Fatalf("got %d items, want 10", len(items))
	}
	seen := make(map[string]bool)
	for _, s := range seeds {
		seen[s] = true
	}
	for _, it := range items {
		if seen[it.ID] {
			t.Errorf("item %s is a seed or a duplicate", it.ID)
		}
		seen[it.ID] = true
	}
}

func TestBuildPipelinesFromYAML(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "user cf",
			doc: `
pipeline:
  name: user_cf
  nodes:
    - type: recall.seeds
    - type: recall.user_cf
      config:
        neighbors: 3
    - type: filter
    - type: rank.sort
    - type: rerank.topn
`,
		},
		{
			name: "content round robin",
			doc: `
pipeline:
  name: content_rr
  nodes:
    - type: recall.seeds
    - type: recall.content
      config:
        policy: round_robin
    - type: filter
      config:
        filters:
          - type: seed
    - type: rerank.topn
      config:
        n: 10
`,
		},
		{
			name: "latent item cf",
			doc: `
pipeline:
  name: latent_item_cf
  nodes:
    - type: recall.seeds
    - type: recall.item_cf
      config:
        similarity: latent
    - type: filter
    - type: rank.sort
    - type: rerank.topn
`,
		},
		{
			name: "hybrid fanout",
			doc: `
pipeline:
  name: hybrid
  nodes:
    - type: recall.seeds
    - type: recall.fanout
      config:
        merge_strategy: priority
        timeout: 2s
        sources:
          - type: recall.content
            per_seed: 5
          - type: recall.user_cf
    - type: filter
      config:
        strict: true
        filters:
          - type: seed
          - type: expr
            expr: 'item.score != item.score'
    - type: rank.sort
    - type: rerank.diversity
      config:
        max_per_style: 3
    - type: rerank.topn
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newResources(t)
			rctx := &core.RecommendContext{Seeds: append([]string(nil), testSeeds...)}
			items, err := runYAML(t, res, tt.doc, rctx)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			assertRecommendation(t, items, testSeeds)
		})
	}
}

func TestBuildPipelineExistingUser(t *testing.T) {
	res := newResources(t)
	rctx := &core.RecommendContext{UserID: "u2"}
	items, err := runYAML(t, res, `
pipeline:
  name: item_cf
  nodes:
    - type: recall.seeds
    - type: recall.item_cf
    - type: filter
    - type: rank.sort
    - type: rerank.topn
`, rctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rctx.Seeds) != matrix.SeedSize {
		t.Fatalf("resolved seeds = %v, want %d", rctx.Seeds, matrix.SeedSize)
	}
	assertRecommendation(t, items, rctx.Seeds)
}

func TestBuildPipelineBlacklistFromStore(t *testing.T) {
	res := newResources(t)
	ctx := context.Background()
	if err := filter.NewStoreAdapter(res.Store).PutBlacklist(ctx, "blacklist:global", []string{"i05", "i06"}); err != nil {
		t.Fatalf("PutBlacklist() error = %v", err)
	}

	cfg, err := pipeline.ParseYAML([]byte(`
pipeline:
  name: blacklisted
  nodes:
    - type: recall.seeds
    - type: recall.content
      config:
        per_seed: 15
        top_n: 11
    - type: filter
      config:
        filters:
          - type: seed
          - type: blacklist
            key: blacklist:global
            item_ids: [i07]
    - type: rerank.topn
      config:
        n: 8
`))
	if err != nil {
		t.Fatalf("ParseYAML() error = %v", err)
	}
	p, err := config.BuildPipeline(cfg, res)
	if err != nil {
		t.Fatalf("BuildPipeline() error = %v", err)
	}
	items, err := p.Run(ctx, &core.RecommendContext{Seeds: append([]string(nil), testSeeds...)}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(items) != 8 {
		t.Fatalf("got %d items, want 8", len(items))
	}
	for _, it := range items {
		switch it.ID {
		case "i05", "i06", "i07":
			t.Errorf("blacklisted item %s recommended", it.ID)
		}
	}
}

func TestBuildPipelineStoredNeighbors(t *testing.T) {
	res := newResources(t)
	ctx := context.Background()
	if err := store.NewSnapshotStore(res.Store, "brewrec:").PublishNeighbors(ctx, res.Similarity, 15); err != nil {
		t.Fatalf("PublishNeighbors() error = %v", err)
	}
	items, err := runYAML(t, res, `
pipeline:
  name: stored
  nodes:
    - type: recall.seeds
    - type: recall.stored
      config:
        per_seed: 15
    - type: filter
    - type: rank.sort
    - type: rerank.topn
`, &core.RecommendContext{Seeds: append([]string(nil), testSeeds...)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	assertRecommendation(t, items, testSeeds)
}

func TestBuildPipelineErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown node", "pipeline:\n  name: x\n  nodes:\n    - type: rank.lr\n"},
		{"no nodes", "pipeline:\n  name: x\n"},
		{"bad policy", "pipeline:\n  name: x\n  nodes:\n    - type: recall.content\n      config:\n        policy: zigzag\n"},
		{"bad similarity", "pipeline:\n  name: x\n  nodes:\n    - type: recall.item_cf\n      config:\n        similarity: jaccard\n"},
		{"bad neighbors", "pipeline:\n  name: x\n  nodes:\n    - type: recall.user_cf\n      config:\n        neighbors: many\n"},
		{"fanout without sources", "pipeline:\n  name: x\n  nodes:\n    - type: recall.fanout\n"},
		{"fanout non recall source", "pipeline:\n  name: x\n  nodes:\n    - type: recall.fanout\n      config:\n        sources:\n          - type: rank.sort\n"},
		{"bad merge strategy", "pipeline:\n  name: x\n  nodes:\n    - type: recall.fanout\n      config:\n        merge_strategy: vote\n        sources:\n          - type: recall.content\n"},
		{"unknown filter", "pipeline:\n  name: x\n  nodes:\n    - type: filter\n      config:\n        filters:\n          - type: exposed\n"},
		{"bad expr", "pipeline:\n  name: x\n  nodes:\n    - type: filter\n      config:\n        filters:\n          - type: expr\n            expr: 'item.score >'\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := pipeline.ParseYAML([]byte(tt.doc))
			if err != nil {
				t.Fatalf("ParseYAML() error = %v", err)
			}
			if _, err := config.BuildPipeline(cfg, newResources(t)); err == nil {
				t.Error("BuildPipeline() error = nil, want error")
			}
		})
	}
}

func TestBuildersNeedResources(t *testing.T) {
	empty := &config.Resources{Logger: zerolog.Nop()}
	for _, typ := range []string{"recall.user_cf", "recall.item_cf", "recall.content", "recall.latent", "recall.stored"} {
		if _, err := config.Factory(empty).Build(typ, nil); err == nil {
			t.Errorf("Build(%s) error = nil, want missing resource error", typ)
		}
	}
	node, err := config.Factory(newResources(t)).Build("recall.item_cf", map[string]interface{}{"similarity": "latent"})
	if err != nil {
		t.Fatalf("Build(recall.item_cf) error = %v", err)
	}
	if _, ok := node.(*recall.LatentItemCF); !ok {
		t.Errorf("Build(recall.item_cf latent) = %T, want *recall.LatentItemCF", node)
	}
}

func TestBuildersUseRecommendConfig(t *testing.T) {
	settings := config.RecommendSettings{TopN: 4, Neighbors: 2, QueryRating: 3, PerSeed: 6, Quota: 1}
	res := newResources(t)
	res.Recommend = settings

	topn := []struct {
		name      string
		recommend core.RecommendConfig
		cfg       map[string]interface{}
		want      int
	}{
		{name: "from settings", recommend: settings, want: 4},
		{name: "explicit n", recommend: settings, cfg: map[string]interface{}{"n": 7}, want: 7},
		{name: "builtin default", want: 10},
	}
	for _, tt := range topn {
		t.Run(tt.name, func(t *testing.T) {
			r := newResources(t)
			r.Recommend = tt.recommend
			node, err := config.Factory(r).Build("rerank.topn", tt.cfg)
			if err != nil {
				t.Fatalf("Build(rerank.topn) error = %v", err)
			}
			if got := node.(*rerank.TopNNode).N; got != tt.want {
				t.Errorf("TopNNode.N = %d, want %d", got, tt.want)
			}
		})
	}

	recalls := []struct {
		typ    string
		config func(pipeline.Node) core.RecommendConfig
	}{
		{"recall.user_cf", func(n pipeline.Node) core.RecommendConfig { return n.(*recall.UserBasedCF).Config }},
		{"recall.content", func(n pipeline.Node) core.RecommendConfig { return n.(*recall.ContentRecall).Config }},
		{"recall.latent", func(n pipeline.Node) core.RecommendConfig { return n.(*recall.MFRecall).Config }},
		{"recall.stored", func(n pipeline.Node) core.RecommendConfig { return n.(*recall.StoredNeighbors).Config }},
	}
	for _, tt := range recalls {
		node, err := config.Factory(res).Build(tt.typ, nil)
		if err != nil {
			t.Fatalf("Build(%s) error = %v", tt.typ, err)
		}
		if got := tt.config(node); got != core.RecommendConfig(settings) {
			t.Errorf("Build(%s) Config = %v, want %v", tt.typ, got, settings)
		}
	}
}

func TestSupportedTypes(t *testing.T) {
	got := make(map[string]bool)
	for _, typ := range config.SupportedTypes() {
		got[typ] = true
	}
	for _, want := range []string{"recall.seeds", "recall.user_cf", "recall.item_cf", "recall.content", "recall.latent", "recall.stored", "recall.fanout", "filter", "rank.sort", "rerank.topn", "rerank.diversity"} {
		if !got[want] {
			t.Errorf("SupportedTypes() missing %s", want)
		}
	}
}
