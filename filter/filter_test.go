package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/matrix"
	"github.com/rushteam/brewrec/pkg/utils"
	"github.com/rushteam/brewrec/store"
)

func items(ids ...string) []*core.Item {
	out := make([]*core.Item, 0, len(ids))
	for i, id := range ids {
		out = append(out, core.NewScoredItem(id, float64(len(ids)-i)))
	}
	return out
}

func sameIDs(got []*core.Item, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i].ID != want[i] {
			return false
		}
	}
	return true
}

func TestSeedFilter(t *testing.T) {
	n := &FilterNode{Filters: []Filter{&SeedFilter{}}, Logger: zerolog.Nop()}
	rctx := &core.RecommendContext{Seeds: []string{"b", "d"}}

	out, err := n.Process(context.Background(), rctx, items("a", "b", "c", "d", "e"))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !sameIDs(out, "a", "c", "e") {
		t.Errorf("Process() = %v, want [a c e]", core.ItemIDs(out))
	}

	out, _ = n.Process(context.Background(), nil, items("a"))
	if !sameIDs(out, "a") {
		t.Errorf("Process() with nil context = %v, want [a]", core.ItemIDs(out))
	}
}

func TestBlacklistFilter(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()

	adapter := NewStoreAdapter(kv)
	if err := adapter.PutBlacklist(ctx, "blacklist:retired", []string{"c"}); err != nil {
		t.Fatalf("PutBlacklist() error = %v", err)
	}

	tests := []struct {
		name   string
		filter *BlacklistFilter
		want   []string
	}{
		{name: "static ids", filter: NewBlacklistFilter([]string{"a"}, nil, ""), want: []string{"b", "c", "d"}},
		{name: "store backed", filter: NewBlacklistFilter(nil, adapter, "blacklist:retired"), want: []string{"a", "b", "d"}},
		{name: "both", filter: NewBlacklistFilter([]string{"a"}, adapter, "blacklist:retired"), want: []string{"b", "d"}},
		{name: "missing key keeps all", filter: NewBlacklistFilter(nil, adapter, "blacklist:none"), want: []string{"a", "b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &FilterNode{Filters: []Filter{tt.filter}, Strict: true, Logger: zerolog.Nop()}
			out, err := n.Process(ctx, &core.RecommendContext{}, items("a", "b", "c", "d"))
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if !sameIDs(out, tt.want...) {
				t.Errorf("Process() = %v, want %v", core.ItemIDs(out), tt.want)
			}
		})
	}
}

func TestRatedFilter(t *testing.T) {
	u, err := matrix.NewUtilityMatrix(
		[]string{"ann"},
		[]string{"a", "b", "c"},
		[][]float64{{4, 0, 2}},
	)
	if err != nil {
		t.Fatalf("NewUtilityMatrix() error = %v", err)
	}
	n := &FilterNode{Filters: []Filter{&RatedFilter{Utility: u}}, Strict: true, Logger: zerolog.Nop()}

	out, err := n.Process(context.Background(), &core.RecommendContext{UserID: "ann"}, items("a", "b", "c", "x"))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !sameIDs(out, "b", "x") {
		t.Errorf("Process() = %v, want [b x]", core.ItemIDs(out))
	}

	// 显式种子请求不过滤
	out, _ = n.Process(context.Background(), &core.RecommendContext{Seeds: []string{"a"}}, items("a", "b"))
	if !sameIDs(out, "a", "b") {
		t.Errorf("Process() for seed request = %v, want [a b]", core.ItemIDs(out))
	}
}

func TestExprFilter(t *testing.T) {
	low := core.NewScoredItem("low", 0.05)
	high := core.NewScoredItem("high", 0.8)
	high.PutLabel("recall_source", utils.Label{Value: "content", Source: "recall"})
	low.PutLabel("recall_source", utils.Label{Value: "user_cf", Source: "recall"})

	tests := []struct {
		expr string
		want []string
	}{
		{expr: "item.score < 0.1", want: []string{"high"}},
		{expr: `label.recall_source == "content"`, want: []string{"low"}},
		{expr: `item.id in rctx.seeds`, want: []string{"high"}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := NewExprFilter(tt.expr)
			if err != nil {
				t.Fatalf("NewExprFilter() error = %v", err)
			}
			n := &FilterNode{Filters: []Filter{f}, Strict: true, Logger: zerolog.Nop()}
			out, err := n.Process(context.Background(), &core.RecommendContext{Seeds: []string{"low"}}, []*core.Item{high, low})
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if !sameIDs(out, tt.want...) {
				t.Errorf("Process() = %v, want %v", core.ItemIDs(out), tt.want)
			}
		})
	}

	if _, err := NewExprFilter("item.score >"); err == nil {
		t.Error("NewExprFilter() with a syntax error returned nil error")
	}
}

type failingFilter struct{}

func (failingFilter) Name() string { return "filter.failing" }

func (failingFilter) ShouldFilter(context.Context, *core.RecommendContext, *core.Item) (bool, error) {
	return false, errors.New("backend down")
}

func TestFilterNodeStrict(t *testing.T) {
	ctx := context.Background()

	lenient := &FilterNode{Filters: []Filter{failingFilter{}, &SeedFilter{}}, Logger: zerolog.Nop()}
	out, err := lenient.Process(ctx, &core.RecommendContext{Seeds: []string{"a"}}, items("a", "b"))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !sameIDs(out, "b") {
		t.Errorf("Process() = %v, want [b]", core.ItemIDs(out))
	}

	strict := &FilterNode{Filters: []Filter{failingFilter{}}, Strict: true, Logger: zerolog.Nop()}
	if _, err := strict.Process(ctx, nil, items("a")); err == nil {
		t.Error("Process() in strict mode returned nil error")
	}
}

// countingBlacklist 记录 GetBlacklist 的调用次数。
type countingBlacklist struct {
	calls int
	ids   []string
	err   error
}

func (c *countingBlacklist) GetBlacklist(context.Context, string) ([]string, error) {
	c.calls++
	return c.ids, c.err
}

func TestBlacklistPreparedOncePerRequest(t *testing.T) {
	ctx := context.Background()
	src := &countingBlacklist{ids: []string{"b"}}
	n := &FilterNode{Filters: []Filter{&BlacklistFilter{Store: src, Key: "k"}}, Strict: true, Logger: zerolog.Nop()}

	out, err := n.Process(ctx, &core.RecommendContext{}, items("a", "b", "c", "d"))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !sameIDs(out, "a", "c", "d") {
		t.Errorf("Process() = %v, want [a c d]", core.ItemIDs(out))
	}
	if src.calls != 1 {
		t.Errorf("GetBlacklist called %d times, want 1", src.calls)
	}
}

func TestBlacklistPrepareFailure(t *testing.T) {
	ctx := context.Background()
	bad := &BlacklistFilter{Store: &countingBlacklist{err: errors.New("backend down")}, Key: "k"}

	lenient := &FilterNode{Filters: []Filter{bad, &SeedFilter{}}, Logger: zerolog.Nop()}
	out, err := lenient.Process(ctx, &core.RecommendContext{Seeds: []string{"a"}}, items("a", "b"))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !sameIDs(out, "b") {
		t.Errorf("Process() = %v, want [b]", core.ItemIDs(out))
	}

	strict := &FilterNode{Filters: []Filter{bad}, Strict: true, Logger: zerolog.Nop()}
	if _, err := strict.Process(ctx, &core.RecommendContext{}, items("a")); err == nil {
		t.Error("Process() in strict mode returned nil error")
	}
}
