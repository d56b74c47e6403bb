package recall

import (
	"context"
	"math"
	"testing"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/matrix"
)

// 种子为 a..e；u1 在种子列上与查询用户同向，u2 只评过 a，u3 没评过任何种子。
func newCFUtility(t *testing.T) *matrix.UtilityMatrix {
	t.Helper()
	u, err := matrix.NewUtilityMatrix(
		[]string{"u1", "u2", "u3"},
		[]string{"a", "b", "c", "d", "e", "f", "g", "h"},
		[][]float64{
			{5, 5, 5, 5, 5, 4, 0, 0},
			{5, 0, 0, 0, 0, 2, 3, 0},
			{0, 0, 0, 0, 0, 0, 5, 0},
		},
	)
	if err != nil {
		t.Fatalf("NewUtilityMatrix() error = %v", err)
	}
	return u
}

func scoresByID(items []*core.Item) map[string]float64 {
	out := make(map[string]float64, len(items))
	for _, it := range items {
		out[it.ID] = it.Score
	}
	return out
}

func TestUserBasedCFPrediction(t *testing.T) {
	u := newCFUtility(t)
	seeds := []string{"a", "b", "c", "d", "e"}
	sim2 := 1 / math.Sqrt(5)

	tests := []struct {
		name      string
		neighbors int
		want      map[string]float64
	}{
		{
			name:      "default neighbors",
			neighbors: 0,
			want: map[string]float64{
				"f": (4*1 + 2*sim2) / 2,
				"g": (3*sim2 + 5*0) / 2,
			},
		},
		{
			name:      "single neighbor",
			neighbors: 1,
			want: map[string]float64{
				"f": 4,
				"g": 3 * sim2,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &UserBasedCF{Utility: u, Neighbors: tt.neighbors}
			items, err := r.Recall(context.Background(), &core.RecommendContext{Seeds: seeds})
			if err != nil {
				t.Fatalf("Recall() error = %v", err)
			}
			if len(items) != 3 {
				t.Fatalf("Recall() returned %d items, want 3 non-seed items", len(items))
			}
			got := scoresByID(items)
			for id, want := range tt.want {
				if math.Abs(got[id]-want) > 1e-9 {
					t.Errorf("score[%s] = %v, want %v", id, got[id], want)
				}
			}
			if !math.IsNaN(got["h"]) {
				t.Errorf("score[h] = %v, want NaN for an item no neighbor rated", got["h"])
			}
			for _, s := range seeds {
				if _, ok := got[s]; ok {
					t.Errorf("seed %s returned as candidate", s)
				}
			}
		})
	}

	if u.NumUsers() != 3 {
		t.Errorf("UserBasedCF mutated the shared utility matrix")
	}
}

func TestUserBasedCFErrors(t *testing.T) {
	u := newCFUtility(t)
	r := &UserBasedCF{Utility: u}

	tests := []struct {
		name             string
		rctx             *core.RecommendContext
		wantInvalid      bool
		wantInsufficient bool
	}{
		{name: "unknown seed", rctx: &core.RecommendContext{Seeds: []string{"a", "b", "c", "d", "zz"}}, wantInvalid: true},
		{name: "four seeds", rctx: &core.RecommendContext{Seeds: []string{"a", "b", "c", "d"}}, wantInvalid: true},
		{name: "unknown user", rctx: &core.RecommendContext{UserID: "nobody"}, wantInvalid: true},
		{name: "user with few ratings", rctx: &core.RecommendContext{UserID: "u2"}, wantInsufficient: true},
		{name: "empty request", rctx: &core.RecommendContext{}, wantInvalid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Recall(context.Background(), tt.rctx)
			if core.IsInvalidInput(err) != tt.wantInvalid {
				t.Errorf("IsInvalidInput(%v) = %v, want %v", err, core.IsInvalidInput(err), tt.wantInvalid)
			}
			if core.IsInsufficientData(err) != tt.wantInsufficient {
				t.Errorf("IsInsufficientData(%v) = %v, want %v", err, core.IsInsufficientData(err), tt.wantInsufficient)
			}
		})
	}
}

func TestResolveSeedsExistingUser(t *testing.T) {
	u, err := matrix.NewUtilityMatrix(
		[]string{"fan"},
		[]string{"a", "b", "c", "d", "e", "f", "g"},
		[][]float64{{3, 5, 4, 4, 1, 2, 5}},
	)
	if err != nil {
		t.Fatalf("NewUtilityMatrix() error = %v", err)
	}
	rctx := &core.RecommendContext{UserID: "fan"}
	seeds, err := ResolveSeeds(u, rctx)
	if err != nil {
		t.Fatalf("ResolveSeeds() error = %v", err)
	}
	want := []string{"b", "g", "c", "d", "a"}
	for i := range want {
		if seeds[i] != want[i] {
			t.Fatalf("ResolveSeeds() = %v, want %v", seeds, want)
		}
	}
	if len(rctx.Seeds) != 5 {
		t.Errorf("rctx.Seeds not written back: %v", rctx.Seeds)
	}
}

func TestItemBasedCF(t *testing.T) {
	ids := []string{"s1", "s2", "s3", "s4", "s5", "x", "y"}
	rows := identity(len(ids))
	setSym(rows, 5, 0, 0.5) // x~s1
	setSym(rows, 5, 1, 0.5) // x~s2
	setSym(rows, 6, 2, 0.9) // y~s3
	sim, err := matrix.NewSimilarityMatrix(ids, rows)
	if err != nil {
		t.Fatalf("NewSimilarityMatrix() error = %v", err)
	}
	seeds := []string{"s1", "s2", "s3", "s4", "s5"}

	r := &ItemBasedCF{
		Similarity: sim,
		ItemMeans:  map[string]float64{"x": 4, "y": 3},
	}
	items, err := r.Recall(context.Background(), &core.RecommendContext{Seeds: seeds})
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	got := scoresByID(items)
	if len(got) != 2 {
		t.Fatalf("Recall() = %v, want only x and y", got)
	}
	if math.Abs(got["x"]-4*1.0) > 1e-12 {
		t.Errorf("score[x] = %v, want 4", got["x"])
	}
	if math.Abs(got["y"]-3*0.9) > 1e-12 {
		t.Errorf("score[y] = %v, want 2.7", got["y"])
	}

	// 没有平均分的物品预测值未定义
	r.ItemMeans = map[string]float64{"x": 4}
	items, err = r.Recall(context.Background(), &core.RecommendContext{Seeds: seeds})
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if got := scoresByID(items); !math.IsNaN(got["y"]) {
		t.Errorf("score[y] = %v, want NaN", got["y"])
	}
}

func TestItemBasedCFWithUtility(t *testing.T) {
	u := newCFUtility(t)
	sim := matrix.ItemCosine(u)
	r := &ItemBasedCF{Utility: u, Similarity: sim}

	items, err := r.Recall(context.Background(), &core.RecommendContext{Seeds: []string{"a", "b", "c", "d", "e"}})
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	got := scoresByID(items)
	if len(got) != 3 {
		t.Fatalf("Recall() = %v, want f, g, h", got)
	}
	mean, _ := u.ItemMean("f")
	var simSum float64
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		v, _ := sim.Score("f", s)
		simSum += v
	}
	if math.Abs(got["f"]-mean*simSum) > 1e-12 {
		t.Errorf("score[f] = %v, want %v", got["f"], mean*simSum)
	}
	if !math.IsNaN(got["h"]) {
		t.Errorf("score[h] = %v, want NaN for an unrated item", got["h"])
	}
}

func identity(n int) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		rows[i][i] = 1
	}
	return rows
}

func setSym(rows [][]float64, i, j int, v float64) {
	rows[i][j] = v
	rows[j][i] = v
}
