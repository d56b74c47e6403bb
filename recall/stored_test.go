package recall

import (
	"context"
	"testing"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/store"
)

func publishBlock(t *testing.T) (*store.SnapshotStore, []string, *ContentRecall) {
	t.Helper()
	sim, seeds := newBlockSimilarity(t)
	kv := store.NewMemoryStore()
	t.Cleanup(func() { _ = kv.Close() })
	snaps := store.NewSnapshotStore(kv, "test:")
	if err := snaps.PublishNeighbors(context.Background(), sim, 10); err != nil {
		t.Fatalf("PublishNeighbors() error = %v", err)
	}
	return snaps, seeds, &ContentRecall{Similarity: sim}
}

func TestStoredNeighborsMatchesContentRecall(t *testing.T) {
	for _, policy := range []Policy{PolicyGlobal, PolicyRoundRobin} {
		t.Run(string(policy), func(t *testing.T) {
			snaps, seeds, content := publishBlock(t)
			content.Policy = policy
			stored := &StoredNeighbors{Store: snaps, Policy: policy}
			ctx := context.Background()

			want, err := content.Recall(ctx, &core.RecommendContext{Seeds: seeds})
			if err != nil {
				t.Fatalf("ContentRecall.Recall() error = %v", err)
			}
			got, err := stored.Recall(ctx, &core.RecommendContext{Seeds: seeds})
			if err != nil {
				t.Fatalf("StoredNeighbors.Recall() error = %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("StoredNeighbors.Recall() = %v, want %v", core.ItemIDs(got), core.ItemIDs(want))
			}
			for i := range want {
				if got[i].ID != want[i].ID || got[i].Meta["seed"] != want[i].Meta["seed"] {
					t.Errorf("items[%d] = %s (seed %v), want %s (seed %v)",
						i, got[i].ID, got[i].Meta["seed"], want[i].ID, want[i].Meta["seed"])
				}
			}
			if l := got[0].Labels["recall_source"]; l.Value != "stored" {
				t.Errorf("recall_source = %+v, want stored", l)
			}
		})
	}
}

func TestStoredNeighborsErrors(t *testing.T) {
	snaps, seeds, _ := publishBlock(t)
	tests := []struct {
		name  string
		r     *StoredNeighbors
		seeds []string
	}{
		{"no store", &StoredNeighbors{}, seeds},
		{"unpublished seed", &StoredNeighbors{Store: snaps}, []string{"s0", "s1", "s2", "s3", "missing"}},
		{"unknown policy", &StoredNeighbors{Store: snaps, Policy: "random"}, seeds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.r.Recall(context.Background(), &core.RecommendContext{Seeds: tt.seeds})
			if !core.IsInvalidInput(err) {
				t.Errorf("Recall() error = %v, want INVALID_INPUT", err)
			}
		})
	}
}
