package service

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/matrix"
	"github.com/rushteam/brewrec/model"
)

var testStyles = []string{"IPA", "Stout", "Lager", "Porter", "Sour"}

// testSeeds 每个风格取一个。
var testSeeds = []string{"IPA 0", "Stout 0", "Lager 0", "Porter 0", "Sour 0"}

// newRatingLog 生成 20 个用户、5 个风格各 8 款啤酒的评分日志：
// 每个用户给自己偏好的风格全部打高分，给下一个风格的前 3 款打低分。
// 另有一个只评过 2 款啤酒的新用户 newbie。
func newRatingLog() core.RatingLog {
	var log core.RatingLog
	for u := 0; u < 20; u++ {
		user := fmt.Sprintf("u%02d", u)
		own := u % len(testStyles)
		next := (own + 1) % len(testStyles)
		for k := 0; k < 8; k++ {
			log = append(log, core.Rating{
				UserID:   user,
				ItemID:   fmt.Sprintf("%s %d", testStyles[own], k),
				Value:    float64(3 + (u+k)%3),
				Category: testStyles[own],
			})
		}
		for k := 0; k < 3; k++ {
			log = append(log, core.Rating{
				UserID:   user,
				ItemID:   fmt.Sprintf("%s %d", testStyles[next], k),
				Value:    float64(1 + (u+k)%2),
				Category: testStyles[next],
			})
		}
	}
	log = append(log,
		core.Rating{UserID: "newbie", ItemID: "IPA 1", Value: 5, Category: "IPA"},
		core.Rating{UserID: "newbie", ItemID: "Sour 2", Value: 2, Category: "Sour"},
	)
	return log
}

func testNMF() model.NMFConfig {
	return model.NMFConfig{Features: 5, MaxIter: 100, Tol: 1e-6, Seed: 42}
}

func newTestSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	log := newRatingLog()
	u, err := matrix.FromRatings(log)
	if err != nil {
		t.Fatalf("FromRatings() error = %v", err)
	}
	return &Snapshot{Ratings: log, Utility: u}
}

func newTestService(t *testing.T, settings Settings) *Service {
	t.Helper()
	if settings.NMF.Features == 0 {
		settings.NMF = testNMF()
	}
	svc, err := New(newTestSnapshot(t), settings, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc
}

func assertResult(t *testing.T, res *Result, seeds []string) {
	t.Helper()
	ids := res.IDs()
	if len(ids) != 10 {
		t.Fatalf("got %d items %v, want 10", len(ids), ids)
	}
	seen := make(map[string]bool, 15)
	for _, s := range seeds {
		seen[s] = true
	}
	for _, id := range ids {
		if seen[id] {
			t.Errorf("item %q repeats or is a seed (seeds %v, result %v)", id, seeds, ids)
		}
		seen[id] = true
	}
}
