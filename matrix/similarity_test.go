package matrix

import (
	"math"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/brewrec/core"
)

func TestItemCosine(t *testing.T) {
	u := newTestUtility(t)
	sim := ItemCosine(u)

	for _, a := range u.Items() {
		if s, _ := sim.Score(a, a); s != 1 {
			t.Errorf("Score(%s, %s) = %v, want 1", a, a, s)
		}
		for _, b := range u.Items() {
			ab, _ := sim.Score(a, b)
			ba, _ := sim.Score(b, a)
			if ab != ba {
				t.Errorf("Score(%s,%s)=%v != Score(%s,%s)=%v", a, b, ab, b, a, ba)
			}
			if ab < -1 || ab > 1 {
				t.Errorf("Score(%s,%s) = %v out of range", a, b, ab)
			}
		}
	}

	// lager 只被 bob 评过，pils 被 alice/bob 评过
	got, _ := sim.Score("lager", "pils")
	want := 6 / (2 * math.Sqrt(10))
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("Score(lager, pils) = %v, want %v", got, want)
	}
}

func TestNeighborsExcludeSelf(t *testing.T) {
	sim, err := NewSimilarityMatrix(
		[]string{"a", "b", "c", "d"},
		[][]float64{
			{1, 0.5, 0.9, 0.5},
			{0.5, 1, 0.1, 0.2},
			{0.9, 0.1, 1, 0.3},
			{0.5, 0.2, 0.3, 1},
		},
	)
	if err != nil {
		t.Fatalf("NewSimilarityMatrix() error = %v", err)
	}

	got, err := sim.Neighbors("a", 0)
	if err != nil {
		t.Fatalf("Neighbors() error = %v", err)
	}
	want := []Neighbor{{ID: "c", Score: 0.9}, {ID: "b", Score: 0.5}, {ID: "d", Score: 0.5}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Neighbors(a) = %v, want %v", got, want)
	}

	top, _ := sim.Neighbors("a", 1)
	if len(top) != 1 || top[0].ID != "c" {
		t.Errorf("Neighbors(a, 1) = %v", top)
	}
	if _, err := sim.Neighbors("z", 3); !core.IsInvalidInput(err) {
		t.Errorf("Neighbors(unknown) error = %v, want INVALID_INPUT", err)
	}
}

func TestNewSimilarityMatrixValidation(t *testing.T) {
	tests := []struct {
		name string
		rows [][]float64
	}{
		{name: "not square", rows: [][]float64{{1, 0}, {0}}},
		{name: "bad diagonal", rows: [][]float64{{0.5, 0}, {0, 1}}},
		{name: "asymmetric", rows: [][]float64{{1, 0.2}, {0.4, 1}}},
		{name: "out of range", rows: [][]float64{{1, 1.5}, {1.5, 1}}},
		{name: "nan", rows: [][]float64{{1, math.NaN()}, {math.NaN(), 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSimilarityMatrix([]string{"a", "b"}, tt.rows); !core.IsInvalidInput(err) {
				t.Errorf("NewSimilarityMatrix() error = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestFromFeatures(t *testing.T) {
	features := mat.NewDense(3, 2, []float64{
		1, 0,
		2, 0,
		0, 1,
	})
	sim, err := FromFeatures([]string{"x", "y", "z"}, features)
	if err != nil {
		t.Fatalf("FromFeatures() error = %v", err)
	}
	if s, _ := sim.Score("x", "y"); math.Abs(s-1) > 1e-12 {
		t.Errorf("Score(x, y) = %v, want 1", s)
	}
	if s, _ := sim.Score("x", "z"); s != 0 {
		t.Errorf("Score(x, z) = %v, want 0", s)
	}
	if _, err := FromFeatures([]string{"x"}, features); !core.IsInvalidInput(err) {
		t.Errorf("FromFeatures(mismatch) error = %v, want INVALID_INPUT", err)
	}
}
