package model

import (
	"reflect"
	"testing"
)

func TestTopStylesPerFeature(t *testing.T) {
	f, err := NewFactors(
		[]string{"u1"},
		[]string{"a", "b", "c", "d", "e", "f", "g"},
		[][]float64{{1, 1}},
		[][]float64{
			{0.9, 0.1}, // a -> 0
			{0.8, 0.2}, // b -> 0
			{0.7, 0.3}, // c -> 0
			{0.6, 0.1}, // d -> 0
			{0.1, 0.9}, // e -> 1
			{0.2, 0.8}, // f -> 1
			{0.5, 0.5}, // g -> 0 (并列取较小下标)
		},
	)
	if err != nil {
		t.Fatalf("NewFactors() error = %v", err)
	}

	categories := map[string]string{
		"a": "IPA",
		"b": "IPA",
		"c": "Stout",
		"d": "Porter",
		"e": "Lager",
		"f": "Lager",
		"g": "IPA",
	}

	got := TopStylesPerFeature(f, categories, 2)
	want := map[int][]StyleCount{
		0: {{Style: "IPA", Count: 3}, {Style: "Porter", Count: 1}},
		1: {{Style: "Lager", Count: 2}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopStylesPerFeature() = %v, want %v", got, want)
	}

	all := TopStylesPerFeature(f, categories, 0)
	if len(all[0]) != 3 {
		t.Errorf("n <= 0 should keep every style, got %v", all[0])
	}
}
