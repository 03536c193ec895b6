package verdict

import (
	"math"
	"testing"
)

func TestNewPolicy_Validation(t *testing.T) {
	tests := []struct {
		auto, suggest float64
		wantErr       bool
	}{
		{0.9, 0.6, false},
		{1, 0, false},
		{0.5, 0.5, false},
		{0.6, 0.9, true},
		{1.1, 0.6, true},
		{0.9, -0.1, true},
		{math.NaN(), 0.6, true},
	}
	for _, tc := range tests {
		_, err := NewPolicy(tc.auto, tc.suggest)
		if (err != nil) != tc.wantErr {
			t.Errorf("NewPolicy(%v, %v): err=%v, wantErr=%v", tc.auto, tc.suggest, err, tc.wantErr)
		}
	}
}

func TestDecide(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		prob float64
		want Verdict
	}{
		{0.99, Auto},
		{0.9, Auto},
		{0.89, Suggest},
		{0.6, Suggest},
		{0.59, None},
		{0.5, None},
		{0, None},
	}
	for _, tc := range tests {
		if got := p.Decide(tc.prob); got != tc.want {
			t.Errorf("Decide(%v) = %s, want %s", tc.prob, got, tc.want)
		}
	}
}

func TestThresholdAccessors(t *testing.T) {
	p, err := NewPolicy(0.8, 0.7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.AutoThreshold() != 0.8 || p.SuggestThreshold() != 0.7 {
		t.Errorf("got %v/%v", p.AutoThreshold(), p.SuggestThreshold())
	}
}
