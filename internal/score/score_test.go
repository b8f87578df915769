package score

import (
	"math/rand"
	"testing"
)

func TestApplyNeverNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	total := 0
	for i := 0; i < 10000; i++ {
		total = Apply(total, rng.Intn(31)-20)
		if total < 0 {
			t.Fatalf("score went negative: %d", total)
		}
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		total, delta, want int
	}{
		{0, -5, 0},
		{3, -5, 0},
		{10, -5, 5},
		{10, 8, 18},
	}
	for _, tt := range tests {
		if got := Apply(tt.total, tt.delta); got != tt.want {
			t.Errorf("Apply(%d, %d) = %d, want %d", tt.total, tt.delta, got, tt.want)
		}
	}
}

func TestComplete(t *testing.T) {
	c := Complete(Base, OriginalityBonus, 35)
	if c.Total != 18 || c.TimeBonus != 3 {
		t.Fatalf("Complete = %+v, want total 18 with time bonus 3", c)
	}
	if got := Complete(Base, 0, 0).Total; got != 10 {
		t.Fatalf("no bonus total = %d, want 10", got)
	}
	if got := TimeBonus(60); got != 6 {
		t.Fatalf("TimeBonus(60) = %d", got)
	}
}
