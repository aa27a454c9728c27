package math_test

import (
	fpmath "InsMarket/internal/math"
	"testing"
)

func TestMulDivRounding(t *testing.T) {
	tests := []struct {
		name    string
		a, b, d int64
		mode    fpmath.RoundingMode
		want    int64
	}{
		{"exact", 100, 500, 10_000, fpmath.RoundHalfEven, 5},
		{"down", 7, 1, 2, fpmath.RoundDown, 3},
		{"up", 7, 1, 2, fpmath.RoundUp, 4},
		{"half even rounds to even", 5, 1, 2, fpmath.RoundHalfEven, 2},
		{"half even rounds up odd", 7, 1, 2, fpmath.RoundHalfEven, 4},
		{"large operands", 9_000_000_000_000, 9_000, 10_000, fpmath.RoundDown, 8_100_000_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fpmath.MulDiv(tt.a, tt.b, tt.d, tt.mode); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSplitByShares_ConservesTotal(t *testing.T) {
	parts := fpmath.SplitByShares(101, []int64{3334, 3333, 3333})
	var sum int64
	for _, p := range parts {
		sum += p
	}
	if sum != 101 {
		t.Fatalf("sum of parts: got %d, want 101", sum)
	}
	if parts[1] != 33 || parts[2] != 33 {
		t.Errorf("followers: got %v", parts)
	}
	if parts[0] != 35 {
		t.Errorf("lead takes residual: got %d, want 35", parts[0])
	}
}

func TestSplitByShares_SingleEntry(t *testing.T) {
	parts := fpmath.SplitByShares(40, []int64{fpmath.BpsScale})
	if len(parts) != 1 || parts[0] != 40 {
		t.Errorf("got %v, want [40]", parts)
	}
}

func TestInsuredLayer(t *testing.T) {
	tests := []struct {
		gul, attachment, limit, want int64
	}{
		{40, 0, 100, 40},
		{150, 0, 100, 100},
		{30, 50, 100, 0},
		{80, 50, 100, 30},
	}
	for _, tt := range tests {
		if got := fpmath.InsuredLayer(tt.gul, tt.attachment, tt.limit); got != tt.want {
			t.Errorf("InsuredLayer(%d, %d, %d): got %d, want %d", tt.gul, tt.attachment, tt.limit, got, tt.want)
		}
	}
}

func TestScaleFraction(t *testing.T) {
	if got := fpmath.ScaleFraction(100, 0.4); got != 40 {
		t.Errorf("got %d, want 40", got)
	}
	if got := fpmath.ScaleFraction(100, 0); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
	if got := fpmath.FloorFraction(99, 0.25); got != 24 {
		t.Errorf("FloorFraction: got %d, want 24", got)
	}
}
