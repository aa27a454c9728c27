// Package math holds the integer money arithmetic shared by handlers:
// basis-point scaling, pro-rata panel splits and fraction rounding.
package math

import (
	stdmath "math"
	"math/big"
	"sync"
)

// BpsScale is one whole in basis points.
const BpsScale int64 = 10_000

type RoundingMode int

const (
	RoundHalfEven RoundingMode = iota // Banker's rounding (default)
	RoundDown
	RoundUp
)

// big.Int scratch values for products that can exceed int64
var bigPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getBig() *big.Int {
	return bigPool.Get().(*big.Int)
}

func putBig(v *big.Int) {
	v.SetInt64(0)
	bigPool.Put(v)
}

// MulDiv computes a * b / denominator without intermediate overflow.
// Operands are non-negative money amounts.
func MulDiv(a, b, denominator int64, mode RoundingMode) int64 {
	num := getBig()
	num.Mul(big.NewInt(a), big.NewInt(b))

	quotient := getBig()
	remainder := getBig()
	quotient.DivMod(num, big.NewInt(denominator), remainder)

	result := quotient.Int64()
	if remainder.Sign() != 0 {
		switch mode {
		case RoundUp:
			result++
		case RoundHalfEven:
			twice := getBig()
			twice.Lsh(remainder, 1)
			cmp := twice.Cmp(big.NewInt(denominator))
			if cmp > 0 || (cmp == 0 && result%2 != 0) {
				result++
			}
			putBig(twice)
		}
	}

	putBig(num)
	putBig(quotient)
	putBig(remainder)
	return result
}

// ApplyBps returns amount * bps / 10000.
func ApplyBps(amount, bps int64, mode RoundingMode) int64 {
	return MulDiv(amount, bps, BpsScale, mode)
}

// SplitByShares allocates total across shares given in basis points. Each
// share is floored; the rounding residual goes to the first (lead) entry, so
// the parts always sum to total when the shares sum to 10000.
func SplitByShares(total int64, sharesBps []int64) []int64 {
	parts := make([]int64, len(sharesBps))
	if len(sharesBps) == 0 {
		return parts
	}

	var allocated, shareSum int64
	for i, bps := range sharesBps {
		parts[i] = ApplyBps(total, bps, RoundDown)
		allocated += parts[i]
		shareSum += bps
	}
	if shareSum == BpsScale {
		parts[0] += total - allocated
	}
	return parts
}

// ScaleFraction returns round(fraction * amount), banker's rounding on ties.
func ScaleFraction(amount int64, fraction float64) int64 {
	if fraction <= 0 || amount <= 0 {
		return 0
	}
	return int64(stdmath.RoundToEven(float64(amount) * fraction))
}

// FloorFraction returns floor(fraction * amount). Used for capacity limits,
// which must never round up.
func FloorFraction(amount int64, fraction float64) int64 {
	if fraction <= 0 || amount <= 0 {
		return 0
	}
	return int64(stdmath.Floor(float64(amount) * fraction))
}

// InsuredLayer applies attachment and limit to a ground-up loss:
// max(0, min(gul, limit) - attachment).
func InsuredLayer(gul, attachment, limit int64) int64 {
	layer := min(gul, limit) - attachment
	if layer < 0 {
		return 0
	}
	return layer
}

// Ratio returns num / den, or zero for a non-positive denominator.
func Ratio(num, den int64) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}
