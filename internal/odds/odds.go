// Package odds implements the exact ratio arithmetic behind back/lay
// matching at fractional decimal odds. All odds are carried as a fixed-point
// "backer multiplier": decimal odds scaled by Precision, always quoted from
// the backer's perspective regardless of which side holds them.
package odds

import (
	"fmt"
	"math/big"

	"github.com/evetabi/bookie/internal/domain"
)

// Precision is the fixed-point scale of a backer multiplier: decimal odds
// 2.00 are stored as 2 * Precision.
const Precision int64 = 10000

// Ratio returns the smallest integer stake pair (back, lay) that matches
// exactly at the given multiplier: back = Precision/g, lay =
// (multiplier−Precision)/g where g = gcd(Precision, multiplier−Precision).
// The pair is always coprime.
//
// Multipliers at or below Precision (decimal odds ≤ 1.00) cannot occur past
// admission validation; seeing one here is a violated invariant.
func Ratio(multiplier int64) (back, lay int64) {
	profit := multiplier - Precision
	if profit <= 0 {
		panic(fmt.Sprintf("odds: invalid backer multiplier %d", multiplier))
	}
	g := gcd(Precision, profit)
	return Precision / g, profit / g
}

// MinimumMatchableAmount is the smallest stake a bet on the given side could
// ever contribute to a match at this multiplier: the bet's own ratio unit.
// Stakes are rounded down to a multiple of this at placement so every
// resting bet can match exactly.
func MinimumMatchableAmount(multiplier int64, side domain.BetSide) int64 {
	back, lay := Ratio(multiplier)
	if side == domain.Back {
		return back
	}
	return lay
}

// MinimumMatchingAmount is the smallest stake a counter-party would need to
// contribute to match this bet: the opposite side's ratio unit.
func MinimumMatchingAmount(multiplier int64, side domain.BetSide) int64 {
	back, lay := Ratio(multiplier)
	if side == domain.Back {
		return lay
	}
	return back
}

// ExactMatchingAmount returns the opposite-side stake that exactly balances
// amount at this multiplier. The division is exact only when amount is a
// multiple of the bet's own ratio unit; callers must guarantee alignment.
func ExactMatchingAmount(amount, multiplier int64, side domain.BetSide) int64 {
	back, lay := Ratio(multiplier)
	if side == domain.Back {
		return amount / back * lay
	}
	return amount / lay * back
}

// ApproximateMatchingAmount computes the opposite-side stake without
// requiring ratio alignment, truncating (or rounding up) the remainder. The
// intermediate product can exceed 64 bits for realistic stakes, so it is
// computed at arbitrary precision and narrowed only at the end.
func ApproximateMatchingAmount(amount, multiplier int64, side domain.BetSide, roundUp bool) int64 {
	profit := multiplier - Precision
	if profit <= 0 {
		panic(fmt.Sprintf("odds: invalid backer multiplier %d", multiplier))
	}
	num, den := profit, Precision
	if side == domain.Lay {
		num, den = Precision, profit
	}

	wide := new(big.Int).Mul(big.NewInt(amount), big.NewInt(num))
	if roundUp {
		wide.Add(wide, big.NewInt(den-1))
	}
	wide.Quo(wide, big.NewInt(den))
	if !wide.IsInt64() {
		panic(fmt.Sprintf("odds: matching amount overflows int64 (amount=%d multiplier=%d)", amount, multiplier))
	}
	return wide.Int64()
}

// AlignDown rounds amount down to the nearest multiple of the bet's own
// ratio unit at this multiplier. The result is the largest stake that can
// rest on the book and still match exactly; zero means the bet is too small
// to ever match.
func AlignDown(amount, multiplier int64, side domain.BetSide) int64 {
	unit := MinimumMatchableAmount(multiplier, side)
	return amount - amount%unit
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
