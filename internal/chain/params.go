package chain

import (
	"fmt"

	"github.com/evetabi/bookie/internal/domain"
	"github.com/evetabi/bookie/internal/odds"
)

// OddsTier is one rung of the permitted-odds ladder: every multiplier at or
// below MaxMultiplier (and above the previous tier) must be a multiple of
// Increment.
type OddsTier struct {
	MaxMultiplier int64
	Increment     int64
}

// Parameters are the consensus parameters of the betting engine. They are
// fixed for the lifetime of a chain instance; changing them between blocks
// would break determinism across nodes.
type Parameters struct {
	// MinMultiplier and MaxMultiplier bound the accepted backer multiplier,
	// inclusive on both ends.
	MinMultiplier int64
	MaxMultiplier int64

	// OddsLadder maps multiplier ranges to required increments, ascending by
	// MaxMultiplier. A multiplier above every tier uses the last tier's
	// increment.
	OddsLadder []OddsTier

	// LiveBettingDelay is the number of seconds an in-play bet is held
	// before it may match. Zero disables the delay entirely.
	LiveBettingDelay int64

	// BlockInterval is the target seconds between blocks, added to the live
	// delay because a bet evaluated now is included one block later.
	BlockInterval int64

	// RakeFeeBasisPoints is the fee taken from net settlement winnings,
	// in 1/100ths of a percent, rounded up.
	RakeFeeBasisPoints int64

	// DividendAccount receives the house share of collected rake.
	DividendAccount domain.AccountID
}

// DefaultParameters mirrors a conventional exchange odds ladder: fine
// increments at short odds, coarser steps as odds lengthen.
func DefaultParameters() Parameters {
	return Parameters{
		MinMultiplier: 10100,    // 1.01
		MaxMultiplier: 10000000, // 1000.00
		OddsLadder: []OddsTier{
			{MaxMultiplier: 20000, Increment: 100},      // ≤ 2.00: 0.01
			{MaxMultiplier: 30000, Increment: 200},      // ≤ 3.00: 0.02
			{MaxMultiplier: 40000, Increment: 500},      // ≤ 4.00: 0.05
			{MaxMultiplier: 60000, Increment: 1000},     // ≤ 6.00: 0.10
			{MaxMultiplier: 100000, Increment: 2000},    // ≤ 10.00: 0.20
			{MaxMultiplier: 200000, Increment: 5000},    // ≤ 20.00: 0.50
			{MaxMultiplier: 300000, Increment: 10000},   // ≤ 30.00: 1.00
			{MaxMultiplier: 500000, Increment: 20000},   // ≤ 50.00: 2.00
			{MaxMultiplier: 1000000, Increment: 50000},  // ≤ 100.00: 5.00
			{MaxMultiplier: 10000000, Increment: 100000}, // ≤ 1000.00: 10.00
		},
		LiveBettingDelay:   5,
		BlockInterval:      3,
		RakeFeeBasisPoints: 500, // 5%
		DividendAccount:    0,
	}
}

// IncrementFor returns the odds increment applicable to a multiplier: the
// increment of the smallest tier whose MaxMultiplier is ≥ the multiplier, or
// the last tier's increment past the end of the ladder.
func (p Parameters) IncrementFor(multiplier int64) int64 {
	for _, tier := range p.OddsLadder {
		if multiplier <= tier.MaxMultiplier {
			return tier.Increment
		}
	}
	return p.OddsLadder[len(p.OddsLadder)-1].Increment
}

// ValidateMultiplier checks a requested backer multiplier against the bounds
// and the increment ladder.
func (p Parameters) ValidateMultiplier(multiplier int64) error {
	if multiplier < p.MinMultiplier || multiplier > p.MaxMultiplier {
		return fmt.Errorf("%w: %d not in [%d, %d]",
			domain.ErrOddsOutOfRange, multiplier, p.MinMultiplier, p.MaxMultiplier)
	}
	if inc := p.IncrementFor(multiplier); multiplier%inc != 0 {
		return fmt.Errorf("%w: %d not a multiple of %d", domain.ErrOddsIncrement, multiplier, inc)
	}
	return nil
}

// Validate checks internal consistency of the parameters at startup.
func (p Parameters) Validate() error {
	if p.MinMultiplier <= odds.Precision {
		return fmt.Errorf("min multiplier %d must exceed odds precision %d", p.MinMultiplier, odds.Precision)
	}
	if p.MaxMultiplier < p.MinMultiplier {
		return fmt.Errorf("max multiplier %d below min %d", p.MaxMultiplier, p.MinMultiplier)
	}
	if len(p.OddsLadder) == 0 {
		return fmt.Errorf("odds ladder must have at least one tier")
	}
	prev := int64(0)
	for i, tier := range p.OddsLadder {
		if tier.Increment <= 0 {
			return fmt.Errorf("odds ladder tier %d: increment must be positive", i)
		}
		if tier.MaxMultiplier <= prev {
			return fmt.Errorf("odds ladder tier %d: thresholds must be ascending", i)
		}
		prev = tier.MaxMultiplier
	}
	if p.LiveBettingDelay < 0 || p.BlockInterval <= 0 {
		return fmt.Errorf("invalid timing parameters (delay %d, interval %d)", p.LiveBettingDelay, p.BlockInterval)
	}
	if p.RakeFeeBasisPoints < 0 || p.RakeFeeBasisPoints > 10000 {
		return fmt.Errorf("rake %d basis points out of range", p.RakeFeeBasisPoints)
	}
	return nil
}
