package domain

// ──────────────────────────────────────────────────────────────────────────────
// Sides
// ──────────────────────────────────────────────────────────────────────────────

// BetSide distinguishes backing an outcome from laying it. The numeric order
// (back before lay) is part of the order-book sort key.
type BetSide uint8

const (
	Back BetSide = iota
	Lay
)

// Opposite returns the other side.
func (s BetSide) Opposite() BetSide {
	if s == Back {
		return Lay
	}
	return Back
}

// String returns "back" or "lay".
func (s BetSide) String() string {
	if s == Back {
		return "back"
	}
	return "lay"
}

// ──────────────────────────────────────────────────────────────────────────────
// Bet
// ──────────────────────────────────────────────────────────────────────────────

// Bet is an outstanding order-book entry. Amount is the remaining unmatched
// stake and is the only field that ever mutates after placement; partial
// fills shrink it in place, full fills or cancellation remove the bet.
type Bet struct {
	ID       BetID
	Bettor   AccountID
	MarketID MarketID

	// Amount is the remaining stake, denominated in AssetID.
	Amount  int64
	AssetID AssetID

	// BackerMultiplier is the fixed-point decimal odds scaled by
	// odds.Precision, always quoted from the backer's perspective even for
	// lay bets.
	BackerMultiplier int64
	Side             BetSide

	// EndOfDelay is the block time (unix seconds) at which a live bet
	// becomes eligible for matching; 0 means the bet is not delayed.
	EndOfDelay int64
}

// Delayed reports whether the bet is still held in the live-betting delay
// queue.
func (b *Bet) Delayed() bool { return b.EndOfDelay != 0 }
