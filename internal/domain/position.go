package domain

// Position accumulates the net payoff consequences of every bet a bettor has
// matched on one market. The four pay-if accumulators are always ≥ 0; Reduce
// keeps them minimal by converting offsetting branches into guaranteed
// winnings that are returned to the bettor immediately.
type Position struct {
	Bettor   AccountID
	MarketID MarketID

	PayIfPayoutCondition    int64
	PayIfNotPayoutCondition int64
	PayIfCanceled           int64
	PayIfNotCanceled        int64

	FeesCollected int64
}

// Reduce cancels out branches of the position that pay regardless of the
// market outcome and returns the amount that has become riskless. The total
// economic exposure is preserved:
//
//	win pays    PayIfPayoutCondition    + PayIfNotCanceled
//	not_win     PayIfNotPayoutCondition + PayIfNotCanceled
//	cancel      PayIfCanceled
//
// First, the overlap of the win/not-win branches moves into PayIfNotCanceled
// (paid under every non-canceled outcome). Then the overlap of the canceled
// and not-canceled branches is paid under every outcome whatsoever, so it is
// extracted and returned as immediate winnings.
func (p *Position) Reduce() int64 {
	paysRegardlessOfOutcome := min64(p.PayIfPayoutCondition, p.PayIfNotPayoutCondition)
	p.PayIfPayoutCondition -= paysRegardlessOfOutcome
	p.PayIfNotPayoutCondition -= paysRegardlessOfOutcome
	p.PayIfNotCanceled += paysRegardlessOfOutcome

	winnings := min64(p.PayIfCanceled, p.PayIfNotCanceled)
	p.PayIfCanceled -= winnings
	p.PayIfNotCanceled -= winnings
	return winnings
}

// Payout returns the amount this position pays under the given resolution.
func (p *Position) Payout(r Resolution) int64 {
	switch r {
	case ResolutionWin:
		return p.PayIfPayoutCondition + p.PayIfNotCanceled
	case ResolutionNotWin:
		return p.PayIfNotPayoutCondition + p.PayIfNotCanceled
	case ResolutionCancel:
		return p.PayIfCanceled
	}
	return 0
}

// Empty reports whether every accumulator is zero.
func (p *Position) Empty() bool {
	return p.PayIfPayoutCondition == 0 &&
		p.PayIfNotPayoutCondition == 0 &&
		p.PayIfCanceled == 0 &&
		p.PayIfNotCanceled == 0
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
