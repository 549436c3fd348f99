package domain

// ──────────────────────────────────────────────────────────────────────────────
// Statuses & resolutions
// ──────────────────────────────────────────────────────────────────────────────

// MarketStatus is the lifecycle state of a single market inside a group.
type MarketStatus uint8

const (
	MarketUnresolved MarketStatus = iota
	MarketFrozen
	MarketClosed
	MarketGraded
	MarketCanceled
	MarketSettled
)

// String returns the internal name of the status.
func (s MarketStatus) String() string {
	switch s {
	case MarketUnresolved:
		return "unresolved"
	case MarketFrozen:
		return "frozen"
	case MarketClosed:
		return "closed"
	case MarketGraded:
		return "graded"
	case MarketCanceled:
		return "canceled"
	case MarketSettled:
		return "settled"
	}
	return "unknown"
}

// Resolution is the published outcome of a single market.
type Resolution uint8

const (
	// ResolutionUnset means the market has not been graded yet.
	ResolutionUnset Resolution = iota
	ResolutionWin
	ResolutionNotWin
	ResolutionCancel
)

// String returns the wire name of the resolution.
func (r Resolution) String() string {
	switch r {
	case ResolutionWin:
		return "win"
	case ResolutionNotWin:
		return "not_win"
	case ResolutionCancel:
		return "cancel"
	}
	return "unset"
}

// ──────────────────────────────────────────────────────────────────────────────
// Market
// ──────────────────────────────────────────────────────────────────────────────

// Market is a single payout condition within a group, e.g. one outcome of a
// match. Its lifecycle is driven by, and reported to, its owning group.
type Market struct {
	ID              MarketID
	GroupID         GroupID
	Description     string
	PayoutCondition string

	// Resolution is set exactly once when the market transitions
	// closed→graded, except that cancellation overwrites it to cancel.
	Resolution Resolution

	Status MarketStatus
}

// EffectiveStatus is the status reported to external consumers. The closed
// internal state only gates grading eligibility and is masked as unresolved;
// only the group is ever publicly "closed".
func (m *Market) EffectiveStatus() MarketStatus {
	if m.Status == MarketClosed {
		return MarketUnresolved
	}
	return m.Status
}

// Matchable reports whether bets on this market may still match: the market
// must be externally unresolved (which includes the internally closed state
// only if grading has not begun — closed markets are not matchable).
func (m *Market) Matchable() bool {
	return m.Status == MarketUnresolved
}
