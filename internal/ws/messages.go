// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs broadcast to connected clients.
package ws

import (
	"time"

	"github.com/evetabi/bookie/internal/domain"
	"github.com/evetabi/bookie/internal/odds"
	"github.com/shopspring/decimal"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeNewBlock      MsgType = "new_block"
	MsgTypeBetMatched    MsgType = "bet_matched"
	MsgTypeBetCanceled   MsgType = "bet_canceled"
	MsgTypeBetAdjusted   MsgType = "bet_adjusted"
	MsgTypeGroupResolved MsgType = "group_resolved"
	MsgTypeError         MsgType = "error"
)

// DecimalOdds converts a fixed-point backer multiplier to the decimal odds
// clients display (21000 → "2.1").
func DecimalOdds(multiplier int64) decimal.Decimal {
	return decimal.NewFromInt(multiplier).Div(decimal.NewFromInt(odds.Precision))
}

// ──────────────────────────────────────────────────────────────────────────────
// NewBlockMessage — sent once per produced block.
// ──────────────────────────────────────────────────────────────────────────────

// NewBlockMessage announces a produced block so clients know when to refresh
// books and balances.
type NewBlockMessage struct {
	Type      MsgType   `json:"type"`
	Height    uint64    `json:"height"`
	BlockTime int64     `json:"block_time"`
	TxCount   int       `json:"tx_count"`
	Timestamp time.Time `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Bet lifecycle messages — one per virtual event emitted by the engine.
// ──────────────────────────────────────────────────────────────────────────────

// BetMatchedMessage reports one side of a fill. Odds are the maker's odds the
// match executed at, which may be better than the bet's own limit.
type BetMatchedMessage struct {
	Type               MsgType          `json:"type"`
	Bettor             domain.AccountID `json:"bettor"`
	BetID              domain.BetID     `json:"bet_id"`
	MarketID           domain.MarketID  `json:"market_id"`
	AmountMatched      int64            `json:"amount_matched"`
	Odds               decimal.Decimal  `json:"odds"`
	GuaranteedWinnings int64            `json:"guaranteed_winnings"`
	Timestamp          time.Time        `json:"timestamp"`
}

// BetCanceledMessage reports a bet leaving the book with its remaining stake
// returned.
type BetCanceledMessage struct {
	Type          MsgType          `json:"type"`
	Bettor        domain.AccountID `json:"bettor"`
	BetID         domain.BetID     `json:"bet_id"`
	MarketID      domain.MarketID  `json:"market_id"`
	StakeReturned int64            `json:"stake_returned"`
	Timestamp     time.Time        `json:"timestamp"`
}

// BetAdjustedMessage reports unmatchable stake returned at placement or after
// a cross-odds fill.
type BetAdjustedMessage struct {
	Type          MsgType          `json:"type"`
	Bettor        domain.AccountID `json:"bettor"`
	BetID         domain.BetID     `json:"bet_id"`
	MarketID      domain.MarketID  `json:"market_id"`
	StakeReturned int64            `json:"stake_returned"`
	Timestamp     time.Time        `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// GroupResolvedMessage — broadcast when a group settles.
// ──────────────────────────────────────────────────────────────────────────────

// GroupResolvedMessage carries one bettor's aggregate settlement for a group.
type GroupResolvedMessage struct {
	Type        MsgType          `json:"type"`
	Bettor      domain.AccountID `json:"bettor"`
	GroupID     domain.GroupID   `json:"group_id"`
	TotalPayout int64            `json:"total_payout"`
	FeesPaid    int64            `json:"fees_paid"`
	Timestamp   time.Time        `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ErrorMessage — sent to a single client on a non-fatal error.
// ──────────────────────────────────────────────────────────────────────────────

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}
