package domain

// Virtual events are not submitted operations; they are produced as side
// effects of applying a block and materialized for downstream consumers
// (audit journal, websocket feed).

// VirtualEventType identifies the kind of a virtual event.
type VirtualEventType string

const (
	EventBetMatched    VirtualEventType = "bet_matched"
	EventBetCanceled   VirtualEventType = "bet_canceled"
	EventBetAdjusted   VirtualEventType = "bet_adjusted"
	EventGroupResolved VirtualEventType = "group_resolved"
)

// VirtualEvent is implemented by every event the engine emits.
type VirtualEvent interface {
	Type() VirtualEventType
}

// BetMatchedEvent records one side of a fill: the actual multiplier is the
// maker's odds the match executed at, which may be better than the bet's own
// limit.
type BetMatchedEvent struct {
	Bettor             AccountID        `json:"bettor"`
	BetID              BetID            `json:"bet_id"`
	MarketID           MarketID         `json:"market_id"`
	AmountMatched      int64            `json:"amount_matched"`
	BackerMultiplier   int64            `json:"backer_multiplier"`
	GuaranteedWinnings int64            `json:"guaranteed_winnings"`
	Asset              AssetID          `json:"asset_id"`
	Kind               VirtualEventType `json:"type"`
}

// Type implements VirtualEvent.
func (BetMatchedEvent) Type() VirtualEventType { return EventBetMatched }

// BetCanceledEvent records a bet leaving the book with its remaining stake
// returned to the bettor.
type BetCanceledEvent struct {
	Bettor        AccountID        `json:"bettor"`
	BetID         BetID            `json:"bet_id"`
	MarketID      MarketID         `json:"market_id"`
	StakeReturned int64            `json:"stake_returned"`
	Asset         AssetID          `json:"asset_id"`
	Kind          VirtualEventType `json:"type"`
}

// Type implements VirtualEvent.
func (BetCanceledEvent) Type() VirtualEventType { return EventBetCanceled }

// BetAdjustedEvent records stake returned to the bettor because it could
// never match exactly at the bet's odds (placement rounding or a
// cross-odds fill remainder).
type BetAdjustedEvent struct {
	Bettor        AccountID        `json:"bettor"`
	BetID         BetID            `json:"bet_id"`
	MarketID      MarketID         `json:"market_id"`
	StakeReturned int64            `json:"stake_returned"`
	Asset         AssetID          `json:"asset_id"`
	Kind          VirtualEventType `json:"type"`
}

// Type implements VirtualEvent.
func (BetAdjustedEvent) Type() VirtualEventType { return EventBetAdjusted }

// GroupResolvedEvent is emitted once per bettor when a group settles,
// carrying the full resolution map and the bettor's aggregate payout and
// rake fees.
type GroupResolvedEvent struct {
	Bettor      AccountID               `json:"bettor"`
	GroupID     GroupID                 `json:"group_id"`
	Resolutions map[MarketID]Resolution `json:"resolutions"`
	TotalPayout int64                   `json:"total_payout"`
	FeesPaid    int64                   `json:"fees_paid"`
	Asset       AssetID                 `json:"asset_id"`
	Kind        VirtualEventType        `json:"type"`
}

// Type implements VirtualEvent.
func (GroupResolvedEvent) Type() VirtualEventType { return EventGroupResolved }
