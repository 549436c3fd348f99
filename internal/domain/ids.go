// Package domain defines the chain objects of the betting exchange: rules,
// market groups, markets, bets, and per-bettor positions, together with their
// status enums and the virtual events the matching engine emits.
package domain

// Object identifiers are dense uint64 sequences assigned at creation time.
// Bet ids double as the FIFO tiebreaker in the order book, so they must be
// strictly increasing in placement order.
type (
	AccountID uint64
	AssetID   uint64
	EventID   uint64
	RulesID   uint64
	GroupID   uint64
	MarketID  uint64
	BetID     uint64
)

// Ref is an object reference inside an operation. A non-negative value is an
// absolute object id. A negative value is a relative reference resolved
// against objects created by earlier operations in the same transaction:
// -1 is the first object created, -2 the second, and so on.
type Ref int64

// IsRelative reports whether the reference must be resolved against the
// containing transaction before use.
func (r Ref) IsRelative() bool { return r < 0 }

// RelativeIndex returns the zero-based index into the transaction's created
// objects. Only meaningful when IsRelative is true.
func (r Ref) RelativeIndex() int { return int(-r) - 1 }
