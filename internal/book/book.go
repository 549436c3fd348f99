// Package book holds the in-memory index of outstanding bets. A single
// ordered slice carries the by-odds book order; auxiliary maps provide the
// by-id and by-market views. The structure is purely deterministic: no
// wall-clock reads, no randomized iteration.
package book

import (
	"sort"

	"github.com/evetabi/bookie/internal/domain"
)

// OrderBook indexes live bets three ways:
//
//  1. book order: delayed bets first (earlier end-of-delay first), then by
//     market, side, multiplier — ascending for back bets and descending for
//     lay bets so a forward scan over the opposite side meets the best
//     available odds first — with bet id as the FIFO tiebreaker;
//  2. by bet id;
//  3. by market id, for market-wide sweeps that must not depend on the
//     odds comparator.
//
// Sort keys never change while a bet is in the book: partial fills only
// shrink Amount, and clearing a delay is done by remove-then-reinsert.
type OrderBook struct {
	byOdds   []*domain.Bet
	byID     map[domain.BetID]*domain.Bet
	byMarket map[domain.MarketID]map[domain.BetID]*domain.Bet
}

// New returns an empty order book.
func New() *OrderBook {
	return &OrderBook{
		byID:     make(map[domain.BetID]*domain.Bet),
		byMarket: make(map[domain.MarketID]map[domain.BetID]*domain.Bet),
	}
}

// less is the book-order comparator described above.
func less(a, b *domain.Bet) bool {
	ad, bd := a.Delayed(), b.Delayed()
	if ad != bd {
		return ad
	}
	if ad {
		if a.EndOfDelay != b.EndOfDelay {
			return a.EndOfDelay < b.EndOfDelay
		}
		return a.ID < b.ID
	}
	if a.MarketID != b.MarketID {
		return a.MarketID < b.MarketID
	}
	if a.Side != b.Side {
		return a.Side < b.Side
	}
	if a.BackerMultiplier != b.BackerMultiplier {
		if a.Side == domain.Back {
			return a.BackerMultiplier < b.BackerMultiplier
		}
		return a.BackerMultiplier > b.BackerMultiplier
	}
	return a.ID < b.ID
}

// Insert adds a bet to every index. Inserting an id twice is a programming
// error and panics.
func (ob *OrderBook) Insert(b *domain.Bet) {
	if _, dup := ob.byID[b.ID]; dup {
		panic("book: duplicate bet id")
	}
	i := sort.Search(len(ob.byOdds), func(i int) bool { return !less(ob.byOdds[i], b) })
	ob.byOdds = append(ob.byOdds, nil)
	copy(ob.byOdds[i+1:], ob.byOdds[i:])
	ob.byOdds[i] = b

	ob.byID[b.ID] = b
	mkt := ob.byMarket[b.MarketID]
	if mkt == nil {
		mkt = make(map[domain.BetID]*domain.Bet)
		ob.byMarket[b.MarketID] = mkt
	}
	mkt[b.ID] = b
}

// Remove deletes a bet from every index and returns it, or nil if absent.
func (ob *OrderBook) Remove(id domain.BetID) *domain.Bet {
	b, ok := ob.byID[id]
	if !ok {
		return nil
	}
	i := ob.position(b)
	ob.byOdds = append(ob.byOdds[:i], ob.byOdds[i+1:]...)
	delete(ob.byID, id)
	if mkt := ob.byMarket[b.MarketID]; mkt != nil {
		delete(mkt, id)
		if len(mkt) == 0 {
			delete(ob.byMarket, b.MarketID)
		}
	}
	return b
}

// position locates a bet known to be in the book.
func (ob *OrderBook) position(b *domain.Bet) int {
	i := sort.Search(len(ob.byOdds), func(i int) bool { return !less(ob.byOdds[i], b) })
	for ; i < len(ob.byOdds); i++ {
		if ob.byOdds[i].ID == b.ID {
			return i
		}
		if less(b, ob.byOdds[i]) {
			break
		}
	}
	panic("book: bet present in byID but not in byOdds")
}

// Get returns the bet with the given id, or nil.
func (ob *OrderBook) Get(id domain.BetID) *domain.Bet {
	return ob.byID[id]
}

// Len returns the number of resting bets.
func (ob *OrderBook) Len() int { return len(ob.byOdds) }

// Delayed returns the delayed-bet prefix of the book in release order
// (earliest end-of-delay first). The slice is a copy, safe to iterate while
// removing entries.
func (ob *OrderBook) Delayed() []*domain.Bet {
	var out []*domain.Bet
	for _, b := range ob.byOdds {
		if !b.Delayed() {
			break
		}
		out = append(out, b)
	}
	return out
}

// MarketBets returns every bet in the market — delayed or not — in bet-id
// order, using the by-market index rather than the odds comparator. The
// slice is a copy.
func (ob *OrderBook) MarketBets(marketID domain.MarketID) []*domain.Bet {
	mkt := ob.byMarket[marketID]
	out := make([]*domain.Bet, 0, len(mkt))
	for _, b := range mkt {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RestingBets returns the non-delayed bets of a market in book order. The
// slice is a copy.
func (ob *OrderBook) RestingBets(marketID domain.MarketID) []*domain.Bet {
	lo := ob.marketStart(marketID)
	var out []*domain.Bet
	for _, b := range ob.byOdds[lo:] {
		if b.MarketID != marketID {
			break
		}
		out = append(out, b)
	}
	return out
}

// DelayedInMarket returns the delayed bets belonging to one market, in
// release order.
func (ob *OrderBook) DelayedInMarket(marketID domain.MarketID) []*domain.Bet {
	var out []*domain.Bet
	for _, b := range ob.byOdds {
		if !b.Delayed() {
			break
		}
		if b.MarketID == marketID {
			out = append(out, b)
		}
	}
	return out
}

// Candidates returns the resting opposite-side bets a taker at the given
// limit multiplier may match, best match first. For a back taker these are
// lay bets with multiplier ≥ the limit (highest first); for a lay taker,
// back bets with multiplier ≤ the limit (lowest first). Book order already
// yields exactly this sequence, so the scan stops at the first entry past
// the limit. The slice is a copy.
func (ob *OrderBook) Candidates(marketID domain.MarketID, takerSide domain.BetSide, limitMultiplier int64) []*domain.Bet {
	makerSide := takerSide.Opposite()
	lo := ob.sideStart(marketID, makerSide)
	var out []*domain.Bet
	for _, b := range ob.byOdds[lo:] {
		if b.MarketID != marketID || b.Side != makerSide {
			break
		}
		if makerSide == domain.Back {
			if b.BackerMultiplier > limitMultiplier {
				break
			}
		} else {
			if b.BackerMultiplier < limitMultiplier {
				break
			}
		}
		out = append(out, b)
	}
	return out
}

// BettorBets returns one bettor's non-delayed bets in a market, in book
// (odds) order.
func (ob *OrderBook) BettorBets(marketID domain.MarketID, bettor domain.AccountID) []*domain.Bet {
	var out []*domain.Bet
	for _, b := range ob.RestingBets(marketID) {
		if b.Bettor == bettor {
			out = append(out, b)
		}
	}
	for _, b := range ob.DelayedInMarket(marketID) {
		if b.Bettor == bettor {
			out = append(out, b)
		}
	}
	return out
}

// marketStart finds the first non-delayed index at or after the market's
// book range.
func (ob *OrderBook) marketStart(marketID domain.MarketID) int {
	return sort.Search(len(ob.byOdds), func(i int) bool {
		b := ob.byOdds[i]
		if b.Delayed() {
			return false
		}
		return b.MarketID >= marketID
	})
}

// sideStart finds the first index of (market, side) among non-delayed bets.
func (ob *OrderBook) sideStart(marketID domain.MarketID, side domain.BetSide) int {
	return sort.Search(len(ob.byOdds), func(i int) bool {
		b := ob.byOdds[i]
		if b.Delayed() {
			return false
		}
		if b.MarketID != marketID {
			return b.MarketID > marketID
		}
		return b.Side >= side
	})
}

// Clone deep-copies the book, including the bet objects themselves, for
// transaction-level rollback.
func (ob *OrderBook) Clone() *OrderBook {
	out := New()
	out.byOdds = make([]*domain.Bet, len(ob.byOdds))
	for i, b := range ob.byOdds {
		cp := *b
		out.byOdds[i] = &cp
		out.byID[cp.ID] = &cp
		mkt := out.byMarket[cp.MarketID]
		if mkt == nil {
			mkt = make(map[domain.BetID]*domain.Bet)
			out.byMarket[cp.MarketID] = mkt
		}
		mkt[cp.ID] = &cp
	}
	return out
}
