package book_test

import (
	"testing"

	"github.com/evetabi/bookie/internal/book"
	"github.com/evetabi/bookie/internal/domain"
)

func bet(id domain.BetID, market domain.MarketID, side domain.BetSide, mult int64) *domain.Bet {
	return &domain.Bet{
		ID:               id,
		Bettor:           domain.AccountID(100 + uint64(id)),
		MarketID:         market,
		Amount:           1000,
		AssetID:          1,
		BackerMultiplier: mult,
		Side:             side,
	}
}

func ids(bets []*domain.Bet) []domain.BetID {
	out := make([]domain.BetID, len(bets))
	for i, b := range bets {
		out[i] = b.ID
	}
	return out
}

func sameIDs(a []domain.BetID, b ...domain.BetID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestBookOrder inserts bets out of order and checks the resulting book
// order: delayed first by end of delay, then market, side (back before lay),
// multiplier ascending for back and descending for lay, id last.
func TestBookOrder(t *testing.T) {
	ob := book.New()

	b1 := bet(1, 7, domain.Back, 25000)
	b2 := bet(2, 7, domain.Back, 20000)
	b3 := bet(3, 7, domain.Lay, 20000)
	b4 := bet(4, 7, domain.Lay, 30000)
	b5 := bet(5, 7, domain.Back, 20000) // same key as b2, later id
	b6 := bet(6, 5, domain.Lay, 20000)  // earlier market sorts first
	b7 := bet(7, 7, domain.Back, 21000)
	b7.EndOfDelay = 50
	b8 := bet(8, 7, domain.Back, 21000)
	b8.EndOfDelay = 40

	for _, b := range []*domain.Bet{b1, b2, b3, b4, b5, b6, b7, b8} {
		ob.Insert(b)
	}

	// delayed: 8 (t=40) then 7 (t=50); market 5 before market 7; back
	// ascending 2, 5, 1; lay descending 4, 3.
	want := []domain.BetID{8, 7, 6, 2, 5, 1, 4, 3}
	got := append(ob.Delayed(), ob.RestingBets(5)...)
	got = append(got, ob.RestingBets(7)...)
	if !sameIDs(ids(got), want...) {
		t.Fatalf("book order = %v, want %v", ids(got), want)
	}
	if ob.Len() != 8 {
		t.Errorf("Len = %d, want 8", ob.Len())
	}
}

func TestInsertRemoveGet(t *testing.T) {
	ob := book.New()
	b := bet(1, 3, domain.Back, 20000)
	ob.Insert(b)

	if got := ob.Get(1); got != b {
		t.Fatalf("Get(1) = %v, want the inserted bet", got)
	}
	if got := ob.Remove(1); got != b {
		t.Fatalf("Remove(1) = %v, want the inserted bet", got)
	}
	if got := ob.Remove(1); got != nil {
		t.Errorf("second Remove(1) = %v, want nil", got)
	}
	if ob.Len() != 0 {
		t.Errorf("Len after remove = %d, want 0", ob.Len())
	}
	if got := ob.RestingBets(3); len(got) != 0 {
		t.Errorf("RestingBets after remove = %v, want empty", ids(got))
	}
}

// TestCandidates checks the matchable window: a back taker may match lay
// makers at its multiplier or longer, best (longest) first; a lay taker may
// match back makers at its multiplier or shorter, best (shortest) first.
func TestCandidates(t *testing.T) {
	ob := book.New()
	ob.Insert(bet(1, 7, domain.Back, 19000))
	ob.Insert(bet(2, 7, domain.Back, 20000))
	ob.Insert(bet(3, 7, domain.Back, 21000))
	ob.Insert(bet(4, 7, domain.Lay, 19000))
	ob.Insert(bet(5, 7, domain.Lay, 20000))
	ob.Insert(bet(6, 7, domain.Lay, 21000))

	// Back taker at 2.00: lay makers with multiplier >= 20000, 6 then 5.
	got := ob.Candidates(7, domain.Back, 20000)
	if !sameIDs(ids(got), 6, 5) {
		t.Errorf("back taker candidates = %v, want [6 5]", ids(got))
	}

	// Lay taker at 2.00: back makers with multiplier <= 20000, 1 then 2.
	got = ob.Candidates(7, domain.Lay, 20000)
	if !sameIDs(ids(got), 1, 2) {
		t.Errorf("lay taker candidates = %v, want [1 2]", ids(got))
	}

	// Delayed bets are never candidates.
	d := bet(9, 7, domain.Lay, 25000)
	d.EndOfDelay = 77
	ob.Insert(d)
	got = ob.Candidates(7, domain.Back, 20000)
	if !sameIDs(ids(got), 6, 5) {
		t.Errorf("candidates with delayed bet = %v, want [6 5]", ids(got))
	}
}

func TestMarketViews(t *testing.T) {
	ob := book.New()
	ob.Insert(bet(3, 7, domain.Lay, 20000))
	ob.Insert(bet(1, 7, domain.Back, 20000))
	ob.Insert(bet(2, 8, domain.Back, 20000))
	d := bet(4, 7, domain.Back, 20000)
	d.EndOfDelay = 10
	ob.Insert(d)

	if got := ob.MarketBets(7); !sameIDs(ids(got), 1, 3, 4) {
		t.Errorf("MarketBets(7) = %v, want [1 3 4]", ids(got))
	}
	if got := ob.DelayedInMarket(7); !sameIDs(ids(got), 4) {
		t.Errorf("DelayedInMarket(7) = %v, want [4]", ids(got))
	}
	if got := ob.MarketBets(9); len(got) != 0 {
		t.Errorf("MarketBets(9) = %v, want empty", ids(got))
	}
}

func TestBettorBets(t *testing.T) {
	ob := book.New()
	mine := bet(1, 7, domain.Back, 20000)
	mine.Bettor = 55
	other := bet(2, 7, domain.Back, 21000)
	other.Bettor = 56
	mineDelayed := bet(3, 7, domain.Lay, 20000)
	mineDelayed.Bettor = 55
	mineDelayed.EndOfDelay = 30
	for _, b := range []*domain.Bet{mine, other, mineDelayed} {
		ob.Insert(b)
	}
	if got := ob.BettorBets(7, 55); !sameIDs(ids(got), 1, 3) {
		t.Errorf("BettorBets = %v, want [1 3]", ids(got))
	}
}

// TestClone checks that mutations after a clone do not leak either way.
func TestClone(t *testing.T) {
	ob := book.New()
	ob.Insert(bet(1, 7, domain.Back, 20000))
	ob.Insert(bet(2, 7, domain.Lay, 20000))

	cp := ob.Clone()
	cp.Get(1).Amount = 42
	cp.Remove(2)

	if got := ob.Get(1).Amount; got != 1000 {
		t.Errorf("original amount after clone mutation = %d, want 1000", got)
	}
	if ob.Get(2) == nil {
		t.Error("original lost bet 2 after clone removal")
	}
	if cp.Len() != 1 || ob.Len() != 2 {
		t.Errorf("Len: clone %d (want 1), original %d (want 2)", cp.Len(), ob.Len())
	}
}
