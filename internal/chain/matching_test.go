package chain_test

import (
	"testing"

	"github.com/evetabi/bookie/internal/chain"
	"github.com/evetabi/bookie/internal/domain"
)

// TestPlacementRounding rounds the stake down to the bet's own ratio unit.
//
//	odds 2.10 → ratio 10:11 → back unit 10; 1005 rounds to 1000, 5 refunded
func TestPlacementRounding(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 2000)
	_, markets := f.setupGroup(0, false, 1)
	m1 := markets[0]

	res := f.mustApply(placeBet(alice, m1, 1005, 21000, domain.Back))
	adj := adjustedEvents(res)
	if len(adj) != 1 || adj[0].StakeReturned != 5 {
		t.Fatalf("adjusted events = %+v, want one refunding 5", adj)
	}
	bets, _ := f.c.MarketBook(m1)
	if len(bets) != 1 || bets[0].Amount != 1000 {
		t.Fatalf("book = %+v, want one 1000 bet", bets)
	}
	if f.balance(alice) != 1000 {
		t.Errorf("alice balance = %d, want 1000 (only the rounded stake debited)", f.balance(alice))
	}
}

// TestBetTooSmallToMatch cancels immediately when rounding leaves nothing:
// a 5 stake at odds 2.10 is below the 10 back unit.
func TestBetTooSmallToMatch(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 2000)
	_, markets := f.setupGroup(0, false, 1)
	m1 := markets[0]

	res := f.mustApply(placeBet(alice, m1, 5, 21000, domain.Back))
	if got := canceledEvents(res); len(got) != 1 {
		t.Fatalf("canceled events = %d, want 1", len(got))
	}
	if adj := adjustedEvents(res); len(adj) != 1 || adj[0].StakeReturned != 5 {
		t.Fatalf("adjusted events = %+v, want one refunding 5", adj)
	}
	if f.balance(alice) != 2000 {
		t.Errorf("alice balance = %d, want 2000 untouched", f.balance(alice))
	}
	if bets, _ := f.c.MarketBook(m1); len(bets) != 0 {
		t.Errorf("book has %d bets, want 0", len(bets))
	}
}

// TestCrossOddsMatch matches a taker at the maker's better odds and refunds
// the remainder that cannot rest at the taker's own odds.
//
//	maker: bob lays 27 at 2.50 (ratio 2:3, nine units of 3)
//	taker: alice backs 20 at 2.10 (back unit 10)
//	match at 2.50: k=9 → alice contributes 18, bob 27, pot 45
//	alice's leftover 2 cannot rest at 2.10 (unit 10) → refunded
func TestCrossOddsMatch(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 20)
	f.fund(bob, 27)
	_, markets := f.setupGroup(0, false, 1)
	m1 := markets[0]

	f.mustApply(placeBet(bob, m1, 27, 25000, domain.Lay))
	res := f.mustApply(placeBet(alice, m1, 20, 21000, domain.Back))

	matched := matchedEvents(res)
	if len(matched) != 2 {
		t.Fatalf("matched events = %d, want 2", len(matched))
	}
	for _, ev := range matched {
		if ev.BackerMultiplier != 25000 {
			t.Errorf("fill multiplier = %d, want the maker's 25000", ev.BackerMultiplier)
		}
	}
	if adj := adjustedEvents(res); len(adj) != 1 || adj[0].StakeReturned != 2 {
		t.Fatalf("adjusted events = %+v, want one refunding 2", adj)
	}

	if f.balance(alice) != 2 || f.balance(bob) != 0 {
		t.Errorf("balances = %d, %d, want 2, 0", f.balance(alice), f.balance(bob))
	}
	alicePos, _ := f.c.Position(m1, alice)
	if alicePos.PayIfPayoutCondition != 45 || alicePos.PayIfCanceled != 18 {
		t.Errorf("alice position = %+v", alicePos)
	}
	bobPos, _ := f.c.Position(m1, bob)
	if bobPos.PayIfNotPayoutCondition != 45 || bobPos.PayIfCanceled != 27 {
		t.Errorf("bob position = %+v", bobPos)
	}
	if bets, _ := f.c.MarketBook(m1); len(bets) != 0 {
		t.Errorf("book has %d bets, want 0", len(bets))
	}
}

// TestFIFOAtEqualOdds gives priority to the earlier maker at the same
// multiplier.
func TestFIFOAtEqualOdds(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 50)
	f.fund(bob, 100)
	f.fund(carol, 100)
	_, markets := f.setupGroup(0, false, 1)
	m1 := markets[0]

	f.mustApply(placeBet(bob, m1, 100, 20000, domain.Lay))
	f.mustApply(placeBet(carol, m1, 100, 20000, domain.Lay))
	res := f.mustApply(placeBet(alice, m1, 50, 20000, domain.Back))

	for _, ev := range matchedEvents(res) {
		if ev.Bettor == carol {
			t.Errorf("carol matched before bob despite later placement")
		}
	}
	bets, _ := f.c.MarketBook(m1)
	if len(bets) != 2 {
		t.Fatalf("book = %+v, want two remaining lay bets", bets)
	}
	for _, b := range bets {
		switch b.Bettor {
		case bob:
			if b.Amount != 50 {
				t.Errorf("bob's remaining stake = %d, want 50", b.Amount)
			}
		case carol:
			if b.Amount != 100 {
				t.Errorf("carol's remaining stake = %d, want 100", b.Amount)
			}
		}
	}
}

// TestGuaranteedWinningsBeforeBalanceCheck locks in a profit by laying off
// a backed position at shorter odds. The lay-off succeeds even though the
// bettor's balance before matching is zero, because the reduce step releases
// the riskless 250 before the 150 debit.
//
//	back 100 at 3.00 (pot 300), then lay 150 at 2.50 against a 100 back
//	position: pay-if-win 300 vs pay-if-lose 250 overlap → 250 released
func TestGuaranteedWinningsBeforeBalanceCheck(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 100)
	f.fund(bob, 200)
	f.fund(carol, 100)
	_, markets := f.setupGroup(0, false, 1)
	m1 := markets[0]

	f.mustApply(placeBet(alice, m1, 100, 30000, domain.Back))
	f.mustApply(placeBet(bob, m1, 200, 30000, domain.Lay))
	f.mustApply(placeBet(carol, m1, 100, 25000, domain.Back))
	if f.balance(alice) != 0 {
		t.Fatalf("alice balance before lay-off = %d, want 0", f.balance(alice))
	}

	res := f.mustApply(placeBet(alice, m1, 150, 25000, domain.Lay))

	var released int64
	for _, ev := range matchedEvents(res) {
		if ev.Bettor == alice {
			released = ev.GuaranteedWinnings
		}
	}
	if released != 250 {
		t.Errorf("guaranteed winnings = %d, want 250", released)
	}
	if f.balance(alice) != 100 {
		t.Errorf("alice balance = %d, want 100 (250 released minus 150 staked)", f.balance(alice))
	}
	pos, _ := f.c.Position(m1, alice)
	if pos.PayIfPayoutCondition != 50 || pos.PayIfNotPayoutCondition != 0 ||
		pos.PayIfCanceled != 0 || pos.PayIfNotCanceled != 0 {
		t.Errorf("alice position after reduce = %+v", pos)
	}
}

// TestDelayedBetsMatchAfterRelease places two opposing in-play bets: both
// sit out the live delay without matching, then match against each other in
// the release sweep of the first block past their delay.
func TestDelayedBetsMatchAfterRelease(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 1000)
	f.fund(bob, 1000)
	gid, markets := f.setupGroup(0, false, 1)
	m1 := markets[0]
	f.setStatus(gid, domain.UpdateStatusInPlay)

	res := f.applyBlock(
		f.tx(placeBet(alice, m1, 1000, 20000, domain.Back)),
		f.tx(placeBet(bob, m1, 1000, 20000, domain.Lay)),
	)
	for _, r := range res.Receipts {
		if !r.OK {
			t.Fatalf("tx failed: %s", r.Error)
		}
	}
	if got := matchedEvents(res); len(got) != 0 {
		t.Fatalf("bets matched during the delay window")
	}
	endOfDelay := f.now + 3 + 5 // block interval + live delay
	bets, _ := f.c.MarketBook(m1)
	if len(bets) != 2 {
		t.Fatalf("book = %+v, want two delayed bets", bets)
	}
	for _, b := range bets {
		if b.EndOfDelay != endOfDelay {
			t.Errorf("bet %d end of delay = %d, want %d", b.ID, b.EndOfDelay, endOfDelay)
		}
	}
	if f.balance(alice) != 0 || f.balance(bob) != 0 {
		t.Fatalf("delayed stakes not debited at placement")
	}

	for f.now+3 < endOfDelay {
		if got := matchedEvents(f.applyBlock()); len(got) != 0 {
			t.Fatalf("bets released before the delay elapsed")
		}
	}
	res = f.applyBlock()
	if got := matchedEvents(res); len(got) != 2 {
		t.Fatalf("matched events after release = %d, want 2", len(got))
	}
	if f.balance(alice) != 0 || f.balance(bob) != 0 {
		t.Errorf("balances changed on release: %d, %d", f.balance(alice), f.balance(bob))
	}
	if bets, _ := f.c.MarketBook(m1); len(bets) != 0 {
		t.Errorf("book has %d bets after release matching, want 0", len(bets))
	}
}

// TestDelayedBetsHeldWhileFrozen freezes the group before the live delay
// elapses: the release sweep skips bets on unmatchable markets, so the two
// opposing bets stay in the delay queue past end_of_delay instead of
// matching. An operator mass-cancel is what clears them.
func TestDelayedBetsHeldWhileFrozen(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 1000)
	f.fund(bob, 1000)
	gid, markets := f.setupGroup(0, false, 1)
	m1 := markets[0]
	f.setStatus(gid, domain.UpdateStatusInPlay)

	res := f.applyBlock(
		f.tx(placeBet(alice, m1, 1000, 20000, domain.Back)),
		f.tx(placeBet(bob, m1, 1000, 20000, domain.Lay)),
	)
	for _, r := range res.Receipts {
		if !r.OK {
			t.Fatalf("tx failed: %s", r.Error)
		}
	}
	endOfDelay := f.now + 3 + 5 // block interval + live delay
	f.setStatus(gid, domain.UpdateStatusFrozen)

	// Four blocks carry the chain well past end_of_delay.
	for i := 0; i < 4; i++ {
		if got := matchedEvents(f.applyBlock()); len(got) != 0 {
			t.Fatalf("delayed bets matched on a frozen market")
		}
	}
	if f.now <= endOfDelay {
		t.Fatalf("chain time %d has not passed end of delay %d", f.now, endOfDelay)
	}
	bets, _ := f.c.MarketBook(m1)
	if len(bets) != 2 {
		t.Fatalf("book = %+v, want both bets still queued", bets)
	}
	for _, b := range bets {
		if b.EndOfDelay != endOfDelay {
			t.Errorf("bet %d end of delay = %d, want %d still set", b.ID, b.EndOfDelay, endOfDelay)
		}
	}

	res = f.mustApply(chain.CancelUnmatchedBetsOp{Group: domain.Ref(gid)})
	if got := canceledEvents(res); len(got) != 2 {
		t.Fatalf("canceled events = %d, want 2", len(got))
	}
	if f.balance(alice) != 1000 || f.balance(bob) != 1000 {
		t.Errorf("balances = %d, %d, want full stakes returned", f.balance(alice), f.balance(bob))
	}
}

// TestInPlayEntryCancelsRestingBets: going live wipes the pre-game book.
func TestInPlayEntryCancelsRestingBets(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 1000)
	gid, markets := f.setupGroup(0, false, 1)
	m1 := markets[0]

	f.mustApply(placeBet(alice, m1, 1000, 20000, domain.Back))
	status := domain.UpdateStatusInPlay
	res := f.mustApply(chain.UpdateGroupOp{Group: domain.Ref(gid), Status: &status})

	got := canceledEvents(res)
	if len(got) != 1 || got[0].StakeReturned != 1000 {
		t.Fatalf("canceled events = %+v, want one returning 1000", got)
	}
	if f.balance(alice) != 1000 {
		t.Errorf("alice balance = %d, want 1000 refunded", f.balance(alice))
	}
	if bets, _ := f.c.MarketBook(m1); len(bets) != 0 {
		t.Errorf("book has %d bets, want 0", len(bets))
	}
}

func TestBetsRejectedWhenFrozen(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 1000)
	gid, markets := f.setupGroup(0, false, 1)
	f.setStatus(gid, domain.UpdateStatusFrozen)
	f.mustFail(domain.ErrBetsNotAllowed, placeBet(alice, markets[0], 1000, 20000, domain.Back))
}

func TestBetAdmissionChecks(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 1000)
	_, markets := f.setupGroup(0, false, 1)
	m1 := markets[0]

	wrongAsset := placeBet(alice, m1, 1000, 20000, domain.Back)
	wrongAsset.Asset = 2
	f.mustFail(domain.ErrAssetMismatch, wrongAsset)

	f.mustFail(domain.ErrOddsOutOfRange, placeBet(alice, m1, 1000, 10000, domain.Back))
	f.mustFail(domain.ErrOddsOutOfRange, placeBet(alice, m1, 1000, 20000000, domain.Back))
	// 2.0001 is not aligned to the 0.02 step above 2.00.
	f.mustFail(domain.ErrOddsIncrement, placeBet(alice, m1, 1000, 20001, domain.Back))
	f.mustFail(domain.ErrZeroAmountBet, placeBet(alice, m1, 0, 20000, domain.Back))
}

func TestCancelBet(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 1000)
	_, markets := f.setupGroup(0, false, 1)
	m1 := markets[0]

	f.mustApply(placeBet(alice, m1, 1000, 20000, domain.Back))
	bets, _ := f.c.MarketBook(m1)
	betID := bets[0].ID

	f.mustFail(domain.ErrNotBetOwner, chain.CancelBetOp{Bettor: bob, Bet: betID})

	res := f.mustApply(chain.CancelBetOp{Bettor: alice, Bet: betID})
	if got := canceledEvents(res); len(got) != 1 || got[0].StakeReturned != 1000 {
		t.Fatalf("canceled events = %+v, want one returning 1000", got)
	}
	if f.balance(alice) != 1000 {
		t.Errorf("alice balance = %d, want 1000", f.balance(alice))
	}
	f.mustFail(domain.ErrBetNotFound, chain.CancelBetOp{Bettor: alice, Bet: betID})
}

// TestCancelUnmatchedBetsOp mass-cancels across the group, including bets
// still in the delay queue.
func TestCancelUnmatchedBetsOp(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 1000)
	f.fund(bob, 600)
	gid, markets := f.setupGroup(0, false, 2)

	f.mustApply(placeBet(alice, markets[0], 600, 20000, domain.Back))
	f.setStatus(gid, domain.UpdateStatusInPlay) // cancels alice's resting bet
	f.mustApply(placeBet(bob, markets[1], 600, 25000, domain.Lay))

	res := f.mustApply(chain.CancelUnmatchedBetsOp{Group: domain.Ref(gid)})
	if got := canceledEvents(res); len(got) != 1 || got[0].StakeReturned != 600 {
		t.Fatalf("canceled events = %+v, want bob's delayed 600 returned", got)
	}
	if f.balance(alice) != 1000 || f.balance(bob) != 600 {
		t.Errorf("balances = %d, %d, want 1000, 600", f.balance(alice), f.balance(bob))
	}
}
