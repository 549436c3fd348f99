package chain_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/evetabi/bookie/internal/chain"
	"github.com/evetabi/bookie/internal/domain"
)

const asset = domain.AssetID(1)

const (
	house = domain.AccountID(1)
	alice = domain.AccountID(101)
	bob   = domain.AccountID(102)
	carol = domain.AccountID(103)
)

// fixture drives a chain through blocks three seconds apart, matching the
// default block interval.
type fixture struct {
	t      *testing.T
	c      *chain.Chain
	ledger *chain.MemLedger
	now    int64
	txSeq  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	params := chain.DefaultParameters()
	params.DividendAccount = house
	ledger := chain.NewMemLedger()
	c, err := chain.New(params, ledger, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{t: t, c: c, ledger: ledger, now: 1000}
}

func (f *fixture) fund(acct domain.AccountID, amount int64) {
	f.ledger.Credit(acct, asset, amount)
}

func (f *fixture) balance(acct domain.AccountID) int64 {
	return f.c.Balance(acct, asset)
}

func (f *fixture) applyBlock(txs ...chain.Transaction) chain.BlockResult {
	f.t.Helper()
	f.now += 3
	res, err := f.c.ApplyBlock(f.now, txs)
	if err != nil {
		f.t.Fatalf("ApplyBlock: %v", err)
	}
	return res
}

func (f *fixture) tx(ops ...chain.Operation) chain.Transaction {
	f.txSeq++
	return chain.Transaction{ID: fmt.Sprintf("tx-%d", f.txSeq), Ops: ops}
}

// mustApply runs one transaction in its own block and fails the test if it
// does not apply cleanly.
func (f *fixture) mustApply(ops ...chain.Operation) chain.BlockResult {
	f.t.Helper()
	res := f.applyBlock(f.tx(ops...))
	for _, r := range res.Receipts {
		if !r.OK {
			f.t.Fatalf("tx %s failed: %s", r.TxID, r.Error)
		}
	}
	return res
}

// mustFail runs one transaction and asserts it is rejected with the given
// sentinel in its receipt.
func (f *fixture) mustFail(want error, ops ...chain.Operation) {
	f.t.Helper()
	res := f.applyBlock(f.tx(ops...))
	r := res.Receipts[0]
	if r.OK {
		f.t.Fatalf("tx unexpectedly succeeded")
	}
	if want != nil && !strings.Contains(r.Error, want.Error()) {
		f.t.Fatalf("tx error %q, want it to contain %q", r.Error, want.Error())
	}
}

// setupGroup creates rules, an event, one group, and n markets in a single
// transaction wired together with relative references.
func (f *fixture) setupGroup(delay int64, neverInPlay bool, n int) (domain.GroupID, []domain.MarketID) {
	f.t.Helper()
	ops := []chain.Operation{
		chain.CreateRulesOp{Name: "standard", Description: "standard exchange rules"},
		chain.CreateEventOp{Description: "saturday derby"},
		chain.CreateGroupOp{
			Description:         "match odds",
			Event:               -2,
			Rules:               -1,
			Asset:               asset,
			NeverInPlay:         neverInPlay,
			DelayBeforeSettling: delay,
		},
	}
	for i := 0; i < n; i++ {
		ops = append(ops, chain.CreateMarketOp{
			Group:       -3,
			Description: fmt.Sprintf("outcome %d", i+1),
		})
	}
	f.mustApply(ops...)

	groups := f.c.Groups()
	g := groups[len(groups)-1]
	markets, err := f.c.GroupMarkets(g.ID)
	if err != nil {
		f.t.Fatalf("GroupMarkets: %v", err)
	}
	ids := make([]domain.MarketID, len(markets))
	for i, m := range markets {
		ids[i] = m.ID
	}
	return g.ID, ids
}

func (f *fixture) setStatus(g domain.GroupID, s domain.GroupUpdateStatus) {
	f.t.Helper()
	status := s
	f.mustApply(chain.UpdateGroupOp{Group: domain.Ref(g), Status: &status})
}

func placeBet(bettor domain.AccountID, m domain.MarketID, amount, multiplier int64, side domain.BetSide) chain.PlaceBetOp {
	return chain.PlaceBetOp{
		Bettor:           bettor,
		Market:           domain.Ref(m),
		Amount:           amount,
		Asset:            asset,
		BackerMultiplier: multiplier,
		Side:             side,
	}
}

func matchedEvents(res chain.BlockResult) []domain.BetMatchedEvent {
	var out []domain.BetMatchedEvent
	for _, ev := range res.Events {
		if e, ok := ev.(domain.BetMatchedEvent); ok {
			out = append(out, e)
		}
	}
	return out
}

func canceledEvents(res chain.BlockResult) []domain.BetCanceledEvent {
	var out []domain.BetCanceledEvent
	for _, ev := range res.Events {
		if e, ok := ev.(domain.BetCanceledEvent); ok {
			out = append(out, e)
		}
	}
	return out
}

func adjustedEvents(res chain.BlockResult) []domain.BetAdjustedEvent {
	var out []domain.BetAdjustedEvent
	for _, ev := range res.Events {
		if e, ok := ev.(domain.BetAdjustedEvent); ok {
			out = append(out, e)
		}
	}
	return out
}

func resolvedEvents(res chain.BlockResult) []domain.GroupResolvedEvent {
	var out []domain.GroupResolvedEvent
	for _, ev := range res.Events {
		if e, ok := ev.(domain.GroupResolvedEvent); ok {
			out = append(out, e)
		}
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────────────────────────────────

// TestFullLifecycle walks the happy path end to end: even-odds back and lay
// for 1000 each, full match, close, resolve win, settlement in the block
// after grading with the default 5% rake. Even with a zero settling delay
// the payout never lands in the grading block itself.
//
//	pot 2000, winner's stake 1000 → net profit 1000 → rake 50 → paid 1950
func TestFullLifecycle(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 1000)
	f.fund(bob, 1000)
	gid, markets := f.setupGroup(0, false, 2)
	m1, m2 := markets[0], markets[1]

	res := f.applyBlock(
		f.tx(placeBet(alice, m1, 1000, 20000, domain.Back)),
		f.tx(placeBet(bob, m1, 1000, 20000, domain.Lay)),
	)
	for _, r := range res.Receipts {
		if !r.OK {
			t.Fatalf("tx %s failed: %s", r.TxID, r.Error)
		}
	}
	if got := matchedEvents(res); len(got) != 2 {
		t.Fatalf("matched events = %d, want 2", len(got))
	}
	if f.balance(alice) != 0 || f.balance(bob) != 0 {
		t.Fatalf("post-match balances = %d, %d, want 0, 0", f.balance(alice), f.balance(bob))
	}

	pos, err := f.c.Position(m1, alice)
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if pos.PayIfPayoutCondition != 2000 || pos.PayIfCanceled != 1000 {
		t.Fatalf("alice position = %+v", pos)
	}
	g, err := f.c.Group(gid)
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if g.TotalMatchedAmount != 2000 {
		t.Errorf("total matched = %d, want 2000", g.TotalMatchedAmount)
	}

	f.setStatus(gid, domain.UpdateStatusClosed)
	if e, _ := f.c.Event(1); e.Status != domain.EventFinished {
		t.Errorf("event status after close = %s, want finished", e.Status)
	}

	res = f.mustApply(chain.ResolveGroupOp{
		Group: domain.Ref(gid),
		Resolutions: map[domain.MarketID]domain.Resolution{
			m1: domain.ResolutionWin,
			m2: domain.ResolutionNotWin,
		},
	})

	if got := resolvedEvents(res); len(got) != 0 {
		t.Fatalf("group settled in its grading block: %d resolved events", len(got))
	}
	if g, err := f.c.Group(gid); err != nil {
		t.Fatalf("Group after resolve: %v", err)
	} else if g.Status != domain.GroupGraded {
		t.Fatalf("status after resolve = %s, want graded", g.Status)
	}
	if f.balance(alice) != 0 {
		t.Fatalf("alice paid before the settlement block: %d", f.balance(alice))
	}

	res = f.applyBlock()
	if f.balance(alice) != 1950 {
		t.Errorf("alice balance = %d, want 1950", f.balance(alice))
	}
	if f.balance(bob) != 0 {
		t.Errorf("bob balance = %d, want 0", f.balance(bob))
	}
	if f.balance(house) != 50 {
		t.Errorf("house balance = %d, want 50", f.balance(house))
	}
	if total := f.balance(alice) + f.balance(bob) + f.balance(house); total != 2000 {
		t.Errorf("funds not conserved: total = %d, want 2000", total)
	}

	events := resolvedEvents(res)
	if len(events) != 2 {
		t.Fatalf("group-resolved events = %d, want 2", len(events))
	}
	for _, ev := range events {
		if ev.Bettor == alice && (ev.TotalPayout != 2000 || ev.FeesPaid != 50) {
			t.Errorf("alice resolved event = %+v", ev)
		}
		if ev.Bettor == bob && (ev.TotalPayout != 0 || ev.FeesPaid != 0) {
			t.Errorf("bob resolved event = %+v", ev)
		}
	}

	if _, err := f.c.Group(gid); !errors.Is(err, domain.ErrGroupNotFound) {
		t.Errorf("group lookup after settle = %v, want ErrGroupNotFound", err)
	}
	if _, err := f.c.Market(m1); !errors.Is(err, domain.ErrMarketNotFound) {
		t.Errorf("market lookup after settle = %v, want ErrMarketNotFound", err)
	}
	if e, _ := f.c.Event(1); e.Status != domain.EventSettled {
		t.Errorf("event status after settle = %s, want settled", e.Status)
	}
}

// TestSettlingDelayWindow checks the grading challenge window: a group with
// a 600 second delay stays graded until a block strictly past its settling
// time.
func TestSettlingDelayWindow(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 100)
	f.fund(bob, 100)
	gid, markets := f.setupGroup(600, false, 1)
	m1 := markets[0]

	f.mustApply(placeBet(alice, m1, 100, 20000, domain.Back))
	f.mustApply(placeBet(bob, m1, 100, 20000, domain.Lay))
	f.setStatus(gid, domain.UpdateStatusClosed)
	f.mustApply(chain.ResolveGroupOp{
		Group:       domain.Ref(gid),
		Resolutions: map[domain.MarketID]domain.Resolution{m1: domain.ResolutionWin},
	})
	resolvedAt := f.now

	g, err := f.c.Group(gid)
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if g.Status != domain.GroupGraded {
		t.Fatalf("status after resolve = %s, want graded", g.Status)
	}
	if g.SettlingTime != resolvedAt+600 {
		t.Fatalf("settling time = %d, want %d", g.SettlingTime, resolvedAt+600)
	}

	f.applyBlock()
	if _, err := f.c.Group(gid); err != nil {
		t.Fatalf("group settled before its window: %v", err)
	}

	// A block at exactly the settling time still holds; the first block
	// strictly past it pays out.
	f.now = resolvedAt + 600 - 3
	f.applyBlock()
	if _, err := f.c.Group(gid); err != nil {
		t.Fatalf("group settled at its settling time: %v", err)
	}
	f.applyBlock()
	if _, err := f.c.Group(gid); !errors.Is(err, domain.ErrGroupNotFound) {
		t.Errorf("group not settled past its settling time: %v", err)
	}
	if f.balance(alice) != 195 { // pot 200, net 100, rake 5
		t.Errorf("alice balance = %d, want 195", f.balance(alice))
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Operation semantics
// ──────────────────────────────────────────────────────────────────────────────

func TestResolveRequiresClosedGroup(t *testing.T) {
	f := newFixture(t)
	gid, markets := f.setupGroup(0, false, 1)
	f.mustFail(domain.ErrNoTransition, chain.ResolveGroupOp{
		Group:       domain.Ref(gid),
		Resolutions: map[domain.MarketID]domain.Resolution{markets[0]: domain.ResolutionWin},
	})
	if g, _ := f.c.Group(gid); g.Status != domain.GroupUpcoming {
		t.Errorf("group status after failed resolve = %s, want upcoming", g.Status)
	}
}

func TestNeverInPlayGuard(t *testing.T) {
	f := newFixture(t)
	gid, _ := f.setupGroup(0, true, 1)
	status := domain.UpdateStatusInPlay
	f.mustFail(domain.ErrNoTransition, chain.UpdateGroupOp{Group: domain.Ref(gid), Status: &status})
	if g, _ := f.c.Group(gid); g.Status != domain.GroupUpcoming {
		t.Errorf("group status = %s, want upcoming", g.Status)
	}
}

func TestStatusUnchangedRejected(t *testing.T) {
	f := newFixture(t)
	gid, _ := f.setupGroup(0, false, 1)
	f.setStatus(gid, domain.UpdateStatusFrozen)
	status := domain.UpdateStatusFrozen
	f.mustFail(domain.ErrStatusUnchanged, chain.UpdateGroupOp{Group: domain.Ref(gid), Status: &status})
}

func TestUpdateWithoutFieldsRejected(t *testing.T) {
	f := newFixture(t)
	gid, _ := f.setupGroup(0, false, 1)
	f.mustFail(domain.ErrNoFieldsToUpdate, chain.UpdateGroupOp{Group: domain.Ref(gid)})
	f.mustFail(domain.ErrNoFieldsToUpdate, chain.UpdateRulesOp{Rules: 1})
}

// TestTransactionAtomicity checks that a failing operation rolls back the
// entire transaction, including earlier successful operations.
func TestTransactionAtomicity(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 1000)
	_, markets := f.setupGroup(0, false, 1)
	m1 := markets[0]

	f.mustFail(domain.ErrInsufficientBalance,
		placeBet(alice, m1, 600, 20000, domain.Back),
		placeBet(alice, m1, 600, 20000, domain.Back),
	)
	if f.balance(alice) != 1000 {
		t.Errorf("alice balance after rollback = %d, want 1000", f.balance(alice))
	}
	if bets, _ := f.c.MarketBook(m1); len(bets) != 0 {
		t.Errorf("book has %d bets after rollback, want 0", len(bets))
	}
}

// TestLedgerBoundAfterRollback keeps the ledger handle from New usable after
// a failed transaction: deposits credited through it must stay visible to
// the chain even though the failed transaction's state was rolled back.
func TestLedgerBoundAfterRollback(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 100)
	_, markets := f.setupGroup(0, false, 1)
	m1 := markets[0]

	f.mustFail(domain.ErrInsufficientBalance, placeBet(alice, m1, 500, 20000, domain.Back))
	if f.balance(alice) != 100 {
		t.Fatalf("alice balance after rollback = %d, want 100", f.balance(alice))
	}

	f.fund(alice, 400)
	if f.balance(alice) != 500 {
		t.Fatalf("deposit through the original ledger handle lost: balance = %d, want 500", f.balance(alice))
	}
	f.mustApply(placeBet(alice, m1, 500, 20000, domain.Back))
	if f.balance(alice) != 0 {
		t.Errorf("alice balance after placement = %d, want 0", f.balance(alice))
	}
}

// TestRelativeReferences places a bet on a market created earlier in the
// same transaction.
func TestRelativeReferences(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, 500)
	f.mustApply(
		chain.CreateRulesOp{Name: "standard"},
		chain.CreateEventOp{Description: "derby"},
		chain.CreateGroupOp{Description: "match odds", Event: -2, Rules: -1, Asset: asset},
		chain.CreateMarketOp{Group: -3, Description: "home"},
		chain.PlaceBetOp{
			Bettor: alice, Market: -4, Amount: 500, Asset: asset,
			BackerMultiplier: 20000, Side: domain.Back,
		},
	)
	bets, err := f.c.MarketBook(1)
	if err != nil {
		t.Fatalf("MarketBook: %v", err)
	}
	if len(bets) != 1 || bets[0].Amount != 500 {
		t.Fatalf("book = %+v, want one 500 bet", bets)
	}
}

func TestRelativeReferenceErrors(t *testing.T) {
	f := newFixture(t)
	// -1 resolves to the rules object, not a group.
	f.mustFail(domain.ErrWrongRefType,
		chain.CreateRulesOp{Name: "standard"},
		chain.CreateMarketOp{Group: -1, Description: "home"},
	)
	// Nothing has been created yet inside this transaction.
	f.mustFail(domain.ErrBadRelativeRef,
		chain.CreateGroupOp{Description: "match odds", Event: -1, Rules: -2, Asset: asset},
	)
}

// TestEventAggregation runs two groups under one event and watches the
// event advance on the all-siblings-done boundaries.
func TestEventAggregation(t *testing.T) {
	f := newFixture(t)
	f.mustApply(
		chain.CreateRulesOp{Name: "standard"},
		chain.CreateEventOp{Description: "derby"},
		chain.CreateGroupOp{Description: "match odds", Event: -2, Rules: -1, Asset: asset},
		chain.CreateMarketOp{Group: -3, Description: "home"},
		chain.CreateGroupOp{Description: "total goals", Event: -2, Rules: -1, Asset: asset},
		chain.CreateMarketOp{Group: -5, Description: "over"},
	)
	g1, g2 := domain.GroupID(1), domain.GroupID(2)

	f.setStatus(g1, domain.UpdateStatusClosed)
	if e, _ := f.c.Event(1); e.Status != domain.EventUpcoming {
		t.Fatalf("event status with one group closed = %s, want upcoming", e.Status)
	}
	f.setStatus(g2, domain.UpdateStatusClosed)
	if e, _ := f.c.Event(1); e.Status != domain.EventFinished {
		t.Fatalf("event status with both groups closed = %s, want finished", e.Status)
	}

	f.mustApply(chain.ResolveGroupOp{
		Group:       domain.Ref(g1),
		Resolutions: map[domain.MarketID]domain.Resolution{1: domain.ResolutionWin},
	})
	f.applyBlock() // settles g1
	if e, _ := f.c.Event(1); e.Status != domain.EventFinished {
		t.Fatalf("event status with one group settled = %s, want finished", e.Status)
	}
	f.mustApply(chain.ResolveGroupOp{
		Group:       domain.Ref(g2),
		Resolutions: map[domain.MarketID]domain.Resolution{2: domain.ResolutionWin},
	})
	f.applyBlock() // settles g2
	if e, _ := f.c.Event(1); e.Status != domain.EventSettled {
		t.Fatalf("event status with both groups settled = %s, want settled", e.Status)
	}
}
