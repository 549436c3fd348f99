package chain

import (
	"sort"

	"github.com/evetabi/bookie/internal/book"
	"github.com/evetabi/bookie/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Ledger
// ──────────────────────────────────────────────────────────────────────────────

// Ledger is the external balance system the engine debits and credits. The
// engine never inspects balances directly; Debit reports insufficiency as
// domain.ErrInsufficientBalance.
//
// Clone and Restore exist for transaction rollback: Clone snapshots the
// balances before a transaction, Restore puts a snapshot's balances back
// onto the receiver after a failed one. The ledger handle given to New
// stays bound to the chain across rollbacks, so callers may keep crediting
// deposits through it.
type Ledger interface {
	Balance(account domain.AccountID, asset domain.AssetID) int64
	Credit(account domain.AccountID, asset domain.AssetID, amount int64)
	Debit(account domain.AccountID, asset domain.AssetID, amount int64) error
	Clone() Ledger
	Restore(snapshot Ledger)
}

// MemLedger is the in-process Ledger used by the chain node. Accounts are
// created implicitly on first credit.
type MemLedger struct {
	balances map[domain.AccountID]map[domain.AssetID]int64
}

// NewMemLedger returns an empty in-memory ledger.
func NewMemLedger() *MemLedger {
	return &MemLedger{balances: make(map[domain.AccountID]map[domain.AssetID]int64)}
}

// Balance returns the account's balance in the asset, zero if absent.
func (l *MemLedger) Balance(account domain.AccountID, asset domain.AssetID) int64 {
	return l.balances[account][asset]
}

// Credit adds amount to the account's balance.
func (l *MemLedger) Credit(account domain.AccountID, asset domain.AssetID, amount int64) {
	if amount == 0 {
		return
	}
	accts := l.balances[account]
	if accts == nil {
		accts = make(map[domain.AssetID]int64)
		l.balances[account] = accts
	}
	accts[asset] += amount
}

// Debit removes amount from the account's balance, failing without mutation
// if the balance does not cover it.
func (l *MemLedger) Debit(account domain.AccountID, asset domain.AssetID, amount int64) error {
	if amount == 0 {
		return nil
	}
	if l.balances[account][asset] < amount {
		return domain.ErrInsufficientBalance
	}
	l.balances[account][asset] -= amount
	return nil
}

// Clone deep-copies the ledger for transaction rollback.
func (l *MemLedger) Clone() Ledger {
	out := NewMemLedger()
	for acct, assets := range l.balances {
		cp := make(map[domain.AssetID]int64, len(assets))
		for asset, bal := range assets {
			cp[asset] = bal
		}
		out.balances[acct] = cp
	}
	return out
}

// Restore adopts the balances of a snapshot previously returned by Clone.
// The snapshot must not be used afterward.
func (l *MemLedger) Restore(snapshot Ledger) {
	l.balances = snapshot.(*MemLedger).balances
}

// ──────────────────────────────────────────────────────────────────────────────
// State
// ──────────────────────────────────────────────────────────────────────────────

// State is the complete object store of the betting engine. All mutation
// happens on the single block-application goroutine; there is no locking
// here.
type State struct {
	Rules   map[domain.RulesID]*domain.Rules
	Events  map[domain.EventID]*domain.Event
	Groups  map[domain.GroupID]*domain.Group
	Markets map[domain.MarketID]*domain.Market

	// GroupMarkets lists each group's member markets in creation order.
	GroupMarkets map[domain.GroupID][]domain.MarketID

	// Book indexes the outstanding (unmatched) bets.
	Book *book.OrderBook

	// Positions holds each bettor's accumulated exposure per market.
	Positions map[domain.MarketID]map[domain.AccountID]*domain.Position

	Ledger Ledger

	seq     sequences
	pending []domain.VirtualEvent
}

type sequences struct {
	rules   uint64
	events  uint64
	groups  uint64
	markets uint64
	bets    uint64
}

// NewState returns an empty state backed by the given ledger.
func NewState(ledger Ledger) *State {
	return &State{
		Rules:        make(map[domain.RulesID]*domain.Rules),
		Events:       make(map[domain.EventID]*domain.Event),
		Groups:       make(map[domain.GroupID]*domain.Group),
		Markets:      make(map[domain.MarketID]*domain.Market),
		GroupMarkets: make(map[domain.GroupID][]domain.MarketID),
		Book:         book.New(),
		Positions:    make(map[domain.MarketID]map[domain.AccountID]*domain.Position),
		Ledger:       ledger,
	}
}

// ── id sequences ──

func (s *State) nextRulesID() domain.RulesID {
	s.seq.rules++
	return domain.RulesID(s.seq.rules)
}

func (s *State) nextEventID() domain.EventID {
	s.seq.events++
	return domain.EventID(s.seq.events)
}

func (s *State) nextGroupID() domain.GroupID {
	s.seq.groups++
	return domain.GroupID(s.seq.groups)
}

func (s *State) nextMarketID() domain.MarketID {
	s.seq.markets++
	return domain.MarketID(s.seq.markets)
}

func (s *State) nextBetID() domain.BetID {
	s.seq.bets++
	return domain.BetID(s.seq.bets)
}

// ── lookups ──

func (s *State) rules(id domain.RulesID) (*domain.Rules, error) {
	r, ok := s.Rules[id]
	if !ok {
		return nil, domain.ErrRulesNotFound
	}
	return r, nil
}

func (s *State) event(id domain.EventID) (*domain.Event, error) {
	e, ok := s.Events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	return e, nil
}

func (s *State) group(id domain.GroupID) (*domain.Group, error) {
	g, ok := s.Groups[id]
	if !ok {
		return nil, domain.ErrGroupNotFound
	}
	return g, nil
}

func (s *State) market(id domain.MarketID) (*domain.Market, error) {
	m, ok := s.Markets[id]
	if !ok {
		return nil, domain.ErrMarketNotFound
	}
	return m, nil
}

// marketsOf returns the group's member markets in creation order.
func (s *State) marketsOf(groupID domain.GroupID) []*domain.Market {
	ids := s.GroupMarkets[groupID]
	out := make([]*domain.Market, 0, len(ids))
	for _, id := range ids {
		if m, ok := s.Markets[id]; ok {
			out = append(out, m)
		}
	}
	return out
}

// position returns the bettor's position on the market, creating a zero
// position on first touch.
func (s *State) position(marketID domain.MarketID, bettor domain.AccountID) *domain.Position {
	mkt := s.Positions[marketID]
	if mkt == nil {
		mkt = make(map[domain.AccountID]*domain.Position)
		s.Positions[marketID] = mkt
	}
	pos := mkt[bettor]
	if pos == nil {
		pos = &domain.Position{Bettor: bettor, MarketID: marketID}
		mkt[bettor] = pos
	}
	return pos
}

// positionsOf returns the market's positions ordered by bettor id. Iteration
// order matters: every node must settle in the same order.
func (s *State) positionsOf(marketID domain.MarketID) []*domain.Position {
	mkt := s.Positions[marketID]
	out := make([]*domain.Position, 0, len(mkt))
	for _, pos := range mkt {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bettor < out[j].Bettor })
	return out
}

// emit queues a virtual event for the current block.
func (s *State) emit(ev domain.VirtualEvent) {
	s.pending = append(s.pending, ev)
}

// drainEvents returns and clears the queued virtual events.
func (s *State) drainEvents() []domain.VirtualEvent {
	out := s.pending
	s.pending = nil
	return out
}

// Clone deep-copies the state, including the ledger and queued events, for
// transaction-level rollback.
func (s *State) Clone() *State {
	out := NewState(s.Ledger.Clone())
	out.seq = s.seq

	for id, r := range s.Rules {
		cp := *r
		out.Rules[id] = &cp
	}
	for id, e := range s.Events {
		cp := *e
		out.Events[id] = &cp
	}
	for id, g := range s.Groups {
		cp := *g
		out.Groups[id] = &cp
	}
	for id, m := range s.Markets {
		cp := *m
		out.Markets[id] = &cp
	}
	for id, ids := range s.GroupMarkets {
		out.GroupMarkets[id] = append([]domain.MarketID(nil), ids...)
	}
	out.Book = s.Book.Clone()
	for marketID, byBettor := range s.Positions {
		mkt := make(map[domain.AccountID]*domain.Position, len(byBettor))
		for bettor, pos := range byBettor {
			cp := *pos
			mkt[bettor] = &cp
		}
		out.Positions[marketID] = mkt
	}
	out.pending = append([]domain.VirtualEvent(nil), s.pending...)
	return out
}
