package chain

import (
	"fmt"

	"github.com/evetabi/bookie/internal/domain"
)

// Operation is one state-transition command carried in a transaction.
// Validate is the stateless half of the evaluate phase; stateful checks run
// inside apply, where relative references can be resolved, and are undone by
// the transaction-level rollback on failure.
type Operation interface {
	Kind() string
	Validate(params Parameters) error
	apply(tx *txContext) error
}

// ──────────────────────────────────────────────────────────────────────────────
// Relative-reference resolution
// ──────────────────────────────────────────────────────────────────────────────

type objectKind uint8

const (
	kindRules objectKind = iota
	kindEvent
	kindGroup
	kindMarket
)

func (k objectKind) String() string {
	switch k {
	case kindRules:
		return "rules"
	case kindEvent:
		return "event"
	case kindGroup:
		return "group"
	case kindMarket:
		return "market"
	}
	return "unknown"
}

type createdObject struct {
	kind objectKind
	id   uint64
}

// txContext tracks the objects created by earlier operations in the same
// transaction so later operations can reference them relatively: -1 is the
// first object created, -2 the second, and so on.
type txContext struct {
	c       *Chain
	created []createdObject
}

func (tx *txContext) record(kind objectKind, id uint64) {
	tx.created = append(tx.created, createdObject{kind: kind, id: id})
}

func (tx *txContext) resolve(ref domain.Ref, kind objectKind) (uint64, error) {
	if !ref.IsRelative() {
		return uint64(ref), nil
	}
	idx := ref.RelativeIndex()
	if idx >= len(tx.created) {
		return 0, fmt.Errorf("%w: %d with %d objects created", domain.ErrBadRelativeRef, ref, len(tx.created))
	}
	obj := tx.created[idx]
	if obj.kind != kind {
		return 0, fmt.Errorf("%w: %d is a %s, want %s", domain.ErrWrongRefType, ref, obj.kind, kind)
	}
	return obj.id, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Rules
// ──────────────────────────────────────────────────────────────────────────────

// CreateRulesOp creates a betting-market rules object.
type CreateRulesOp struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (CreateRulesOp) Kind() string { return "create_rules" }

func (CreateRulesOp) Validate(Parameters) error { return nil }

func (op CreateRulesOp) apply(tx *txContext) error {
	st := tx.c.state
	r := &domain.Rules{ID: st.nextRulesID(), Name: op.Name, Description: op.Description}
	st.Rules[r.ID] = r
	tx.record(kindRules, uint64(r.ID))
	return nil
}

// UpdateRulesOp mutates the name and/or description of existing rules.
type UpdateRulesOp struct {
	Rules       domain.Ref `json:"rules_id"`
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
}

func (UpdateRulesOp) Kind() string { return "update_rules" }

func (op UpdateRulesOp) Validate(Parameters) error {
	if op.Name == nil && op.Description == nil {
		return domain.ErrNoFieldsToUpdate
	}
	return nil
}

func (op UpdateRulesOp) apply(tx *txContext) error {
	id, err := tx.resolve(op.Rules, kindRules)
	if err != nil {
		return err
	}
	r, err := tx.c.state.rules(domain.RulesID(id))
	if err != nil {
		return err
	}
	if op.Name != nil {
		r.Name = *op.Name
	}
	if op.Description != nil {
		r.Description = *op.Description
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Events
// ──────────────────────────────────────────────────────────────────────────────

// CreateEventOp creates the event object that market groups attach to.
type CreateEventOp struct {
	Description string `json:"description"`
}

func (CreateEventOp) Kind() string { return "create_event" }

func (CreateEventOp) Validate(Parameters) error { return nil }

func (op CreateEventOp) apply(tx *txContext) error {
	st := tx.c.state
	e := &domain.Event{ID: st.nextEventID(), Description: op.Description, Status: domain.EventUpcoming}
	st.Events[e.ID] = e
	tx.record(kindEvent, uint64(e.ID))
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Groups
// ──────────────────────────────────────────────────────────────────────────────

// CreateGroupOp creates a betting market group under an event.
type CreateGroupOp struct {
	Description         string         `json:"description"`
	Event               domain.Ref     `json:"event_id"`
	Rules               domain.Ref     `json:"rules_id"`
	Asset               domain.AssetID `json:"asset_id"`
	NeverInPlay         bool           `json:"never_in_play"`
	DelayBeforeSettling int64          `json:"delay_before_settling"`
}

func (CreateGroupOp) Kind() string { return "create_group" }

func (op CreateGroupOp) Validate(Parameters) error {
	if op.DelayBeforeSettling < 0 {
		return fmt.Errorf("delay before settling must not be negative")
	}
	return nil
}

func (op CreateGroupOp) apply(tx *txContext) error {
	st := tx.c.state
	eventID, err := tx.resolve(op.Event, kindEvent)
	if err != nil {
		return err
	}
	e, err := st.event(domain.EventID(eventID))
	if err != nil {
		return err
	}
	rulesID, err := tx.resolve(op.Rules, kindRules)
	if err != nil {
		return err
	}
	if _, err := st.rules(domain.RulesID(rulesID)); err != nil {
		return err
	}
	g := &domain.Group{
		ID:                  st.nextGroupID(),
		Description:         op.Description,
		EventID:             e.ID,
		RulesID:             domain.RulesID(rulesID),
		AssetID:             op.Asset,
		NeverInPlay:         op.NeverInPlay,
		DelayBeforeSettling: op.DelayBeforeSettling,
		Status:              domain.GroupUpcoming,
	}
	st.Groups[g.ID] = g
	e.GroupsTotal++
	tx.record(kindGroup, uint64(g.ID))
	return nil
}

// UpdateGroupOp mutates group fields; a status field drives the group state
// machine.
type UpdateGroupOp struct {
	Group       domain.Ref                `json:"group_id"`
	Description *string                   `json:"description,omitempty"`
	Rules       *domain.Ref               `json:"rules_id,omitempty"`
	Status      *domain.GroupUpdateStatus `json:"status,omitempty"`
}

func (UpdateGroupOp) Kind() string { return "update_group" }

func (op UpdateGroupOp) Validate(Parameters) error {
	if op.Description == nil && op.Rules == nil && op.Status == nil {
		return domain.ErrNoFieldsToUpdate
	}
	return nil
}

func (op UpdateGroupOp) apply(tx *txContext) error {
	st := tx.c.state
	id, err := tx.resolve(op.Group, kindGroup)
	if err != nil {
		return err
	}
	g, err := st.group(domain.GroupID(id))
	if err != nil {
		return err
	}
	if op.Rules != nil {
		rulesID, err := tx.resolve(*op.Rules, kindRules)
		if err != nil {
			return err
		}
		if _, err := st.rules(domain.RulesID(rulesID)); err != nil {
			return err
		}
		g.RulesID = domain.RulesID(rulesID)
	}
	if op.Description != nil {
		g.Description = *op.Description
	}
	if op.Status != nil {
		return tx.c.dispatchNewStatus(g, *op.Status)
	}
	return nil
}

// dispatchNewStatus translates an externally requested status into a state
// machine event. Requesting the status the group already reports fails,
// except that re-canceling a finished group stays idempotent.
func (c *Chain) dispatchNewStatus(g *domain.Group, requested domain.GroupUpdateStatus) error {
	if requested.String() == g.Status.ExternalStatus() {
		return fmt.Errorf("%w: %s", domain.ErrStatusUnchanged, requested)
	}
	var ev groupEvent
	switch requested {
	case domain.UpdateStatusUpcoming:
		ev = groupEvUpcoming
	case domain.UpdateStatusInPlay:
		ev = groupEvInPlay
	case domain.UpdateStatusClosed:
		ev = groupEvClosed
	case domain.UpdateStatusFrozen:
		ev = groupEvFrozen
	case domain.UpdateStatusCanceled:
		ev = groupEvCanceled
	default:
		return fmt.Errorf("status %q cannot be requested directly", requested)
	}
	return c.fireGroupEvent(g, ev, false)
}

// ──────────────────────────────────────────────────────────────────────────────
// Markets
// ──────────────────────────────────────────────────────────────────────────────

// CreateMarketOp creates one payout condition under a group.
type CreateMarketOp struct {
	Group           domain.Ref `json:"group_id"`
	Description     string     `json:"description"`
	PayoutCondition string     `json:"payout_condition"`
}

func (CreateMarketOp) Kind() string { return "create_market" }

func (CreateMarketOp) Validate(Parameters) error { return nil }

func (op CreateMarketOp) apply(tx *txContext) error {
	st := tx.c.state
	groupID, err := tx.resolve(op.Group, kindGroup)
	if err != nil {
		return err
	}
	g, err := st.group(domain.GroupID(groupID))
	if err != nil {
		return err
	}
	m := &domain.Market{
		ID:              st.nextMarketID(),
		GroupID:         g.ID,
		Description:     op.Description,
		PayoutCondition: op.PayoutCondition,
		Status:          domain.MarketUnresolved,
	}
	st.Markets[m.ID] = m
	st.GroupMarkets[g.ID] = append(st.GroupMarkets[g.ID], m.ID)
	tx.record(kindMarket, uint64(m.ID))
	return nil
}

// UpdateMarketOp mutates market fields, including moving it to another
// group.
type UpdateMarketOp struct {
	Market          domain.Ref  `json:"market_id"`
	Group           *domain.Ref `json:"group_id,omitempty"`
	Description     *string     `json:"description,omitempty"`
	PayoutCondition *string     `json:"payout_condition,omitempty"`
}

func (UpdateMarketOp) Kind() string { return "update_market" }

func (op UpdateMarketOp) Validate(Parameters) error {
	if op.Group == nil && op.Description == nil && op.PayoutCondition == nil {
		return domain.ErrNoFieldsToUpdate
	}
	return nil
}

func (op UpdateMarketOp) apply(tx *txContext) error {
	st := tx.c.state
	id, err := tx.resolve(op.Market, kindMarket)
	if err != nil {
		return err
	}
	m, err := st.market(domain.MarketID(id))
	if err != nil {
		return err
	}
	if op.Group != nil {
		groupID, err := tx.resolve(*op.Group, kindGroup)
		if err != nil {
			return err
		}
		g, err := st.group(domain.GroupID(groupID))
		if err != nil {
			return err
		}
		if g.ID != m.GroupID {
			st.GroupMarkets[m.GroupID] = removeMarketID(st.GroupMarkets[m.GroupID], m.ID)
			st.GroupMarkets[g.ID] = append(st.GroupMarkets[g.ID], m.ID)
			m.GroupID = g.ID
		}
	}
	if op.Description != nil {
		m.Description = *op.Description
	}
	if op.PayoutCondition != nil {
		m.PayoutCondition = *op.PayoutCondition
	}
	return nil
}

func removeMarketID(ids []domain.MarketID, id domain.MarketID) []domain.MarketID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// ──────────────────────────────────────────────────────────────────────────────
// Bets
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBetOp places a back or lay bet on a market.
type PlaceBetOp struct {
	Bettor           domain.AccountID `json:"bettor_id"`
	Market           domain.Ref       `json:"market_id"`
	Amount           int64            `json:"amount"`
	Asset            domain.AssetID   `json:"asset_id"`
	BackerMultiplier int64            `json:"backer_multiplier"`
	Side             domain.BetSide   `json:"back_or_lay"`
}

func (PlaceBetOp) Kind() string { return "place_bet" }

func (op PlaceBetOp) Validate(params Parameters) error {
	if op.Amount <= 0 {
		return domain.ErrZeroAmountBet
	}
	if op.Side != domain.Back && op.Side != domain.Lay {
		return fmt.Errorf("invalid bet side %d", op.Side)
	}
	return params.ValidateMultiplier(op.BackerMultiplier)
}

func (op PlaceBetOp) apply(tx *txContext) error {
	id, err := tx.resolve(op.Market, kindMarket)
	if err != nil {
		return err
	}
	return tx.c.placeBet(op.Bettor, domain.MarketID(id), op.Amount, op.Asset, op.BackerMultiplier, op.Side)
}

// CancelBetOp cancels one of the caller's own resting bets.
type CancelBetOp struct {
	Bettor domain.AccountID `json:"bettor_id"`
	Bet    domain.BetID     `json:"bet_id"`
}

func (CancelBetOp) Kind() string { return "cancel_bet" }

func (CancelBetOp) Validate(Parameters) error { return nil }

func (op CancelBetOp) apply(tx *txContext) error {
	b := tx.c.state.Book.Get(op.Bet)
	if b == nil {
		return domain.ErrBetNotFound
	}
	if b.Bettor != op.Bettor {
		return domain.ErrNotBetOwner
	}
	tx.c.cancelBet(b)
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Resolution & mass cancel
// ──────────────────────────────────────────────────────────────────────────────

// ResolveGroupOp publishes the outcome of every market in a group.
type ResolveGroupOp struct {
	Group       domain.Ref                            `json:"group_id"`
	Resolutions map[domain.MarketID]domain.Resolution `json:"resolutions"`
}

func (ResolveGroupOp) Kind() string { return "resolve_group" }

func (op ResolveGroupOp) Validate(Parameters) error {
	if len(op.Resolutions) == 0 {
		return domain.ErrResolutionIncomplete
	}
	return nil
}

func (op ResolveGroupOp) apply(tx *txContext) error {
	id, err := tx.resolve(op.Group, kindGroup)
	if err != nil {
		return err
	}
	g, err := tx.c.state.group(domain.GroupID(id))
	if err != nil {
		return err
	}
	return tx.c.resolveGroup(g, op.Resolutions)
}

// CancelUnmatchedBetsOp mass-cancels every unmatched bet across a group's
// markets.
type CancelUnmatchedBetsOp struct {
	Group domain.Ref `json:"group_id"`
}

func (CancelUnmatchedBetsOp) Kind() string { return "cancel_unmatched_bets" }

func (CancelUnmatchedBetsOp) Validate(Parameters) error { return nil }

func (op CancelUnmatchedBetsOp) apply(tx *txContext) error {
	id, err := tx.resolve(op.Group, kindGroup)
	if err != nil {
		return err
	}
	g, err := tx.c.state.group(domain.GroupID(id))
	if err != nil {
		return err
	}
	for _, m := range tx.c.state.marketsOf(g.ID) {
		tx.c.cancelAllUnmatchedBets(m.ID)
	}
	return nil
}
