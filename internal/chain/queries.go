package chain

import (
	"sort"

	"github.com/evetabi/bookie/internal/domain"
)

// Read-side accessors for the API layer. All of them return copies so a
// caller can never mutate chain state; like everything else on Chain they
// must be called under the block producer's serialization.

// Rules returns a copy of the rules object.
func (c *Chain) Rules(id domain.RulesID) (domain.Rules, error) {
	r, err := c.state.rules(id)
	if err != nil {
		return domain.Rules{}, err
	}
	return *r, nil
}

// Event returns a copy of the event object.
func (c *Chain) Event(id domain.EventID) (domain.Event, error) {
	e, err := c.state.event(id)
	if err != nil {
		return domain.Event{}, err
	}
	return *e, nil
}

// Group returns a copy of the group object.
func (c *Chain) Group(id domain.GroupID) (domain.Group, error) {
	g, err := c.state.group(id)
	if err != nil {
		return domain.Group{}, err
	}
	return *g, nil
}

// Groups returns every live group ordered by id.
func (c *Chain) Groups() []domain.Group {
	out := make([]domain.Group, 0, len(c.state.Groups))
	for _, g := range c.state.Groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Market returns a copy of the market object.
func (c *Chain) Market(id domain.MarketID) (domain.Market, error) {
	m, err := c.state.market(id)
	if err != nil {
		return domain.Market{}, err
	}
	return *m, nil
}

// GroupMarkets returns copies of a group's member markets in creation
// order.
func (c *Chain) GroupMarkets(id domain.GroupID) ([]domain.Market, error) {
	if _, err := c.state.group(id); err != nil {
		return nil, err
	}
	markets := c.state.marketsOf(id)
	out := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		out = append(out, *m)
	}
	return out, nil
}

// Bet returns a copy of a resting bet.
func (c *Chain) Bet(id domain.BetID) (domain.Bet, error) {
	b := c.state.Book.Get(id)
	if b == nil {
		return domain.Bet{}, domain.ErrBetNotFound
	}
	return *b, nil
}

// MarketBook returns copies of a market's resting bets in book order,
// delayed bets last.
func (c *Chain) MarketBook(id domain.MarketID) ([]domain.Bet, error) {
	if _, err := c.state.market(id); err != nil {
		return nil, err
	}
	var out []domain.Bet
	for _, b := range c.state.Book.RestingBets(id) {
		out = append(out, *b)
	}
	for _, b := range c.state.Book.DelayedInMarket(id) {
		out = append(out, *b)
	}
	return out, nil
}

// BettorBets returns copies of one bettor's resting bets on a market.
func (c *Chain) BettorBets(id domain.MarketID, bettor domain.AccountID) ([]domain.Bet, error) {
	if _, err := c.state.market(id); err != nil {
		return nil, err
	}
	var out []domain.Bet
	for _, b := range c.state.Book.BettorBets(id, bettor) {
		out = append(out, *b)
	}
	return out, nil
}

// Position returns a copy of the bettor's position on a market; a zero
// position if they never matched there.
func (c *Chain) Position(id domain.MarketID, bettor domain.AccountID) (domain.Position, error) {
	if _, err := c.state.market(id); err != nil {
		return domain.Position{}, err
	}
	if pos, ok := c.state.Positions[id][bettor]; ok {
		return *pos, nil
	}
	return domain.Position{Bettor: bettor, MarketID: id}, nil
}

// Balance returns the bettor's ledger balance in an asset.
func (c *Chain) Balance(account domain.AccountID, asset domain.AssetID) int64 {
	return c.state.Ledger.Balance(account, asset)
}
