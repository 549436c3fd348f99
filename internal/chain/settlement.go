package chain

import (
	"fmt"
	"sort"

	"github.com/evetabi/bookie/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Rake distribution
// ──────────────────────────────────────────────────────────────────────────────

// RakeShare is one recipient of a distributed settlement fee.
type RakeShare struct {
	Account domain.AccountID
	Amount  int64
}

// AffiliateDistributor splits the rake taken from a winning bettor between
// the house and any referral partners. Implementations must be deterministic
// and return shares summing to exactly the fee; the engine credits each
// share as given.
type AffiliateDistributor interface {
	Distribute(bettor domain.AccountID, fee int64) []RakeShare
}

// HouseDistributor sends the entire rake to a single account.
type HouseDistributor struct {
	Account domain.AccountID
}

// Distribute implements AffiliateDistributor.
func (d HouseDistributor) Distribute(_ domain.AccountID, fee int64) []RakeShare {
	return []RakeShare{{Account: d.Account, Amount: fee}}
}

// ──────────────────────────────────────────────────────────────────────────────
// Resolution
// ──────────────────────────────────────────────────────────────────────────────

// validateGroupResolutions checks the shape of a resolution map against the
// group's actual member markets: exactly one entry per market, and either
// every market cancels or exactly one wins with the rest not_win.
func (c *Chain) validateGroupResolutions(g *domain.Group, resolutions map[domain.MarketID]domain.Resolution) error {
	markets := c.state.marketsOf(g.ID)
	if len(resolutions) != len(markets) {
		return fmt.Errorf("%w: %d resolutions for %d markets",
			domain.ErrResolutionIncomplete, len(resolutions), len(markets))
	}
	wins, cancels := 0, 0
	for _, m := range markets {
		r, ok := resolutions[m.ID]
		if !ok {
			return fmt.Errorf("%w: market %d missing", domain.ErrResolutionIncomplete, m.ID)
		}
		switch r {
		case domain.ResolutionWin:
			wins++
		case domain.ResolutionNotWin:
		case domain.ResolutionCancel:
			cancels++
		default:
			return fmt.Errorf("%w: market %d resolution unset", domain.ErrResolutionIncomplete, m.ID)
		}
	}
	if cancels > 0 && cancels != len(markets) {
		return domain.ErrPartialCancel
	}
	if cancels == 0 && wins != 1 {
		return fmt.Errorf("%w: got %d wins", domain.ErrResolutionShape, wins)
	}
	return nil
}

// resolveGroup applies a validated resolution map. A group-wide cancel takes
// the cancellation cascade; otherwise each market is graded with its own
// resolution and the group follows, which schedules the settling time.
func (c *Chain) resolveGroup(g *domain.Group, resolutions map[domain.MarketID]domain.Resolution) error {
	if err := c.validateGroupResolutions(g, resolutions); err != nil {
		return err
	}
	allCancel := true
	for _, r := range resolutions {
		if r != domain.ResolutionCancel {
			allCancel = false
			break
		}
	}
	if allCancel {
		return c.fireGroupEvent(g, groupEvCanceled, false)
	}
	for _, m := range c.state.marketsOf(g.ID) {
		if err := c.fireMarketEvent(m, marketEvGraded, resolutions[m.ID]); err != nil {
			return err
		}
	}
	return c.fireGroupEvent(g, groupEvGraded, false)
}

// ──────────────────────────────────────────────────────────────────────────────
// Settlement
// ──────────────────────────────────────────────────────────────────────────────

// settleExpiredGroups is the end-of-block settlement sweep: groups whose
// settling time fell strictly before this block pay out in settling-time
// order, group id breaking ties. The strict comparison means a group graded
// or canceled in this block settles in a later block at the earliest, even
// with a zero settling delay.
func (c *Chain) settleExpiredGroups() error {
	var due []*domain.Group
	for _, g := range c.state.Groups {
		if g.SettlingTime == 0 || g.SettlingTime >= c.now {
			continue
		}
		if g.Status != domain.GroupGraded && g.Status != domain.GroupCanceled {
			continue
		}
		due = append(due, g)
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].SettlingTime != due[j].SettlingTime {
			return due[i].SettlingTime < due[j].SettlingTime
		}
		return due[i].ID < due[j].ID
	})
	for _, g := range due {
		if err := c.settleGroup(g); err != nil {
			return err
		}
	}
	return nil
}

// settleGroup pays every position in the group according to the market
// resolutions, takes the rake from net winners, emits one group-resolved
// event per bettor, and removes the group with its markets and positions.
func (c *Chain) settleGroup(g *domain.Group) error {
	markets := c.state.marketsOf(g.ID)
	resolutions := make(map[domain.MarketID]domain.Resolution, len(markets))
	for _, m := range markets {
		resolutions[m.ID] = m.Resolution
	}

	// Aggregate per bettor across the group's markets: the payout owed, and
	// the stake that was still at risk (what a cancel would have returned).
	// The rake applies only to the profit above that.
	type payoutAcc struct {
		payout int64
		atRisk int64
	}
	accs := make(map[domain.AccountID]*payoutAcc)
	var bettors []domain.AccountID
	for _, m := range markets {
		for _, pos := range c.state.positionsOf(m.ID) {
			acc := accs[pos.Bettor]
			if acc == nil {
				acc = &payoutAcc{}
				accs[pos.Bettor] = acc
				bettors = append(bettors, pos.Bettor)
			}
			acc.payout += pos.Payout(m.Resolution)
			acc.atRisk += pos.PayIfCanceled
		}
	}
	sort.Slice(bettors, func(i, j int) bool { return bettors[i] < bettors[j] })

	for _, bettor := range bettors {
		acc := accs[bettor]
		var fee int64
		if net := acc.payout - acc.atRisk; net > 0 && c.params.RakeFeeBasisPoints > 0 {
			fee = (net*c.params.RakeFeeBasisPoints + 9999) / 10000
		}
		if paid := acc.payout - fee; paid > 0 {
			c.state.Ledger.Credit(bettor, g.AssetID, paid)
		}
		if fee > 0 {
			for _, share := range c.affiliates.Distribute(bettor, fee) {
				if share.Amount > 0 {
					c.state.Ledger.Credit(share.Account, g.AssetID, share.Amount)
				}
			}
		}
		c.state.emit(domain.GroupResolvedEvent{
			Bettor: bettor, GroupID: g.ID, Resolutions: resolutions,
			TotalPayout: acc.payout, FeesPaid: fee, Asset: g.AssetID,
			Kind: domain.EventGroupResolved,
		})
	}

	// A graded group passes through settled, cascading to its markets and
	// notifying the event. A canceled group already notified at cancel time.
	if g.Status == domain.GroupGraded {
		if err := c.fireGroupEvent(g, groupEvSettled, false); err != nil {
			return err
		}
	}

	for _, m := range markets {
		delete(c.state.Positions, m.ID)
		delete(c.state.Markets, m.ID)
	}
	delete(c.state.GroupMarkets, g.ID)
	delete(c.state.Groups, g.ID)
	return nil
}
