package chain

import (
	"fmt"

	"github.com/evetabi/bookie/internal/domain"
	"github.com/evetabi/bookie/internal/odds"
)

// Result mask of a pairwise match.
const (
	takerRemoved = 1 << iota
	makerRemoved
)

// placeBet is the full placement path: admission checks, stake rounding,
// either delay-queue insertion or immediate matching, then the post-match
// balance check and debit.
//
// Nothing is debited until the end. The final debit is the stake actually
// committed (matched plus resting); rounding and remainder refunds simply
// never get debited, so the only ledger credits on this path are guaranteed
// winnings released while matching. The balance check therefore runs against
// the post-match balance, as required for a back bet that is immediately
// matched against existing lay liability.
func (c *Chain) placeBet(bettor domain.AccountID, marketID domain.MarketID, amount int64, asset domain.AssetID, multiplier int64, side domain.BetSide) error {
	m, err := c.state.market(marketID)
	if err != nil {
		return err
	}
	g, err := c.state.group(m.GroupID)
	if err != nil {
		return err
	}
	if !g.BetsAreAllowed() || !m.Matchable() {
		return fmt.Errorf("%w: group is %s", domain.ErrBetsNotAllowed, g.Status.ExternalStatus())
	}
	if asset != g.AssetID {
		return fmt.Errorf("%w: bet asset %d, group asset %d", domain.ErrAssetMismatch, asset, g.AssetID)
	}
	if amount <= 0 {
		return domain.ErrZeroAmountBet
	}
	if err := c.params.ValidateMultiplier(multiplier); err != nil {
		return err
	}

	bet := &domain.Bet{
		ID:               c.state.nextBetID(),
		Bettor:           bettor,
		MarketID:         marketID,
		Amount:           odds.AlignDown(amount, multiplier, side),
		AssetID:          asset,
		BackerMultiplier: multiplier,
		Side:             side,
	}
	if refund := amount - bet.Amount; refund > 0 {
		c.state.emit(domain.BetAdjustedEvent{
			Bettor: bettor, BetID: bet.ID, MarketID: marketID,
			StakeReturned: refund, Asset: asset, Kind: domain.EventBetAdjusted,
		})
	}
	if bet.Amount == 0 {
		// Too small to ever match at these odds. The stake was never
		// debited, so cancellation is just the event.
		c.state.emit(domain.BetCanceledEvent{
			Bettor: bettor, BetID: bet.ID, MarketID: marketID,
			StakeReturned: 0, Asset: asset, Kind: domain.EventBetCanceled,
		})
		return nil
	}

	if g.BetsAreDelayed() && c.params.LiveBettingDelay > 0 {
		// One extra block interval: a bet evaluated now lands in the next
		// block at the earliest.
		bet.EndOfDelay = c.now + c.params.BlockInterval + c.params.LiveBettingDelay
		c.state.Book.Insert(bet)
		return c.state.Ledger.Debit(bettor, asset, bet.Amount)
	}

	matched := c.matchNewBet(bet, false)
	if bet.Amount > 0 {
		c.state.Book.Insert(bet)
	}
	return c.state.Ledger.Debit(bettor, asset, matched+bet.Amount)
}

// matchNewBet runs the incoming (or newly released) bet against the book
// until it is exhausted or nothing more crosses, then refunds any remainder
// that cannot rest at the bet's own odds. It returns the stake consumed by
// matching. alreadyPaid marks the delayed-release path, where the stake was
// debited at placement and refunds must credit the ledger.
func (c *Chain) matchNewBet(bet *domain.Bet, alreadyPaid bool) int64 {
	var consumed int64
	for bet.Amount > 0 {
		candidates := c.state.Book.Candidates(bet.MarketID, bet.Side, bet.BackerMultiplier)
		if len(candidates) == 0 {
			break
		}
		result, stake := c.matchBet(bet, candidates[0])
		consumed += stake
		if result == 0 || result&takerRemoved != 0 {
			break
		}
	}

	if bet.Amount > 0 {
		// Matching at the maker's odds can leave a remainder that is not a
		// multiple of this bet's own ratio unit and so could never rest.
		aligned := odds.AlignDown(bet.Amount, bet.BackerMultiplier, bet.Side)
		if refund := bet.Amount - aligned; refund > 0 {
			bet.Amount = aligned
			if alreadyPaid {
				c.state.Ledger.Credit(bet.Bettor, bet.AssetID, refund)
			}
			c.state.emit(domain.BetAdjustedEvent{
				Bettor: bet.Bettor, BetID: bet.ID, MarketID: bet.MarketID,
				StakeReturned: refund, Asset: bet.AssetID, Kind: domain.EventBetAdjusted,
			})
		}
	}
	return consumed
}

// matchBet matches the incoming taker against one resting maker. The maker's
// odds bind: the matched quantity is the largest multiple of the maker's
// ratio pair fitting both remaining stakes, with a lay taker further capped
// by the backer stake its own odds entitle it to receive. Returns the result
// mask and the taker stake consumed.
func (c *Chain) matchBet(taker, maker *domain.Bet) (int, int64) {
	backUnit, layUnit := odds.Ratio(maker.BackerMultiplier)
	makerUnit, takerUnit := backUnit, layUnit
	if maker.Side == domain.Lay {
		makerUnit, takerUnit = layUnit, backUnit
	}

	k := min(maker.Amount/makerUnit, taker.Amount/takerUnit)
	if taker.Side == domain.Lay {
		willing := odds.ApproximateMatchingAmount(taker.Amount, taker.BackerMultiplier, domain.Lay, false)
		k = min(k, willing/backUnit)
	}
	if k == 0 {
		return 0, 0
	}

	takerStake := k * takerUnit
	makerStake := k * makerUnit
	pot := takerStake + makerStake

	taker.Amount -= takerStake
	maker.Amount -= makerStake
	if m, ok := c.state.Markets[maker.MarketID]; ok {
		if g, ok := c.state.Groups[m.GroupID]; ok {
			g.TotalMatchedAmount += pot
		}
	}

	c.betWasMatched(taker, takerStake, maker.BackerMultiplier, pot)
	c.betWasMatched(maker, makerStake, maker.BackerMultiplier, pot)

	result := 0
	if taker.Amount == 0 {
		result |= takerRemoved
	}
	if maker.Amount == 0 {
		// Maker stakes are always multiples of the maker's own unit, so a
		// maker is either consumed whole or left whole.
		c.state.Book.Remove(maker.ID)
		result |= makerRemoved
	}
	return result, takerStake
}

// betWasMatched folds one side's fill into the bettor's position, credits
// whatever the reduce step releases as riskless, and emits the bet-matched
// event at the multiplier the fill actually executed at.
func (c *Chain) betWasMatched(bet *domain.Bet, stake, fillMultiplier, pot int64) {
	pos := c.state.position(bet.MarketID, bet.Bettor)
	if bet.Side == domain.Back {
		pos.PayIfPayoutCondition += pot
	} else {
		pos.PayIfNotPayoutCondition += pot
	}
	pos.PayIfCanceled += stake

	winnings := pos.Reduce()
	if winnings > 0 {
		c.state.Ledger.Credit(bet.Bettor, bet.AssetID, winnings)
	}
	c.state.emit(domain.BetMatchedEvent{
		Bettor: bet.Bettor, BetID: bet.ID, MarketID: bet.MarketID,
		AmountMatched: stake, BackerMultiplier: fillMultiplier,
		GuaranteedWinnings: winnings, Asset: bet.AssetID,
		Kind: domain.EventBetMatched,
	})
}

// cancelBet removes a resting bet and refunds its remaining stake. Resting
// stakes were debited at placement, so cancellation always credits.
func (c *Chain) cancelBet(bet *domain.Bet) {
	c.state.Book.Remove(bet.ID)
	c.state.Ledger.Credit(bet.Bettor, bet.AssetID, bet.Amount)
	c.state.emit(domain.BetCanceledEvent{
		Bettor: bet.Bettor, BetID: bet.ID, MarketID: bet.MarketID,
		StakeReturned: bet.Amount, Asset: bet.AssetID, Kind: domain.EventBetCanceled,
	})
}

// cancelAllUnmatchedBets cancels every live book entry in the market, then
// sweeps the delayed-bet prefix for entries belonging to it.
func (c *Chain) cancelAllUnmatchedBets(marketID domain.MarketID) {
	for _, b := range c.state.Book.RestingBets(marketID) {
		c.cancelBet(b)
	}
	for _, b := range c.state.Book.DelayedInMarket(marketID) {
		c.cancelBet(b)
	}
}

// cancelAllBets cancels every bet in the market regardless of delay status,
// walking the by-market index. Used only on market cancellation.
func (c *Chain) cancelAllBets(marketID domain.MarketID) {
	for _, b := range c.state.Book.MarketBets(marketID) {
		c.cancelBet(b)
	}
}

// releaseDelayedBets runs once per block before transactions: delayed bets
// whose window has passed re-enter the book at normal priority and match
// immediately. Bets on markets that are no longer matchable stay in the
// queue; operators clear those with a mass cancel.
func (c *Chain) releaseDelayedBets() {
	for _, b := range c.state.Book.Delayed() {
		if b.EndOfDelay > c.now {
			break
		}
		m, ok := c.state.Markets[b.MarketID]
		if !ok || !m.Matchable() {
			continue
		}
		c.state.Book.Remove(b.ID)
		b.EndOfDelay = 0
		c.matchNewBet(b, true)
		if b.Amount > 0 {
			c.state.Book.Insert(b)
		}
	}
}
