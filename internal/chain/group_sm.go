package chain

import (
	"errors"
	"fmt"

	"github.com/evetabi/bookie/internal/domain"
)

// groupEvent drives the group state machine. Most arrive via update-group
// operations; graded and settled arrive from resolution and settlement.
type groupEvent uint8

const (
	groupEvUpcoming groupEvent = iota
	groupEvInPlay
	groupEvFrozen
	groupEvClosed
	groupEvGraded
	groupEvCanceled
	groupEvSettled
)

func (e groupEvent) String() string {
	switch e {
	case groupEvUpcoming:
		return "upcoming"
	case groupEvInPlay:
		return "in_play"
	case groupEvFrozen:
		return "frozen"
	case groupEvClosed:
		return "closed"
	case groupEvGraded:
		return "graded"
	case groupEvCanceled:
		return "canceled"
	case groupEvSettled:
		return "settled"
	}
	return "unknown"
}

// groupTransition is the pure transition table. The neverInPlay guard blocks
// the in_play event without offering a fallback transition.
func groupTransition(status domain.GroupStatus, ev groupEvent, neverInPlay bool) (domain.GroupStatus, error) {
	switch status {
	case domain.GroupUpcoming:
		switch ev {
		case groupEvFrozen:
			return domain.GroupFrozenUpcoming, nil
		case groupEvInPlay:
			if neverInPlay {
				break
			}
			return domain.GroupInPlay, nil
		case groupEvClosed:
			return domain.GroupClosed, nil
		case groupEvCanceled:
			return domain.GroupCanceled, nil
		}
	case domain.GroupFrozenUpcoming:
		switch ev {
		case groupEvUpcoming:
			return domain.GroupUpcoming, nil
		case groupEvInPlay:
			if neverInPlay {
				break
			}
			return domain.GroupInPlay, nil
		case groupEvClosed:
			return domain.GroupClosed, nil
		case groupEvCanceled:
			return domain.GroupCanceled, nil
		}
	case domain.GroupInPlay:
		switch ev {
		case groupEvFrozen:
			return domain.GroupFrozenInPlay, nil
		case groupEvClosed:
			return domain.GroupClosed, nil
		case groupEvCanceled:
			return domain.GroupCanceled, nil
		}
	case domain.GroupFrozenInPlay:
		switch ev {
		case groupEvInPlay:
			return domain.GroupInPlay, nil
		case groupEvClosed:
			return domain.GroupClosed, nil
		case groupEvCanceled:
			return domain.GroupCanceled, nil
		}
	case domain.GroupClosed:
		switch ev {
		case groupEvGraded:
			return domain.GroupGraded, nil
		case groupEvCanceled:
			return domain.GroupCanceled, nil
		}
	case domain.GroupGraded:
		switch ev {
		case groupEvSettled:
			return domain.GroupSettled, nil
		case groupEvCanceled:
			return domain.GroupCanceled, nil
		}
	case domain.GroupCanceled, domain.GroupSettled:
		if ev == groupEvCanceled {
			return status, errEventIgnored
		}
	}
	return status, fmt.Errorf("group %s on %s: %w", status, ev, domain.ErrNoTransition)
}

// fireGroupEvent runs one group transition and its entry side effects,
// cascading to the member markets and the owning event. byEvent suppresses
// the notify-parent callbacks when the transition was itself triggered by
// the parent event's cascade.
func (c *Chain) fireGroupEvent(g *domain.Group, ev groupEvent, byEvent bool) error {
	next, err := groupTransition(g.Status, ev, g.NeverInPlay)
	if errors.Is(err, errEventIgnored) {
		return nil
	}
	if err != nil {
		return err
	}
	g.Status = next

	switch next {
	case domain.GroupUpcoming:
		// Thaw: markets that are still frozen come back; anything further
		// along stays put.
		for _, m := range c.state.marketsOf(g.ID) {
			if err := c.fireMarketEvent(m, marketEvUnresolved, domain.ResolutionUnset); err != nil &&
				!errors.Is(err, domain.ErrNoTransition) {
				return err
			}
		}

	case domain.GroupFrozenUpcoming, domain.GroupFrozenInPlay:
		for _, m := range c.state.marketsOf(g.ID) {
			if err := c.fireMarketEvent(m, marketEvFrozen, domain.ResolutionUnset); err != nil {
				return err
			}
		}

	case domain.GroupInPlay:
		// Going live clears the pre-game book: unmatched bets were priced
		// against a game that has not started.
		for _, m := range c.state.marketsOf(g.ID) {
			c.cancelAllUnmatchedBets(m.ID)
			if err := c.fireMarketEvent(m, marketEvUnresolved, domain.ResolutionUnset); err != nil &&
				!errors.Is(err, domain.ErrNoTransition) {
				return err
			}
		}

	case domain.GroupClosed:
		for _, m := range c.state.marketsOf(g.ID) {
			c.cancelAllUnmatchedBets(m.ID)
			if err := c.fireMarketEvent(m, marketEvClosed, domain.ResolutionUnset); err != nil {
				return err
			}
		}
		if !byEvent {
			c.notifyGroupClosed(g)
		}

	case domain.GroupGraded:
		g.SettlingTime = c.now + g.DelayBeforeSettling

	case domain.GroupSettled:
		for _, m := range c.state.marketsOf(g.ID) {
			if err := c.fireMarketEvent(m, marketEvSettled, domain.ResolutionUnset); err != nil {
				return err
			}
		}
		c.notifyGroupResolved(g, false)

	case domain.GroupCanceled:
		for _, m := range c.state.marketsOf(g.ID) {
			if err := c.fireMarketEvent(m, marketEvCanceled, domain.ResolutionUnset); err != nil {
				return err
			}
		}
		if !byEvent {
			c.notifyGroupResolved(g, true)
		}
		g.SettlingTime = c.now
	}
	return nil
}
