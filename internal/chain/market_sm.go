package chain

import (
	"errors"
	"fmt"

	"github.com/evetabi/bookie/internal/domain"
)

// errEventIgnored marks a transition that is deliberately a no-op (the
// idempotent-cancel cases). It never escapes the fire* helpers.
var errEventIgnored = errors.New("event ignored in current state")

// marketEvent drives the per-market state machine. Events arrive from the
// owning group's cascades and from group resolution.
type marketEvent uint8

const (
	marketEvUnresolved marketEvent = iota
	marketEvFrozen
	marketEvClosed
	marketEvGraded
	marketEvCanceled
	marketEvSettled
)

func (e marketEvent) String() string {
	switch e {
	case marketEvUnresolved:
		return "unresolved"
	case marketEvFrozen:
		return "frozen"
	case marketEvClosed:
		return "closed"
	case marketEvGraded:
		return "graded"
	case marketEvCanceled:
		return "canceled"
	case marketEvSettled:
		return "settled"
	}
	return "unknown"
}

// marketTransition is the pure transition table: given the current status and
// an event it returns the next status, errEventIgnored for the idempotent
// no-ops, or ErrNoTransition.
func marketTransition(status domain.MarketStatus, ev marketEvent) (domain.MarketStatus, error) {
	switch status {
	case domain.MarketUnresolved:
		switch ev {
		case marketEvFrozen:
			return domain.MarketFrozen, nil
		case marketEvClosed:
			return domain.MarketClosed, nil
		case marketEvCanceled:
			return domain.MarketCanceled, nil
		}
	case domain.MarketFrozen:
		switch ev {
		case marketEvUnresolved:
			return domain.MarketUnresolved, nil
		case marketEvClosed:
			return domain.MarketClosed, nil
		case marketEvCanceled:
			return domain.MarketCanceled, nil
		}
	case domain.MarketClosed:
		switch ev {
		case marketEvGraded:
			return domain.MarketGraded, nil
		case marketEvCanceled:
			return domain.MarketCanceled, nil
		}
	case domain.MarketGraded:
		switch ev {
		case marketEvSettled:
			return domain.MarketSettled, nil
		case marketEvCanceled:
			return domain.MarketCanceled, nil
		}
	case domain.MarketCanceled, domain.MarketSettled:
		if ev == marketEvCanceled {
			return status, errEventIgnored
		}
	}
	return status, fmt.Errorf("market %s on %s: %w", status, ev, domain.ErrNoTransition)
}

// fireMarketEvent runs one market transition and its entry side effects.
// The resolution argument is only meaningful for the graded event.
func (c *Chain) fireMarketEvent(m *domain.Market, ev marketEvent, resolution domain.Resolution) error {
	next, err := marketTransition(m.Status, ev)
	if errors.Is(err, errEventIgnored) {
		return nil
	}
	if err != nil {
		return err
	}
	m.Status = next

	switch next {
	case domain.MarketGraded:
		m.Resolution = resolution
	case domain.MarketCanceled:
		// Cancellation refunds everything: resting stakes directly, matched
		// stakes later through the pay-if-canceled settlement branch.
		m.Resolution = domain.ResolutionCancel
		c.cancelAllBets(m.ID)
	}
	return nil
}
