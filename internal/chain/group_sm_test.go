package chain

import (
	"errors"
	"testing"

	"github.com/evetabi/bookie/internal/domain"
)

func TestGroupTransitionTable(t *testing.T) {
	cases := []struct {
		from domain.GroupStatus
		ev   groupEvent
		want domain.GroupStatus
	}{
		{domain.GroupUpcoming, groupEvFrozen, domain.GroupFrozenUpcoming},
		{domain.GroupUpcoming, groupEvInPlay, domain.GroupInPlay},
		{domain.GroupUpcoming, groupEvClosed, domain.GroupClosed},
		{domain.GroupUpcoming, groupEvCanceled, domain.GroupCanceled},
		{domain.GroupFrozenUpcoming, groupEvUpcoming, domain.GroupUpcoming},
		{domain.GroupFrozenUpcoming, groupEvInPlay, domain.GroupInPlay},
		{domain.GroupFrozenUpcoming, groupEvClosed, domain.GroupClosed},
		{domain.GroupFrozenUpcoming, groupEvCanceled, domain.GroupCanceled},
		{domain.GroupInPlay, groupEvFrozen, domain.GroupFrozenInPlay},
		{domain.GroupInPlay, groupEvClosed, domain.GroupClosed},
		{domain.GroupInPlay, groupEvCanceled, domain.GroupCanceled},
		{domain.GroupFrozenInPlay, groupEvInPlay, domain.GroupInPlay},
		{domain.GroupFrozenInPlay, groupEvClosed, domain.GroupClosed},
		{domain.GroupFrozenInPlay, groupEvCanceled, domain.GroupCanceled},
		{domain.GroupClosed, groupEvGraded, domain.GroupGraded},
		{domain.GroupClosed, groupEvCanceled, domain.GroupCanceled},
		{domain.GroupGraded, groupEvSettled, domain.GroupSettled},
		{domain.GroupGraded, groupEvCanceled, domain.GroupCanceled},
	}
	for _, tc := range cases {
		got, err := groupTransition(tc.from, tc.ev, false)
		if err != nil {
			t.Errorf("%s on %s: unexpected error %v", tc.from, tc.ev, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s on %s = %s, want %s", tc.from, tc.ev, got, tc.want)
		}
	}
}

func TestGroupTransitionUndefined(t *testing.T) {
	cases := []struct {
		from domain.GroupStatus
		ev   groupEvent
	}{
		{domain.GroupUpcoming, groupEvGraded},
		{domain.GroupUpcoming, groupEvSettled},
		{domain.GroupUpcoming, groupEvUpcoming},
		{domain.GroupInPlay, groupEvUpcoming},
		{domain.GroupInPlay, groupEvGraded},
		{domain.GroupClosed, groupEvFrozen},
		{domain.GroupClosed, groupEvSettled},
		{domain.GroupGraded, groupEvGraded},
		{domain.GroupSettled, groupEvSettled},
		{domain.GroupCanceled, groupEvClosed},
	}
	for _, tc := range cases {
		if _, err := groupTransition(tc.from, tc.ev, false); !errors.Is(err, domain.ErrNoTransition) {
			t.Errorf("%s on %s: err = %v, want ErrNoTransition", tc.from, tc.ev, err)
		}
	}
}

func TestGroupTransitionNeverInPlayGuard(t *testing.T) {
	for _, from := range []domain.GroupStatus{domain.GroupUpcoming, domain.GroupFrozenUpcoming} {
		if _, err := groupTransition(from, groupEvInPlay, true); !errors.Is(err, domain.ErrNoTransition) {
			t.Errorf("%s on in_play with never_in_play: err = %v, want ErrNoTransition", from, err)
		}
	}
	// The guard only applies to groups that have not gone live; a frozen
	// in-play group can always resume.
	if got, err := groupTransition(domain.GroupFrozenInPlay, groupEvInPlay, true); err != nil || got != domain.GroupInPlay {
		t.Errorf("frozen_in_play on in_play = %s, %v", got, err)
	}
}

// TestGroupCancelIdempotent checks that a cancel arriving after the group is
// already done is silently swallowed rather than failing.
func TestGroupCancelIdempotent(t *testing.T) {
	c := testChain(t)
	for _, status := range []domain.GroupStatus{domain.GroupCanceled, domain.GroupSettled} {
		g := &domain.Group{ID: 1, Status: status}
		if err := c.fireGroupEvent(g, groupEvCanceled, false); err != nil {
			t.Errorf("cancel in %s: unexpected error %v", status, err)
		}
		if g.Status != status {
			t.Errorf("cancel in %s moved status to %s", status, g.Status)
		}
	}
}

func TestGroupGradedSchedulesSettling(t *testing.T) {
	c := testChain(t)
	c.now = 5000
	g := &domain.Group{ID: 1, Status: domain.GroupClosed, DelayBeforeSettling: 600}
	if err := c.fireGroupEvent(g, groupEvGraded, false); err != nil {
		t.Fatalf("graded: %v", err)
	}
	if g.SettlingTime != 5600 {
		t.Errorf("settling time = %d, want 5600", g.SettlingTime)
	}
}

func testChain(t *testing.T) *Chain {
	t.Helper()
	c, err := New(DefaultParameters(), NewMemLedger(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}
