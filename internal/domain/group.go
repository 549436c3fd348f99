package domain

// ──────────────────────────────────────────────────────────────────────────────
// Statuses
// ──────────────────────────────────────────────────────────────────────────────

// GroupStatus is the lifecycle state of a betting market group.
type GroupStatus uint8

const (
	GroupUpcoming GroupStatus = iota
	GroupFrozenUpcoming
	GroupInPlay
	GroupFrozenInPlay
	GroupClosed
	GroupGraded
	// GroupReGrading is reserved: it appears in the status space but no
	// transition reaches it in this version.
	GroupReGrading
	GroupCanceled
	GroupSettled
)

// String returns the wire/display name of the status. The two frozen states
// are distinguished here; ExternalStatus collapses them.
func (s GroupStatus) String() string {
	switch s {
	case GroupUpcoming:
		return "upcoming"
	case GroupFrozenUpcoming:
		return "frozen_upcoming"
	case GroupInPlay:
		return "in_play"
	case GroupFrozenInPlay:
		return "frozen_in_play"
	case GroupClosed:
		return "closed"
	case GroupGraded:
		return "graded"
	case GroupReGrading:
		return "re_grading"
	case GroupCanceled:
		return "canceled"
	case GroupSettled:
		return "settled"
	}
	return "unknown"
}

// ExternalStatus maps the granular internal state onto the coarser status
// visible to operation submitters: both frozen states report as "frozen".
func (s GroupStatus) ExternalStatus() string {
	switch s {
	case GroupFrozenUpcoming, GroupFrozenInPlay:
		return "frozen"
	default:
		return s.String()
	}
}

// GroupUpdateStatus is the subset of statuses an update-group operation may
// request directly. Everything else is reached only through internal
// transitions.
type GroupUpdateStatus uint8

const (
	UpdateStatusUpcoming GroupUpdateStatus = iota
	UpdateStatusInPlay
	UpdateStatusClosed
	UpdateStatusFrozen
	UpdateStatusCanceled
)

// String returns the request name of the update status.
func (s GroupUpdateStatus) String() string {
	switch s {
	case UpdateStatusUpcoming:
		return "upcoming"
	case UpdateStatusInPlay:
		return "in_play"
	case UpdateStatusClosed:
		return "closed"
	case UpdateStatusFrozen:
		return "frozen"
	case UpdateStatusCanceled:
		return "canceled"
	}
	return "unknown"
}

// ──────────────────────────────────────────────────────────────────────────────
// Objects
// ──────────────────────────────────────────────────────────────────────────────

// Rules holds the human-readable terms a market group is governed by.
// Immutable except through governance-style update operations.
type Rules struct {
	ID          RulesID
	Name        string
	Description string
}

// Group is a betting market group: all mutually exclusive outcomes of one
// event market, settled in a single asset.
type Group struct {
	ID          GroupID
	Description string
	EventID     EventID
	RulesID     RulesID
	AssetID     AssetID

	// TotalMatchedAmount accumulates the stake (both sides) matched across
	// all member markets, for reporting.
	TotalMatchedAmount int64

	// NeverInPlay guards the upcoming→in_play transition: when set, the
	// group can never accept live bets.
	NeverInPlay bool

	// DelayBeforeSettling is the grading challenge window in seconds;
	// SettlingTime is the scheduled payout block time (0 = not scheduled).
	DelayBeforeSettling int64
	SettlingTime        int64

	Status GroupStatus
}

// BetsAreAllowed reports whether new bets may be placed on the group's
// markets in its current state.
func (g *Group) BetsAreAllowed() bool {
	return g.Status == GroupUpcoming || g.Status == GroupInPlay
}

// BetsAreDelayed reports whether newly placed bets are subject to the
// live-betting delay before becoming matchable.
func (g *Group) BetsAreDelayed() bool {
	return g.Status == GroupInPlay
}

// Event is the minimal owned view of the event object that groups report
// lifecycle changes to. The full event state machine lives outside this
// subsystem; here we only track the all-groups-done aggregation it needs.
type Event struct {
	ID          EventID
	Description string
	Status      EventStatus

	// Counters feeding the aggregate transitions: the event finishes when
	// every member group has closed, and resolves once every member group
	// has settled or canceled.
	GroupsTotal    int
	GroupsClosed   int
	GroupsResolved int
	GroupsCanceled int
}

// EventStatus is the coarse lifecycle of an event as seen by this subsystem.
type EventStatus uint8

const (
	EventUpcoming EventStatus = iota
	EventFinished
	EventSettled
	EventCanceled
)

// String returns the display name of the event status.
func (s EventStatus) String() string {
	switch s {
	case EventUpcoming:
		return "upcoming"
	case EventFinished:
		return "finished"
	case EventSettled:
		return "settled"
	case EventCanceled:
		return "canceled"
	}
	return "unknown"
}
