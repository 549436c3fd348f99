package domain

import "errors"

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// State machine errors
var (
	// ErrNoTransition is returned by a state machine when the event is not
	// defined for the current state. It is swallowed only at the documented
	// cascade call sites; everywhere else it is a hard failure.
	ErrNoTransition = errors.New("no transition for event in current state")
)

// Object lookup errors
var (
	ErrRulesNotFound  = errors.New("betting market rules not found")
	ErrEventNotFound  = errors.New("event not found")
	ErrGroupNotFound  = errors.New("betting market group not found")
	ErrMarketNotFound = errors.New("betting market not found")
	ErrBetNotFound    = errors.New("bet not found")
	ErrBadRelativeRef = errors.New("relative reference does not resolve inside transaction")
	ErrWrongRefType   = errors.New("reference resolves to an object of the wrong type")
)

// Operation validation errors
var (
	// ErrNoFieldsToUpdate is returned when an update operation supplies no
	// changed fields.
	ErrNoFieldsToUpdate = errors.New("update operation must change at least one field")

	// ErrStatusUnchanged is returned when an update requests the status the
	// group already has.
	ErrStatusUnchanged = errors.New("requested status equals current status")

	// ErrBetsNotAllowed is returned when a bet is placed while the owning
	// group's status forbids it (frozen, closed, graded, settled, canceled).
	ErrBetsNotAllowed = errors.New("group status does not allow betting")

	// ErrAssetMismatch is returned when a bet's asset differs from the
	// group's settlement asset.
	ErrAssetMismatch = errors.New("bet asset does not match group asset")

	// ErrOddsOutOfRange is returned when the backer multiplier is outside
	// the configured [min, max] bounds.
	ErrOddsOutOfRange = errors.New("backer multiplier outside configured bounds")

	// ErrOddsIncrement is returned when the backer multiplier is not aligned
	// to the configured odds-increment ladder.
	ErrOddsIncrement = errors.New("backer multiplier not aligned to odds increment")

	// ErrZeroAmountBet is returned for bets with a non-positive stake.
	ErrZeroAmountBet = errors.New("bet amount must be positive")

	// ErrNotBetOwner is returned when someone other than the bettor tries to
	// cancel a bet.
	ErrNotBetOwner = errors.New("only the bettor may cancel this bet")
)

// Resolution errors
var (
	// ErrResolutionIncomplete is returned when the resolution map does not
	// match the group's child markets 1:1.
	ErrResolutionIncomplete = errors.New("resolution map must cover every market in the group exactly once")

	// ErrPartialCancel is returned when some but not all markets in a group
	// resolve cancel.
	ErrPartialCancel = errors.New("either all markets resolve cancel or none do")

	// ErrResolutionShape is returned when a non-canceled group does not
	// resolve exactly one market win and the rest not_win.
	ErrResolutionShape = errors.New("exactly one market must resolve win and the rest not_win")
)

// Ledger errors
var (
	// ErrInsufficientBalance is returned when the post-match balance check
	// fails at bet placement. The whole operation fails; no partial bet
	// is left resting.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// API errors
var (
	ErrUnauthorized = errors.New("missing or malformed credentials")
	ErrTokenInvalid = errors.New("token is invalid or expired")
	ErrForbidden    = errors.New("insufficient role for this operation")
)

// notFoundErrors collects the "object not found" sentinels so IsNotFound
// stays in sync automatically.
var notFoundErrors = []error{
	ErrRulesNotFound,
	ErrEventNotFound,
	ErrGroupNotFound,
	ErrMarketNotFound,
	ErrBetNotFound,
}

// IsNotFound reports whether err (or its chain) is a missing-object error.
func IsNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
