/*
errors.go - Centralized error types for the rewards engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify with errors.Is / the helpers at the bottom.

ERROR CATEGORIES:
  1. NotFound      - request/user/category id does not resolve
  2. InvalidState  - transition on a non-Pending request, unknown grade
  3. Duplicate     - ledger already holds an entry for the request
  4. Limit         - a bonus award would exceed the yearly cap

Aggregation never surfaces per-record failures: records with an
unresolvable date or utilization value are silently excluded
(PartialDataAmbiguity), so one malformed record cannot take down a
200-user leaderboard.
*/
package rewards

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRequestNotFound is returned when a request id does not resolve.
	ErrRequestNotFound = errors.New("point request not found")

	// ErrUserNotFound is returned when a user id does not resolve.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidState is returned when approving/rejecting a request
	// that is no longer Pending. This is expected under concurrent
	// validators; the losing caller reports and moves on.
	ErrInvalidState = errors.New("request is not pending")

	// ErrDuplicateAward is returned when the ledger already holds an
	// entry for the originating request. Safe to treat as "done".
	ErrDuplicateAward = errors.New("ledger entry already exists for request")

	// ErrUnknownGrade is returned when a grade has no configured target.
	ErrUnknownGrade = errors.New("grade not present in reward configuration")

	// ErrBonusAlreadyAwarded is returned when a bonus was already
	// awarded to the user in the current quarter.
	ErrBonusAlreadyAwarded = errors.New("bonus already awarded this quarter")

	// ErrConfigMissing is returned by stores when no reward
	// configuration document exists yet. ConfigProvider heals this by
	// inserting defaults; it is a bootstrap signal, not a hard error.
	ErrConfigMissing = errors.New("reward configuration missing")

	// ErrInvalidBonusAmount is returned for zero/negative bonus awards.
	ErrInvalidBonusAmount = errors.New("bonus amount must be positive")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidStateError reports the status that blocked a transition.
type InvalidStateError struct {
	RequestID RequestID
	Status    RequestStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("request %s is %s, not %s", e.RequestID, e.Status, StatusPending)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// BonusLimitError reports a would-exceed-yearly-limit rejection.
type BonusLimitError struct {
	UserID    UserID
	SoFar     int
	Requested int
	Limit     int
}

func (e *BonusLimitError) Error() string {
	return fmt.Sprintf("awarding %d bonus points would exceed the yearly bonus limit of %d (already %d)",
		e.Requested, e.Limit, e.SoFar)
}

func (e *BonusLimitError) Unwrap() error { return ErrYearlyLimitExceeded }

// ErrYearlyLimitExceeded is the sentinel behind BonusLimitError.
var ErrYearlyLimitExceeded = errors.New("yearly bonus limit exceeded")

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRequestNotFound) || errors.Is(err, ErrUserNotFound)
}

// IsClientError reports whether the error is the caller's problem
// (reported, no retry) rather than a store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrDuplicateAward) ||
		errors.Is(err, ErrBonusAlreadyAwarded) ||
		errors.Is(err, ErrYearlyLimitExceeded) ||
		errors.Is(err, ErrInvalidBonusAmount) ||
		errors.Is(err, ErrUnknownGrade)
}
