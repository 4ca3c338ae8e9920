/*
store.go - Persistence interface over the record collections

PURPOSE:
  Defines the contract between the engine and the record store. The
  engine treats persistence as a collection-of-documents abstraction:
  query-by-filter over PointRequest/Point/Category/User collections
  returning materialized lists, plus a grouped-sum primitive.

KEY CONTRACTS:
  - FindRequests/FindPoints take bulk filters (sets of user ids, a date
    window, category include/exclude sets). The Batch Aggregator issues
    a BOUNDED number of these per pass, never one query per user.
  - TransitionRequest is an atomic conditional update: "move to
    Approved/Rejected only if currently Pending". This is the only
    serialization the approve/reject race needs.
  - InsertPoint enforces a unique constraint on the request
    back-reference, so a retried approval can never double-insert.
  - SumLedgerPoints is the grouped-sum primitive over the points
    ledger. Stores that can push the grouping down (SQL GROUP BY,
    Mongo $group) should; the result shape is the same either way.

DATE PREFILTERING:
  A filter Window is a QUERY-SIDE prefilter matching ANY candidate date
  field in range (the store cannot resolve effective dates). Callers
  always re-check the resolved effective date in process; the prefilter
  only bounds the fetch.

IMPLEMENTATIONS:
  - rewards/store/memory.go: in-memory, for tests/dev (counts queries)
  - store/sqlite:            embedded production store
  - store/mongodb:           document-store deployment
*/
package rewards

import (
	"context"
	"time"
)

// =============================================================================
// FILTERS
// =============================================================================

// RequestFilter selects point requests. Zero values mean "no
// constraint". CategoryIDs and ExcludeCategoryIDs may both be set; a
// record must match the include set and miss the exclude set.
type RequestFilter struct {
	UserIDs            []UserID
	Status             RequestStatus
	CategoryIDs        []CategoryID
	ExcludeCategoryIDs []CategoryID
	Window             *Window
	BonusOnly          *bool
}

// PointFilter selects ledger entries.
type PointFilter struct {
	UserIDs            []UserID
	CategoryIDs        []CategoryID
	ExcludeCategoryIDs []CategoryID
	Window             *Window
	BonusOnly          *bool
}

// UserFilter selects users.
type UserFilter struct {
	Roles      []Role
	Grades     []Grade
	Department string
}

// ProcessedMeta carries the metadata the approve/reject transition
// stamps onto a request.
type ProcessedMeta struct {
	By         UserID
	At         time.Time
	Department string
	Notes      string
}

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// --- point requests ---

	// GetRequest returns ErrRequestNotFound when the id does not resolve.
	GetRequest(ctx context.Context, id RequestID) (*PointRequest, error)
	FindRequests(ctx context.Context, f RequestFilter) ([]PointRequest, error)
	InsertRequest(ctx context.Context, r *PointRequest) error

	// TransitionRequest atomically moves a Pending request to a
	// terminal status, stamping the processed metadata. Returns the
	// updated request, ErrRequestNotFound, or an InvalidStateError if
	// the request already left Pending (concurrent double-approval).
	TransitionRequest(ctx context.Context, id RequestID, next RequestStatus, meta ProcessedMeta) (*PointRequest, error)

	// --- points ledger ---

	FindPoints(ctx context.Context, f PointFilter) ([]Point, error)

	// InsertPoint returns ErrDuplicateAward if the ledger already holds
	// an entry referencing the same originating request.
	InsertPoint(ctx context.Context, p *Point) error

	// SumLedgerPoints groups ledger points by user. The window applies
	// to the entry's effective date (event date, else award date), so
	// the grouped totals agree with the in-process resolver. Used for
	// yearly bonus totals; the ledger is authoritative for bonuses,
	// which may have no originating request.
	SumLedgerPoints(ctx context.Context, f PointFilter) (map[UserID]int, error)

	// --- categories (two registries, reconciled by the Catalog) ---

	LegacyCategories(ctx context.Context) ([]Category, error)
	CurrentCategories(ctx context.Context) ([]Category, error)

	// InsertLegacyCategory adds a category to the legacy registry.
	// Only used to materialize the bonus-points category on first award.
	InsertLegacyCategory(ctx context.Context, c *Category) error

	// --- users ---

	// GetUser returns ErrUserNotFound when the id does not resolve.
	GetUser(ctx context.Context, id UserID) (*User, error)
	FindUsers(ctx context.Context, f UserFilter) ([]User, error)
	InsertUser(ctx context.Context, u *User) error

	// --- reward configuration ---

	// LoadRewardConfig returns ErrConfigMissing when no configuration
	// document exists yet.
	LoadRewardConfig(ctx context.Context) (*RewardConfig, error)
	SaveRewardConfig(ctx context.Context, c *RewardConfig) error
}

// =============================================================================
// NOTIFICATION BOUNDARY
// =============================================================================

// Event is a notification intent handed to the dispatch collaborator
// after a committed transition. The engine's contract ends at "approval
// committed", never at "notification delivered".
type Event struct {
	Type         string
	TargetUserID UserID
	Payload      map[string]any
}

// Event types emitted by the lifecycle service.
const (
	EventRequestApproved = "request_approved"
	EventRequestRejected = "request_rejected"
	EventBonusAwarded    = "bonus_points_awarded"
)

// Notifier is fire-and-forget: Publish must not block and its failures
// must never roll back an already-committed transition.
type Notifier interface {
	Publish(e Event)
}

// NopNotifier discards events. Used where no dispatcher is wired.
type NopNotifier struct{}

func (NopNotifier) Publish(Event) {}
