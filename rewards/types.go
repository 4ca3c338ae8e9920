/*
Package rewards provides the core engine for the internal points and
rewards administration system.

PURPOSE:
  Employees submit point requests across categories (mentoring, presales
  contributions, AI adoption, value-add, ...), departmental validators
  approve or reject them, and dashboards aggregate approved points per
  fiscal quarter and year against grade-based targets, with a milestone
  bonus system layered on top.

KEY CONCEPTS IN THIS FILE (types.go):
  - PointRequest: A single submission with its approval state
  - Point: An immutable ledger entry, created once per approval
  - Category: A reward category, possibly duplicated across two registries
  - User: An employee/manager with a grade that determines targets
  - RewardConfig: Grade targets, milestones, thresholds (admin-owned)

DESIGN PRINCIPLES:
  1. Immutability: ledger entries are written once, never mutated
  2. Explicit optionals: legacy records have missing date/utilization
     fields; these are typed as pointers, never zero-value guesses
  3. Type Safety: strong typing for IDs prevents mixing user/category ids
  4. Degradation: a malformed record contributes nothing, it never aborts
     a whole aggregation pass

SEE ALSO:
  - fiscal.go: April-March fiscal calendar
  - effective.go: effective-date fallback resolution
  - aggregate.go: per-user quarterly/yearly totals
  - bonus.go: eligibility gates and milestone bonus math
*/
package rewards

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type CategoryID string
type RequestID string
type PointID string

// =============================================================================
// REQUEST STATUS - fixed 2-step approval state machine
// =============================================================================

type RequestStatus string

const (
	StatusPending  RequestStatus = "Pending"
	StatusApproved RequestStatus = "Approved"
	StatusRejected RequestStatus = "Rejected"
)

// Terminal reports whether a request in this status can still transition.
// Pending is the only non-terminal status; there is no re-opening.
func (s RequestStatus) Terminal() bool { return s != StatusPending }

// =============================================================================
// GRADES AND ROLES
// =============================================================================

type Grade string

const (
	GradeA1 Grade = "A1"
	GradeB1 Grade = "B1"
	GradeB2 Grade = "B2"
	GradeC1 Grade = "C1"
	GradeC2 Grade = "C2"
	GradeD1 Grade = "D1"
	GradeD2 Grade = "D2"
)

// Grades returns the known grade tiers, lowest first.
func Grades() []Grade {
	return []Grade{GradeA1, GradeB1, GradeB2, GradeC1, GradeC2, GradeD1, GradeD2}
}

// exemptGrade is the lowest tier, exempt from the billability gate.
const exemptGrade = GradeA1

type Role string

const (
	RoleEmployee  Role = "Employee"
	RoleManager   Role = "Manager"
	RoleValidator Role = "Validator"
)

// =============================================================================
// POINT REQUEST - a single submission
// =============================================================================

// PointRequest is one employee submission moving through the
// Pending -> Approved/Rejected state machine.
//
// Date fields are candidates, not authoritative: at most one of them
// places the record in time, chosen by ResolveEffectiveDate. Legacy
// records may carry any subset.
type PointRequest struct {
	ID         RequestID
	UserID     UserID
	CategoryID CategoryID
	Points     int
	IsBonus    bool
	Status     RequestStatus

	// Candidate effective dates (see effective.go for precedence)
	EventDate    *time.Time
	RequestDate  *time.Time
	AwardDate    *time.Time
	ResponseDate *time.Time

	// Utilization submissions: either an explicit value or a raw
	// submission payload carrying one under legacy key names.
	// The value is ambiguous by design: a fraction in (0,1] or a
	// whole-number percentage in (1,100]. See utilization.go.
	UtilizationValue *float64
	Submission       map[string]float64

	// Processing metadata, written by the approve/reject transition
	ProcessedBy   UserID
	ProcessedDate *time.Time
	ProcessedDept string
	ResponseNotes string
	ManagerNotes  string

	// Attachment reference. The blob itself is owned by the attachment
	// collaborator; the core only carries the reference.
	AttachmentID   string
	AttachmentName string
	HasAttachment  bool

	CreatedAt time.Time
}

// =============================================================================
// POINT - immutable ledger entry
// =============================================================================

// Point records an actually-awarded point value. Created exactly once by
// the approval transition (or directly for ad-hoc milestone bonuses,
// in which case RequestID is nil). Never mutated afterward.
type Point struct {
	ID         PointID
	UserID     UserID
	CategoryID CategoryID
	Points     int
	IsBonus    bool

	AwardDate *time.Time
	EventDate *time.Time

	AwardedBy UserID
	Notes     string

	// Back-reference to the originating request. The store enforces
	// uniqueness on this so a retried approval can never double-insert.
	RequestID *RequestID
}

// =============================================================================
// CATEGORY - reconciled across two registries
// =============================================================================

// Category is one physical category document. The same logical category
// may exist in both the legacy and the current registry under different
// ids; callers go through the Catalog (categories.go) rather than using
// raw ids.
type Category struct {
	ID         CategoryID
	Name       string
	Code       string
	Department string
	Active     bool
	IsBonus    bool

	GradePoints   map[Grade]int
	GradeLimits   map[Grade]int
	PointsPerUnit int
}

// CodeUtilizationBillable tags the category whose records carry the
// monthly billable-utilization metric rather than reward points.
const CodeUtilizationBillable = "utilization_billable"

// CodeBonusPoints tags the category used for directly-awarded milestone
// bonuses.
const CodeBonusPoints = "bonus_points"

// =============================================================================
// USER
// =============================================================================

type User struct {
	ID         UserID
	Name       string
	Email      string
	Grade      Grade
	Department string
	Role       Role
	ManagerID  *UserID
}

// =============================================================================
// REWARD CONFIG - process-wide configuration (see config.go for lifecycle)
// =============================================================================

// Milestone is a percentage-of-yearly-target threshold with a bonus
// amount per quarter label ("Q1".."Q4"). Milestones are cumulative:
// clearing 100% also collects every lower milestone's bonus for the
// current quarter.
type Milestone struct {
	Name        string
	Description string
	Percentage  int
	BonusPoints map[string]int
}

// RewardConfig holds grade targets, milestones and bonus limits.
// Read via ConfigProvider once per aggregation pass so a whole
// leaderboard computation sees one consistent view.
type RewardConfig struct {
	GradeTargets         map[Grade]int
	Milestones           []Milestone
	UtilizationThreshold int
	YearlyBonusLimit     int
	LastUpdated          time.Time
}

// QuarterlyTarget returns the target for a grade, and whether the grade
// is known to the configuration at all.
func (c *RewardConfig) QuarterlyTarget(g Grade) (int, bool) {
	t, ok := c.GradeTargets[g]
	return t, ok
}

// YearlyTarget is four quarterly targets.
func (c *RewardConfig) YearlyTarget(g Grade) int {
	t := c.GradeTargets[g]
	return t * 4
}
