/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupled from the domain
  model so internal types can evolve without breaking clients.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Incoming request bodies carry go-playground/validator tags; handlers
  run them through the shared Validate instance before touching the
  domain layer.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/vantage/points-engine/rewards"
)

// =============================================================================
// REQUESTS
// =============================================================================

// SubmitRequestRequest is the body for submitting a point request.
type SubmitRequestRequest struct {
	UserID           string             `json:"user_id" validate:"required"`
	CategoryID       string             `json:"category_id" validate:"required"`
	Points           int                `json:"points" validate:"gt=0"`
	IsBonus          bool               `json:"is_bonus"`
	EventDate        *string            `json:"event_date,omitempty"`
	UtilizationValue *float64           `json:"utilization_value,omitempty" validate:"omitempty,gt=0"`
	Submission       map[string]float64 `json:"submission,omitempty"`
	ManagerNotes     string             `json:"manager_notes,omitempty"`
}

// DecideRequestRequest is the body for approve/reject.
type DecideRequestRequest struct {
	ApproverID string `json:"approver_id" validate:"required"`
	Notes      string `json:"notes,omitempty"`
}

// AwardBonusRequest is the body for a manual bonus award.
type AwardBonusRequest struct {
	Amount    int    `json:"amount" validate:"gt=0"`
	Quarter   int    `json:"quarter" validate:"min=1,max=4"`
	Year      int    `json:"year" validate:"required"`
	AwardedBy string `json:"awarded_by" validate:"required"`
	Notes     string `json:"notes,omitempty"`
}

// CreateUserRequest is the body for creating an employee record.
type CreateUserRequest struct {
	ID         string `json:"id" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	Grade      string `json:"grade,omitempty"`
	Department string `json:"department,omitempty"`
	Role       string `json:"role" validate:"required,oneof=Employee Manager Validator"`
	ManagerID  string `json:"manager_id,omitempty"`
}

// UpdateConfigRequest is the body for replacing the reward config.
type UpdateConfigRequest struct {
	GradeTargets         map[string]int `json:"grade_targets" validate:"required,min=1"`
	Milestones           []MilestoneDTO `json:"milestones" validate:"required,min=1,dive"`
	UtilizationThreshold int            `json:"utilization_threshold" validate:"min=0,max=100"`
	YearlyBonusLimit     int            `json:"yearly_bonus_limit" validate:"gt=0"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// RequestDTO represents a point request in API responses.
type RequestDTO struct {
	ID               string             `json:"id"`
	UserID           string             `json:"user_id"`
	CategoryID       string             `json:"category_id"`
	Points           int                `json:"points"`
	IsBonus          bool               `json:"is_bonus"`
	Status           string             `json:"status"`
	EventDate        *string            `json:"event_date,omitempty"`
	RequestDate      *string            `json:"request_date,omitempty"`
	ResponseDate     *string            `json:"response_date,omitempty"`
	UtilizationValue *float64           `json:"utilization_value,omitempty"`
	Submission       map[string]float64 `json:"submission,omitempty"`
	ProcessedBy      string             `json:"processed_by,omitempty"`
	ResponseNotes    string             `json:"response_notes,omitempty"`
	ManagerNotes     string             `json:"manager_notes,omitempty"`
	CreatedAt        string             `json:"created_at"`
}

// PointDTO represents a ledger entry in API responses.
type PointDTO struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	CategoryID string  `json:"category_id"`
	Points     int     `json:"points"`
	IsBonus    bool    `json:"is_bonus"`
	AwardDate  *string `json:"award_date,omitempty"`
	EventDate  *string `json:"event_date,omitempty"`
	AwardedBy  string  `json:"awarded_by,omitempty"`
	Notes      string  `json:"notes,omitempty"`
	RequestID  *string `json:"request_id,omitempty"`
}

// LeaderboardEntryDTO is one ranked leaderboard row.
type LeaderboardEntryDTO struct {
	Rank              int            `json:"rank"`
	UserID            string         `json:"user_id"`
	Name              string         `json:"name"`
	Grade             string         `json:"grade,omitempty"`
	Department        string         `json:"department,omitempty"`
	Role              string         `json:"role"`
	TotalPoints       int            `json:"total_points"`
	RegularPoints     int            `json:"regular_points"`
	BonusPoints       int            `json:"bonus_points"`
	CategoryBreakdown map[string]int `json:"category_breakdown,omitempty"`
	UtilizationPct    float64        `json:"utilization_pct"`
	YearlyBonusPoints int            `json:"yearly_bonus_points"`
	ProgressPct       float64        `json:"progress_pct"`
}

// UserSummaryDTO is the single-employee window summary.
type UserSummaryDTO struct {
	UserID            string         `json:"user_id"`
	Name              string         `json:"name"`
	Grade             string         `json:"grade,omitempty"`
	Window            WindowDTO      `json:"window"`
	RegularPoints     int            `json:"regular_points"`
	BonusPoints       int            `json:"bonus_points"`
	TotalPoints       int            `json:"total_points"`
	RecordCount       int            `json:"record_count"`
	UtilizationPct    float64        `json:"utilization_pct"`
	CategoryBreakdown map[string]int `json:"category_breakdown,omitempty"`
}

// EligibilityDTO is one row of the eligibility report.
type EligibilityDTO struct {
	UserID            string  `json:"user_id"`
	Name              string  `json:"name"`
	Grade             string  `json:"grade,omitempty"`
	QuarterlyPoints   int     `json:"quarterly_points"`
	YearlyPoints      int     `json:"yearly_points"`
	UtilizationPct    float64 `json:"utilization_pct"`
	YearlyBonusPoints int     `json:"yearly_bonus_points"`
	Eligible          bool    `json:"eligible"`
	Reason            string  `json:"reason,omitempty"`
	BonusAmount       int     `json:"bonus_amount,omitempty"`
}

// CategoryDTO represents a reconciled category.
type CategoryDTO struct {
	Name string   `json:"name"`
	Code string   `json:"code,omitempty"`
	IDs  []string `json:"ids"`
}

// QuarterDTO describes one fiscal quarter's bounds.
type QuarterDTO struct {
	Label      string    `json:"label"`
	Number     int       `json:"number"`
	FiscalYear int       `json:"fiscal_year"`
	Window     WindowDTO `json:"window"`
	Current    bool      `json:"current"`
}

// WindowDTO is a date window in responses.
type WindowDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MilestoneDTO mirrors a configured milestone.
type MilestoneDTO struct {
	Name        string         `json:"name" validate:"required"`
	Description string         `json:"description,omitempty"`
	Percentage  int            `json:"percentage" validate:"min=1,max=100"`
	BonusPoints map[string]int `json:"bonus_points" validate:"required"`
}

// ConfigDTO is the reward configuration document.
type ConfigDTO struct {
	GradeTargets         map[string]int `json:"grade_targets"`
	Milestones           []MilestoneDTO `json:"milestones"`
	UtilizationThreshold int            `json:"utilization_threshold"`
	YearlyBonusLimit     int            `json:"yearly_bonus_limit"`
	LastUpdated          string         `json:"last_updated,omitempty"`
}

// ErrorResponse is the error envelope for all failures.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// MAPPING
// =============================================================================

func toRequestDTO(r *rewards.PointRequest) RequestDTO {
	return RequestDTO{
		ID:               string(r.ID),
		UserID:           string(r.UserID),
		CategoryID:       string(r.CategoryID),
		Points:           r.Points,
		IsBonus:          r.IsBonus,
		Status:           string(r.Status),
		EventDate:        fmtDatePtr(r.EventDate),
		RequestDate:      fmtDatePtr(r.RequestDate),
		ResponseDate:     fmtDatePtr(r.ResponseDate),
		UtilizationValue: r.UtilizationValue,
		Submission:       r.Submission,
		ProcessedBy:      string(r.ProcessedBy),
		ResponseNotes:    r.ResponseNotes,
		ManagerNotes:     r.ManagerNotes,
		CreatedAt:        r.CreatedAt.Format(time.RFC3339),
	}
}

func toPointDTO(p *rewards.Point) PointDTO {
	dto := PointDTO{
		ID:         string(p.ID),
		UserID:     string(p.UserID),
		CategoryID: string(p.CategoryID),
		Points:     p.Points,
		IsBonus:    p.IsBonus,
		AwardDate:  fmtDatePtr(p.AwardDate),
		EventDate:  fmtDatePtr(p.EventDate),
		AwardedBy:  string(p.AwardedBy),
		Notes:      p.Notes,
	}
	if p.RequestID != nil {
		v := string(*p.RequestID)
		dto.RequestID = &v
	}
	return dto
}

func toLeaderboardDTO(e rewards.LeaderboardEntry) LeaderboardEntryDTO {
	return LeaderboardEntryDTO{
		Rank:              e.Rank,
		UserID:            string(e.UserID),
		Name:              e.Name,
		Grade:             string(e.Grade),
		Department:        e.Department,
		Role:              string(e.Role),
		TotalPoints:       e.TotalPoints,
		RegularPoints:     e.RegularPoints,
		BonusPoints:       e.BonusPoints,
		CategoryBreakdown: e.CategoryBreakdown,
		UtilizationPct:    e.UtilizationPct,
		YearlyBonusPoints: e.YearlyBonusPoints,
		ProgressPct:       e.ProgressPct,
	}
}

func toWindowDTO(w rewards.Window) WindowDTO {
	return WindowDTO{
		Start: w.Start.Format(time.RFC3339),
		End:   w.End.Format(time.RFC3339),
	}
}

func toConfigDTO(c *rewards.RewardConfig) ConfigDTO {
	targets := make(map[string]int, len(c.GradeTargets))
	for g, v := range c.GradeTargets {
		targets[string(g)] = v
	}
	milestones := make([]MilestoneDTO, len(c.Milestones))
	for i, m := range c.Milestones {
		milestones[i] = MilestoneDTO{
			Name:        m.Name,
			Description: m.Description,
			Percentage:  m.Percentage,
			BonusPoints: m.BonusPoints,
		}
	}
	dto := ConfigDTO{
		GradeTargets:         targets,
		Milestones:           milestones,
		UtilizationThreshold: c.UtilizationThreshold,
		YearlyBonusLimit:     c.YearlyBonusLimit,
	}
	if !c.LastUpdated.IsZero() {
		dto.LastUpdated = c.LastUpdated.Format(time.RFC3339)
	}
	return dto
}

func fromConfigRequest(req UpdateConfigRequest) *rewards.RewardConfig {
	targets := make(map[rewards.Grade]int, len(req.GradeTargets))
	for g, v := range req.GradeTargets {
		targets[rewards.Grade(g)] = v
	}
	milestones := make([]rewards.Milestone, len(req.Milestones))
	for i, m := range req.Milestones {
		milestones[i] = rewards.Milestone{
			Name:        m.Name,
			Description: m.Description,
			Percentage:  m.Percentage,
			BonusPoints: m.BonusPoints,
		}
	}
	return &rewards.RewardConfig{
		GradeTargets:         targets,
		Milestones:           milestones,
		UtilizationThreshold: req.UtilizationThreshold,
		YearlyBonusLimit:     req.YearlyBonusLimit,
	}
}

func fmtDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.RFC3339)
	return &v
}
