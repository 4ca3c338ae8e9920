/*
handlers.go - HTTP API handlers for the points administration engine

PURPOSE:
  Exposes the rewards engine via REST API. Handles HTTP
  request/response, JSON serialization and validation, and delegates to
  the domain layer.

ENDPOINTS:
  Requests:
    POST   /api/requests                Submit a point request
    GET    /api/requests/pending        List pending requests
    GET    /api/requests/{id}           Get one request
    POST   /api/requests/{id}/approve   Approve (writes ledger entry)
    POST   /api/requests/{id}/reject    Reject

  Reporting:
    GET    /api/leaderboard             Ranked leaderboard
    GET    /api/eligibility             Bonus eligibility report
    GET    /api/users/{id}/summary      Single-employee summary

  Bonus:
    POST   /api/users/{id}/bonus        Manual bonus award

  Reference data:
    GET    /api/categories              Reconciled category catalog
    GET    /api/quarters                Fiscal quarters of a year
    GET    /api/config                  Reward configuration
    PUT    /api/config                  Replace reward configuration
    POST   /api/users                   Create employee record

WINDOW SELECTION (query params):
  period=quarter (default) | year | all
  quarter=1..4, year=<fiscal year>; both default to the current quarter.

ERROR HANDLING:
  - 400: Validation errors, malformed input
  - 404: Request/user not found
  - 409: Conflict (already processed, duplicate award, bonus limits)
  - 500: Store failures

SEE ALSO:
  - dto.go: Request/response shapes
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vantage/points-engine/rewards"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     rewards.Store
	Lifecycle *rewards.LifecycleService
	Engine    *rewards.BonusEngine
	Dashboard *rewards.Dashboard
	Config    *rewards.ConfigProvider

	validate *validator.Validate
	now      func() time.Time
}

// NewHandler wires the handler over a store and notifier.
func NewHandler(store rewards.Store, notifier rewards.Notifier) *Handler {
	cfg := &rewards.ConfigProvider{Store: store}
	return &Handler{
		Store: store,
		Lifecycle: &rewards.LifecycleService{
			Store:    store,
			Notifier: notifier,
			Config:   cfg,
		},
		Engine:    &rewards.BonusEngine{Store: store, Config: cfg},
		Dashboard: &rewards.Dashboard{Store: store, Config: cfg},
		Config:    cfg,
		validate:  validator.New(),
		now:       time.Now,
	}
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

// SubmitRequest records a new pending point request.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	pr := &rewards.PointRequest{
		UserID:           rewards.UserID(req.UserID),
		CategoryID:       rewards.CategoryID(req.CategoryID),
		Points:           req.Points,
		IsBonus:          req.IsBonus,
		UtilizationValue: req.UtilizationValue,
		Submission:       req.Submission,
		ManagerNotes:     req.ManagerNotes,
	}
	if req.EventDate != nil {
		t, err := time.Parse("2006-01-02", *req.EventDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid event_date format (use YYYY-MM-DD)", err)
			return
		}
		pr.EventDate = &t
	}

	if err := h.Lifecycle.SubmitRequest(r.Context(), pr); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to submit request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(pr))
}

// GetRequest returns one request by id.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := rewards.RequestID(chi.URLParam(r, "id"))

	req, err := h.Store.GetRequest(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// ListPendingRequests returns requests awaiting a decision. Optional
// user_id query params scope the list.
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	var userIDs []rewards.UserID
	for _, v := range r.URL.Query()["user_id"] {
		userIDs = append(userIDs, rewards.UserID(v))
	}

	pending, err := h.Lifecycle.PendingRequests(r.Context(), userIDs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pending requests", err)
		return
	}

	dtos := make([]RequestDTO, len(pending))
	for i := range pending {
		dtos[i] = toRequestDTO(&pending[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ApproveRequest approves a pending request and returns the ledger
// entry it produced.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	id := rewards.RequestID(chi.URLParam(r, "id"))

	var req DecideRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	entry, err := h.Lifecycle.Approve(r.Context(), id, rewards.UserID(req.ApproverID), req.Notes)
	if err != nil {
		writeDomainError(w, "Failed to approve request", err)
		return
	}
	writeJSON(w, http.StatusOK, toPointDTO(entry))
}

// RejectRequest rejects a pending request.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	id := rewards.RequestID(chi.URLParam(r, "id"))

	var req DecideRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	updated, err := h.Lifecycle.Reject(r.Context(), id, rewards.UserID(req.ApproverID), req.Notes)
	if err != nil {
		writeDomainError(w, "Failed to reject request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(updated))
}

// =============================================================================
// REPORTING
// =============================================================================

// GetLeaderboard returns the ranked leaderboard for the selected
// window. Supports grade, role, category and include_bonus filters.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	window, fiscalYear, err := h.parseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window selection", err)
		return
	}

	q := r.URL.Query()
	filter := rewards.LeaderboardFilter{
		Grade:        rewards.Grade(q.Get("grade")),
		Role:         rewards.Role(q.Get("role")),
		Category:     q.Get("category"),
		IncludeBonus: q.Get("include_bonus") == "true",
	}

	entries, err := h.Dashboard.Leaderboard(r.Context(), window, fiscalYear, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build leaderboard", err)
		return
	}

	dtos := make([]LeaderboardEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toLeaderboardDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEligibility returns the bonus eligibility report for a quarter.
func (h *Handler) GetEligibility(w http.ResponseWriter, r *http.Request) {
	quarter, err := h.parseQuarter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quarter selection", err)
		return
	}

	report, err := h.Engine.EligibilityReport(r.Context(), quarter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build eligibility report", err)
		return
	}

	dtos := make([]EligibilityDTO, len(report))
	for i, row := range report {
		dtos[i] = EligibilityDTO{
			UserID:            string(row.User.ID),
			Name:              row.User.Name,
			Grade:             string(row.User.Grade),
			QuarterlyPoints:   row.Summary.Total(false),
			YearlyPoints:      row.YearlyPoints,
			UtilizationPct:    row.Summary.UtilizationPct,
			YearlyBonusPoints: row.YearlyBonusPoints,
			Eligible:          row.Result.Eligible,
			Reason:            row.Result.Reason,
			BonusAmount:       row.Result.BonusAmount,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUserSummary returns one employee's window summary.
func (h *Handler) GetUserSummary(w http.ResponseWriter, r *http.Request) {
	id := rewards.UserID(chi.URLParam(r, "id"))

	window, _, err := h.parseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window selection", err)
		return
	}

	user, summary, err := h.Dashboard.UserSummary(r.Context(), id, window)
	if err != nil {
		writeDomainError(w, "Failed to build user summary", err)
		return
	}

	writeJSON(w, http.StatusOK, UserSummaryDTO{
		UserID:            string(user.ID),
		Name:              user.Name,
		Grade:             string(user.Grade),
		Window:            toWindowDTO(window),
		RegularPoints:     summary.RegularPoints,
		BonusPoints:       summary.BonusPoints,
		TotalPoints:       summary.Total(true),
		RecordCount:       summary.RecordCount,
		UtilizationPct:    summary.UtilizationPct,
		CategoryBreakdown: summary.CategoryBreakdown,
	})
}

// =============================================================================
// BONUS AWARD
// =============================================================================

// AwardBonus writes a manual bonus ledger entry for a user.
func (h *Handler) AwardBonus(w http.ResponseWriter, r *http.Request) {
	id := rewards.UserID(chi.URLParam(r, "id"))

	var req AwardBonusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	quarter := rewards.FiscalQuarter(req.Quarter, req.Year)
	entry, err := h.Lifecycle.AwardBonus(r.Context(), id, req.Amount, quarter,
		rewards.UserID(req.AwardedBy), req.Notes)
	if err != nil {
		writeDomainError(w, "Failed to award bonus", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPointDTO(entry))
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// ListCategories returns the reconciled category catalog.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	catalog, err := rewards.LoadCatalog(r.Context(), h.Store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load categories", err)
		return
	}

	dtos := make([]CategoryDTO, 0, len(catalog.Merged))
	for _, m := range catalog.Merged {
		ids := make([]string, len(m.IDs))
		for i, id := range m.IDs {
			ids[i] = string(id)
		}
		dtos = append(dtos, CategoryDTO{Name: m.Name, Code: m.Code, IDs: ids})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListQuarters returns the fiscal quarters of a year (default: the
// current fiscal year), flagging the one in progress.
func (h *Handler) ListQuarters(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	current := rewards.CurrentQuarter(now)

	fiscalYear := current.FiscalYear
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		fiscalYear = y
	}

	quarters := rewards.QuartersInYear(fiscalYear)
	dtos := make([]QuarterDTO, len(quarters))
	for i, q := range quarters {
		dtos[i] = QuarterDTO{
			Label:      q.Label(),
			Number:     q.Number,
			FiscalYear: q.FiscalYear,
			Window:     toWindowDTO(q.Window),
			Current:    q.Number == current.Number && q.FiscalYear == current.FiscalYear,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetConfig returns the reward configuration.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Config.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load config", err)
		return
	}
	writeJSON(w, http.StatusOK, toConfigDTO(cfg))
}

// UpdateConfig replaces the reward configuration.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	cfg := fromConfigRequest(req)
	if err := h.Config.Update(r.Context(), cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save config", err)
		return
	}
	writeJSON(w, http.StatusOK, toConfigDTO(cfg))
}

// CreateUser creates (or replaces) an employee record.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	u := &rewards.User{
		ID:         rewards.UserID(req.ID),
		Name:       req.Name,
		Email:      req.Email,
		Grade:      rewards.Grade(req.Grade),
		Department: req.Department,
		Role:       rewards.Role(req.Role),
	}
	if req.ManagerID != "" {
		mid := rewards.UserID(req.ManagerID)
		u.ManagerID = &mid
	}

	if err := h.Store.InsertUser(r.Context(), u); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// =============================================================================
// WINDOW PARSING AND RESPONSE HELPERS
// =============================================================================

var errUnknownPeriod = errors.New("period must be quarter, year or all")

// parseWindow resolves the period/quarter/year query params to a
// window plus the fiscal year it belongs to.
func (h *Handler) parseWindow(r *http.Request) (rewards.Window, int, error) {
	current := rewards.CurrentQuarter(h.now())

	q := r.URL.Query()
	fiscalYear := current.FiscalYear
	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return rewards.Window{}, 0, err
		}
		fiscalYear = y
	}

	switch q.Get("period") {
	case "", "quarter":
		number := current.Number
		if v := q.Get("quarter"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return rewards.Window{}, 0, err
			}
			number = n
		}
		return rewards.QuarterWindow(number, fiscalYear), fiscalYear, nil
	case "year":
		return rewards.FiscalYearWindow(fiscalYear), fiscalYear, nil
	case "all":
		return rewards.AllTime(), fiscalYear, nil
	default:
		return rewards.Window{}, 0, errUnknownPeriod
	}
}

func (h *Handler) parseQuarter(r *http.Request) (rewards.Quarter, error) {
	current := rewards.CurrentQuarter(h.now())

	q := r.URL.Query()
	number, fiscalYear := current.Number, current.FiscalYear
	if v := q.Get("quarter"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return rewards.Quarter{}, err
		}
		number = n
	}
	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return rewards.Quarter{}, err
		}
		fiscalYear = y
	}
	return rewards.FiscalQuarter(number, fiscalYear), nil
}

// writeDomainError maps domain errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case rewards.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case rewards.IsClientError(err):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
