package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vantage/points-engine/api"
	"github.com/vantage/points-engine/rewards"
	"github.com/vantage/points-engine/rewards/store"
)

func newAPI(t *testing.T) (*store.Memory, http.Handler) {
	t.Helper()
	mem := store.NewMemory()
	h := api.NewHandler(mem, rewards.NopNotifier{})
	h.Lifecycle.Clock = func() time.Time {
		return time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	}
	return mem, api.NewRouter(h)
}

func seedUser(t *testing.T, mem *store.Memory, id rewards.UserID, grade rewards.Grade) {
	t.Helper()
	require.NoError(t, mem.InsertUser(context.Background(), &rewards.User{
		ID: id, Name: "User " + string(id), Grade: grade, Role: rewards.RoleEmployee,
	}))
}

func seedCategory(t *testing.T, mem *store.Memory, id rewards.CategoryID, name, code string) {
	t.Helper()
	require.NoError(t, mem.InsertLegacyCategory(context.Background(), &rewards.Category{
		ID: id, Name: name, Code: code, Active: true,
	}))
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

func TestRequestLifecycle_SubmitApproveFlow(t *testing.T) {
	// GIVEN: A submitted point request
	// WHEN: Listing pending and approving it
	// THEN: The pending list empties and the ledger entry carries the
	//       request back-reference; a second approval conflicts

	mem, router := newAPI(t)
	seedUser(t, mem, "u1", rewards.GradeB1)
	seedCategory(t, mem, "cat-mentoring", "Mentoring", "mentoring")

	rec := do(t, router, http.MethodPost, "/api/requests", map[string]any{
		"user_id":     "u1",
		"category_id": "cat-mentoring",
		"points":      150,
		"event_date":  "2025-05-20",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[api.RequestDTO](t, rec)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "Pending", created.Status)

	rec = do(t, router, http.MethodGet, "/api/requests/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[[]api.RequestDTO](t, rec)
	require.Len(t, pending, 1)

	rec = do(t, router, http.MethodPost, "/api/requests/"+created.ID+"/approve",
		map[string]any{"approver_id": "validator-1", "notes": "verified"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entry := decode[api.PointDTO](t, rec)
	require.NotNil(t, entry.RequestID)
	assert.Equal(t, created.ID, *entry.RequestID)
	assert.Equal(t, 150, entry.Points)

	rec = do(t, router, http.MethodGet, "/api/requests/pending", nil)
	assert.Empty(t, decode[[]api.RequestDTO](t, rec))

	rec = do(t, router, http.MethodGet, "/api/requests/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Approved", decode[api.RequestDTO](t, rec).Status)

	rec = do(t, router, http.MethodPost, "/api/requests/"+created.ID+"/approve",
		map[string]any{"approver_id": "validator-2"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRequestLifecycle_Reject(t *testing.T) {
	mem, router := newAPI(t)
	seedUser(t, mem, "u1", rewards.GradeB1)
	seedCategory(t, mem, "c1", "Mentoring", "mentoring")

	rec := do(t, router, http.MethodPost, "/api/requests", map[string]any{
		"user_id": "u1", "category_id": "c1", "points": 100,
	})
	created := decode[api.RequestDTO](t, rec)

	rec = do(t, router, http.MethodPost, "/api/requests/"+created.ID+"/reject",
		map[string]any{"approver_id": "validator-1", "notes": "no evidence"})
	require.Equal(t, http.StatusOK, rec.Code)
	rejected := decode[api.RequestDTO](t, rec)
	assert.Equal(t, "Rejected", rejected.Status)
	assert.Equal(t, "no evidence", rejected.ResponseNotes)
}

func TestSubmitRequest_ValidationFailure(t *testing.T) {
	_, router := newAPI(t)

	rec := do(t, router, http.MethodPost, "/api/requests", map[string]any{
		"user_id": "u1", "category_id": "c1", "points": 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Validation failed", decode[api.ErrorResponse](t, rec).Error)
}

func TestGetRequest_NotFound(t *testing.T) {
	_, router := newAPI(t)
	rec := do(t, router, http.MethodGet, "/api/requests/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// BONUS AWARD
// =============================================================================

func TestAwardBonus_Endpoint(t *testing.T) {
	mem, router := newAPI(t)
	seedUser(t, mem, "u1", rewards.GradeB1)

	body := map[string]any{"amount": 1000, "quarter": 1, "year": 2025, "awarded_by": "admin"}

	rec := do(t, router, http.MethodPost, "/api/users/u1/bonus", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := decode[api.PointDTO](t, rec)
	assert.True(t, entry.IsBonus)
	assert.Nil(t, entry.RequestID)

	// Same quarter again: conflict.
	rec = do(t, router, http.MethodPost, "/api/users/u1/bonus", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown user: not found.
	rec = do(t, router, http.MethodPost, "/api/users/ghost/bonus", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// REPORTING
// =============================================================================

func TestLeaderboard_Endpoint(t *testing.T) {
	mem, router := newAPI(t)
	seedUser(t, mem, "u1", rewards.GradeB1)
	seedUser(t, mem, "u2", rewards.GradeB1)
	seedCategory(t, mem, "c1", "Mentoring", "mentoring")

	for i, tc := range []struct {
		user   string
		points int
	}{{"u1", 400}, {"u2", 700}} {
		rec := do(t, router, http.MethodPost, "/api/requests", map[string]any{
			"user_id": tc.user, "category_id": "c1", "points": tc.points,
		})
		created := decode[api.RequestDTO](t, rec)
		rec = do(t, router, http.MethodPost, "/api/requests/"+created.ID+"/approve",
			map[string]any{"approver_id": fmt.Sprintf("validator-%d", i)})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := do(t, router, http.MethodGet, "/api/leaderboard?period=quarter&quarter=1&year=2025", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entries := decode[[]api.LeaderboardEntryDTO](t, rec)
	require.Len(t, entries, 2)
	assert.Equal(t, "u2", entries[0].UserID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 700, entries[0].TotalPoints)
}

func TestLeaderboard_UnknownPeriod(t *testing.T) {
	_, router := newAPI(t)
	rec := do(t, router, http.MethodGet, "/api/leaderboard?period=decade", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserSummary_Endpoint(t *testing.T) {
	mem, router := newAPI(t)
	seedUser(t, mem, "u1", rewards.GradeB1)

	rec := do(t, router, http.MethodGet, "/api/users/u1/summary?period=all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[api.UserSummaryDTO](t, rec)
	assert.Equal(t, "u1", summary.UserID)

	rec = do(t, router, http.MethodGet, "/api/users/ghost/summary?period=all", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// REFERENCE DATA AND CONFIG
// =============================================================================

func TestQuarters_Endpoint(t *testing.T) {
	_, router := newAPI(t)

	rec := do(t, router, http.MethodGet, "/api/quarters?year=2025", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	quarters := decode[[]api.QuarterDTO](t, rec)
	require.Len(t, quarters, 4)
	assert.Equal(t, "Q1-2025", quarters[0].Label)
	assert.Equal(t, "Q4-2025", quarters[3].Label)
}

func TestConfig_GetBootstrapsDefaults(t *testing.T) {
	_, router := newAPI(t)

	rec := do(t, router, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decode[api.ConfigDTO](t, rec)
	assert.Equal(t, 80, cfg.UtilizationThreshold)
	assert.Equal(t, 10000, cfg.YearlyBonusLimit)
	assert.Len(t, cfg.Milestones, 4)
}

func TestConfig_Update(t *testing.T) {
	_, router := newAPI(t)

	rec := do(t, router, http.MethodPut, "/api/config", api.UpdateConfigRequest{
		GradeTargets: map[string]int{"B1": 1000},
		Milestones: []api.MilestoneDTO{{
			Name: "Milestone 1", Percentage: 25,
			BonusPoints: map[string]int{"Q1": 500},
		}},
		UtilizationThreshold: 75,
		YearlyBonusLimit:     5000,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/config", nil)
	cfg := decode[api.ConfigDTO](t, rec)
	assert.Equal(t, 75, cfg.UtilizationThreshold)
	assert.Equal(t, map[string]int{"B1": 1000}, cfg.GradeTargets)
}
