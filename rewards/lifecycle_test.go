package rewards_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vantage/points-engine/rewards"
	"github.com/vantage/points-engine/rewards/store"
)

// recorder captures published events for assertions.
type recorder struct {
	events []rewards.Event
}

func (r *recorder) Publish(e rewards.Event) { r.events = append(r.events, e) }

func newLifecycle(t *testing.T) (*store.Memory, *recorder, *rewards.LifecycleService) {
	t.Helper()
	mem := store.NewMemory()
	rec := &recorder{}
	svc := &rewards.LifecycleService{
		Store:      mem,
		Notifier:   rec,
		Config:     rewards.NewConfigProvider(mem),
		Department: "Delivery",
		Clock:      func() time.Time { return date(2025, time.June, 1) },
	}
	return mem, rec, svc
}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSubmitRequest_AssignsIDAndPendingState(t *testing.T) {
	mem, _, svc := newLifecycle(t)
	ctx := context.Background()

	req := &rewards.PointRequest{UserID: "u1", CategoryID: "cat-mentoring", Points: 100}
	require.NoError(t, svc.SubmitRequest(ctx, req))

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, rewards.StatusPending, req.Status)
	require.NotNil(t, req.RequestDate)
	assert.Equal(t, date(2025, time.June, 1), *req.RequestDate)

	stored, err := mem.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, rewards.StatusPending, stored.Status)

	pending, err := svc.PendingRequests(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestSubmitRequest_ForcesPendingOnTamperedStatus(t *testing.T) {
	_, _, svc := newLifecycle(t)

	req := &rewards.PointRequest{UserID: "u1", CategoryID: "c1", Points: 50, Status: rewards.StatusApproved}
	require.NoError(t, svc.SubmitRequest(context.Background(), req))
	assert.Equal(t, rewards.StatusPending, req.Status)
}

// =============================================================================
// APPROVE / REJECT
// =============================================================================

func TestApprove_WritesExactlyOneLedgerEntry(t *testing.T) {
	// GIVEN: A pending request
	// WHEN: A validator approves it
	// THEN: One ledger entry with the request back-reference exists
	//       and an approval event is published

	mem, rec, svc := newLifecycle(t)
	ctx := context.Background()

	eventDate := date(2025, time.May, 20)
	req := &rewards.PointRequest{
		UserID: "u1", CategoryID: "cat-mentoring", Points: 150, EventDate: tp(eventDate),
	}
	require.NoError(t, svc.SubmitRequest(ctx, req))

	entry, err := svc.Approve(ctx, req.ID, "validator-1", "looks good")
	require.NoError(t, err)

	require.NotNil(t, entry.RequestID)
	assert.Equal(t, req.ID, *entry.RequestID)
	assert.Equal(t, 150, entry.Points)
	require.NotNil(t, entry.EventDate)
	assert.Equal(t, eventDate, *entry.EventDate)
	assert.Equal(t, rewards.UserID("validator-1"), entry.AwardedBy)

	stored, err := mem.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, rewards.StatusApproved, stored.Status)
	assert.Equal(t, rewards.UserID("validator-1"), stored.ProcessedBy)
	assert.Equal(t, "Delivery", stored.ProcessedDept)

	require.Len(t, rec.events, 1)
	assert.Equal(t, rewards.EventRequestApproved, rec.events[0].Type)
	assert.Equal(t, rewards.UserID("u1"), rec.events[0].TargetUserID)
}

func TestApprove_SecondDecisionRejected(t *testing.T) {
	// The transition is conditional on Pending; a second validator
	// racing in gets a state error carrying the settled status.

	_, rec, svc := newLifecycle(t)
	ctx := context.Background()

	req := &rewards.PointRequest{UserID: "u1", CategoryID: "c1", Points: 100}
	require.NoError(t, svc.SubmitRequest(ctx, req))

	_, err := svc.Approve(ctx, req.ID, "validator-1", "")
	require.NoError(t, err)

	_, err = svc.Approve(ctx, req.ID, "validator-2", "")
	require.ErrorIs(t, err, rewards.ErrInvalidState)
	assert.True(t, rewards.IsClientError(err))

	// No second event either.
	assert.Len(t, rec.events, 1)
}

func TestApprove_BackReferenceBlocksDuplicateLedgerWrite(t *testing.T) {
	mem, _, svc := newLifecycle(t)
	ctx := context.Background()

	req := &rewards.PointRequest{UserID: "u1", CategoryID: "c1", Points: 100}
	require.NoError(t, svc.SubmitRequest(ctx, req))
	entry, err := svc.Approve(ctx, req.ID, "validator-1", "")
	require.NoError(t, err)

	dup := *entry
	dup.ID = "another-id"
	err = mem.InsertPoint(ctx, &dup)
	assert.ErrorIs(t, err, rewards.ErrDuplicateAward)
}

func TestApprove_UnknownRequest(t *testing.T) {
	_, _, svc := newLifecycle(t)
	_, err := svc.Approve(context.Background(), "missing", "validator-1", "")
	assert.ErrorIs(t, err, rewards.ErrRequestNotFound)
}

func TestReject_StampsNotesAndPublishes(t *testing.T) {
	mem, rec, svc := newLifecycle(t)
	ctx := context.Background()

	req := &rewards.PointRequest{UserID: "u1", CategoryID: "c1", Points: 100}
	require.NoError(t, svc.SubmitRequest(ctx, req))

	rejected, err := svc.Reject(ctx, req.ID, "validator-1", "no evidence attached")
	require.NoError(t, err)
	assert.Equal(t, rewards.StatusRejected, rejected.Status)
	assert.Equal(t, "no evidence attached", rejected.ResponseNotes)

	// No ledger entry for a rejection.
	points, err := mem.FindPoints(ctx, rewards.PointFilter{UserIDs: []rewards.UserID{"u1"}})
	require.NoError(t, err)
	assert.Empty(t, points)

	require.Len(t, rec.events, 1)
	assert.Equal(t, rewards.EventRequestRejected, rec.events[0].Type)
}

// =============================================================================
// BONUS AWARD
// =============================================================================

func TestAwardBonus_Gates(t *testing.T) {
	_, _, svc := newLifecycle(t)
	ctx := context.Background()
	q1 := rewards.FiscalQuarter(1, 2025)

	// Positive amount required.
	_, err := svc.AwardBonus(ctx, "u1", 0, q1, "admin", "")
	assert.ErrorIs(t, err, rewards.ErrInvalidBonusAmount)

	// User must exist.
	_, err = svc.AwardBonus(ctx, "u1", 500, q1, "admin", "")
	assert.ErrorIs(t, err, rewards.ErrUserNotFound)
}

func TestAwardBonus_OncePerQuarter(t *testing.T) {
	// GIVEN: A user already holding a bonus ledger entry in the quarter
	// WHEN: Awarding again in the same quarter
	// THEN: Rejected; a different quarter still goes through

	mem, rec, svc := newLifecycle(t)
	ctx := context.Background()
	require.NoError(t, mem.InsertUser(ctx, &rewards.User{ID: "u1", Name: "Asha", Grade: rewards.GradeB1}))

	q1 := rewards.FiscalQuarter(1, 2025)
	entry, err := svc.AwardBonus(ctx, "u1", 1000, q1, "admin", "milestone")
	require.NoError(t, err)
	assert.True(t, entry.IsBonus)
	assert.Nil(t, entry.RequestID)

	_, err = svc.AwardBonus(ctx, "u1", 500, q1, "admin", "")
	assert.ErrorIs(t, err, rewards.ErrBonusAlreadyAwarded)

	q2 := rewards.FiscalQuarter(2, 2025)
	svc.Clock = func() time.Time { return date(2025, time.August, 1) }
	_, err = svc.AwardBonus(ctx, "u1", 500, q2, "admin", "")
	require.NoError(t, err)

	require.Len(t, rec.events, 2)
	assert.Equal(t, rewards.EventBonusAwarded, rec.events[0].Type)
}

func TestAwardBonus_YearlyLimitCountsPriorAwards(t *testing.T) {
	// GIVEN: A 9000-point ad-hoc bonus already awarded in Q1
	// WHEN: Awarding 9000 more in Q2 of the same fiscal year
	// THEN: The gate fires on the yearly ledger total, even though the
	//       Q1 award never had an originating request

	mem, _, svc := newLifecycle(t)
	ctx := context.Background()
	require.NoError(t, mem.InsertUser(ctx, &rewards.User{ID: "u1", Name: "Asha", Grade: rewards.GradeB1}))

	q1 := rewards.FiscalQuarter(1, 2025)
	_, err := svc.AwardBonus(ctx, "u1", 9000, q1, "admin", "")
	require.NoError(t, err)

	q2 := rewards.FiscalQuarter(2, 2025)
	svc.Clock = func() time.Time { return date(2025, time.August, 1) }
	_, err = svc.AwardBonus(ctx, "u1", 9000, q2, "admin", "")

	var limitErr *rewards.BonusLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 9000, limitErr.SoFar)
	assert.Equal(t, 9000, limitErr.Requested)
	assert.Equal(t, 10000, limitErr.Limit)
	assert.True(t, rewards.IsClientError(err))

	// 1000 still fits exactly.
	_, err = svc.AwardBonus(ctx, "u1", 1000, q2, "admin", "")
	require.NoError(t, err)

	// The cap is now exhausted for the year.
	q3 := rewards.FiscalQuarter(3, 2025)
	svc.Clock = func() time.Time { return date(2025, time.October, 1) }
	_, err = svc.AwardBonus(ctx, "u1", 1, q3, "admin", "")
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 10000, limitErr.SoFar)
}

func TestAwardBonus_YearlyLimitSeesApprovedBonusRequests(t *testing.T) {
	// Bonus points credited through the request flow land in the
	// ledger on approval and count toward the same yearly cap.

	mem, _, svc := newLifecycle(t)
	ctx := context.Background()
	require.NoError(t, mem.InsertUser(ctx, &rewards.User{ID: "u1", Name: "Asha", Grade: rewards.GradeB1}))

	req := &rewards.PointRequest{UserID: "u1", CategoryID: "cat-bonus", Points: 9500, IsBonus: true}
	require.NoError(t, svc.SubmitRequest(ctx, req))
	_, err := svc.Approve(ctx, req.ID, "validator-1", "")
	require.NoError(t, err)

	q2 := rewards.FiscalQuarter(2, 2025)
	svc.Clock = func() time.Time { return date(2025, time.August, 1) }
	_, err = svc.AwardBonus(ctx, "u1", 600, q2, "admin", "")

	var limitErr *rewards.BonusLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 9500, limitErr.SoFar)
	assert.Equal(t, 600, limitErr.Requested)
}

func TestAwardBonus_MaterializesBonusCategoryOnce(t *testing.T) {
	mem, _, svc := newLifecycle(t)
	ctx := context.Background()
	require.NoError(t, mem.InsertUser(ctx, &rewards.User{ID: "u1", Name: "Asha", Grade: rewards.GradeB1}))

	first, err := svc.AwardBonus(ctx, "u1", 1000, rewards.FiscalQuarter(1, 2025), "admin", "")
	require.NoError(t, err)

	second, err := svc.AwardBonus(ctx, "u1", 1000, rewards.FiscalQuarter(2, 2025), "admin", "")
	require.NoError(t, err)
	assert.Equal(t, first.CategoryID, second.CategoryID)

	cats, err := mem.LegacyCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, rewards.CodeBonusPoints, cats[0].Code)
	assert.True(t, cats[0].IsBonus)
}
