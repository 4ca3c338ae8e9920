/*
lifecycle.go - Request submission, approval, rejection, bonus award

PURPOSE:
  State machine over point requests plus the two write paths that feed
  the ledger. The invariants live here:
    - a request moves Pending -> Approved/Rejected exactly once
    - an approval produces exactly one ledger entry, keyed by the
      request back-reference
    - a committed transition is never rolled back by a notification
      failure; Publish is fire-and-forget

BONUS AWARDS:
  AwardBonus writes an ad-hoc ledger entry with no originating request.
  Gates: positive amount, user exists, no bonus in the quarter yet,
  yearly limit not exceeded. The bonus category is materialized in the
  legacy registry on first use so the aggregator can classify the entry.
*/
package rewards

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// =============================================================================
// SERVICE
// =============================================================================

// LifecycleService drives request state transitions and bonus awards.
type LifecycleService struct {
	Store    Store
	Notifier Notifier
	Config   *ConfigProvider

	// Department stamped onto processed requests; mirrors the acting
	// validator pool's department in the historical system.
	Department string

	// Clock is overridable for tests. Defaults to time.Now.
	Clock func() time.Time
}

func (s *LifecycleService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *LifecycleService) publish(e Event) {
	if s.Notifier != nil {
		s.Notifier.Publish(e)
	}
}

func newID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand only fails when the platform entropy source is
		// broken.
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// =============================================================================
// SUBMISSION
// =============================================================================

// SubmitRequest records a new pending request. The id and request date
// are assigned here when absent; everything else is caller-supplied.
func (s *LifecycleService) SubmitRequest(ctx context.Context, r *PointRequest) error {
	if r.ID == "" {
		r.ID = RequestID(newID())
	}
	r.Status = StatusPending
	now := s.now()
	if r.RequestDate == nil {
		r.RequestDate = &now
	}
	r.CreatedAt = now
	return s.Store.InsertRequest(ctx, r)
}

// PendingRequests lists requests awaiting a decision, optionally
// scoped to a set of users (a manager's reports).
func (s *LifecycleService) PendingRequests(ctx context.Context, userIDs []UserID) ([]PointRequest, error) {
	return s.Store.FindRequests(ctx, RequestFilter{
		UserIDs: userIDs,
		Status:  StatusPending,
	})
}

// =============================================================================
// APPROVE / REJECT
// =============================================================================

// Approve moves a pending request to Approved and writes its ledger
// entry. The conditional transition serializes concurrent validators;
// the ledger's back-reference constraint makes the write idempotent, so
// a retry after a crash between transition and insert converges on
// exactly one entry.
func (s *LifecycleService) Approve(ctx context.Context, id RequestID, approverID UserID, notes string) (*Point, error) {
	req, err := s.Store.TransitionRequest(ctx, id, StatusApproved, ProcessedMeta{
		By:         approverID,
		At:         s.now(),
		Department: s.Department,
		Notes:      notes,
	})
	if err != nil {
		return nil, err
	}

	award := s.now()
	entry := &Point{
		ID:         PointID(newID()),
		UserID:     req.UserID,
		CategoryID: req.CategoryID,
		Points:     req.Points,
		IsBonus:    req.IsBonus,
		AwardDate:  &award,
		EventDate:  req.EventDate,
		AwardedBy:  approverID,
		Notes:      notes,
		RequestID:  &req.ID,
	}
	if err := s.Store.InsertPoint(ctx, entry); err != nil {
		// Approved but already credited: a previous attempt got the
		// ledger write in. The transition stands.
		if IsClientError(err) {
			return nil, fmt.Errorf("request %s: %w", id, err)
		}
		return nil, err
	}

	s.publish(Event{
		Type:         EventRequestApproved,
		TargetUserID: req.UserID,
		Payload: map[string]any{
			"request_id": string(req.ID),
			"points":     req.Points,
		},
	})
	return entry, nil
}

// Reject moves a pending request to Rejected. No ledger entry is
// written; the response notes carry the reason back to the requester.
func (s *LifecycleService) Reject(ctx context.Context, id RequestID, approverID UserID, notes string) (*PointRequest, error) {
	req, err := s.Store.TransitionRequest(ctx, id, StatusRejected, ProcessedMeta{
		By:         approverID,
		At:         s.now(),
		Department: s.Department,
		Notes:      notes,
	})
	if err != nil {
		return nil, err
	}

	s.publish(Event{
		Type:         EventRequestRejected,
		TargetUserID: req.UserID,
		Payload: map[string]any{
			"request_id": string(req.ID),
			"reason":     notes,
		},
	})
	return req, nil
}

// =============================================================================
// BONUS AWARD
// =============================================================================

// AwardBonus writes a bonus ledger entry for the quarter. There is no
// originating request, so the back-reference is nil and the
// once-per-quarter gate is enforced by querying the ledger.
func (s *LifecycleService) AwardBonus(ctx context.Context, userID UserID, amount int, q Quarter, awardedBy UserID, notes string) (*Point, error) {
	if amount <= 0 {
		return nil, ErrInvalidBonusAmount
	}
	if _, err := s.Store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	bonus := true
	existing, err := s.Store.FindPoints(ctx, PointFilter{
		UserIDs:   []UserID{userID},
		Window:    &q.Window,
		BonusOnly: &bonus,
	})
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if InWindow(&existing[i], q.Window, StandardPrecedence) {
			return nil, ErrBonusAlreadyAwarded
		}
	}

	cfg, err := s.Config.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	// The yearly total comes from the ledger: ad-hoc awards have no
	// originating request, so a request-side sum would not see them.
	yearWindow := FiscalYearWindow(q.FiscalYear)
	sums, err := s.Store.SumLedgerPoints(ctx, PointFilter{
		UserIDs:   []UserID{userID},
		Window:    &yearWindow,
		BonusOnly: &bonus,
	})
	if err != nil {
		return nil, err
	}
	if soFar := sums[userID]; soFar+amount > cfg.YearlyBonusLimit {
		return nil, &BonusLimitError{
			UserID:    userID,
			SoFar:     soFar,
			Requested: amount,
			Limit:     cfg.YearlyBonusLimit,
		}
	}

	categoryID, err := s.ensureBonusCategory(ctx)
	if err != nil {
		return nil, err
	}

	award := s.now()
	entry := &Point{
		ID:         PointID(newID()),
		UserID:     userID,
		CategoryID: categoryID,
		Points:     amount,
		IsBonus:    true,
		AwardDate:  &award,
		AwardedBy:  awardedBy,
		Notes:      notes,
	}
	if err := s.Store.InsertPoint(ctx, entry); err != nil {
		return nil, err
	}

	s.publish(Event{
		Type:         EventBonusAwarded,
		TargetUserID: userID,
		Payload: map[string]any{
			"points":  amount,
			"quarter": q.Label(),
		},
	})
	return entry, nil
}

// ensureBonusCategory resolves the bonus-points category id,
// materializing the category in the legacy registry the first time a
// bonus is ever awarded.
func (s *LifecycleService) ensureBonusCategory(ctx context.Context) (CategoryID, error) {
	catalog, err := LoadCatalog(ctx, s.Store)
	if err != nil {
		return "", err
	}
	if ids := catalog.IDsForCode(CodeBonusPoints); len(ids) > 0 {
		return ids[0], nil
	}

	cat := &Category{
		ID:      CategoryID(newID()),
		Name:    "Bonus Points",
		Code:    CodeBonusPoints,
		Active:  true,
		IsBonus: true,
	}
	if err := s.Store.InsertLegacyCategory(ctx, cat); err != nil {
		return "", err
	}
	return cat.ID, nil
}
