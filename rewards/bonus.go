/*
bonus.go - Quarterly bonus eligibility and milestone amounts

PURPOSE:
  Decides, per user per quarter, whether a milestone bonus can be
  awarded and how large it is. The decision is terminal for the
  quarter: once a bonus is awarded, the gate closes until the next one.

GATE CHAIN (first failure wins):
  1. bonus already awarded this quarter
  2. grade unknown to the configuration
  3. quarterly points below the grade target
  4. utilization below threshold (lowest grade tier exempt)
  5. yearly bonus points already at the limit

AMOUNT (only if eligible):
  yearly_pct = 100 * yearly_points / (4 * grade_target). Every
  milestone whose threshold is cleared AND whose table has a nonzero
  entry for the current quarter adds its amount. Milestones are
  CUMULATIVE, not mutually exclusive: jumping from 0% to 100% in one
  quarter collects every milestone's bonus for that quarter at once.

RE-GATE:
  If the summed amount would push the yearly bonus total past the
  limit, eligibility is revoked entirely - no partial truncation.
*/
package rewards

import (
	"context"
	"fmt"
	"sort"
)

// =============================================================================
// ELIGIBILITY - pure decision logic
// =============================================================================

// EligibilityInput is everything the decision needs, already
// aggregated. Pure data in, pure data out; the config rides along as
// an explicit parameter.
type EligibilityInput struct {
	QuarterlyPoints     int
	YearlyPoints        int
	Grade               Grade
	UtilizationPct      float64
	BonusAlreadyAwarded bool
	YearlyBonusPoints   int
	Quarter             int // 1..4, selects the milestone bonus column
}

// Eligibility is the decision. Reason is empty when eligible.
type Eligibility struct {
	Eligible    bool
	Reason      string
	BonusAmount int
	Achieved    []Milestone
}

func notEligible(reason string) Eligibility {
	return Eligibility{Eligible: false, Reason: reason}
}

// CheckEligibility runs the gate chain, the milestone sum, and the
// yearly-limit re-gate.
func CheckEligibility(cfg *RewardConfig, in EligibilityInput) Eligibility {
	if in.BonusAlreadyAwarded {
		return notEligible("Bonus already awarded this quarter")
	}

	target, known := cfg.QuarterlyTarget(in.Grade)
	if !known {
		return notEligible("Unknown employee grade")
	}

	if in.QuarterlyPoints < target {
		return notEligible(fmt.Sprintf("Insufficient points: %d/%d", in.QuarterlyPoints, target))
	}

	if in.Grade != exemptGrade && in.UtilizationPct < float64(cfg.UtilizationThreshold) {
		return notEligible(fmt.Sprintf("Insufficient billability: %.2f%% (required: %d%%)",
			in.UtilizationPct, cfg.UtilizationThreshold))
	}

	if in.YearlyBonusPoints >= cfg.YearlyBonusLimit {
		return notEligible(fmt.Sprintf("Yearly bonus points limit reached: %d/%d",
			in.YearlyBonusPoints, cfg.YearlyBonusLimit))
	}

	amount, achieved := MilestoneBonus(cfg, in.YearlyPoints, cfg.YearlyTarget(in.Grade), in.Quarter)

	if in.YearlyBonusPoints+amount > cfg.YearlyBonusLimit {
		return notEligible(fmt.Sprintf("Awarding %d bonus points would exceed the yearly bonus limit of %d",
			amount, cfg.YearlyBonusLimit))
	}

	return Eligibility{Eligible: true, BonusAmount: amount, Achieved: achieved}
}

// MilestoneBonus sums the bonuses of every milestone cleared by
// yearlyPoints against yearlyTarget, for the given quarter. Thresholds
// are evaluated lowest first; a zero quarter entry means the milestone
// pays nothing this quarter and is not recorded as achieved.
func MilestoneBonus(cfg *RewardConfig, yearlyPoints, yearlyTarget, quarter int) (int, []Milestone) {
	milestones := append([]Milestone{}, cfg.Milestones...)
	sort.SliceStable(milestones, func(i, j int) bool {
		return milestones[i].Percentage < milestones[j].Percentage
	})

	yearlyPct := 0.0
	if yearlyTarget > 0 {
		yearlyPct = float64(yearlyPoints) / float64(yearlyTarget) * 100
	}

	quarterKey := fmt.Sprintf("Q%d", quarter)
	total := 0
	var achieved []Milestone
	for _, m := range milestones {
		if yearlyPct < float64(m.Percentage) {
			continue
		}
		if bonus := m.BonusPoints[quarterKey]; bonus > 0 {
			total += bonus
			achieved = append(achieved, m)
		}
	}
	return total, achieved
}

// =============================================================================
// ENGINE - gathers inputs from the store and decides
// =============================================================================

// UserEligibility pairs a user with their quarter summary and decision.
type UserEligibility struct {
	User              User
	Summary           *Summary
	YearlyPoints      int
	YearlyBonusPoints int
	Result            Eligibility
}

// BonusEngine assembles EligibilityInput values from the aggregator
// and ledger, then applies CheckEligibility.
type BonusEngine struct {
	Store  Store
	Config *ConfigProvider
}

// EvaluateUser decides eligibility for one user in a quarter.
func (e *BonusEngine) EvaluateUser(ctx context.Context, userID UserID, q Quarter) (*UserEligibility, error) {
	report, err := e.evaluate(ctx, []UserID{userID}, q)
	if err != nil {
		return nil, err
	}
	if len(report) == 0 {
		return nil, ErrUserNotFound
	}
	return &report[0], nil
}

// EligibilityReport decides eligibility for every reward-eligible user
// (employees and managers) in a quarter. This is the central oversight
// view: one bounded set of bulk queries for the whole population.
func (e *BonusEngine) EligibilityReport(ctx context.Context, q Quarter) ([]UserEligibility, error) {
	users, err := e.Store.FindUsers(ctx, UserFilter{Roles: []Role{RoleEmployee, RoleManager}})
	if err != nil {
		return nil, err
	}
	ids := make([]UserID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return e.evaluateUsers(ctx, users, ids, q)
}

func (e *BonusEngine) evaluate(ctx context.Context, ids []UserID, q Quarter) ([]UserEligibility, error) {
	users := make([]User, 0, len(ids))
	for _, id := range ids {
		u, err := e.Store.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return e.evaluateUsers(ctx, users, ids, q)
}

func (e *BonusEngine) evaluateUsers(ctx context.Context, users []User, ids []UserID, q Quarter) ([]UserEligibility, error) {
	cfg, err := e.Config.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	catalog, err := LoadCatalog(ctx, e.Store)
	if err != nil {
		return nil, err
	}
	agg := &Aggregator{Store: e.Store, Catalog: catalog}

	quarterly, err := agg.Aggregate(ctx, ids, q.Window, nil)
	if err != nil {
		return nil, err
	}

	yearWindow := FiscalYearWindow(q.FiscalYear)
	yearly, err := agg.Aggregate(ctx, ids, yearWindow, nil)
	if err != nil {
		return nil, err
	}

	yearlyBonus, err := e.yearlyBonusPoints(ctx, ids, q.FiscalYear)
	if err != nil {
		return nil, err
	}

	awarded, err := e.bonusAwardedInQuarter(ctx, ids, q)
	if err != nil {
		return nil, err
	}

	report := make([]UserEligibility, 0, len(users))
	for _, u := range users {
		qs := quarterly[u.ID]
		ys := yearly[u.ID]
		in := EligibilityInput{
			QuarterlyPoints:     qs.Total(false),
			YearlyPoints:        ys.Total(false),
			Grade:               u.Grade,
			UtilizationPct:      qs.UtilizationPct,
			BonusAlreadyAwarded: awarded[u.ID],
			YearlyBonusPoints:   yearlyBonus[u.ID],
			Quarter:             q.Number,
		}
		report = append(report, UserEligibility{
			User:              u,
			Summary:           qs,
			YearlyPoints:      in.YearlyPoints,
			YearlyBonusPoints: in.YearlyBonusPoints,
			Result:            CheckEligibility(cfg, in),
		})
	}
	return report, nil
}

// yearlyBonusPoints totals bonus ledger entries per user over the
// fiscal year via the store's grouped-sum primitive. The ledger is
// authoritative: ad-hoc awards have no originating request.
func (e *BonusEngine) yearlyBonusPoints(ctx context.Context, ids []UserID, fiscalYear int) (map[UserID]int, error) {
	window := FiscalYearWindow(fiscalYear)
	bonus := true
	return e.Store.SumLedgerPoints(ctx, PointFilter{
		UserIDs:   ids,
		Window:    &window,
		BonusOnly: &bonus,
	})
}

// bonusAwardedInQuarter reports which users already hold a bonus ledger
// entry dated inside the quarter. The ledger is authoritative here: a
// bonus exists exactly when its Point entry does.
func (e *BonusEngine) bonusAwardedInQuarter(ctx context.Context, ids []UserID, q Quarter) (map[UserID]bool, error) {
	bonus := true
	entries, err := e.Store.FindPoints(ctx, PointFilter{
		UserIDs:   ids,
		Window:    &q.Window,
		BonusOnly: &bonus,
	})
	if err != nil {
		return nil, err
	}
	awarded := make(map[UserID]bool)
	for i := range entries {
		if InWindow(&entries[i], q.Window, StandardPrecedence) {
			awarded[entries[i].UserID] = true
		}
	}
	return awarded, nil
}
