/*
leaderboard.go - Ranked leaderboard assembly

PURPOSE:
  Combines aggregator output with config targets into the ranked
  leaderboard the dashboards render. Filtering, sorting and rank
  assignment only - all point math happens upstream.

RANKING:
  Descending by total points. Ties break by user id ascending: the
  historical system left tie order to incidental input order, which
  made ranks flap between loads; a deterministic secondary key fixes
  that without collapsing tied ranks.
*/
package rewards

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FILTER AND ENTRY
// =============================================================================

// LeaderboardFilter narrows the population and toggles bonus counting.
type LeaderboardFilter struct {
	Grade    Grade  // empty = all grades
	Role     Role   // empty = employees and managers
	Category string // logical category name; empty = all categories

	// IncludeBonus folds bonus points into the total AND drops users
	// whose bonus total is zero (the "bonus breakdown" toggle).
	IncludeBonus bool
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank int

	UserID     UserID
	Name       string
	Email      string
	Grade      Grade
	Department string
	Role       Role

	TotalPoints   int
	RegularPoints int
	BonusPoints   int

	CategoryBreakdown map[string]int
	UtilizationPct    float64
	YearlyBonusPoints int

	// ProgressPct is total points against the quarterly grade target,
	// one decimal. 0 when the grade has no target.
	ProgressPct float64
}

// =============================================================================
// ASSEMBLY
// =============================================================================

// AssembleLeaderboard is the pure tail of the pipeline: filter, drop
// zero-point users, sort, rank. summaries must cover every user passed.
func AssembleLeaderboard(users []User, summaries map[UserID]*Summary, yearlyBonus map[UserID]int, cfg *RewardConfig, f LeaderboardFilter) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(users))

	for _, u := range users {
		if f.Grade != "" && u.Grade != f.Grade {
			continue
		}
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		s := summaries[u.ID]
		if s == nil {
			continue
		}

		total := s.Total(f.IncludeBonus)
		if total == 0 {
			continue
		}
		if f.IncludeBonus && s.BonusPoints == 0 {
			continue
		}

		entry := LeaderboardEntry{
			UserID:            u.ID,
			Name:              u.Name,
			Email:             u.Email,
			Grade:             u.Grade,
			Department:        u.Department,
			Role:              u.Role,
			TotalPoints:       total,
			RegularPoints:     s.RegularPoints,
			BonusPoints:       s.BonusPoints,
			CategoryBreakdown: s.CategoryBreakdown,
			UtilizationPct:    s.UtilizationPct,
			YearlyBonusPoints: yearlyBonus[u.ID],
		}
		if target, ok := cfg.QuarterlyTarget(u.Grade); ok && target > 0 {
			pct, _ := decimal.NewFromInt(int64(total)).
				Mul(decimal.NewFromInt(100)).
				Div(decimal.NewFromInt(int64(target))).
				Round(1).Float64()
			entry.ProgressPct = pct
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalPoints != entries[j].TotalPoints {
			return entries[i].TotalPoints > entries[j].TotalPoints
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// =============================================================================
// DASHBOARD SERVICE - orchestrates a full leaderboard pass
// =============================================================================

// Dashboard runs complete aggregation passes for the rendering layer.
type Dashboard struct {
	Store  Store
	Config *ConfigProvider
}

// Leaderboard computes the ranked leaderboard for a window. The fiscal
// year for the yearly bonus column comes from the window start (the
// all-time sentinel falls back to the current fiscal year).
func (d *Dashboard) Leaderboard(ctx context.Context, window Window, fiscalYear int, f LeaderboardFilter) ([]LeaderboardEntry, error) {
	cfg, err := d.Config.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	catalog, err := LoadCatalog(ctx, d.Store)
	if err != nil {
		return nil, err
	}

	users, err := d.Store.FindUsers(ctx, UserFilter{Roles: []Role{RoleEmployee, RoleManager}})
	if err != nil {
		return nil, err
	}
	ids := make([]UserID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	// A category filter keeps only that category's ids; everything
	// else is excluded from the totals.
	var excluded []CategoryID
	if f.Category != "" {
		keep := make(map[CategoryID]bool)
		for _, id := range catalog.IDsFor(f.Category) {
			keep[id] = true
		}
		for id := range catalog.IDToName {
			if !keep[id] {
				excluded = append(excluded, id)
			}
		}
	}

	agg := &Aggregator{Store: d.Store, Catalog: catalog}
	summaries, err := agg.Aggregate(ctx, ids, window, excluded)
	if err != nil {
		return nil, err
	}

	bonus := true
	yearWindow := FiscalYearWindow(fiscalYear)
	yearlyBonus, err := d.Store.SumLedgerPoints(ctx, PointFilter{
		UserIDs:   ids,
		Window:    &yearWindow,
		BonusOnly: &bonus,
	})
	if err != nil {
		return nil, err
	}

	return AssembleLeaderboard(users, summaries, yearlyBonus, cfg, f), nil
}

// UserSummary is the single-employee detail view: a window summary plus
// progress against the grade target.
func (d *Dashboard) UserSummary(ctx context.Context, userID UserID, window Window) (*User, *Summary, error) {
	u, err := d.Store.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	catalog, err := LoadCatalog(ctx, d.Store)
	if err != nil {
		return nil, nil, err
	}
	agg := &Aggregator{Store: d.Store, Catalog: catalog}
	s, err := agg.AggregateUser(ctx, userID, window)
	if err != nil {
		return nil, nil, err
	}
	return u, s, nil
}
