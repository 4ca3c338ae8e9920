/*
aggregate.go - Batch aggregation of approved points per user

PURPOSE:
  Converts the heterogeneous stream of point records (inconsistent date
  fields, dual category registries, request vs. ledger representations)
  into per-user totals for a date window: regular points, bonus points,
  a category breakdown, and the billable-utilization average.

QUERY DISCIPLINE:
  This component exists to avoid N+1 patterns. One pass issues a
  BOUNDED number of bulk queries regardless of how many users it
  covers:

    1. approved requests for all users, window-prefiltered
    2. ledger entries for all users, window-prefiltered
    3. utilization records for all users (NOT window-prefiltered:
       legacy records miss the prefiltered fields; the effective date
       is checked in process)

  Grouping happens in memory. The in-memory store counts queries so
  tests can assert the bound.

DEDUPLICATION:
  An approved request is materialized into a ledger entry; when both
  representations fall into the same query scope the ledger entry is
  skipped via its request back-reference, so nothing is counted twice.

DEGRADATION:
  A record whose effective date or utilization value cannot be resolved
  contributes nothing. No record ever fails the batch.
*/
package rewards

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SUMMARY - per-user aggregation output
// =============================================================================

// Summary is one user's totals for a window.
type Summary struct {
	RegularPoints  int
	BonusPoints    int
	RecordCount    int
	UtilizationPct float64

	// Samples behind UtilizationPct; lets callers distinguish "no
	// utilization records" from "exactly 0%" when it ever matters.
	UtilizationSamples int

	// Approved points per logical category name.
	CategoryBreakdown map[string]int
}

// Total returns regular plus (optionally) bonus points.
func (s *Summary) Total(includeBonus bool) int {
	if includeBonus {
		return s.RegularPoints + s.BonusPoints
	}
	return s.RegularPoints
}

func newSummary() *Summary {
	return &Summary{CategoryBreakdown: make(map[string]int)}
}

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregator computes per-user summaries against a Catalog built once
// per pass. Read-only and safe to run in parallel across different
// user batches or windows.
type Aggregator struct {
	Store   Store
	Catalog *Catalog
}

// Aggregate computes summaries for the given users over the window.
// excludedCategoryIDs drops additional categories beyond utilization
// (which is always excluded from point totals and fed to the
// utilization average instead).
func (a *Aggregator) Aggregate(ctx context.Context, userIDs []UserID, window Window, excludedCategoryIDs []CategoryID) (map[UserID]*Summary, error) {
	summaries := make(map[UserID]*Summary, len(userIDs))
	for _, id := range userIDs {
		summaries[id] = newSummary()
	}
	if len(userIDs) == 0 {
		return summaries, nil
	}

	utilIDs := a.Catalog.UtilizationIDs()
	exclude := append(append([]CategoryID{}, excludedCategoryIDs...), utilIDs...)

	// Query 1: approved requests, window-prefiltered on any candidate
	// date field. The effective date is re-checked per record below.
	requests, err := a.Store.FindRequests(ctx, RequestFilter{
		UserIDs:            userIDs,
		Status:             StatusApproved,
		ExcludeCategoryIDs: exclude,
		Window:             &window,
	})
	if err != nil {
		return nil, err
	}

	counted := make(map[RequestID]bool, len(requests))
	for i := range requests {
		req := &requests[i]
		if !InWindow(req, window, StandardPrecedence) {
			continue
		}
		s, ok := summaries[req.UserID]
		if !ok {
			continue
		}
		counted[req.ID] = true
		a.accumulate(s, req.CategoryID, req.Points, req.IsBonus)
	}

	// Query 2: ledger entries. Entries materialized from a request we
	// already counted are skipped via the back-reference.
	points, err := a.Store.FindPoints(ctx, PointFilter{
		UserIDs:            userIDs,
		ExcludeCategoryIDs: exclude,
		Window:             &window,
	})
	if err != nil {
		return nil, err
	}

	for i := range points {
		p := &points[i]
		if p.RequestID != nil && counted[*p.RequestID] {
			continue
		}
		if !InWindow(p, window, StandardPrecedence) {
			continue
		}
		s, ok := summaries[p.UserID]
		if !ok {
			continue
		}
		a.accumulate(s, p.CategoryID, p.Points, p.IsBonus)
	}

	// Query 3: utilization records, deliberately unbounded in time so
	// legacy records with only an event_date still surface.
	if err := a.aggregateUtilization(ctx, summaries, userIDs, window, utilIDs); err != nil {
		return nil, err
	}

	return summaries, nil
}

func (a *Aggregator) accumulate(s *Summary, categoryID CategoryID, points int, isBonus bool) {
	if !isBonus {
		// Records keep their own flag, with the category flag as a
		// fallback for legacy rows that were never stamped.
		isBonus = a.Catalog.IsBonusCategory(categoryID)
	}
	if isBonus {
		s.BonusPoints += points
	} else {
		s.RegularPoints += points
	}
	s.CategoryBreakdown[a.Catalog.NameFor(categoryID)] += points
	s.RecordCount++
}

func (a *Aggregator) aggregateUtilization(ctx context.Context, summaries map[UserID]*Summary, userIDs []UserID, window Window, utilIDs []CategoryID) error {
	if len(utilIDs) == 0 {
		return nil
	}

	records, err := a.Store.FindRequests(ctx, RequestFilter{
		UserIDs:     userIDs,
		Status:      StatusApproved,
		CategoryIDs: utilIDs,
	})
	if err != nil {
		return err
	}

	samples := make(map[UserID][]decimal.Decimal)
	for i := range records {
		rec := &records[i]
		if !InWindow(rec, window, StandardPrecedence) {
			continue
		}
		raw, ok := extractRawUtilization(rec)
		if !ok {
			continue
		}
		samples[rec.UserID] = append(samples[rec.UserID], normalizeUtilization(raw))
	}

	for id, s := range summaries {
		s.UtilizationSamples = len(samples[id])
		s.UtilizationPct = meanUtilization(samples[id])
	}
	return nil
}

// =============================================================================
// SINGLE-USER CONVENIENCE
// =============================================================================

// AggregateUser is Aggregate for one user. Dashboards showing a single
// employee's detail page go through the same bulk path.
func (a *Aggregator) AggregateUser(ctx context.Context, userID UserID, window Window) (*Summary, error) {
	out, err := a.Aggregate(ctx, []UserID{userID}, window, nil)
	if err != nil {
		return nil, err
	}
	return out[userID], nil
}
