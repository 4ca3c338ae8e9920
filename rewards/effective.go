package rewards

import "time"

// =============================================================================
// EFFECTIVE DATE - single authoritative date per record
// =============================================================================
// Records accumulated across two schema generations carry up to four
// candidate date fields. Exactly one of them places the record in a
// time window, chosen by a fixed precedence:
//
//   event_date > request_date > award_date (> response_date, opt-in)
//
// The business-event date outranks the administrative submission date,
// which outranks the award timestamp. A record with none of them has an
// UNKNOWN effective date and is excluded from every windowed
// aggregation - it is never coerced to epoch or now.

// DatePrecedence controls whether response_date participates as the
// last fallback. Most call sites resolve over the standard chain; a few
// historical views also accept the validator response timestamp.
type DatePrecedence int

const (
	StandardPrecedence DatePrecedence = iota
	WithResponseDate
)

// Dated is anything carrying the candidate date fields. Both
// PointRequest and Point satisfy it.
type Dated interface {
	CandidateDates() [4]*time.Time
}

// CandidateDates returns the request's candidate fields in precedence
// order.
func (r *PointRequest) CandidateDates() [4]*time.Time {
	return [4]*time.Time{r.EventDate, r.RequestDate, r.AwardDate, r.ResponseDate}
}

// CandidateDates for ledger entries: the ledger has no request or
// response dates, only the business-event date and the award timestamp.
func (p *Point) CandidateDates() [4]*time.Time {
	return [4]*time.Time{p.EventDate, nil, p.AwardDate, nil}
}

// ResolveEffectiveDate picks the authoritative date, or (zero, false)
// when no candidate is present.
func ResolveEffectiveDate(rec Dated, prec DatePrecedence) (time.Time, bool) {
	candidates := rec.CandidateDates()
	n := 3
	if prec == WithResponseDate {
		n = 4
	}
	for i := 0; i < n; i++ {
		if d := candidates[i]; d != nil && !d.IsZero() {
			return *d, true
		}
	}
	return time.Time{}, false
}

// InWindow resolves the record's effective date and checks it against
// the window. Records with no resolvable date are out by definition -
// no fuzzy matching on other metadata.
func InWindow(rec Dated, w Window, prec DatePrecedence) bool {
	d, ok := ResolveEffectiveDate(rec, prec)
	return ok && w.Contains(d)
}
