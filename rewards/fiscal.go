package rewards

import (
	"fmt"
	"time"
)

// =============================================================================
// WINDOW - The time boundary for aggregation
// =============================================================================

// Window is an inclusive [Start, End] date range. Totals are ALWAYS
// computed for a window, never at a point in time. End carries
// end-of-day precision (23:59:59.999999) so a record stamped late on
// the last day of a quarter still belongs to it; every comparison in
// the engine goes through Contains to keep the boundary consistent.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains returns true if t is within [Start, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w Window) String() string {
	return "[" + w.Start.Format("2006-01-02") + ", " + w.End.Format("2006-01-02") + "]"
}

// =============================================================================
// FISCAL CALENDAR - April-March fiscal year
// =============================================================================
// Q1=Apr-Jun, Q2=Jul-Sep, Q3=Oct-Dec, Q4=Jan-Mar of the FOLLOWING
// calendar year. The fiscal year label is the calendar year in which
// the fiscal year starts (April).

// Quarter is a fiscal quarter. Purely derived from dates, never
// persisted as canonical state.
type Quarter struct {
	Number     int // 1..4
	FiscalYear int
	Window     Window
}

// Label formats the quarter the way dashboards name it, e.g. "Q2-2025".
func (q Quarter) Label() string { return fmt.Sprintf("Q%d-%d", q.Number, q.FiscalYear) }

// QuarterKey is the per-quarter key used in milestone bonus tables,
// e.g. "Q1".
func (q Quarter) QuarterKey() string { return fmt.Sprintf("Q%d", q.Number) }

// QuarterOf maps a date to its fiscal quarter number and fiscal year.
func QuarterOf(t time.Time) (quarter, fiscalYear int) {
	switch m := t.Month(); {
	case m >= time.April && m <= time.June:
		return 1, t.Year()
	case m >= time.July && m <= time.September:
		return 2, t.Year()
	case m >= time.October && m <= time.December:
		return 3, t.Year()
	default: // Jan-Mar belong to the previous fiscal year
		return 4, t.Year() - 1
	}
}

// QuarterWindow is the inverse of QuarterOf: the [start, end] range of
// a fiscal quarter. End is the last instant of the last day.
func QuarterWindow(quarter, fiscalYear int) Window {
	var startMonth time.Month
	year := fiscalYear
	switch quarter {
	case 1:
		startMonth = time.April
	case 2:
		startMonth = time.July
	case 3:
		startMonth = time.October
	case 4:
		startMonth = time.January
		year = fiscalYear + 1
	default:
		// Out-of-range quarter yields an empty window that contains
		// nothing, rather than panicking mid-aggregation.
		return Window{}
	}

	start := time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, 0).Add(-time.Microsecond)
	return Window{Start: start, End: end}
}

// FiscalQuarter builds the full Quarter value for (number, fiscalYear).
func FiscalQuarter(number, fiscalYear int) Quarter {
	return Quarter{Number: number, FiscalYear: fiscalYear, Window: QuarterWindow(number, fiscalYear)}
}

// CurrentQuarter returns the quarter containing now.
func CurrentQuarter(now time.Time) Quarter {
	q, fy := QuarterOf(now)
	return FiscalQuarter(q, fy)
}

// FiscalYearWindow covers all four quarters of a fiscal year:
// April 1 of fiscalYear through March 31 of the next calendar year.
func FiscalYearWindow(fiscalYear int) Window {
	start := time.Date(fiscalYear, time.April, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(fiscalYear+1, time.April, 1, 0, 0, 0, 0, time.UTC).Add(-time.Microsecond)
	return Window{Start: start, End: end}
}

// QuartersInYear lists all four quarters of a fiscal year, in order.
// Always includes Q4 (Jan-Mar of the next calendar year) even when the
// current date has not reached it; dashboards filter forward-looking
// quarters themselves.
func QuartersInYear(fiscalYear int) []Quarter {
	quarters := make([]Quarter, 0, 4)
	for q := 1; q <= 4; q++ {
		quarters = append(quarters, FiscalQuarter(q, fiscalYear))
	}
	return quarters
}

// AllTime is the "all years" sentinel: a very early/late literal bound
// rather than true unboundedness, so range comparisons stay uniform.
func AllTime() Window {
	return Window{
		Start: time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2100, time.December, 31, 23, 59, 59, 999999000, time.UTC),
	}
}
