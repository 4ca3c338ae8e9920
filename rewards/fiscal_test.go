package rewards_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vantage/points-engine/rewards"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// QUARTER MAPPING
// =============================================================================

func TestQuarterOf_AprilStartsFiscalYear(t *testing.T) {
	// GIVEN: Dates across the fiscal year boundary
	// WHEN: Mapping each to its fiscal quarter
	// THEN: Apr-Jun=Q1, Jul-Sep=Q2, Oct-Dec=Q3, Jan-Mar=Q4 of previous FY

	cases := []struct {
		date       time.Time
		quarter    int
		fiscalYear int
	}{
		{date(2025, time.April, 1), 1, 2025},
		{date(2025, time.June, 30), 1, 2025},
		{date(2025, time.July, 1), 2, 2025},
		{date(2025, time.September, 30), 2, 2025},
		{date(2025, time.October, 1), 3, 2025},
		{date(2025, time.December, 31), 3, 2025},
		{date(2026, time.January, 1), 4, 2025},
		{date(2026, time.March, 31), 4, 2025},
		{date(2025, time.March, 31), 4, 2024},
	}

	for _, tc := range cases {
		q, fy := rewards.QuarterOf(tc.date)
		assert.Equal(t, tc.quarter, q, "quarter of %s", tc.date.Format("2006-01-02"))
		assert.Equal(t, tc.fiscalYear, fy, "fiscal year of %s", tc.date.Format("2006-01-02"))
	}
}

func TestQuarterWindow_RoundTripsWithQuarterOf(t *testing.T) {
	// GIVEN: Every quarter of two fiscal years
	// WHEN: Mapping the window bounds back through QuarterOf
	// THEN: Both bounds land in the quarter that produced them

	for _, fy := range []int{2024, 2025} {
		for n := 1; n <= 4; n++ {
			w := rewards.QuarterWindow(n, fy)

			q, y := rewards.QuarterOf(w.Start)
			assert.Equal(t, n, q)
			assert.Equal(t, fy, y)

			q, y = rewards.QuarterOf(w.End)
			assert.Equal(t, n, q)
			assert.Equal(t, fy, y)
		}
	}
}

func TestQuarterWindow_EndIsInclusiveLastInstant(t *testing.T) {
	// GIVEN: Q1-2025 (April through June)
	// WHEN: Checking a record stamped late on June 30
	// THEN: It belongs to the quarter; July 1 midnight does not

	w := rewards.QuarterWindow(1, 2025)

	assert.Equal(t, date(2025, time.April, 1), w.Start)
	assert.True(t, w.Contains(time.Date(2025, time.June, 30, 23, 59, 59, 0, time.UTC)))
	assert.True(t, w.Contains(w.End))
	assert.False(t, w.Contains(date(2025, time.July, 1)))
	assert.False(t, w.Contains(date(2025, time.March, 31)))
}

func TestQuarterWindow_Q4SpansCalendarYears(t *testing.T) {
	// Q4 of FY2025 is January-March 2026.
	w := rewards.QuarterWindow(4, 2025)

	assert.Equal(t, date(2026, time.January, 1), w.Start)
	assert.True(t, w.Contains(date(2026, time.March, 31)))
	assert.False(t, w.Contains(date(2026, time.April, 1)))
}

func TestQuarterWindow_InvalidQuarterIsEmpty(t *testing.T) {
	w := rewards.QuarterWindow(5, 2025)
	assert.False(t, w.Contains(date(2025, time.June, 1)))
	assert.False(t, w.Contains(time.Time{}.Add(time.Nanosecond)))
}

// =============================================================================
// YEAR AND ALL-TIME WINDOWS
// =============================================================================

func TestFiscalYearWindow_CoversAllFourQuarters(t *testing.T) {
	y := rewards.FiscalYearWindow(2025)

	for _, q := range rewards.QuartersInYear(2025) {
		assert.True(t, y.Contains(q.Window.Start), "%s start", q.Label())
		assert.True(t, y.Contains(q.Window.End), "%s end", q.Label())
	}
	assert.False(t, y.Contains(date(2025, time.March, 31)))
	assert.False(t, y.Contains(date(2026, time.April, 1)))
}

func TestAllTime_ContainsEverythingPlausible(t *testing.T) {
	w := rewards.AllTime()

	assert.True(t, w.Contains(date(1999, time.December, 31)))
	assert.True(t, w.Contains(date(2025, time.June, 15)))
	assert.True(t, w.Contains(date(2099, time.January, 1)))
}

func TestQuarterLabels(t *testing.T) {
	q := rewards.FiscalQuarter(2, 2025)
	assert.Equal(t, "Q2-2025", q.Label())
	assert.Equal(t, "Q2", q.QuarterKey())
}

func TestCurrentQuarter(t *testing.T) {
	q := rewards.CurrentQuarter(date(2026, time.February, 10))
	assert.Equal(t, 4, q.Number)
	assert.Equal(t, 2025, q.FiscalYear)
	assert.True(t, q.Window.Contains(date(2026, time.February, 10)))
}
