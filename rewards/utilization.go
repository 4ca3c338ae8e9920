/*
utilization.go - Billable utilization extraction and normalization

PURPOSE:
  Utilization records are point requests in disguise: submissions tagged
  with the utilization/billable category whose payload carries a
  percentage metric, not reward points. The raw value's representation
  is ambiguous by design - legacy data mixes fractions in (0,1] with
  whole-number percentages in (1,100] - so extraction and normalization
  are one explicit code path here instead of field probing scattered
  across call sites.

EXTRACTION ORDER (first present wins):
  1. The explicit utilization field on the record
  2. The submission payload, under either legacy key name
  3. The record's generic point value, only if in (0,100] - a legacy
     already-percentage encoding

NORMALIZATION:
  raw <= 1  -> fraction, multiply by 100
  raw >  1  -> already a percentage

  0.85 and 85 both normalize to 85%. Zero or absent values contribute
  NOTHING to the average - they are not 0.0 data points.
*/
package rewards

import "github.com/shopspring/decimal"

// Submission payload keys that may carry the utilization value.
const (
	submissionKeyUtilizationValue = "utilization_value"
	submissionKeyUtilization      = "utilization"
)

// extractRawUtilization pulls the raw (un-normalized) utilization value
// from a record. Returns false when the record carries none.
func extractRawUtilization(r *PointRequest) (float64, bool) {
	if r.UtilizationValue != nil && *r.UtilizationValue > 0 {
		return *r.UtilizationValue, true
	}

	if r.Submission != nil {
		if v, ok := r.Submission[submissionKeyUtilizationValue]; ok && v > 0 {
			return v, true
		}
		if v, ok := r.Submission[submissionKeyUtilization]; ok && v > 0 {
			return v, true
		}
	}

	// Legacy fallback: old records encoded the percentage as the point
	// value itself. Stored as a fraction so normalization restores it.
	if r.Points > 0 && r.Points <= 100 {
		return float64(r.Points) / 100.0, true
	}

	return 0, false
}

// normalizeUtilization converts a raw value to a percentage.
func normalizeUtilization(raw float64) decimal.Decimal {
	d := decimal.NewFromFloat(raw)
	if d.LessThanOrEqual(decimal.NewFromInt(1)) {
		return d.Mul(decimal.NewFromInt(100))
	}
	return d
}

// meanUtilization is the arithmetic mean of normalized percentages,
// rounded to 2 decimals. Empty input reports 0 - indistinguishable from
// an exact 0% without the sample count, which callers that care carry
// separately.
func meanUtilization(samples []decimal.Decimal) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, s := range samples {
		sum = sum.Add(s)
	}
	mean, _ := sum.Div(decimal.NewFromInt(int64(len(samples)))).Round(2).Float64()
	return mean
}
