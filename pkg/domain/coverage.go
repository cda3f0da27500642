package domain

import "github.com/shopspring/decimal"

// CoverageStatus classifies how far reservations cover a requirement.
type CoverageStatus string

// Coverage statuses reported per material requirement.
const (
	CoverageNone    CoverageStatus = "none"
	CoveragePartial CoverageStatus = "partial"
	CoverageFull    CoverageStatus = "full"
	CoverageOver    CoverageStatus = "over"
)

// Coverage summarises reserved quantity against a requirement.
type Coverage struct {
	Percent  decimal.Decimal `json:"percent"`
	Shortage decimal.Decimal `json:"shortage"`
	Status   CoverageStatus  `json:"status"`
}

var hundred = decimal.NewFromInt(100)

// CalculateCoverage reports reservation coverage for a requirement. A zero
// requirement counts as fully covered regardless of reserved quantity.
func CalculateCoverage(required, reserved decimal.Decimal) Coverage {
	if required.IsZero() || required.IsNegative() {
		return Coverage{Percent: hundred, Shortage: decimal.Zero, Status: CoverageFull}
	}
	percent := reserved.Div(required).Mul(hundred)
	shortage := required.Sub(reserved)
	if shortage.IsNegative() {
		shortage = decimal.Zero
	}
	status := CoveragePartial
	switch {
	case reserved.IsZero() || reserved.IsNegative():
		status = CoverageNone
		percent = decimal.Zero
	case reserved.GreaterThan(required):
		status = CoverageOver
	case reserved.Equal(required):
		status = CoverageFull
	}
	return Coverage{Percent: percent, Shortage: shortage, Status: status}
}

// AggregateCoverage folds per-requirement coverage into a single figure. The
// percentage is the unweighted mean so every requirement line counts equally;
// shortages are summed. No requirements means nothing is uncovered.
func AggregateCoverage(items []Coverage) Coverage {
	if len(items) == 0 {
		return Coverage{Percent: hundred, Shortage: decimal.Zero, Status: CoverageFull}
	}
	total := decimal.Zero
	shortage := decimal.Zero
	allFull := true
	anyReserved := false
	for _, c := range items {
		total = total.Add(c.Percent)
		shortage = shortage.Add(c.Shortage)
		if c.Status != CoverageFull && c.Status != CoverageOver {
			allFull = false
		}
		if c.Status != CoverageNone {
			anyReserved = true
		}
	}
	status := CoveragePartial
	switch {
	case allFull:
		status = CoverageFull
	case !anyReserved:
		status = CoverageNone
	}
	return Coverage{
		Percent:  total.Div(decimal.NewFromInt(int64(len(items)))),
		Shortage: shortage,
		Status:   status,
	}
}
