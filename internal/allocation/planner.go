// Package allocation implements lot selection for material requirements. It
// is pure planning logic: callers pass candidate lots and receive a plan, no
// storage is touched here.
package allocation

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"reservecore/pkg/domain"
)

// Policy selects the ordering applied to candidate lots before the greedy
// allocation pass.
type Policy string

// Supported allocation policies.
const (
	// PolicyFIFO orders lots by receipt time, oldest first.
	PolicyFIFO Policy = "fifo"
	// PolicyFEFO orders lots by expiry date, soonest first. Lots without an
	// expiry sort after all dated lots; ties fall back to receipt time.
	PolicyFEFO Policy = "fefo"
)

// ParsePolicy validates a policy string.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyFIFO, PolicyFEFO:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown allocation policy %q", s)
	}
}

// Line is one planned draw from a lot.
type Line struct {
	LotID    string
	Quantity decimal.Decimal
}

// Plan is the outcome of a planning pass over candidate lots.
type Plan struct {
	Lines     []Line
	Allocated decimal.Decimal
	Shortage  decimal.Decimal
}

// Covered reports whether the plan satisfies the full requirement.
func (p Plan) Covered() bool {
	return p.Shortage.IsZero()
}

// Build runs the greedy allocation pass: lots are ordered per the policy and
// drawn from in sequence until the requirement is met or candidates run out.
// Lots with nothing available are skipped. In whole-lot mode each selected
// lot is taken at its full available quantity, so the plan may overshoot the
// requirement; otherwise the final draw is truncated to the remaining need.
func Build(policy Policy, required decimal.Decimal, lots []domain.Lot, wholeLot bool) Plan {
	plan := Plan{Allocated: decimal.Zero, Shortage: decimal.Zero}
	if required.LessThanOrEqual(decimal.Zero) {
		return plan
	}
	ordered := orderLots(policy, lots)
	remaining := required
	for _, lot := range ordered {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		if lot.AvailableQty.LessThanOrEqual(decimal.Zero) {
			continue
		}
		take := lot.AvailableQty
		if !wholeLot && take.GreaterThan(remaining) {
			take = remaining
		}
		plan.Lines = append(plan.Lines, Line{LotID: lot.ID, Quantity: take})
		plan.Allocated = plan.Allocated.Add(take)
		remaining = remaining.Sub(take)
	}
	if remaining.GreaterThan(decimal.Zero) {
		plan.Shortage = remaining
	}
	return plan
}

// Order returns the candidate lots sorted per the policy. The caller's slice
// is left untouched.
func Order(policy Policy, lots []domain.Lot) []domain.Lot {
	return orderLots(policy, lots)
}

// orderLots returns a sorted copy; the caller's slice is left untouched.
func orderLots(policy Policy, lots []domain.Lot) []domain.Lot {
	ordered := make([]domain.Lot, len(lots))
	copy(ordered, lots)
	switch policy {
	case PolicyFEFO:
		sort.SliceStable(ordered, func(i, j int) bool {
			return fefoLess(ordered[i], ordered[j])
		})
	default:
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		})
	}
	return ordered
}

func fefoLess(a, b domain.Lot) bool {
	switch {
	case a.ExpiryDate == nil && b.ExpiryDate == nil:
		return a.CreatedAt.Before(b.CreatedAt)
	case a.ExpiryDate == nil:
		return false
	case b.ExpiryDate == nil:
		return true
	case a.ExpiryDate.Equal(*b.ExpiryDate):
		return a.CreatedAt.Before(b.CreatedAt)
	default:
		return a.ExpiryDate.Before(*b.ExpiryDate)
	}
}
