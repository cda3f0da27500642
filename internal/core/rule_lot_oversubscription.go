package core

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"reservecore/pkg/domain"
)

// LotOversubscriptionRule warns when the active reservations on a lot add up
// to more than the lot's nominal quantity. Reserving across work orders past
// the nominal quantity is allowed but surfaced so planners can intervene.
func LotOversubscriptionRule() domain.Rule {
	return lotOversubscriptionRule{}
}

type lotOversubscriptionRule struct{}

func (lotOversubscriptionRule) Name() string { return "lot_oversubscription" }

func (lotOversubscriptionRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	touched := make(map[string]struct{})
	for _, change := range changes {
		if change.Entity != domain.EntityReservation {
			continue
		}
		if after, ok := change.After.(domain.Reservation); ok && after.LotID != "" {
			touched[after.LotID] = struct{}{}
		}
		if before, ok := change.Before.(domain.Reservation); ok && before.LotID != "" {
			touched[before.LotID] = struct{}{}
		}
	}
	if len(touched) == 0 {
		return domain.Result{}, nil
	}

	committed := make(map[string]decimal.Decimal, len(touched))
	for _, res := range view.ListReservations() {
		if !res.Active() {
			continue
		}
		if _, ok := touched[res.LotID]; !ok {
			continue
		}
		committed[res.LotID] = committed[res.LotID].Add(res.ReservedQty)
	}

	result := domain.Result{}
	for lotID, total := range committed {
		lot, ok := view.FindLot(lotID)
		if !ok {
			continue
		}
		if total.GreaterThan(lot.Quantity) {
			result.Violations = append(result.Violations, domain.Violation{
				Rule:     "lot_oversubscription",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("lot %s has %s reserved against a nominal quantity of %s", lot.LotNumber, total.String(), lot.Quantity.String()),
				Entity:   domain.EntityLot,
				EntityID: lot.ID,
			})
		}
	}
	return result, nil
}
