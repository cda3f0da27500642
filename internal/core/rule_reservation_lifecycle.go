package core

import (
	"context"
	"fmt"

	"reservecore/pkg/domain"
)

// ReservationLifecycleRule blocks illegal reservation status transitions.
// Released and consumed are terminal states.
func ReservationLifecycleRule() domain.Rule {
	return reservationLifecycleRule{}
}

type reservationLifecycleRule struct{}

var (
	reservationTerminalStatuses = toSet(
		string(domain.ReservationStatusReleased),
		string(domain.ReservationStatusConsumed),
	)
	reservationValidStatuses = toSet(
		string(domain.ReservationStatusActive),
		string(domain.ReservationStatusReleased),
		string(domain.ReservationStatusConsumed),
	)
)

func (reservationLifecycleRule) Name() string { return "reservation_lifecycle" }

func (reservationLifecycleRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityReservation {
			continue
		}
		after, ok := change.After.(domain.Reservation)
		if !ok {
			continue
		}
		if _, valid := reservationValidStatuses[string(after.Status)]; !valid {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "reservation_lifecycle",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("reservation %s is set to invalid status %s", after.ID, after.Status),
				Entity:   domain.EntityReservation,
				EntityID: after.ID,
			})
			continue
		}
		before, ok := change.Before.(domain.Reservation)
		if !ok {
			continue
		}
		if _, terminal := reservationTerminalStatuses[string(before.Status)]; !terminal {
			continue
		}
		if after.Status != before.Status {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "reservation_lifecycle",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("cannot move reservation %s from terminal status %s to %s", before.ID, before.Status, after.Status),
				Entity:   domain.EntityReservation,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}

func toSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
