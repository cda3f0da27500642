package core

import (
	"context"
	"testing"

	"reservecore/pkg/domain"
)

func TestReservationLifecycleRuleBlocksTerminalTransitions(t *testing.T) {
	rule := ReservationLifecycleRule()

	released := Reservation{Base: domain.Base{ID: "res-1"}, Status: domain.ReservationStatusReleased}
	reactivated := released
	reactivated.Status = domain.ReservationStatusActive

	res, err := rule.Evaluate(context.Background(), nil, []Change{{
		Entity: domain.EntityReservation,
		Action: domain.ActionUpdate,
		Before: released,
		After:  reactivated,
	}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking violation for terminal transition")
	}
}

func TestReservationLifecycleRuleAllowsRelease(t *testing.T) {
	rule := ReservationLifecycleRule()

	active := Reservation{Base: domain.Base{ID: "res-1"}, Status: domain.ReservationStatusActive}
	released := active
	released.Status = domain.ReservationStatusReleased

	res, err := rule.Evaluate(context.Background(), nil, []Change{{
		Entity: domain.EntityReservation,
		Action: domain.ActionUpdate,
		Before: active,
		After:  released,
	}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("expected release to pass, got %+v", res.Violations)
	}
}

func TestReservationLifecycleRuleRejectsUnknownStatus(t *testing.T) {
	rule := ReservationLifecycleRule()

	res, err := rule.Evaluate(context.Background(), nil, []Change{{
		Entity: domain.EntityReservation,
		Action: domain.ActionCreate,
		After:  Reservation{Base: domain.Base{ID: "res-1"}, Status: "paused"},
	}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking violation for unknown status")
	}
}

func TestReservationLifecycleRuleBlocksReactivationThroughService(t *testing.T) {
	svc := newTestService(t)
	fx := seedFixture(t, svc)

	out, err := svc.ReserveLot(context.Background(), testActor, ReserveRequest{
		WorkOrderID: fx.wo.ID, MaterialID: fx.demand.ID, LotID: fx.lot.ID, Quantity: dec("10"),
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := svc.ReleaseReservation(context.Background(), testActor, out.Reservation.ID); err != nil {
		t.Fatalf("release: %v", err)
	}

	_, err = svc.Store().RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateReservation(out.Reservation.ID, func(r *Reservation) error {
			r.Status = domain.ReservationStatusActive
			return nil
		})
		return err
	})
	if err == nil {
		t.Fatalf("expected rules engine to block reactivation")
	}
}

func TestLotOversubscriptionRuleWarns(t *testing.T) {
	svc := newTestService(t)
	fx := seedFixture(t, svc)

	if _, err := svc.ReserveLot(context.Background(), testActor, ReserveRequest{
		WorkOrderID: fx.wo.ID, MaterialID: fx.demand.ID, LotID: fx.lot.ID, Quantity: dec("60"),
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	// Shrink the nominal quantity under the reserved total; the next commit
	// touching the lot's reservations surfaces the warning.
	if _, err := svc.Store().RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateLot(fx.lot.ID, func(l *Lot) error {
			l.Quantity = dec("50")
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("shrink lot: %v", err)
	}

	resID := listActiveReservation(t, svc)
	res, err := svc.Store().RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateReservation(resID, func(r *Reservation) error {
			r.Notes = "re-touched"
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("touch reservation: %v", err)
	}
	warned := false
	for _, v := range res.Warnings() {
		if v.Rule == "lot_oversubscription" {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("expected lot_oversubscription warning, got %+v", res.Violations)
	}
}

func listActiveReservation(t *testing.T, svc *Service) string {
	t.Helper()
	for _, res := range svc.Store().ListReservations() {
		if res.Active() {
			return res.ID
		}
	}
	t.Fatalf("no active reservation found")
	return ""
}
