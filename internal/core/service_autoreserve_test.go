package core

import (
	"context"
	"testing"
	"time"

	"reservecore/internal/allocation"
	"reservecore/pkg/domain"
)

// seedLot installs a passed, available lot with explicit receipt time so
// policy ordering is deterministic.
func seedLot(t *testing.T, svc *Service, id, product, qty string, created time.Time, expiry *time.Time) {
	t.Helper()
	if _, err := svc.Store().RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateLot(Lot{
			Base:         domain.Base{ID: id, CreatedAt: created},
			LotNumber:    "L-" + id,
			ProductID:    product,
			Quantity:     dec(qty),
			AvailableQty: dec(qty),
			UoM:          "kg",
			WarehouseID:  "wh-1",
			ExpiryDate:   expiry,
			QAStatus:     domain.QAStatusPassed,
			Status:       domain.LotStatusAvailable,
			OrgID:        "org-1",
		})
		return err
	}); err != nil {
		t.Fatalf("seed lot %s: %v", id, err)
	}
}

func TestAutoReserveFIFOAcrossLots(t *testing.T) {
	svc := newTestService(t)
	fx := seedFixture(t, svc)
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	// The fixture lot holds 100; shrink it so the pass must span two lots.
	if _, err := svc.Store().RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateLot(fx.lot.ID, func(l *Lot) error {
			l.Quantity = dec("50")
			l.AvailableQty = dec("50")
			l.CreatedAt = base
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("shrink lot: %v", err)
	}
	seedLot(t, svc, "lot-2", "steel", "60", base.AddDate(0, 0, 4), nil)

	summary, err := svc.AutoReserve(context.Background(), testActor, fx.wo.ID, allocation.PolicyFIFO)
	if err != nil {
		t.Fatalf("auto reserve: %v", err)
	}
	if summary.MaterialsProcessed != 1 || summary.FullyReserved != 1 {
		t.Fatalf("expected one fully reserved material, got %+v", summary)
	}
	if len(summary.Reservations) != 2 {
		t.Fatalf("expected two reservations, got %d", len(summary.Reservations))
	}
	// Oldest lot first, then the remainder from the newer one.
	if summary.Reservations[0].LotID != fx.lot.ID || !summary.Reservations[0].ReservedQty.Equal(dec("50")) {
		t.Fatalf("unexpected first draw: %+v", summary.Reservations[0])
	}
	if summary.Reservations[1].LotID != "lot-2" || !summary.Reservations[1].ReservedQty.Equal(dec("30")) {
		t.Fatalf("unexpected second draw: %+v", summary.Reservations[1])
	}
	if len(summary.Shortages) != 0 {
		t.Fatalf("expected no shortages, got %+v", summary.Shortages)
	}

	demand, _ := svc.Store().GetMaterialDemand(fx.demand.ID)
	if !demand.ReservedQty.Equal(dec("80")) {
		t.Fatalf("expected demand reserved 80, got %s", demand.ReservedQty)
	}
}

func TestAutoReserveFEFOPrefersSoonestExpiry(t *testing.T) {
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, WithClock(ClockFunc(func() time.Time { return base })))
	fx := seedFixture(t, svc)
	soon := base.AddDate(0, 1, 0)

	// The fixture lot has no expiry; a dated lot must win under FEFO even
	// though it arrived later.
	seedLot(t, svc, "lot-dated", "steel", "80", base.AddDate(0, 0, 10), &soon)

	summary, err := svc.AutoReserve(context.Background(), testActor, fx.wo.ID, allocation.PolicyFEFO)
	if err != nil {
		t.Fatalf("auto reserve: %v", err)
	}
	if len(summary.Reservations) != 1 || summary.Reservations[0].LotID != "lot-dated" {
		t.Fatalf("expected single draw from dated lot, got %+v", summary.Reservations)
	}
}

func TestAutoReserveRecordsShortage(t *testing.T) {
	svc := newTestService(t)
	fx := seedFixture(t, svc)
	if _, err := svc.Store().RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateLot(fx.lot.ID, func(l *Lot) error {
			l.Quantity = dec("25")
			l.AvailableQty = dec("25")
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("shrink lot: %v", err)
	}

	summary, err := svc.AutoReserve(context.Background(), testActor, fx.wo.ID, allocation.PolicyFIFO)
	if err != nil {
		t.Fatalf("auto reserve: %v", err)
	}
	if summary.PartiallyReserved != 1 {
		t.Fatalf("expected one partially reserved material, got %+v", summary)
	}
	if len(summary.Shortages) != 1 || !summary.Shortages[0].Quantity.Equal(dec("55")) {
		t.Fatalf("expected shortage of 55, got %+v", summary.Shortages)
	}
}

func TestAutoReserveSkipsSatisfiedMaterials(t *testing.T) {
	svc := newTestService(t)
	fx := seedFixture(t, svc)

	if _, err := svc.ReserveLot(context.Background(), testActor, ReserveRequest{
		WorkOrderID: fx.wo.ID, MaterialID: fx.demand.ID, LotID: fx.lot.ID, Quantity: dec("80"),
	}); err != nil {
		t.Fatalf("manual reserve: %v", err)
	}

	summary, err := svc.AutoReserve(context.Background(), testActor, fx.wo.ID, allocation.PolicyFIFO)
	if err != nil {
		t.Fatalf("auto reserve: %v", err)
	}
	if summary.FullyReserved != 1 || len(summary.Reservations) != 0 {
		t.Fatalf("expected satisfied material untouched, got %+v", summary)
	}
}

func TestSequenceNumbersAreScopedToMaterial(t *testing.T) {
	svc := newTestService(t)
	fx := seedFixture(t, svc)
	seedLot(t, svc, "lot-copper", "copper", "30", time.Now().UTC(), nil)
	if _, err := svc.Store().RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateMaterialDemand(MaterialDemand{
			Base:        domain.Base{ID: "mat-copper"},
			WorkOrderID: fx.wo.ID,
			ProductID:   "copper",
			RequiredQty: dec("30"),
			UoM:         "kg",
			Sequence:    2,
			OrgID:       "org-1",
		})
		return err
	}); err != nil {
		t.Fatalf("seed second material: %v", err)
	}

	first, err := svc.ReserveLot(context.Background(), testActor, ReserveRequest{
		WorkOrderID: fx.wo.ID, MaterialID: fx.demand.ID, LotID: fx.lot.ID, Quantity: dec("80"),
	})
	if err != nil {
		t.Fatalf("reserve steel: %v", err)
	}
	second, err := svc.ReserveLot(context.Background(), testActor, ReserveRequest{
		WorkOrderID: fx.wo.ID, MaterialID: "mat-copper", LotID: "lot-copper", Quantity: dec("30"),
	})
	if err != nil {
		t.Fatalf("reserve copper: %v", err)
	}
	// Each material carries its own sequence, starting at 1.
	if first.Reservation.SequenceNumber != 1 || second.Reservation.SequenceNumber != 1 {
		t.Fatalf("expected both first reservations at sequence 1, got %d and %d",
			first.Reservation.SequenceNumber, second.Reservation.SequenceNumber)
	}
}

func TestAutoReserveIgnoresZeroRequirementMaterials(t *testing.T) {
	svc := newTestService(t)
	fx := seedFixture(t, svc)
	if _, err := svc.Store().RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateMaterialDemand(MaterialDemand{
			Base:        domain.Base{ID: "mat-zero"},
			WorkOrderID: fx.wo.ID,
			ProductID:   "flux",
			RequiredQty: dec("0"),
			UoM:         "kg",
			Sequence:    2,
			OrgID:       "org-1",
		})
		return err
	}); err != nil {
		t.Fatalf("seed zero requirement: %v", err)
	}

	summary, err := svc.AutoReserve(context.Background(), testActor, fx.wo.ID, allocation.PolicyFIFO)
	if err != nil {
		t.Fatalf("auto reserve: %v", err)
	}
	if summary.MaterialsProcessed != 1 {
		t.Fatalf("expected zero-requirement line skipped, got %+v", summary)
	}
	if summary.FullyReserved != 1 {
		t.Fatalf("expected only the steel line fully reserved, got %+v", summary)
	}
}

func TestAutoReserveDefaultsToFIFO(t *testing.T) {
	svc := newTestService(t)
	fx := seedFixture(t, svc)

	summary, err := svc.AutoReserve(context.Background(), testActor, fx.wo.ID, "")
	if err != nil {
		t.Fatalf("auto reserve: %v", err)
	}
	if summary.Policy != allocation.PolicyFIFO {
		t.Fatalf("expected fifo default, got %s", summary.Policy)
	}
}

func TestAutoReserveRejectsUnknownPolicy(t *testing.T) {
	svc := newTestService(t)
	fx := seedFixture(t, svc)

	_, err := svc.AutoReserve(context.Background(), testActor, fx.wo.ID, "lifo")
	if CodeOf(err) != CodeValidation {
		t.Fatalf("expected validation for unknown policy, got %v", err)
	}
}

func TestAutoReserveWholeLotOvershoots(t *testing.T) {
	svc := newTestService(t)
	fx := seedFixture(t, svc)
	if _, err := svc.Store().RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateMaterialDemand(fx.demand.ID, func(m *MaterialDemand) error {
			m.ConsumeWholeLot = true
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("mutate demand: %v", err)
	}

	summary, err := svc.AutoReserve(context.Background(), testActor, fx.wo.ID, allocation.PolicyFIFO)
	if err != nil {
		t.Fatalf("auto reserve: %v", err)
	}
	if len(summary.Reservations) != 1 || !summary.Reservations[0].ReservedQty.Equal(dec("100")) {
		t.Fatalf("expected whole 100 kg lot drawn for an 80 kg requirement, got %+v", summary.Reservations)
	}
	if summary.FullyReserved != 1 {
		t.Fatalf("expected overshoot to count as fully reserved, got %+v", summary)
	}
}

func TestReleaseAllReleasesEveryActiveReservation(t *testing.T) {
	svc := newTestService(t)
	fx := seedFixture(t, svc)
	seedLot(t, svc, "lot-2", "steel", "40", time.Now().UTC(), nil)

	if _, err := svc.ReserveLot(context.Background(), testActor, ReserveRequest{
		WorkOrderID: fx.wo.ID, MaterialID: fx.demand.ID, LotID: fx.lot.ID, Quantity: dec("40"),
	}); err != nil {
		t.Fatalf("reserve 1: %v", err)
	}
	if _, err := svc.ReserveLot(context.Background(), testActor, ReserveRequest{
		WorkOrderID: fx.wo.ID, MaterialID: fx.demand.ID, LotID: "lot-2", Quantity: dec("40"),
	}); err != nil {
		t.Fatalf("reserve 2: %v", err)
	}

	count, err := svc.ReleaseAll(context.Background(), testActor, fx.wo.ID)
	if err != nil {
		t.Fatalf("release all: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 released, got %d", count)
	}
	demand, _ := svc.Store().GetMaterialDemand(fx.demand.ID)
	if !demand.ReservedQty.IsZero() {
		t.Fatalf("expected demand reserved qty zero, got %s", demand.ReservedQty)
	}

	// A second pass finds nothing to release.
	count, err = svc.ReleaseAll(context.Background(), testActor, fx.wo.ID)
	if err != nil {
		t.Fatalf("release all again: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected idempotent zero, got %d", count)
	}
}
