package core

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"reservecore/pkg/domain"
)

// ReserveRequest describes a manual reservation of a quantity from one lot
// against one material requirement line.
type ReserveRequest struct {
	WorkOrderID string
	MaterialID  string
	LotID       string
	Quantity    decimal.Decimal
	Notes       string
}

// ReserveOutcome carries the committed reservation plus any non-blocking
// warnings raised during the transaction, such as a lot being oversubscribed
// across work orders or a material exceeding its requirement.
type ReserveOutcome struct {
	Reservation Reservation
	Warnings    []Violation
}

// ReserveLot executes the reservation protocol atomically: validation,
// authorization, status guard, eligibility checks, then the reservation
// insert, lot decrement, demand increment and trace link in one commit.
func (s *Service) ReserveLot(ctx context.Context, actor Actor, req ReserveRequest) (ReserveOutcome, error) {
	ctx, finish := s.instrument(ctx, "reserve_lot", actor)
	outcome, err := s.reserveLot(ctx, actor, req)
	finish(outcome.Reservation.ID, err)
	return outcome, err
}

func (s *Service) reserveLot(ctx context.Context, actor Actor, req ReserveRequest) (ReserveOutcome, error) {
	if err := validateReserveRequest(req); err != nil {
		return ReserveOutcome{}, err
	}
	if err := s.authorize(actor); err != nil {
		return ReserveOutcome{}, err
	}

	var (
		created  Reservation
		warnings []Violation
	)
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		view := tx.Snapshot()
		wo, err := visibleWorkOrder(view, req.WorkOrderID, actor.OrgID)
		if err != nil {
			return err
		}
		if err := guardWorkOrderStatus(wo); err != nil {
			return err
		}
		demand, err := visibleDemand(view, req.MaterialID, actor.OrgID)
		if err != nil {
			return err
		}
		if demand.WorkOrderID != wo.ID {
			return newValidationError("material does not belong to the work order", map[string]string{
				"material_id": demand.ID,
				"wo_id":       wo.ID,
			})
		}
		lot, err := visibleLot(view, req.LotID, actor.OrgID)
		if err != nil {
			return err
		}
		if err := checkLotEligibility(lot, demand, wo, s.clock.Now()); err != nil {
			return err
		}
		if err := checkQuantity(req.Quantity, lot, demand); err != nil {
			return err
		}

		// Drawing past the lot's current availability is allowed; the draw
		// commits and the caller gets a non-blocking warning instead.
		if req.Quantity.GreaterThan(lot.AvailableQty) {
			warnings = append(warnings, Violation{
				Rule:     "lot_over_reservation",
				Severity: domain.SeverityWarn,
				Message:  "lot " + lot.LotNumber + " over-reserved: requested " + req.Quantity.String() + " exceeds available " + lot.AvailableQty.String(),
				Entity:   domain.EntityLot,
				EntityID: lot.ID,
			})
		}
		if over := demand.ReservedQty.Add(req.Quantity).Sub(demand.RequiredQty); over.IsPositive() {
			warnings = append(warnings, Violation{
				Rule:     "demand_over_reservation",
				Severity: domain.SeverityWarn,
				Message:  "reserved quantity exceeds the material requirement by " + over.String(),
				Entity:   domain.EntityMaterialDemand,
				EntityID: demand.ID,
			})
		}

		created, err = reserveInTx(tx, wo, demand, lot, req.Quantity, nextSequenceNumber(view, demand.ID), req.Notes, actor, s.clock.Now())
		return err
	})
	if err != nil {
		return ReserveOutcome{}, mapStoreError(err)
	}

	warnings = append(warnings, res.Warnings()...)
	for _, w := range warnings {
		s.logger.Warn("reservation warning", "rule", w.Rule, "entity_id", w.EntityID, "message", w.Message)
	}
	return ReserveOutcome{Reservation: created, Warnings: warnings}, nil
}

// ReleaseReservation returns a reservation's quantity to its lot and demand.
func (s *Service) ReleaseReservation(ctx context.Context, actor Actor, reservationID string) (Reservation, error) {
	ctx, finish := s.instrument(ctx, "release_reservation", actor)
	released, err := s.releaseReservation(ctx, actor, reservationID)
	finish(reservationID, err)
	return released, err
}

func (s *Service) releaseReservation(ctx context.Context, actor Actor, reservationID string) (Reservation, error) {
	if reservationID == "" {
		return Reservation{}, newValidationError("reservation id is required", nil)
	}
	if err := s.authorize(actor); err != nil {
		return Reservation{}, err
	}

	var released Reservation
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		view := tx.Snapshot()
		res, err := visibleReservation(view, reservationID, actor.OrgID)
		if err != nil {
			return err
		}
		if !res.Active() {
			return newConflictError("reservation is already released", map[string]string{
				"reservation_id": res.ID,
				"status":         string(res.Status),
			}, nil)
		}
		wo, err := visibleWorkOrder(view, res.WorkOrderID, actor.OrgID)
		if err != nil {
			return err
		}
		if err := guardWorkOrderStatus(wo); err != nil {
			return err
		}
		released, err = releaseInTx(tx, res, s.clock.Now())
		return err
	})
	if err != nil {
		return Reservation{}, mapStoreError(err)
	}
	return released, nil
}

// reserveInTx applies the reservation writes for one lot draw: the
// reservation row, the lot decrement, the demand increment and the trace
// link. Shared by manual and automatic reservation.
func reserveInTx(tx Transaction, wo WorkOrder, demand MaterialDemand, lot Lot, qty decimal.Decimal, seq int, notes string, actor Actor, now time.Time) (Reservation, error) {
	created, err := tx.CreateReservation(Reservation{
		WorkOrderID:    wo.ID,
		MaterialID:     demand.ID,
		LotID:          lot.ID,
		ReservedQty:    qty,
		UoM:            demand.UoM,
		SequenceNumber: seq,
		Status:         domain.ReservationStatusActive,
		ReservedAt:     now,
		ReservedBy:     actor.UserID,
		Notes:          notes,
		OrgID:          actor.OrgID,
	})
	if err != nil {
		return Reservation{}, err
	}
	if _, err := tx.UpdateLot(lot.ID, func(l *Lot) error {
		// Goes negative when the lot is over-reserved; release restores the
		// quantity and caps at the nominal amount.
		l.AvailableQty = l.AvailableQty.Sub(qty)
		l.Status = domain.LotStatusReserved
		return nil
	}); err != nil {
		return Reservation{}, err
	}
	if _, err := tx.UpdateMaterialDemand(demand.ID, func(m *MaterialDemand) error {
		m.ReservedQty = m.ReservedQty.Add(qty)
		return nil
	}); err != nil {
		return Reservation{}, err
	}
	if _, err := tx.CreateTraceLink(TraceLink{
		ReservationID: created.ID,
		LotID:         lot.ID,
		WorkOrderID:   wo.ID,
		Quantity:      qty,
		UoM:           demand.UoM,
		Relationship:  domain.TraceRelationshipProduction,
		RecordedAt:    now,
		RecordedBy:    actor.UserID,
		OrgID:         actor.OrgID,
	}); err != nil {
		return Reservation{}, err
	}
	return created, nil
}

// releaseInTx applies the release writes for one active reservation. Shared
// by single release and bulk release.
func releaseInTx(tx Transaction, res Reservation, now time.Time) (Reservation, error) {
	released, err := tx.UpdateReservation(res.ID, func(r *Reservation) error {
		r.Status = domain.ReservationStatusReleased
		released := now
		r.ReleasedAt = &released
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}
	if _, err := tx.UpdateLot(res.LotID, func(l *Lot) error {
		l.AvailableQty = l.AvailableQty.Add(res.ReservedQty)
		if l.AvailableQty.GreaterThan(l.Quantity) {
			l.AvailableQty = l.Quantity
		}
		if l.Status == domain.LotStatusReserved {
			l.Status = domain.LotStatusAvailable
		}
		return nil
	}); err != nil {
		return Reservation{}, err
	}
	if _, err := tx.UpdateMaterialDemand(res.MaterialID, func(m *MaterialDemand) error {
		m.ReservedQty = m.ReservedQty.Sub(res.ReservedQty)
		if m.ReservedQty.IsNegative() {
			m.ReservedQty = decimal.Zero
		}
		return nil
	}); err != nil {
		return Reservation{}, err
	}
	for _, link := range tx.Snapshot().ListTraceLinks() {
		if link.ReservationID == res.ID {
			if err := tx.DeleteTraceLink(link.ID); err != nil {
				return Reservation{}, err
			}
		}
	}
	return released, nil
}

func validateReserveRequest(req ReserveRequest) error {
	details := map[string]string{}
	if req.WorkOrderID == "" {
		details["wo_id"] = "required"
	}
	if req.MaterialID == "" {
		details["material_id"] = "required"
	}
	if req.LotID == "" {
		details["lot_id"] = "required"
	}
	if !req.Quantity.IsPositive() {
		details["quantity"] = "must be positive"
	}
	if len(details) > 0 {
		return newValidationError("invalid reservation request", details)
	}
	return nil
}

func checkLotEligibility(lot Lot, demand MaterialDemand, wo WorkOrder, now time.Time) error {
	if lot.ProductID != demand.ProductID {
		return newValidationError("lot holds a different product than the material requires", map[string]string{
			"lot_product":      lot.ProductID,
			"material_product": demand.ProductID,
		})
	}
	if lot.UoM != demand.UoM {
		return newValidationError("lot unit of measure does not match the material", map[string]string{
			"lot_uom":      lot.UoM,
			"material_uom": demand.UoM,
		})
	}
	if lot.Status != domain.LotStatusAvailable && lot.Status != domain.LotStatusReserved {
		return newValidationError("lot status does not allow reservation", map[string]string{
			"lot_id": lot.ID,
			"status": string(lot.Status),
		})
	}
	if lot.QAStatus != domain.QAStatusPassed {
		return newValidationError("lot has not passed quality inspection", map[string]string{
			"lot_id":    lot.ID,
			"qa_status": string(lot.QAStatus),
		})
	}
	if lot.Expired(now) {
		return newValidationError("lot is expired", map[string]string{
			"lot_id": lot.ID,
			"expiry": lot.ExpiryDate.Format("2006-01-02"),
		})
	}
	if wo.WarehouseID != "" && lot.WarehouseID != wo.WarehouseID {
		return newValidationError("lot is stored in a different warehouse than the work order", map[string]string{
			"lot_warehouse": lot.WarehouseID,
			"wo_warehouse":  wo.WarehouseID,
		})
	}
	return nil
}

func checkQuantity(qty decimal.Decimal, lot Lot, demand MaterialDemand) error {
	// Hard bound: one reservation may never exceed the lot's nominal receipt
	// quantity, whatever its current availability.
	if qty.GreaterThan(lot.Quantity) {
		return newValidationError("requested quantity exceeds the lot's nominal quantity", map[string]string{
			"requested": qty.String(),
			"nominal":   lot.Quantity.String(),
		})
	}
	if demand.ConsumeWholeLot && !qty.Equal(lot.AvailableQty) {
		return newValidationError("material requires consuming whole lots", map[string]string{
			"requested": qty.String(),
			"available": lot.AvailableQty.String(),
		})
	}
	return nil
}

// mapStoreError lifts storage-level failures into the service taxonomy.
// Service errors pass through untouched.
func mapStoreError(err error) error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	if errors.Is(err, domain.ErrDuplicateActiveReservation) {
		return newConflictError("an active reservation already exists for this work order and lot; retry after refreshing", nil, err)
	}
	var violation domain.RuleViolationError
	if errors.As(err, &violation) {
		details := map[string]string{}
		for _, v := range violation.Result.Violations {
			if v.Severity == domain.SeverityBlock {
				details[v.Rule] = v.Message
			}
		}
		return newConflictError("transaction blocked by reservation rules", details, err)
	}
	return newInternalError("storage failure", err)
}
