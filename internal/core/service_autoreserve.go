package core

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"reservecore/internal/allocation"
	"reservecore/pkg/domain"
)

// MaterialShortage reports unmet demand left after an auto-reservation pass.
type MaterialShortage struct {
	MaterialID string
	ProductID  string
	Quantity   decimal.Decimal
}

// AutoReserveSummary reports the outcome of an auto-reservation pass over a
// work order's material requirements.
type AutoReserveSummary struct {
	WorkOrderID        string
	Policy             allocation.Policy
	MaterialsProcessed int
	FullyReserved      int
	PartiallyReserved  int
	Reservations       []Reservation
	Shortages          []MaterialShortage
	Warnings           []Violation
}

// AutoReserve walks the work order's material requirements in sequence order
// and reserves remaining quantities from eligible lots according to the
// allocation policy. The whole pass commits atomically; individual materials
// with no eligible stock are recorded as shortages rather than failing the
// pass.
func (s *Service) AutoReserve(ctx context.Context, actor Actor, workOrderID string, policy allocation.Policy) (AutoReserveSummary, error) {
	ctx, finish := s.instrument(ctx, "auto_reserve", actor)
	summary, err := s.autoReserve(ctx, actor, workOrderID, policy)
	finish(workOrderID, err)
	return summary, err
}

func (s *Service) autoReserve(ctx context.Context, actor Actor, workOrderID string, policy allocation.Policy) (AutoReserveSummary, error) {
	if workOrderID == "" {
		return AutoReserveSummary{}, newValidationError("work order id is required", nil)
	}
	if policy == "" {
		policy = allocation.PolicyFIFO
	}
	if _, err := allocation.ParsePolicy(string(policy)); err != nil {
		return AutoReserveSummary{}, newValidationError(err.Error(), map[string]string{"policy": string(policy)})
	}
	if err := s.authorize(actor); err != nil {
		return AutoReserveSummary{}, err
	}

	summary := AutoReserveSummary{WorkOrderID: workOrderID, Policy: policy}
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		view := tx.Snapshot()
		wo, err := visibleWorkOrder(view, workOrderID, actor.OrgID)
		if err != nil {
			return err
		}
		if err := guardWorkOrderStatus(wo); err != nil {
			return err
		}

		demands := demandsForWorkOrder(view, wo.ID)
		now := s.clock.Now()
		for _, demand := range demands {
			// Lines without a requirement are skipped outright, not counted.
			if !demand.RequiredQty.IsPositive() {
				continue
			}
			summary.MaterialsProcessed++
			remaining := demand.RemainingQty()
			if !remaining.IsPositive() {
				summary.FullyReserved++
				continue
			}
			seq := nextSequenceNumber(tx.Snapshot(), demand.ID)

			candidates := eligibleLots(tx.Snapshot(), demand, wo, actor.OrgID, now)
			plan := allocation.Build(policy, remaining, candidates, demand.ConsumeWholeLot)
			reserved := decimal.Zero
			for _, line := range plan.Lines {
				lot, ok := tx.Snapshot().FindLot(line.LotID)
				if !ok {
					continue
				}
				created, err := reserveInTx(tx, wo, demand, lot, line.Quantity, seq, "", actor, now)
				if err != nil {
					// Leave this line for a later pass, keep draining the plan.
					s.logger.Warn("auto-reserve line skipped", "material_id", demand.ID, "lot_id", line.LotID, "error", err)
					continue
				}
				seq++
				reserved = reserved.Add(line.Quantity)
				summary.Reservations = append(summary.Reservations, created)
			}

			switch {
			case reserved.GreaterThanOrEqual(remaining):
				summary.FullyReserved++
			case reserved.IsPositive():
				summary.PartiallyReserved++
			}
			if short := remaining.Sub(reserved); short.IsPositive() {
				summary.Shortages = append(summary.Shortages, MaterialShortage{
					MaterialID: demand.ID,
					ProductID:  demand.ProductID,
					Quantity:   short,
				})
			}
		}
		return nil
	})
	if err != nil {
		return AutoReserveSummary{}, mapStoreError(err)
	}
	summary.Warnings = res.Warnings()
	return summary, nil
}

// ReleaseAll releases every active reservation on a work order. Calling it on
// a work order with no active reservations is a no-op that reports zero.
func (s *Service) ReleaseAll(ctx context.Context, actor Actor, workOrderID string) (int, error) {
	ctx, finish := s.instrument(ctx, "release_all", actor)
	count, err := s.releaseAll(ctx, actor, workOrderID)
	finish(workOrderID, err)
	return count, err
}

func (s *Service) releaseAll(ctx context.Context, actor Actor, workOrderID string) (int, error) {
	if workOrderID == "" {
		return 0, newValidationError("work order id is required", nil)
	}
	if err := s.authorize(actor); err != nil {
		return 0, err
	}

	released := 0
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		view := tx.Snapshot()
		wo, err := visibleWorkOrder(view, workOrderID, actor.OrgID)
		if err != nil {
			return err
		}
		if err := guardWorkOrderStatus(wo); err != nil {
			return err
		}
		now := s.clock.Now()
		for _, res := range view.ListReservations() {
			if res.WorkOrderID != wo.ID || !res.Active() {
				continue
			}
			if _, err := releaseInTx(tx, res, now); err != nil {
				return err
			}
			released++
		}
		return nil
	})
	if err != nil {
		return 0, mapStoreError(err)
	}
	return released, nil
}

// demandsForWorkOrder returns the work order's requirement lines in sequence
// order.
func demandsForWorkOrder(view TransactionView, workOrderID string) []MaterialDemand {
	var demands []MaterialDemand
	for _, d := range view.ListMaterialDemands() {
		if d.WorkOrderID == workOrderID {
			demands = append(demands, d)
		}
	}
	sort.SliceStable(demands, func(i, j int) bool {
		if demands[i].Sequence != demands[j].Sequence {
			return demands[i].Sequence < demands[j].Sequence
		}
		return demands[i].ID < demands[j].ID
	})
	return demands
}

// eligibleLots filters stock the work order may draw from for one material:
// matching product and unit, QA passed, unexpired, reservable status, the
// work order's warehouse when it has one, and not already actively reserved
// by this work order.
func eligibleLots(view TransactionView, demand MaterialDemand, wo WorkOrder, orgID string, now time.Time) []Lot {
	held := make(map[string]struct{})
	for _, res := range view.ListReservations() {
		if res.WorkOrderID == wo.ID && res.Active() {
			held[res.LotID] = struct{}{}
		}
	}
	var lots []Lot
	for _, lot := range view.ListLots() {
		if lot.OrgID != orgID || lot.ProductID != demand.ProductID || lot.UoM != demand.UoM {
			continue
		}
		if lot.Status != domain.LotStatusAvailable && lot.Status != domain.LotStatusReserved {
			continue
		}
		if lot.QAStatus != domain.QAStatusPassed || lot.Expired(now) || !lot.AvailableQty.IsPositive() {
			continue
		}
		if wo.WarehouseID != "" && lot.WarehouseID != wo.WarehouseID {
			continue
		}
		if _, taken := held[lot.ID]; taken {
			continue
		}
		lots = append(lots, lot)
	}
	return lots
}
