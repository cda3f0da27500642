package core

import (
	"context"
	"sort"
	"strings"

	"reservecore/internal/allocation"
	"reservecore/pkg/domain"
)

// defaultLotQueryLimit bounds lot queries that do not specify a limit.
const defaultLotQueryLimit = 50

// LotQuery filters the stock eligible for reservation. ProductID and UoM are
// required; the rest narrow the result.
type LotQuery struct {
	ProductID   string
	UoM         string
	WarehouseID string
	LocationID  string
	// Search matches lot and batch numbers, case-insensitive substring.
	Search string
	Policy allocation.Policy
	Limit  int
}

// FindAvailableLots returns reservable stock for a product ordered by the
// allocation policy. Expired lots, QA failures and exhausted lots are
// excluded.
func (s *Service) FindAvailableLots(ctx context.Context, actor Actor, query LotQuery) ([]Lot, error) {
	if query.ProductID == "" || query.UoM == "" {
		return nil, newValidationError("product id and unit of measure are required", nil)
	}
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	policy := query.Policy
	if policy == "" {
		policy = allocation.PolicyFIFO
	}
	if _, err := allocation.ParsePolicy(string(policy)); err != nil {
		return nil, newValidationError(err.Error(), map[string]string{"policy": string(policy)})
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultLotQueryLimit
	}

	now := s.clock.Now()
	var matched []Lot
	err := s.store.View(ctx, func(view TransactionView) error {
		for _, lot := range view.ListLots() {
			if lot.OrgID != actor.OrgID || lot.ProductID != query.ProductID || lot.UoM != query.UoM {
				continue
			}
			if query.WarehouseID != "" && lot.WarehouseID != query.WarehouseID {
				continue
			}
			if query.LocationID != "" && lot.LocationID != query.LocationID {
				continue
			}
			if lot.Status != domain.LotStatusAvailable && lot.Status != domain.LotStatusReserved {
				continue
			}
			if lot.QAStatus != domain.QAStatusPassed || lot.Expired(now) || !lot.AvailableQty.IsPositive() {
				continue
			}
			if query.Search != "" && !matchesSearch(lot, query.Search) {
				continue
			}
			matched = append(matched, lot)
		}
		return nil
	})
	if err != nil {
		return nil, newInternalError("storage failure", err)
	}

	ordered := allocation.Order(policy, matched)
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered, nil
}

func matchesSearch(lot Lot, search string) bool {
	needle := strings.ToLower(search)
	return strings.Contains(strings.ToLower(lot.LotNumber), needle) ||
		strings.Contains(strings.ToLower(lot.BatchNumber), needle)
}

// MaterialWithReservations pairs a requirement line with its active
// reservations and computed coverage.
type MaterialWithReservations struct {
	Material     MaterialDemand
	Reservations []Reservation
	Coverage     Coverage
}

// ListMaterialsWithReservations returns the work order's requirement lines in
// sequence order, each with its active reservations and coverage.
func (s *Service) ListMaterialsWithReservations(ctx context.Context, actor Actor, workOrderID string) ([]MaterialWithReservations, error) {
	if workOrderID == "" {
		return nil, newValidationError("work order id is required", nil)
	}
	if err := s.authorize(actor); err != nil {
		return nil, err
	}

	var out []MaterialWithReservations
	err := s.store.View(ctx, func(view TransactionView) error {
		wo, err := visibleWorkOrder(view, workOrderID, actor.OrgID)
		if err != nil {
			return err
		}
		byMaterial := make(map[string][]Reservation)
		for _, res := range view.ListReservations() {
			if res.WorkOrderID == wo.ID && res.Active() {
				byMaterial[res.MaterialID] = append(byMaterial[res.MaterialID], res)
			}
		}
		for _, demand := range demandsForWorkOrder(view, wo.ID) {
			reservations := byMaterial[demand.ID]
			sort.SliceStable(reservations, func(i, j int) bool {
				return reservations[i].SequenceNumber < reservations[j].SequenceNumber
			})
			out = append(out, MaterialWithReservations{
				Material:     demand,
				Reservations: reservations,
				Coverage:     domain.CalculateCoverage(demand.RequiredQty, demand.ReservedQty),
			})
		}
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	return out, nil
}

// WorkOrderCoverage summarises reservation coverage across a work order.
type WorkOrderCoverage struct {
	WorkOrderID string
	Materials   []MaterialWithReservations
	Overall     Coverage
}

// CoverageForWorkOrder aggregates per-material coverage into a work order
// level figure. The overall percentage is the mean of per-material
// percentages so a small requirement weighs the same as a large one.
func (s *Service) CoverageForWorkOrder(ctx context.Context, actor Actor, workOrderID string) (WorkOrderCoverage, error) {
	materials, err := s.ListMaterialsWithReservations(ctx, actor, workOrderID)
	if err != nil {
		return WorkOrderCoverage{}, err
	}
	return WorkOrderCoverage{
		WorkOrderID: workOrderID,
		Materials:   materials,
		Overall:     domain.AggregateCoverage(coverages(materials)),
	}, nil
}

func coverages(materials []MaterialWithReservations) []Coverage {
	out := make([]Coverage, 0, len(materials))
	for _, m := range materials {
		out = append(out, m.Coverage)
	}
	return out
}
