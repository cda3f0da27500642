// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by reservecore.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityLot identifies a material lot record.
	EntityLot EntityType = "lot"
	// EntityMaterialDemand identifies a work order material requirement record.
	EntityMaterialDemand EntityType = "material_demand"
	// EntityReservation identifies a lot reservation record.
	EntityReservation EntityType = "reservation"
	// EntityWorkOrder identifies a work order record.
	EntityWorkOrder EntityType = "work_order"
	// EntityTraceLink identifies a traceability link record.
	EntityTraceLink EntityType = "trace_link"
)

// LotStatus enumerates the inventory states a lot moves through.
type LotStatus string

// Canonical lot statuses used by availability queries and the reserve protocol.
const (
	LotStatusAvailable LotStatus = "available"
	LotStatusReserved  LotStatus = "reserved"
	LotStatusConsumed  LotStatus = "consumed"
	LotStatusBlocked   LotStatus = "blocked"
)

// QAStatus enumerates quality gate outcomes attached to a lot.
type QAStatus string

// Canonical QA statuses; only passed lots are eligible for reservation.
const (
	QAStatusPassed  QAStatus = "passed"
	QAStatusPending QAStatus = "pending"
	QAStatusFailed  QAStatus = "failed"
)

// ReservationStatus enumerates reservation lifecycle states.
type ReservationStatus string

// Canonical reservation statuses. Released and consumed are terminal.
const (
	ReservationStatusActive   ReservationStatus = "active"
	ReservationStatusReleased ReservationStatus = "released"
	ReservationStatusConsumed ReservationStatus = "consumed"
)

// WorkOrderStatus enumerates work order workflow states.
type WorkOrderStatus string

// Canonical work order statuses used by the modification guard.
const (
	WorkOrderStatusPlanned    WorkOrderStatus = "planned"
	WorkOrderStatusReleased   WorkOrderStatus = "released"
	WorkOrderStatusInProgress WorkOrderStatus = "in_progress"
	WorkOrderStatusCompleted  WorkOrderStatus = "completed"
	WorkOrderStatusCancelled  WorkOrderStatus = "cancelled"
	WorkOrderStatusOnHold     WorkOrderStatus = "on_hold"
)

// CanModifyReservations reports whether reservations under a work order in the
// given status may be created or released. Completed, cancelled and on-hold
// orders are frozen.
func CanModifyReservations(status WorkOrderStatus) bool {
	switch status {
	case WorkOrderStatusPlanned, WorkOrderStatusReleased, WorkOrderStatusInProgress:
		return true
	default:
		return false
	}
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Lot represents a received quantity of material tracked as a single
// traceable unit. Quantity is the nominal amount set at receipt and never
// changes; AvailableQty is decremented as reservations are placed.
type Lot struct {
	Base
	LotNumber    string          `json:"lot_number"`
	ProductID    string          `json:"product_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	AvailableQty decimal.Decimal `json:"available_qty"`
	UoM          string          `json:"uom"`
	WarehouseID  string          `json:"warehouse_id"`
	LocationID   string          `json:"location_id"`
	BatchNumber  string          `json:"batch_number"`
	ExpiryDate   *time.Time      `json:"expiry_date"`
	QAStatus     QAStatus        `json:"qa_status"`
	Status       LotStatus       `json:"status"`
	OrgID        string          `json:"org_id"`
}

// Expired reports whether the lot's expiry date has passed at the given time.
// Lots without an expiry never expire.
func (l Lot) Expired(now time.Time) bool {
	return l.ExpiryDate != nil && l.ExpiryDate.Before(now)
}

// MaterialDemand captures one line of material requirement on a work order.
type MaterialDemand struct {
	Base
	WorkOrderID     string          `json:"wo_id"`
	ProductID       string          `json:"product_id"`
	Name            string          `json:"name"`
	RequiredQty     decimal.Decimal `json:"required_qty"`
	ReservedQty     decimal.Decimal `json:"reserved_qty"`
	ConsumedQty     decimal.Decimal `json:"consumed_qty"`
	UoM             string          `json:"uom"`
	ConsumeWholeLot bool            `json:"consume_whole_lot"`
	Sequence        int             `json:"sequence"`
	OrgID           string          `json:"org_id"`
}

// RemainingQty returns the quantity still unreserved, floored at zero.
func (m MaterialDemand) RemainingQty() decimal.Decimal {
	remaining := m.RequiredQty.Sub(m.ReservedQty)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// Reservation links a work order material requirement to a specific lot.
type Reservation struct {
	Base
	WorkOrderID    string            `json:"wo_id"`
	MaterialID     string            `json:"material_id"`
	LotID          string            `json:"lot_id"`
	ReservedQty    decimal.Decimal   `json:"reserved_qty"`
	UoM            string            `json:"uom"`
	SequenceNumber int               `json:"sequence_number"`
	Status         ReservationStatus `json:"status"`
	ReservedAt     time.Time         `json:"reserved_at"`
	ReservedBy     string            `json:"reserved_by"`
	ReleasedAt     *time.Time        `json:"released_at"`
	Notes          string            `json:"notes,omitempty"`
	OrgID          string            `json:"org_id"`
}

// Active reports whether the reservation still holds material.
func (r Reservation) Active() bool {
	return r.Status == ReservationStatusActive
}

// WorkOrder carries the subset of work order state the reservation engine
// depends on. Routing, scheduling and costing live elsewhere.
type WorkOrder struct {
	Base
	Status      WorkOrderStatus `json:"status"`
	WarehouseID string          `json:"warehouse_id"`
	OrgID       string          `json:"org_id"`
}

// TraceLink is an append-only record tying a reservation to its lot for
// genealogy queries. Removed only when its owning reservation is released.
type TraceLink struct {
	Base
	ReservationID string          `json:"reservation_id"`
	LotID         string          `json:"lot_id"`
	WorkOrderID   string          `json:"wo_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	UoM           string          `json:"uom"`
	Relationship  string          `json:"relationship"`
	RecordedAt    time.Time       `json:"recorded_at"`
	RecordedBy    string          `json:"recorded_by"`
	OrgID         string          `json:"org_id"`
}

// TraceRelationshipProduction is the relationship recorded for reservations
// feeding production consumption.
const TraceRelationshipProduction = "production"

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Warnings returns the non-blocking violations.
func (r Result) Warnings() []Violation {
	var warns []Violation
	for _, v := range r.Violations {
		if v.Severity != SeverityBlock {
			warns = append(warns, v)
		}
	}
	return warns
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
