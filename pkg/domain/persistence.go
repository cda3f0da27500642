package domain

import (
	"context"
	"errors"
)

// ErrDuplicateActiveReservation is returned by stores when a second active
// reservation is created for the same work order and lot pair.
var ErrDuplicateActiveReservation = errors.New("active reservation already exists for work order and lot")

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateLot(Lot) (Lot, error)
	UpdateLot(id string, mutator func(*Lot) error) (Lot, error)
	DeleteLot(id string) error
	CreateMaterialDemand(MaterialDemand) (MaterialDemand, error)
	UpdateMaterialDemand(id string, mutator func(*MaterialDemand) error) (MaterialDemand, error)
	DeleteMaterialDemand(id string) error
	CreateReservation(Reservation) (Reservation, error)
	UpdateReservation(id string, mutator func(*Reservation) error) (Reservation, error)
	DeleteReservation(id string) error
	CreateWorkOrder(WorkOrder) (WorkOrder, error)
	UpdateWorkOrder(id string, mutator func(*WorkOrder) error) (WorkOrder, error)
	DeleteWorkOrder(id string) error
	CreateTraceLink(TraceLink) (TraceLink, error)
	DeleteTraceLink(id string) error
	FindLot(id string) (Lot, bool)
	FindMaterialDemand(id string) (MaterialDemand, bool)
	FindReservation(id string) (Reservation, bool)
	FindWorkOrder(id string) (WorkOrder, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListLots() []Lot
	ListMaterialDemands() []MaterialDemand
	ListReservations() []Reservation
	ListWorkOrders() []WorkOrder
	ListTraceLinks() []TraceLink
	FindLot(id string) (Lot, bool)
	FindMaterialDemand(id string) (MaterialDemand, bool)
	FindReservation(id string) (Reservation, bool)
	FindWorkOrder(id string) (WorkOrder, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetLot(id string) (Lot, bool)
	ListLots() []Lot
	GetMaterialDemand(id string) (MaterialDemand, bool)
	ListMaterialDemands() []MaterialDemand
	GetReservation(id string) (Reservation, bool)
	ListReservations() []Reservation
	GetWorkOrder(id string) (WorkOrder, bool)
	ListWorkOrders() []WorkOrder
	ListTraceLinks() []TraceLink
}
