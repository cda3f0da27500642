// Package core implements the material reservation service: lot allocation,
// the atomic reserve and release protocols, the auto-reservation
// orchestrator, and the surrounding authorization and observability plumbing.
package core

import "reservecore/pkg/domain"

// Aliases keep service signatures concise while the canonical definitions
// stay in pkg/domain.
type (
	Lot             = domain.Lot
	MaterialDemand  = domain.MaterialDemand
	Reservation     = domain.Reservation
	WorkOrder       = domain.WorkOrder
	TraceLink       = domain.TraceLink
	Change          = domain.Change
	Violation       = domain.Violation
	Result          = domain.Result
	Rule            = domain.Rule
	RulesEngine     = domain.RulesEngine
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
	EntityType      = domain.EntityType
	Coverage        = domain.Coverage
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(LotOversubscriptionRule())
	engine.Register(ReservationLifecycleRule())
	return engine
}
