// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"reservecore/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Lot aliases domain.Lot for in-memory persistence operations.
	Lot = domain.Lot
	// MaterialDemand aliases domain.MaterialDemand.
	MaterialDemand = domain.MaterialDemand
	// Reservation aliases domain.Reservation.
	Reservation = domain.Reservation
	// WorkOrder aliases domain.WorkOrder.
	WorkOrder = domain.WorkOrder
	// TraceLink aliases domain.TraceLink.
	TraceLink = domain.TraceLink
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

type memoryState struct {
	lots         map[string]Lot
	demands      map[string]MaterialDemand
	reservations map[string]Reservation
	workOrders   map[string]WorkOrder
	traceLinks   map[string]TraceLink
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Lots         map[string]Lot            `json:"lots"`
	Demands      map[string]MaterialDemand `json:"demands"`
	Reservations map[string]Reservation    `json:"reservations"`
	WorkOrders   map[string]WorkOrder      `json:"work_orders"`
	TraceLinks   map[string]TraceLink      `json:"trace_links"`
}

func newMemoryState() memoryState {
	return memoryState{
		lots:         make(map[string]Lot),
		demands:      make(map[string]MaterialDemand),
		reservations: make(map[string]Reservation),
		workOrders:   make(map[string]WorkOrder),
		traceLinks:   make(map[string]TraceLink),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Lots:         make(map[string]Lot, len(state.lots)),
		Demands:      make(map[string]MaterialDemand, len(state.demands)),
		Reservations: make(map[string]Reservation, len(state.reservations)),
		WorkOrders:   make(map[string]WorkOrder, len(state.workOrders)),
		TraceLinks:   make(map[string]TraceLink, len(state.traceLinks)),
	}
	for k, v := range state.lots {
		s.Lots[k] = cloneLot(v)
	}
	for k, v := range state.demands {
		s.Demands[k] = cloneDemand(v)
	}
	for k, v := range state.reservations {
		s.Reservations[k] = cloneReservation(v)
	}
	for k, v := range state.workOrders {
		s.WorkOrders[k] = cloneWorkOrder(v)
	}
	for k, v := range state.traceLinks {
		s.TraceLinks[k] = cloneTraceLink(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Lots {
		state.lots[k] = cloneLot(v)
	}
	for k, v := range s.Demands {
		state.demands[k] = cloneDemand(v)
	}
	for k, v := range s.Reservations {
		state.reservations[k] = cloneReservation(v)
	}
	for k, v := range s.WorkOrders {
		state.workOrders[k] = cloneWorkOrder(v)
	}
	for k, v := range s.TraceLinks {
		state.traceLinks[k] = cloneTraceLink(v)
	}
	return state
}

// migrateSnapshot repairs snapshots written by older builds or truncated by
// out-of-band edits: nil maps become empty, records referencing missing
// parents are dropped, and demand reserved quantities are recomputed from the
// active reservations that survived.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Lots == nil {
		snapshot.Lots = map[string]Lot{}
	}
	if snapshot.Demands == nil {
		snapshot.Demands = map[string]MaterialDemand{}
	}
	if snapshot.Reservations == nil {
		snapshot.Reservations = map[string]Reservation{}
	}
	if snapshot.WorkOrders == nil {
		snapshot.WorkOrders = map[string]WorkOrder{}
	}
	if snapshot.TraceLinks == nil {
		snapshot.TraceLinks = map[string]TraceLink{}
	}

	lotExists := func(id string) bool {
		_, ok := snapshot.Lots[id]
		return ok
	}
	workOrderExists := func(id string) bool {
		_, ok := snapshot.WorkOrders[id]
		return ok
	}
	demandExists := func(id string) bool {
		_, ok := snapshot.Demands[id]
		return ok
	}

	for id, demand := range snapshot.Demands {
		if demand.WorkOrderID == "" || !workOrderExists(demand.WorkOrderID) {
			delete(snapshot.Demands, id)
		}
	}

	for id, res := range snapshot.Reservations {
		if !lotExists(res.LotID) || !workOrderExists(res.WorkOrderID) || !demandExists(res.MaterialID) {
			delete(snapshot.Reservations, id)
		}
	}

	for id, link := range snapshot.TraceLinks {
		if _, ok := snapshot.Reservations[link.ReservationID]; !ok {
			delete(snapshot.TraceLinks, id)
		}
	}

	for id, demand := range snapshot.Demands {
		reserved := decimal.Zero
		for _, res := range snapshot.Reservations {
			if res.MaterialID == id && res.Status == domain.ReservationStatusActive {
				reserved = reserved.Add(res.ReservedQty)
			}
		}
		demand.ReservedQty = reserved
		snapshot.Demands[id] = demand
	}

	return snapshot
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.lots {
		cloned.lots[k] = cloneLot(v)
	}
	for k, v := range s.demands {
		cloned.demands[k] = cloneDemand(v)
	}
	for k, v := range s.reservations {
		cloned.reservations[k] = cloneReservation(v)
	}
	for k, v := range s.workOrders {
		cloned.workOrders[k] = cloneWorkOrder(v)
	}
	for k, v := range s.traceLinks {
		cloned.traceLinks[k] = cloneTraceLink(v)
	}
	return cloned
}

func cloneLot(l Lot) Lot {
	cp := l
	if l.ExpiryDate != nil {
		t := *l.ExpiryDate
		cp.ExpiryDate = &t
	}
	return cp
}

func cloneDemand(m MaterialDemand) MaterialDemand { return m }

func cloneReservation(r Reservation) Reservation {
	cp := r
	if r.ReleasedAt != nil {
		t := *r.ReleasedAt
		cp.ReleasedAt = &t
	}
	return cp
}

func cloneWorkOrder(w WorkOrder) WorkOrder { return w }
func cloneTraceLink(t TraceLink) TraceLink { return t }

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListLots returns all lots within the transaction snapshot.
func (v transactionView) ListLots() []Lot {
	out := make([]Lot, 0, len(v.state.lots))
	for _, l := range v.state.lots {
		out = append(out, cloneLot(l))
	}
	sortByCreated(out, func(l Lot) (time.Time, string) { return l.CreatedAt, l.ID })
	return out
}

// ListMaterialDemands returns all demands ordered by BOM sequence.
func (v transactionView) ListMaterialDemands() []MaterialDemand {
	out := make([]MaterialDemand, 0, len(v.state.demands))
	for _, m := range v.state.demands {
		out = append(out, cloneDemand(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListReservations returns all reservations within the snapshot.
func (v transactionView) ListReservations() []Reservation {
	out := make([]Reservation, 0, len(v.state.reservations))
	for _, r := range v.state.reservations {
		out = append(out, cloneReservation(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SequenceNumber != out[j].SequenceNumber {
			return out[i].SequenceNumber < out[j].SequenceNumber
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListWorkOrders returns all work orders within the snapshot.
func (v transactionView) ListWorkOrders() []WorkOrder {
	out := make([]WorkOrder, 0, len(v.state.workOrders))
	for _, w := range v.state.workOrders {
		out = append(out, cloneWorkOrder(w))
	}
	sortByCreated(out, func(w WorkOrder) (time.Time, string) { return w.CreatedAt, w.ID })
	return out
}

// ListTraceLinks returns all trace links within the snapshot.
func (v transactionView) ListTraceLinks() []TraceLink {
	out := make([]TraceLink, 0, len(v.state.traceLinks))
	for _, t := range v.state.traceLinks {
		out = append(out, cloneTraceLink(t))
	}
	sortByCreated(out, func(t TraceLink) (time.Time, string) { return t.RecordedAt, t.ID })
	return out
}

// FindLot retrieves a lot by ID from the snapshot.
func (v transactionView) FindLot(id string) (Lot, bool) {
	l, ok := v.state.lots[id]
	if !ok {
		return Lot{}, false
	}
	return cloneLot(l), true
}

// FindMaterialDemand retrieves a demand by ID from the snapshot.
func (v transactionView) FindMaterialDemand(id string) (MaterialDemand, bool) {
	m, ok := v.state.demands[id]
	if !ok {
		return MaterialDemand{}, false
	}
	return cloneDemand(m), true
}

// FindReservation retrieves a reservation by ID from the snapshot.
func (v transactionView) FindReservation(id string) (Reservation, bool) {
	r, ok := v.state.reservations[id]
	if !ok {
		return Reservation{}, false
	}
	return cloneReservation(r), true
}

// FindWorkOrder retrieves a work order by ID from the snapshot.
func (v transactionView) FindWorkOrder(id string) (WorkOrder, bool) {
	w, ok := v.state.workOrders[id]
	if !ok {
		return WorkOrder{}, false
	}
	return cloneWorkOrder(w), true
}

func sortByCreated[T any](items []T, key func(T) (time.Time, string)) {
	sort.Slice(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return idi < idj
	})
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindLot exposes lot lookup within the transaction scope.
func (tx *transaction) FindLot(id string) (Lot, bool) {
	l, ok := tx.state.lots[id]
	if !ok {
		return Lot{}, false
	}
	return cloneLot(l), true
}

// FindMaterialDemand exposes demand lookup within the transaction scope.
func (tx *transaction) FindMaterialDemand(id string) (MaterialDemand, bool) {
	m, ok := tx.state.demands[id]
	if !ok {
		return MaterialDemand{}, false
	}
	return cloneDemand(m), true
}

// FindReservation exposes reservation lookup within the transaction scope.
func (tx *transaction) FindReservation(id string) (Reservation, bool) {
	r, ok := tx.state.reservations[id]
	if !ok {
		return Reservation{}, false
	}
	return cloneReservation(r), true
}

// FindWorkOrder exposes work order lookup within the transaction scope.
func (tx *transaction) FindWorkOrder(id string) (WorkOrder, bool) {
	w, ok := tx.state.workOrders[id]
	if !ok {
		return WorkOrder{}, false
	}
	return cloneWorkOrder(w), true
}

// CreateLot stores a new lot within the transaction.
func (tx *transaction) CreateLot(l Lot) (Lot, error) {
	if l.ID == "" {
		l.ID = tx.store.newID()
	}
	if _, exists := tx.state.lots[l.ID]; exists {
		return Lot{}, fmt.Errorf("lot %q already exists", l.ID)
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = tx.now
	}
	l.UpdatedAt = tx.now
	tx.state.lots[l.ID] = cloneLot(l)
	tx.recordChange(Change{Entity: domain.EntityLot, Action: domain.ActionCreate, After: cloneLot(l)})
	return cloneLot(l), nil
}

// UpdateLot mutates a lot using the provided mutator function.
func (tx *transaction) UpdateLot(id string, mutator func(*Lot) error) (Lot, error) {
	current, ok := tx.state.lots[id]
	if !ok {
		return Lot{}, fmt.Errorf("lot %q not found", id)
	}
	before := cloneLot(current)
	if err := mutator(&current); err != nil {
		return Lot{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.lots[id] = cloneLot(current)
	tx.recordChange(Change{Entity: domain.EntityLot, Action: domain.ActionUpdate, Before: before, After: cloneLot(current)})
	return cloneLot(current), nil
}

// DeleteLot removes a lot from the transaction state.
func (tx *transaction) DeleteLot(id string) error {
	current, ok := tx.state.lots[id]
	if !ok {
		return fmt.Errorf("lot %q not found", id)
	}
	for _, res := range tx.state.reservations {
		if res.LotID == id && res.Status == domain.ReservationStatusActive {
			return fmt.Errorf("lot %q still referenced by active reservation %q", id, res.ID)
		}
	}
	delete(tx.state.lots, id)
	tx.recordChange(Change{Entity: domain.EntityLot, Action: domain.ActionDelete, Before: cloneLot(current)})
	return nil
}

// CreateMaterialDemand stores a new material requirement line.
func (tx *transaction) CreateMaterialDemand(m MaterialDemand) (MaterialDemand, error) {
	if m.ID == "" {
		m.ID = tx.store.newID()
	}
	if _, exists := tx.state.demands[m.ID]; exists {
		return MaterialDemand{}, fmt.Errorf("material demand %q already exists", m.ID)
	}
	if m.WorkOrderID == "" {
		return MaterialDemand{}, fmt.Errorf("material demand requires work order id")
	}
	if _, ok := tx.state.workOrders[m.WorkOrderID]; !ok {
		return MaterialDemand{}, fmt.Errorf("work order %q not found", m.WorkOrderID)
	}
	m.CreatedAt = tx.now
	m.UpdatedAt = tx.now
	tx.state.demands[m.ID] = cloneDemand(m)
	tx.recordChange(Change{Entity: domain.EntityMaterialDemand, Action: domain.ActionCreate, After: cloneDemand(m)})
	return cloneDemand(m), nil
}

// UpdateMaterialDemand mutates an existing material requirement line.
func (tx *transaction) UpdateMaterialDemand(id string, mutator func(*MaterialDemand) error) (MaterialDemand, error) {
	current, ok := tx.state.demands[id]
	if !ok {
		return MaterialDemand{}, fmt.Errorf("material demand %q not found", id)
	}
	before := cloneDemand(current)
	if err := mutator(&current); err != nil {
		return MaterialDemand{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.demands[id] = cloneDemand(current)
	tx.recordChange(Change{Entity: domain.EntityMaterialDemand, Action: domain.ActionUpdate, Before: before, After: cloneDemand(current)})
	return cloneDemand(current), nil
}

// DeleteMaterialDemand removes a material requirement line.
func (tx *transaction) DeleteMaterialDemand(id string) error {
	current, ok := tx.state.demands[id]
	if !ok {
		return fmt.Errorf("material demand %q not found", id)
	}
	for _, res := range tx.state.reservations {
		if res.MaterialID == id && res.Status == domain.ReservationStatusActive {
			return fmt.Errorf("material demand %q still referenced by active reservation %q", id, res.ID)
		}
	}
	delete(tx.state.demands, id)
	tx.recordChange(Change{Entity: domain.EntityMaterialDemand, Action: domain.ActionDelete, Before: cloneDemand(current)})
	return nil
}

// CreateReservation stores a new reservation. At most one active reservation
// may exist per work order and lot pair; duplicates fail the transaction with
// domain.ErrDuplicateActiveReservation.
func (tx *transaction) CreateReservation(r Reservation) (Reservation, error) {
	if r.ID == "" {
		r.ID = tx.store.newID()
	}
	if _, exists := tx.state.reservations[r.ID]; exists {
		return Reservation{}, fmt.Errorf("reservation %q already exists", r.ID)
	}
	if _, ok := tx.state.lots[r.LotID]; !ok {
		return Reservation{}, fmt.Errorf("lot %q not found", r.LotID)
	}
	if _, ok := tx.state.workOrders[r.WorkOrderID]; !ok {
		return Reservation{}, fmt.Errorf("work order %q not found", r.WorkOrderID)
	}
	if r.Status == domain.ReservationStatusActive {
		for _, existing := range tx.state.reservations {
			if existing.WorkOrderID == r.WorkOrderID && existing.LotID == r.LotID && existing.Status == domain.ReservationStatusActive {
				return Reservation{}, fmt.Errorf("work order %q lot %q: %w", r.WorkOrderID, r.LotID, domain.ErrDuplicateActiveReservation)
			}
		}
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	tx.state.reservations[r.ID] = cloneReservation(r)
	tx.recordChange(Change{Entity: domain.EntityReservation, Action: domain.ActionCreate, After: cloneReservation(r)})
	return cloneReservation(r), nil
}

// UpdateReservation mutates an existing reservation.
func (tx *transaction) UpdateReservation(id string, mutator func(*Reservation) error) (Reservation, error) {
	current, ok := tx.state.reservations[id]
	if !ok {
		return Reservation{}, fmt.Errorf("reservation %q not found", id)
	}
	before := cloneReservation(current)
	if err := mutator(&current); err != nil {
		return Reservation{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.reservations[id] = cloneReservation(current)
	tx.recordChange(Change{Entity: domain.EntityReservation, Action: domain.ActionUpdate, Before: before, After: cloneReservation(current)})
	return cloneReservation(current), nil
}

// DeleteReservation removes a reservation from state.
func (tx *transaction) DeleteReservation(id string) error {
	current, ok := tx.state.reservations[id]
	if !ok {
		return fmt.Errorf("reservation %q not found", id)
	}
	for _, link := range tx.state.traceLinks {
		if link.ReservationID == id {
			return fmt.Errorf("reservation %q still referenced by trace link %q", id, link.ID)
		}
	}
	delete(tx.state.reservations, id)
	tx.recordChange(Change{Entity: domain.EntityReservation, Action: domain.ActionDelete, Before: cloneReservation(current)})
	return nil
}

// CreateWorkOrder stores a new work order record.
func (tx *transaction) CreateWorkOrder(w WorkOrder) (WorkOrder, error) {
	if w.ID == "" {
		w.ID = tx.store.newID()
	}
	if _, exists := tx.state.workOrders[w.ID]; exists {
		return WorkOrder{}, fmt.Errorf("work order %q already exists", w.ID)
	}
	w.CreatedAt = tx.now
	w.UpdatedAt = tx.now
	tx.state.workOrders[w.ID] = cloneWorkOrder(w)
	tx.recordChange(Change{Entity: domain.EntityWorkOrder, Action: domain.ActionCreate, After: cloneWorkOrder(w)})
	return cloneWorkOrder(w), nil
}

// UpdateWorkOrder mutates an existing work order.
func (tx *transaction) UpdateWorkOrder(id string, mutator func(*WorkOrder) error) (WorkOrder, error) {
	current, ok := tx.state.workOrders[id]
	if !ok {
		return WorkOrder{}, fmt.Errorf("work order %q not found", id)
	}
	before := cloneWorkOrder(current)
	if err := mutator(&current); err != nil {
		return WorkOrder{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.workOrders[id] = cloneWorkOrder(current)
	tx.recordChange(Change{Entity: domain.EntityWorkOrder, Action: domain.ActionUpdate, Before: before, After: cloneWorkOrder(current)})
	return cloneWorkOrder(current), nil
}

// DeleteWorkOrder removes a work order from state.
func (tx *transaction) DeleteWorkOrder(id string) error {
	current, ok := tx.state.workOrders[id]
	if !ok {
		return fmt.Errorf("work order %q not found", id)
	}
	for _, demand := range tx.state.demands {
		if demand.WorkOrderID == id {
			return fmt.Errorf("work order %q still referenced by material demand %q", id, demand.ID)
		}
	}
	for _, res := range tx.state.reservations {
		if res.WorkOrderID == id {
			return fmt.Errorf("work order %q still referenced by reservation %q", id, res.ID)
		}
	}
	delete(tx.state.workOrders, id)
	tx.recordChange(Change{Entity: domain.EntityWorkOrder, Action: domain.ActionDelete, Before: cloneWorkOrder(current)})
	return nil
}

// CreateTraceLink appends a traceability record.
func (tx *transaction) CreateTraceLink(t TraceLink) (TraceLink, error) {
	if t.ID == "" {
		t.ID = tx.store.newID()
	}
	if _, exists := tx.state.traceLinks[t.ID]; exists {
		return TraceLink{}, fmt.Errorf("trace link %q already exists", t.ID)
	}
	if _, ok := tx.state.reservations[t.ReservationID]; !ok {
		return TraceLink{}, fmt.Errorf("reservation %q not found", t.ReservationID)
	}
	if t.RecordedAt.IsZero() {
		t.RecordedAt = tx.now
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.traceLinks[t.ID] = cloneTraceLink(t)
	tx.recordChange(Change{Entity: domain.EntityTraceLink, Action: domain.ActionCreate, After: cloneTraceLink(t)})
	return cloneTraceLink(t), nil
}

// DeleteTraceLink removes a traceability record.
func (tx *transaction) DeleteTraceLink(id string) error {
	current, ok := tx.state.traceLinks[id]
	if !ok {
		return fmt.Errorf("trace link %q not found", id)
	}
	delete(tx.state.traceLinks, id)
	tx.recordChange(Change{Entity: domain.EntityTraceLink, Action: domain.ActionDelete, Before: cloneTraceLink(current)})
	return nil
}

// GetLot retrieves a lot from committed state.
func (s *Store) GetLot(id string) (Lot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.state.lots[id]
	if !ok {
		return Lot{}, false
	}
	return cloneLot(l), true
}

// ListLots lists committed lots ordered by receipt time.
func (s *Store) ListLots() []Lot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListLots()
}

// GetMaterialDemand retrieves a demand from committed state.
func (s *Store) GetMaterialDemand(id string) (MaterialDemand, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.state.demands[id]
	if !ok {
		return MaterialDemand{}, false
	}
	return cloneDemand(m), true
}

// ListMaterialDemands lists committed demands ordered by BOM sequence.
func (s *Store) ListMaterialDemands() []MaterialDemand {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListMaterialDemands()
}

// GetReservation retrieves a reservation from committed state.
func (s *Store) GetReservation(id string) (Reservation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.reservations[id]
	if !ok {
		return Reservation{}, false
	}
	return cloneReservation(r), true
}

// ListReservations lists committed reservations.
func (s *Store) ListReservations() []Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListReservations()
}

// GetWorkOrder retrieves a work order from committed state.
func (s *Store) GetWorkOrder(id string) (WorkOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.state.workOrders[id]
	if !ok {
		return WorkOrder{}, false
	}
	return cloneWorkOrder(w), true
}

// ListWorkOrders lists committed work orders.
func (s *Store) ListWorkOrders() []WorkOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListWorkOrders()
}

// ListTraceLinks lists committed trace links.
func (s *Store) ListTraceLinks() []TraceLink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListTraceLinks()
}
