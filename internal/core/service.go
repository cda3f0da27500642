package core

import (
	"time"

	"reservecore/internal/infra/persistence/memory"
	"reservecore/pkg/domain"
)

// Service exposes the reservation engine's transactional operations.
type Service struct {
	store   PersistentStore
	policy  RolePolicy
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithLogger installs a structured logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditRecorder installs an audit sink.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) { s.audit = recorder }
}

// WithMetricsRecorder installs a metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) { s.metrics = recorder }
}

// WithTracer installs a tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRolePolicy overrides the authorization policy.
func WithRolePolicy(policy RolePolicy) Option {
	return func(s *Service) {
		if policy != nil {
			s.policy = policy
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		policy: DefaultRolePolicy(),
		logger: noopLogger{},
		clock:  ClockFunc(func() time.Time { return time.Now().UTC() }),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// authorize checks the actor's role against the injected policy.
func (s *Service) authorize(actor Actor) error {
	if actor.OrgID == "" {
		return newValidationError("actor organization is required", nil)
	}
	if !s.policy.CanManageReservations(actor.Role) {
		return newForbiddenError(actor.Role)
	}
	return nil
}

// visibleWorkOrder applies org isolation: a work order belonging to another
// organization is reported exactly like a missing one.
func visibleWorkOrder(view TransactionView, id, orgID string) (WorkOrder, error) {
	wo, ok := view.FindWorkOrder(id)
	if !ok || wo.OrgID != orgID {
		return WorkOrder{}, newNotFoundError(domain.EntityWorkOrder, id)
	}
	return wo, nil
}

func visibleLot(view TransactionView, id, orgID string) (Lot, error) {
	lot, ok := view.FindLot(id)
	if !ok || lot.OrgID != orgID {
		return Lot{}, newNotFoundError(domain.EntityLot, id)
	}
	return lot, nil
}

func visibleDemand(view TransactionView, id, orgID string) (MaterialDemand, error) {
	demand, ok := view.FindMaterialDemand(id)
	if !ok || demand.OrgID != orgID {
		return MaterialDemand{}, newNotFoundError(domain.EntityMaterialDemand, id)
	}
	return demand, nil
}

func visibleReservation(view TransactionView, id, orgID string) (Reservation, error) {
	res, ok := view.FindReservation(id)
	if !ok || res.OrgID != orgID {
		return Reservation{}, newNotFoundError(domain.EntityReservation, id)
	}
	return res, nil
}

// guardWorkOrderStatus rejects mutations on frozen work orders.
func guardWorkOrderStatus(wo WorkOrder) error {
	if !domain.CanModifyReservations(wo.Status) {
		return newStatusConflictError(wo.Status)
	}
	return nil
}

// nextSequenceNumber returns one past the highest sequence number among the
// material demand's reservations, starting at 1.
func nextSequenceNumber(view TransactionView, materialID string) int {
	max := 0
	for _, res := range view.ListReservations() {
		if res.MaterialID == materialID && res.SequenceNumber > max {
			max = res.SequenceNumber
		}
	}
	return max + 1
}
