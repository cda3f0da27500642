package core

import (
	"context"
	"time"

	"reservecore/pkg/domain"
)

// Logger is the minimal structured logging contract the service writes to.
// Arguments follow the slog convention of alternating keys and values, so a
// *slog.Logger satisfies it directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// AuditStatus marks the outcome recorded in an audit entry.
type AuditStatus string

// Audit entry outcomes.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry is the structured record emitted after every service operation.
type AuditEntry struct {
	Operation string
	Entity    domain.EntityType
	Action    domain.Action
	EntityID  string
	Actor     Actor
	Status    AuditStatus
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives audit entries. Implementations must be safe for
// concurrent use.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MetricsRecorder aggregates operation timings and outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan terminates a span started by a Tracer.
type TraceSpan interface {
	End(err error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// auditOperations maps operation names to the entity and action recorded in
// audit entries. Operations missing here are not audited.
var auditOperations = map[string]struct {
	entity domain.EntityType
	action domain.Action
}{
	"reserve_lot":         {entity: domain.EntityReservation, action: domain.ActionCreate},
	"release_reservation": {entity: domain.EntityReservation, action: domain.ActionUpdate},
	"auto_reserve":        {entity: domain.EntityWorkOrder, action: domain.ActionUpdate},
	"release_all":         {entity: domain.EntityWorkOrder, action: domain.ActionUpdate},
}

func (s *Service) recordAudit(ctx context.Context, operation, entityID string, actor Actor, status AuditStatus, duration time.Duration) {
	if s.audit == nil {
		return
	}
	meta, ok := auditOperations[operation]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: operation,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Actor:     actor,
		Status:    status,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	})
}

func (s *Service) recordAuditSuccess(ctx context.Context, operation, entityID string, actor Actor, duration time.Duration) {
	s.recordAudit(ctx, operation, entityID, actor, AuditStatusSuccess, duration)
}

func (s *Service) recordAuditError(ctx context.Context, operation, entityID string, actor Actor, duration time.Duration) {
	s.recordAudit(ctx, operation, entityID, actor, AuditStatusError, duration)
}

// instrument wraps an operation with tracing, metrics, audit and logging.
// The returned finish func takes the entity id (may be empty on failure) and
// the operation error.
func (s *Service) instrument(ctx context.Context, operation string, actor Actor) (context.Context, func(entityID string, err error)) {
	started := s.clock.Now()
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operation)
	}
	return ctx, func(entityID string, err error) {
		duration := s.clock.Now().Sub(started)
		if span != nil {
			span.End(err)
		}
		if s.metrics != nil {
			s.metrics.Observe(ctx, operation, err == nil, duration)
		}
		if err != nil {
			s.recordAuditError(ctx, operation, entityID, actor, duration)
			s.logger.Warn("operation failed",
				"operation", operation,
				"entity_id", entityID,
				"org_id", actor.OrgID,
				"code", string(CodeOf(err)),
				"error", err.Error(),
			)
			return
		}
		s.recordAuditSuccess(ctx, operation, entityID, actor, duration)
		s.logger.Info("operation completed",
			"operation", operation,
			"entity_id", entityID,
			"org_id", actor.OrgID,
			"duration_ms", float64(duration)/float64(time.Millisecond),
		)
	}
}
