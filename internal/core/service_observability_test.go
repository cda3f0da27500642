package core

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

type spanRecord struct {
	op  string
	err error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	for _, record := range c.ended {
		if record.op == op {
			if success && record.err == nil {
				return true
			}
			if !success && record.err != nil {
				return true
			}
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

func TestServiceOperationsAreObserved(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}

	svc := NewInMemoryService(NewDefaultRulesEngine(),
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
	)
	fx := seedFixture(t, svc)

	out, err := svc.ReserveLot(ctx, testActor, ReserveRequest{
		WorkOrderID: fx.wo.ID, MaterialID: fx.demand.ID, LotID: fx.lot.ID, Quantity: dec("10"),
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !audit.has("reserve_lot", AuditStatusSuccess, func(entry AuditEntry) bool { return entry.EntityID == out.Reservation.ID }) {
		t.Fatalf("expected audit entry for reserve_lot success")
	}
	if !metrics.has("reserve_lot", true) {
		t.Fatalf("expected metrics observation for reserve_lot success")
	}
	if !tracer.has("reserve_lot", true) {
		t.Fatalf("expected trace span for reserve_lot success")
	}

	if _, err := svc.ReleaseReservation(ctx, testActor, "missing"); err == nil {
		t.Fatalf("expected release of unknown reservation to fail")
	}
	if !audit.has("release_reservation", AuditStatusError, nil) {
		t.Fatalf("expected audit entry for release_reservation error")
	}
	if !metrics.has("release_reservation", false) {
		t.Fatalf("expected metrics observation for release_reservation error")
	}
	if !tracer.has("release_reservation", false) {
		t.Fatalf("expected trace span for release_reservation error")
	}

	if _, err := svc.AutoReserve(ctx, testActor, fx.wo.ID, ""); err != nil {
		t.Fatalf("auto reserve: %v", err)
	}
	if !audit.has("auto_reserve", AuditStatusSuccess, func(entry AuditEntry) bool { return entry.EntityID == fx.wo.ID }) {
		t.Fatalf("expected audit entry for auto_reserve success")
	}
	if _, err := svc.ReleaseAll(ctx, testActor, fx.wo.ID); err != nil {
		t.Fatalf("release all: %v", err)
	}
	if !audit.has("release_all", AuditStatusSuccess, nil) {
		t.Fatalf("expected audit entry for release_all success")
	}
}

func TestExpvarMetricsRecorderAggregates(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	if !strings.HasPrefix(rec.Name(), "reservecore_metrics_") {
		t.Fatalf("unexpected generated name %q", rec.Name())
	}

	rec.Observe(context.Background(), "reserve_lot", true, 20*time.Millisecond)
	rec.Observe(context.Background(), "reserve_lot", false, 5*time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Second)

	snap := rec.Snapshot()
	stats := snap.Operations["reserve_lot"]
	if stats.Calls != 2 || stats.Failures != 1 {
		t.Fatalf("unexpected tallies: %+v", stats)
	}
	if stats.TotalMS < 24 || stats.TotalMS > 26 {
		t.Fatalf("unexpected duration total: %v", stats.TotalMS)
	}
	if stats.SlowestMS < 19 || stats.SlowestMS > 21 {
		t.Fatalf("unexpected slowest: %v", stats.SlowestMS)
	}
	if _, ok := snap.Operations[""]; ok {
		t.Fatalf("empty operation must be ignored")
	}
}

func TestJSONTracerEmitsEntries(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)

	_, span := tracer.Start(context.Background(), "reserve_lot")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "release_reservation")
	span.End(newNotFoundError("reservation", "missing"))

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(entries))
	}
	if entries[0].Op != "reserve_lot" || entries[0].Outcome != "success" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Outcome != "error" || entries[1].Fault == "" {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
	if !strings.Contains(buf.String(), "release_reservation") {
		t.Fatalf("expected encoded output, got %q", buf.String())
	}
}
