package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// OperationStats aggregates the outcomes of one reservation operation:
// reserve_lot, release_reservation, auto_reserve or release_all.
type OperationStats struct {
	Calls     int64   `json:"calls"`
	Failures  int64   `json:"failures"`
	TotalMS   float64 `json:"total_ms"`
	SlowestMS float64 `json:"slowest_ms"`
}

// ExpvarMetricsSnapshot is the expvar-published view of the recorder.
type ExpvarMetricsSnapshot struct {
	Operations map[string]OperationStats `json:"operations"`
	RecordedAt time.Time                 `json:"recorded_at"`
}

// ExpvarMetricsRecorder keeps per-operation call, failure and latency tallies
// and publishes them through expvar. It covers deployments that scrape
// /debug/vars instead of running a metrics stack.
type ExpvarMetricsRecorder struct {
	name  string
	mu    sync.Mutex
	stats map[string]*OperationStats
}

// NewExpvarMetricsRecorder publishes a recorder under the given expvar name.
// An empty name gets a generated one, so tests can create recorders freely
// without tripping expvar's duplicate-name panic.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("reservecore_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarMetricsRecorder{
		name:  name,
		stats: make(map[string]*OperationStats),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar name the recorder publishes under.
func (r *ExpvarMetricsRecorder) Name() string {
	return r.name
}

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()
	stat, ok := r.stats[operation]
	if !ok {
		stat = &OperationStats{}
		r.stats[operation] = stat
	}
	stat.Calls++
	if !success {
		stat.Failures++
	}
	stat.TotalMS += ms
	if ms > stat.SlowestMS {
		stat.SlowestMS = ms
	}
}

// Snapshot copies the aggregated stats.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	operations := make(map[string]OperationStats, len(r.stats))
	for op, stat := range r.stats {
		operations[op] = *stat
	}
	return ExpvarMetricsSnapshot{
		Operations: operations,
		RecordedAt: time.Now().UTC(),
	}
}

// JSONTraceEntry is one completed operation span as written to the trace log.
type JSONTraceEntry struct {
	Op        string    `json:"op"`
	Outcome   string    `json:"outcome"`
	ElapsedMS float64   `json:"elapsed_ms"`
	Fault     string    `json:"fault,omitempty"`
	At        time.Time `json:"at"`
}

// JSONTraceTracer writes one JSON line per finished span and keeps the
// entries in memory for later inspection.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
}

// NewJSONTracer builds a tracer over the writer. A nil writer keeps entries
// in memory only.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns a copy of the finished spans.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]JSONTraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{tracer: t, op: operation, started: time.Now().UTC()}
}

type jsonTraceSpan struct {
	tracer  *JSONTraceTracer
	op      string
	started time.Time
}

func (s *jsonTraceSpan) End(err error) {
	ended := time.Now().UTC()
	entry := JSONTraceEntry{
		Op:        s.op,
		Outcome:   "success",
		ElapsedMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		At:        ended,
	}
	if err != nil {
		entry.Outcome = "error"
		entry.Fault = err.Error()
	}

	s.tracer.mu.Lock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(entry)
	}
	s.tracer.mu.Unlock()
}
