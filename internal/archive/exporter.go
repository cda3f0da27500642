// Package archive exports immutable traceability snapshots of a work order's
// reservations to blob storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"reservecore/internal/blob"
	"reservecore/pkg/domain"
)

// Manifest is the JSON document written per export: the work order, its
// reservations and the lot-to-order trace links at the time of the snapshot.
type Manifest struct {
	WorkOrderID  string               `json:"wo_id"`
	GeneratedAt  time.Time            `json:"generated_at"`
	WorkOrder    domain.WorkOrder     `json:"work_order"`
	Reservations []domain.Reservation `json:"reservations"`
	TraceLinks   []domain.TraceLink   `json:"trace_links"`
	Coverage     domain.Coverage      `json:"coverage"`
}

// Exporter writes trace snapshots to an artifact store. Keys follow
// trace/<wo_id>/<timestamp>.json and writes are create-only, so a snapshot
// can never be overwritten after the fact.
type Exporter struct {
	store domain.PersistentStore
	blobs blob.Store
	now   func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithNowFunc overrides the timestamp source, for deterministic keys in tests.
func WithNowFunc(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExporter wires an exporter over the persistent store and artifact store.
func NewExporter(store domain.PersistentStore, blobs blob.Store, opts ...Option) *Exporter {
	e := &Exporter{
		store: store,
		blobs: blobs,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExportWorkOrder snapshots the work order's trace records and stores them as
// a JSON artifact. Returns the stored artifact's metadata.
func (e *Exporter) ExportWorkOrder(ctx context.Context, workOrderID string) (blob.Info, error) {
	if workOrderID == "" {
		return blob.Info{}, fmt.Errorf("work order id is required")
	}

	manifest := Manifest{WorkOrderID: workOrderID, GeneratedAt: e.now()}
	err := e.store.View(ctx, func(view domain.TransactionView) error {
		wo, ok := view.FindWorkOrder(workOrderID)
		if !ok {
			return fmt.Errorf("work order %q not found", workOrderID)
		}
		manifest.WorkOrder = wo
		for _, res := range view.ListReservations() {
			if res.WorkOrderID == workOrderID {
				manifest.Reservations = append(manifest.Reservations, res)
			}
		}
		for _, link := range view.ListTraceLinks() {
			if link.WorkOrderID == workOrderID {
				manifest.TraceLinks = append(manifest.TraceLinks, link)
			}
		}
		var coverages []domain.Coverage
		for _, demand := range view.ListMaterialDemands() {
			if demand.WorkOrderID == workOrderID {
				coverages = append(coverages, domain.CalculateCoverage(demand.RequiredQty, demand.ReservedQty))
			}
		}
		manifest.Coverage = domain.AggregateCoverage(coverages)
		return nil
	})
	if err != nil {
		return blob.Info{}, err
	}

	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return blob.Info{}, err
	}
	key := fmt.Sprintf("trace/%s/%s.json", workOrderID, manifest.GeneratedAt.Format("20060102T150405.000Z"))
	return e.blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"wo_id":        workOrderID,
			"generated_at": manifest.GeneratedAt.Format(time.RFC3339Nano),
		},
	})
}

// ListSnapshots returns the stored snapshots for a work order, oldest first.
func (e *Exporter) ListSnapshots(ctx context.Context, workOrderID string) ([]blob.Info, error) {
	if workOrderID == "" {
		return nil, fmt.Errorf("work order id is required")
	}
	return e.blobs.List(ctx, "trace/"+workOrderID+"/")
}

// ReadSnapshot loads a stored manifest back from the artifact store.
func (e *Exporter) ReadSnapshot(ctx context.Context, key string) (Manifest, error) {
	_, rc, err := e.blobs.Get(ctx, key)
	if err != nil {
		return Manifest{}, err
	}
	defer func() { _ = rc.Close() }()
	var manifest Manifest
	if err := json.NewDecoder(rc).Decode(&manifest); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}
