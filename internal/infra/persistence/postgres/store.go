// Package postgres provides a Postgres-backed persistent store that mirrors
// the in-memory semantics. Besides the JSONB snapshot table it maintains a
// relational mirror of reservations carrying a partial unique index on
// (wo_id, lot_id) for active rows, so writers outside this engine cannot
// double-book a lot.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"reservecore/internal/infra/persistence/memory"
	"reservecore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with OpenPersistentStore defaults while allowing overrides via env.
	defaultDSN = "postgres://localhost/reservecore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists state to Postgres while reusing the in-memory implementation for transactions.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to
// defaultDSN), ensures the snapshot and mirror tables exist, and hydrates the
// in-memory store from any existing snapshot.
func NewStore(dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureSchema(ctx, db); err != nil {
		return nil, err
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db}, nil
}

// RunInTransaction applies the provided function within a transaction, then snapshots to Postgres if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.persist(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		wo_id TEXT NOT NULL,
		lot_id TEXT NOT NULL,
		material_id TEXT NOT NULL,
		reserved_qty NUMERIC NOT NULL,
		status TEXT NOT NULL,
		org_id TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS reservations_active_wo_lot
		ON reservations (wo_id, lot_id) WHERE status = 'active'`,
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaDDL {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

var postgresBuckets = []string{"lots", "demands", "reservations", "work_orders", "trace_links"}

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	rows, err := db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot memory.Snapshot
	targets := map[string]any{
		"lots":         &snapshot.Lots,
		"demands":      &snapshot.Demands,
		"reservations": &snapshot.Reservations,
		"work_orders":  &snapshot.WorkOrders,
		"trace_links":  &snapshot.TraceLinks,
	}

	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return memory.Snapshot{}, fmt.Errorf("scan state: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		if target, ok := targets[bucket]; ok {
			if err := json.Unmarshal(payload, target); err != nil {
				return memory.Snapshot{}, fmt.Errorf("decode %s: %w", bucket, err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, fmt.Errorf("iterate state: %w", err)
	}
	return snapshot, nil
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range postgresBuckets {
		var data []byte
		switch bucket {
		case "lots":
			data, err = json.Marshal(snapshot.Lots)
		case "demands":
			data, err = json.Marshal(snapshot.Demands)
		case "reservations":
			data, err = json.Marshal(snapshot.Reservations)
		case "work_orders":
			data, err = json.Marshal(snapshot.WorkOrders)
		case "trace_links":
			data, err = json.Marshal(snapshot.TraceLinks)
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := syncReservationMirror(ctx, tx, snapshot); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// syncReservationMirror rewrites the relational reservations table from the
// snapshot inside the same SQL transaction as the bucket upserts. The partial
// unique index fires here if an out-of-band writer slipped in a conflicting
// active row.
func syncReservationMirror(ctx context.Context, tx *sql.Tx, snapshot memory.Snapshot) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM reservations`); err != nil {
		return fmt.Errorf("clear reservation mirror: %w", err)
	}
	for _, res := range snapshot.Reservations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reservations(id, wo_id, lot_id, material_id, reserved_qty, status, org_id)
			 VALUES($1,$2,$3,$4,$5,$6,$7)`,
			res.ID, res.WorkOrderID, res.LotID, res.MaterialID, res.ReservedQty.String(), string(res.Status), res.OrgID,
		); err != nil {
			return fmt.Errorf("mirror reservation %s: %w", res.ID, err)
		}
	}
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
