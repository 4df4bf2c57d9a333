// Package catalog records reconstruction runs and the frames they exported
// in a SQL database. SQLite (modernc) and PostgreSQL (pgx) are supported.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"holorecon/pkg/pipeline"
	"holorecon/pkg/result"
	"holorecon/pkg/units"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// ErrNotFound is returned for an unknown run.
var ErrNotFound = errors.New("catalog: run not found")

var sqlOpen = sql.Open

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		slices INTEGER NOT NULL,
		distances INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		outcome TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS outputs (
		run_id TEXT NOT NULL REFERENCES runs(id),
		kind TEXT NOT NULL,
		t INTEGER NOT NULL,
		z TEXT NOT NULL,
		z_meters DOUBLE PRECISION NOT NULL,
		object_key TEXT NOT NULL,
		size INTEGER NOT NULL,
		PRIMARY KEY (run_id, object_key)
	)`,
}

// Run is one row of the runs table.
type Run struct {
	ID        string
	Title     string
	Slices    int
	Distances int
	Started   time.Time

	// Finished and Outcome stay zero until FinishRun.
	Finished time.Time
	Outcome  pipeline.Outcome
}

// Catalog is a handle on the catalog database. It implements
// result.Recorder.
type Catalog struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

var _ result.Recorder = (*Catalog)(nil)

// Open connects to the database and creates the tables when missing.
func Open(ctx context.Context, driver, dsn string) (*Catalog, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = "holorecon.db"
		}
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
				return nil, fmt.Errorf("create dirs: %w", err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("catalog: unknown driver %q", driver)
	}

	db, err := sqlOpen(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One writer keeps SQLite from reporting busy databases.
		db.SetMaxOpenConns(1)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
	}
	return &Catalog{db: db, driver: driver, now: time.Now}, nil
}

// Close closes the database.
func (c *Catalog) Close() error { return c.db.Close() }

// DB exposes the underlying handle.
func (c *Catalog) DB() *sql.DB { return c.db }

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (c *Catalog) rebind(query string) string {
	if c.driver != DriverPostgres {
		return query
	}
	return rebindDollar(query)
}

func rebindDollar(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (c *Catalog) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, c.rebind(query), args...)
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// StartRun inserts a run row stamped with the current time.
func (c *Catalog) StartRun(ctx context.Context, r Run) error {
	if r.Started.IsZero() {
		r.Started = c.now()
	}
	_, err := c.exec(ctx,
		`INSERT INTO runs (id, title, slices, distances, started_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Title, r.Slices, r.Distances, formatTime(r.Started))
	if err != nil {
		return fmt.Errorf("catalog: start run %s: %w", r.ID, err)
	}
	return nil
}

// FinishRun stores the outcome of run id.
func (c *Catalog) FinishRun(ctx context.Context, id string, outcome pipeline.Outcome) error {
	res, err := c.exec(ctx,
		`UPDATE runs SET finished_at = ?, outcome = ? WHERE id = ?`,
		formatTime(c.now()), string(outcome), id)
	if err != nil {
		return fmt.Errorf("catalog: finish run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// RecordOutput inserts one exported frame.
func (c *Catalog) RecordOutput(ctx context.Context, o result.Output) error {
	_, err := c.exec(ctx,
		`INSERT INTO outputs (run_id, kind, t, z, z_meters, object_key, size) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, string(o.Kind), o.T, o.Z.String(), o.Z.Meters(), o.Key, o.Size)
	if err != nil {
		return fmt.Errorf("catalog: record %s: %w", o.Key, err)
	}
	return nil
}

// GetRun loads run id.
func (c *Catalog) GetRun(ctx context.Context, id string) (Run, error) {
	var (
		r                 Run
		started           string
		finished, outcome sql.NullString
	)
	err := c.db.QueryRowContext(ctx,
		c.rebind(`SELECT id, title, slices, distances, started_at, finished_at, outcome FROM runs WHERE id = ?`), id).
		Scan(&r.ID, &r.Title, &r.Slices, &r.Distances, &started, &finished, &outcome)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("catalog: get run %s: %w", id, err)
	}
	if r.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Run{}, fmt.Errorf("catalog: run %s start: %w", id, err)
	}
	if finished.Valid {
		if r.Finished, err = time.Parse(time.RFC3339Nano, finished.String); err != nil {
			return Run{}, fmt.Errorf("catalog: run %s finish: %w", id, err)
		}
	}
	r.Outcome = pipeline.Outcome(outcome.String)
	return r, nil
}

// Outputs lists the frames recorded for run id, ordered by kind, distance
// and slice.
func (c *Catalog) Outputs(ctx context.Context, runID string) ([]result.Output, error) {
	rows, err := c.db.QueryContext(ctx,
		c.rebind(`SELECT kind, t, z, object_key, size FROM outputs WHERE run_id = ? ORDER BY kind, z_meters, t`), runID)
	if err != nil {
		return nil, fmt.Errorf("catalog: select outputs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []result.Output
	for rows.Next() {
		o := result.Output{RunID: runID}
		var kind, z string
		if err := rows.Scan(&kind, &o.T, &z, &o.Key, &o.Size); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		o.Kind = result.Kind(kind)
		if o.Z, err = units.Parse(z); err != nil {
			return nil, fmt.Errorf("catalog: output %s: %w", o.Key, err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
