// Package db records pipeline runs, their stage transitions and resolved orthologs in a
// SQL database. SQLite (modernc) and Postgres (pgx) are supported.
package db

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

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/yumyai/strainmodel/pkg/ortholog"
)

var ErrNotFound = errors.New("run not found")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		command TEXT NOT NULL,
		isolate TEXT NOT NULL,
		reference TEXT NOT NULL,
		status TEXT NOT NULL,
		exit_code INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS run_events (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		stage TEXT NOT NULL,
		detail TEXT NOT NULL,
		at TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS orthologs (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		reference_gene TEXT NOT NULL,
		isolate_gene TEXT NOT NULL,
		kind TEXT NOT NULL,
		PRIMARY KEY (run_id, reference_gene)
	)`,
}

type Run struct {
	ID        string     `json:"run_id"`
	Command   string     `json:"command"`
	Isolate   string     `json:"isolate"`
	Reference string     `json:"reference"`
	Status    string     `json:"status"`
	ExitCode  int        `json:"exit_code"`
	Error     string     `json:"error,omitempty"`
	Started   time.Time  `json:"started_at"`
	Finished  *time.Time `json:"finished_at,omitempty"`
}

type Event struct {
	Seq    int       `json:"seq"`
	Stage  string    `json:"stage"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

type Ortholog struct {
	ReferenceGene string `json:"reference_gene"`
	IsolateGene   string `json:"isolate_gene"`
	Kind          string `json:"kind"`
}

// Ledger is the run history store.
type Ledger struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// ParseDSN picks the driver for dsn. postgres:// and postgresql:// URLs use pgx;
// sqlite://path and bare paths use SQLite.
func ParseDSN(dsn string) (driver, source string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DriverPostgres, dsn
	case strings.HasPrefix(dsn, "sqlite://"):
		return DriverSQLite, strings.TrimPrefix(dsn, "sqlite://")
	}
	return DriverSQLite, dsn
}

// Open connects to dsn and creates the ledger tables if needed.
func Open(ctx context.Context, dsn string) (*Ledger, error) {
	driver, source := ParseDSN(dsn)
	if driver == DriverSQLite && source != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(source), 0o750); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	conn, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if driver == DriverSQLite {
		// Keeps :memory: databases alive and serialises writers.
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping ledger: %w", err)
	}
	l, err := New(ctx, conn, driver)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return l, nil
}

// New wraps an open connection and applies the schema.
func New(ctx context.Context, conn *sql.DB, driver string) (*Ledger, error) {
	l := &Ledger{db: conn, driver: driver, now: func() time.Time { return time.Now().UTC() }}
	for _, stmt := range schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("create ledger schema: %w", err)
		}
	}
	return l, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

func (l *Ledger) Ping(ctx context.Context) error { return l.db.PingContext(ctx) }

// rebind rewrites ? placeholders to $n for Postgres.
func (l *Ledger) rebind(q string) string {
	if l.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (l *Ledger) exec(ctx context.Context, q string, args ...any) error {
	_, err := l.db.ExecContext(ctx, l.rebind(q), args...)
	return err
}

func (l *Ledger) StartRun(ctx context.Context, r Run) error {
	if r.Started.IsZero() {
		r.Started = l.now()
	}
	err := l.exec(ctx, `INSERT INTO runs (id, command, isolate, reference, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Command, r.Isolate, r.Reference, r.Status, r.Started.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("start run %s: %w", r.ID, err)
	}
	return nil
}

// RecordEvent appends a stage event to the run and moves its status to stage.
func (l *Ledger) RecordEvent(ctx context.Context, runID, stage, detail string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	at := l.now().Format(timeLayout)
	if _, err := tx.ExecContext(ctx, l.rebind(`INSERT INTO run_events (run_id, seq, stage, detail, at)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ? FROM run_events WHERE run_id = ?`),
		runID, stage, detail, at, runID); err != nil {
		return fmt.Errorf("record event for %s: %w", runID, err)
	}
	res, err := tx.ExecContext(ctx, l.rebind(`UPDATE runs SET status = ? WHERE id = ?`), stage, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record event: %s: %w", runID, ErrNotFound)
	}
	return tx.Commit()
}

func (l *Ledger) FinishRun(ctx context.Context, runID, status string, exitCode int, errMsg string) error {
	res, err := l.db.ExecContext(ctx, l.rebind(`UPDATE runs SET status = ?, exit_code = ?, error = ?, finished_at = ? WHERE id = ?`),
		status, exitCode, errMsg, l.now().Format(timeLayout), runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: %s: %w", runID, ErrNotFound)
	}
	return nil
}

// SaveOrthologs stores the ortholog map of a run in resolution order.
func (l *Ledger) SaveOrthologs(ctx context.Context, runID string, entries []ortholog.Entry) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, l.rebind(`INSERT INTO orthologs (run_id, position, reference_gene, isolate_gene, kind) VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, runID, i, e.RefGene, e.IsoGene, string(e.Kind)); err != nil {
			return fmt.Errorf("save ortholog %s: %w", e.RefGene, err)
		}
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	var started, finished string
	if err := s.Scan(&r.ID, &r.Command, &r.Isolate, &r.Reference, &r.Status, &r.ExitCode, &r.Error, &started, &finished); err != nil {
		return Run{}, err
	}
	t, err := time.Parse(timeLayout, started)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: bad started_at: %w", r.ID, err)
	}
	r.Started = t
	if finished != "" {
		t, err := time.Parse(timeLayout, finished)
		if err != nil {
			return Run{}, fmt.Errorf("run %s: bad finished_at: %w", r.ID, err)
		}
		r.Finished = &t
	}
	return r, nil
}

const runColumns = `id, command, isolate, reference, status, exit_code, error, started_at, finished_at`

// ListRuns returns the most recent runs first. A limit <= 0 returns every run.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, l.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (l *Ledger) GetRun(ctx context.Context, runID string) (Run, error) {
	row := l.db.QueryRowContext(ctx, l.rebind(`SELECT `+runColumns+` FROM runs WHERE id = ?`), runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%s: %w", runID, ErrNotFound)
	}
	return r, err
}

func (l *Ledger) GetEvents(ctx context.Context, runID string) ([]Event, error) {
	rows, err := l.db.QueryContext(ctx, l.rebind(`SELECT seq, stage, detail, at FROM run_events WHERE run_id = ? ORDER BY seq`), runID)
	if err != nil {
		return nil, fmt.Errorf("events of %s: %w", runID, err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var at string
		if err := rows.Scan(&e.Seq, &e.Stage, &e.Detail, &at); err != nil {
			return nil, err
		}
		if e.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("event %d of %s: %w", e.Seq, runID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (l *Ledger) GetOrthologs(ctx context.Context, runID string) ([]Ortholog, error) {
	rows, err := l.db.QueryContext(ctx, l.rebind(`SELECT reference_gene, isolate_gene, kind FROM orthologs WHERE run_id = ? ORDER BY position`), runID)
	if err != nil {
		return nil, fmt.Errorf("orthologs of %s: %w", runID, err)
	}
	defer rows.Close()

	out := []Ortholog{}
	for rows.Next() {
		var o Ortholog
		if err := rows.Scan(&o.ReferenceGene, &o.IsolateGene, &o.Kind); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
