package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"
	_ "modernc.org/sqlite"

	"github.com/doomdumper/doomdumper/pkg/errors"
)

// Repository provides database operations for run history
type Repository struct {
	db    *sql.DB
	clock clock.Clock
}

// NewRepository opens (creating if needed) the history database at dbPath.
// Timestamps come from clk.
func NewRepository(dbPath string, clk clock.Clock) (*Repository, error) {
	slog.Debug("database_init", "db_path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		slog.Error("database_open_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to open database")
	}
	// One writer; sqlite serializes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to enable foreign keys")
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		slog.Error("database_schema_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to create schema")
	}

	if clk == nil {
		clk = clock.WallClock
	}
	slog.Debug("database_ready", "db_path", dbPath)
	return &Repository{db: db, clock: clk}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) now() string {
	return r.clock.Now().UTC().Format(time.RFC3339Nano)
}

// StartRun inserts a running run with the given id.
func (r *Repository) StartRun(ctx context.Context, id string) (*Run, error) {
	now := r.now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES (?, ?, ?)`,
		id, StatusRunning, now)
	if err != nil {
		slog.Error("database_insert_failed", "run_id", id, "error", err)
		return nil, errors.Wrap(err, "failed to insert run")
	}

	slog.Info("database_run_started", "run_id", id)
	started, _ := time.Parse(time.RFC3339Nano, now)
	return &Run{ID: id, Status: StatusRunning, StartedAt: started}, nil
}

// RecordTransition appends t to its run. Seq and At are assigned here.
func (r *Repository) RecordTransition(ctx context.Context, t *Transition) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var seq int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM transitions WHERE run_id = ?`, t.RunID).Scan(&seq)
	if err != nil {
		return errors.Wrap(err, "failed to allocate transition sequence")
	}

	now := r.now()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO transitions (run_id, seq, from_state, to_state, phase, path, pid, detail, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, seq, t.From, t.To, t.Phase, t.Path, t.PID, t.Detail, now)
	if err != nil {
		slog.Error("database_transition_insert_failed", "run_id", t.RunID, "error", err)
		return errors.Wrap(err, "failed to insert transition")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to get last insert id")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	t.ID, t.Seq = id, seq
	t.At, _ = time.Parse(time.RFC3339Nano, now)
	slog.Debug("database_transition_recorded", "run_id", t.RunID, "seq", seq, "from", t.From, "to", t.To)
	return nil
}

// FinishRun records how a run ended.
func (r *Repository) FinishRun(ctx context.Context, id, status, finalState, path, detail string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, final_state = ?, path = ?, detail = ?, finished_at = ?
		WHERE id = ?`,
		status, finalState, path, detail, r.now(), id)
	if err != nil {
		slog.Error("database_update_failed", "run_id", id, "error", err)
		return errors.Wrap(err, "failed to update run")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		slog.Error("database_run_not_found_for_update", "run_id", id)
		return fmt.Errorf("run not found: id=%s", id)
	}

	slog.Info("database_run_finished", "run_id", id, "status", status, "final_state", finalState)
	return nil
}

const runColumns = `id, status, final_state, path, detail, started_at, finished_at`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var run Run
	var finalState, path, detail, finishedAt sql.NullString
	var startedAt string
	if err := row.Scan(&run.ID, &run.Status, &finalState, &path, &detail, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	run.FinalState = finalState.String
	run.Path = path.String
	run.Detail = detail.String
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	if finishedAt.Valid {
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt.String)
	}
	return &run, nil
}

// GetRun retrieves a run by id. A missing run is (nil, nil).
func (r *Repository) GetRun(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("database_query_failed", "run_id", id, "error", err)
		return nil, errors.Wrap(err, "failed to query run")
	}
	return run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("database_list_query_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return runs, nil
}

// Transitions returns the steps of a run in order.
func (r *Repository) Transitions(ctx context.Context, runID string) ([]*Transition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, seq, from_state, to_state, phase, path, pid, detail, at
		FROM transitions WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list transitions")
	}
	defer rows.Close()

	var out []*Transition
	for rows.Next() {
		var t Transition
		var phase, path, detail sql.NullString
		var pid sql.NullInt64
		var at string
		if err := rows.Scan(&t.ID, &t.RunID, &t.Seq, &t.From, &t.To, &phase, &path, &pid, &detail, &at); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}
		t.Phase, t.Path, t.Detail = phase.String, path.String, detail.String
		t.PID = int32(pid.Int64)
		t.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return out, nil
}
