package db

import "time"

// Schema defines the SQLite schema for run history. A run is one interactive
// session; its transitions are the workflow steps it took, in order.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL CHECK(status IN ('running', 'finished', 'deferred', 'halted')),
    final_state TEXT,
    path TEXT,
    detail TEXT,
    started_at TEXT NOT NULL,
    finished_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

CREATE TABLE IF NOT EXISTS transitions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    from_state TEXT NOT NULL,
    to_state TEXT NOT NULL,
    phase TEXT,
    path TEXT,
    pid INTEGER,
    detail TEXT,
    at TEXT NOT NULL,
    UNIQUE(run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_transitions_run_id ON transitions(run_id);
`

// Run status constants
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusDeferred = "deferred"
	StatusHalted   = "halted"
)

// Run represents one session
type Run struct {
	ID         string
	Status     string
	FinalState string
	Path       string
	Detail     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Transition represents one workflow step of a run
type Transition struct {
	ID     int64
	RunID  string
	Seq    int
	From   string
	To     string
	Phase  string
	Path   string
	PID    int32
	Detail string
	At     time.Time
}
