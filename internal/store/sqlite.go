package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/seantiz/pulse/internal/model"

	_ "modernc.org/sqlite"
)

const createRunsTable = `
CREATE TABLE IF NOT EXISTS runs (
    id            TEXT PRIMARY KEY,
    workflow_name TEXT NOT NULL,
    trigger_kind  TEXT NOT NULL,
    status        TEXT NOT NULL,
    created_at    DATETIME NOT NULL,
    started_at    DATETIME,
    finished_at   DATETIME
)`

const createTaskResultsTable = `
CREATE TABLE IF NOT EXISTS task_results (
    run_id       TEXT NOT NULL,
    api_name     TEXT NOT NULL,
    position     INTEGER NOT NULL,
    outcome      TEXT NOT NULL,
    duration_ms  INTEGER NOT NULL,
    status_code  INTEGER,
    error        TEXT NOT NULL DEFAULT '',
    completed_at DATETIME NOT NULL,
    PRIMARY KEY (run_id, api_name)
)`

const createLoadTestsTable = `
CREATE TABLE IF NOT EXISTS load_tests (
    id              TEXT PRIMARY KEY,
    workflow_run_id TEXT NOT NULL,
    api_name        TEXT NOT NULL,
    concurrency     INTEGER NOT NULL,
    requests        INTEGER NOT NULL,
    duration_s      INTEGER NOT NULL,
    status          TEXT NOT NULL,
    total           INTEGER NOT NULL DEFAULT 0,
    success         INTEGER NOT NULL DEFAULT 0,
    failure         INTEGER NOT NULL DEFAULT 0,
    min_ms          INTEGER,
    avg_ms          INTEGER,
    max_ms          INTEGER,
    p50_ms          INTEGER,
    p90_ms          INTEGER,
    p95_ms          INTEGER,
    p99_ms          INTEGER,
    rps             REAL,
    created_at      DATETIME NOT NULL,
    started_at      DATETIME,
    finished_at     DATETIME
)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite. Run and load test records live
// in the database; workflow definitions are immutable after registration and
// are kept in a guarded map.
type SQLiteStore struct {
	db *sql.DB

	mu   sync.RWMutex
	defs map[string]model.WorkflowDefinition
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
// Pass ":memory:" for a process-memory store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// An in-memory SQLite database exists per connection; pin the pool to a
	// single connection so every goroutine sees the same data.
	if strings.Contains(dbPath, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createRunsTable, createTaskResultsTable, createLoadTestsTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
	}

	return &SQLiteStore{
		db:   db,
		defs: make(map[string]model.WorkflowDefinition),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RegisterDefinition adds a workflow definition to the registry.
func (s *SQLiteStore) RegisterDefinition(def model.WorkflowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.defs[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDefinition, def.Name)
	}
	s.defs[def.Name] = def
	return nil
}

// GetDefinition retrieves a workflow definition by name.
func (s *SQLiteStore) GetDefinition(name string) (*model.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflow, name)
	}
	return &def, nil
}

// ListDefinitions returns all registered definitions sorted by name.
func (s *SQLiteStore) ListDefinitions() []model.WorkflowDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]model.WorkflowDefinition, 0, len(s.defs))
	for _, def := range s.defs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// CreateRun inserts a new workflow run record.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.WorkflowRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, workflow_name, trigger_kind, status, created_at, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.WorkflowName, run.Trigger, run.Status, run.CreatedAt, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a workflow run with its task results (in definition order)
// and the ids of any load tests launched from it.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.WorkflowRun, error) {
	run := &model.WorkflowRun{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workflow_name, trigger_kind, status, created_at, started_at, finished_at
		 FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.WorkflowName, &run.Trigger, &run.Status, &run.CreatedAt, &run.StartedAt, &run.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT api_name, outcome, duration_ms, status_code, error, completed_at
		 FROM task_results WHERE run_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("get task results: %w", err)
	}
	defer rows.Close()

	run.Results = []model.TaskResult{}
	for rows.Next() {
		var res model.TaskResult
		if err := rows.Scan(&res.ApiName, &res.Outcome, &res.DurationMS, &res.StatusCode, &res.Error, &res.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan task result: %w", err)
		}
		run.Results = append(run.Results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task results: %w", err)
	}

	ltRows, err := s.db.QueryContext(ctx,
		"SELECT api_name, id FROM load_tests WHERE workflow_run_id = ?", id,
	)
	if err != nil {
		return nil, fmt.Errorf("get load test ids: %w", err)
	}
	defer ltRows.Close()

	for ltRows.Next() {
		var apiName, ltID string
		if err := ltRows.Scan(&apiName, &ltID); err != nil {
			return nil, fmt.Errorf("scan load test id: %w", err)
		}
		if run.LoadTestIDs == nil {
			run.LoadTestIDs = make(map[string]string)
		}
		run.LoadTestIDs[apiName] = ltID
	}
	if err := ltRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate load test ids: %w", err)
	}

	return run, nil
}

// ListRuns returns a paginated list of runs ordered by created_at DESC, along
// with the total count. An empty workflow name matches every run. Result
// mappings are not populated; use GetRun for the full record.
func (s *SQLiteStore) ListRuns(ctx context.Context, workflow string, limit, offset int) ([]*model.WorkflowRun, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	filter := "WHERE workflow_name = ?"
	args := []any{workflow}
	if workflow == "" {
		filter = ""
		args = nil
	}

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs "+filter, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, workflow_name, trigger_kind, status, created_at, started_at, finished_at
		 FROM runs `+filter+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.WorkflowRun
	for rows.Next() {
		run := &model.WorkflowRun{}
		if err := rows.Scan(&run.ID, &run.WorkflowName, &run.Trigger, &run.Status, &run.CreatedAt, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, 0, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, total, nil
}

// UpdateRunStatus transitions a run to a new status, enforcing the state
// machine. started_at is set on the transition to running, finished_at on the
// transition to a terminal status.
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, id, status string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM runs WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get run status: %w", err)
	}

	if !model.ValidRunTransition(current, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	now := time.Now().UTC()
	switch {
	case status == model.StatusRunning:
		_, err = tx.ExecContext(ctx, "UPDATE runs SET status = ?, started_at = ? WHERE id = ?", status, now, id)
	case model.TerminalRunStatus(status):
		_, err = tx.ExecContext(ctx, "UPDATE runs SET status = ?, finished_at = ? WHERE id = ?", status, now, id)
	default:
		_, err = tx.ExecContext(ctx, "UPDATE runs SET status = ? WHERE id = ?", status, id)
	}
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run status: %w", err)
	}
	return nil
}

// InsertTaskResult writes one task result into a run. Each (run, api) slot is
// written exactly once; a second write violates the primary key and fails.
func (s *SQLiteStore) InsertTaskResult(ctx context.Context, runID string, position int, res model.TaskResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_results (run_id, api_name, position, outcome, duration_ms, status_code, error, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, res.ApiName, position, res.Outcome, res.DurationMS, res.StatusCode, res.Error, res.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task result: %w", err)
	}
	return nil
}

// CreateLoadTest inserts a new load test record.
func (s *SQLiteStore) CreateLoadTest(ctx context.Context, lt *model.LoadTestRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO load_tests (id, workflow_run_id, api_name, concurrency, requests, duration_s, status, created_at, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lt.ID, lt.WorkflowRunID, lt.ApiName, lt.Concurrency, lt.Requests, lt.DurationS, lt.Status,
		lt.CreatedAt, lt.StartedAt, lt.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert load test: %w", err)
	}
	return nil
}

// GetLoadTest retrieves a load test run by id.
func (s *SQLiteStore) GetLoadTest(ctx context.Context, id string) (*model.LoadTestRun, error) {
	lt := &model.LoadTestRun{}
	var minMS, avgMS, maxMS, p50, p90, p95, p99 sql.NullInt64
	var rps sql.NullFloat64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, workflow_run_id, api_name, concurrency, requests, duration_s, status,
			total, success, failure, min_ms, avg_ms, max_ms, p50_ms, p90_ms, p95_ms, p99_ms, rps,
			created_at, started_at, finished_at
		 FROM load_tests WHERE id = ?`, id,
	).Scan(
		&lt.ID, &lt.WorkflowRunID, &lt.ApiName, &lt.Concurrency, &lt.Requests, &lt.DurationS, &lt.Status,
		&lt.Total, &lt.Success, &lt.Failure, &minMS, &avgMS, &maxMS, &p50, &p90, &p95, &p99, &rps,
		&lt.CreatedAt, &lt.StartedAt, &lt.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get load test: %w", err)
	}

	if lt.Status == model.LoadTestFinished {
		lt.Stats = &model.LoadTestStats{
			MinMS:             minMS.Int64,
			AvgMS:             avgMS.Int64,
			MaxMS:             maxMS.Int64,
			P50MS:             p50.Int64,
			P90MS:             p90.Int64,
			P95MS:             p95.Int64,
			P99MS:             p99.Int64,
			RequestsPerSecond: rps.Float64,
		}
	}

	return lt, nil
}

// UpdateLoadTestStatus transitions a load test to a new status, enforcing the
// state machine.
func (s *SQLiteStore) UpdateLoadTestStatus(ctx context.Context, id, status string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM load_tests WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get load test status: %w", err)
	}

	if !model.ValidLoadTestTransition(current, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	if status == model.LoadTestRunning {
		_, err = tx.ExecContext(ctx, "UPDATE load_tests SET status = ?, started_at = ? WHERE id = ?", status, time.Now().UTC(), id)
	} else {
		_, err = tx.ExecContext(ctx, "UPDATE load_tests SET status = ? WHERE id = ?", status, id)
	}
	if err != nil {
		return fmt.Errorf("update load test status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load test status: %w", err)
	}
	return nil
}

// RecordLoadTestSample adds one completed request to a load test's counters.
// The whole update is a single statement, so concurrent completions never
// lose updates.
func (s *SQLiteStore) RecordLoadTestSample(ctx context.Context, id string, success bool) error {
	successInc, failureInc := 0, 1
	if success {
		successInc, failureInc = 1, 0
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE load_tests SET total = total + 1, success = success + ?, failure = failure + ? WHERE id = ?",
		successInc, failureInc, id,
	)
	if err != nil {
		return fmt.Errorf("record load test sample: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FinishLoadTest transitions a load test to finished and writes its final
// statistics. Statistics are written exactly once; finishing twice is an
// invalid transition.
func (s *SQLiteStore) FinishLoadTest(ctx context.Context, id string, stats model.LoadTestStats) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM load_tests WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get load test status: %w", err)
	}

	if !model.ValidLoadTestTransition(current, model.LoadTestFinished) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, model.LoadTestFinished)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE load_tests SET status = ?, min_ms = ?, avg_ms = ?, max_ms = ?,
			p50_ms = ?, p90_ms = ?, p95_ms = ?, p99_ms = ?, rps = ?, finished_at = ?
		 WHERE id = ?`,
		model.LoadTestFinished, stats.MinMS, stats.AvgMS, stats.MaxMS,
		stats.P50MS, stats.P90MS, stats.P95MS, stats.P99MS, stats.RequestsPerSecond,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("finish load test: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load test finish: %w", err)
	}
	return nil
}

// GetRunStats returns aggregate statistics over all workflow runs.
func (s *SQLiteStore) GetRunStats(ctx context.Context) (*RunStats, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	stats := &RunStats{
		CountByStatus:  make(map[string]int),
		CountByTrigger: make(map[string]int),
	}

	rows, err := tx.QueryContext(ctx, "SELECT status, COUNT(*) FROM runs GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.CountByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	trigRows, err := tx.QueryContext(ctx, "SELECT trigger_kind, COUNT(*) FROM runs GROUP BY trigger_kind")
	if err != nil {
		return nil, fmt.Errorf("count by trigger: %w", err)
	}
	defer trigRows.Close()
	for trigRows.Next() {
		var trigger string
		var count int
		if err := trigRows.Scan(&trigger, &count); err != nil {
			return nil, fmt.Errorf("scan trigger count: %w", err)
		}
		stats.CountByTrigger[trigger] = count
	}
	if err := trigRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trigger counts: %w", err)
	}

	var avg sql.NullFloat64
	err = tx.QueryRowContext(ctx,
		`SELECT AVG((julianday(finished_at) - julianday(started_at)) * 86400000.0)
		 FROM runs WHERE finished_at IS NOT NULL AND started_at IS NOT NULL`,
	).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("average duration: %w", err)
	}
	stats.AvgDurationMS = avg.Float64

	return stats, nil
}
