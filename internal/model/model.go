package model

import "time"

// Workflow run status constants.
const (
	StatusPending        = "pending"
	StatusRunning        = "running"
	StatusCompleted      = "completed"
	StatusPartialFailure = "partial_failure"
)

// Load test run status constants.
const (
	LoadTestPending  = "pending"
	LoadTestRunning  = "running"
	LoadTestFinished = "finished"
)

// Trigger kind constants.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// Task outcome constants.
const (
	OutcomeSuccess           = "success"
	OutcomeExpectationFailed = "expectation_failed"
	OutcomeThresholdExceeded = "threshold_exceeded"
	OutcomeRequestFailed     = "request_failed"
	OutcomeTimeout           = "timeout"
)

// validRunTransitions maps each run status to the set of statuses it may
// transition to. Terminal statuses have no outgoing edges.
var validRunTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning: true,
	},
	StatusRunning: {
		StatusCompleted:      true,
		StatusPartialFailure: true,
	},
}

// validLoadTestTransitions is the equivalent table for load test runs.
var validLoadTestTransitions = map[string]map[string]bool{
	LoadTestPending: {
		LoadTestRunning: true,
	},
	LoadTestRunning: {
		LoadTestFinished: true,
	},
}

// ValidRunTransition reports whether a workflow run may move between the two statuses.
func ValidRunTransition(from, to string) bool {
	targets, ok := validRunTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// ValidLoadTestTransition reports whether a load test run may move between the two statuses.
func ValidLoadTestTransition(from, to string) bool {
	targets, ok := validLoadTestTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// TerminalRunStatus reports whether a workflow run status is terminal.
func TerminalRunStatus(status string) bool {
	return status == StatusCompleted || status == StatusPartialFailure
}

// LoadTestSpec overrides the engine's default load test parameters for one API.
type LoadTestSpec struct {
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency"`
	Requests    int `json:"requests,omitempty" yaml:"requests"`
	DurationS   int `json:"duration_s,omitempty" yaml:"duration_s"`
}

// ApiSpec describes a single API check within a workflow. Immutable once loaded.
type ApiSpec struct {
	Name          string            `json:"name" yaml:"name"`
	URL           string            `json:"url" yaml:"url"`
	Method        string            `json:"method" yaml:"method"`
	Headers       map[string]string `json:"headers,omitempty" yaml:"headers"`
	Body          string            `json:"body,omitempty" yaml:"body"`
	ExpectedField string            `json:"expected_field,omitempty" yaml:"expected_field"`
	ThresholdMS   int               `json:"threshold_ms,omitempty" yaml:"threshold_ms"`
	LoadTest      bool              `json:"load_test,omitempty" yaml:"load_test"`
	LoadTestSpec  *LoadTestSpec     `json:"load_test_spec,omitempty" yaml:"load_test_spec"`
}

// WorkflowDefinition is a named, ordered set of API checks. Immutable after
// registration.
type WorkflowDefinition struct {
	Name string    `json:"name" yaml:"name"`
	APIs []ApiSpec `json:"apis" yaml:"apis"`
}

// TaskResult records the outcome of a single API check attempt. Written
// exactly once per attempt.
type TaskResult struct {
	ApiName     string    `json:"api_name"`
	Outcome     string    `json:"outcome"`
	DurationMS  int64     `json:"duration_ms"`
	StatusCode  *int      `json:"status_code,omitempty"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// WorkflowRun is one execution instance of a workflow. Once the status reaches
// a terminal value the run is immutable; the next trigger creates a new run.
type WorkflowRun struct {
	ID           string            `json:"id"`
	WorkflowName string            `json:"workflow_name"`
	Trigger      string            `json:"trigger"`
	Status       string            `json:"status"`
	Results      []TaskResult      `json:"results"`
	LoadTestIDs  map[string]string `json:"load_test_ids,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	FinishedAt   *time.Time        `json:"finished_at,omitempty"`
}

// LoadTestStats holds the latency statistics computed once when a load test
// finishes. Percentiles use the nearest-rank method.
type LoadTestStats struct {
	MinMS             int64   `json:"min_ms"`
	AvgMS             int64   `json:"avg_ms"`
	MaxMS             int64   `json:"max_ms"`
	P50MS             int64   `json:"p50_ms"`
	P90MS             int64   `json:"p90_ms"`
	P95MS             int64   `json:"p95_ms"`
	P99MS             int64   `json:"p99_ms"`
	RequestsPerSecond float64 `json:"requests_per_second"`
}

// LoadTestRun is one load test execution against a single API. The counters
// grow while running; Stats is populated exactly once at finish.
type LoadTestRun struct {
	ID            string         `json:"id"`
	WorkflowRunID string         `json:"workflow_run_id"`
	ApiName       string         `json:"api_name"`
	Concurrency   int            `json:"concurrency"`
	Requests      int            `json:"requests"`
	DurationS     int            `json:"duration_s"`
	Status        string         `json:"status"`
	Total         int            `json:"total"`
	Success       int            `json:"success"`
	Failure       int            `json:"failure"`
	Stats         *LoadTestStats `json:"stats,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty"`
}
