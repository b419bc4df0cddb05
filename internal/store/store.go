package store

import (
	"context"
	"errors"

	"github.com/seantiz/pulse/internal/model"
)

// ErrNotFound is returned when a run or load test is not found.
var ErrNotFound = errors.New("run not found")

// ErrUnknownWorkflow is returned when no definition is registered under the
// requested name.
var ErrUnknownWorkflow = errors.New("unknown workflow")

// ErrDuplicateDefinition is returned when a workflow name is registered twice.
var ErrDuplicateDefinition = errors.New("duplicate workflow definition")

// ErrInvalidTransition is returned when a run status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// RunStats holds aggregate run statistics.
type RunStats struct {
	Total          int            `json:"total"`
	CountByStatus  map[string]int `json:"count_by_status"`
	CountByTrigger map[string]int `json:"count_by_trigger"`
	AvgDurationMS  float64        `json:"avg_duration_ms"`
}

// Store defines the registry and result-store operations. All mutating
// operations on the same run id are linearizable with respect to each other.
type Store interface {
	// Definition registry. Definitions are immutable after registration.
	RegisterDefinition(def model.WorkflowDefinition) error
	GetDefinition(name string) (*model.WorkflowDefinition, error)
	ListDefinitions() []model.WorkflowDefinition

	// Workflow runs.
	CreateRun(ctx context.Context, run *model.WorkflowRun) error
	GetRun(ctx context.Context, id string) (*model.WorkflowRun, error)
	ListRuns(ctx context.Context, workflow string, limit, offset int) ([]*model.WorkflowRun, int, error)
	UpdateRunStatus(ctx context.Context, id, status string) error
	InsertTaskResult(ctx context.Context, runID string, position int, res model.TaskResult) error

	// Load test runs.
	CreateLoadTest(ctx context.Context, lt *model.LoadTestRun) error
	GetLoadTest(ctx context.Context, id string) (*model.LoadTestRun, error)
	UpdateLoadTestStatus(ctx context.Context, id, status string) error
	RecordLoadTestSample(ctx context.Context, id string, success bool) error
	FinishLoadTest(ctx context.Context, id string, stats model.LoadTestStats) error

	GetRunStats(ctx context.Context) (*RunStats, error)
	Close() error
}
