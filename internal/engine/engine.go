package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seantiz/pulse/internal/config"
	"github.com/seantiz/pulse/internal/model"
	"github.com/seantiz/pulse/internal/store"
)

// Engine orchestrates workflow runs: fan-out of concurrent API checks,
// fan-in of their results, load test side activities, and the periodic
// monitoring ticker.
type Engine struct {
	store    store.Store
	executor *Executor
	defaults config.LoadTestDefaults
	interval time.Duration
	logger   *slog.Logger
	broker   *Broker
	wg       sync.WaitGroup

	tickerStop chan struct{}
	tickerDone chan struct{}
}

// NewEngine creates a new monitoring engine. interval is the scheduled
// monitoring period; a non-positive interval disables the ticker.
func NewEngine(s store.Store, exec *Executor, defaults config.LoadTestDefaults, interval time.Duration, logger *slog.Logger) *Engine {
	return &Engine{
		store:    s,
		executor: exec,
		defaults: defaults,
		interval: interval,
		logger:   logger,
		broker:   NewBroker(),
	}
}

// Broker returns the engine's result broker for SSE subscription.
func (e *Engine) Broker() *Broker {
	return e.broker
}

// Trigger creates a run for the named workflow and launches asynchronous
// execution, returning the new run id immediately. The run is stored with
// status "pending" before returning; completion is observable through the
// store. Unknown workflow names surface store.ErrUnknownWorkflow.
func (e *Engine) Trigger(ctx context.Context, workflowName, kind string) (string, error) {
	def, err := e.store.GetDefinition(workflowName)
	if err != nil {
		return "", err
	}

	run := &model.WorkflowRun{
		ID:           model.NewID(),
		WorkflowName: def.Name,
		Trigger:      kind,
		Status:       model.StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	defCopy := *def
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.execute(&defCopy, run.ID)
	}()

	return run.ID, nil
}

// Start launches the periodic monitoring ticker. Every interval, every
// registered workflow is triggered with kind "scheduled". Overlapping runs of
// the same workflow are independent; ticks are never skipped or coalesced.
func (e *Engine) Start() {
	if e.interval <= 0 {
		return
	}
	e.tickerStop = make(chan struct{})
	e.tickerDone = make(chan struct{})
	go e.runTicker()
	e.logger.Info("monitoring ticker started", "interval", e.interval.String())
}

// Stop halts the ticker. In-flight runs are unaffected; use Wait to drain them.
func (e *Engine) Stop() {
	if e.tickerStop == nil {
		return
	}
	close(e.tickerStop)
	<-e.tickerDone
	e.tickerStop = nil
}

// Wait blocks until all in-flight run and load test goroutines complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) runTicker() {
	defer close(e.tickerDone)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, def := range e.store.ListDefinitions() {
				if _, err := e.Trigger(context.Background(), def.Name, model.TriggerScheduled); err != nil {
					e.logger.Error("scheduled trigger failed", "workflow", def.Name, "error", err)
				}
			}
		case <-e.tickerStop:
			return
		}
	}
}

// execute runs the workflow lifecycle in a goroutine: pending→running→
// completed/partial_failure. One executor goroutine per API writes its result
// into its own slot; the WaitGroup is the fan-in barrier, and the terminal
// status is set only after every expected write has completed.
func (e *Engine) execute(def *model.WorkflowDefinition, runID string) {
	// Close the result stream when execution finishes, regardless of outcome.
	defer e.broker.Close(runID)

	ctx := context.Background()
	if err := e.store.UpdateRunStatus(ctx, runID, model.StatusRunning); err != nil {
		e.logger.Error("failed to transition run to running", "run_id", runID, "error", err)
		return
	}

	var failures atomic.Int32
	var wg sync.WaitGroup
	for i := range def.APIs {
		spec := def.APIs[i]
		position := i

		// Load testing is a side activity: it runs under the engine's own
		// WaitGroup and never gates the workflow run's terminal status.
		if spec.LoadTest {
			e.startLoadTest(runID, spec)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			res := e.executor.Execute(ctx, spec)
			if res.Outcome != model.OutcomeSuccess {
				failures.Add(1)
			}

			checksTotal.WithLabelValues(def.Name, res.Outcome).Inc()
			checkDuration.WithLabelValues(def.Name, spec.Name).Observe(float64(res.DurationMS) / 1000)

			if err := e.store.InsertTaskResult(ctx, runID, position, res); err != nil {
				e.logger.Error("failed to record task result", "run_id", runID, "api", spec.Name, "error", err)
			}
			e.broker.Publish(runID, res)
		}()
	}
	wg.Wait()

	status := model.StatusCompleted
	if failures.Load() > 0 {
		status = model.StatusPartialFailure
	}
	if err := e.store.UpdateRunStatus(ctx, runID, status); err != nil {
		e.logger.Error("failed to finish run", "run_id", runID, "error", err)
		return
	}

	e.logger.Info("workflow run finished", "run_id", runID, "workflow", def.Name, "status", status)
}

// startLoadTest registers a load test run for one API and launches it,
// resolving the per-API override against the engine defaults.
func (e *Engine) startLoadTest(runID string, spec model.ApiSpec) {
	concurrency := e.defaults.Concurrency
	requests := e.defaults.Requests
	durationS := int(e.defaults.Duration / time.Second)
	if o := spec.LoadTestSpec; o != nil {
		if o.Concurrency > 0 {
			concurrency = o.Concurrency
		}
		if o.Requests > 0 {
			requests = o.Requests
		}
		if o.DurationS > 0 {
			durationS = o.DurationS
		}
	}

	lt := model.LoadTestRun{
		ID:            model.NewID(),
		WorkflowRunID: runID,
		ApiName:       spec.Name,
		Concurrency:   concurrency,
		Requests:      requests,
		DurationS:     durationS,
		Status:        model.LoadTestPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := e.store.CreateLoadTest(context.Background(), &lt); err != nil {
		e.logger.Error("failed to create load test", "run_id", runID, "api", spec.Name, "error", err)
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runLoadTest(lt, spec)
	}()
}
