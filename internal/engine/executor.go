package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/seantiz/pulse/internal/model"
	"github.com/seantiz/pulse/internal/probe"
)

// Executor runs a single API check: one probe, expectation evaluation, then
// threshold comparison. It never retries and has no side effects beyond the
// network call.
type Executor struct {
	probe  *probe.Client
	logger *slog.Logger
}

// NewExecutor creates a task executor backed by the given probe client.
func NewExecutor(client *probe.Client, logger *slog.Logger) *Executor {
	return &Executor{probe: client, logger: logger}
}

// Execute performs one check attempt and returns its result. Failures are
// data: the result carries the outcome, never an error.
func (e *Executor) Execute(ctx context.Context, spec model.ApiSpec) model.TaskResult {
	resp, err := e.probe.Do(ctx, spec.Method, spec.URL, spec.Headers, spec.Body)
	if err != nil {
		result := model.TaskResult{
			ApiName:     spec.Name,
			Outcome:     model.OutcomeRequestFailed,
			Error:       err.Error(),
			CompletedAt: time.Now().UTC(),
		}
		var probeErr *probe.Error
		if errors.As(err, &probeErr) {
			result.DurationMS = probeErr.Latency.Milliseconds()
			if probeErr.Kind == probe.FailureTimeout {
				result.Outcome = model.OutcomeTimeout
			}
		}
		e.logger.Debug("check failed", "api", spec.Name, "outcome", result.Outcome, "error", result.Error)
		return result
	}

	code := resp.StatusCode
	latencyMS := resp.Latency.Milliseconds()
	result := model.TaskResult{
		ApiName:     spec.Name,
		DurationMS:  latencyMS,
		StatusCode:  &code,
		CompletedAt: time.Now().UTC(),
	}

	// Fixed evaluation order: expectation first, then threshold. The first
	// failing condition determines the outcome.
	switch {
	case !probe.FieldPresent(resp.Body, spec.ExpectedField):
		result.Outcome = model.OutcomeExpectationFailed
		result.Error = fmt.Sprintf("expected field %q absent from response", spec.ExpectedField)
	case spec.ThresholdMS > 0 && latencyMS > int64(spec.ThresholdMS):
		result.Outcome = model.OutcomeThresholdExceeded
		result.Error = fmt.Sprintf("latency %dms exceeded threshold %dms", latencyMS, spec.ThresholdMS)
	default:
		result.Outcome = model.OutcomeSuccess
	}

	e.logger.Debug("check completed", "api", spec.Name, "outcome", result.Outcome, "duration_ms", latencyMS, "status", code)
	return result
}
