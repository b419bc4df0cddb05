package engine_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/seantiz/pulse/internal/engine"
	"github.com/seantiz/pulse/internal/model"
	"github.com/seantiz/pulse/internal/probe"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestExecutor(t *testing.T, timeout time.Duration) *engine.Executor {
	t.Helper()
	client, err := probe.NewClient(probe.Config{Timeout: timeout})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return engine.NewExecutor(client, discardLogger())
}

func TestExecuteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 42}`))
	}))
	defer srv.Close()

	exec := newTestExecutor(t, time.Second)
	res := exec.Execute(context.Background(), model.ApiSpec{
		Name:          "ping",
		URL:           srv.URL,
		Method:        http.MethodGet,
		ExpectedField: "id",
		ThresholdMS:   2000,
	})

	if res.Outcome != model.OutcomeSuccess {
		t.Errorf("Outcome = %q, want success (error: %s)", res.Outcome, res.Error)
	}
	if res.ApiName != "ping" {
		t.Errorf("ApiName = %q, want ping", res.ApiName)
	}
	if res.StatusCode == nil || *res.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %v, want 200", res.StatusCode)
	}
	if res.DurationMS < 0 {
		t.Errorf("DurationMS = %d", res.DurationMS)
	}
	if res.CompletedAt.IsZero() {
		t.Error("CompletedAt not set")
	}
}

func TestExecuteExpectationFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name": "no id here"}`))
	}))
	defer srv.Close()

	exec := newTestExecutor(t, time.Second)
	res := exec.Execute(context.Background(), model.ApiSpec{
		Name:          "ping",
		URL:           srv.URL,
		Method:        http.MethodGet,
		ExpectedField: "id",
		ThresholdMS:   2000,
	})

	if res.Outcome != model.OutcomeExpectationFailed {
		t.Errorf("Outcome = %q, want expectation_failed", res.Outcome)
	}
	if res.Error == "" {
		t.Error("Error detail not set")
	}
}

func TestExecuteThresholdExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(60 * time.Millisecond)
		w.Write([]byte(`{"id": 1}`))
	}))
	defer srv.Close()

	exec := newTestExecutor(t, time.Second)
	res := exec.Execute(context.Background(), model.ApiSpec{
		Name:          "ping",
		URL:           srv.URL,
		Method:        http.MethodGet,
		ExpectedField: "id",
		ThresholdMS:   10,
	})

	if res.Outcome != model.OutcomeThresholdExceeded {
		t.Errorf("Outcome = %q, want threshold_exceeded", res.Outcome)
	}
	if res.StatusCode == nil || *res.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %v, want 200", res.StatusCode)
	}
}

// Expectation is evaluated before the threshold: a slow response missing the
// expected field reports expectation_failed.
func TestExecuteExpectationBeforeThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(60 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	exec := newTestExecutor(t, time.Second)
	res := exec.Execute(context.Background(), model.ApiSpec{
		Name:          "ping",
		URL:           srv.URL,
		Method:        http.MethodGet,
		ExpectedField: "id",
		ThresholdMS:   10,
	})

	if res.Outcome != model.OutcomeExpectationFailed {
		t.Errorf("Outcome = %q, want expectation_failed", res.Outcome)
	}
}

func TestExecuteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	exec := newTestExecutor(t, 50*time.Millisecond)
	res := exec.Execute(context.Background(), model.ApiSpec{
		Name:   "ping",
		URL:    srv.URL,
		Method: http.MethodGet,
	})

	if res.Outcome != model.OutcomeTimeout {
		t.Errorf("Outcome = %q, want timeout", res.Outcome)
	}
	if res.StatusCode != nil {
		t.Errorf("StatusCode = %v, want nil", res.StatusCode)
	}
	if res.Error == "" {
		t.Error("Error detail not set")
	}
}

func TestExecuteRequestFailed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	exec := newTestExecutor(t, time.Second)
	res := exec.Execute(context.Background(), model.ApiSpec{
		Name:   "ping",
		URL:    addr,
		Method: http.MethodGet,
	})

	if res.Outcome != model.OutcomeRequestFailed {
		t.Errorf("Outcome = %q, want request_failed", res.Outcome)
	}
	if res.Error == "" {
		t.Error("Error detail not set")
	}
}

func TestExecuteNoExpectationNoThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain text, not json"))
	}))
	defer srv.Close()

	exec := newTestExecutor(t, time.Second)
	res := exec.Execute(context.Background(), model.ApiSpec{
		Name:   "ping",
		URL:    srv.URL,
		Method: http.MethodGet,
	})

	if res.Outcome != model.OutcomeSuccess {
		t.Errorf("Outcome = %q, want success without expectation or threshold", res.Outcome)
	}
}
