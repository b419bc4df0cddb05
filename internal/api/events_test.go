package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/pulse/internal/model"
)

func TestStreamEventsRunNotFound(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/runs/" + model.NewID() + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStreamEventsTerminalRun(t *testing.T) {
	srv := newTestServer(t)
	target := targetServer(t)
	registerTestWorkflow(t, srv, "alpha", target.URL)

	id, err := srv.engine.Trigger(context.Background(), "alpha", model.TriggerManual)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	waitForTerminal(t, srv, id)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/runs/" + id + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
}

func TestStreamEventsLiveRun(t *testing.T) {
	srv := newTestServer(t)

	// Slow target so the run is still in flight when we subscribe.
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"id": 1}`))
	}))
	t.Cleanup(slow.Close)
	registerTestWorkflow(t, srv, "alpha", slow.URL)

	id, err := srv.engine.Trigger(context.Background(), "alpha", model.TriggerManual)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/runs/" + id + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	var results []model.TaskResult
	sawDone := false
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: done"):
			sawDone = true
		case strings.HasPrefix(line, "data: {"):
			var res model.TaskResult
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &res); err != nil {
				t.Fatalf("unmarshal event data: %v", err)
			}
			results = append(results, res)
		}
	}

	if !sawDone {
		t.Error("stream did not end with a done event")
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].ApiName != "check" || results[0].Outcome != model.OutcomeSuccess {
		t.Errorf("unexpected result: %+v", results[0])
	}
}
