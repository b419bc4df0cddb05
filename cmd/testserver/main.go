// testserver starts a stub target API for exercising workflow checks and load
// tests end to end. Usage: go run ./cmd/testserver
package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"
)

func main() {
	addr := ":9090"
	if v := os.Getenv("PULSE_TESTSERVER_ADDR"); v != "" {
		addr = v
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var flakyHits atomic.Int64
	mux := http.NewServeMux()

	// Healthy endpoint with the id field workflows typically expect.
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 1, "status": "ok"}`))
	})

	// Responds after a configurable delay: /slow?delay=250ms
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		delay := 500 * time.Millisecond
		if v := r.URL.Query().Get("delay"); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				delay = d
			}
		}
		time.Sleep(delay)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 1, "delayed": true}`))
	})

	// Valid JSON without the id field, for expectation failures.
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})

	// Alternates between the full and the incomplete payload.
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if flakyHits.Add(1)%2 == 0 {
			w.Write([]byte(`{"status": "degraded"}`))
			return
		}
		w.Write([]byte(`{"id": 1, "status": "ok"}`))
	})

	// Returns a configurable status code: /error?code=503
	mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		code := http.StatusInternalServerError
		if v := r.URL.Query().Get("code"); v != "" {
			if c, err := strconv.Atoi(v); err == nil && c >= 400 && c < 600 {
				code = c
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		w.Write([]byte(`{"id": 1, "error": "simulated failure"}`))
	})

	logger.Info("testserver: starting", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
