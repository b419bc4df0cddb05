package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"reflect"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		envListenAddr, envDBPath, envLogLevel, envWorkflowsPath,
		envMonitorInterval, envProbeTimeout, envProxyURL, envDefaultHeaders,
		envLTConcurrency, envLTRequests, envLTDuration,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.ListenAddr != defaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, defaultListenAddr)
	}
	if cfg.DBPath != defaultDBPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, defaultDBPath)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
	if cfg.MonitorInterval != defaultMonitorInterval {
		t.Errorf("MonitorInterval = %v, want %v", cfg.MonitorInterval, defaultMonitorInterval)
	}
	if cfg.ProbeTimeout != defaultProbeTimeout {
		t.Errorf("ProbeTimeout = %v, want %v", cfg.ProbeTimeout, defaultProbeTimeout)
	}
	if cfg.LoadTestDefaults.Concurrency != defaultConcurrency {
		t.Errorf("Concurrency = %d, want %d", cfg.LoadTestDefaults.Concurrency, defaultConcurrency)
	}
	if cfg.LoadTestDefaults.Requests != defaultRequests {
		t.Errorf("Requests = %d, want %d", cfg.LoadTestDefaults.Requests, defaultRequests)
	}
	if cfg.LoadTestDefaults.Duration != 0 {
		t.Errorf("Duration = %v, want 0", cfg.LoadTestDefaults.Duration)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(envListenAddr, ":9090")
	t.Setenv(envDBPath, "/tmp/pulse.db")
	t.Setenv(envLogLevel, "debug")
	t.Setenv(envMonitorInterval, "30s")
	t.Setenv(envProbeTimeout, "5s")
	t.Setenv(envProxyURL, "http://proxy.local:3128")
	t.Setenv(envDefaultHeaders, "Authorization: Bearer tok, X-Env: staging")
	t.Setenv(envLTConcurrency, "25")
	t.Setenv(envLTRequests, "500")
	t.Setenv(envLTDuration, "2m")

	cfg := Load()

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if cfg.DBPath != "/tmp/pulse.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/pulse.db")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.MonitorInterval != 30*time.Second {
		t.Errorf("MonitorInterval = %v, want 30s", cfg.MonitorInterval)
	}
	if cfg.ProbeTimeout != 5*time.Second {
		t.Errorf("ProbeTimeout = %v, want 5s", cfg.ProbeTimeout)
	}
	if cfg.ProxyURL != "http://proxy.local:3128" {
		t.Errorf("ProxyURL = %q", cfg.ProxyURL)
	}
	wantHeaders := map[string]string{"Authorization": "Bearer tok", "X-Env": "staging"}
	if !reflect.DeepEqual(cfg.DefaultHeaders, wantHeaders) {
		t.Errorf("DefaultHeaders = %v, want %v", cfg.DefaultHeaders, wantHeaders)
	}
	if cfg.LoadTestDefaults.Concurrency != 25 {
		t.Errorf("Concurrency = %d, want 25", cfg.LoadTestDefaults.Concurrency)
	}
	if cfg.LoadTestDefaults.Requests != 500 {
		t.Errorf("Requests = %d, want 500", cfg.LoadTestDefaults.Requests)
	}
	if cfg.LoadTestDefaults.Duration != 2*time.Minute {
		t.Errorf("Duration = %v, want 2m", cfg.LoadTestDefaults.Duration)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv(envMonitorInterval, "not-a-duration")
	t.Setenv(envLTConcurrency, "-3")
	t.Setenv(envLTRequests, "zero")

	cfg := Load()

	if cfg.MonitorInterval != defaultMonitorInterval {
		t.Errorf("MonitorInterval = %v, want default %v", cfg.MonitorInterval, defaultMonitorInterval)
	}
	if cfg.LoadTestDefaults.Concurrency != defaultConcurrency {
		t.Errorf("Concurrency = %d, want default %d", cfg.LoadTestDefaults.Concurrency, defaultConcurrency)
	}
	if cfg.LoadTestDefaults.Requests != defaultRequests {
		t.Errorf("Requests = %d, want default %d", cfg.LoadTestDefaults.Requests, defaultRequests)
	}
}

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{"single", "X-Token: abc", map[string]string{"X-Token": "abc"}},
		{"multiple", "A:1,B:2", map[string]string{"A": "1", "B": "2"}},
		{"value with colon", "Authorization: Bearer a:b", map[string]string{"Authorization": "Bearer a:b"}},
		{"missing colon skipped", "garbage,A:1", map[string]string{"A": "1"}},
		{"empty key skipped", ":nope,A:1", map[string]string{"A": "1"}},
		{"all invalid", "nope", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseHeaders(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseHeaders(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"WARN", slog.LevelWarn},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.input); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("hello", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["msg"] != "hello" {
		t.Errorf("msg = %v, want hello", entry["msg"])
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want value", entry["key"])
	}
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("info log was written at warn level: %s", buf.String())
	}

	logger.Warn("emitted")
	if buf.Len() == 0 {
		t.Error("warn log was not written")
	}
}
