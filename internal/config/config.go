package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr      = ":8080"
	defaultDBPath          = ":memory:"
	defaultMonitorInterval = 60 * time.Second
	defaultProbeTimeout    = 20 * time.Second
	defaultConcurrency     = 10
	defaultRequests        = 100

	envListenAddr      = "PULSE_LISTEN_ADDR"
	envDBPath          = "PULSE_DB_PATH"
	envLogLevel        = "PULSE_LOG_LEVEL"
	envWorkflowsPath   = "PULSE_WORKFLOWS"
	envMonitorInterval = "PULSE_MONITOR_INTERVAL"
	envProbeTimeout    = "PULSE_PROBE_TIMEOUT"
	envProxyURL        = "PULSE_HTTP_PROXY"
	envDefaultHeaders  = "PULSE_DEFAULT_HEADERS"
	envLTConcurrency   = "PULSE_LOADTEST_CONCURRENCY"
	envLTRequests      = "PULSE_LOADTEST_REQUESTS"
	envLTDuration      = "PULSE_LOADTEST_DURATION"
)

// LoadTestDefaults are the engine-wide load test parameters used when an API
// spec does not override them. Duration, when set, is authoritative over the
// request count.
type LoadTestDefaults struct {
	Concurrency int
	Requests    int
	Duration    time.Duration
}

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr       string
	DBPath           string
	LogLevel         slog.Level
	WorkflowsPath    string
	MonitorInterval  time.Duration
	ProbeTimeout     time.Duration
	ProxyURL         string
	DefaultHeaders   map[string]string
	LoadTestDefaults LoadTestDefaults
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:      defaultListenAddr,
		DBPath:          defaultDBPath,
		LogLevel:        slog.LevelInfo,
		MonitorInterval: defaultMonitorInterval,
		ProbeTimeout:    defaultProbeTimeout,
		LoadTestDefaults: LoadTestDefaults{
			Concurrency: defaultConcurrency,
			Requests:    defaultRequests,
		},
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envWorkflowsPath); v != "" {
		cfg.WorkflowsPath = v
	}
	if v := os.Getenv(envMonitorInterval); v != "" {
		cfg.MonitorInterval = parseDuration(v, defaultMonitorInterval)
	}
	if v := os.Getenv(envProbeTimeout); v != "" {
		cfg.ProbeTimeout = parseDuration(v, defaultProbeTimeout)
	}
	if v := os.Getenv(envProxyURL); v != "" {
		cfg.ProxyURL = v
	}
	if v := os.Getenv(envDefaultHeaders); v != "" {
		cfg.DefaultHeaders = ParseHeaders(v)
	}
	if v := os.Getenv(envLTConcurrency); v != "" {
		cfg.LoadTestDefaults.Concurrency = parseInt(v, defaultConcurrency)
	}
	if v := os.Getenv(envLTRequests); v != "" {
		cfg.LoadTestDefaults.Requests = parseInt(v, defaultRequests)
	}
	if v := os.Getenv(envLTDuration); v != "" {
		cfg.LoadTestDefaults.Duration = parseDuration(v, 0)
	}

	return cfg
}

// ParseHeaders parses a comma-separated list of key:value pairs into a header
// map. Entries without a colon or with an empty key are skipped.
func ParseHeaders(s string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		headers[key] = value
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}

func parseInt(s string, defaultVal int) int {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	return v
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
