package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	checksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_checks_total",
			Help: "Total number of API checks executed, by workflow and outcome.",
		},
		[]string{"workflow", "outcome"},
	)

	checkDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_check_duration_seconds",
			Help:    "API check duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"workflow", "api"},
	)

	loadTestRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_loadtest_requests_total",
			Help: "Total number of load test requests issued, by API and result.",
		},
		[]string{"api", "result"},
	)
)

func init() {
	prometheus.MustRegister(checksTotal)
	prometheus.MustRegister(checkDuration)
	prometheus.MustRegister(loadTestRequestsTotal)
}
