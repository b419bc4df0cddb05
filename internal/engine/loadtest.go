package engine

import (
	"context"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seantiz/pulse/internal/model"
)

// runLoadTest drives a bounded pool of workers against one API spec and
// aggregates their outcomes. Duration-bounded tests stop admitting work once
// the deadline passes but let in-flight requests drain; the per-request
// timeout inside the probe client bounds each attempt.
func (e *Engine) runLoadTest(lt model.LoadTestRun, spec model.ApiSpec) {
	ctx := context.Background()

	if err := e.store.UpdateLoadTestStatus(ctx, lt.ID, model.LoadTestRunning); err != nil {
		e.logger.Error("failed to start load test", "load_test_id", lt.ID, "error", err)
		return
	}

	start := time.Now()

	// Duration is authoritative when both bounds are configured.
	var admit func() bool
	if lt.DurationS > 0 {
		deadline := start.Add(time.Duration(lt.DurationS) * time.Second)
		admit = func() bool { return time.Now().Before(deadline) }
	} else {
		var claimed atomic.Int64
		total := int64(lt.Requests)
		admit = func() bool { return claimed.Add(1) <= total }
	}

	var (
		mu        sync.Mutex
		latencies []int64
	)

	var wg sync.WaitGroup
	for i := 0; i < lt.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for admit() {
				res := e.executor.Execute(ctx, spec)
				success := res.Outcome == model.OutcomeSuccess

				resultLabel := "failure"
				if success {
					resultLabel = "success"
				}
				loadTestRequestsTotal.WithLabelValues(spec.Name, resultLabel).Inc()

				mu.Lock()
				latencies = append(latencies, res.DurationMS)
				mu.Unlock()

				if err := e.store.RecordLoadTestSample(ctx, lt.ID, success); err != nil {
					e.logger.Error("failed to record load test sample", "load_test_id", lt.ID, "error", err)
				}
			}
		}()
	}
	wg.Wait()

	stats := computeLoadTestStats(latencies, time.Since(start))
	if err := e.store.FinishLoadTest(ctx, lt.ID, stats); err != nil {
		e.logger.Error("failed to finish load test", "load_test_id", lt.ID, "error", err)
		return
	}

	e.logger.Info("load test finished",
		"load_test_id", lt.ID,
		"api", spec.Name,
		"total", len(latencies),
		"rps", stats.RequestsPerSecond,
	)
}

// computeLoadTestStats summarizes the recorded latencies once, after all
// issued requests have resolved. Percentiles use the nearest-rank method. A
// test with zero completed requests still yields a valid (zeroed) summary.
func computeLoadTestStats(latencies []int64, elapsed time.Duration) model.LoadTestStats {
	var stats model.LoadTestStats
	if elapsed > 0 {
		stats.RequestsPerSecond = float64(len(latencies)) / elapsed.Seconds()
	}
	if len(latencies) == 0 {
		return stats
	}

	sorted := slices.Clone(latencies)
	slices.Sort(sorted)

	var sum int64
	for _, v := range sorted {
		sum += v
	}

	stats.MinMS = sorted[0]
	stats.MaxMS = sorted[len(sorted)-1]
	stats.AvgMS = sum / int64(len(sorted))
	stats.P50MS = nearestRank(sorted, 50)
	stats.P90MS = nearestRank(sorted, 90)
	stats.P95MS = nearestRank(sorted, 95)
	stats.P99MS = nearestRank(sorted, 99)
	return stats
}

// nearestRank returns the value at the nearest-rank percentile index of a
// sorted slice: ceil(p/100 * n) - 1.
func nearestRank(sorted []int64, percentile float64) int64 {
	idx := int(math.Ceil(percentile/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}
