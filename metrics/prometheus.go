// Package metrics exposes scheduler queue state as Prometheus gauges.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neuropathbasel-pub/CQmanager/logger"
)

func init() {
	prometheus.MustRegister(pendingSamples)
	prometheus.MustRegister(largestGroup)
	prometheus.MustRegister(deferredSamples)
	prometheus.MustRegister(runningWorkers)
}

var pendingSamples = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "cqmanager",
	Subsystem: "queue",
	Name:      "pending_samples",
	Help:      "Number of samples waiting in the batch queue.",
})

var largestGroup = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "cqmanager",
	Subsystem: "queue",
	Name:      "largest_group_samples",
	Help:      "Sample count of the largest pending batch group.",
})

var deferredSamples = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "cqmanager",
	Subsystem: "queue",
	Name:      "deferred_samples",
	Help:      "Number of samples parked until their base analysis completes.",
})

var runningWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "cqmanager",
	Subsystem: "workers",
	Name:      "running",
	Help:      "Number of running analysis worker containers.",
})

// QueueStats is implemented by the scheduler.
type QueueStats interface {
	QueueDepth() int
	LargestGroupSize() int
	DeferredCount() int
}

// WorkerCounter counts running workers by name prefix. Implemented by
// the docker launcher.
type WorkerCounter interface {
	RunningCount(ctx context.Context, prefix string) (int, error)
}

// Watch updates the gauges every 5 seconds. This blocks until the
// context is canceled.
func Watch(ctx context.Context, stats QueueStats, workers WorkerCounter, prefix string, log logger.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pendingSamples.Set(float64(stats.QueueDepth()))
			largestGroup.Set(float64(stats.LargestGroupSize()))
			deferredSamples.Set(float64(stats.DeferredCount()))

			count, err := workers.RunningCount(ctx, prefix)
			if err != nil {
				log.Error("Error counting workers for metrics", err)
				continue
			}
			runningWorkers.Set(float64(count))
		}
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
