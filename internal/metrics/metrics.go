package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var collectors = []prometheus.Collector{
	ImportedRecords,
	ImportFailures,
	Anomalies,
	StageDuration,
	RequestCount,
	RequestDuration,
}

// Register registers all collectors with the default registry.
func Register() error {
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			return fmt.Errorf("could not register %s with Prometheus", c)
		}
	}

	return nil
}

// Unregister unregisters all collectors from the default registry.
//
// This is needed to register them again, e.g. in tests.
func Unregister() bool {
	ok := true
	for _, c := range collectors {
		if !prometheus.Unregister(c) {
			ok = false
		}
	}

	return ok
}

var ImportedRecords = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hcb_imported_records_total",
		Help: "How many raw records were upserted, partitioned by source.",
	},
	[]string{"source"},
)

var ImportFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hcb_import_failures_total",
		Help: "How many imports failed, partitioned by source.",
	},
	[]string{"source"},
)

var Anomalies = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hcb_anomalies_total",
		Help: "How many data anomalies were reported, partitioned by kind.",
	},
	[]string{"kind"},
)

var StageDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "hcb_stage_duration_seconds",
		Help:    "The duration of pipeline stages in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	},
	[]string{"stage"},
)

var RequestCount = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "requests_total",
		Help: "How many HTTP requests processed, partitioned by status code and HTTP method.",
	},
	[]string{"code", "method", "url"},
)

var RequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "request_duration_seconds",
		Help: "The HTTP request latencies in seconds.",
	},
	[]string{"code", "method", "url"},
)
