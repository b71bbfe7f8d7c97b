package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Dispatch loop metrics

	IterationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "dispatch_iterations_total",
		Help:      "Total run_once iterations completed by this process.",
	})

	IterationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scheduler",
		Name:      "dispatch_iteration_duration_seconds",
		Help:      "Wall time of a single run_once iteration.",
		Buckets:   prometheus.DefBuckets,
	})

	SleepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scheduler",
		Name:      "dispatch_sleep_duration_seconds",
		Help:      "Computed sleep duration returned by run_once.",
		Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 300, 900},
	})

	EntriesFiredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "entries_fired_total",
		Help:      "Total entries handed to the sink, by entry kind.",
	}, []string{"kind"})

	SinkErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "sink_errors_total",
		Help:      "Total sink.Send failures, by entry kind.",
	}, []string{"kind"})

	LockAcquisitionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "leader_lock_acquisitions_total",
		Help:      "Total successful leader lock acquisitions by this process.",
	})

	LockLossesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "leader_lock_losses_total",
		Help:      "Total times this process's refresh_lock call failed.",
	})

	// Process lifecycle

	SchedulerStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scheduler",
		Name:      "start_time_seconds",
		Help:      "Unix timestamp when this process started.",
	})

	SchedulerShutdownsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "shutdowns_total",
		Help:      "Number of times this process has shut down.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scheduler",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		IterationsTotal,
		IterationDuration,
		SleepDuration,
		EntriesFiredTotal,
		SinkErrorsTotal,
		LockAcquisitionsTotal,
		LockLossesTotal,
		SchedulerStartTime,
		SchedulerShutdownsTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
