package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/copyleftdev/planeopt/internal/problem"
)

// metrics holds the service collectors. Each Server owns its registry so
// several servers can coexist in one process.
type metrics struct {
	registry       *prometheus.Registry
	solves         *prometheus.CounterVec
	iterations     *prometheus.HistogramVec
	duration       *prometheus.HistogramVec
	surfaceHits    prometheus.Counter
	surfaceMisses  prometheus.Counter
	jobsInProgress prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planeopt_solves_total",
			Help: "Completed solves by method and termination status.",
		}, []string{"method", "status"}),
		iterations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "planeopt_solve_iterations",
			Help:    "Iterations reported per solve.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 13),
		}, []string{"method"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "planeopt_solve_duration_seconds",
			Help:    "Wall time per solve.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		surfaceHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planeopt_surface_cache_hits_total",
			Help: "Surface requests served from the grid cache.",
		}),
		surfaceMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planeopt_surface_cache_misses_total",
			Help: "Surface requests that sampled the objective.",
		}),
		jobsInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planeopt_jobs_in_progress",
			Help: "Asynchronous solves currently running.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.solves,
		m.iterations,
		m.duration,
		m.surfaceHits,
		m.surfaceMisses,
		m.jobsInProgress,
	)
	return m
}

func (m *metrics) observeSolve(out *problem.Outcome) {
	method := out.Method.String()
	m.solves.WithLabelValues(method, out.Result.Status.String()).Inc()
	m.iterations.WithLabelValues(method).Observe(float64(out.Result.Iterations))
	m.duration.WithLabelValues(method).Observe(out.Duration.Seconds())
}

func (m *metrics) observeFailure(method string, elapsed time.Duration) {
	m.solves.WithLabelValues(method, "error").Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *metrics) observeSurface(hit bool) {
	if hit {
		m.surfaceHits.Inc()
	} else {
		m.surfaceMisses.Inc()
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
