// Package metrics exposes Prometheus collectors for proof jobs, remote
// polling and the HTTP front end.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mrz1836/zkdrop/internal/constants"
	"github.com/mrz1836/zkdrop/internal/dispatch"
	"github.com/mrz1836/zkdrop/internal/remote"
)

const namespace = "zkdrop"

// Metrics owns a private registry so tests and multiple servers never
// collide on the default one.
type Metrics struct {
	registry        *prometheus.Registry
	jobsTotal       *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	pollsTotal      *prometheus.CounterVec
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var (
	_ dispatch.Recorder   = (*Metrics)(nil)
	_ remote.PollObserver = (*Metrics)(nil)
)

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		jobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "total",
				Help:      "Proof jobs by program, mode and outcome",
			},
			[]string{"program", "mode", "outcome"},
		),
		jobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "duration_seconds",
				Help:      "Proof job duration in seconds",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"program", "mode"},
		),
		pollsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "remote",
				Name:      "polls_total",
				Help:      "Remote status polls by stage and reported status",
			},
			[]string{"stage", "status"},
		),
		requestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"method", "path"},
		),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveJob implements dispatch.Recorder.
func (m *Metrics) ObserveJob(program string, mode dispatch.Mode, outcome string, d time.Duration) {
	m.jobsTotal.WithLabelValues(program, mode.String(), outcome).Inc()
	m.jobDuration.WithLabelValues(program, mode.String()).Observe(d.Seconds())
}

// ObservePoll implements remote.PollObserver.
func (m *Metrics) ObservePoll(stage string, status constants.SessionStatus) {
	m.pollsTotal.WithLabelValues(stage, status.String()).Inc()
}

// Middleware returns a gin middleware recording request count and latency.
// Paths are labeled by route template; unmatched paths share one label.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		m.requestCounter.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
