package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acme/sales-dialer/internal/dialer"
	"github.com/acme/sales-dialer/internal/domain"
)

// Metrics exports dial run activity to Prometheus. It is registered as a
// dialer listener.
type Metrics struct {
	dialer.NopListener

	registry *prometheus.Registry

	dialsStarted   prometheus.Counter
	dialsCompleted *prometheus.CounterVec
	dialErrors     prometheus.Counter
	runsCompleted  prometheus.Counter
	queueSize      prometheus.Gauge
	cursor         prometheus.Gauge
	running        prometheus.Gauge
	paused         prometheus.Gauge
}

// NewMetrics builds the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dialsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dialer",
			Name:      "dials_started_total",
			Help:      "Dial attempts handed to the call bridge.",
		}),
		dialsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dialer",
			Name:      "dials_completed_total",
			Help:      "Processed targets by outcome.",
		}, []string{"outcome"}),
		dialErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dialer",
			Name:      "errors_total",
			Help:      "Errors reported by the scheduler.",
		}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dialer",
			Name:      "runs_completed_total",
			Help:      "Runs that exhausted their queue.",
		}),
		queueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dialer",
			Name:      "queue_size",
			Help:      "Targets in the current run.",
		}),
		cursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dialer",
			Name:      "queue_cursor",
			Help:      "Targets taken from the current run so far.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dialer",
			Name:      "running",
			Help:      "1 while a run is active.",
		}),
		paused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dialer",
			Name:      "paused",
			Help:      "1 while the active run is paused.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.dialsStarted, m.dialsCompleted, m.dialErrors, m.runsCompleted,
		m.queueSize, m.cursor, m.running, m.paused,
	)
	return m
}

// Registry exposes the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) OnDialStart(domain.DialTarget) {
	m.dialsStarted.Inc()
}

func (m *Metrics) OnDialComplete(_ domain.DialTarget, succeeded bool) {
	outcome := "failed"
	if succeeded {
		outcome = "succeeded"
	}
	m.dialsCompleted.WithLabelValues(outcome).Inc()
}

func (m *Metrics) OnQueueComplete([]domain.DialTarget) {
	m.runsCompleted.Inc()
}

func (m *Metrics) OnError(string) {
	m.dialErrors.Inc()
}

func (m *Metrics) OnStatusUpdate(status domain.StatusSnapshot) {
	m.queueSize.Set(float64(status.TotalCount))
	m.cursor.Set(float64(status.CurrentIndex))
	m.running.Set(boolGauge(status.IsRunning))
	m.paused.Set(boolGauge(status.IsPaused))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
