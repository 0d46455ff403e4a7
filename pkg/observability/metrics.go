package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatflow"

// Metrics holds the run collectors. Each instance registers its own
// collectors, so tests can use a private registry.
type Metrics struct {
	RunsStarted *prometheus.CounterVec
	RunsExited  *prometheus.CounterVec
	RunsActive  prometheus.Gauge
	RunDuration *prometheus.HistogramVec
	Steps       *prometheus.CounterVec
	Dispatches  *prometheus.CounterVec

	gatherer prometheus.Gatherer
	started  sync.Map // run id -> time.Time
}

// NewMetrics creates the collectors and registers them with reg.
// reg is also used to serve them when it is a prometheus.Gatherer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of workflow runs started",
		}, []string{"workflow", "trigger"}),
		RunsExited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_exited_total",
			Help:      "Total number of workflow runs that exited",
		}, []string{"workflow", "reason"}), // reason: completed, exit_flow, error, cancelled
		RunsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Runs started by this process that have not exited",
		}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time from start to exit of runs started by this process",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600, 14400, 86400},
		}, []string{"workflow", "reason"}),
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Total number of steps evaluated",
		}, []string{"workflow", "status"}), // status: evaluated, skipped
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Total number of actions dispatched",
		}, []string{"workflow", "action", "status"}), // status: success, error
	}
	reg.MustRegister(m.RunsStarted, m.RunsExited, m.RunsActive, m.RunDuration, m.Steps, m.Dispatches)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// Handler serves the registered collectors.
func (m *Metrics) Handler() http.Handler {
	if m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(_ context.Context, ev *domain.RunEvent) {
			m.RunsStarted.WithLabelValues(ev.Workflow, string(ev.Trigger)).Inc()
			m.RunsActive.Inc()
			m.started.Store(ev.RunID, ev.Timestamp)
		},
		OnRunExit: func(_ context.Context, ev *domain.RunEvent) {
			m.RunsExited.WithLabelValues(ev.Workflow, ev.Reason).Inc()
			if v, ok := m.started.LoadAndDelete(ev.RunID); ok {
				m.RunsActive.Dec()
				m.RunDuration.WithLabelValues(ev.Workflow, ev.Reason).Observe(ev.Timestamp.Sub(v.(time.Time)).Seconds())
			}
		},
		OnStep: func(_ context.Context, ev *domain.StepEvent) {
			status := "evaluated"
			if ev.Skipped {
				status = "skipped"
			}
			m.Steps.WithLabelValues(ev.Workflow, status).Inc()
		},
		OnDispatch: func(_ context.Context, ev *domain.StepEvent) {
			status := "success"
			if ev.Err != nil {
				status = "error"
			}
			m.Dispatches.WithLabelValues(ev.Workflow, ev.Action, status).Inc()
		},
	}
}
