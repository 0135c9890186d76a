package observability

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/arbor/pkg/domain"
)

// Step outcomes used as the "outcome" label.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Metrics holds the engine collectors.
type Metrics struct {
	Steps        *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
	Suspensions  prometheus.Counter
	Unresolved   prometheus.Counter
	Conclusions  prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg uses a fresh registry, which keeps tests independent.
func NewMetrics(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_steps_total",
				Help: "Executed plan steps by type and outcome.",
			},
			[]string{"type", "outcome"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbor_step_duration_seconds",
				Help:    "Duration of plan steps, retries included.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"type"},
		),
		Suspensions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbor_suspensions_total",
			Help: "Runs suspended waiting for a human answer.",
		}),
		Unresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbor_unresolved_dependencies_total",
			Help: "Dependency tokens that had no result when their step ran.",
		}),
		Conclusions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbor_conclusions_total",
			Help: "Runs that reached a conclusion.",
		}),
		gatherer: reg,
	}

	for _, c := range []prometheus.Collector{m.Steps, m.StepDuration, m.Suspensions, m.Unresolved, m.Conclusions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Hooks records every lifecycle event.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepComplete: func(_ context.Context, e *domain.StepEvent) {
			t := e.StepType.String()
			m.Steps.WithLabelValues(t, outcome(e.Err)).Inc()
			m.StepDuration.WithLabelValues(t).Observe(e.Duration.Seconds())
		},
		OnSuspend: func(context.Context, *domain.StepEvent) {
			m.Suspensions.Inc()
		},
		OnResume: func(_ context.Context, e *domain.StepEvent) {
			m.Steps.WithLabelValues(e.StepType.String(), OutcomeOK).Inc()
		},
		OnUnresolvedDependency: func(context.Context, *domain.DependencyEvent) {
			m.Unresolved.Inc()
		},
		OnConclude: func(context.Context, *domain.ExecutionState) {
			m.Conclusions.Inc()
		},
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	default:
		return OutcomeError
	}
}
