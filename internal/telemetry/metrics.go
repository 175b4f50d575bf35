package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/victornm/quizportal/internal/domain"
	"github.com/victornm/quizportal/internal/errors"
	"github.com/victornm/quizportal/internal/event"
)

const namespace = "quizportal"

// Metrics counts candidate sessions and times calls to the assessment API.
type Metrics struct {
	started  prometheus.Counter
	ended    *prometheus.CounterVec
	active   prometheus.Gauge
	calls    *prometheus.HistogramVec
	requests *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg, prometheus.DefaultRegisterer when nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Candidate sessions that reached the active state.",
		}),
		ended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Candidate sessions by terminal outcome.",
		}, []string{"outcome"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Candidate sessions currently in progress.",
		}),
		calls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "portal_call_duration_seconds",
			Help:      "Duration of calls to the assessment API.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "code"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests served.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(m.started, m.ended, m.active, m.calls, m.requests)

	return m
}

// Subscribe makes the metrics follow the session lifecycle events.
func (m *Metrics) Subscribe(eb *event.Bus) {
	eb.Subscribe(domain.EventNameSessionStarted, "telemetry", func(ctx context.Context, e event.Event) error {
		m.started.Inc()
		m.active.Inc()
		return nil
	})

	eb.Subscribe(domain.EventNameSessionEnded, "telemetry", func(ctx context.Context, e event.Event) error {
		ended := e.(domain.EventSessionEnded)
		m.ended.WithLabelValues(string(ended.Outcome)).Inc()
		switch ended.Outcome {
		case domain.OutcomeUnavailable, domain.OutcomeLoadError:
			// never active
		default:
			m.active.Dec()
		}
		return nil
	})
}

func (m *Metrics) ObserveCall(op string, d time.Duration, err error) {
	code := "OK"
	if err != nil {
		code = errors.Convert(err).GRPCStatus().Code().String()
	}

	m.calls.WithLabelValues(op, code).Observe(d.Seconds())
}
