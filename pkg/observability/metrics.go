package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/wizards/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wizards"

// Metrics holds the drawer collectors.
type Metrics struct {
	registry *prometheus.Registry

	dispatches    *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	inflight      *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatches_total",
				Help:      "Actions dispatched to drawers, by action and result.",
			},
			[]string{"action", "result"},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Suggestion and explanation requests, by outcome.",
			},
			[]string{"op", "type", "outcome"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of suggestion and explanation requests.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"op", "type"},
		),
		inflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "fetches_in_flight",
				Help:      "Requests currently waiting for the suggestion service.",
			},
			[]string{"op"},
		),
	}
	m.registry.MustRegister(m.dispatches, m.fetches, m.fetchDuration, m.inflight)
	return m
}

// Registry exposes the registry, e.g. to add process collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDispatch: func(_ context.Context, e *domain.DispatchEvent) {
			m.dispatches.WithLabelValues(e.Action, dispatchResult(e.Err)).Inc()
		},
		OnFetchStart: func(_ context.Context, e *domain.FetchEvent) {
			m.inflight.WithLabelValues(string(e.Op)).Inc()
		},
		OnFetchDone: func(_ context.Context, e *domain.FetchEvent) {
			m.inflight.WithLabelValues(string(e.Op)).Dec()
			m.fetches.WithLabelValues(string(e.Op), string(e.SuggestionType), string(e.Outcome)).Inc()
			if e.Outcome != domain.OutcomeCanceled {
				m.fetchDuration.WithLabelValues(string(e.Op), string(e.SuggestionType)).Observe(e.Duration.Seconds())
			}
		},
	}
}

func dispatchResult(err error) string {
	if err == nil {
		return "ok"
	}
	if isStale(err) {
		return "stale"
	}
	return "rejected"
}
