package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	ProjectsCreated  prometheus.Counter
	TurnsTotal       prometheus.Counter
	TurnFailures     *prometheus.CounterVec
	RateLimited      prometheus.Counter
	BackendCallTimes *prometheus.HistogramVec
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			ProjectsCreated: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "querydeck",
				Name:      "projects_created_total",
				Help:      "Total projects created",
			}),
			TurnsTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "querydeck",
				Name:      "chat_turns_total",
				Help:      "Total chat turns started",
			}),
			TurnFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "querydeck",
				Name:      "chat_turn_failures_total",
				Help:      "Chat turns that ended in an error, by kind",
			}, []string{"kind"}),
			RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "querydeck",
				Name:      "chat_turns_rate_limited_total",
				Help:      "Chat turns rejected by the per-user rate limit",
			}),
			BackendCallTimes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "querydeck",
				Name:      "ai_backend_call_seconds",
				Help:      "Latency of AI backend calls, by operation",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
			}, []string{"operation"}),
		}
		prometheus.MustRegister(
			global.ProjectsCreated,
			global.TurnsTotal,
			global.TurnFailures,
			global.RateLimited,
			global.BackendCallTimes,
		)
	})
	return global
}

// ObserveBackendCall records one AI backend round trip.
func (m *Metrics) ObserveBackendCall(operation string, start time.Time) {
	m.BackendCallTimes.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
