package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dragonsend/dispatch-engine/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	DeliveriesSent     *prometheus.CounterVec
	DeliveriesFailed   *prometheus.CounterVec
	SendLatency        *prometheus.HistogramVec
	DispatchInProgress prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DeliveriesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deliveries_sent_total",
			Help: "Total number of successfully delivered messages.",
		}, []string{"provider_kind"}),

		DeliveriesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deliveries_failed_total",
			Help: "Total number of failed deliveries, by failure kind.",
		}, []string{"provider_kind", "fail_kind"}),

		SendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "delivery_send_seconds",
			Help:    "Wire latency of one unit of work, from build to provider ack.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider_kind"}),

		DispatchInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_in_progress",
			Help: "1 while a dispatch run is executing, 0 otherwise.",
		}),
	}

	reg.MustRegister(
		m.DeliveriesSent,
		m.DeliveriesFailed,
		m.SendLatency,
		m.DispatchInProgress,
	)

	return m
}

// EngineHooks returns the metric callback functions expected by engine.Hooks.
// Centralises the prometheus observation calls so the engine stays
// import-free.
func (m *Metrics) EngineHooks() (
	onSent func(domain.ProviderKind, time.Duration),
	onFailed func(domain.ProviderKind, domain.FailKind),
) {
	onSent = func(k domain.ProviderKind, latency time.Duration) {
		m.DeliveriesSent.WithLabelValues(string(k)).Inc()
		m.SendLatency.WithLabelValues(string(k)).Observe(latency.Seconds())
	}
	onFailed = func(k domain.ProviderKind, fail domain.FailKind) {
		m.DeliveriesFailed.WithLabelValues(string(k), string(fail)).Inc()
	}
	return
}
