package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "calltrack_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	Dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "calltrack_dispatch_total", Help: "Provider dispatch triggers"},
		[]string{"result"},
	)
	ProviderOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "calltrack_provider_outcomes_total", Help: "Simulated provider outcomes"},
		[]string{"outcome"},
	)
	ProviderDelay = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "calltrack_provider_delay_seconds", Help: "Simulated provider response delay"},
	)
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "calltrack_webhook_events_total", Help: "Status callbacks applied"},
		[]string{"status"},
	)
	IdempotentCallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "calltrack_idempotent_callbacks_total", Help: "Callbacks against already-finalized calls"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, Dispatches, ProviderOutcomes, ProviderDelay, WebhookEvents, IdempotentCallbacks)
}
