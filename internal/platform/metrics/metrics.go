package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "card_ledger_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "card_ledger_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "route"})

	AuthorizationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "card_ledger_authorization_decisions_total",
		Help: "Authorization outcomes, labeled by decline reason (empty when approved)",
	}, []string{"outcome", "reason"})

	SerializationRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "card_ledger_serialization_retries_total",
		Help: "Serializable units of work retried after a serialization conflict",
	})

	IdempotentReplays = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "card_ledger_idempotent_replays_total",
		Help: "Requests answered from the idempotency cache",
	}, []string{"scope_kind"})

	OutboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "card_ledger_outbox_published_total",
		Help: "Outbox publish attempts, labeled by result",
	}, []string{"result"})

	LedgerInvariantViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "card_ledger_invariant_violations_total",
		Help: "Detected debit/credit imbalances. Any non-zero value needs immediate attention",
	})

	ProcessorEventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "card_ledger_processor_events_total",
		Help: "Processor webhook events consumed, labeled by type and result",
	}, []string{"type", "result"})
)

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
