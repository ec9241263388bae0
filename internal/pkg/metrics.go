package pkg

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JoinRequests counts join requests by resulting status or error code.
	JoinRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circle_join_requests_total",
		Help: "Circle join requests by result",
	}, []string{"result"})

	// InteractionToggles counts keyed reaction/favorite toggles.
	InteractionToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "message_interaction_toggles_total",
		Help: "Reaction and favorite toggles by kind and result",
	}, []string{"kind", "result"})

	// ArrayReplacements counts whole-array PATCH writes.
	ArrayReplacements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "message_array_replacements_total",
		Help: "Whole-array reaction/favorite replacements by result",
	}, []string{"result"})

	OutboxDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interaction_outbox_deliveries_total",
		Help: "Outbox deliveries by result",
	}, []string{"result"})

	SummaryCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reaction_summary_cache_total",
		Help: "Reaction summary cache lookups by result",
	}, []string{"result"})
)
