package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		collectionTransitionsTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by status (pending/completed/rejected).",
		},
		[]string{"status"},
	)

	collectionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collection_transitions_total",
			Help: "Collection-axis transitions by target state.",
		},
		[]string{"to"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func IncCollectionTransition(to string) {
	collectionTransitionsTotal.WithLabelValues(norm(to)).Inc()
}
