package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(membershipsExpiredTotal) }

var membershipsExpiredTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "memberships_expired_total",
		Help: "Memberships demoted to EXPIRED by the periodic sweep.",
	},
)

func AddMembershipsExpired(n int) {
	if n > 0 {
		membershipsExpiredTotal.Add(float64(n))
	}
}
