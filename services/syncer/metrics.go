package syncer

import "github.com/prometheus/client_golang/prometheus"

var (
	cyclesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketsync_sync_cycles_total",
		Help: "Sync cycles by terminal result.",
	}, []string{"result"})
	cyclesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ticketsync_sync_cycles_skipped_total",
		Help: "Triggers dropped because a cycle was already in flight.",
	})
	itemsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ticketsync_items_processed_total",
		Help: "Completed remote items recorded in the ledger.",
	})
	pointsAwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ticketsync_points_awarded_total",
		Help: "Points added to member progress.",
	})
)

func init() {
	prometheus.MustRegister(cyclesTotal, cyclesSkipped, itemsProcessed, pointsAwarded)
}
