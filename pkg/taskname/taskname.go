package taskname

const (
	// Tracker tasks
	TrackerReconcileActive = "tracker:reconcile:active"
)

// Queues used by the ticketsync worker, highest priority first.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)
