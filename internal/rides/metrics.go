package rides

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rideTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ride_transitions_total",
		Help: "Total number of committed ride status changes",
	}, []string{"from", "to"})

	rideAcceptConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ride_accept_conflicts_total",
		Help: "Total number of rejected ride accepts",
	}, []string{"reason"})

	rideEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ride_events_dispatched_total",
		Help: "Total number of ride events handled by the dispatcher",
	}, []string{"subject", "result"})

	rideEventQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ride_event_queue_depth",
		Help: "Number of ride events waiting to be published",
	})
)

func recordTransition(from, to string) {
	rideTransitionsTotal.WithLabelValues(from, to).Inc()
}

func recordAcceptConflict(reason string) {
	rideAcceptConflictsTotal.WithLabelValues(reason).Inc()
}

func recordEvent(subject, result string) {
	rideEventsTotal.WithLabelValues(subject, result).Inc()
}
