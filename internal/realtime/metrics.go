package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_messages_sent_total",
		Help: "Total number of stored chat messages",
	}, []string{"channel"})

	messagesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_messages_rejected_total",
		Help: "Total number of chat messages refused before storage",
	}, []string{"reason"})

	rideUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_ride_updates_total",
		Help: "Total number of ride events fanned out to websocket rooms",
	}, []string{"subject"})
)
