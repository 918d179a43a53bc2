package notifications

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var notificationsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "notifications_created_total",
	Help: "Total number of stored notifications",
}, []string{"type"})
