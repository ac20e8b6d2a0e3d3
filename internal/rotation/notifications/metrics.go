package notifications

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rotor_notifications_sent_total",
		Help: "Total notifications delivered, by provider",
	}, []string{"provider"})

	notificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rotor_notifications_failed_total",
		Help: "Total notification deliveries that failed, by provider",
	}, []string{"provider"})

	notificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rotor_notifications_dropped_total",
		Help: "Total notification events dropped due to queue overflow",
	})
)
