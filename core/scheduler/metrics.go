package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	remindersCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "remindbot",
			Name:      "reminders_created_total",
			Help:      "Reminders created, by repeat policy.",
		},
		[]string{"policy"},
	)

	remindersFiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "remindbot",
			Name:      "reminders_fired_total",
			Help:      "Reminders whose timer expired, by repeat policy.",
		},
		[]string{"policy"},
	)

	deliveryFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "remindbot",
			Name:      "delivery_failures_total",
			Help:      "Fired reminders the notification sink failed to deliver.",
		},
	)

	remindersCancelledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "remindbot",
			Name:      "reminders_cancelled_total",
			Help:      "Reminders cancelled by their owner.",
		},
	)

	remindersRestoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "remindbot",
			Name:      "reminders_restored_total",
			Help:      "Reminders processed at startup, by outcome (armed, rescheduled, dropped).",
		},
		[]string{"outcome"},
	)
)
