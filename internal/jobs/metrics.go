package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	capsulesUnlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "time_capsule_capsules_unlocked_total",
		Help: "Capsules transitioned to unlocked by the unlock sweep",
	})

	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "time_capsule_notifications_sent_total",
			Help: "Notifications emailed and recorded, by type",
		},
		[]string{"type"},
	)

	notificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "time_capsule_notification_failures_total",
			Help: "Notifications that could not be delivered or recorded, by type",
		},
		[]string{"type"},
	)

	sweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "time_capsule_sweep_runs_total",
			Help: "Sweep executions by sweep and outcome",
		},
		[]string{"sweep", "outcome"},
	)
)
