// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the task coach.
var (
	// Ledger counters.
	ExpGrantedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_exp_granted_total",
			Help: "Total experience granted through ledger deltas",
		},
		[]string{"owner"},
	)

	CoinsChangedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_coins_changed_total",
			Help: "Total coins moved through the ledger, split by direction",
		},
		[]string{"owner", "direction"},
	)

	LevelChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_level_changes_total",
			Help: "Total level-up and level-down transitions",
		},
		[]string{"direction"},
	)

	LedgerConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_ledger_conflicts_total",
			Help: "Total optimistic write conflicts seen by the ledger",
		},
		[]string{"operation"},
	)

	PunishmentsAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_punishments_applied_total",
			Help: "Total punishments applied by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	MilestoneRewardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_milestone_rewards_total",
			Help: "Total streak milestone reward attempts by outcome",
		},
		[]string{"days", "outcome"},
	)

	PurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_purchases_total",
			Help: "Total shop purchase attempts by item and outcome",
		},
		[]string{"item_code", "outcome"},
	)

	RepliesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_replies_processed_total",
			Help: "Total free-text replies processed",
		},
		[]string{"status"},
	)

	TaskUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_task_updates_total",
			Help: "Total parsed task updates applied by action",
		},
		[]string{"action"},
	)

	// Gauges.
	UserLevel = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coach_user_level",
			Help: "Current level of each owner",
		},
		[]string{"owner"},
	)

	UserCoins = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coach_user_coins",
			Help: "Current coin balance of each owner",
		},
		[]string{"owner"},
	)

	// Scheduler metrics.
	SchedulerJobsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_run_total",
			Help: "Total scheduler job executions",
		},
		[]string{"job", "status"},
	)

	SchedulerNotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_notifications_total",
			Help: "Total notification deliveries by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	SchedulerLastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_last_run_timestamp",
			Help: "Unix timestamp of the last run of each job",
		},
		[]string{"job"},
	)

	SchedulerJobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Time taken to execute a scheduler job",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"job"},
	)
)

// RecordExpGranted records experience granted to an owner.
func RecordExpGranted(owner string, exp int) {
	if exp > 0 {
		ExpGrantedTotal.WithLabelValues(owner).Add(float64(exp))
	}
}

// RecordCoinsChanged records a coin movement. Positive amounts are credits.
func RecordCoinsChanged(owner string, delta int) {
	switch {
	case delta > 0:
		CoinsChangedTotal.WithLabelValues(owner, "credit").Add(float64(delta))
	case delta < 0:
		CoinsChangedTotal.WithLabelValues(owner, "debit").Add(float64(-delta))
	}
}

// RecordLevelChange records a level transition from oldLevel to newLevel.
func RecordLevelChange(oldLevel, newLevel int) {
	switch {
	case newLevel > oldLevel:
		LevelChangesTotal.WithLabelValues("up").Add(float64(newLevel - oldLevel))
	case newLevel < oldLevel:
		LevelChangesTotal.WithLabelValues("down").Add(float64(oldLevel - newLevel))
	}
}

// RecordLedgerConflict records an optimistic write conflict.
func RecordLedgerConflict(operation string) {
	LedgerConflictsTotal.WithLabelValues(operation).Inc()
}

// RecordPunishment records a punishment outcome ("applied" or "duplicate").
func RecordPunishment(punishmentType, outcome string) {
	PunishmentsAppliedTotal.WithLabelValues(punishmentType, outcome).Inc()
}

// RecordMilestoneReward records a milestone reward outcome ("granted" or "duplicate").
func RecordMilestoneReward(days, outcome string) {
	MilestoneRewardsTotal.WithLabelValues(days, outcome).Inc()
}

// RecordPurchase records a purchase attempt outcome.
func RecordPurchase(itemCode, outcome string) {
	PurchasesTotal.WithLabelValues(itemCode, outcome).Inc()
}

// RecordReplyProcessed records a processed reply.
func RecordReplyProcessed(status string) {
	RepliesProcessedTotal.WithLabelValues(status).Inc()
}

// RecordTaskUpdate records an applied task update.
func RecordTaskUpdate(action string) {
	TaskUpdatesTotal.WithLabelValues(action).Inc()
}

// SetUserState sets the level and coin gauges of an owner.
func SetUserState(owner string, level, coins int) {
	UserLevel.WithLabelValues(owner).Set(float64(level))
	UserCoins.WithLabelValues(owner).Set(float64(coins))
}

// RecordSchedulerJobRun records a scheduler job execution.
func RecordSchedulerJobRun(job, status string) {
	SchedulerJobsRunTotal.WithLabelValues(job, status).Inc()
}

// RecordNotification records a delivery attempt on a channel.
func RecordNotification(channel string, ok bool) {
	outcome := "sent"
	if !ok {
		outcome = "failed"
	}
	SchedulerNotificationsTotal.WithLabelValues(channel, outcome).Inc()
}

// SetSchedulerLastRun sets the timestamp of the last run of job.
func SetSchedulerLastRun(job string) {
	SchedulerLastRunTimestamp.WithLabelValues(job).SetToCurrentTime()
}

// ObserveSchedulerJobDuration observes the duration of a scheduler job.
func ObserveSchedulerJobDuration(job string, seconds float64) {
	SchedulerJobDurationSeconds.WithLabelValues(job).Observe(seconds)
}
