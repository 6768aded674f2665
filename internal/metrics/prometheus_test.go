package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordExpGranted(t *testing.T) {
	ExpGrantedTotal.Reset()

	RecordExpGranted("alice", 50)
	RecordExpGranted("alice", 30)
	RecordExpGranted("alice", 0)
	RecordExpGranted("bob", 5)

	count := testutil.ToFloat64(ExpGrantedTotal.WithLabelValues("alice"))
	if count != 80 {
		t.Errorf("Expected alice exp = 80, got %f", count)
	}

	count = testutil.ToFloat64(ExpGrantedTotal.WithLabelValues("bob"))
	if count != 5 {
		t.Errorf("Expected bob exp = 5, got %f", count)
	}
}

func TestRecordCoinsChanged(t *testing.T) {
	CoinsChangedTotal.Reset()

	RecordCoinsChanged("alice", 100)
	RecordCoinsChanged("alice", -40)
	RecordCoinsChanged("alice", 0)

	credit := testutil.ToFloat64(CoinsChangedTotal.WithLabelValues("alice", "credit"))
	if credit != 100 {
		t.Errorf("Expected credit = 100, got %f", credit)
	}

	debit := testutil.ToFloat64(CoinsChangedTotal.WithLabelValues("alice", "debit"))
	if debit != 40 {
		t.Errorf("Expected debit = 40, got %f", debit)
	}
}

func TestRecordLevelChange(t *testing.T) {
	LevelChangesTotal.Reset()

	RecordLevelChange(1, 3)
	RecordLevelChange(5, 4)
	RecordLevelChange(4, 4)

	up := testutil.ToFloat64(LevelChangesTotal.WithLabelValues("up"))
	if up != 2 {
		t.Errorf("Expected 2 level-ups, got %f", up)
	}

	down := testutil.ToFloat64(LevelChangesTotal.WithLabelValues("down"))
	if down != 1 {
		t.Errorf("Expected 1 level-down, got %f", down)
	}
}

func TestRecordPunishment(t *testing.T) {
	PunishmentsAppliedTotal.Reset()

	RecordPunishment("no_reply", "applied")
	RecordPunishment("no_reply", "duplicate")
	RecordPunishment("no_reply", "applied")

	count := testutil.ToFloat64(PunishmentsAppliedTotal.WithLabelValues("no_reply", "applied"))
	if count != 2 {
		t.Errorf("Expected 2 applied punishments, got %f", count)
	}
}

func TestSetUserState(t *testing.T) {
	SetUserState("alice", 7, 320)

	if level := testutil.ToFloat64(UserLevel.WithLabelValues("alice")); level != 7 {
		t.Errorf("Expected level = 7, got %f", level)
	}
	if coins := testutil.ToFloat64(UserCoins.WithLabelValues("alice")); coins != 320 {
		t.Errorf("Expected coins = 320, got %f", coins)
	}
}

func TestRecordNotification(t *testing.T) {
	SchedulerNotificationsTotal.Reset()

	RecordNotification("mattermost", true)
	RecordNotification("feishu", false)

	if sent := testutil.ToFloat64(SchedulerNotificationsTotal.WithLabelValues("mattermost", "sent")); sent != 1 {
		t.Errorf("Expected 1 mattermost delivery, got %f", sent)
	}
	if failed := testutil.ToFloat64(SchedulerNotificationsTotal.WithLabelValues("feishu", "failed")); failed != 1 {
		t.Errorf("Expected 1 feishu failure, got %f", failed)
	}
}

func TestObserveSchedulerJobDuration(t *testing.T) {
	ObserveSchedulerJobDuration("daily_review", 0.2)
	SetSchedulerLastRun("daily_review")

	// Histograms are only checked for registration; last-run must be set.
	if ts := testutil.ToFloat64(SchedulerLastRunTimestamp.WithLabelValues("daily_review")); ts <= 0 {
		t.Errorf("Expected last run timestamp to be set, got %f", ts)
	}
}

func TestMetricsRegistration(t *testing.T) {
	metrics := []prometheus.Collector{
		ExpGrantedTotal,
		CoinsChangedTotal,
		LevelChangesTotal,
		LedgerConflictsTotal,
		PunishmentsAppliedTotal,
		MilestoneRewardsTotal,
		PurchasesTotal,
		RepliesProcessedTotal,
		TaskUpdatesTotal,
		UserLevel,
		UserCoins,
		SchedulerJobsRunTotal,
		SchedulerNotificationsTotal,
		SchedulerLastRunTimestamp,
		SchedulerJobDurationSeconds,
	}

	for i, metric := range metrics {
		if metric == nil {
			t.Errorf("Metric %d is nil", i)
		}
	}
}
