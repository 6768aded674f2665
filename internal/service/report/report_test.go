package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/task-coach/internal/models"
	"github.com/aimd54/task-coach/internal/repository"
	"github.com/aimd54/task-coach/internal/service/ledger"
	"github.com/aimd54/task-coach/internal/service/tasks"
	"github.com/aimd54/task-coach/pkg/logger"
	"github.com/aimd54/task-coach/test/mocks"
)

func TestCalculateTaskStats(t *testing.T) {
	completed := []models.Task{
		{Quadrant: models.Q1, Status: models.TaskStatusCompleted},
		{Quadrant: models.Q1, Status: models.TaskStatusCompleted},
		{Quadrant: models.Q3, Status: models.TaskStatusCompleted},
	}
	open := []models.Task{
		{Quadrant: models.Q2, Status: models.TaskStatusActive, ProgressPercentage: 50},
		{Quadrant: models.Q4, Status: models.TaskStatusPaused, ProgressPercentage: 0},
	}
	for i := range completed {
		completed[i].ProgressPercentage = 100
	}

	stats := CalculateTaskStats(completed, open)
	assert.Equal(t, 3, stats.Completed)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 1, stats.Paused)
	assert.Equal(t, 2, stats.ByQuadrant[models.Q1])
	assert.Equal(t, 0, stats.ByQuadrant[models.Q2])
	assert.InDelta(t, 60.0, stats.CompletionRate, 0.001)
	assert.InDelta(t, 70.0, stats.AverageProgress, 0.001)

	empty := CalculateTaskStats(nil, nil)
	assert.Zero(t, empty.CompletionRate)
	assert.Zero(t, empty.AverageProgress)
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name     string
		stats    TaskStats
		period   Period
		contains []string
		excludes []string
	}{
		{
			name:     "urgent heavy month",
			stats:    TaskStats{Completed: 12, ByQuadrant: map[models.Quadrant]int{models.Q1: 8, models.Q2: 2, models.Q3: 2}},
			period:   Monthly,
			contains: []string{"67% of completed work was urgent", "a good month"},
			excludes: []string{"Well done"},
		},
		{
			name:     "planned month",
			stats:    TaskStats{Completed: 20, ByQuadrant: map[models.Quadrant]int{models.Q1: 4, models.Q2: 10, models.Q4: 6}},
			period:   Monthly,
			contains: []string{"50% of completed work was important but not urgent", "an excellent month"},
			excludes: []string{"plan ahead"},
		},
		{
			name:     "quiet week",
			stats:    TaskStats{Completed: 1, ByQuadrant: map[models.Quadrant]int{models.Q3: 1}},
			period:   Weekly,
			contains: []string{"Keep going"},
		},
		{
			name:     "nothing done",
			stats:    TaskStats{ByQuadrant: map[models.Quadrant]int{}},
			period:   Weekly,
			contains: []string{"Keep going"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := strings.Join(Analyze(tt.stats, tt.period), "\n")
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, out, unwanted)
			}
		})
	}
}

func TestCalculateLedgerStats(t *testing.T) {
	exp := []models.ExpHistory{
		{ExpGained: 100, CoinsGained: 5, LevelBefore: 1, LevelAfter: 2},
		{ExpGained: 40, CoinsGained: 50, LevelBefore: 2, LevelAfter: 2},
		{ExpGained: 0, CoinsGained: -50, LevelBefore: 2, LevelAfter: 2},
	}
	punishments := []models.PunishmentHistory{
		{PunishmentType: models.PunishmentNoReply, CoinsDeducted: 10, ExpDeducted: 15},
		{PunishmentType: models.PunishmentTaskDelay, CoinsDeducted: 15},
		{PunishmentType: models.PunishmentTaskDelay, CoinsDeducted: 15},
	}

	stats := CalculateLedgerStats(exp, punishments)
	assert.Equal(t, 140, stats.ExpEarned)
	assert.Equal(t, 55, stats.CoinsEarned)
	assert.Equal(t, 50, stats.CoinsSpent)
	assert.Equal(t, 1, stats.LevelUps)
	assert.Equal(t, 40, stats.CoinsPenalty)
	assert.Equal(t, 15, stats.ExpPenalty)
	assert.Equal(t, map[string]int{"no_reply": 1, "task_delay": 2}, stats.PenaltyByType)
}

func setupTestService(t *testing.T) (*Service, *ledger.Service, *tasks.Store, *mocks.MockNotifier) {
	t.Helper()
	db := mocks.NewTestDB(t)
	log := logger.New("debug", "text", "stdout")
	l := ledger.NewService(db, ledger.Options{}, log)
	store := tasks.NewStore(db, time.Second, log)
	notifier := &mocks.MockNotifier{}
	return NewService(l, store, repository.NewHistoryRepository(db), notifier, log), l, store, notifier
}

func TestSendWeekly(t *testing.T) {
	svc, l, store, notifier := setupTestService(t)
	ctx := context.Background()

	done, err := store.Create(ctx, "alice", "Ship release", models.Q1, 60)
	require.NoError(t, err)
	_, err = store.Complete(ctx, "alice", tasks.Code{Quadrant: done.Quadrant, Order: done.TaskOrder})
	require.NoError(t, err)
	_, err = store.Create(ctx, "alice", "Read book", models.Q2, 10)
	require.NoError(t, err)

	_, err = l.ApplyDelta(ctx, "alice", 80, 20, "progress")
	require.NoError(t, err)

	notified, err := svc.SendWeekly(ctx, "alice", "alice")
	require.NoError(t, err)
	assert.True(t, notified["mock"])

	sent := notifier.Messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Body, "Completed: 1 tasks")
	assert.Contains(t, sent[0].Body, "Q1-1 Ship release")
	assert.Contains(t, sent[0].Body, "EXP earned: 80")
	assert.Contains(t, sent[0].Body, "unlock at LV8")
	assert.NotContains(t, sent[0].Body, "Completed by quadrant")
	assert.Equal(t, Weekly.Title, sent[0].Subject)
}

func TestSendMonthly(t *testing.T) {
	svc, _, store, notifier := setupTestService(t)
	ctx := context.Background()
	now := time.Now()

	for _, name := range []string{"Fix outage", "Answer auditor"} {
		task, err := store.Create(ctx, "alice", name, models.Q1, 0)
		require.NoError(t, err)
		_, err = store.Complete(ctx, "alice", tasks.Code{Quadrant: task.Quadrant, Order: task.TaskOrder})
		require.NoError(t, err)
	}
	_, err := store.Create(ctx, "alice", "Plan roadmap", models.Q2, 40)
	require.NoError(t, err)

	// Twelve days on, the tasks are outside the weekly window but inside the monthly one.
	svc.now = func() time.Time { return now.Add(12 * 24 * time.Hour) }

	weekly, err := svc.Build(ctx, "alice", Weekly)
	require.NoError(t, err)
	assert.Zero(t, weekly.Tasks.Completed)

	notified, err := svc.SendMonthly(ctx, "alice", "alice")
	require.NoError(t, err)
	assert.True(t, notified["mock"])

	sent := notifier.Messages()
	require.Len(t, sent, 1)
	assert.Equal(t, Monthly.Title, sent[0].Subject)
	assert.Contains(t, sent[0].Body, "Monthly report")
	assert.Contains(t, sent[0].Body, "Completed: 2 tasks")
	assert.Contains(t, sent[0].Body, "Average progress: 80%")
	assert.Contains(t, sent[0].Body, "100% of completed work was urgent")
	assert.Contains(t, sent[0].Body, "Keep going")
}

func TestBuild_AnalyticsUnlocked(t *testing.T) {
	svc, l, _, _ := setupTestService(t)
	ctx := context.Background()

	_, err := l.UpdateProfile(ctx, "alice", "test", func(p *models.UserGamification) error {
		p.Level = 8
		return nil
	})
	require.NoError(t, err)

	r, err := svc.Build(ctx, "alice", Weekly)
	require.NoError(t, err)
	assert.True(t, r.Analytics)
	assert.Contains(t, Render(r), "Completed by quadrant")
}
