package punishment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/task-coach/internal/models"
	"github.com/aimd54/task-coach/internal/service/ledger"
	"github.com/aimd54/task-coach/pkg/logger"
)

type mockLedger struct {
	today   time.Time
	applied []ledger.Punishment
	seen    map[string]bool
}

func newMockLedger(today time.Time) *mockLedger {
	return &mockLedger{today: today, seen: make(map[string]bool)}
}

func (m *mockLedger) ApplyPunishment(ctx context.Context, owner string, pun ledger.Punishment) (*ledger.PunishmentResult, error) {
	key := fmt.Sprintf("%s|%s|%s", owner, pun.Type, pun.Reference)
	if m.seen[key] {
		return nil, ledger.ErrPunishmentAlreadyApplied
	}
	m.seen[key] = true
	m.applied = append(m.applied, pun)
	return &ledger.PunishmentResult{CoinsDeducted: pun.Coins, ExpDeducted: pun.Exp}, nil
}

func (m *mockLedger) Today() time.Time { return m.today }

func (m *mockLedger) Owner() string { return "alice" }

func (m *mockLedger) Punish(ctx context.Context, pun ledger.Punishment) (*ledger.PunishmentResult, error) {
	return m.ApplyPunishment(ctx, m.Owner(), pun)
}

func (m *mockLedger) Location() *time.Location { return time.UTC }

func setupTestEngine() (*Engine, *mockLedger) {
	l := newMockLedger(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	return NewEngine(l, logger.New("debug", "text", "stdout")), l
}

func TestNoReplyPenalty(t *testing.T) {
	tests := []struct {
		n     int
		level int
		want  Penalty
	}{
		{0, 5, Penalty{}},
		{1, 5, Penalty{}},
		{2, 5, Penalty{Coins: 20, Exp: 30}},
		{3, 5, Penalty{Coins: 40, Exp: 60}},
		{4, 5, Penalty{Coins: 60, Exp: 100, ClearStreak: true}},
		{5, 5, Penalty{Coins: 80, Exp: 150, ClearStreak: true}},
		{12, 5, Penalty{Coins: 80, Exp: 150, ClearStreak: true}},
		{2, 3, Penalty{Coins: 10, Exp: 15}},
		{5, 1, Penalty{Coins: 40, Exp: 75, ClearStreak: true}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d level=%d", tt.n, tt.level), func(t *testing.T) {
			assert.Equal(t, tt.want, NoReplyPenalty(tt.n, tt.level))
		})
	}
}

func TestNoReplyPenalty_MonotonicInDays(t *testing.T) {
	for _, level := range []int{1, 3, 4, 10, 20} {
		prev := 0
		for n := 0; n <= 30; n++ {
			coins := NoReplyPenalty(n, level).Coins
			assert.GreaterOrEqual(t, coins, prev, "level %d n %d", level, n)
			prev = coins
		}
	}
}

func TestNewbieProtection_HalvesEveryTrigger(t *testing.T) {
	for n := 0; n <= 8; n++ {
		full := NoReplyPenalty(n, 10)
		for level := 1; level <= NewbieMaxLevel; level++ {
			got := NoReplyPenalty(n, level)
			assert.Equal(t, full.Coins/2, got.Coins)
			assert.Equal(t, full.Exp/2, got.Exp)
		}
	}
	for decline := 0; decline <= 100; decline += 5 {
		full := RegressionPenalty(decline, 10)
		got := RegressionPenalty(decline, 2)
		assert.Equal(t, full.Coins/2, got.Coins)
		assert.Equal(t, full.Exp/2, got.Exp)
	}
	for days := 0; days <= 15; days++ {
		full := DelayPenalty(models.Q1, days, 10)
		got := DelayPenalty(models.Q1, days, 1)
		assert.Equal(t, full.Coins/2, got.Coins)
	}
}

func TestDelayPenalty(t *testing.T) {
	assert.Equal(t, Penalty{}, DelayPenalty(models.Q1, 3, 10))
	assert.Equal(t, Penalty{Coins: 15}, DelayPenalty(models.Q1, 4, 10))
	assert.Equal(t, Penalty{Coins: 45}, DelayPenalty(models.Q1, 6, 10))
	assert.Equal(t, Penalty{}, DelayPenalty(models.Q2, 7, 10))
	assert.Equal(t, Penalty{Coins: 20}, DelayPenalty(models.Q2, 9, 10))
	assert.Equal(t, Penalty{}, DelayPenalty(models.Q3, 30, 10))
	assert.Equal(t, Penalty{}, DelayPenalty(models.Q4, 30, 10))
}

func TestRegressionPenalty(t *testing.T) {
	assert.Equal(t, Penalty{}, RegressionPenalty(-10, 10))
	assert.Equal(t, Penalty{}, RegressionPenalty(9, 10))
	assert.Equal(t, Penalty{Coins: 10}, RegressionPenalty(10, 10))
	assert.Equal(t, Penalty{Coins: 20, Exp: 30}, RegressionPenalty(20, 10))
	assert.Equal(t, Penalty{Coins: 20, Exp: 30}, RegressionPenalty(49, 10))
	assert.Equal(t, Penalty{Coins: 40, Exp: 80}, RegressionPenalty(50, 10))
}

func TestEvaluateNoReply(t *testing.T) {
	engine, l := setupTestEngine()
	ctx := context.Background()

	applied, err := engine.EvaluateNoReply(ctx, "alice", 1, 5)
	require.NoError(t, err)
	assert.Nil(t, applied)
	assert.Empty(t, l.applied)

	applied, err = engine.EvaluateNoReply(ctx, "alice", 5, 5)
	require.NoError(t, err)
	require.NotNil(t, applied)
	assert.Equal(t, 80, l.applied[0].Coins)
	assert.Equal(t, 150, l.applied[0].Exp)
	assert.True(t, l.applied[0].ClearStreak)

	// Second run on the same day is absorbed.
	applied, err = engine.EvaluateNoReply(ctx, "alice", 5, 5)
	require.NoError(t, err)
	assert.Nil(t, applied)
	assert.Len(t, l.applied, 1)
}

func TestEvaluateTaskDelays(t *testing.T) {
	engine, l := setupTestEngine()
	updated := func(daysAgo int) time.Time {
		return l.today.AddDate(0, 0, -daysAgo).Add(9 * time.Hour)
	}
	tasks := []models.Task{
		{Name: "ship release", Quadrant: models.Q1, TaskOrder: 1, Status: models.TaskStatusActive, UpdatedAt: updated(5)},
		{Name: "fresh", Quadrant: models.Q1, TaskOrder: 2, Status: models.TaskStatusActive, UpdatedAt: updated(1)},
		{Name: "plan", Quadrant: models.Q2, TaskOrder: 1, Status: models.TaskStatusActive, UpdatedAt: updated(10)},
		{Name: "chores", Quadrant: models.Q4, TaskOrder: 1, Status: models.TaskStatusActive, UpdatedAt: updated(30)},
		{Name: "parked", Quadrant: models.Q1, TaskOrder: 3, Status: models.TaskStatusPaused, UpdatedAt: updated(30)},
	}

	applied, err := engine.EvaluateTaskDelays(context.Background(), "alice", tasks, 10)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, "Q1-1", applied[0].Reference)
	assert.Equal(t, 30, applied[0].Penalty.Coins)
	assert.Equal(t, "Q2-1", applied[1].Reference)
	assert.Equal(t, 30, applied[1].Penalty.Coins)
}

func TestApplyRegression(t *testing.T) {
	engine, l := setupTestEngine()

	applied, err := engine.ApplyRegression(context.Background(), l, "Q1-1", 80, 20, 2)
	require.NoError(t, err)
	require.NotNil(t, applied)
	assert.Equal(t, Penalty{Coins: 20, Exp: 40}, applied.Penalty)
	assert.Equal(t, models.PunishmentRegression, l.applied[0].Type)
	assert.Equal(t, "Q1-1", l.applied[0].Reference)

	applied, err = engine.ApplyRegression(context.Background(), l, "Q1-2", 50, 45, 2)
	require.NoError(t, err)
	assert.Nil(t, applied)
}

func TestApplyRegression_AlreadyChargedToday(t *testing.T) {
	engine, l := setupTestEngine()
	ctx := context.Background()

	_, err := engine.ApplyRegression(ctx, l, "Q1-1", 80, 20, 5)
	require.NoError(t, err)

	applied, err := engine.ApplyRegression(ctx, l, "Q1-1", 60, 10, 5)
	require.NoError(t, err)
	assert.Nil(t, applied)
	assert.Len(t, l.applied, 1)
}
