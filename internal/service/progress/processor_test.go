package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/task-coach/internal/models"
	"github.com/aimd54/task-coach/internal/service/ledger"
	"github.com/aimd54/task-coach/pkg/logger"
)

type mockLedger struct {
	calls []ledger.Delta
	after []func()
	err   error
}

func (m *mockLedger) Owner() string { return "alice" }

func (m *mockLedger) Grant(ctx context.Context, d ledger.Delta) (*ledger.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.calls = append(m.calls, d)
	return &ledger.Result{NewLevel: 1, CurrentExp: d.Exp, Coins: 200 + d.Coins}, nil
}

func (m *mockLedger) AfterCommit(fn func()) { m.after = append(m.after, fn) }

func TestExpGain(t *testing.T) {
	tests := []struct {
		delta    int
		quadrant models.Quadrant
		want     int
	}{
		{25, models.Q1, 50},
		{25, models.Q2, 37},
		{25, models.Q3, 25},
		{25, models.Q4, 12},
		{1, models.Q4, 1},
		{0, models.Q1, 0},
		{-20, models.Q1, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpGain(tt.delta, tt.quadrant), "delta %d %s", tt.delta, tt.quadrant)
	}
}

func TestCoinGain(t *testing.T) {
	assert.Equal(t, 100, CoinGain(100))
	assert.Equal(t, 50, CoinGain(80))
	assert.Equal(t, 50, CoinGain(99.9))
	assert.Equal(t, 20, CoinGain(60))
	assert.Equal(t, 5, CoinGain(59))
	assert.Equal(t, 5, CoinGain(0))
}

func TestProcess_SingleDeltaPerBatch(t *testing.T) {
	l := &mockLedger{}
	p := NewProcessor(logger.New("debug", "text", "stdout"))

	summary, err := p.Process(context.Background(), l, []Change{
		{Code: "Q1-1", Quadrant: models.Q1, OldProgress: 50, NewProgress: 100, Completed: true},
		{Code: "Q2-1", Quadrant: models.Q2, OldProgress: 0, NewProgress: 20},
	})
	require.NoError(t, err)

	require.Len(t, l.calls, 1)
	assert.Equal(t, 130, l.calls[0].Exp)
	assert.Equal(t, 5, l.calls[0].Coins)
	assert.Equal(t, "progress: Q1-1 +50%, Q2-1 +20%", l.calls[0].Reason)
	assert.Len(t, l.after, 1)
	assert.InDelta(t, 50.0, summary.CompletionRate, 0.001)
	assert.NotNil(t, summary.Result)
}

func TestProcess_EmptyBatch(t *testing.T) {
	l := &mockLedger{}
	p := NewProcessor(logger.New("debug", "text", "stdout"))

	summary, err := p.Process(context.Background(), l, nil)
	require.NoError(t, err)
	assert.Empty(t, l.calls)
	assert.Zero(t, summary.CoinsGained)
}

func TestProcess_LedgerError(t *testing.T) {
	l := &mockLedger{err: errors.New("store down")}
	p := NewProcessor(logger.New("debug", "text", "stdout"))

	_, err := p.Process(context.Background(), l, []Change{{Code: "Q1-1", Quadrant: models.Q1, NewProgress: 10}})
	assert.Error(t, err)
}
