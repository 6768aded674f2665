// Package progress turns a batch of task progress changes into one ledger delta.
package progress

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/aimd54/task-coach/internal/models"
	"github.com/aimd54/task-coach/internal/service/ledger"
	"github.com/aimd54/task-coach/pkg/logger"
)

// Ledger is the open ledger transaction a batch is credited in.
type Ledger interface {
	Owner() string
	Grant(ctx context.Context, d ledger.Delta) (*ledger.Result, error)
	AfterCommit(fn func())
}

// Change is one task's progress movement within a batch.
type Change struct {
	Code        string
	Name        string
	Quadrant    models.Quadrant
	OldProgress int
	NewProgress int
	Completed   bool
}

// Delta returns the progress movement in percentage points.
func (c Change) Delta() int {
	return c.NewProgress - c.OldProgress
}

// Summary is the outcome of processing one batch.
type Summary struct {
	ExpGained      int            `json:"exp_gained"`
	CoinsGained    int            `json:"coins_gained"`
	CompletionRate float64        `json:"completion_rate"`
	Result         *ledger.Result `json:"result,omitempty"`
}

// ExpGain returns the experience earned for a progress delta in a quadrant.
// Any positive movement earns at least 1.
func ExpGain(delta int, quadrant models.Quadrant) int {
	if delta <= 0 {
		return 0
	}
	gain := int(math.Floor(float64(delta) * quadrant.Weight()))
	return max(gain, 1)
}

// CoinGain returns the batch coin reward for a completion rate in percent.
func CoinGain(rate float64) int {
	switch {
	case rate >= 100:
		return 100
	case rate >= 80:
		return 50
	case rate >= 60:
		return 20
	default:
		return 5
	}
}

// CompletionRate is the share of tasks in the batch that ended completed, in percent.
func CompletionRate(changes []Change) float64 {
	if len(changes) == 0 {
		return 0
	}
	completed := 0
	for _, c := range changes {
		if c.Completed {
			completed++
		}
	}
	return float64(completed) / float64(len(changes)) * 100
}

// Processor credits progress batches through the ledger.
type Processor struct {
	log *logger.Logger
}

// NewProcessor creates a new progress processor.
func NewProcessor(log *logger.Logger) *Processor {
	return &Processor{log: log}
}

// Summarize computes the batch totals without touching the ledger.
func Summarize(changes []Change) Summary {
	s := Summary{CompletionRate: CompletionRate(changes)}
	for _, c := range changes {
		s.ExpGained += ExpGain(c.Delta(), c.Quadrant)
	}
	if len(changes) > 0 {
		s.CoinsGained = CoinGain(s.CompletionRate)
	}
	return s
}

// Process credits the batch with a single grant inside l. An empty batch does nothing.
func (p *Processor) Process(ctx context.Context, l Ledger, changes []Change) (*Summary, error) {
	summary := Summarize(changes)
	if len(changes) == 0 {
		return &summary, nil
	}

	result, err := l.Grant(ctx, ledger.Delta{Exp: summary.ExpGained, Coins: summary.CoinsGained, Reason: reason(changes)})
	if err != nil {
		return nil, fmt.Errorf("failed to credit progress batch: %w", err)
	}
	summary.Result = result

	owner := l.Owner()
	l.AfterCommit(func() {
		p.log.Info().
			Str("owner", owner).
			Int("tasks", len(changes)).
			Int("exp", summary.ExpGained).
			Int("coins", summary.CoinsGained).
			Float64("completion_rate", summary.CompletionRate).
			Msg("Credited progress batch")
	})

	return &summary, nil
}

func reason(changes []Change) string {
	parts := make([]string, 0, len(changes))
	for _, c := range changes {
		parts = append(parts, fmt.Sprintf("%s %+d%%", c.Code, c.Delta()))
	}
	return "progress: " + strings.Join(parts, ", ")
}
