// Package punishment computes penalties for disengagement, stalled tasks and
// progress regression, and applies them through the ledger.
package punishment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aimd54/task-coach/internal/models"
	"github.com/aimd54/task-coach/internal/service/ledger"
	"github.com/aimd54/task-coach/pkg/logger"
)

// NewbieMaxLevel is the highest level that still gets halved penalties.
const NewbieMaxLevel = 3

// Ledger is the subset of the ledger used to apply penalties.
type Ledger interface {
	ApplyPunishment(ctx context.Context, owner string, pun ledger.Punishment) (*ledger.PunishmentResult, error)
	Today() time.Time
	Location() *time.Location
}

// Penalty is a (coins, exp) pair with an optional Q1 streak reset.
type Penalty struct {
	Coins       int  `json:"coins"`
	Exp         int  `json:"exp"`
	ClearStreak bool `json:"clear_streak"`
}

// IsZero reports whether the penalty deducts nothing.
func (p Penalty) IsZero() bool {
	return p.Coins == 0 && p.Exp == 0 && !p.ClearStreak
}

// newbie halves both amounts for low levels, truncating.
func newbie(p Penalty, level int) Penalty {
	if level <= NewbieMaxLevel {
		p.Coins /= 2
		p.Exp /= 2
	}
	return p
}

// NoReplyPenalty returns the penalty for n consecutive silent days at a level.
func NoReplyPenalty(n, level int) Penalty {
	var p Penalty
	switch {
	case n < 2:
		return Penalty{}
	case n == 2:
		p = Penalty{Coins: 20, Exp: 30}
	case n == 3:
		p = Penalty{Coins: 40, Exp: 60}
	case n == 4:
		p = Penalty{Coins: 60, Exp: 100, ClearStreak: true}
	default:
		p = Penalty{Coins: 80, Exp: 150, ClearStreak: true}
	}
	return newbie(p, level)
}

// DelayPenalty returns the coin penalty for a task left untouched for daysStalled days.
// Q1 tolerates 3 days, Q2 tolerates 7, Q3 and Q4 are never penalized.
func DelayPenalty(quadrant models.Quadrant, daysStalled, level int) Penalty {
	var threshold, perDay int
	switch quadrant {
	case models.Q1:
		threshold, perDay = 3, 15
	case models.Q2:
		threshold, perDay = 7, 10
	default:
		return Penalty{}
	}
	if daysStalled <= threshold {
		return Penalty{}
	}
	return newbie(Penalty{Coins: perDay * (daysStalled - threshold)}, level)
}

// RegressionPenalty returns the penalty for a progress decline in percentage points.
func RegressionPenalty(decline, level int) Penalty {
	var p Penalty
	switch {
	case decline < 10:
		return Penalty{}
	case decline < 20:
		p = Penalty{Coins: 10}
	case decline < 50:
		p = Penalty{Coins: 20, Exp: 30}
	default:
		p = Penalty{Coins: 40, Exp: 80}
	}
	return newbie(p, level)
}

// Applied is one penalty that reached the ledger.
type Applied struct {
	Type      models.PunishmentType    `json:"type"`
	Reference string                   `json:"reference,omitempty"`
	Penalty   Penalty                  `json:"penalty"`
	Reason    string                   `json:"reason"`
	Result    *ledger.PunishmentResult `json:"result"`
}

// Engine evaluates penalty triggers and applies them.
type Engine struct {
	ledger Ledger
	log    *logger.Logger
}

// NewEngine creates a new punishment engine.
func NewEngine(l Ledger, log *logger.Logger) *Engine {
	return &Engine{ledger: l, log: log}
}

// EvaluateNoReply applies the no-reply penalty for n silent days. A penalty already
// applied today, or a zero penalty, returns nil.
func (e *Engine) EvaluateNoReply(ctx context.Context, owner string, n, level int) (*Applied, error) {
	penalty := NoReplyPenalty(n, level)
	if penalty.IsZero() {
		return nil, nil
	}
	return e.apply(ctx, owner, models.PunishmentNoReply, "", penalty, fmt.Sprintf("%d consecutive days without reply", n))
}

// EvaluateTaskDelays applies a delay penalty for each active task that has not been
// updated past its quadrant's tolerance. Failures on one task do not stop the others.
func (e *Engine) EvaluateTaskDelays(ctx context.Context, owner string, tasks []models.Task, level int) ([]Applied, error) {
	today := e.ledger.Today()
	var applied []Applied
	var errs []error

	for i := range tasks {
		task := &tasks[i]
		if task.Status != models.TaskStatusActive {
			continue
		}
		stalled := models.DaysBetween(models.Today(task.UpdatedAt, e.ledger.Location()), today)
		penalty := DelayPenalty(task.Quadrant, stalled, level)
		if penalty.IsZero() {
			continue
		}

		a, err := e.apply(ctx, owner, models.PunishmentTaskDelay, task.Code(), penalty,
			fmt.Sprintf("%s '%s' stalled for %d days", task.Code(), task.Name, stalled))
		if err != nil {
			e.log.Error().Err(err).Str("owner", owner).Str("task", task.Code()).Msg("Failed to apply delay penalty")
			errs = append(errs, err)
			continue
		}
		if a != nil {
			applied = append(applied, *a)
		}
	}

	return applied, errors.Join(errs...)
}

// Punisher is an open ledger transaction penalties can be charged in.
type Punisher interface {
	Owner() string
	Punish(ctx context.Context, pun ledger.Punishment) (*ledger.PunishmentResult, error)
}

// ApplyRegression charges the penalty for a task whose progress went backwards inside
// the transaction that recorded the decline.
func (e *Engine) ApplyRegression(ctx context.Context, tx Punisher, taskCode string, previous, current, level int) (*Applied, error) {
	decline := previous - current
	penalty := RegressionPenalty(decline, level)
	if penalty.IsZero() {
		return nil, nil
	}
	return e.charge(tx.Owner(), models.PunishmentRegression, taskCode, penalty,
		fmt.Sprintf("%s progress fell from %d%% to %d%%", taskCode, previous, current),
		func(pun ledger.Punishment) (*ledger.PunishmentResult, error) {
			return tx.Punish(ctx, pun)
		})
}

func (e *Engine) apply(ctx context.Context, owner string, kind models.PunishmentType, ref string, penalty Penalty, reason string) (*Applied, error) {
	return e.charge(owner, kind, ref, penalty, reason, func(pun ledger.Punishment) (*ledger.PunishmentResult, error) {
		return e.ledger.ApplyPunishment(ctx, owner, pun)
	})
}

func (e *Engine) charge(owner string, kind models.PunishmentType, ref string, penalty Penalty, reason string,
	punish func(ledger.Punishment) (*ledger.PunishmentResult, error),
) (*Applied, error) {
	result, err := punish(ledger.Punishment{
		Type:        kind,
		Coins:       penalty.Coins,
		Exp:         penalty.Exp,
		Reason:      reason,
		Reference:   ref,
		ClearStreak: penalty.ClearStreak,
	})
	if errors.Is(err, ledger.ErrPunishmentAlreadyApplied) {
		e.log.Debug().
			Str("owner", owner).
			Str("type", string(kind)).
			Str("reference", ref).
			Msg("Punishment already applied today")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply %s punishment: %w", kind, err)
	}

	return &Applied{Type: kind, Reference: ref, Penalty: penalty, Reason: reason, Result: result}, nil
}
