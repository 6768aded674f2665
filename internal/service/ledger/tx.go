package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	prommetrics "github.com/aimd54/task-coach/internal/metrics"
	"github.com/aimd54/task-coach/internal/models"
	"github.com/aimd54/task-coach/internal/repository"
)

// Tx is one transaction on an owner's profile. Grants, penalties and any row written
// through DB commit together with the profile write or not at all.
//
// Grant and Punish run in a savepoint, so a failed step leaves the profile and the
// transaction as they were and the caller decides whether to carry on.
type Tx struct {
	s       *Service
	db      *repository.DB
	owner   string
	profile *models.UserGamification
	after   []func()
}

// Owner returns the owner whose profile is locked by the transaction.
func (t *Tx) Owner() string { return t.owner }

// DB returns the transaction handle.
func (t *Tx) DB() *repository.DB { return t.db }

// Profile returns the profile as it stands inside the transaction.
func (t *Tx) Profile() *models.UserGamification { return t.profile }

// Today returns the current calendar date in the configured timezone.
func (t *Tx) Today() time.Time { return t.s.Today() }

// AfterCommit queues fn to run once the transaction has committed.
func (t *Tx) AfterCommit(fn func()) {
	t.after = append(t.after, fn)
}

// Transact runs fn as a single unit of work on owner's profile. The profile write and
// everything fn does through the Tx commit together. A version conflict reruns fn from
// scratch, so fn must not keep state from a previous attempt.
func (s *Service) Transact(ctx context.Context, owner, operation string, fn func(ctx context.Context, tx *Tx) error) (*models.UserGamification, error) {
	var committed *Tx
	p, err := s.mutate(ctx, owner, operation, func(ctx context.Context, db *repository.DB, p *models.UserGamification) error {
		tx := &Tx{s: s, db: db, owner: owner, profile: p}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		committed = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, fn := range committed.after {
		fn()
	}
	return p, nil
}

// Grant adds experience and moves coins, resolving level-ups.
func (t *Tx) Grant(ctx context.Context, d Delta) (*Result, error) {
	if d.Exp < 0 {
		return nil, ErrNegativeExp
	}

	next := *t.profile
	result := Result{OldLevel: next.Level, ExpGained: d.Exp, CoinsGained: d.Coins}
	err := t.db.InTx(ctx, func(sp *repository.DB) error {
		if d.Within != nil {
			if err := d.Within(ctx, sp, t.profile); err != nil {
				return err
			}
		}
		if next.Coins+d.Coins < 0 {
			return &CoinsInsufficientError{Required: -d.Coins, Available: next.Coins}
		}

		next.CurrentExp += d.Exp
		next.TotalExp += d.Exp
		next.Coins += d.Coins
		result.LevelUp = applyLevelUps(&next)

		return repository.NewHistoryRepository(sp).AddExp(ctx, &models.ExpHistory{
			Owner:       t.owner,
			ExpGained:   d.Exp,
			CoinsGained: d.Coins,
			Reason:      d.Reason,
			LevelBefore: result.OldLevel,
			LevelAfter:  next.Level,
		})
	})
	if err != nil {
		return nil, err
	}
	*t.profile = next

	result.NewLevel = next.Level
	result.CurrentExp = next.CurrentExp
	result.TotalExp = next.TotalExp
	result.Coins = next.Coins

	owner, log := t.owner, t.s.log
	t.AfterCommit(func() {
		prommetrics.RecordExpGranted(owner, d.Exp)
		prommetrics.RecordCoinsChanged(owner, d.Coins)
		prommetrics.RecordLevelChange(result.OldLevel, result.NewLevel)
		prommetrics.SetUserState(owner, result.NewLevel, result.Coins)

		if result.LevelUp {
			log.Info().
				Str("owner", owner).
				Int("old_level", result.OldLevel).
				Int("new_level", result.NewLevel).
				Msg("Level up")
		}
		log.Debug().
			Str("owner", owner).
			Int("exp", d.Exp).
			Int("coins", d.Coins).
			Str("reason", d.Reason).
			Msg("Applied ledger delta")
	})

	return &result, nil
}

// Punish deducts coins (floored at zero) and experience, stepping levels down as
// needed. A penalty already recorded for the same type, day and reference returns
// ErrPunishmentAlreadyApplied and changes nothing.
func (t *Tx) Punish(ctx context.Context, pun Punishment) (*PunishmentResult, error) {
	if pun.Coins < 0 || pun.Exp < 0 {
		return nil, fmt.Errorf("punishment amounts must not be negative: coins=%d exp=%d", pun.Coins, pun.Exp)
	}
	date := pun.Date
	if date.IsZero() {
		date = t.Today()
	}
	date = models.Date(date)

	next := *t.profile
	result := PunishmentResult{OldLevel: next.Level}
	result.CoinsDeducted = min(pun.Coins, next.Coins)
	next.Coins -= result.CoinsDeducted
	next.CurrentExp -= pun.Exp
	result.ExpDeducted = pun.Exp
	result.Downgraded = applyLevelDowns(&next)
	if pun.ClearStreak {
		next.ConsecutiveQ1Days = 0
		result.StreakCleared = true
	}
	next.TotalPunishments++
	next.LastPunishmentDate = &date

	err := t.db.InTx(ctx, func(sp *repository.DB) error {
		return repository.NewHistoryRepository(sp).AddPunishment(ctx, &models.PunishmentHistory{
			Owner:          t.owner,
			PunishmentType: pun.Type,
			PunishmentDate: date,
			Reference:      pun.Reference,
			CoinsDeducted:  result.CoinsDeducted,
			ExpDeducted:    pun.Exp,
			Reason:         pun.Reason,
			LevelBefore:    result.OldLevel,
			LevelAfter:     next.Level,
		})
	})
	if errors.Is(err, repository.ErrDuplicate) {
		prommetrics.RecordPunishment(string(pun.Type), "duplicate")
		return nil, ErrPunishmentAlreadyApplied
	}
	if err != nil {
		return nil, err
	}
	*t.profile = next

	result.NewLevel = next.Level
	result.NewCoins = next.Coins
	result.NewCurrentExp = next.CurrentExp

	owner, log := t.owner, t.s.log
	t.AfterCommit(func() {
		prommetrics.RecordPunishment(string(pun.Type), "applied")
		prommetrics.RecordCoinsChanged(owner, -result.CoinsDeducted)
		prommetrics.RecordLevelChange(result.OldLevel, result.NewLevel)
		prommetrics.SetUserState(owner, result.NewLevel, result.NewCoins)

		log.Warn().
			Str("owner", owner).
			Str("type", string(pun.Type)).
			Str("reference", pun.Reference).
			Int("coins", result.CoinsDeducted).
			Int("exp", pun.Exp).
			Bool("downgraded", result.Downgraded).
			Msg("Applied punishment")
	})

	return &result, nil
}
