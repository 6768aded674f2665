// Package ledger owns level, experience and coin state and every mutation of it.
//
// Each mutation reads the profile, computes the new state, writes it back with a
// version check and appends its audit row, all in one transaction. Version
// conflicts are retried with exponential backoff.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aimd54/task-coach/internal/config"
	prommetrics "github.com/aimd54/task-coach/internal/metrics"
	"github.com/aimd54/task-coach/internal/models"
	"github.com/aimd54/task-coach/internal/repository"
	"github.com/aimd54/task-coach/pkg/logger"
)

// Default retry and timeout settings.
const (
	DefaultStoreTimeout = 30 * time.Second
	DefaultMaxRetries   = 5
	DefaultRetryBackoff = 50 * time.Millisecond
)

// Options tunes timeouts and the conflict retry policy.
type Options struct {
	StoreTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Location     *time.Location
	Now          func() time.Time
}

// OptionsFromConfig builds Options from the coach configuration.
func OptionsFromConfig(cfg *config.CoachConfig) (Options, error) {
	loc, err := cfg.GetLocation()
	if err != nil {
		return Options{}, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	return Options{
		StoreTimeout: cfg.StoreTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Location:     loc,
	}, nil
}

// Hook runs inside the ledger transaction with the profile as read, before the
// delta is applied. Returning an error aborts the whole mutation.
type Hook func(ctx context.Context, tx *repository.DB, p *models.UserGamification) error

// Delta is a non-negative experience grant plus a coin movement.
type Delta struct {
	Exp    int
	Coins  int
	Reason string
	Within Hook
}

// Result describes the profile after a delta.
type Result struct {
	LevelUp     bool `json:"level_up"`
	OldLevel    int  `json:"old_level"`
	NewLevel    int  `json:"new_level"`
	CurrentExp  int  `json:"current_exp"`
	TotalExp    int  `json:"total_exp"`
	Coins       int  `json:"coins"`
	ExpGained   int  `json:"exp_gained"`
	CoinsGained int  `json:"coins_gained"`
}

// Punishment is a penalty to deduct. Reference distinguishes penalties of the same
// type on the same day, e.g. one per delayed task.
type Punishment struct {
	Type        models.PunishmentType
	Coins       int
	Exp         int
	Reason      string
	Reference   string
	Date        time.Time
	ClearStreak bool
}

// PunishmentResult describes the profile after a penalty.
type PunishmentResult struct {
	Downgraded    bool `json:"downgraded"`
	OldLevel      int  `json:"old_level"`
	NewLevel      int  `json:"new_level"`
	NewCoins      int  `json:"new_coins"`
	NewCurrentExp int  `json:"new_current_exp"`
	CoinsDeducted int  `json:"coins_deducted"`
	ExpDeducted   int  `json:"exp_deducted"`
	StreakCleared bool `json:"streak_cleared"`
}

// Service is the gamification ledger.
type Service struct {
	db   *repository.DB
	opts Options
	log  *logger.Logger
}

// NewService creates a new ledger service. Zero options fall back to the defaults.
func NewService(db *repository.DB, opts Options, log *logger.Logger) *Service {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultStoreTimeout
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{db: db, opts: opts, log: log}
}

// Today returns the current calendar date in the configured timezone.
func (s *Service) Today() time.Time {
	return models.Today(s.opts.Now(), s.opts.Location)
}

// Location returns the configured timezone.
func (s *Service) Location() *time.Location {
	return s.opts.Location
}

// Profile returns the owner's profile, creating it with the defaults on first access.
func (s *Service) Profile(ctx context.Context, owner string) (*models.UserGamification, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	return repository.NewProfileRepository(s.db).GetOrCreate(ctx, owner)
}

// ApplyDelta grants experience and moves coins, resolving level-ups.
func (s *Service) ApplyDelta(ctx context.Context, owner string, exp, coins int, reason string) (*Result, error) {
	return s.Apply(ctx, owner, Delta{Exp: exp, Coins: coins, Reason: reason})
}

// Apply is ApplyDelta with an optional hook that joins the same transaction.
func (s *Service) Apply(ctx context.Context, owner string, d Delta) (*Result, error) {
	if d.Exp < 0 {
		return nil, ErrNegativeExp
	}

	var result *Result
	_, err := s.Transact(ctx, owner, "apply_delta", func(ctx context.Context, tx *Tx) error {
		var err error
		result, err = tx.Grant(ctx, d)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyPunishment deducts coins (floored at zero) and experience, stepping levels down
// as needed. A penalty already recorded for the same type, day and reference returns
// ErrPunishmentAlreadyApplied and changes nothing.
func (s *Service) ApplyPunishment(ctx context.Context, owner string, pun Punishment) (*PunishmentResult, error) {
	var result *PunishmentResult
	_, err := s.Transact(ctx, owner, "apply_punishment", func(ctx context.Context, tx *Tx) error {
		var err error
		result, err = tx.Punish(ctx, pun)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateProfile applies fn to non-currency fields (streaks, personality) under the
// same versioned write. fn must not touch level, experience or coins.
func (s *Service) UpdateProfile(ctx context.Context, owner, reason string, fn func(p *models.UserGamification) error) (*models.UserGamification, error) {
	return s.Transact(ctx, owner, reason, func(_ context.Context, tx *Tx) error {
		return fn(tx.Profile())
	})
}

// mutate runs one read-compute-write cycle per attempt and retries version conflicts.
func (s *Service) mutate(ctx context.Context, owner, operation string, fn Hook) (*models.UserGamification, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	backoff := s.opts.RetryBackoff
	for attempt := 1; ; attempt++ {
		var updated *models.UserGamification
		err := s.db.InTx(ctx, func(tx *repository.DB) error {
			profiles := repository.NewProfileRepository(tx)
			p, err := profiles.GetOrCreate(ctx, owner)
			if err != nil {
				return err
			}
			if err := fn(ctx, tx, p); err != nil {
				return err
			}
			if err := profiles.UpdateVersioned(ctx, p); err != nil {
				return err
			}
			updated = p
			return nil
		})
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}

		prommetrics.RecordLedgerConflict(operation)
		if attempt >= s.opts.MaxRetries {
			s.log.Error().
				Str("owner", owner).
				Str("operation", operation).
				Int("attempts", attempt).
				Msg("Ledger write kept conflicting")
			return nil, &ConcurrencyError{Owner: owner, Operation: operation, Attempts: attempt}
		}

		s.log.Debug().
			Str("owner", owner).
			Str("operation", operation).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Ledger version conflict, retrying")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s for %s: %w", operation, owner, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
