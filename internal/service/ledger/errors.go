package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNegativeExp is returned when ApplyDelta is asked to remove experience.
	ErrNegativeExp = errors.New("exp delta must not be negative; use ApplyPunishment")
	// ErrPunishmentAlreadyApplied is returned when the same penalty was already recorded for its day.
	ErrPunishmentAlreadyApplied = errors.New("punishment already applied")
)

// LevelInsufficientError indicates something is locked behind a level the owner has not reached.
type LevelInsufficientError struct {
	Feature       string
	RequiredLevel int
	CurrentLevel  int
}

func (e *LevelInsufficientError) Error() string {
	return fmt.Sprintf("'%s' unlocks at level %d (current level %d)", e.Feature, e.RequiredLevel, e.CurrentLevel)
}

// CoinsInsufficientError indicates the balance cannot cover a debit.
type CoinsInsufficientError struct {
	Required  int
	Available int
}

func (e *CoinsInsufficientError) Error() string {
	return fmt.Sprintf("insufficient coins: need %d, have %d", e.Required, e.Available)
}

// ConcurrencyError is returned when a write kept losing the optimistic race.
type ConcurrencyError struct {
	Owner     string
	Operation string
	Attempts  int
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("%s for %s gave up after %d conflicting attempts", e.Operation, e.Owner, e.Attempts)
}
