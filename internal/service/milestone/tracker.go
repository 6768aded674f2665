// Package milestone grants one-time rewards for reply streaks of fixed lengths.
package milestone

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	prommetrics "github.com/aimd54/task-coach/internal/metrics"
	"github.com/aimd54/task-coach/internal/models"
	"github.com/aimd54/task-coach/internal/repository"
	"github.com/aimd54/task-coach/internal/service/ledger"
	"github.com/aimd54/task-coach/pkg/logger"
)

// errAlreadyGranted aborts the ledger transaction when the marker row exists.
var errAlreadyGranted = errors.New("milestone already granted")

// Reward is the payout for one streak length.
type Reward struct {
	Days        int    `json:"days"`
	Coins       int    `json:"coins"`
	Exp         int    `json:"exp"`
	Description string `json:"description"`
}

// Rewards is the milestone table in ascending day order.
var Rewards = []Reward{
	{Days: 3, Coins: 20, Exp: 0, Description: "initial persistence"},
	{Days: 7, Coins: 50, Exp: 30, Description: "one full week"},
	{Days: 14, Coins: 100, Exp: 60, Description: "two weeks strong"},
	{Days: 30, Coins: 300, Exp: 150, Description: "a month of habit"},
	{Days: 60, Coins: 600, Exp: 300, Description: "two months of discipline"},
	{Days: 90, Coins: 1000, Exp: 500, Description: "ninety-day master"},
}

// RewardFor returns the reward for exactly days, if one exists.
func RewardFor(days int) (Reward, bool) {
	for _, r := range Rewards {
		if r.Days == days {
			return r, true
		}
	}
	return Reward{}, false
}

// NextReward returns the first milestone beyond days, if any.
func NextReward(days int) (Reward, bool) {
	for _, r := range Rewards {
		if r.Days > days {
			return r, true
		}
	}
	return Reward{}, false
}

// Granted is a reward that was paid out by this call.
type Granted struct {
	Reward Reward         `json:"reward"`
	Result *ledger.Result `json:"result"`
}

// Tracker pays milestone rewards.
type Tracker struct {
	ledger *ledger.Service
	db     *repository.DB
	log    *logger.Logger
}

// NewTracker creates a new milestone tracker.
func NewTracker(l *ledger.Service, db *repository.DB, log *logger.Logger) *Tracker {
	return &Tracker{ledger: l, db: db, log: log}
}

// CheckMilestone grants the reward for days once per owner. The marker row and
// the reward share one transaction, and the marker's unique key rejects repeats.
// It returns nil when days is not a milestone or was already rewarded.
func (t *Tracker) CheckMilestone(ctx context.Context, owner string, days int) (*Granted, error) {
	if _, ok := RewardFor(days); !ok {
		return nil, nil
	}

	var granted *Granted
	_, err := t.ledger.Transact(ctx, owner, "milestone", func(ctx context.Context, tx *ledger.Tx) error {
		var err error
		granted, err = t.grant(ctx, tx, days)
		return err
	})
	if errors.Is(err, errAlreadyGranted) {
		return nil, nil
	}
	return granted, err
}

// CheckMilestoneTx is CheckMilestone inside a transaction the caller already holds.
// A repeat leaves tx untouched and returns nil.
func (t *Tracker) CheckMilestoneTx(ctx context.Context, tx *ledger.Tx, days int) (*Granted, error) {
	if _, ok := RewardFor(days); !ok {
		return nil, nil
	}
	granted, err := t.grant(ctx, tx, days)
	if errors.Is(err, errAlreadyGranted) {
		return nil, nil
	}
	return granted, err
}

func (t *Tracker) grant(ctx context.Context, tx *ledger.Tx, days int) (*Granted, error) {
	reward, _ := RewardFor(days)
	owner := tx.Owner()
	label := strconv.Itoa(days)

	result, err := tx.Grant(ctx, ledger.Delta{
		Exp:    reward.Exp,
		Coins:  reward.Coins,
		Reason: fmt.Sprintf("persistence milestone: %d days", days),
		Within: func(ctx context.Context, db *repository.DB, _ *models.UserGamification) error {
			err := repository.NewRewardRepository(db).Insert(ctx, &models.PersistenceReward{
				Owner:         owner,
				MilestoneDays: days,
				CoinsRewarded: reward.Coins,
				ExpRewarded:   reward.Exp,
				Description:   reward.Description,
			})
			if errors.Is(err, repository.ErrDuplicate) {
				return errAlreadyGranted
			}
			return err
		},
	})
	if errors.Is(err, errAlreadyGranted) {
		prommetrics.RecordMilestoneReward(label, "duplicate")
		t.log.Debug().Str("owner", owner).Int("days", days).Msg("Milestone already rewarded")
		return nil, err
	}
	if err != nil {
		prommetrics.RecordMilestoneReward(label, "error")
		return nil, fmt.Errorf("failed to grant %d-day milestone: %w", days, err)
	}

	tx.AfterCommit(func() {
		prommetrics.RecordMilestoneReward(label, "granted")
		t.log.Info().
			Str("owner", owner).
			Int("days", days).
			Int("coins", reward.Coins).
			Int("exp", reward.Exp).
			Msg("Milestone reward granted")
	})

	return &Granted{Reward: reward, Result: result}, nil
}

// History lists the milestones owner has already been paid for.
func (t *Tracker) History(ctx context.Context, owner string) ([]models.PersistenceReward, error) {
	return repository.NewRewardRepository(t.db).List(ctx, owner)
}
