package repository

import (
	"context"
	"time"

	"github.com/aimd54/task-coach/internal/models"
)

// HistoryRepository appends and reads the ledger audit trail.
type HistoryRepository struct {
	db *DB
}

// NewHistoryRepository creates a new history repository.
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// AddExp appends an exp_history row.
func (r *HistoryRepository) AddExp(ctx context.Context, entry *models.ExpHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// AddPunishment appends a punishment_history row.
// A second penalty of the same type, day and reference fails with ErrDuplicate.
func (r *HistoryRepository) AddPunishment(ctx context.Context, entry *models.PunishmentHistory) error {
	return translate(r.db.WithContext(ctx).Create(entry).Error)
}

// ExpSince lists exp_history rows created at or after since, oldest first.
func (r *HistoryRepository) ExpSince(ctx context.Context, owner string, since time.Time) ([]models.ExpHistory, error) {
	var entries []models.ExpHistory
	err := r.db.WithContext(ctx).
		Where("owner = ? AND created_at >= ?", owner, since).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

// PunishmentsSince lists punishment_history rows created at or after since, oldest first.
func (r *HistoryRepository) PunishmentsSince(ctx context.Context, owner string, since time.Time) ([]models.PunishmentHistory, error) {
	var entries []models.PunishmentHistory
	err := r.db.WithContext(ctx).
		Where("owner = ? AND created_at >= ?", owner, since).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

// RewardRepository handles persistence_rewards markers.
type RewardRepository struct {
	db *DB
}

// NewRewardRepository creates a new reward repository.
func NewRewardRepository(db *DB) *RewardRepository {
	return &RewardRepository{db: db}
}

// Insert stores a milestone marker. An existing marker fails with ErrDuplicate.
func (r *RewardRepository) Insert(ctx context.Context, reward *models.PersistenceReward) error {
	return translate(r.db.WithContext(ctx).Create(reward).Error)
}

// List returns the owner's granted milestones in ascending order.
func (r *RewardRepository) List(ctx context.Context, owner string) ([]models.PersistenceReward, error) {
	var rewards []models.PersistenceReward
	err := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("milestone_days ASC").
		Find(&rewards).Error
	return rewards, err
}
