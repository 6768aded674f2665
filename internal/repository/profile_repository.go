package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/aimd54/task-coach/internal/models"
)

// ProfileRepository handles user_gamification rows.
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetOrCreate returns the owner's profile, inserting the defaults on first access.
// Concurrent first accesses race on the unique owner index and both read the winner's row.
func (r *ProfileRepository) GetOrCreate(ctx context.Context, owner string) (*models.UserGamification, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "owner"}}, DoNothing: true}).
		Create(models.NewUserGamification(owner)).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return r.Get(ctx, owner)
}

// Get retrieves the owner's profile.
func (r *ProfileRepository) Get(ctx context.Context, owner string) (*models.UserGamification, error) {
	var profile models.UserGamification
	if err := r.db.WithContext(ctx).Where("owner = ?", owner).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateVersioned writes every mutable field of p if the stored version still equals p.Version.
// On success p.Version is advanced. A stale version yields ErrVersionConflict.
func (r *ProfileRepository) UpdateVersioned(ctx context.Context, p *models.UserGamification) error {
	result := r.db.WithContext(ctx).
		Model(&models.UserGamification{}).
		Where("owner = ? AND version = ?", p.Owner, p.Version).
		Updates(map[string]interface{}{
			"level":                  p.Level,
			"current_exp":            p.CurrentExp,
			"total_exp":              p.TotalExp,
			"coins":                  p.Coins,
			"ai_personality":         p.AIPersonality,
			"consecutive_q1_days":    p.ConsecutiveQ1Days,
			"last_q1_complete_date":  p.LastQ1CompleteDate,
			"consecutive_reply_days": p.ConsecutiveReplyDays,
			"last_reply_date":        p.LastReplyDate,
			"total_reply_days":       p.TotalReplyDays,
			"total_punishments":      p.TotalPunishments,
			"last_punishment_date":   p.LastPunishmentDate,
			"version":                p.Version + 1,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update profile: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	p.Version++
	return nil
}

// ListOwners returns every owner with a profile.
func (r *ProfileRepository) ListOwners(ctx context.Context) ([]string, error) {
	var owners []string
	err := r.db.WithContext(ctx).Model(&models.UserGamification{}).Order("owner ASC").Pluck("owner", &owners).Error
	return owners, err
}

// ReplyTrackingRepository handles user_reply_tracking rows.
type ReplyTrackingRepository struct {
	db *DB
}

// NewReplyTrackingRepository creates a new reply tracking repository.
func NewReplyTrackingRepository(db *DB) *ReplyTrackingRepository {
	return &ReplyTrackingRepository{db: db}
}

// GetOrCreate returns the owner's tracking row, creating an empty one if missing.
func (r *ReplyTrackingRepository) GetOrCreate(ctx context.Context, owner string) (*models.ReplyTracking, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "owner"}}, DoNothing: true}).
		Create(&models.ReplyTracking{Owner: owner}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create reply tracking: %w", err)
	}

	var tracking models.ReplyTracking
	if err := r.db.WithContext(ctx).Where("owner = ?", owner).First(&tracking).Error; err != nil {
		return nil, err
	}
	return &tracking, nil
}

// Save persists the tracking row.
func (r *ReplyTrackingRepository) Save(ctx context.Context, tracking *models.ReplyTracking) error {
	return r.db.WithContext(ctx).Save(tracking).Error
}
