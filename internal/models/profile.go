// Package models defines the persisted records of the task coach.
package models

import (
	"time"
)

// Profile defaults applied when a user is first seen.
const (
	DefaultLevel       = 1
	DefaultCoins       = 200
	DefaultPersonality = PersonalityFriendly
)

// Personality is the tone the coach uses when talking to the user.
type Personality string

// Known personalities.
const (
	PersonalityFriendly     Personality = "friendly"
	PersonalityProfessional Personality = "professional"
	PersonalityStrict       Personality = "strict"
	PersonalityToxic        Personality = "toxic"
)

// UserGamification holds one user's level, experience, coins and streak counters.
// Version is bumped on every write and guards against lost updates.
type UserGamification struct {
	ID                   uint        `gorm:"primaryKey" json:"id"`
	Owner                string      `gorm:"uniqueIndex;not null;size:255" json:"owner"`
	Level                int         `gorm:"not null;default:1" json:"level"`
	CurrentExp           int         `gorm:"not null;default:0" json:"current_exp"`
	TotalExp             int         `gorm:"not null;default:0" json:"total_exp"`
	Coins                int         `gorm:"not null;default:200" json:"coins"`
	AIPersonality        Personality `gorm:"column:ai_personality;size:32;not null;default:friendly" json:"ai_personality"`
	ConsecutiveQ1Days    int         `gorm:"column:consecutive_q1_days;not null;default:0" json:"consecutive_q1_days"`
	LastQ1CompleteDate   *time.Time  `gorm:"column:last_q1_complete_date" json:"last_q1_complete_date,omitempty"`
	ConsecutiveReplyDays int         `gorm:"not null;default:0" json:"consecutive_reply_days"`
	LastReplyDate        *time.Time  `json:"last_reply_date,omitempty"`
	TotalReplyDays       int         `gorm:"not null;default:0" json:"total_reply_days"`
	TotalPunishments     int         `gorm:"not null;default:0" json:"total_punishments"`
	LastPunishmentDate   *time.Time  `json:"last_punishment_date,omitempty"`
	Version              int         `gorm:"not null;default:0" json:"version"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// TableName specifies the table name for UserGamification model.
func (UserGamification) TableName() string {
	return "user_gamification"
}

// NewUserGamification returns a profile with the starting defaults.
func NewUserGamification(owner string) *UserGamification {
	return &UserGamification{
		Owner:         owner,
		Level:         DefaultLevel,
		Coins:         DefaultCoins,
		AIPersonality: DefaultPersonality,
	}
}

// ReplyTracking records when the user last answered, independent of the reply streak.
type ReplyTracking struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	Owner                  string     `gorm:"uniqueIndex;not null;size:255" json:"owner"`
	LastReplyDate          *time.Time `json:"last_reply_date,omitempty"`
	ClockStartedAt         *time.Time `json:"clock_started_at,omitempty"`
	ConsecutiveNoReplyDays int        `gorm:"not null;default:0" json:"consecutive_no_reply_days"`
	TotalReplies           int        `gorm:"not null;default:0" json:"total_replies"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// TableName specifies the table name for ReplyTracking model.
func (ReplyTracking) TableName() string {
	return "user_reply_tracking"
}

// PersistenceReward marks a streak milestone as granted. The unique index is the only guard.
type PersistenceReward struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Owner         string    `gorm:"not null;size:255;uniqueIndex:idx_persistence_owner_days,priority:1" json:"owner"`
	MilestoneDays int       `gorm:"not null;uniqueIndex:idx_persistence_owner_days,priority:2" json:"milestone_days"`
	CoinsRewarded int       `gorm:"not null" json:"coins_rewarded"`
	ExpRewarded   int       `gorm:"not null" json:"exp_rewarded"`
	Description   string    `gorm:"size:255" json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName specifies the table name for PersistenceReward model.
func (PersistenceReward) TableName() string {
	return "persistence_rewards"
}
