package models

import (
	"time"
)

// ExpHistory is an append-only audit row for every ledger delta.
type ExpHistory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Owner       string    `gorm:"not null;size:255;index" json:"owner"`
	ExpGained   int       `gorm:"not null" json:"exp_gained"`
	CoinsGained int       `gorm:"not null" json:"coins_gained"`
	Reason      string    `gorm:"size:500" json:"reason"`
	LevelBefore int       `json:"level_before"`
	LevelAfter  int       `json:"level_after"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for ExpHistory model.
func (ExpHistory) TableName() string {
	return "exp_history"
}

// PunishmentType names the trigger of a penalty.
type PunishmentType string

// Punishment types.
const (
	PunishmentNoReply    PunishmentType = "no_reply"
	PunishmentTaskDelay  PunishmentType = "task_delay"
	PunishmentRegression PunishmentType = "progress_regression"
)

// PunishmentHistory is an append-only audit row for every penalty.
// The unique index allows one penalty per type, calendar day and reference.
type PunishmentHistory struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Owner          string         `gorm:"not null;size:255;uniqueIndex:idx_punishment_once,priority:1" json:"owner"`
	PunishmentType PunishmentType `gorm:"size:32;not null;uniqueIndex:idx_punishment_once,priority:2" json:"punishment_type"`
	PunishmentDate time.Time      `gorm:"not null;uniqueIndex:idx_punishment_once,priority:3" json:"punishment_date"`
	Reference      string         `gorm:"size:64;not null;default:'';uniqueIndex:idx_punishment_once,priority:4" json:"reference"`
	CoinsDeducted  int            `gorm:"not null" json:"coins_deducted"`
	ExpDeducted    int            `gorm:"not null" json:"exp_deducted"`
	Reason         string         `gorm:"size:500" json:"reason"`
	LevelBefore    int            `json:"level_before"`
	LevelAfter     int            `json:"level_after"`
	CreatedAt      time.Time      `json:"created_at"`
}

// TableName specifies the table name for PunishmentHistory model.
func (PunishmentHistory) TableName() string {
	return "punishment_history"
}

// Date truncates t to its calendar day in t's location and returns it as UTC midnight.
// Every calendar date the coach stores has this shape.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	return Date(now.In(loc))
}

// DaysBetween returns the number of calendar days from a to b, where both are stored dates.
func DaysBetween(a, b time.Time) int {
	return int(Date(b.UTC()).Sub(Date(a.UTC())).Hours() / 24)
}
