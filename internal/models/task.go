package models

import (
	"fmt"
	"time"
)

// Quadrant is an Eisenhower priority bucket, 1 (urgent and important) to 4.
type Quadrant int

// Quadrants.
const (
	Q1 Quadrant = 1
	Q2 Quadrant = 2
	Q3 Quadrant = 3
	Q4 Quadrant = 4
)

// Quadrants lists every quadrant in display order.
var Quadrants = []Quadrant{Q1, Q2, Q3, Q4}

// Valid reports whether q is one of Q1..Q4.
func (q Quadrant) Valid() bool {
	return q >= Q1 && q <= Q4
}

// Weight is the experience multiplier applied to progress in this quadrant.
func (q Quadrant) Weight() float64 {
	switch q {
	case Q1:
		return 2.0
	case Q2:
		return 1.5
	case Q3:
		return 1.0
	case Q4:
		return 0.5
	default:
		return 0
	}
}

func (q Quadrant) String() string {
	return fmt.Sprintf("Q%d", int(q))
}

// TaskStatus is a task lifecycle state.
type TaskStatus string

// Task statuses. Completed is terminal.
const (
	TaskStatusActive    TaskStatus = "active"
	TaskStatusPaused    TaskStatus = "paused"
	TaskStatusCompleted TaskStatus = "completed"
)

// Task is a tracked task. (Owner, Quadrant, TaskOrder) is unique and orders are never reused.
type Task struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Owner              string     `gorm:"not null;size:255;index;uniqueIndex:idx_task_owner_quadrant_order,priority:1" json:"owner"`
	Name               string     `gorm:"column:task_name;not null;size:500" json:"task_name"`
	Quadrant           Quadrant   `gorm:"not null;uniqueIndex:idx_task_owner_quadrant_order,priority:2" json:"quadrant"`
	TaskOrder          int        `gorm:"not null;uniqueIndex:idx_task_owner_quadrant_order,priority:3" json:"task_order"`
	ProgressPercentage int        `gorm:"not null;default:0" json:"progress_percentage"`
	Status             TaskStatus `gorm:"size:20;not null;default:active;index" json:"status"`
	PausedAt           *time.Time `json:"paused_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Task model.
func (Task) TableName() string {
	return "tasks"
}

// Code returns the short address used in replies, e.g. "Q1-3".
func (t *Task) Code() string {
	return fmt.Sprintf("Q%d-%d", int(t.Quadrant), t.TaskOrder)
}

// TaskSequence is the last task_order handed out for an owner and quadrant.
type TaskSequence struct {
	Owner     string   `gorm:"primaryKey;size:255" json:"owner"`
	Quadrant  Quadrant `gorm:"primaryKey;autoIncrement:false" json:"quadrant"`
	LastOrder int      `gorm:"not null;default:0" json:"last_order"`
}

// TableName specifies the table name for TaskSequence model.
func (TaskSequence) TableName() string {
	return "task_sequences"
}
