package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aimd54/task-coach/internal/models"
)

// TaskRepository handles task and task sequence rows.
type TaskRepository struct {
	db *DB
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a task. The task_order must come from NextOrder.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	return translate(r.db.WithContext(ctx).Create(task).Error)
}

// Save persists every field of an existing task.
func (r *TaskRepository) Save(ctx context.Context, task *models.Task) error {
	return translate(r.db.WithContext(ctx).Save(task).Error)
}

// FindByCode returns the task addressed by quadrant and order in any state.
func (r *TaskRepository) FindByCode(ctx context.Context, owner string, quadrant models.Quadrant, order int) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).
		Where("owner = ? AND quadrant = ? AND task_order = ?", owner, quadrant, order).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// FindOpenByName returns the most recently updated non-completed task with the given name.
func (r *TaskRepository) FindOpenByName(ctx context.Context, owner, name string) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).
		Where("owner = ? AND task_name = ? AND status <> ?", owner, name, models.TaskStatusCompleted).
		Order("updated_at DESC").
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListByStatus returns the owner's tasks in the given states ordered by quadrant and order.
func (r *TaskRepository) ListByStatus(ctx context.Context, owner string, statuses ...models.TaskStatus) ([]models.Task, error) {
	var tasks []models.Task
	q := r.db.WithContext(ctx).Where("owner = ?", owner)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	err := q.Order("quadrant ASC, task_order ASC").Find(&tasks).Error
	return tasks, err
}

// ListCompletedSince returns tasks completed at or after since, most recent first.
func (r *TaskRepository) ListCompletedSince(ctx context.Context, owner string, since time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.WithContext(ctx).
		Where("owner = ? AND status = ? AND completed_at >= ?", owner, models.TaskStatusCompleted, since).
		Order("completed_at DESC").
		Find(&tasks).Error
	return tasks, err
}

// NextOrder atomically advances and returns the task_order counter for owner and quadrant.
// A new counter starts after the highest order already present so orders are never reused.
// Call it inside a transaction together with the insert that consumes the order.
func (r *TaskRepository) NextOrder(ctx context.Context, owner string, quadrant models.Quadrant) (int, error) {
	db := r.db.WithContext(ctx)

	var maxOrder int
	if err := db.Model(&models.Task{}).
		Where("owner = ? AND quadrant = ?", owner, quadrant).
		Select("COALESCE(MAX(task_order), 0)").
		Scan(&maxOrder).Error; err != nil {
		return 0, fmt.Errorf("failed to read max task order: %w", err)
	}

	seq := models.TaskSequence{Owner: owner, Quadrant: quadrant, LastOrder: maxOrder}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error; err != nil {
		return 0, fmt.Errorf("failed to create task sequence: %w", err)
	}

	if err := db.Model(&models.TaskSequence{}).
		Where("owner = ? AND quadrant = ?", owner, quadrant).
		Update("last_order", gorm.Expr("last_order + 1")).Error; err != nil {
		return 0, fmt.Errorf("failed to advance task sequence: %w", err)
	}

	if err := db.Where("owner = ? AND quadrant = ?", owner, quadrant).First(&seq).Error; err != nil {
		return 0, fmt.Errorf("failed to read task sequence: %w", err)
	}
	return seq.LastOrder, nil
}

// IsNotFound reports whether err is a missing-record error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
