// Package tasks manages the task lifecycle: active, paused and completed, with short
// codes of the form Q{quadrant}-{order}.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	prommetrics "github.com/aimd54/task-coach/internal/metrics"
	"github.com/aimd54/task-coach/internal/models"
	"github.com/aimd54/task-coach/internal/parser"
	"github.com/aimd54/task-coach/internal/repository"
	"github.com/aimd54/task-coach/internal/service/ledger"
	"github.com/aimd54/task-coach/internal/service/progress"
	"github.com/aimd54/task-coach/pkg/logger"
)

var (
	// ErrTaskNotFound is returned when a code or name matches no task.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskCompleted is returned when a completed task would be changed.
	ErrTaskCompleted = errors.New("task is completed")
	// ErrInvalidTransition is returned for lifecycle moves the state machine forbids.
	ErrInvalidTransition = errors.New("invalid task state transition")
	// ErrInvalidCode is returned for strings that are not task codes.
	ErrInvalidCode = errors.New("invalid task code")
)

var codePattern = regexp.MustCompile(`^[Qq]([1-4])-(\d+)$`)

// Code addresses a task by quadrant and order.
type Code struct {
	Quadrant models.Quadrant
	Order    int
}

func (c Code) String() string {
	return fmt.Sprintf("Q%d-%d", int(c.Quadrant), c.Order)
}

// ParseCode reads "Q1-3" (any case).
func ParseCode(s string) (Code, error) {
	m := codePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Code{}, fmt.Errorf("%w: %q", ErrInvalidCode, s)
	}
	q, _ := strconv.Atoi(m[1])
	order, err := strconv.Atoi(m[2])
	if err != nil || order < 1 {
		return Code{}, fmt.Errorf("%w: %q", ErrInvalidCode, s)
	}
	return Code{Quadrant: models.Quadrant(q), Order: order}, nil
}

// Store is the task lifecycle store.
type Store struct {
	db      *repository.DB
	timeout time.Duration
	now     func() time.Time
	log     *logger.Logger
}

// NewStore creates a new task store.
func NewStore(db *repository.DB, timeout time.Duration, log *logger.Logger) *Store {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Store{db: db, timeout: timeout, now: time.Now, log: log}
}

// Create adds an active task with the next order of its quadrant.
func (s *Store) Create(ctx context.Context, owner, name string, quadrant models.Quadrant, progressPct int) (*models.Task, error) {
	if !quadrant.Valid() {
		return nil, fmt.Errorf("invalid quadrant %d", quadrant)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	task := &models.Task{
		Owner:              owner,
		Name:               strings.TrimSpace(name),
		Quadrant:           quadrant,
		ProgressPercentage: clamp(progressPct),
		Status:             models.TaskStatusActive,
	}
	if task.ProgressPercentage == 100 {
		task.Status = models.TaskStatusCompleted
		now := s.now()
		task.CompletedAt = &now
	}

	err := s.db.InTx(ctx, func(tx *repository.DB) error {
		repo := repository.NewTaskRepository(tx)
		order, err := repo.NextOrder(ctx, owner, quadrant)
		if err != nil {
			return err
		}
		task.TaskOrder = order
		return repo.Create(ctx, task)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	prommetrics.RecordTaskUpdate("create")
	s.log.Info().
		Str("owner", owner).
		Str("task", task.Code()).
		Str("name", task.Name).
		Msg("Created task")

	return task, nil
}

// Find returns the task addressed by code in any state.
func (s *Store) Find(ctx context.Context, owner string, code Code) (*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.find(ctx, repository.NewTaskRepository(s.db), owner, code)
}

func (s *Store) find(ctx context.Context, repo *repository.TaskRepository, owner string, code Code) (*models.Task, error) {
	task, err := repo.FindByCode(ctx, owner, code.Quadrant, code.Order)
	if repository.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task %s: %w", code, err)
	}
	return task, nil
}

// FindByName returns the latest non-completed task with exactly this name.
func (s *Store) FindByName(ctx context.Context, owner, name string) (*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	task, err := repository.NewTaskRepository(s.db).FindOpenByName(ctx, owner, strings.TrimSpace(name))
	if repository.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task %q: %w", name, err)
	}
	return task, nil
}

// List returns the owner's tasks in the given states, every state when none are given.
func (s *Store) List(ctx context.Context, owner string, statuses ...models.TaskStatus) ([]models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return repository.NewTaskRepository(s.db).ListByStatus(ctx, owner, statuses...)
}

// CompletedSince returns tasks completed at or after since.
func (s *Store) CompletedSince(ctx context.Context, owner string, since time.Time) ([]models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return repository.NewTaskRepository(s.db).ListCompletedSince(ctx, owner, since)
}

// PausedTask is a paused task with how long it has been parked.
type PausedTask struct {
	Task       models.Task `json:"task"`
	DaysPaused int         `json:"days_paused"`
}

// PausedForDigest lists paused tasks with their age in calendar days in loc.
func (s *Store) PausedForDigest(ctx context.Context, owner string, loc *time.Location) ([]PausedTask, error) {
	paused, err := s.List(ctx, owner, models.TaskStatusPaused)
	if err != nil {
		return nil, err
	}
	today := models.Today(s.now(), loc)
	out := make([]PausedTask, 0, len(paused))
	for _, task := range paused {
		since := task.UpdatedAt
		if task.PausedAt != nil {
			since = *task.PausedAt
		}
		out = append(out, PausedTask{
			Task:       task,
			DaysPaused: models.DaysBetween(models.Today(since, loc), today),
		})
	}
	return out, nil
}

// UpdateProgress sets the percentage of a non-completed task. Reaching 100 completes it.
func (s *Store) UpdateProgress(ctx context.Context, owner string, code Code, pct int) (*progress.Change, error) {
	return s.transition(ctx, owner, code, "progress", func(_ context.Context, _ *repository.TaskRepository, task *models.Task) error {
		if task.Status == models.TaskStatusCompleted {
			return ErrTaskCompleted
		}
		s.setProgress(task, pct)
		return nil
	})
}

// Pause parks an active task.
func (s *Store) Pause(ctx context.Context, owner string, code Code) (*progress.Change, error) {
	return s.transition(ctx, owner, code, "pause", func(_ context.Context, _ *repository.TaskRepository, task *models.Task) error {
		if task.Status != models.TaskStatusActive {
			return fmt.Errorf("%w: cannot pause a %s task", ErrInvalidTransition, task.Status)
		}
		now := s.now()
		task.Status = models.TaskStatusPaused
		task.PausedAt = &now
		return nil
	})
}

// Resume reactivates a paused task under a freshly minted order. A valid target moves
// it to that quadrant, otherwise it stays in its own. The old order is retired.
func (s *Store) Resume(ctx context.Context, owner string, code Code, target models.Quadrant) (*progress.Change, error) {
	return s.transition(ctx, owner, code, "resume", func(ctx context.Context, repo *repository.TaskRepository, task *models.Task) error {
		if task.Status != models.TaskStatusPaused {
			return fmt.Errorf("%w: cannot resume a %s task", ErrInvalidTransition, task.Status)
		}
		return s.reorder(ctx, repo, task, target, models.TaskStatusActive)
	})
}

// Complete marks a task done. Completed tasks are kept for reporting.
func (s *Store) Complete(ctx context.Context, owner string, code Code) (*progress.Change, error) {
	return s.transition(ctx, owner, code, "complete", func(_ context.Context, _ *repository.TaskRepository, task *models.Task) error {
		if task.Status == models.TaskStatusCompleted {
			return ErrTaskCompleted
		}
		s.setProgress(task, 100)
		return nil
	})
}

// Outcome is the result of applying one parsed update.
type Outcome struct {
	Task    *models.Task    `json:"task"`
	Change  progress.Change `json:"change"`
	Created bool            `json:"created"`
	Action  parser.Action   `json:"action"`
}

// ApplyUpdate applies a parsed reply entry. The entry's name may be a task code or a
// task name. An unknown name creates the task, an unknown code is ErrTaskNotFound.
// Progress is applied before the action, so "complete" always ends at 100.
func (s *Store) ApplyUpdate(ctx context.Context, owner string, u parser.TaskUpdate) (*Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.applyUpdate(ctx, s.db, owner, u)
	if err != nil {
		return nil, err
	}
	s.recordUpdate(owner, u, out)
	return out, nil
}

// ApplyUpdateTx is ApplyUpdate inside a ledger transaction, so the task change commits
// with the credit it earns. The update runs in a savepoint: a failure leaves tx usable
// for the remaining updates.
func (s *Store) ApplyUpdateTx(ctx context.Context, tx *ledger.Tx, u parser.TaskUpdate) (*Outcome, error) {
	owner := tx.Owner()
	out, err := s.applyUpdate(ctx, tx.DB(), owner, u)
	if err != nil {
		return nil, err
	}
	tx.AfterCommit(func() { s.recordUpdate(owner, u, out) })
	return out, nil
}

func (s *Store) applyUpdate(ctx context.Context, db *repository.DB, owner string, u parser.TaskUpdate) (*Outcome, error) {
	var out Outcome
	err := db.InTx(ctx, func(tx *repository.DB) error {
		repo := repository.NewTaskRepository(tx)

		task, err := s.lookup(ctx, repo, owner, u.Name)
		if errors.Is(err, ErrTaskNotFound) {
			if _, codeErr := ParseCode(u.Name); codeErr == nil {
				return err
			}
			return s.createFromUpdate(ctx, repo, owner, u, &out)
		}
		if err != nil {
			return err
		}
		if task.Status == models.TaskStatusCompleted {
			return fmt.Errorf("%w: %s", ErrTaskCompleted, task.Code())
		}

		old := task.ProgressPercentage
		oldCode := task.Code()

		// A task that was paused comes back under a fresh order once it is reported on again.
		switch {
		case task.Status == models.TaskStatusPaused && u.Action != parser.ActionPause:
			target := task.Quadrant
			if u.QuadrantSet {
				target = u.Quadrant
			}
			if err := s.reorder(ctx, repo, task, target, models.TaskStatusActive); err != nil {
				return err
			}
		case u.QuadrantSet && u.Quadrant != task.Quadrant:
			if err := s.reorder(ctx, repo, task, u.Quadrant, task.Status); err != nil {
				return err
			}
		}

		switch u.Action {
		case parser.ActionComplete:
			s.setProgress(task, 100)
		case parser.ActionPause:
			// Pause replies rarely restate progress; zero keeps the stored value.
			if u.Progress > 0 {
				s.setProgress(task, u.Progress)
			}
			if task.Status == models.TaskStatusActive {
				now := s.now()
				task.Status = models.TaskStatusPaused
				task.PausedAt = &now
			}
		default:
			s.setProgress(task, u.Progress)
		}

		if err := repo.Save(ctx, task); err != nil {
			return fmt.Errorf("failed to save task %s: %w", oldCode, err)
		}

		out = Outcome{Task: task, Change: changeOf(task, old), Action: u.Action}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) recordUpdate(owner string, u parser.TaskUpdate, out *Outcome) {
	prommetrics.RecordTaskUpdate(string(u.Action))
	s.log.Debug().
		Str("owner", owner).
		Str("task", out.Task.Code()).
		Str("action", string(u.Action)).
		Int("old", out.Change.OldProgress).
		Int("new", out.Change.NewProgress).
		Bool("created", out.Created).
		Msg("Applied task update")
}

func (s *Store) createFromUpdate(ctx context.Context, repo *repository.TaskRepository, owner string, u parser.TaskUpdate, out *Outcome) error {
	quadrant := u.Quadrant
	if !quadrant.Valid() {
		quadrant = models.Q1
	}
	order, err := repo.NextOrder(ctx, owner, quadrant)
	if err != nil {
		return err
	}
	task := &models.Task{
		Owner:     owner,
		Name:      u.Name,
		Quadrant:  quadrant,
		TaskOrder: order,
		Status:    models.TaskStatusActive,
	}
	switch u.Action {
	case parser.ActionComplete:
		s.setProgress(task, 100)
	case parser.ActionPause:
		s.setProgress(task, u.Progress)
		now := s.now()
		task.Status = models.TaskStatusPaused
		task.PausedAt = &now
	default:
		s.setProgress(task, u.Progress)
	}
	if err := repo.Create(ctx, task); err != nil {
		return fmt.Errorf("failed to create task %q: %w", u.Name, err)
	}

	*out = Outcome{Task: task, Change: changeOf(task, 0), Created: true, Action: u.Action}
	return nil
}

func (s *Store) lookup(ctx context.Context, repo *repository.TaskRepository, owner, ref string) (*models.Task, error) {
	if code, err := ParseCode(ref); err == nil {
		return s.find(ctx, repo, owner, code)
	}
	task, err := repo.FindOpenByName(ctx, owner, strings.TrimSpace(ref))
	if repository.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task %q: %w", ref, err)
	}
	return task, nil
}

type mutation func(ctx context.Context, repo *repository.TaskRepository, task *models.Task) error

func (s *Store) transition(ctx context.Context, owner string, code Code, action string, fn mutation) (*progress.Change, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var change progress.Change
	err := s.db.InTx(ctx, func(tx *repository.DB) error {
		repo := repository.NewTaskRepository(tx)
		task, err := s.find(ctx, repo, owner, code)
		if err != nil {
			return err
		}
		old := task.ProgressPercentage
		if err := fn(ctx, repo, task); err != nil {
			return err
		}
		if err := repo.Save(ctx, task); err != nil {
			return fmt.Errorf("failed to save task %s: %w", code, err)
		}
		change = changeOf(task, old)
		return nil
	})
	if err != nil {
		return nil, err
	}

	prommetrics.RecordTaskUpdate(action)
	s.log.Info().
		Str("owner", owner).
		Str("task", code.String()).
		Str("now", change.Code).
		Str("action", action).
		Msg("Task transitioned")

	return &change, nil
}

// reorder moves task to quadrant under a new order and sets its status.
func (s *Store) reorder(ctx context.Context, repo *repository.TaskRepository, task *models.Task, quadrant models.Quadrant, status models.TaskStatus) error {
	if !quadrant.Valid() {
		quadrant = task.Quadrant
	}
	order, err := repo.NextOrder(ctx, task.Owner, quadrant)
	if err != nil {
		return err
	}
	task.Quadrant = quadrant
	task.TaskOrder = order
	task.Status = status
	if status == models.TaskStatusActive {
		task.PausedAt = nil
	}
	return nil
}

func (s *Store) setProgress(task *models.Task, pct int) {
	task.ProgressPercentage = clamp(pct)
	if task.ProgressPercentage == 100 && task.Status != models.TaskStatusCompleted {
		now := s.now()
		task.Status = models.TaskStatusCompleted
		task.CompletedAt = &now
		task.PausedAt = nil
	}
}

func changeOf(task *models.Task, old int) progress.Change {
	return progress.Change{
		Code:        task.Code(),
		Name:        task.Name,
		Quadrant:    task.Quadrant,
		OldProgress: old,
		NewProgress: task.ProgressPercentage,
		Completed:   task.Status == models.TaskStatusCompleted,
	}
}

func clamp(pct int) int {
	return max(0, min(100, pct))
}
