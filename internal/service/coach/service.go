// Package coach runs the coach's units of work: processing a reply, the daily review,
// the follow-up reminder and the weekly paused-task digest. Each unit holds the
// owner's lock for its whole duration.
package coach

import (
	"context"
	"errors"
	"fmt"

	"github.com/aimd54/task-coach/internal/lock"
	prommetrics "github.com/aimd54/task-coach/internal/metrics"
	"github.com/aimd54/task-coach/internal/models"
	"github.com/aimd54/task-coach/internal/notify"
	"github.com/aimd54/task-coach/internal/parser"
	"github.com/aimd54/task-coach/internal/service/ledger"
	"github.com/aimd54/task-coach/internal/service/milestone"
	"github.com/aimd54/task-coach/internal/service/progress"
	"github.com/aimd54/task-coach/internal/service/punishment"
	"github.com/aimd54/task-coach/internal/service/streak"
	"github.com/aimd54/task-coach/internal/service/tasks"
	"github.com/aimd54/task-coach/internal/service/unlock"
	"github.com/aimd54/task-coach/pkg/logger"
)

// Deps are the collaborators of the coach.
type Deps struct {
	Ledger     *ledger.Service
	Tasks      *tasks.Store
	Parser     parser.Parser
	Progress   *progress.Processor
	Streaks    *streak.Tracker
	Punishment *punishment.Engine
	Milestones *milestone.Tracker
	Notifier   notify.Notifier
	Locker     lock.Locker
}

// Service orchestrates the coach's units of work.
type Service struct {
	Deps
	recipient string
	log       *logger.Logger
}

// NewService creates a new coach. A nil Locker falls back to lock.NoopLocker.
func NewService(deps Deps, recipient string, log *logger.Logger) *Service {
	if deps.Locker == nil {
		deps.Locker = lock.NoopLocker{}
	}
	return &Service{Deps: deps, recipient: recipient, log: log}
}

// FailedUpdate is a parsed entry that could not be applied.
type FailedUpdate struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// ReplyResult is everything that happened while processing one reply.
type ReplyResult struct {
	Outcomes   []tasks.Outcome          `json:"outcomes"`
	Failed     []FailedUpdate           `json:"failed,omitempty"`
	Penalties  []punishment.Applied     `json:"penalties,omitempty"`
	Summary    *progress.Summary        `json:"summary"`
	Streak     *streak.ReplyOutcome     `json:"streak"`
	Milestone  *milestone.Granted       `json:"milestone,omitempty"`
	Profile    *models.UserGamification `json:"profile"`
	NextUnlock *unlock.NextUnlock       `json:"next_unlock,omitempty"`
	Message    string                   `json:"message"`
	Notified   map[string]bool          `json:"notified"`
}

// ProcessReply parses a free-text reply, applies every task update it contains and
// credits the ledger. Task changes, penalties, the batch credit, streaks and any
// milestone reward commit in one ledger transaction, so a failure leaves nothing
// behind and the same reply can simply be sent again. A parser failure aborts before
// the transaction starts. A task update that fails is rolled back to its savepoint
// and reported without stopping its siblings.
func (s *Service) ProcessReply(ctx context.Context, owner, reply string) (*ReplyResult, error) {
	release, err := s.Locker.Acquire(ctx, owner)
	if err != nil {
		prommetrics.RecordReplyProcessed("locked")
		return nil, err
	}
	defer release()

	updates, err := s.Parser.Parse(ctx, owner, reply)
	if err != nil {
		prommetrics.RecordReplyProcessed("parse_error")
		return nil, fmt.Errorf("failed to parse reply: %w", err)
	}

	var result *ReplyResult
	profile, err := s.Ledger.Transact(ctx, owner, "process_reply", func(ctx context.Context, tx *ledger.Tx) error {
		var err error
		result, err = s.applyReply(ctx, tx, updates)
		return err
	})
	if err != nil {
		prommetrics.RecordReplyProcessed("error")
		return nil, fmt.Errorf("failed to process reply: %w", err)
	}

	for _, f := range result.Failed {
		s.log.Warn().
			Str("owner", owner).
			Str("task", f.Name).
			Str("reason", f.Reason).
			Msg("Skipped task update")
	}

	result.Profile = profile
	result.NextUnlock = unlock.NextUnlockInfo(profile.Level, profile.CurrentExp, result.Summary.ExpGained)

	result.Message = renderFeedback(result)
	result.Notified = s.Notifier.Send(ctx, s.recipient, "📊 Task update feedback", result.Message)

	status := "success"
	if len(result.Failed) > 0 {
		status = "partial"
	}
	prommetrics.RecordReplyProcessed(status)

	s.log.Info().
		Str("owner", owner).
		Int("updates", len(result.Outcomes)).
		Int("failed", len(result.Failed)).
		Int("exp", result.Summary.ExpGained).
		Int("coins", result.Summary.CoinsGained).
		Strs("penalties", penaltyReasons(result.Penalties)).
		Msg("Processed reply")

	return result, nil
}

// applyReply is one attempt at the reply transaction. It starts from scratch on
// every attempt, so a version conflict retry sees no state from the previous one.
func (s *Service) applyReply(ctx context.Context, tx *ledger.Tx, updates []parser.TaskUpdate) (*ReplyResult, error) {
	result := &ReplyResult{}
	level := tx.Profile().Level

	var changes []progress.Change
	for _, u := range updates {
		out, err := s.Tasks.ApplyUpdateTx(ctx, tx, u)
		if err != nil {
			result.Failed = append(result.Failed, FailedUpdate{Name: u.Name, Reason: err.Error()})
			continue
		}
		result.Outcomes = append(result.Outcomes, *out)
		changes = append(changes, out.Change)
	}

	for _, c := range changes {
		if c.Delta() >= 0 {
			continue
		}
		applied, err := s.Punishment.ApplyRegression(ctx, tx, c.Code, c.OldProgress, c.NewProgress, level)
		if err != nil {
			return nil, err
		}
		if applied != nil {
			result.Penalties = append(result.Penalties, *applied)
		}
	}

	var err error
	if result.Summary, err = s.Progress.Process(ctx, tx, changes); err != nil {
		return nil, err
	}
	if result.Streak, err = s.Streaks.RecordReply(ctx, tx, changes); err != nil {
		return nil, err
	}
	if result.Milestone, err = s.Milestones.CheckMilestoneTx(ctx, tx, result.Streak.ConsecutiveReplyDays); err != nil {
		return nil, err
	}
	return result, nil
}

// ReviewResult is the outcome of a daily review.
type ReviewResult struct {
	NoReplyDays int                      `json:"no_reply_days"`
	Penalties   []punishment.Applied     `json:"penalties,omitempty"`
	Active      []models.Task            `json:"active"`
	Profile     *models.UserGamification `json:"profile"`
	Message     string                   `json:"message"`
	Notified    map[string]bool          `json:"notified"`
}

// DailyReview advances the no-reply streak, applies no-reply and delay penalties and
// sends the status. Penalties are idempotent per day, so reruns are safe.
func (s *Service) DailyReview(ctx context.Context, owner string) (*ReviewResult, error) {
	release, err := s.Locker.Acquire(ctx, owner)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &ReviewResult{}
	result.NoReplyDays, err = s.Streaks.EvaluateNoReply(ctx, owner)
	if err != nil {
		return nil, err
	}

	profile, err := s.Ledger.Profile(ctx, owner)
	if err != nil {
		return nil, err
	}

	applied, err := s.Punishment.EvaluateNoReply(ctx, owner, result.NoReplyDays, profile.Level)
	if err != nil {
		return nil, err
	}
	if applied != nil {
		result.Penalties = append(result.Penalties, *applied)
		// The no-reply penalty may have moved the level the delay table is scaled by.
		profile.Level = applied.Result.NewLevel
	}

	result.Active, err = s.Tasks.List(ctx, owner, models.TaskStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tasks: %w", err)
	}

	delays, err := s.Punishment.EvaluateTaskDelays(ctx, owner, result.Active, profile.Level)
	if err != nil {
		s.log.Error().Err(err).Str("owner", owner).Msg("Some delay penalties failed")
	}
	result.Penalties = append(result.Penalties, delays...)

	result.Profile, err = s.Ledger.Profile(ctx, owner)
	if err != nil {
		return nil, err
	}

	result.Message = renderReview(result)
	result.Notified = s.Notifier.Send(ctx, s.recipient, "🌙 Daily review", result.Message)

	s.log.Info().
		Str("owner", owner).
		Int("no_reply_days", result.NoReplyDays).
		Int("active_tasks", len(result.Active)).
		Strs("penalties", penaltyReasons(result.Penalties)).
		Msg("Daily review complete")

	return result, nil
}

// DailyFollowup reminds the owner of the active task list.
func (s *Service) DailyFollowup(ctx context.Context, owner string) (map[string]bool, error) {
	active, err := s.Tasks.List(ctx, owner, models.TaskStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tasks: %w", err)
	}
	return s.Notifier.Send(ctx, s.recipient, "⏰ Follow-up reminder", renderFollowup(active)), nil
}

// ErrNothingToSend is returned by digests with no content.
var ErrNothingToSend = errors.New("nothing to send")

// WeeklyPausedDigest asks what to do with paused tasks. With none paused it sends
// nothing and returns ErrNothingToSend.
func (s *Service) WeeklyPausedDigest(ctx context.Context, owner string) (map[string]bool, error) {
	paused, err := s.Tasks.PausedForDigest(ctx, owner, s.Ledger.Location())
	if err != nil {
		return nil, fmt.Errorf("failed to list paused tasks: %w", err)
	}
	if len(paused) == 0 {
		s.log.Debug().Str("owner", owner).Msg("No paused tasks, skipping digest")
		return nil, ErrNothingToSend
	}
	return s.Notifier.Send(ctx, s.recipient, "📋 Weekly paused-task check", renderPausedDigest(paused)), nil
}
