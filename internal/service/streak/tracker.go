// Package streak maintains the consecutive-day counters: the Q1 completion streak,
// the reply streak and the no-reply streak used by the daily review.
package streak

import (
	"context"
	"fmt"
	"time"

	"github.com/aimd54/task-coach/internal/models"
	"github.com/aimd54/task-coach/internal/repository"
	"github.com/aimd54/task-coach/internal/service/progress"
	"github.com/aimd54/task-coach/pkg/logger"
)

// Clock supplies the calendar date in the configured timezone.
type Clock interface {
	Today() time.Time
}

// Unit is the open ledger transaction a reply is recorded in.
type Unit interface {
	Owner() string
	Profile() *models.UserGamification
	Today() time.Time
	DB() *repository.DB
}

// ReplyTrackingRepository stores the disengagement counter.
type ReplyTrackingRepository interface {
	GetOrCreate(ctx context.Context, owner string) (*models.ReplyTracking, error)
	Save(ctx context.Context, tracking *models.ReplyTracking) error
}

// Advance applies the day-gap rule: yesterday extends the streak, today leaves it
// alone, anything else (including never) restarts it at 1. The second result
// reports whether the counter was touched.
func Advance(count int, last *time.Time, today time.Time) (int, bool) {
	if last == nil {
		return 1, true
	}
	switch models.DaysBetween(*last, today) {
	case 0:
		return count, false
	case 1:
		return count + 1, true
	default:
		return 1, true
	}
}

// QualifiesQ1 reports whether the batch has Q1 tasks and every one of them completed.
func QualifiesQ1(changes []progress.Change) bool {
	seen := false
	for _, c := range changes {
		if c.Quadrant != models.Q1 {
			continue
		}
		if !c.Completed {
			return false
		}
		seen = true
	}
	return seen
}

// NoReplyDays returns the number of silent days implied by a last reply date.
// A reply yesterday or today yields zero.
func NoReplyDays(last *time.Time, today time.Time) int {
	if last == nil {
		return 0
	}
	return max(models.DaysBetween(*last, today)-1, 0)
}

// ReplyOutcome is the streak state after a reply.
type ReplyOutcome struct {
	ConsecutiveReplyDays int  `json:"consecutive_reply_days"`
	TotalReplyDays       int  `json:"total_reply_days"`
	ConsecutiveQ1Days    int  `json:"consecutive_q1_days"`
	Q1Advanced           bool `json:"q1_advanced"`
}

// Tracker updates streak counters.
type Tracker struct {
	clock    Clock
	tracking ReplyTrackingRepository
	within   func(tx *repository.DB) ReplyTrackingRepository
	log      *logger.Logger
}

// NewTracker creates a new streak tracker. tracking serves the daily review, replies
// reach the tracking row through their own transaction.
func NewTracker(clock Clock, tracking ReplyTrackingRepository, log *logger.Logger) *Tracker {
	return &Tracker{
		clock:    clock,
		tracking: tracking,
		within: func(tx *repository.DB) ReplyTrackingRepository {
			return repository.NewReplyTrackingRepository(tx)
		},
		log: log,
	}
}

// RecordReply advances the reply streak, and the Q1 streak when the batch qualifies,
// then clears the no-reply counter. Both rows are written in tx.
func (t *Tracker) RecordReply(ctx context.Context, tx Unit, changes []progress.Change) (*ReplyOutcome, error) {
	today := tx.Today()
	owner := tx.Owner()
	p := tx.Profile()
	outcome := &ReplyOutcome{}

	if n, changed := Advance(p.ConsecutiveReplyDays, p.LastReplyDate, today); changed {
		p.ConsecutiveReplyDays = n
		p.TotalReplyDays++
		p.LastReplyDate = &today
	}
	if QualifiesQ1(changes) {
		if n, changed := Advance(p.ConsecutiveQ1Days, p.LastQ1CompleteDate, today); changed {
			p.ConsecutiveQ1Days = n
			p.LastQ1CompleteDate = &today
			outcome.Q1Advanced = true
		}
	}
	outcome.ConsecutiveReplyDays = p.ConsecutiveReplyDays
	outcome.TotalReplyDays = p.TotalReplyDays
	outcome.ConsecutiveQ1Days = p.ConsecutiveQ1Days

	repo := t.within(tx.DB())
	tracking, err := repo.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load reply tracking: %w", err)
	}
	tracking.LastReplyDate = &today
	tracking.ConsecutiveNoReplyDays = 0
	tracking.TotalReplies++
	if err := repo.Save(ctx, tracking); err != nil {
		return nil, fmt.Errorf("failed to save reply tracking: %w", err)
	}

	t.log.Debug().
		Str("owner", owner).
		Int("reply_days", outcome.ConsecutiveReplyDays).
		Int("q1_days", outcome.ConsecutiveQ1Days).
		Bool("q1_advanced", outcome.Q1Advanced).
		Msg("Recorded reply")

	return outcome, nil
}

// EvaluateNoReply recomputes the no-reply streak for the daily review and returns it.
// An owner who never replied is counted from the first review instead.
func (t *Tracker) EvaluateNoReply(ctx context.Context, owner string) (int, error) {
	today := t.clock.Today()

	tracking, err := t.tracking.GetOrCreate(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("failed to load reply tracking: %w", err)
	}

	since := tracking.LastReplyDate
	if since == nil {
		if tracking.ClockStartedAt == nil {
			tracking.ClockStartedAt = &today
		}
		since = tracking.ClockStartedAt
	}
	tracking.ConsecutiveNoReplyDays = NoReplyDays(since, today)

	if err := t.tracking.Save(ctx, tracking); err != nil {
		return 0, fmt.Errorf("failed to save reply tracking: %w", err)
	}

	t.log.Debug().
		Str("owner", owner).
		Int("no_reply_days", tracking.ConsecutiveNoReplyDays).
		Msg("Evaluated no-reply streak")

	return tracking.ConsecutiveNoReplyDays, nil
}
