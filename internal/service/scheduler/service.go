// Package scheduler runs the coach's recurring jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aimd54/task-coach/internal/config"
	prommetrics "github.com/aimd54/task-coach/internal/metrics"
	"github.com/aimd54/task-coach/internal/models"
	"github.com/aimd54/task-coach/internal/service/coach"
	"github.com/aimd54/task-coach/internal/service/report"
	"github.com/aimd54/task-coach/pkg/logger"
)

// Job names, as accepted by RunJob.
const (
	JobDailyReview   = "daily-review"
	JobFollowup      = "followup"
	JobPausedDigest  = "paused-digest"
	JobWeeklyReport  = "weekly-report"
	JobMonthlyReport = "monthly-report"
	JobResetDaily    = "reset-daily"
	JobResetWeekly   = "reset-weekly"
	JobResetMonthly  = "reset-monthly"
)

// Usage counters reset at midnight; weekly windows start on Monday.
const (
	resetDailySchedule   = "0 0 * * *"
	resetWeeklySchedule  = "0 0 * * 1"
	resetMonthlySchedule = "0 0 1 * *"
)

// ErrUnknownJob is returned by RunJob for a name it does not know.
var ErrUnknownJob = errors.New("unknown job")

// Coach is the subset of the coach the scheduler triggers.
type Coach interface {
	DailyReview(ctx context.Context, owner string) (*coach.ReviewResult, error)
	DailyFollowup(ctx context.Context, owner string) (map[string]bool, error)
	WeeklyPausedDigest(ctx context.Context, owner string) (map[string]bool, error)
}

// Reporter sends the weekly and monthly reports.
type Reporter interface {
	SendWeekly(ctx context.Context, owner, recipient string) (map[string]bool, error)
	SendMonthly(ctx context.Context, owner, recipient string) (map[string]bool, error)
}

// UsageResetter clears shop usage counters for a window.
type UsageResetter interface {
	ResetUsageCounters(ctx context.Context, window models.UsageLimitType) (int64, error)
}

// Service handles recurring job scheduling.
type Service struct {
	config   *config.Config
	coach    Coach
	reporter Reporter
	shop     UsageResetter
	log      *logger.Logger
	cron     *cron.Cron
	timeout  time.Duration
}

// NewService creates a new scheduler service.
func NewService(
	cfg *config.Config,
	coachSvc Coach,
	reporter Reporter,
	shop UsageResetter,
	log *logger.Logger,
) *Service {
	return &Service{
		config:   cfg,
		coach:    coachSvc,
		reporter: reporter,
		shop:     shop,
		log:      log,
		timeout:  5 * time.Minute,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Scheduler.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.Coach.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Coach.Timezone, err)
	}

	schedules, err := s.schedules()
	if err != nil {
		return err
	}

	s.cron = cron.New(cron.WithLocation(location))

	names := make([]string, 0, len(schedules))
	for name := range schedules {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		job := name
		if _, err := s.cron.AddFunc(schedules[job], func() {
			_ = s.RunJob(context.Background(), job)
		}); err != nil {
			return fmt.Errorf("failed to register %s job: %w", job, err)
		}
		s.log.Info().
			Str("job", job).
			Str("schedule", schedules[job]).
			Msg("Scheduler job registered")
	}

	s.cron.Start()

	nextRun := ""
	for _, e := range s.cron.Entries() {
		if nextRun == "" || e.Next.Format(time.RFC3339) < nextRun {
			nextRun = e.Next.Format(time.RFC3339)
		}
	}

	s.log.Info().
		Str("timezone", s.config.Coach.Timezone).
		Int("jobs", len(names)).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// schedules maps every job to its cron expression.
func (s *Service) schedules() (map[string]string, error) {
	cfg := s.config.Scheduler
	out := map[string]string{
		JobResetDaily:   resetDailySchedule,
		JobResetWeekly:  resetWeeklySchedule,
		JobResetMonthly: resetMonthlySchedule,
	}

	timed := []struct {
		job     string
		at      string
		weekday int
	}{
		{JobDailyReview, cfg.DailyReviewTime, -1},
		{JobFollowup, cfg.FollowupTime, -1},
		{JobPausedDigest, cfg.WeeklyDigestTime, cfg.WeeklyDigestDay},
		{JobWeeklyReport, cfg.WeeklyReportTime, cfg.WeeklyReportDay},
	}
	for _, t := range timed {
		if t.at == "" {
			continue
		}
		expr, err := buildCronExpression(t.at, t.weekday)
		if err != nil {
			return nil, fmt.Errorf("failed to build cron expression for %s: %w", t.job, err)
		}
		out[t.job] = expr
	}

	if cfg.MonthlyReportTime != "" {
		expr, err := buildMonthlyCronExpression(cfg.MonthlyReportTime, cfg.MonthlyReportDay)
		if err != nil {
			return nil, fmt.Errorf("failed to build cron expression for %s: %w", JobMonthlyReport, err)
		}
		out[JobMonthlyReport] = expr
	}
	return out, nil
}

// buildCronExpression turns "HH:MM" into a cron expression, daily when weekday is
// negative, otherwise once a week on weekday (0 = Sunday).
func buildCronExpression(at string, weekday int) (string, error) {
	hour, minute, err := parseClock(at)
	if err != nil {
		return "", err
	}

	// Format: "minute hour day month weekday"
	if weekday < 0 {
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	}
	if weekday > 6 {
		return "", fmt.Errorf("invalid weekday %d", weekday)
	}
	return fmt.Sprintf("%d %d * * %d", minute, hour, weekday), nil
}

// buildMonthlyCronExpression runs at "HH:MM" on day of every month. Days past 28
// would skip February, so they are rejected.
func buildMonthlyCronExpression(at string, day int) (string, error) {
	hour, minute, err := parseClock(at)
	if err != nil {
		return "", err
	}
	if day < 1 || day > 28 {
		return "", fmt.Errorf("invalid day of month %d", day)
	}
	return fmt.Sprintf("%d %d %d * *", minute, hour, day), nil
}

func parseClock(at string) (int, int, error) {
	parts := strings.Split(at, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time format %q, expected HH:MM", at)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour %q", parts[0])
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute %q", parts[1])
	}
	return hour, minute, nil
}

// RunJob executes one job immediately. It is what the cron entries call, and the
// CLI uses it for one-shot runs.
func (s *Service) RunJob(ctx context.Context, job string) error {
	run, ok := s.jobs()[job]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, job)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		prommetrics.ObserveSchedulerJobDuration(job, time.Since(start).Seconds())
		prommetrics.SetSchedulerLastRun(job)
	}()

	s.log.Info().Str("job", job).Msg("Running scheduler job")

	err := run(ctx)
	switch {
	case errors.Is(err, coach.ErrNothingToSend):
		prommetrics.RecordSchedulerJobRun(job, "skipped")
		s.log.Info().Str("job", job).Msg("Scheduler job had nothing to send")
		return nil
	case err != nil:
		prommetrics.RecordSchedulerJobRun(job, "error")
		s.log.Error().
			Err(err).
			Str("job", job).
			Dur("duration", time.Since(start)).
			Msg("Scheduler job failed")
		return err
	}

	prommetrics.RecordSchedulerJobRun(job, "success")
	s.log.Info().
		Str("job", job).
		Dur("duration", time.Since(start)).
		Msg("Scheduler job completed successfully")
	return nil
}

// Jobs lists the job names RunJob accepts.
func (s *Service) Jobs() []string {
	names := make([]string, 0, len(s.jobs()))
	for name := range s.jobs() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Service) jobs() map[string]func(context.Context) error {
	owner := s.config.Coach.Owner
	return map[string]func(context.Context) error{
		JobDailyReview: func(ctx context.Context) error {
			_, err := s.coach.DailyReview(ctx, owner)
			return err
		},
		JobFollowup: func(ctx context.Context) error {
			_, err := s.coach.DailyFollowup(ctx, owner)
			return err
		},
		JobPausedDigest: func(ctx context.Context) error {
			_, err := s.coach.WeeklyPausedDigest(ctx, owner)
			return err
		},
		JobWeeklyReport: func(ctx context.Context) error {
			_, err := s.reporter.SendWeekly(ctx, owner, s.config.Coach.Recipient)
			return err
		},
		JobMonthlyReport: func(ctx context.Context) error {
			_, err := s.reporter.SendMonthly(ctx, owner, s.config.Coach.Recipient)
			return err
		},
		JobResetDaily:   s.resetJob(models.UsageDaily),
		JobResetWeekly:  s.resetJob(models.UsageWeekly),
		JobResetMonthly: s.resetJob(models.UsageMonthly),
	}
}

func (s *Service) resetJob(window models.UsageLimitType) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := s.shop.ResetUsageCounters(ctx, window)
		if err != nil {
			return err
		}
		s.log.Info().Str("window", string(window)).Int64("rows", n).Msg("Reset shop usage counters")
		return nil
	}
}

var (
	_ Coach    = (*coach.Service)(nil)
	_ Reporter = (*report.Service)(nil)
)
