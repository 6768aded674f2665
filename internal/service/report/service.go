package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aimd54/task-coach/internal/models"
	"github.com/aimd54/task-coach/internal/notify"
	"github.com/aimd54/task-coach/internal/repository"
	"github.com/aimd54/task-coach/internal/service/ledger"
	"github.com/aimd54/task-coach/internal/service/unlock"
	"github.com/aimd54/task-coach/pkg/logger"
)

// Period is the span a report covers and how it is titled.
type Period struct {
	Name   string
	Title  string
	Window time.Duration
	// Completed counts at or above which the period reads as excellent or good.
	Excellent int
	Good      int
}

var (
	Weekly  = Period{Name: "weekly", Title: "📈 Weekly report", Window: 7 * 24 * time.Hour, Excellent: 5, Good: 3}
	Monthly = Period{Name: "monthly", Title: "📊 Monthly report", Window: 30 * 24 * time.Hour, Excellent: 20, Good: 10}
)

// TaskSource lists the tasks a report counts.
type TaskSource interface {
	List(ctx context.Context, owner string, statuses ...models.TaskStatus) ([]models.Task, error)
	CompletedSince(ctx context.Context, owner string, since time.Time) ([]models.Task, error)
}

// Report is one owner's summary over a period.
type Report struct {
	Owner     string                   `json:"owner"`
	Period    string                   `json:"period"`
	Title     string                   `json:"title"`
	From      time.Time                `json:"from"`
	To        time.Time                `json:"to"`
	Completed []models.Task            `json:"completed"`
	Tasks     TaskStats                `json:"tasks"`
	Ledger    LedgerStats              `json:"ledger"`
	Profile   *models.UserGamification `json:"profile"`
	Analytics bool                     `json:"analytics"`
	Insights  []string                 `json:"insights,omitempty"`
}

// Service builds and sends periodic reports.
type Service struct {
	ledger   *ledger.Service
	tasks    TaskSource
	history  *repository.HistoryRepository
	notifier notify.Notifier
	now      func() time.Time
	log      *logger.Logger
}

// NewService creates a new report service.
func NewService(l *ledger.Service, tasks TaskSource, history *repository.HistoryRepository, notifier notify.Notifier, log *logger.Logger) *Service {
	return &Service{
		ledger:   l,
		tasks:    tasks,
		history:  history,
		notifier: notifier,
		now:      time.Now,
		log:      log,
	}
}

// Build collects the activity for owner over period. The quadrant and penalty
// breakdown is only included once the analytics feature is unlocked.
func (s *Service) Build(ctx context.Context, owner string, period Period) (*Report, error) {
	to := s.now()
	from := to.Add(-period.Window)

	profile, err := s.ledger.Profile(ctx, owner)
	if err != nil {
		return nil, err
	}

	completed, err := s.tasks.CompletedSince(ctx, owner, from)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed tasks: %w", err)
	}
	open, err := s.tasks.List(ctx, owner, models.TaskStatusActive, models.TaskStatusPaused)
	if err != nil {
		return nil, fmt.Errorf("failed to list open tasks: %w", err)
	}

	exp, err := s.history.ExpSince(ctx, owner, from)
	if err != nil {
		return nil, fmt.Errorf("failed to read exp history: %w", err)
	}
	punishments, err := s.history.PunishmentsSince(ctx, owner, from)
	if err != nil {
		return nil, fmt.Errorf("failed to read punishment history: %w", err)
	}

	stats := CalculateTaskStats(completed, open)
	return &Report{
		Owner:     owner,
		Period:    period.Name,
		Title:     period.Title,
		From:      from,
		To:        to,
		Completed: completed,
		Tasks:     stats,
		Ledger:    CalculateLedgerStats(exp, punishments),
		Profile:   profile,
		Analytics: profile.Level >= unlock.FeatureLevel(unlock.FeatureAnalytics),
		Insights:  Analyze(stats, period),
	}, nil
}

// SendWeekly builds the last seven days' report and sends it to recipient.
func (s *Service) SendWeekly(ctx context.Context, owner, recipient string) (map[string]bool, error) {
	return s.send(ctx, owner, recipient, Weekly)
}

// SendMonthly builds the last thirty days' report and sends it to recipient.
func (s *Service) SendMonthly(ctx context.Context, owner, recipient string) (map[string]bool, error) {
	return s.send(ctx, owner, recipient, Monthly)
}

func (s *Service) send(ctx context.Context, owner, recipient string, period Period) (map[string]bool, error) {
	r, err := s.Build(ctx, owner, period)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("owner", owner).
		Str("period", period.Name).
		Int("completed", r.Tasks.Completed).
		Int("exp", r.Ledger.ExpEarned).
		Bool("analytics", r.Analytics).
		Msg("Built report")

	return s.notifier.Send(ctx, recipient, period.Title, Render(r)), nil
}

// Render formats a report as a chat message.
func Render(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s to %s\n\n", r.Title, r.From.Format("Jan 2"), r.To.Format("Jan 2"))

	fmt.Fprintf(&b, "✅ Completed: %d tasks\n", r.Tasks.Completed)
	for _, t := range r.Completed {
		fmt.Fprintf(&b, "   • %s %s\n", t.Code(), t.Name)
	}
	fmt.Fprintf(&b, "🔄 Active: %d  ⏸️ Paused: %d\n", r.Tasks.Active, r.Tasks.Paused)
	fmt.Fprintf(&b, "📊 Completion rate: %.0f%%\n", r.Tasks.CompletionRate)
	fmt.Fprintf(&b, "📐 Average progress: %.0f%%\n\n", r.Tasks.AverageProgress)

	fmt.Fprintf(&b, "✨ EXP earned: %d\n", r.Ledger.ExpEarned)
	fmt.Fprintf(&b, "💰 Coins earned: %d, spent: %d\n", r.Ledger.CoinsEarned, r.Ledger.CoinsSpent)
	if r.Ledger.LevelUps > 0 {
		fmt.Fprintf(&b, "⬆️ Levels gained: %d\n", r.Ledger.LevelUps)
	}

	if len(r.Insights) > 0 {
		b.WriteString("\n💡 Analysis:\n")
		for _, line := range r.Insights {
			fmt.Fprintf(&b, "   %s\n", line)
		}
	}

	if !r.Analytics {
		fmt.Fprintf(&b, "\n🔒 Quadrant and penalty analytics unlock at LV%d.", unlock.FeatureLevel(unlock.FeatureAnalytics))
		return b.String()
	}

	b.WriteString("\n📋 Completed by quadrant:\n")
	for _, q := range models.Quadrants {
		fmt.Fprintf(&b, "   %s: %d\n", q, r.Tasks.ByQuadrant[q])
	}

	if len(r.Ledger.PenaltyByType) > 0 {
		fmt.Fprintf(&b, "\n📉 Penalties: -%d coins, -%d EXP\n", r.Ledger.CoinsPenalty, r.Ledger.ExpPenalty)
		types := make([]string, 0, len(r.Ledger.PenaltyByType))
		for k := range r.Ledger.PenaltyByType {
			types = append(types, k)
		}
		sort.Strings(types)
		for _, k := range types {
			fmt.Fprintf(&b, "   %s: %d\n", k, r.Ledger.PenaltyByType[k])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
