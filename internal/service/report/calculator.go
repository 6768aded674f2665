// Package report builds the weekly and monthly summaries of completed work and
// ledger movement.
package report

import (
	"fmt"

	"github.com/aimd54/task-coach/internal/models"
)

// TaskStats counts tasks over the report window.
type TaskStats struct {
	Completed       int                     `json:"completed"`
	Active          int                     `json:"active"`
	Paused          int                     `json:"paused"`
	ByQuadrant      map[models.Quadrant]int `json:"by_quadrant"`
	CompletionRate  float64                 `json:"completion_rate"`
	AverageProgress float64                 `json:"average_progress"`
}

// LedgerStats sums the ledger movement over the report window.
type LedgerStats struct {
	ExpEarned     int            `json:"exp_earned"`
	CoinsEarned   int            `json:"coins_earned"`
	CoinsSpent    int            `json:"coins_spent"`
	LevelUps      int            `json:"level_ups"`
	CoinsPenalty  int            `json:"coins_penalty"`
	ExpPenalty    int            `json:"exp_penalty"`
	PenaltyByType map[string]int `json:"penalty_by_type"`
}

// CalculateTaskStats counts completed tasks per quadrant against the open ones.
// Completion rate is completed over completed plus still open, in percent. Average
// progress is taken over the same set of tasks.
func CalculateTaskStats(completed, open []models.Task) TaskStats {
	stats := TaskStats{
		Completed:  len(completed),
		ByQuadrant: make(map[models.Quadrant]int, len(models.Quadrants)),
	}
	for _, q := range models.Quadrants {
		stats.ByQuadrant[q] = 0
	}
	progress := 0
	for _, t := range completed {
		stats.ByQuadrant[t.Quadrant]++
		progress += t.ProgressPercentage
	}
	for _, t := range open {
		progress += t.ProgressPercentage
		switch t.Status {
		case models.TaskStatusActive:
			stats.Active++
		case models.TaskStatusPaused:
			stats.Paused++
		}
	}

	if total := stats.Completed + stats.Active + stats.Paused; total > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(total) * 100
	}
	if n := len(completed) + len(open); n > 0 {
		stats.AverageProgress = float64(progress) / float64(n)
	}
	return stats
}

// Analyze reads the quadrant mix of completed work and the completed count against
// the period's thresholds.
func Analyze(stats TaskStats, period Period) []string {
	var lines []string
	if stats.Completed > 0 {
		q1 := float64(stats.ByQuadrant[models.Q1]) / float64(stats.Completed)
		q2 := float64(stats.ByQuadrant[models.Q2]) / float64(stats.Completed)
		if q1 > 0.5 {
			lines = append(lines, fmt.Sprintf("⚠️ %.0f%% of completed work was urgent and important; plan ahead to cut down on emergencies.", q1*100))
		}
		if q2 > 0.3 {
			lines = append(lines, fmt.Sprintf("✅ %.0f%% of completed work was important but not urgent. Well done.", q2*100))
		}
	}

	switch {
	case stats.Completed >= period.Excellent:
		lines = append(lines, fmt.Sprintf("🌟 %d tasks completed, an excellent %s.", stats.Completed, periodNoun(period)))
	case stats.Completed >= period.Good:
		lines = append(lines, fmt.Sprintf("👍 %d tasks completed, a good %s.", stats.Completed, periodNoun(period)))
	default:
		lines = append(lines, "💪 Keep going, every finished task counts.")
	}
	return lines
}

func periodNoun(p Period) string {
	if p.Name == Monthly.Name {
		return "month"
	}
	return "week"
}

// CalculateLedgerStats sums exp_history and punishment_history rows. Negative coin
// deltas in exp_history are purchases.
func CalculateLedgerStats(exp []models.ExpHistory, punishments []models.PunishmentHistory) LedgerStats {
	stats := LedgerStats{PenaltyByType: map[string]int{}}
	for _, e := range exp {
		stats.ExpEarned += e.ExpGained
		if e.CoinsGained >= 0 {
			stats.CoinsEarned += e.CoinsGained
		} else {
			stats.CoinsSpent -= e.CoinsGained
		}
		if e.LevelAfter > e.LevelBefore {
			stats.LevelUps += e.LevelAfter - e.LevelBefore
		}
	}
	for _, p := range punishments {
		stats.CoinsPenalty += p.CoinsDeducted
		stats.ExpPenalty += p.ExpDeducted
		stats.PenaltyByType[string(p.PunishmentType)]++
	}
	return stats
}
