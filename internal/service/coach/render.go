package coach

import (
	"fmt"
	"strings"

	"github.com/aimd54/task-coach/internal/models"
	"github.com/aimd54/task-coach/internal/parser"
	"github.com/aimd54/task-coach/internal/service/ledger"
	"github.com/aimd54/task-coach/internal/service/punishment"
	"github.com/aimd54/task-coach/internal/service/tasks"
	"github.com/aimd54/task-coach/internal/service/unlock"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// ProgressBar draws pct as ten ■/□ cells.
func ProgressBar(pct int) string {
	filled := max(0, min(10, pct/10))
	return strings.Repeat("■", filled) + strings.Repeat("□", 10-filled)
}

var personalityNames = map[models.Personality]string{
	models.PersonalityFriendly:     "🌟 Friendly",
	models.PersonalityProfessional: "💼 Professional",
	models.PersonalityStrict:       "🔥 Strict",
	models.PersonalityToxic:        "💀 Toxic",
}

// closings is the sign-off per personality, keyed by whether the day went well.
var closings = map[models.Personality][2]string{
	models.PersonalityFriendly:     {"Small steps still count. You've got this! 💪", "Great work today, keep it going! 🎉"},
	models.PersonalityProfessional: {"Review your Q1 list and pick one concrete next step.", "Solid execution. Plan tomorrow's top priority now."},
	models.PersonalityStrict:       {"Not good enough. Q1 first, no excuses tomorrow.", "Acceptable. Do it again tomorrow."},
	models.PersonalityToxic:        {"Wow, impressive procrastination. Maybe try actually working?", "Fine, you did something. Don't let it go to your head."},
}

func closing(p models.Personality, good bool) string {
	lines, ok := closings[p]
	if !ok {
		lines = closings[models.PersonalityFriendly]
	}
	if good {
		return lines[1]
	}
	return lines[0]
}

// QuadrantGuide explains the quadrants and their multipliers.
func QuadrantGuide() string {
	var b strings.Builder
	b.WriteString(rule + "\n📋 Quadrants:\n")
	b.WriteString("  Q1 🔴 Urgent & important   - do it now (EXP x2.0)\n")
	b.WriteString("  Q2 🟡 Important, not urgent - schedule it (EXP x1.5)\n")
	b.WriteString("  Q3 🔵 Urgent, not important - delegate it (EXP x1.0)\n")
	b.WriteString("  Q4 ⚪ Neither               - when free (EXP x0.5)\n")
	b.WriteString(rule)
	return b.String()
}

// StatusBlock renders level, experience, coins, streaks and personality.
func StatusBlock(p *models.UserGamification) string {
	required := ledger.RequiredExp(p.Level)
	pct := 100
	if required > 0 {
		pct = min(100, p.CurrentExp*100/required)
	}
	name, ok := personalityNames[p.AIPersonality]
	if !ok {
		name = string(p.AIPersonality)
	}

	var b strings.Builder
	b.WriteString(rule + "\n📊 Your status:\n")
	if p.Level >= ledger.MaxLevel {
		fmt.Fprintf(&b, "  ⭐ Level: LV%d (MAX, EXP: %d)\n", p.Level, p.CurrentExp)
	} else {
		fmt.Fprintf(&b, "  ⭐ Level: LV%d (EXP: %d/%d)\n", p.Level, p.CurrentExp, required)
	}
	fmt.Fprintf(&b, "     [%s] %d%%\n", ProgressBar(pct), pct)
	fmt.Fprintf(&b, "  💰 Coins: %d\n", p.Coins)
	fmt.Fprintf(&b, "  🔥 Q1 streak: %d days\n", p.ConsecutiveQ1Days)
	fmt.Fprintf(&b, "  📅 Reply streak: %d days\n", p.ConsecutiveReplyDays)
	fmt.Fprintf(&b, "  🎭 Personality: %s\n", name)
	b.WriteString(rule)
	return b.String()
}

// LevelUpBanner announces a level change and every unlock passed on the way.
func LevelUpBanner(oldLevel, newLevel int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⬆️ LEVEL UP: LV%d → LV%d\n🎊 Congratulations!\n", oldLevel, newLevel)
	for _, m := range unlock.UnlocksBetween(oldLevel, newLevel) {
		for _, f := range m.Features {
			fmt.Fprintf(&b, "  🎁 Unlocked: %s\n", f)
		}
		if m.Personality != nil {
			fmt.Fprintf(&b, "  🎭 Unlocked: %s personality\n", personalityNames[*m.Personality])
		}
	}
	if newLevel >= ledger.MaxLevel {
		b.WriteString("  👑 Maximum level reached!\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func taskLine(b *strings.Builder, emoji, name string, pct int, q models.Quadrant, suffix string) {
	fmt.Fprintf(b, "%s %s%s\n", emoji, name, suffix)
	fmt.Fprintf(b, "   Progress: [%s] %d%%\n", ProgressBar(pct), pct)
	fmt.Fprintf(b, "   Quadrant: %s\n", q)
}

func outcomeEmoji(o *tasks.Outcome) string {
	switch {
	case o.Change.Completed:
		return "✅"
	case o.Action == parser.ActionPause:
		return "⏸️"
	case o.Created:
		return "🆕"
	default:
		return "🔄"
	}
}

// renderFeedback builds the message sent after a reply is processed.
func renderFeedback(r *ReplyResult) string {
	var b strings.Builder
	b.WriteString("📊 Task update feedback\n\n")

	if len(r.Outcomes) == 0 {
		b.WriteString("No task updates were found in your reply.\n\n")
	}
	for _, o := range r.Outcomes {
		taskLine(&b, outcomeEmoji(&o), fmt.Sprintf("%s %s", o.Change.Code, o.Task.Name), o.Change.NewProgress, o.Change.Quadrant, "")
		b.WriteString("\n")
	}
	for _, f := range r.Failed {
		fmt.Fprintf(&b, "⚠️ %s: %s\n", f.Name, f.Reason)
	}
	if len(r.Failed) > 0 {
		b.WriteString("\n")
	}

	if r.Summary != nil {
		fmt.Fprintf(&b, "✨ +%d EXP  💰 +%d coins  (completion %.0f%%)\n", r.Summary.ExpGained, r.Summary.CoinsGained, r.Summary.CompletionRate)
	}
	for _, p := range r.Penalties {
		fmt.Fprintf(&b, "📉 %s: -%d coins, -%d EXP\n", p.Reason, p.Result.CoinsDeducted, p.Result.ExpDeducted)
	}
	if r.Streak != nil && r.Streak.Q1Advanced {
		fmt.Fprintf(&b, "🔥 Q1 streak: %d days\n", r.Streak.ConsecutiveQ1Days)
	}
	if r.Milestone != nil {
		fmt.Fprintf(&b, "🏅 %d-day milestone (%s): +%d coins, +%d EXP\n",
			r.Milestone.Reward.Days, r.Milestone.Reward.Description, r.Milestone.Reward.Coins, r.Milestone.Reward.Exp)
	}
	b.WriteString("\n")

	if r.Summary != nil && r.Summary.Result != nil && r.Summary.Result.LevelUp {
		b.WriteString(LevelUpBanner(r.Summary.Result.OldLevel, r.Summary.Result.NewLevel))
		b.WriteString("\n\n")
	}
	if r.Profile != nil {
		b.WriteString(StatusBlock(r.Profile))
		b.WriteString("\n")
	}
	if r.NextUnlock != nil {
		fmt.Fprintf(&b, "🔓 Next unlock at LV%d: %s, %d EXP to go",
			r.NextUnlock.Milestone.Level, strings.Join(r.NextUnlock.Milestone.Features, ", "), r.NextUnlock.ExpRemaining)
		if r.NextUnlock.UpdatesNeeded > 0 {
			fmt.Fprintf(&b, " (about %d more updates like this one)", r.NextUnlock.UpdatesNeeded)
		}
		b.WriteString("\n")
	}

	good := r.Summary != nil && r.Summary.CompletionRate >= 60
	personality := models.PersonalityFriendly
	if r.Profile != nil {
		personality = r.Profile.AIPersonality
	}
	b.WriteString("\n" + closing(personality, good))
	return b.String()
}

// renderReview builds the daily review message.
func renderReview(r *ReviewResult) string {
	var b strings.Builder
	b.WriteString("🌙 Daily review\n\n")

	if len(r.Active) == 0 {
		b.WriteString("No active tasks. Reply with what you plan to work on.\n\n")
	} else {
		b.WriteString("📋 Active tasks:\n")
		for _, t := range r.Active {
			taskLine(&b, "🔄", fmt.Sprintf("%s %s", t.Code(), t.Name), t.ProgressPercentage, t.Quadrant, "")
		}
		b.WriteString("\n")
	}

	if r.NoReplyDays >= 2 {
		fmt.Fprintf(&b, "😶 %d days without a reply.\n", r.NoReplyDays)
	}
	for _, p := range r.Penalties {
		line := fmt.Sprintf("📉 %s: -%d coins, -%d EXP", p.Reason, p.Result.CoinsDeducted, p.Result.ExpDeducted)
		if p.Result.Downgraded {
			line += fmt.Sprintf(" (LV%d → LV%d)", p.Result.OldLevel, p.Result.NewLevel)
		}
		if p.Result.StreakCleared {
			line += ", Q1 streak reset"
		}
		b.WriteString(line + "\n")
	}
	if len(r.Penalties) > 0 {
		b.WriteString("\n")
	}

	if r.Profile != nil {
		b.WriteString(StatusBlock(r.Profile) + "\n")
	}
	b.WriteString(QuadrantGuide() + "\n\n")
	b.WriteString("💬 Reply with today's progress, e.g. \"Q1-1 80%, finished the gym session\".")
	return b.String()
}

// renderFollowup builds the morning reminder listing active tasks.
func renderFollowup(active []models.Task) string {
	var b strings.Builder
	b.WriteString("⏰ Follow-up reminder\n\n")
	b.WriteString("If you already replied to the daily review, ignore this message.\n\n")
	b.WriteString("📋 Today's tasks:\n")
	if len(active) == 0 {
		b.WriteString("\nNo active tasks.\n")
	}
	for _, t := range active {
		emoji := "🔄"
		if t.ProgressPercentage == 100 {
			emoji = "✅"
		}
		b.WriteString("\n")
		taskLine(&b, emoji, fmt.Sprintf("%s %s", t.Code(), t.Name), t.ProgressPercentage, t.Quadrant, "")
	}
	b.WriteString("\n💬 Reply to update your progress!")
	return b.String()
}

// renderPausedDigest builds the weekly check on paused tasks.
func renderPausedDigest(paused []tasks.PausedTask) string {
	var b strings.Builder
	b.WriteString("📋 Weekly paused-task check\n\n⏸️ Paused tasks:\n")
	for _, p := range paused {
		b.WriteString("\n")
		taskLine(&b, "⏸️", fmt.Sprintf("%s %s", p.Task.Code(), p.Task.Name), p.Task.ProgressPercentage, p.Task.Quadrant,
			fmt.Sprintf(" (paused %d days)", p.DaysPaused))
	}
	b.WriteString("\n💬 Please reply:\n")
	b.WriteString("1. Which paused tasks should restart?\n")
	b.WriteString("2. Which can stay paused?\n")
	b.WriteString("3. Can any be dropped?\n")
	b.WriteString("\nExample: restart database design, keep API docs paused")
	return b.String()
}

// penaltyReasons joins penalties for logging.
func penaltyReasons(applied []punishment.Applied) []string {
	out := make([]string, 0, len(applied))
	for _, a := range applied {
		out = append(out, a.Reason)
	}
	return out
}
