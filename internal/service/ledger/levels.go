package ledger

import (
	"github.com/aimd54/task-coach/internal/models"
)

// Level bounds and the per-level experience step.
const (
	MinLevel    = 1
	MaxLevel    = 20
	ExpPerLevel = 100
)

// RequiredExp returns the experience needed to leave level. Levels outside 1..20 need nothing.
func RequiredExp(level int) int {
	if level < MinLevel || level > MaxLevel {
		return 0
	}
	return level * ExpPerLevel
}

// applyLevelUps converts banked experience into levels. Experience earned at
// MaxLevel stays in CurrentExp without bound.
func applyLevelUps(p *models.UserGamification) bool {
	leveled := false
	for p.Level < MaxLevel && p.CurrentExp >= RequiredExp(p.Level) {
		p.CurrentExp -= RequiredExp(p.Level)
		p.Level++
		leveled = true
	}
	return leveled
}

// applyLevelDowns pays a negative balance back by stepping down levels, refunding the
// bracket of each level stepped into. Level 1 clamps at zero.
func applyLevelDowns(p *models.UserGamification) bool {
	downgraded := false
	for p.CurrentExp < 0 && p.Level > MinLevel {
		p.Level--
		p.CurrentExp += RequiredExp(p.Level)
		downgraded = true
	}
	if p.CurrentExp < 0 {
		p.CurrentExp = 0
	}
	return downgraded
}
