// Package unlock maps levels to coach personalities and feature milestones.
package unlock

import (
	"context"
	"errors"
	"fmt"

	"github.com/aimd54/task-coach/internal/models"
	"github.com/aimd54/task-coach/internal/service/ledger"
	"github.com/aimd54/task-coach/pkg/logger"
)

var (
	// ErrUnknownPersonality is returned for a personality name outside the table.
	ErrUnknownPersonality = errors.New("unknown personality")
	// ErrNoOp is returned when the requested personality is already active.
	ErrNoOp = errors.New("personality already active")
)

// personalityLevels is the unlock level of each personality, in unlock order.
var personalityLevels = []struct {
	Personality models.Personality
	Level       int
}{
	{models.PersonalityFriendly, 1},
	{models.PersonalityProfessional, 4},
	{models.PersonalityStrict, 8},
	{models.PersonalityToxic, 13},
}

// Milestone is a level that unlocks features.
type Milestone struct {
	Level       int                 `json:"level"`
	Features    []string            `json:"features"`
	Personality *models.Personality `json:"personality,omitempty"`
}

func personality(p models.Personality) *models.Personality { return &p }

// Milestones lists the feature unlocks in ascending level order.
var Milestones = []Milestone{
	{Level: 4, Features: []string{FeatureDailyContent}, Personality: personality(models.PersonalityProfessional)},
	{Level: 8, Features: []string{FeatureAnalytics}, Personality: personality(models.PersonalityStrict)},
	{Level: 13, Features: []string{FeatureShop}, Personality: personality(models.PersonalityToxic)},
	{Level: 16, Features: []string{FeatureAdvancedShop}},
	{Level: 20, Features: []string{FeatureMaxLevel}},
}

// Feature names gated by level.
const (
	FeatureDailyContent = "daily achievement card"
	FeatureAnalytics    = "weekly analytics report"
	FeatureShop         = "shop access"
	FeatureAdvancedShop = "advanced shop tier"
	FeatureMaxLevel     = "max-level content"
)

// FeatureLevel returns the level at which a named feature unlocks, or 0 if ungated.
func FeatureLevel(feature string) int {
	for _, m := range Milestones {
		for _, f := range m.Features {
			if f == feature {
				return m.Level
			}
		}
	}
	return 0
}

// PersonalityLevel returns the unlock level of p.
func PersonalityLevel(p models.Personality) (int, error) {
	for _, entry := range personalityLevels {
		if entry.Personality == p {
			return entry.Level, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPersonality, p)
}

// AvailablePersonalities returns the personalities unlocked at level.
func AvailablePersonalities(level int) []models.Personality {
	var out []models.Personality
	for _, entry := range personalityLevels {
		if level >= entry.Level {
			out = append(out, entry.Personality)
		}
	}
	return out
}

// UnlocksAt returns the milestone reached exactly at level, if any.
func UnlocksAt(level int) *Milestone {
	for i := range Milestones {
		if Milestones[i].Level == level {
			return &Milestones[i]
		}
	}
	return nil
}

// UnlocksBetween returns the milestones passed when moving from oldLevel to newLevel.
func UnlocksBetween(oldLevel, newLevel int) []Milestone {
	var out []Milestone
	for _, m := range Milestones {
		if m.Level > oldLevel && m.Level <= newLevel {
			out = append(out, m)
		}
	}
	return out
}

// NextUnlock is the distance to the nearest future milestone.
type NextUnlock struct {
	Milestone     Milestone `json:"milestone"`
	ExpRemaining  int       `json:"exp_remaining"`
	UpdatesNeeded int       `json:"updates_needed"` // 0 when no rate is known
}

// NextUnlockInfo returns the nearest milestone above level with the cumulative
// experience still required, and how many cycles like the last one would cover it.
// It returns nil at or beyond the last milestone.
func NextUnlockInfo(level, currentExp, expGainedThisCycle int) *NextUnlock {
	for _, m := range Milestones {
		if m.Level <= level {
			continue
		}
		remaining := -currentExp
		for l := level; l < m.Level; l++ {
			remaining += ledger.RequiredExp(l)
		}
		remaining = max(remaining, 0)

		next := &NextUnlock{Milestone: m, ExpRemaining: remaining}
		if expGainedThisCycle > 0 {
			next.UpdatesNeeded = (remaining + expGainedThisCycle - 1) / expGainedThisCycle
		}
		return next
	}
	return nil
}

// ProfileUpdater is the subset of the ledger used to persist a personality switch.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, owner, reason string, fn func(p *models.UserGamification) error) (*models.UserGamification, error)
}

// Service switches personalities.
type Service struct {
	ledger ProfileUpdater
	log    *logger.Logger
}

// NewService creates a new unlock service.
func NewService(l ProfileUpdater, log *logger.Logger) *Service {
	return &Service{ledger: l, log: log}
}

// SwitchPersonality activates target if the owner's level allows it.
func (s *Service) SwitchPersonality(ctx context.Context, owner string, target models.Personality) (*models.UserGamification, error) {
	required, err := PersonalityLevel(target)
	if err != nil {
		return nil, err
	}

	p, err := s.ledger.UpdateProfile(ctx, owner, "switch_personality", func(p *models.UserGamification) error {
		if p.Level < required {
			return &ledger.LevelInsufficientError{
				Feature:       string(target) + " personality",
				RequiredLevel: required,
				CurrentLevel:  p.Level,
			}
		}
		if p.AIPersonality == target {
			return ErrNoOp
		}
		p.AIPersonality = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("owner", owner).
		Str("personality", string(target)).
		Msg("Switched personality")

	return p, nil
}
