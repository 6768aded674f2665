// Package parser turns free-text replies into typed task updates.
package parser

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/aimd54/task-coach/internal/models"
)

// Action is what a reply asks to do with a task.
type Action string

// Actions.
const (
	ActionUpdate   Action = "update"
	ActionPause    Action = "pause"
	ActionComplete Action = "complete"
)

// TaskUpdate is one normalized task entry from a reply.
type TaskUpdate struct {
	Name     string          `json:"task_name"`
	Progress int             `json:"progress"`
	Quadrant models.Quadrant `json:"quadrant"`
	// QuadrantSet is false when the reply did not name a valid quadrant and Q1 was assumed.
	QuadrantSet bool   `json:"quadrant_set"`
	Action      Action `json:"action"`
}

// Parser extracts task updates from a reply.
type Parser interface {
	Parse(ctx context.Context, owner, reply string) ([]TaskUpdate, error)
}

// Normalize converts loosely typed entries into TaskUpdates. Entries without a name
// are dropped. Every other field falls back to a default instead of failing.
func Normalize(raw []map[string]any) []TaskUpdate {
	updates := make([]TaskUpdate, 0, len(raw))
	for _, entry := range raw {
		name := strings.TrimSpace(asString(entry["task_name"]))
		if name == "" {
			continue
		}
		q, ok := ParseQuadrant(asString(entry["quadrant"]))
		updates = append(updates, TaskUpdate{
			Name:        name,
			Progress:    normalizeProgress(entry["progress"]),
			Quadrant:    q,
			QuadrantSet: ok,
			Action:      ParseAction(asString(entry["action"])),
		})
	}
	return updates
}

// ParseQuadrant accepts "Q1".."Q4" (any case) or "1".."4". Anything else is Q1, false.
func ParseQuadrant(s string) (models.Quadrant, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "Q")
	if len(s) == 1 && s[0] >= '1' && s[0] <= '4' {
		return models.Quadrant(s[0] - '0'), true
	}
	return models.Q1, false
}

// ParseAction maps s to an Action, defaulting to ActionUpdate.
func ParseAction(s string) Action {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionUpdate, ActionPause, ActionComplete:
		return a
	default:
		return ActionUpdate
	}
}

func normalizeProgress(v any) int {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(x), "%"), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Max(0, math.Min(100, f)))
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}
