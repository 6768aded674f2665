// Package notify delivers coach messages over webhook channels.
package notify

import (
	"context"

	"github.com/aimd54/task-coach/internal/config"
	prommetrics "github.com/aimd54/task-coach/internal/metrics"
	"github.com/aimd54/task-coach/pkg/logger"
)

// Channel is one delivery route.
type Channel interface {
	Name() string
	Send(ctx context.Context, recipient, subject, body string) error
}

// Notifier sends a message on every configured route.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) map[string]bool
}

// Manager fans a message out to its channels.
type Manager struct {
	channels []Channel
	log      *logger.Logger
}

// NewManager creates a manager over the enabled channels in cfg.
func NewManager(cfg *config.NotificationsConfig, log *logger.Logger) *Manager {
	var channels []Channel
	if cfg.Mattermost.Enabled {
		channels = append(channels, NewMattermost(&cfg.Mattermost, log))
	}
	if cfg.Feishu.Enabled {
		channels = append(channels, NewFeishu(&cfg.Feishu, log))
	}
	return NewManagerWithChannels(log, channels...)
}

// NewManagerWithChannels creates a manager over explicit channels (useful for testing).
func NewManagerWithChannels(log *logger.Logger, channels ...Channel) *Manager {
	return &Manager{channels: channels, log: log}
}

// Send delivers to every channel and reports success per channel name. Failures are
// logged and never returned: delivery problems must not undo coach state.
func (m *Manager) Send(ctx context.Context, recipient, subject, body string) map[string]bool {
	results := make(map[string]bool, len(m.channels))
	if len(m.channels) == 0 {
		m.log.Debug().Str("subject", subject).Msg("No notification channels enabled, skipping message")
		return results
	}

	for _, ch := range m.channels {
		err := ch.Send(ctx, recipient, subject, body)
		results[ch.Name()] = err == nil
		prommetrics.RecordNotification(ch.Name(), err == nil)
		if err != nil {
			m.log.Error().
				Err(err).
				Str("channel", ch.Name()).
				Str("subject", subject).
				Msg("Failed to send notification")
		}
	}
	return results
}
