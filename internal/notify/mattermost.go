package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aimd54/task-coach/internal/config"
	"github.com/aimd54/task-coach/pkg/logger"
)

// Mattermost posts messages to a Mattermost incoming webhook.
type Mattermost struct {
	webhookURL string
	channel    string
	log        *logger.Logger
}

// NewMattermost creates a new Mattermost channel.
func NewMattermost(cfg *config.MattermostConfig, log *logger.Logger) *Mattermost {
	return &Mattermost{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		log:        log,
	}
}

// MattermostMessage represents a Mattermost message payload.
type MattermostMessage struct {
	Channel     string       `json:"channel,omitempty"`
	Username    string       `json:"username,omitempty"`
	Text        string       `json:"text,omitempty"`
	IconURL     string       `json:"icon_url,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment represents a message attachment.
type Attachment struct {
	Fallback string  `json:"fallback,omitempty"`
	Color    string  `json:"color,omitempty"`
	Pretext  string  `json:"pretext,omitempty"`
	Title    string  `json:"title,omitempty"`
	Text     string  `json:"text,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
	Footer   string  `json:"footer,omitempty"`
}

// Field represents a message field.
type Field struct {
	Short bool   `json:"short"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// Name implements Channel.
func (m *Mattermost) Name() string { return "mattermost" }

// Send implements Channel. The subject becomes a heading above the body.
func (m *Mattermost) Send(ctx context.Context, recipient, subject, body string) error {
	text := body
	if subject != "" {
		text = fmt.Sprintf("### %s\n\n%s", subject, body)
	}
	if recipient != "" {
		text = fmt.Sprintf("@%s\n%s", recipient, text)
	}
	return m.SendMessage(ctx, &MattermostMessage{Username: "Task Coach", Text: text})
}

// SendMessage posts msg, filling in the configured channel.
func (m *Mattermost) SendMessage(ctx context.Context, msg *MattermostMessage) error {
	if msg.Channel == "" {
		msg.Channel = m.channel
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Mattermost: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mattermost returned status %d", resp.StatusCode)
	}

	m.log.Debug().
		Str("channel", msg.Channel).
		Msg("Sent message to Mattermost")

	return nil
}
