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

// Feishu posts text messages to a Feishu custom-bot webhook.
type Feishu struct {
	webhookURL string
	log        *logger.Logger
}

// NewFeishu creates a new Feishu channel.
func NewFeishu(cfg *config.FeishuConfig, log *logger.Logger) *Feishu {
	return &Feishu{webhookURL: cfg.WebhookURL, log: log}
}

type feishuMessage struct {
	MsgType string `json:"msg_type"`
	Content struct {
		Text string `json:"text"`
	} `json:"content"`
}

// feishuResponse is the bot API envelope. A 200 with a non-zero code is still a failure.
type feishuResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Name implements Channel.
func (f *Feishu) Name() string { return "feishu" }

// Send implements Channel. Bots post to a fixed group, so recipient is ignored.
func (f *Feishu) Send(ctx context.Context, _, subject, body string) error {
	msg := feishuMessage{MsgType: "text"}
	msg.Content.Text = body
	if subject != "" {
		msg.Content.Text = subject + "\n\n" + body
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Feishu: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feishu returned status %d", resp.StatusCode)
	}

	var result feishuResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Code != 0 {
		return fmt.Errorf("feishu returned code %d: %s", result.Code, result.Msg)
	}

	f.log.Debug().Msg("Sent message to Feishu")
	return nil
}
