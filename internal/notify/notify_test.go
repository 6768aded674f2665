package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/task-coach/internal/config"
	"github.com/aimd54/task-coach/pkg/logger"
)

type stubChannel struct {
	name string
	err  error
	sent []string
}

func (s *stubChannel) Name() string { return s.name }

func (s *stubChannel) Send(ctx context.Context, recipient, subject, body string) error {
	s.sent = append(s.sent, subject)
	return s.err
}

func TestManager_Send(t *testing.T) {
	log := logger.New("debug", "text", "stdout")
	ok := &stubChannel{name: "ok"}
	broken := &stubChannel{name: "broken", err: errors.New("boom")}

	m := NewManagerWithChannels(log, ok, broken)
	results := m.Send(context.Background(), "alice", "Daily review", "body")

	assert.Equal(t, map[string]bool{"ok": true, "broken": false}, results)
	assert.Equal(t, []string{"Daily review"}, ok.sent)
	assert.Equal(t, []string{"Daily review"}, broken.sent)
}

func TestManager_NoChannels(t *testing.T) {
	m := NewManager(&config.NotificationsConfig{}, logger.New("debug", "text", "stdout"))
	assert.Empty(t, m.Send(context.Background(), "alice", "s", "b"))
}

func TestMattermost_Send(t *testing.T) {
	var got MattermostMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	mm := NewMattermost(&config.MattermostConfig{WebhookURL: server.URL, Channel: "coach", Enabled: true}, logger.New("debug", "text", "stdout"))
	require.NoError(t, mm.Send(context.Background(), "alice", "Weekly report", "3 tasks done"))

	assert.Equal(t, "coach", got.Channel)
	assert.Equal(t, "Task Coach", got.Username)
	assert.Contains(t, got.Text, "@alice")
	assert.Contains(t, got.Text, "### Weekly report")
	assert.Contains(t, got.Text, "3 tasks done")
}

func TestMattermost_SendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	mm := NewMattermost(&config.MattermostConfig{WebhookURL: server.URL}, logger.New("debug", "text", "stdout"))
	assert.Error(t, mm.Send(context.Background(), "", "s", "b"))
}

func TestFeishu_Send(t *testing.T) {
	var got feishuMessage
	code := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(feishuResponse{Code: code, Msg: "sign match fail"})
	}))
	defer server.Close()

	fs := NewFeishu(&config.FeishuConfig{WebhookURL: server.URL, Enabled: true}, logger.New("debug", "text", "stdout"))
	require.NoError(t, fs.Send(context.Background(), "alice", "Daily review", "keep going"))
	assert.Equal(t, "text", got.MsgType)
	assert.Equal(t, "Daily review\n\nkeep going", got.Content.Text)

	code = 19021
	assert.Error(t, fs.Send(context.Background(), "alice", "Daily review", "keep going"))
}
