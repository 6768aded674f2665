package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aimd54/task-coach/internal/config"
	"github.com/aimd54/task-coach/pkg/logger"
)

// ErrUnparseable is returned when the model's answer is not task JSON.
var ErrUnparseable = errors.New("reply could not be parsed into tasks")

const promptTemplate = `Extract the task updates from the reply below.

Reply:
%s

Answer with JSON only. Each task has these fields:
- task_name: the task's name, or its code such as "Q1-3" if the reply uses one
- progress: completion percentage from 0 to 100
- quadrant: one of Q1, Q2, Q3, Q4
- action: one of update, pause, complete

Return a JSON array when there are several tasks.`

// LLMClient parses replies with an OpenAI-compatible chat-completion endpoint.
type LLMClient struct {
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
	http    *http.Client
	log     *logger.Logger
}

// NewLLMClient creates a new chat-completion parser.
func NewLLMClient(cfg *config.ParserConfig, log *logger.Logger) *LLMClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LLMClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: timeout,
		http:    &http.Client{},
		log:     log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Parse sends reply to the model and normalizes its answer.
func (c *LLMClient) Parse(ctx context.Context, owner, reply string) ([]TaskUpdate, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: fmt.Sprintf(promptTemplate, reply)}},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call parser: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("parser returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("failed to decode parser response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", ErrUnparseable)
	}

	raw, err := DecodeTasks(chat.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	updates := Normalize(raw)

	c.log.Debug().
		Str("owner", owner).
		Int("entries", len(raw)).
		Int("updates", len(updates)).
		Msg("Parsed reply")

	return updates, nil
}

// DecodeTasks reads a model answer that holds either one task object or an array,
// optionally wrapped in a markdown code fence.
func DecodeTasks(content string) ([]map[string]any, error) {
	content = stripFence(content)

	var list []map[string]any
	if err := json.Unmarshal([]byte(content), &list); err == nil {
		return list, nil
	}
	var single map[string]any
	if err := json.Unmarshal([]byte(content), &single); err == nil {
		return []map[string]any{single}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnparseable, truncate(content, 120))
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
