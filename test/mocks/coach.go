package mocks

import (
	"context"
	"sync"

	"github.com/aimd54/task-coach/internal/parser"
)

// MockParser is a simple mock for the reply parser
type MockParser struct {
	ParseFunc func(ctx context.Context, owner, reply string) ([]parser.TaskUpdate, error)
	Calls     int
}

func (m *MockParser) Parse(ctx context.Context, owner, reply string) ([]parser.TaskUpdate, error) {
	m.Calls++
	if m.ParseFunc != nil {
		return m.ParseFunc(ctx, owner, reply)
	}
	return []parser.TaskUpdate{}, nil
}

// SentMessage is one message captured by MockNotifier
type SentMessage struct {
	Recipient string
	Subject   string
	Body      string
}

// MockNotifier records every message and reports delivery on a single "mock" channel
type MockNotifier struct {
	SendFunc func(ctx context.Context, recipient, subject, body string) map[string]bool

	mu   sync.Mutex
	Sent []SentMessage
}

func (m *MockNotifier) Send(ctx context.Context, recipient, subject, body string) map[string]bool {
	m.mu.Lock()
	m.Sent = append(m.Sent, SentMessage{Recipient: recipient, Subject: subject, Body: body})
	m.mu.Unlock()

	if m.SendFunc != nil {
		return m.SendFunc(ctx, recipient, subject, body)
	}
	return map[string]bool{"mock": true}
}

// Messages returns a copy of the captured messages
func (m *MockNotifier) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.Sent...)
}

// MockLocker is a simple mock for the owner lock
type MockLocker struct {
	AcquireFunc func(ctx context.Context, owner string) (func(), error)
	Released    int
}

func (m *MockLocker) Acquire(ctx context.Context, owner string) (func(), error) {
	if m.AcquireFunc != nil {
		return m.AcquireFunc(ctx, owner)
	}
	return func() { m.Released++ }, nil
}
