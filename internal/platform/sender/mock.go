package sender

import (
	"context"
	"errors"
	"sync"
)

// SendCall records a single call to MockSender.Send.
type SendCall struct {
	Recipient string
	Subject   string
	Body      string
}

// MockSender is a test double for Sender.
type MockSender struct {
	mu         sync.Mutex
	calls      []SendCall
	ShouldFail bool
	FailError  string
	// ProviderID is returned on success; defaults to "mock-message-id".
	ProviderID string
}

// Send records the call and optionally returns an error.
func (m *MockSender) Send(_ context.Context, msg Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SendCall{Recipient: msg.Recipient, Subject: msg.Subject, Body: msg.Body})
	if m.ShouldFail {
		return "", errors.New(m.FailError)
	}
	if m.ProviderID != "" {
		return m.ProviderID, nil
	}
	return "mock-message-id", nil
}

// Calls returns a copy of recorded calls.
func (m *MockSender) Calls() []SendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SendCall, len(m.calls))
	copy(out, m.calls)
	return out
}
