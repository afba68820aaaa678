package services

import (
	"context"
	"sync"
)

// MockMailer records sent emails and can fail per recipient
type MockMailer struct {
	sent     []EmailMessage
	failures map[string]error // recipient -> error to return
	mu       sync.Mutex
}

// NewMockMailer creates a new mock mailer
func NewMockMailer() *MockMailer {
	return &MockMailer{failures: make(map[string]error)}
}

// FailFor makes sends to recipient return err
func (m *MockMailer) FailFor(recipient string, err error) {
	m.mu.Lock()
	m.failures[recipient] = err
	m.mu.Unlock()
}

// Send implements Mailer
func (m *MockMailer) Send(ctx context.Context, msg EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failures[msg.To]; ok {
		return err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of the delivered messages
func (m *MockMailer) Sent() []EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EmailMessage(nil), m.sent...)
}

// SentTo returns the messages delivered to recipient
func (m *MockMailer) SentTo(recipient string) []EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []EmailMessage
	for _, msg := range m.sent {
		if msg.To == recipient {
			out = append(out, msg)
		}
	}
	return out
}
