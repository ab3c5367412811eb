package capture

import (
	"context"
	"sync"
)

// MockCapturer is an in-memory Capturer for tests and mock mode. Partials
// are injected with EmitPartial; Start/Stop enforce the real contract.
type MockCapturer struct {
	// StartErr, when set, is returned by Start to simulate permission or
	// device failures.
	StartErr error

	mu        sync.Mutex
	active    bool
	buffer    string
	onPartial func(string)
}

func NewMockCapturer() *MockCapturer {
	return &MockCapturer{}
}

func (m *MockCapturer) Start(_ context.Context, onPartial func(text string)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartErr != nil {
		return m.StartErr
	}
	if m.active {
		return ErrAlreadyActive
	}
	m.active = true
	m.buffer = ""
	m.onPartial = onPartial
	return nil
}

// EmitPartial simulates an incremental recognition result. The new text
// replaces the buffered transcript.
func (m *MockCapturer) EmitPartial(text string) {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	m.buffer = text
	cb := m.onPartial
	m.mu.Unlock()
	if cb != nil {
		cb(text)
	}
}

func (m *MockCapturer) Stop() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return "", ErrNotActive
	}
	m.active = false
	m.onPartial = nil
	text := m.buffer
	m.buffer = ""
	return text, nil
}

func (m *MockCapturer) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}
