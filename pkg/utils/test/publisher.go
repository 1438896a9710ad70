package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/docweave/weave/pkg/eventstream"
)

// MockPublisher is a test publisher that records every published event.
type MockPublisher struct {
	mu     sync.Mutex
	events []*eventstream.SessionEvent
	closed bool

	// FailPublish causes PublishSession to return an error.
	FailPublish bool
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishSession(_ context.Context, event *eventstream.SessionEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPublish {
		return errors.New("mock publish failure")
	}
	m.events = append(m.events, event)
	return nil
}

// Events returns the events published so far.
func (m *MockPublisher) Events() []*eventstream.SessionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.SessionEvent{}, m.events...)
}

// Closed reports whether Close was called.
func (m *MockPublisher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
