package tracker

import (
	"context"
	"fmt"
	"sync"
)

// MockTracker keeps runs in memory. Err, when set, is returned from every LogRun.
type MockTracker struct {
	Err error

	mu     sync.Mutex
	runs   []Run
	closed bool
}

// NewMockTracker returns an empty MockTracker
func NewMockTracker() *MockTracker {
	return &MockTracker{}
}

// LogRun implements Tracker
func (m *MockTracker) LogRun(ctx context.Context, run Run) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return Result{}, m.Err
	}
	m.runs = append(m.runs, run)
	return Result{RunID: fmt.Sprintf("mock-%d", len(m.runs)), Registered: true, Version: len(m.runs)}, nil
}

// Runs returns the runs logged so far
func (m *MockTracker) Runs() []Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Run(nil), m.runs...)
}

// Closed reports whether Close was called
func (m *MockTracker) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close implements Tracker
func (m *MockTracker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
