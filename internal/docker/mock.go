package docker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockGateway is an in-memory Gateway for tests and dev mode. Containers are
// registered up front; actions flip their run state immediately.
type MockGateway struct {
	mu         sync.Mutex
	containers map[string]*mockContainer
	actCalls   int

	// InspectErr and StatsErr, when set, are returned by every call so tests
	// can simulate a flaky or unreachable daemon.
	InspectErr error
	StatsErr   error
	ActErr     error
}

type mockContainer struct {
	running   bool
	startedAt time.Time
	stats     Stats
}

func NewMockGateway() *MockGateway {
	return &MockGateway{containers: make(map[string]*mockContainer)}
}

// AddContainer registers a container with the given run state.
func (m *MockGateway) AddContainer(name string, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &mockContainer{
		running: running,
		stats:   Stats{CPUPerc: "1.2%", MemUsage: "128.0MiB / 2.0GiB"},
	}
	if running {
		c.startedAt = time.Now().Add(-time.Hour)
	}
	m.containers[name] = c
}

// SetRunning flips the run state without going through Act.
func (m *MockGateway) SetRunning(name string, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.containers[name]; ok {
		c.running = running
		if running {
			c.startedAt = time.Now()
		}
	}
}

func (m *MockGateway) Inspect(ctx context.Context, name string) (InspectInfo, error) {
	if err := ctx.Err(); err != nil {
		return InspectInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InspectErr != nil {
		return InspectInfo{}, m.InspectErr
	}
	c, ok := m.containers[name]
	if !ok {
		return InspectInfo{}, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return InspectInfo{Running: c.running, StartedAt: c.startedAt}, nil
}

func (m *MockGateway) Stats(ctx context.Context, name string) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StatsErr != nil {
		return Stats{}, m.StatsErr
	}
	c, ok := m.containers[name]
	if !ok {
		return Stats{}, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return c.stats, nil
}

func (m *MockGateway) Act(ctx context.Context, name string, action Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actCalls++
	if m.ActErr != nil {
		return m.ActErr
	}
	c, ok := m.containers[name]
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	c.running = action.ExpectRunning()
	if c.running {
		c.startedAt = time.Now()
	}
	return nil
}

// ActCalls reports how many times Act has been invoked, failures included.
func (m *MockGateway) ActCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actCalls
}

func (m *MockGateway) Close() error { return nil }

var _ Gateway = (*MockGateway)(nil)
