package status

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/DockerDiscordControl/ddc/internal/docker"
)

// PendingTimeout is how long a pending action may wait for the runtime to
// confirm before it is abandoned.
const PendingTimeout = 120 * time.Second

// ErrActionInProgress reports that the container already has a pending
// action. A second action on the same container is rejected rather than
// queued.
var ErrActionInProgress = errors.New("action already in progress")

// Pending is one in-flight lifecycle action.
type Pending struct {
	Action    docker.Action
	StartedAt time.Time
	Deadline  time.Time
}

// Tracker holds at most one pending action per container. While a container
// is pending, the render layer shows the transition instead of cached
// status.
type Tracker struct {
	mu sync.Mutex
	m  map[string]Pending
}

func NewTracker() *Tracker {
	return &Tracker{m: make(map[string]Pending)}
}

// Begin registers a pending action. Returns ErrActionInProgress when one is
// already registered for the container.
func (t *Tracker) Begin(name string, action docker.Action, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.m[name]; busy {
		return ErrActionInProgress
	}
	t.m[name] = Pending{
		Action:    action,
		StartedAt: now,
		Deadline:  now.Add(PendingTimeout),
	}
	return nil
}

// Get returns the pending action for a container, if any.
func (t *Tracker) Get(name string) (Pending, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.m[name]
	return p, ok
}

// Clear unconditionally removes the pending entry, used when the runtime
// rejects the action outright.
func (t *Tracker) Clear(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, name)
}

// Reconcile resolves the pending entry against a fresh run-state
// observation: the entry clears when the container reaches the state the
// action was driving toward (running for start and restart, stopped for
// stop). Observations from before the action started are ignored so a stale
// fetch cannot resolve a restart early.
func (t *Tracker) Reconcile(name string, running bool, observedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.m[name]
	if !ok || observedAt.Before(p.StartedAt) {
		return
	}
	if running == p.Action.ExpectRunning() {
		delete(t.m, name)
	}
}

// Expire drops entries whose deadline has passed and returns their names.
func (t *Tracker) Expire(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var expired []string
	for name, p := range t.m {
		if now.After(p.Deadline) {
			slog.Warn("pending action timed out", "container", name, "action", p.Action)
			delete(t.m, name)
			expired = append(expired, name)
		}
	}
	return expired
}
