// Package docker defines the gateway to the container runtime. Everything
// above this package speaks in terms of Inspect/Stats/Act; only the SDK
// implementation knows about the Docker Engine API.
package docker

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports that the runtime has no container under the requested
// name. Callers treat it differently from transient failures: a missing
// container renders as offline, a transient error keeps the last good data.
var ErrNotFound = errors.New("container not found")

// Action is a lifecycle operation on a container.
type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
)

// Valid reports whether a is one of the known lifecycle actions.
func (a Action) Valid() bool {
	switch a {
	case ActionStart, ActionStop, ActionRestart:
		return true
	}
	return false
}

// ExpectRunning reports the run state a container should end up in after the
// action completes. Start and restart both land on running.
func (a Action) ExpectRunning() bool {
	return a != ActionStop
}

// InspectInfo is the run-state portion of a status fetch.
type InspectInfo struct {
	Running   bool
	StartedAt time.Time
}

// Stats is the resource portion of a status fetch, already formatted for
// display.
type Stats struct {
	CPUPerc  string
	MemUsage string
}

// Gateway is the runtime abstraction the rest of the program depends on.
// Implementations must honor ctx cancellation on every call.
type Gateway interface {
	// Inspect returns run state, or ErrNotFound when the name is unknown.
	Inspect(ctx context.Context, name string) (InspectInfo, error)

	// Stats returns current resource usage for a running container.
	Stats(ctx context.Context, name string) (Stats, error)

	// Act performs a lifecycle action and returns once the runtime has
	// accepted it.
	Act(ctx context.Context, name string, action Action) error

	Close() error
}
