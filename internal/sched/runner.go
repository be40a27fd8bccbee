package sched

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DockerDiscordControl/ddc/internal/docker"
	"github.com/DockerDiscordControl/ddc/internal/status"
)

// Dispatcher launches a pre-authorized container action.
type Dispatcher interface {
	DispatchScheduled(ctx context.Context, container string, action docker.Action) error
}

// Runner fires due tasks once per minute. One-shot tasks are removed after
// firing; recurring tasks simply come due again on their next cycle.
type Runner struct {
	store *Store
	disp  Dispatcher
}

func NewRunner(store *Store, disp Dispatcher) *Runner {
	return &Runner{store: store, disp: disp}
}

// Run blocks until ctx is done. Ticks are aligned to minute boundaries so a
// task set for 14:30 fires at 14:30:00, not up to a minute late.
func (r *Runner) Run(ctx context.Context) {
	for {
		now := r.store.now()
		wait := now.Truncate(time.Minute).Add(time.Minute).Sub(now)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			r.fireDue(ctx)
		}
	}
}

func (r *Runner) fireDue(ctx context.Context) {
	now := r.store.now()
	due, err := r.store.Due(now)
	if err != nil {
		slog.Error("loading due tasks failed", "error", err)
		return
	}

	for _, t := range due {
		slog.Info("scheduled task firing", "task", t.ID, "container", t.Container, "action", t.Action, "cycle", t.Cycle)
		if err := r.disp.DispatchScheduled(ctx, t.Container, t.Action); err != nil {
			// A busy container keeps its task for the next cycle; once
			// tasks are consumed either way.
			if !errors.Is(err, status.ErrActionInProgress) {
				slog.Error("scheduled task failed", "task", t.ID, "error", err)
			} else {
				slog.Warn("scheduled task skipped, action in progress", "task", t.ID, "container", t.Container)
			}
		}
		if t.Cycle == CycleOnce {
			if err := r.store.Delete(t.ID); err != nil {
				slog.Error("removing one-shot task failed", "task", t.ID, "error", err)
			}
		}
	}
}
