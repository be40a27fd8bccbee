package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DockerDiscordControl/ddc/internal/config"
	"github.com/DockerDiscordControl/ddc/internal/docker"
	"github.com/DockerDiscordControl/ddc/internal/render"
)

// actionTimeout bounds a single runtime action. Longer than a fetch timeout
// because stop honors the container's own grace period.
const actionTimeout = 90 * time.Second

// Dispatch validates and launches a lifecycle action. It returns once the
// action is accepted and registered as pending; the runtime call itself runs
// in the background and the pending entry resolves when a later sweep
// observes the target state.
func (a *App) Dispatch(ctx context.Context, channelID, container string, action docker.Action) error {
	snap := a.cfg.Current()

	if !snap.HasPermission(channelID, config.CapControl) {
		return fmt.Errorf("channel %s: %w", channelID, ErrPermissionDenied)
	}
	c, ok := snap.ContainerByName(container)
	if !ok {
		return fmt.Errorf("%q: %w", container, ErrUnknownContainer)
	}
	if !action.Valid() || !c.ActionAllowed(string(action)) {
		return fmt.Errorf("%s on %q: %w", action, container, ErrActionNotAllowed)
	}

	if err := a.pending.Begin(container, action, a.now()); err != nil {
		return fmt.Errorf("%q: %w", container, err)
	}

	slog.Info("action dispatched", "container", container, "action", action, "channel", channelID)

	// Show the transition right away; the periodic push would catch up
	// anyway, this just makes the button feel alive.
	if a.coord != nil {
		a.coord.RefreshCard(ctx, container)
	}

	go a.runAction(channelID, c, action)
	return nil
}

// DispatchScheduled launches an action on behalf of the task scheduler.
// Tasks are authorized at creation time, so no channel permission applies,
// but the container's allowed-action list still does.
func (a *App) DispatchScheduled(ctx context.Context, container string, action docker.Action) error {
	snap := a.cfg.Current()
	c, ok := snap.ContainerByName(container)
	if !ok {
		return fmt.Errorf("%q: %w", container, ErrUnknownContainer)
	}
	if !action.Valid() || !c.ActionAllowed(string(action)) {
		return fmt.Errorf("%s on %q: %w", action, container, ErrActionNotAllowed)
	}
	if err := a.pending.Begin(container, action, a.now()); err != nil {
		return fmt.Errorf("%q: %w", container, err)
	}

	slog.Info("scheduled action dispatched", "container", container, "action", action)
	if a.coord != nil {
		a.coord.RefreshCard(ctx, container)
	}
	go a.runAction("", c, action)
	return nil
}

// runAction performs the runtime call. On a definitive rejection the pending
// entry clears immediately so the next render falls back to cached status,
// and the originating channel gets a notice; when the call times out the
// outcome is unknown, so the entry stays for a sweep to confirm or for its
// own timeout to expire.
func (a *App) runAction(channelID string, c config.Container, action docker.Action) {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	if err := a.gw.Act(ctx, c.DockerName, action); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			slog.Warn("action outcome unknown", "container", c.Name, "action", action, "error", err)
			a.refresher.Kick()
			return
		}
		slog.Error("action failed", "container", c.Name, "action", action, "error", err)
		a.pending.Clear(c.Name)
		if a.coord != nil {
			a.coord.RefreshCard(context.Background(), c.Name)
			if channelID != "" {
				a.coord.PostNotice(context.Background(), channelID, render.Output{
					Kind:  render.KindError,
					Color: "red",
					Text:  "❌ **" + c.Name + "**: " + string(action) + " failed",
				})
			}
		}
		return
	}

	// Pull the next sweep forward so the confirmation lands quickly.
	a.refresher.Kick()
}
