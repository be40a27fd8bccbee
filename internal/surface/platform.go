// Package surface keeps the display surfaces (one card per container per
// channel, plus an optional overview) in step with container state. The chat
// platform itself sits behind the Platform interface; this package only
// decides what to push where and when.
package surface

import (
	"context"
	"errors"

	"github.com/DockerDiscordControl/ddc/internal/render"
)

var (
	// ErrSurfaceNotFound reports that a tracked surface no longer exists,
	// typically because a user deleted the message. The coordinator untracks
	// it and recreates on the next pass.
	ErrSurfaceNotFound = errors.New("surface not found")

	// ErrRateLimited reports that the platform refused the write for now.
	ErrRateLimited = errors.New("rate limited")

	// ErrPermissionDenied reports that the bot may not write to the channel.
	ErrPermissionDenied = errors.New("permission denied")
)

// DeleteScanLimit bounds how far back DeleteOwnContent scans in a channel.
const DeleteScanLimit = 300

// Platform is the chat side of the program: anything that can host editable
// bot-owned surfaces in named channels.
type Platform interface {
	// Create posts a new surface and returns its identity.
	Create(ctx context.Context, channelID string, content render.Output) (string, error)

	// Update edits an existing surface in place. Returns ErrSurfaceNotFound
	// when the surface is gone.
	Update(ctx context.Context, channelID, surfaceID string, content render.Output) error

	// DeleteOwnContent removes the bot's own surfaces from a channel,
	// scanning at most limit recent entries.
	DeleteOwnContent(ctx context.Context, channelID string, limit int) error

	// LastContentIsOwn reports whether the newest entry in the channel is
	// the bot's. Used to skip pointless regeneration of an undisturbed
	// channel.
	LastContentIsOwn(ctx context.Context, channelID string) (bool, error)
}
