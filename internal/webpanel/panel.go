// Package webpanel is the built-in chat platform: a live web view where each
// configured channel is a feed of entries, the program's container cards
// among them. It implements surface.Platform, so the coordinator treats it
// exactly like any external chat service, and mirrors every feed change to
// the browsers watching it.
package webpanel

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/DockerDiscordControl/ddc/internal/render"
	"github.com/DockerDiscordControl/ddc/internal/surface"
	"github.com/DockerDiscordControl/ddc/internal/ws"
)

// Entry is one item in a channel feed. Own marks entries this program
// posted; everything else came from panel users.
type Entry struct {
	ID        string   `json:"id"`
	Own       bool     `json:"own"`
	Text      string   `json:"text"`
	Color     string   `json:"color,omitempty"`
	Running   bool     `json:"running,omitempty"`
	Actions   []string `json:"actions,omitempty"`
	CanToggle bool     `json:"can_toggle,omitempty"`
}

type feed struct {
	entries []*Entry
}

// Panel holds the in-memory feeds and pushes changes out over the websocket
// server.
type Panel struct {
	srv    *ws.Server
	nextID atomic.Uint64

	mu     sync.Mutex
	feeds  map[string]*feed
	locked map[string]bool

	// onActivity is the coordinator's inactivity clock, wired in Register.
	onActivity func(channelID string)
}

func NewPanel(srv *ws.Server) *Panel {
	return &Panel{srv: srv, feeds: make(map[string]*feed), locked: make(map[string]bool)}
}

// SetLocked marks a channel read-only for the program. Writes to a locked
// channel fail with surface.ErrPermissionDenied, the way an external
// platform revoking our rights would.
func (p *Panel) SetLocked(channelID string, locked bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked[channelID] = locked
}

func (p *Panel) feedFor(channelID string) *feed {
	f, ok := p.feeds[channelID]
	if !ok {
		f = &feed{}
		p.feeds[channelID] = f
	}
	return f
}

func (p *Panel) newID() string {
	return "s" + strconv.FormatUint(p.nextID.Add(1), 10)
}

// Create appends a bot-owned entry to the channel feed.
func (p *Panel) Create(ctx context.Context, channelID string, out render.Output) (string, error) {
	p.mu.Lock()
	if p.locked[channelID] {
		p.mu.Unlock()
		return "", fmt.Errorf("channel %s: %w", channelID, surface.ErrPermissionDenied)
	}
	e := &Entry{
		ID:        p.newID(),
		Own:       true,
		Text:      out.Text,
		Color:     out.Color,
		Running:   out.Running,
		Actions:   actionNames(out),
		CanToggle: out.CanToggle,
	}
	f := p.feedFor(channelID)
	f.entries = append(f.entries, e)
	p.mu.Unlock()

	p.broadcastFeed(channelID)
	return e.ID, nil
}

// Update edits an existing entry in place.
func (p *Panel) Update(ctx context.Context, channelID, surfaceID string, out render.Output) error {
	p.mu.Lock()
	if p.locked[channelID] {
		p.mu.Unlock()
		return fmt.Errorf("channel %s: %w", channelID, surface.ErrPermissionDenied)
	}
	f := p.feedFor(channelID)
	var found *Entry
	for _, e := range f.entries {
		if e.ID == surfaceID {
			found = e
			break
		}
	}
	if found == nil {
		p.mu.Unlock()
		return fmt.Errorf("entry %s in %s: %w", surfaceID, channelID, surface.ErrSurfaceNotFound)
	}
	found.Text = out.Text
	found.Color = out.Color
	found.Running = out.Running
	found.Actions = actionNames(out)
	found.CanToggle = out.CanToggle
	p.mu.Unlock()

	p.broadcastFeed(channelID)
	return nil
}

// DeleteOwnContent removes this program's entries from the newest limit
// items of the feed.
func (p *Panel) DeleteOwnContent(ctx context.Context, channelID string, limit int) error {
	p.mu.Lock()
	f := p.feedFor(channelID)
	start := 0
	if len(f.entries) > limit {
		start = len(f.entries) - limit
	}
	kept := f.entries[:start:start]
	for _, e := range f.entries[start:] {
		if !e.Own {
			kept = append(kept, e)
		}
	}
	f.entries = kept
	p.mu.Unlock()

	p.broadcastFeed(channelID)
	return nil
}

// LastContentIsOwn reports whether the newest feed entry is ours. An empty
// feed counts as ours so startup does not immediately regenerate.
func (p *Panel) LastContentIsOwn(ctx context.Context, channelID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.feedFor(channelID)
	if len(f.entries) == 0 {
		return true, nil
	}
	return f.entries[len(f.entries)-1].Own, nil
}

// PostUserMessage appends a user entry and restarts the channel's
// inactivity clock.
func (p *Panel) PostUserMessage(channelID, text string) {
	p.mu.Lock()
	f := p.feedFor(channelID)
	f.entries = append(f.entries, &Entry{ID: p.newID(), Text: text})
	p.mu.Unlock()

	if p.onActivity != nil {
		p.onActivity(channelID)
	}
	p.broadcastFeed(channelID)
}

// Entries returns a copy of the channel's feed.
func (p *Panel) Entries(channelID string) []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.feedFor(channelID)
	out := make([]Entry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, *e)
	}
	return out
}

// DeleteEntry removes one entry by id, the panel counterpart of a user
// deleting a bot message.
func (p *Panel) DeleteEntry(channelID, entryID string) {
	p.mu.Lock()
	f := p.feedFor(channelID)
	for i, e := range f.entries {
		if e.ID == entryID {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	p.broadcastFeed(channelID)
}

func (p *Panel) broadcastFeed(channelID string) {
	if p.srv == nil {
		return
	}
	p.srv.BroadcastChannel(channelID, "feed", p.Entries(channelID))
}

func actionNames(out render.Output) []string {
	if len(out.Actions) == 0 {
		return nil
	}
	names := make([]string, len(out.Actions))
	for i, a := range out.Actions {
		names[i] = string(a)
	}
	return names
}

var _ surface.Platform = (*Panel)(nil)
