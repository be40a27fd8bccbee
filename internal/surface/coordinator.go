package surface

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/DockerDiscordControl/ddc/internal/config"
	"github.com/DockerDiscordControl/ddc/internal/db"
	"github.com/DockerDiscordControl/ddc/internal/render"
)

// overviewKey is the card slot the fleet overview occupies in a channel.
const overviewKey = "_overview"

// TickInterval is how often the coordinator re-evaluates its channels. Each
// channel still honors its own update interval; the tick only bounds how
// quickly a due refresh is noticed.
const TickInterval = 30 * time.Second

// Renderer produces the current card content for a channel. Implemented by
// the control layer, which folds cache, pending state and permissions
// together.
type Renderer interface {
	Card(channelID, container string) render.Output
	Overview(channelID string) render.Output
}

type cardState struct {
	id       string
	lastHash uint64
}

type channelState struct {
	// push serializes create/update passes for the channel so a refresh
	// racing a tick cannot create the same surface twice.
	push sync.Mutex

	cards        map[string]*cardState
	lastRefresh  time.Time
	lastActivity time.Time
}

// Coordinator owns per-channel refresh cadence, inactivity regeneration and
// surface tracking. All platform writes for a channel happen from its tick
// pass, one channel at a time.
type Coordinator struct {
	platform Platform
	cfg      *config.Store
	rend     Renderer
	db       *db.DB

	mu       sync.Mutex
	channels map[string]*channelState

	now func() time.Time
}

func NewCoordinator(platform Platform, cfg *config.Store, rend Renderer, database *db.DB) *Coordinator {
	c := &Coordinator{
		platform: platform,
		cfg:      cfg,
		rend:     rend,
		db:       database,
		channels: make(map[string]*channelState),
		now:      time.Now,
	}
	if database != nil {
		tracked, err := loadTracked(database)
		if err != nil {
			slog.Warn("loading tracked surfaces failed, starting empty", "error", err)
		} else {
			for channelID, cards := range tracked {
				st := c.stateFor(channelID)
				for cardKey, id := range cards {
					st.cards[cardKey] = &cardState{id: id}
				}
			}
		}
	}
	return c
}

func (c *Coordinator) stateFor(channelID string) *channelState {
	st, ok := c.channels[channelID]
	if !ok {
		st = &channelState{cards: make(map[string]*cardState), lastActivity: c.now()}
		c.channels[channelID] = st
	}
	return st
}

// NoteActivity records that something other than this program posted in the
// channel, restarting the inactivity clock.
func (c *Coordinator) NoteActivity(channelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateFor(channelID).lastActivity = c.now()
}

// Run performs initial posting, then evaluates every channel each tick until
// ctx is done.
func (c *Coordinator) Run(ctx context.Context) {
	c.EnsureInitial(ctx)

	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// EnsureInitial creates surfaces for channels marked post_initial that have
// none tracked yet.
func (c *Coordinator) EnsureInitial(ctx context.Context) {
	snap := c.cfg.Current()
	for id, ch := range snap.Channels {
		if !ch.PostInitial || !snap.HasPermission(id, config.CapStatus) {
			continue
		}
		c.mu.Lock()
		st := c.stateFor(id)
		empty := len(st.cards) == 0
		c.mu.Unlock()
		if empty {
			c.pushChannel(ctx, snap, ch)
		}
	}
}

// Tick evaluates every configured channel once: inactivity regeneration
// first, then due refreshes.
func (c *Coordinator) Tick(ctx context.Context) {
	snap := c.cfg.Current()
	now := c.now()

	for id, ch := range snap.Channels {
		if !snap.HasPermission(id, config.CapStatus) {
			continue
		}

		if ch.RecreateEnabled() && c.inactivityDue(ctx, ch, now) {
			c.Regenerate(ctx, ch.ID)
			continue
		}

		c.mu.Lock()
		due := ch.AutoRefreshEnabled() && now.Sub(c.stateFor(id).lastRefresh) >= ch.UpdateInterval()
		c.mu.Unlock()
		if due {
			c.pushChannel(ctx, snap, ch)
		}
	}
}

// inactivityDue reports whether the channel has sat idle past its timeout
// with someone else's content at the bottom. When the newest entry is our
// own, the cards are already at the bottom and the clock simply restarts.
func (c *Coordinator) inactivityDue(ctx context.Context, ch config.Channel, now time.Time) bool {
	c.mu.Lock()
	st := c.stateFor(ch.ID)
	idle := now.Sub(st.lastActivity) >= ch.InactivityTimeout()
	c.mu.Unlock()
	if !idle {
		return false
	}

	own, err := c.platform.LastContentIsOwn(ctx, ch.ID)
	if err != nil {
		slog.Warn("inactivity check failed", "channel", ch.ID, "error", err)
		return false
	}
	if own {
		c.mu.Lock()
		c.stateFor(ch.ID).lastActivity = now
		c.mu.Unlock()
		return false
	}
	return true
}

// Regenerate deletes the channel's bot content and posts fresh surfaces at
// the bottom.
func (c *Coordinator) Regenerate(ctx context.Context, channelID string) {
	slog.Info("regenerating channel surfaces", "channel", channelID)

	if err := c.platform.DeleteOwnContent(ctx, channelID, DeleteScanLimit); err != nil {
		slog.Warn("deleting old surfaces failed", "channel", channelID, "error", err)
	}

	c.mu.Lock()
	st := c.stateFor(channelID)
	for cardKey := range st.cards {
		c.forgetSurface(channelID, cardKey)
	}
	st.cards = make(map[string]*cardState)
	st.lastActivity = c.now()
	c.mu.Unlock()

	snap := c.cfg.Current()
	if ch, ok := snap.Channel(channelID); ok {
		c.pushChannel(ctx, snap, ch)
	}
}

// RefreshChannel pushes current content to one channel immediately,
// regardless of its interval.
func (c *Coordinator) RefreshChannel(ctx context.Context, channelID string) {
	snap := c.cfg.Current()
	if ch, ok := snap.Channel(channelID); ok && snap.HasPermission(channelID, config.CapStatus) {
		c.pushChannel(ctx, snap, ch)
	}
}

// RefreshAll pushes current content to every status channel immediately.
func (c *Coordinator) RefreshAll(ctx context.Context) {
	snap := c.cfg.Current()
	for id, ch := range snap.Channels {
		if snap.HasPermission(id, config.CapStatus) {
			c.pushChannel(ctx, snap, ch)
		}
	}
}

// RefreshCard pushes one container's card to every channel that shows it,
// used for the immediate pending-state echo after an action is accepted.
// Failures here are harmless: the next sweep push carries the same state.
func (c *Coordinator) RefreshCard(ctx context.Context, container string) {
	snap := c.cfg.Current()
	for id := range snap.Channels {
		if !snap.HasPermission(id, config.CapStatus) {
			continue
		}
		out := c.rend.Card(id, container)
		if err := c.pushCard(ctx, id, container, out); err != nil {
			slog.Debug("pending echo push failed", "channel", id, "container", container, "error", err)
		}
	}
}

// pushChannel writes every card for the channel in display order, then the
// overview if configured. A rate limit aborts the rest of the pass; the next
// tick picks it back up.
func (c *Coordinator) pushChannel(ctx context.Context, snap *config.Snapshot, ch config.Channel) {
	for _, cont := range snap.Containers {
		out := c.rend.Card(ch.ID, cont.Name)
		if err := c.pushCard(ctx, ch.ID, cont.Name, out); err != nil {
			if errors.Is(err, ErrRateLimited) {
				slog.Warn("rate limited, abandoning channel pass", "channel", ch.ID)
				return
			}
			slog.Warn("card push failed", "channel", ch.ID, "container", cont.Name, "error", err)
		}
	}

	if ch.Overview {
		if err := c.pushCard(ctx, ch.ID, overviewKey, c.rend.Overview(ch.ID)); err != nil {
			slog.Warn("overview push failed", "channel", ch.ID, "error", err)
		}
	}

	c.mu.Lock()
	c.stateFor(ch.ID).lastRefresh = c.now()
	c.mu.Unlock()
}

// PostNotice posts a one-off message to a channel, untracked so it is never
// edited afterwards. Used for action failure notices.
func (c *Coordinator) PostNotice(ctx context.Context, channelID string, out render.Output) {
	if _, err := c.platform.Create(ctx, channelID, out); err != nil {
		slog.Warn("notice post failed", "channel", channelID, "error", err)
	}
}

// pushCard creates or edits a single surface, deduplicating unchanged
// content by hash. A surface that turns out to be gone, or that the platform
// no longer lets us write, is untracked so the next pass starts over.
func (c *Coordinator) pushCard(ctx context.Context, channelID, cardKey string, out render.Output) error {
	c.mu.Lock()
	st := c.stateFor(channelID)
	c.mu.Unlock()

	st.push.Lock()
	defer st.push.Unlock()

	hash := contentHash(out)

	c.mu.Lock()
	card, tracked := st.cards[cardKey]
	if tracked && card.lastHash == hash {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if !tracked {
		id, err := c.platform.Create(ctx, channelID, out)
		if err != nil {
			return err
		}
		c.mu.Lock()
		st.cards[cardKey] = &cardState{id: id, lastHash: hash}
		c.mu.Unlock()
		c.persistSurface(channelID, cardKey, id)
		return nil
	}

	err := c.platform.Update(ctx, channelID, card.id, out)
	if errors.Is(err, ErrSurfaceNotFound) || errors.Is(err, ErrPermissionDenied) {
		c.mu.Lock()
		delete(st.cards, cardKey)
		c.mu.Unlock()
		c.forgetSurface(channelID, cardKey)
		return err
	}
	if err == nil {
		c.mu.Lock()
		card.lastHash = hash
		c.mu.Unlock()
	}
	return err
}

func contentHash(out render.Output) uint64 {
	h := fnv.New64a()
	h.Write([]byte(out.Text))
	for _, a := range out.Actions {
		h.Write([]byte{0})
		h.Write([]byte(a))
	}
	return h.Sum64()
}
