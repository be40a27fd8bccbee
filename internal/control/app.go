// Package control is the decision layer: it folds configuration, cached
// status and pending actions into rendered cards, and dispatches lifecycle
// actions against the runtime.
package control

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/DockerDiscordControl/ddc/internal/config"
	"github.com/DockerDiscordControl/ddc/internal/db"
	"github.com/DockerDiscordControl/ddc/internal/docker"
	"github.com/DockerDiscordControl/ddc/internal/render"
	"github.com/DockerDiscordControl/ddc/internal/status"
	"github.com/DockerDiscordControl/ddc/internal/surface"
)

var (
	// ErrPermissionDenied reports that the channel lacks the capability.
	ErrPermissionDenied = errors.New("channel not permitted")

	// ErrActionNotAllowed reports that the action is not in the container's
	// allowed list.
	ErrActionNotAllowed = errors.New("action not allowed for container")

	// ErrUnknownContainer reports a container name with no configuration.
	ErrUnknownContainer = errors.New("unknown container")
)

// App wires the shared pieces together and implements surface.Renderer.
type App struct {
	cfg       *config.Store
	gw        docker.Gateway
	cache     *status.Cache
	pending   *status.Tracker
	refresher *status.Refresher
	memo      *render.Memo
	coord     *surface.Coordinator
	db        *db.DB

	mu        sync.Mutex
	collapsed map[string]bool // channelID/container -> details collapsed

	now       func() time.Time
	hbRecheck time.Duration
}

func NewApp(cfg *config.Store, gw docker.Gateway, cache *status.Cache, pending *status.Tracker, refresher *status.Refresher) *App {
	return &App{
		cfg:       cfg,
		gw:        gw,
		cache:     cache,
		pending:   pending,
		refresher: refresher,
		memo:      render.NewMemo(),
		collapsed: make(map[string]bool),
		now:       time.Now,
		hbRecheck: time.Minute,
	}
}

// SetCoordinator hands the app its coordinator after both exist. Must be
// called before serving.
func (a *App) SetCoordinator(c *surface.Coordinator) {
	a.coord = c
}

// collapsedKey is where the details-toggle state lives in the settings
// bucket.
const collapsedKey = "collapsed"

// AttachDB restores persisted toggle state and keeps it persisted across
// restarts. Optional; without it toggles are memory only.
func (a *App) AttachDB(d *db.DB) {
	a.db = d
	var m map[string]bool
	if ok, err := d.GetJSON(db.BucketSettings, collapsedKey, &m); err == nil && ok && m != nil {
		a.mu.Lock()
		a.collapsed = m
		a.mu.Unlock()
	}
}

// ToggleDetails flips whether a channel shows CPU/RAM rows for a container
// and returns the new state. Containers whose config forbids details cannot
// be toggled; their state is left untouched.
func (a *App) ToggleDetails(channelID, container string) bool {
	c, ok := a.cfg.Current().ContainerByName(container)
	if !ok || !c.DetailsAllowed() {
		return false
	}

	key := channelID + "/" + container
	a.mu.Lock()
	a.collapsed[key] = !a.collapsed[key]
	collapsed := a.collapsed[key]
	snapshot := make(map[string]bool, len(a.collapsed))
	for k, v := range a.collapsed {
		snapshot[k] = v
	}
	a.mu.Unlock()

	if a.db != nil {
		if err := a.db.PutJSON(db.BucketSettings, collapsedKey, snapshot); err != nil {
			slog.Warn("persisting toggle state failed", "error", err)
		}
	}

	if a.coord != nil {
		a.coord.RefreshCard(context.Background(), container)
	}
	return !collapsed
}

func (a *App) detailsCollapsed(channelID, container string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.collapsed[channelID+"/"+container]
}

// Card renders the current face of one container for one channel. Pending
// state wins over cached status; a container never fetched shows loading; a
// cache entry past its freshness window shows unavailable rather than lying
// with old numbers.
func (a *App) Card(channelID, container string) render.Output {
	snap := a.cfg.Current()
	now := a.now()

	in := render.Input{
		Kind:     render.KindStatus,
		Name:     container,
		Location: snap.Location,
	}

	c, ok := snap.ContainerByName(container)
	if !ok {
		in.Kind = render.KindConfigError
		return a.memo.Card(in)
	}

	if p, busy := a.pending.Get(container); busy {
		in.Kind = render.KindPending
		in.Pending = p.Action
		return a.memo.Card(in)
	}

	cached, known := a.cache.Get(container)
	age, _ := a.cache.Staleness(container, now)
	fresh := known && age <= a.cache.TTL()
	expanded := !a.detailsCollapsed(channelID, container)
	switch {
	case !known:
		in.Kind = render.KindLoading
	case !fresh:
		in.Kind = render.KindError
	default:
		in.Running = cached.Running
		in.CPU = cached.CPU
		in.Mem = cached.Mem
		in.Uptime = cached.Uptime
		in.DetailsAllowed = c.DetailsAllowed()
		in.Expanded = expanded
		in.FetchedAt = cached.FetchedAt
	}

	if snap.HasPermission(channelID, config.CapControl) {
		in.ControlAllowed = true
		in.Actions = availableActions(c, cached, fresh, expanded)
	}
	return a.memo.Card(in)
}

// availableActions filters the container's allowed actions by its current
// run state: start only when down, stop and restart only when up and only on
// an expanded card, so a collapsed card cannot stop a container by accident.
// With no fresh state everything allowed is offered.
func availableActions(c config.Container, cached status.Snapshot, haveState, expanded bool) []docker.Action {
	var out []docker.Action
	for _, name := range c.AllowedActions {
		action := docker.Action(name)
		if haveState {
			if action == docker.ActionStart && cached.Running {
				continue
			}
			if action != docker.ActionStart && (!cached.Running || !expanded) {
				continue
			}
		}
		out = append(out, action)
	}
	return out
}

// Channels lists the channel ids that may watch status, sorted for a stable
// wire order.
func (a *App) Channels() []string {
	snap := a.cfg.Current()
	out := make([]string, 0, len(snap.Channels))
	for id := range snap.Channels {
		if snap.HasPermission(id, config.CapStatus) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Overview renders the fleet summary for a channel from the last completed
// sweep, so every line reflects the same generation.
func (a *App) Overview(channelID string) render.Output {
	snap := a.cfg.Current()
	gen := a.refresher.Generation()

	var generatedAt time.Time
	snaps := map[string]status.Snapshot{}
	if gen != nil {
		generatedAt = gen.CompletedAt
		snaps = gen.Snapshots
	}

	lines := make([]render.OverviewLine, 0, len(snap.Containers))
	for _, c := range snap.Containers {
		line := render.OverviewLine{Name: c.Name}
		if p, busy := a.pending.Get(c.Name); busy {
			line.Pending = p.Action
		}
		if s, ok := snaps[c.Name]; ok {
			line.Known = true
			line.Running = s.Running
		}
		lines = append(lines, line)
	}
	return render.Output{Text: render.Overview(lines, generatedAt, snap.Location)}
}

// ForceRefreshAll sweeps immediately, pushes every channel and returns the
// fresh generation, for the manual refresh command.
func (a *App) ForceRefreshAll(ctx context.Context) *status.Generation {
	a.refresher.Sweep(ctx)
	if a.coord != nil {
		a.coord.RefreshAll(ctx)
	}
	return a.refresher.Generation()
}
