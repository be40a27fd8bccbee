package status

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DockerDiscordControl/ddc/internal/config"
	"github.com/DockerDiscordControl/ddc/internal/docker"
)

// DefaultInterval is the time between refresh sweeps.
const DefaultInterval = 30 * time.Second

// Generation is one immutable result of a completed sweep. Consumers that
// want a consistent cross-container view read a generation instead of the
// live cache.
type Generation struct {
	Seq         uint64
	CompletedAt time.Time
	Snapshots   map[string]Snapshot
}

// Refresher drives the periodic status sweep: one concurrent fetch per
// configured container, results merged into the cache, then a generation
// snapshot published for observers.
type Refresher struct {
	gw       docker.Gateway
	cfg      *config.Store
	cache    *Cache
	pending  *Tracker
	interval time.Duration

	seq     atomic.Uint64
	gen     atomic.Pointer[Generation]
	onSweep func(*Generation)

	kick chan struct{}
	now  func() time.Time
}

func NewRefresher(gw docker.Gateway, cfg *config.Store, cache *Cache, pending *Tracker, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Refresher{
		gw:       gw,
		cfg:      cfg,
		cache:    cache,
		pending:  pending,
		interval: interval,
		kick:     make(chan struct{}, 1),
		now:      time.Now,
	}
}

// OnSweep registers a callback invoked after every completed sweep with the
// new generation. Must be called before Run.
func (r *Refresher) OnSweep(fn func(*Generation)) {
	r.onSweep = fn
}

// Generation returns the most recently published generation, or nil before
// the first sweep completes.
func (r *Refresher) Generation() *Generation {
	return r.gen.Load()
}

// Kick requests an immediate out-of-band sweep. Coalesces when one is
// already queued.
func (r *Refresher) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run sweeps immediately, then on every tick and every Kick, until ctx is
// done.
func (r *Refresher) Run(ctx context.Context) {
	r.Sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		case <-r.kick:
			r.Sweep(ctx)
		}
	}
}

// Sweep fetches every configured container concurrently and publishes a new
// generation. A fetch failure for one container never blocks the others; its
// cached snapshot simply stays as it was.
func (r *Refresher) Sweep(ctx context.Context) {
	snap := r.cfg.Current()
	r.pending.Expire(r.now())

	var wg sync.WaitGroup
	for _, c := range snap.Containers {
		wg.Add(1)
		go func(c config.Container) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("status fetch panicked", "container", c.Name, "panic", rec, "stack", string(debug.Stack()))
				}
			}()
			r.fetchOne(ctx, c)
		}(c)
	}
	wg.Wait()

	// Containers dropped from the configuration leave the cache so a later
	// re-add starts from a clean loading state.
	configured := make(map[string]bool, len(snap.Containers))
	for _, c := range snap.Containers {
		configured[c.Name] = true
	}
	for name := range r.cache.All() {
		if !configured[name] {
			r.cache.Forget(name)
			r.pending.Clear(name)
		}
	}

	gen := &Generation{
		Seq:         r.seq.Add(1),
		CompletedAt: r.now(),
		Snapshots:   r.cache.All(),
	}
	r.gen.Store(gen)
	if r.onSweep != nil {
		r.onSweep(gen)
	}
}

// fetchOne observes a single container and merges the result into the cache.
// FetchedAt is taken before the first runtime call so that two overlapping
// fetches resolve by when they observed, not when they finished.
func (r *Refresher) fetchOne(ctx context.Context, c config.Container) {
	fetchedAt := r.now()
	ctx, cancel := context.WithTimeout(ctx, c.FetchTimeout())
	defer cancel()

	info, err := r.gw.Inspect(ctx, c.DockerName)
	if err != nil {
		if errors.Is(err, docker.ErrNotFound) {
			// A container the runtime does not know renders as offline,
			// unlike a transient failure which keeps the last good data.
			r.pending.Reconcile(c.Name, false, fetchedAt)
			r.cache.Put(Snapshot{
				Name:           c.Name,
				NotFound:       true,
				CPU:            "N/A",
				Mem:            "N/A",
				Uptime:         "N/A",
				DetailsAllowed: c.DetailsAllowed(),
				FetchedAt:      fetchedAt,
			})
			return
		}
		slog.Warn("status fetch failed, keeping cached data", "container", c.Name, "error", err)
		return
	}

	out := Snapshot{
		Name:           c.Name,
		Running:        info.Running,
		CPU:            "N/A",
		Mem:            "N/A",
		Uptime:         "N/A",
		DetailsAllowed: c.DetailsAllowed(),
		FetchedAt:      fetchedAt,
	}
	if info.Running {
		out.Uptime = FormatUptime(info.StartedAt, r.now())
		if c.DetailsAllowed() {
			stats, err := r.gw.Stats(ctx, c.DockerName)
			if err != nil {
				slog.Warn("stats fetch failed", "container", c.Name, "error", err)
			} else {
				out.CPU = stats.CPUPerc
				out.Mem = stats.MemUsage
			}
		}
	}

	r.pending.Reconcile(c.Name, info.Running, fetchedAt)
	r.cache.Put(out)
}
