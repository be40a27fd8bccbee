package surface

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/DockerDiscordControl/ddc/internal/config"
	"github.com/DockerDiscordControl/ddc/internal/db"
	"github.com/DockerDiscordControl/ddc/internal/render"
)

// fakePlatform records surfaces in memory and counts writes.
type fakePlatform struct {
	mu      sync.Mutex
	nextID  int
	content map[string]string // channelID/surfaceID -> text
	creates int
	updates int

	lastOwn     bool
	missing     map[string]bool // surfaces that vanished
	updateErr   error
	createDelay time.Duration
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{content: make(map[string]string), missing: make(map[string]bool), lastOwn: false}
}

func (f *fakePlatform) Create(ctx context.Context, channelID string, out render.Output) (string, error) {
	if f.createDelay > 0 {
		time.Sleep(f.createDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := strconv.Itoa(f.nextID)
	f.content[channelID+"/"+id] = out.Text
	f.creates++
	return id, nil
}

func (f *fakePlatform) Update(ctx context.Context, channelID, surfaceID string, out render.Output) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.missing[surfaceID] {
		return fmt.Errorf("surface %s: %w", surfaceID, ErrSurfaceNotFound)
	}
	f.content[channelID+"/"+surfaceID] = out.Text
	f.updates++
	return nil
}

func (f *fakePlatform) DeleteOwnContent(ctx context.Context, channelID string, limit int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.content {
		delete(f.content, k)
	}
	return nil
}

func (f *fakePlatform) LastContentIsOwn(ctx context.Context, channelID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOwn, nil
}

// fakeRenderer serves a settable text per container.
type fakeRenderer struct {
	mu    sync.Mutex
	texts map[string]string
}

func (r *fakeRenderer) set(container, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts[container] = text
}

func (r *fakeRenderer) Card(channelID, container string) render.Output {
	r.mu.Lock()
	defer r.mu.Unlock()
	return render.Output{Text: r.texts[container]}
}

func (r *fakeRenderer) Overview(channelID string) render.Output {
	return render.Output{Text: "overview"}
}

func coordFixture(t *testing.T) (*Coordinator, *fakePlatform, *fakeRenderer, func(time.Time)) {
	t.Helper()
	snap, err := config.Resolve(&config.File{
		Containers: []config.Container{{Name: "web", DockerName: "nginx"}},
		Channels: []config.Channel{{
			ID:          "chan",
			Permissions: []string{config.CapStatus},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}

	plat := newFakePlatform()
	rend := &fakeRenderer{texts: map[string]string{"web": "v1"}}
	c := NewCoordinator(plat, config.NewStoreFromSnapshot(snap), rend, nil)

	clock := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }
	setClock := func(t time.Time) { clock = t }
	return c, plat, rend, setClock
}

func TestTickHonorsUpdateInterval(t *testing.T) {
	t.Parallel()

	c, plat, rend, setClock := coordFixture(t)
	ctx := context.Background()
	base := c.now()

	c.Tick(ctx) // first pass creates
	if plat.creates != 1 {
		t.Fatalf("creates = %d, want 1", plat.creates)
	}

	// Content changed but the interval has not elapsed.
	rend.set("web", "v2")
	setClock(base.Add(time.Minute))
	c.Tick(ctx)
	if plat.updates != 0 {
		t.Errorf("pushed before interval elapsed (updates = %d)", plat.updates)
	}

	setClock(base.Add(6 * time.Minute))
	c.Tick(ctx)
	if plat.updates != 1 {
		t.Errorf("updates = %d, want 1 after interval", plat.updates)
	}
}

func TestTickSkipsUnchangedContent(t *testing.T) {
	t.Parallel()

	c, plat, _, setClock := coordFixture(t)
	ctx := context.Background()
	base := c.now()

	c.Tick(ctx)
	setClock(base.Add(6 * time.Minute))
	c.Tick(ctx)
	setClock(base.Add(12 * time.Minute))
	c.Tick(ctx)

	if plat.updates != 0 {
		t.Errorf("identical content was pushed %d times", plat.updates)
	}
}

func TestGoneSurfaceUntrackedAndRecreated(t *testing.T) {
	t.Parallel()

	c, plat, rend, setClock := coordFixture(t)
	ctx := context.Background()
	base := c.now()

	c.Tick(ctx)

	// User deletes the message; next due push hits not-found.
	plat.missing["1"] = true
	rend.set("web", "v2")
	setClock(base.Add(6 * time.Minute))
	c.Tick(ctx)
	if plat.creates != 1 {
		t.Fatalf("creates = %d during the failing pass, want still 1", plat.creates)
	}

	setClock(base.Add(12 * time.Minute))
	c.Tick(ctx)
	if plat.creates != 2 {
		t.Errorf("creates = %d, want recreate on following pass", plat.creates)
	}
}

func TestPermissionLossUntracksSurface(t *testing.T) {
	t.Parallel()

	c, plat, rend, setClock := coordFixture(t)
	ctx := context.Background()
	base := c.now()

	c.Tick(ctx)

	// The platform revokes our write access; the tracked surface can no
	// longer be trusted and must be dropped like a deleted one.
	plat.updateErr = fmt.Errorf("channel chan: %w", ErrPermissionDenied)
	rend.set("web", "v2")
	setClock(base.Add(6 * time.Minute))
	c.Tick(ctx)
	if plat.creates != 1 {
		t.Fatalf("creates = %d during the denied pass, want still 1", plat.creates)
	}

	// Access restored: the next pass starts from scratch.
	plat.updateErr = nil
	setClock(base.Add(12 * time.Minute))
	c.Tick(ctx)
	if plat.creates != 2 {
		t.Errorf("creates = %d, want recreate after access returns", plat.creates)
	}
}

func TestConcurrentPushesCreateOnce(t *testing.T) {
	t.Parallel()

	c, plat, _, _ := coordFixture(t)
	ctx := context.Background()
	plat.createDelay = 20 * time.Millisecond

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.Tick(ctx)
	}()
	go func() {
		defer wg.Done()
		c.RefreshCard(ctx, "web")
	}()
	wg.Wait()

	if plat.creates != 1 {
		t.Errorf("creates = %d, want a single surface for the same card", plat.creates)
	}
}

func TestInactivityRegeneration(t *testing.T) {
	t.Parallel()

	c, plat, _, setClock := coordFixture(t)
	ctx := context.Background()
	base := c.now()

	c.Tick(ctx)
	firstID := plat.nextID

	// Someone posts, then the channel goes quiet past the timeout.
	setClock(base.Add(2 * time.Minute))
	c.NoteActivity("chan")
	setClock(base.Add(13 * time.Minute))
	c.Tick(ctx)

	if plat.nextID == firstID {
		t.Error("expected fresh surfaces after inactivity regeneration")
	}
}

func TestInactivitySkippedWhenLastContentIsOwn(t *testing.T) {
	t.Parallel()

	c, plat, _, setClock := coordFixture(t)
	ctx := context.Background()
	base := c.now()

	c.Tick(ctx)
	plat.lastOwn = true
	created := plat.creates

	setClock(base.Add(30 * time.Minute))
	c.Tick(ctx)

	if plat.creates != created {
		t.Error("regeneration should be skipped when our content is newest")
	}
}

func TestTrackedSurfacesSurviveRestart(t *testing.T) {
	t.Parallel()

	database, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	snap, err := config.Resolve(&config.File{
		Containers: []config.Container{{Name: "web", DockerName: "nginx"}},
		Channels:   []config.Channel{{ID: "chan", Permissions: []string{config.CapStatus}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	store := config.NewStoreFromSnapshot(snap)
	plat := newFakePlatform()
	rend := &fakeRenderer{texts: map[string]string{"web": "v1"}}

	c1 := NewCoordinator(plat, store, rend, database)
	c1.Tick(context.Background())
	if plat.creates != 1 {
		t.Fatalf("creates = %d, want 1", plat.creates)
	}

	// New coordinator over the same database must reattach, not repost.
	plat.lastOwn = true // keep the inactivity path from regenerating
	c2 := NewCoordinator(plat, store, rend, database)
	rend.set("web", "v2")
	c2.now = func() time.Time { return time.Now().Add(time.Hour) }
	c2.Tick(context.Background())

	if plat.creates != 1 {
		t.Errorf("creates = %d after restart, want edit of existing surface", plat.creates)
	}
	if plat.updates != 1 {
		t.Errorf("updates = %d, want 1", plat.updates)
	}
}
