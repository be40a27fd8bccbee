package status

import (
	"testing"
	"time"
)

func TestCacheLastFetchWins(t *testing.T) {
	t.Parallel()

	c := NewCache(0)
	base := time.Now()

	if !c.Put(Snapshot{Name: "web", Running: true, FetchedAt: base}) {
		t.Fatal("first put should apply")
	}
	// A slow fetch that observed earlier must not roll the cache back.
	if c.Put(Snapshot{Name: "web", Running: false, FetchedAt: base.Add(-10 * time.Second)}) {
		t.Error("older snapshot should be dropped")
	}
	snap, ok := c.Get("web")
	if !ok || !snap.Running {
		t.Errorf("cache rolled back: %+v", snap)
	}

	if !c.Put(Snapshot{Name: "web", Running: false, FetchedAt: base.Add(10 * time.Second)}) {
		t.Error("newer snapshot should apply")
	}
}

func TestCacheFreshness(t *testing.T) {
	t.Parallel()

	c := NewCache(75 * time.Second)
	base := time.Now()
	c.Put(Snapshot{Name: "web", FetchedAt: base})

	if age, ok := c.Staleness("web", base.Add(60*time.Second)); !ok || age > c.TTL() {
		t.Errorf("age at 60s = %v ok = %v, want fresh", age, ok)
	}
	if age, ok := c.Staleness("web", base.Add(80*time.Second)); !ok || age <= c.TTL() {
		t.Errorf("age at 80s = %v ok = %v, want stale", age, ok)
	}
	if _, ok := c.Staleness("db", base); ok {
		t.Error("never-fetched container should report ok=false")
	}
}

func TestCacheForget(t *testing.T) {
	t.Parallel()

	c := NewCache(0)
	c.Put(Snapshot{Name: "web", FetchedAt: time.Now()})
	c.Forget("web")
	if _, ok := c.Get("web"); ok {
		t.Error("forgotten container should be gone")
	}
}

func TestFormatUptime(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "< 1m"},
		{5 * time.Minute, "5m"},
		{3*time.Hour + 12*time.Minute, "3h 12m"},
		{26*time.Hour + 4*time.Minute, "1d 2h 4m"},
		{48 * time.Hour, "2d 0h 0m"},
	}
	for _, tc := range cases {
		if got := FormatUptime(now.Add(-tc.ago), now); got != tc.want {
			t.Errorf("uptime %v = %q, want %q", tc.ago, got, tc.want)
		}
	}
	if got := FormatUptime(time.Time{}, now); got != "< 1m" {
		t.Errorf("zero start = %q, want < 1m", got)
	}
}
