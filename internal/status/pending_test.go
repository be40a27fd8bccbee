package status

import (
	"errors"
	"testing"
	"time"

	"github.com/DockerDiscordControl/ddc/internal/docker"
)

func TestTrackerRejectsSecondAction(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	now := time.Now()

	if err := tr.Begin("web", docker.ActionRestart, now); err != nil {
		t.Fatal(err)
	}
	err := tr.Begin("web", docker.ActionStop, now)
	if !errors.Is(err, ErrActionInProgress) {
		t.Errorf("second action error = %v, want ErrActionInProgress", err)
	}
	// Other containers are unaffected.
	if err := tr.Begin("db", docker.ActionStart, now); err != nil {
		t.Errorf("unrelated container rejected: %v", err)
	}
}

func TestTrackerReconcile(t *testing.T) {
	t.Parallel()

	now := time.Now()

	t.Run("restart resolves on running", func(t *testing.T) {
		tr := NewTracker()
		tr.Begin("web", docker.ActionRestart, now)

		// Mid-restart the container is briefly down; that must not resolve.
		tr.Reconcile("web", false, now.Add(time.Second))
		if _, ok := tr.Get("web"); !ok {
			t.Fatal("restart resolved on not-running")
		}
		tr.Reconcile("web", true, now.Add(5*time.Second))
		if _, ok := tr.Get("web"); ok {
			t.Error("restart should resolve once running")
		}
	})

	t.Run("stop resolves on not running", func(t *testing.T) {
		tr := NewTracker()
		tr.Begin("web", docker.ActionStop, now)

		tr.Reconcile("web", true, now.Add(time.Second))
		if _, ok := tr.Get("web"); !ok {
			t.Fatal("stop resolved on running")
		}
		tr.Reconcile("web", false, now.Add(5*time.Second))
		if _, ok := tr.Get("web"); ok {
			t.Error("stop should resolve once stopped")
		}
	})

	t.Run("stale observation ignored", func(t *testing.T) {
		tr := NewTracker()
		tr.Begin("web", docker.ActionStart, now)

		// Observed before the action began; the container was already
		// running then for unrelated reasons.
		tr.Reconcile("web", true, now.Add(-time.Second))
		if _, ok := tr.Get("web"); !ok {
			t.Error("pre-action observation must not resolve the action")
		}
	})
}

func TestTrackerExpire(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	now := time.Now()
	tr.Begin("web", docker.ActionStart, now)
	tr.Begin("db", docker.ActionStop, now.Add(time.Minute))

	expired := tr.Expire(now.Add(PendingTimeout + time.Second))
	if len(expired) != 1 || expired[0] != "web" {
		t.Fatalf("expired = %v, want [web]", expired)
	}
	if _, ok := tr.Get("db"); !ok {
		t.Error("db should still be pending")
	}
	// A fresh action is allowed after expiry.
	if err := tr.Begin("web", docker.ActionStart, now.Add(PendingTimeout+2*time.Second)); err != nil {
		t.Errorf("begin after expiry: %v", err)
	}
}
