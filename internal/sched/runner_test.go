package sched

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DockerDiscordControl/ddc/internal/docker"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (d *recordingDispatcher) DispatchScheduled(ctx context.Context, container string, action docker.Action) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, container+":"+string(action))
	return d.err
}

func TestRunnerFiresDueAndConsumesOnce(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	if err := s.Add(&Task{Container: "web", Action: docker.ActionRestart, Cycle: CycleDaily, TimeOfDay: "12:30"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(&Task{Container: "db", Action: docker.ActionStop, Cycle: CycleOnce, TimeOfDay: "12:30", Date: "2026-08-28"}); err != nil {
		t.Fatal(err)
	}

	disp := &recordingDispatcher{}
	r := NewRunner(s, disp)

	s.now = func() time.Time { return time.Date(2026, 8, 28, 12, 30, 0, 0, time.UTC) }
	r.fireDue(context.Background())

	if len(disp.calls) != 2 {
		t.Fatalf("calls = %v, want both tasks fired", disp.calls)
	}

	// The one-shot is gone, the daily task remains.
	tasks, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].Cycle != CycleDaily {
		t.Errorf("remaining tasks = %+v, want only the daily one", tasks)
	}
}
