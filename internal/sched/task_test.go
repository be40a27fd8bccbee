package sched

import (
	"errors"
	"testing"
	"time"

	"github.com/DockerDiscordControl/ddc/internal/db"
	"github.com/DockerDiscordControl/ddc/internal/docker"
)

// Friday noon UTC.
var base = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func TestNextRun(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		task Task
		want time.Time
	}{
		{
			"daily later today",
			Task{Cycle: CycleDaily, TimeOfDay: "18:30"},
			time.Date(2026, 8, 28, 18, 30, 0, 0, time.UTC),
		},
		{
			"daily already passed rolls to tomorrow",
			Task{Cycle: CycleDaily, TimeOfDay: "06:00"},
			time.Date(2026, 8, 29, 6, 0, 0, 0, time.UTC),
		},
		{
			"weekly same day later time",
			Task{Cycle: CycleWeekly, TimeOfDay: "15:00", Weekday: time.Friday},
			time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC),
		},
		{
			"weekly wraps to next week",
			Task{Cycle: CycleWeekly, TimeOfDay: "09:00", Weekday: time.Friday},
			time.Date(2026, 9, 4, 9, 0, 0, 0, time.UTC),
		},
		{
			"monthly next month",
			Task{Cycle: CycleMonthly, TimeOfDay: "03:00", Day: 15},
			time.Date(2026, 9, 15, 3, 0, 0, 0, time.UTC),
		},
		{
			"monthly day 31 skips short months",
			Task{Cycle: CycleMonthly, TimeOfDay: "03:00", Day: 31},
			time.Date(2026, 8, 31, 3, 0, 0, 0, time.UTC),
		},
		{
			"yearly passed this year",
			Task{Cycle: CycleYearly, TimeOfDay: "00:15", Month: time.January, Day: 1},
			time.Date(2027, 1, 1, 0, 15, 0, 0, time.UTC),
		},
		{
			"once upcoming",
			Task{Cycle: CycleOnce, TimeOfDay: "20:00", Date: "2026-09-01"},
			time.Date(2026, 9, 1, 20, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.task.NextRun(base, time.UTC)
			if !got.Equal(tc.want) {
				t.Errorf("NextRun = %v, want %v", got, tc.want)
			}
		})
	}

	t.Run("once in the past never runs", func(t *testing.T) {
		task := Task{Cycle: CycleOnce, TimeOfDay: "08:00", Date: "2026-01-01"}
		if got := task.NextRun(base, time.UTC); !got.IsZero() {
			t.Errorf("NextRun = %v, want zero", got)
		}
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	good := Task{Container: "web", Action: docker.ActionRestart, Cycle: CycleDaily, TimeOfDay: "04:00"}
	if err := good.Validate(); err != nil {
		t.Fatal(err)
	}

	bad := []Task{
		{Action: docker.ActionRestart, Cycle: CycleDaily, TimeOfDay: "04:00"},
		{Container: "web", Action: "explode", Cycle: CycleDaily, TimeOfDay: "04:00"},
		{Container: "web", Action: docker.ActionRestart, Cycle: "hourly", TimeOfDay: "04:00"},
		{Container: "web", Action: docker.ActionRestart, Cycle: CycleDaily, TimeOfDay: "4 am"},
		{Container: "web", Action: docker.ActionRestart, Cycle: CycleOnce, TimeOfDay: "04:00", Date: "tomorrow"},
		{Container: "web", Action: docker.ActionRestart, Cycle: CycleMonthly, TimeOfDay: "04:00", Day: 40},
	}
	for i, task := range bad {
		if err := task.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func testStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	s := NewStore(database, time.UTC)
	s.now = func() time.Time { return base }
	return s
}

func TestStoreAddListDelete(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	task := &Task{Container: "web", Action: docker.ActionRestart, Cycle: CycleDaily, TimeOfDay: "04:00"}
	if err := s.Add(task); err != nil {
		t.Fatal(err)
	}
	if task.ID == "" {
		t.Fatal("Add should assign an id")
	}

	tasks, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].Container != "web" {
		t.Fatalf("List = %+v", tasks)
	}

	if err := s.Delete(task.ID); err != nil {
		t.Fatal(err)
	}
	tasks, _ = s.List()
	if len(tasks) != 0 {
		t.Errorf("task survived delete: %+v", tasks)
	}
}

func TestStoreRejectsCollision(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	if err := s.Add(&Task{Container: "web", Action: docker.ActionStop, Cycle: CycleDaily, TimeOfDay: "04:00"}); err != nil {
		t.Fatal(err)
	}

	err := s.Add(&Task{Container: "web", Action: docker.ActionStart, Cycle: CycleDaily, TimeOfDay: "04:00"})
	if !errors.Is(err, ErrTaskCollision) {
		t.Errorf("error = %v, want ErrTaskCollision", err)
	}

	// Same minute, different container is fine.
	if err := s.Add(&Task{Container: "db", Action: docker.ActionRestart, Cycle: CycleDaily, TimeOfDay: "04:00"}); err != nil {
		t.Errorf("different container rejected: %v", err)
	}
	// Same container, different minute is fine.
	if err := s.Add(&Task{Container: "web", Action: docker.ActionStart, Cycle: CycleDaily, TimeOfDay: "04:05"}); err != nil {
		t.Errorf("different minute rejected: %v", err)
	}
}

func TestStoreDue(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	if err := s.Add(&Task{Container: "web", Action: docker.ActionRestart, Cycle: CycleDaily, TimeOfDay: "12:30"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(&Task{Container: "db", Action: docker.ActionRestart, Cycle: CycleDaily, TimeOfDay: "18:00"}); err != nil {
		t.Fatal(err)
	}

	due, err := s.Due(time.Date(2026, 8, 28, 12, 30, 5, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0].Container != "web" {
		t.Fatalf("due = %+v, want just web", due)
	}

	due, _ = s.Due(time.Date(2026, 8, 28, 12, 31, 0, 0, time.UTC))
	if len(due) != 0 {
		t.Errorf("nothing should be due at 12:31, got %+v", due)
	}
}
