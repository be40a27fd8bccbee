// Package sched runs container actions on a schedule: one-shot or recurring
// daily, weekly, monthly or yearly at a fixed wall-clock time.
package sched

import (
	"errors"
	"fmt"
	"time"

	"github.com/DockerDiscordControl/ddc/internal/docker"
)

// Cycle is how often a task repeats.
type Cycle string

const (
	CycleOnce    Cycle = "once"
	CycleDaily   Cycle = "daily"
	CycleWeekly  Cycle = "weekly"
	CycleMonthly Cycle = "monthly"
	CycleYearly  Cycle = "yearly"
)

func (c Cycle) Valid() bool {
	switch c {
	case CycleOnce, CycleDaily, CycleWeekly, CycleMonthly, CycleYearly:
		return true
	}
	return false
}

// ErrTaskCollision reports a second task for the same container in the same
// minute.
var ErrTaskCollision = errors.New("task collides with an existing one")

// Task is one scheduled action. TimeOfDay is "15:04" wall clock in the
// configured timezone. Date is only set for once tasks ("2006-01-02");
// Weekday applies to weekly, Day to monthly and yearly, Month to yearly.
type Task struct {
	ID        string        `json:"id"`
	Container string        `json:"container"`
	Action    docker.Action `json:"action"`
	Cycle     Cycle         `json:"cycle"`
	TimeOfDay string        `json:"time_of_day"`
	Date      string        `json:"date,omitempty"`
	Weekday   time.Weekday  `json:"weekday,omitempty"`
	Day       int           `json:"day,omitempty"`
	Month     time.Month    `json:"month,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Validate checks the task's shape without touching container config.
func (t *Task) Validate() error {
	if t.Container == "" {
		return errors.New("task missing container")
	}
	if !t.Action.Valid() {
		return fmt.Errorf("invalid action %q", t.Action)
	}
	if !t.Cycle.Valid() {
		return fmt.Errorf("invalid cycle %q", t.Cycle)
	}
	if _, _, err := parseTimeOfDay(t.TimeOfDay); err != nil {
		return err
	}
	switch t.Cycle {
	case CycleOnce:
		if _, err := time.Parse("2006-01-02", t.Date); err != nil {
			return fmt.Errorf("invalid date %q", t.Date)
		}
	case CycleWeekly:
		if t.Weekday < time.Sunday || t.Weekday > time.Saturday {
			return fmt.Errorf("invalid weekday %d", t.Weekday)
		}
	case CycleMonthly:
		if t.Day < 1 || t.Day > 31 {
			return fmt.Errorf("invalid day of month %d", t.Day)
		}
	case CycleYearly:
		if t.Day < 1 || t.Day > 31 || t.Month < time.January || t.Month > time.December {
			return fmt.Errorf("invalid yearly date %d/%d", t.Month, t.Day)
		}
	}
	return nil
}

func parseTimeOfDay(s string) (hour, minute int, err error) {
	parsed, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

// NextRun returns the first execution at or after from, in loc. Once tasks
// whose moment has passed return the zero time.
func (t *Task) NextRun(from time.Time, loc *time.Location) time.Time {
	hour, minute, err := parseTimeOfDay(t.TimeOfDay)
	if err != nil {
		return time.Time{}
	}
	from = from.In(loc)

	switch t.Cycle {
	case CycleOnce:
		d, err := time.ParseInLocation("2006-01-02", t.Date, loc)
		if err != nil {
			return time.Time{}
		}
		at := time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc)
		if at.Before(from) {
			return time.Time{}
		}
		return at

	case CycleDaily:
		at := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, loc)
		if at.Before(from) {
			at = at.AddDate(0, 0, 1)
		}
		return at

	case CycleWeekly:
		at := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, loc)
		days := (int(t.Weekday) - int(at.Weekday()) + 7) % 7
		at = at.AddDate(0, 0, days)
		if at.Before(from) {
			at = at.AddDate(0, 0, 7)
		}
		return at

	case CycleMonthly:
		// Months shorter than Day are skipped rather than clamped.
		y, m := from.Year(), from.Month()
		for i := 0; i < 24; i++ {
			at := time.Date(y, m, t.Day, hour, minute, 0, 0, loc)
			if at.Day() == t.Day && !at.Before(from) {
				return at
			}
			m++
		}
		return time.Time{}

	case CycleYearly:
		for y := from.Year(); y <= from.Year()+8; y++ {
			at := time.Date(y, t.Month, t.Day, hour, minute, 0, 0, loc)
			if at.Day() == t.Day && !at.Before(from) {
				return at
			}
		}
		return time.Time{}
	}
	return time.Time{}
}

// sameMinute reports whether two times land in the same wall-clock minute.
func sameMinute(a, b time.Time) bool {
	return a.Truncate(time.Minute).Equal(b.Truncate(time.Minute))
}
