package sched

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"github.com/DockerDiscordControl/ddc/internal/db"
)

// Store persists tasks in bbolt. Collision checking happens at Add so two
// tasks can never target the same container in the same minute.
type Store struct {
	db  *db.DB
	loc *time.Location
	now func() time.Time
}

func NewStore(database *db.DB, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{db: database, loc: loc, now: time.Now}
}

// Add validates the task, assigns an id and persists it. Returns
// ErrTaskCollision when another task for the same container fires in the
// same minute.
func (s *Store) Add(t *Task) error {
	if err := t.Validate(); err != nil {
		return err
	}

	now := s.now()
	next := t.NextRun(now, s.loc)
	if next.IsZero() {
		return fmt.Errorf("task for %q would never run", t.Container)
	}

	existing, err := s.List()
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.Container != t.Container {
			continue
		}
		if otherNext := other.NextRun(now, s.loc); !otherNext.IsZero() && sameMinute(otherNext, next) {
			return fmt.Errorf("container %q at %s: %w", t.Container, next.Format("15:04"), ErrTaskCollision)
		}
	}

	t.ID = strconv.FormatInt(now.UnixNano(), 10)
	t.CreatedAt = now

	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(db.BucketTasks).Put([]byte(t.ID), data)
	})
}

// Delete removes a task by id.
func (s *Store) Delete(id string) error {
	return s.db.Delete(db.BucketTasks, id)
}

// List returns every task sorted by creation.
func (s *Store) List() ([]*Task, error) {
	var out []*Task
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(db.BucketTasks).ForEach(func(k, v []byte) error {
			var t Task
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("task %s: %w", k, err)
			}
			out = append(out, &t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Due returns tasks whose next run falls in the minute containing now,
// evaluated relative to a window start one minute earlier so a task due this
// minute is not pushed to its next cycle.
func (s *Store) Due(now time.Time) ([]*Task, error) {
	tasks, err := s.List()
	if err != nil {
		return nil, err
	}
	var due []*Task
	windowStart := now.Truncate(time.Minute)
	for _, t := range tasks {
		next := t.NextRun(windowStart, s.loc)
		if !next.IsZero() && sameMinute(next, now) {
			due = append(due, t)
		}
	}
	return due, nil
}
