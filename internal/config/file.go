package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Capabilities a channel can hold. "status" allows read-only status surfaces,
// "control" additionally allows action buttons and expanded details.
const (
	CapStatus  = "status"
	CapControl = "control"
)

// Defaults applied to channel entries that omit the corresponding field.
const (
	DefaultUpdateIntervalMinutes    = 5
	DefaultInactivityTimeoutMinutes = 10
	DefaultFetchTimeoutSeconds      = 6
)

// Container describes one managed container. Name is the stable display
// identity used to key every cache and tracker; DockerName is the runtime-level
// container name the gateway talks to.
type Container struct {
	Name                string   `yaml:"name"`
	DockerName          string   `yaml:"docker_name"`
	AllowedActions      []string `yaml:"allowed_actions"`
	AllowDetailedStatus *bool    `yaml:"allow_detailed_status"`
	FetchTimeoutSeconds int      `yaml:"fetch_timeout_seconds"`
}

// DetailsAllowed reports whether CPU/RAM details may be shown (default true).
func (c Container) DetailsAllowed() bool {
	return c.AllowDetailedStatus == nil || *c.AllowDetailedStatus
}

// FetchTimeout returns the per-container gateway timeout. Heavy containers
// (game servers and the like) get a larger value via config.
func (c Container) FetchTimeout() time.Duration {
	if c.FetchTimeoutSeconds > 0 {
		return time.Duration(c.FetchTimeoutSeconds) * time.Second
	}
	return DefaultFetchTimeoutSeconds * time.Second
}

// ActionAllowed reports whether the action appears in the container's
// allowed-action list.
func (c Container) ActionAllowed(action string) bool {
	for _, a := range c.AllowedActions {
		if a == action {
			return true
		}
	}
	return false
}

// Channel describes one display location (a chat channel, a panel location).
type Channel struct {
	ID                       string   `yaml:"id"`
	Permissions              []string `yaml:"permissions"`
	AutoRefresh              *bool    `yaml:"auto_refresh"`
	UpdateIntervalMinutes    int      `yaml:"update_interval_minutes"`
	RecreateOnInactivity     *bool    `yaml:"recreate_on_inactivity"`
	InactivityTimeoutMinutes int      `yaml:"inactivity_timeout_minutes"`
	PostInitial              bool     `yaml:"post_initial"`
	Overview                 bool     `yaml:"overview"`
}

// AutoRefreshEnabled defaults to true when unset.
func (ch Channel) AutoRefreshEnabled() bool {
	return ch.AutoRefresh == nil || *ch.AutoRefresh
}

// UpdateInterval returns the minimum time between bot-initiated pushes to the
// same surface in this channel.
func (ch Channel) UpdateInterval() time.Duration {
	if ch.UpdateIntervalMinutes > 0 {
		return time.Duration(ch.UpdateIntervalMinutes) * time.Minute
	}
	return DefaultUpdateIntervalMinutes * time.Minute
}

// RecreateEnabled defaults to true when unset.
func (ch Channel) RecreateEnabled() bool {
	return ch.RecreateOnInactivity == nil || *ch.RecreateOnInactivity
}

// InactivityTimeout returns how long a channel may sit idle before its
// surfaces are torn down and recreated.
func (ch Channel) InactivityTimeout() time.Duration {
	if ch.InactivityTimeoutMinutes > 0 {
		return time.Duration(ch.InactivityTimeoutMinutes) * time.Minute
	}
	return DefaultInactivityTimeoutMinutes * time.Minute
}

// Heartbeat is the optional periodic alive signal sent to a channel.
type Heartbeat struct {
	Enabled         bool   `yaml:"enabled"`
	ChannelID       string `yaml:"channel_id"`
	IntervalMinutes int    `yaml:"interval_minutes"`
}

func (h Heartbeat) Interval() time.Duration {
	if h.IntervalMinutes > 0 {
		return time.Duration(h.IntervalMinutes) * time.Minute
	}
	return time.Hour
}

// File is the on-disk YAML shape.
type File struct {
	Timezone   string      `yaml:"timezone"`
	Order      []string    `yaml:"order"`
	Containers []Container `yaml:"containers"`
	Channels   []Channel   `yaml:"channels"`
	Heartbeat  Heartbeat   `yaml:"heartbeat"`
}

// Snapshot is one immutable, resolved view of the configuration. All lookups
// during a sweep run against the same snapshot, so a mid-sweep reload can
// never produce a half-old, half-new decision.
type Snapshot struct {
	Containers []Container // in display order
	Channels   map[string]Channel
	Heartbeat  Heartbeat
	Location   *time.Location

	byName map[string]Container
}

// ContainerByName looks a container up by its display identity.
func (s *Snapshot) ContainerByName(name string) (Container, bool) {
	c, ok := s.byName[name]
	return c, ok
}

// Channel returns the channel entry for a location, with ok=false for
// locations that have no configuration at all.
func (s *Snapshot) Channel(id string) (Channel, bool) {
	ch, ok := s.Channels[id]
	return ch, ok
}

// HasPermission is the externally-supplied boolean permission predicate:
// (location, capability, config) -> bool. Unconfigured locations have no
// permissions.
func (s *Snapshot) HasPermission(channelID, capability string) bool {
	ch, ok := s.Channels[channelID]
	if !ok {
		return false
	}
	for _, p := range ch.Permissions {
		if p == capability {
			return true
		}
	}
	return false
}

// Store hands out immutable configuration snapshots and accepts reloads.
type Store struct {
	path string
	snap atomic.Pointer[Snapshot]
}

// NewStore loads the config file at path. The file must parse and contain at
// least valid container entries; later reload failures keep the old snapshot.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	snap, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	s.snap.Store(snap)
	return s, nil
}

// NewStoreFromSnapshot wraps a pre-built snapshot (used by tests and by the
// panel's config editor preview).
func NewStoreFromSnapshot(snap *Snapshot) *Store {
	s := &Store{}
	s.snap.Store(snap)
	return s
}

// Current returns the active snapshot. Never nil after a successful NewStore.
func (s *Store) Current() *Snapshot {
	return s.snap.Load()
}

// Reload re-reads the config file. On parse error the previous snapshot stays
// active and the error is returned for logging.
func (s *Store) Reload() error {
	snap, err := loadFile(s.path)
	if err != nil {
		return err
	}
	s.snap.Store(snap)
	slog.Info("config reloaded", "containers", len(snap.Containers), "channels", len(snap.Channels))
	return nil
}

func loadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return Resolve(&f)
}

// Resolve validates a parsed file and builds the immutable snapshot, applying
// the display ordering: containers named in order first, then the rest in file
// order.
func Resolve(f *File) (*Snapshot, error) {
	byName := make(map[string]Container, len(f.Containers))
	for _, c := range f.Containers {
		if c.DockerName == "" {
			return nil, fmt.Errorf("container %q: missing docker_name", c.Name)
		}
		if c.Name == "" {
			c.Name = c.DockerName
		}
		if _, dup := byName[c.Name]; dup {
			return nil, fmt.Errorf("duplicate container name %q", c.Name)
		}
		for _, a := range c.AllowedActions {
			switch a {
			case "start", "stop", "restart":
			default:
				return nil, fmt.Errorf("container %q: unknown action %q", c.Name, a)
			}
		}
		byName[c.Name] = c
	}

	ordered := make([]Container, 0, len(byName))
	seen := make(map[string]bool, len(byName))
	for _, name := range f.Order {
		if c, ok := byName[name]; ok && !seen[name] {
			ordered = append(ordered, c)
			seen[name] = true
		}
	}
	for _, c := range f.Containers {
		name := c.Name
		if name == "" {
			name = c.DockerName
		}
		if !seen[name] {
			ordered = append(ordered, byName[name])
			seen[name] = true
		}
	}

	channels := make(map[string]Channel, len(f.Channels))
	for _, ch := range f.Channels {
		if ch.ID == "" {
			return nil, fmt.Errorf("channel entry missing id")
		}
		channels[ch.ID] = ch
	}

	loc := time.UTC
	if f.Timezone != "" {
		l, err := time.LoadLocation(f.Timezone)
		if err != nil {
			slog.Warn("unknown timezone, falling back to UTC", "timezone", f.Timezone)
		} else {
			loc = l
		}
	}

	return &Snapshot{
		Containers: ordered,
		Channels:   channels,
		Heartbeat:  f.Heartbeat,
		Location:   loc,
		byName:     byName,
	}, nil
}
