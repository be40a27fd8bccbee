package webpanel

import (
	"encoding/json"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/DockerDiscordControl/ddc/internal/status"
	"github.com/DockerDiscordControl/ddc/internal/ws"
)

const fleetDebounce = 200 * time.Millisecond

// fleetEntry is the per-container line of the fleet push.
type fleetEntry struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	CPU     string `json:"cpu"`
	Mem     string `json:"mem"`
	Uptime  string `json:"uptime"`
}

type fleetPayload struct {
	Seq         uint64       `json:"seq"`
	CompletedAt time.Time    `json:"completedAt"`
	Containers  []fleetEntry `json:"containers"`
}

// FleetBroadcaster pushes each completed sweep to every panel client.
// Pushes are debounced and deduplicated by payload hash, so back-to-back
// sweeps with identical state cost one broadcast, and none if nothing
// changed.
type FleetBroadcaster struct {
	srv *ws.Server

	mu       sync.Mutex
	timer    *time.Timer
	nextGen  *status.Generation
	lastHash uint64
}

func NewFleetBroadcaster(srv *ws.Server) *FleetBroadcaster {
	return &FleetBroadcaster{srv: srv}
}

// Publish schedules a broadcast of gen. Safe to call from the sweep
// goroutine.
func (b *FleetBroadcaster) Publish(gen *status.Generation) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextGen = gen
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(fleetDebounce, b.flush)
}

func (b *FleetBroadcaster) flush() {
	b.mu.Lock()
	gen := b.nextGen
	b.nextGen = nil
	b.mu.Unlock()
	if gen == nil {
		return
	}

	payload := fleetPayload{Seq: gen.Seq, CompletedAt: gen.CompletedAt}
	for _, s := range gen.Snapshots {
		payload.Containers = append(payload.Containers, fleetEntry{
			Name:    s.Name,
			Running: s.Running,
			CPU:     s.CPU,
			Mem:     s.Mem,
			Uptime:  s.Uptime,
		})
	}
	sort.Slice(payload.Containers, func(i, j int) bool {
		return payload.Containers[i].Name < payload.Containers[j].Name
	})

	data, err := json.Marshal(ws.ServerMessage[fleetPayload]{Event: "fleet", Data: payload})
	if err != nil {
		slog.Error("fleet broadcast marshal", "err", err)
		return
	}

	// Hash without Seq/CompletedAt so an unchanged fleet stays quiet.
	h := fnv.New64a()
	for _, c := range payload.Containers {
		line, _ := json.Marshal(c)
		h.Write(line)
	}
	hash := h.Sum64()

	b.mu.Lock()
	unchanged := hash == b.lastHash
	b.lastHash = hash
	b.mu.Unlock()
	if unchanged {
		return
	}

	b.srv.BroadcastBytes(data)
}
