package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// restartStopTimeout is how long restart waits for a clean stop before the
// daemon kills the container.
var restartStopTimeout = 10 // seconds

// SDKGateway implements Gateway using the Docker Engine SDK.
type SDKGateway struct {
	cli *client.Client
}

// NewSDKGateway connects to the Docker daemon via the default socket
// (DOCKER_HOST or /var/run/docker.sock).
func NewSDKGateway() (*SDKGateway, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker sdk: %w", err)
	}
	return &SDKGateway{cli: cli}, nil
}

// NewSDKGatewayWithHost connects to a specific Docker host URI like
// "unix:///path/to/docker.sock".
func NewSDKGatewayWithHost(host string) (*SDKGateway, error) {
	cli, err := client.NewClientWithOpts(client.WithHost(host), client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker sdk with host: %w", err)
	}
	return &SDKGateway{cli: cli}, nil
}

func (g *SDKGateway) Inspect(ctx context.Context, name string) (InspectInfo, error) {
	raw, err := g.cli.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return InspectInfo{}, fmt.Errorf("%q: %w", name, ErrNotFound)
		}
		return InspectInfo{}, fmt.Errorf("container inspect: %w", err)
	}

	info := InspectInfo{}
	if raw.State != nil {
		info.Running = raw.State.Running
		if raw.State.StartedAt != "" {
			if t, err := time.Parse(time.RFC3339Nano, raw.State.StartedAt); err == nil {
				info.StartedAt = t
			}
		}
	}
	return info, nil
}

func (g *SDKGateway) Stats(ctx context.Context, name string) (Stats, error) {
	resp, err := g.cli.ContainerStatsOneShot(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return Stats{}, fmt.Errorf("%q: %w", name, ErrNotFound)
		}
		return Stats{}, fmt.Errorf("container stats: %w", err)
	}
	defer resp.Body.Close()

	var stats container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return Stats{}, fmt.Errorf("decode stats: %w", err)
	}

	cpuDelta := float64(stats.CPUStats.CPUUsage.TotalUsage - stats.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(stats.CPUStats.SystemUsage - stats.PreCPUStats.SystemUsage)
	cpuPerc := 0.0
	if systemDelta > 0 && cpuDelta > 0 {
		cpuPerc = (cpuDelta / systemDelta) * float64(stats.CPUStats.OnlineCPUs) * 100.0
	}

	memUsage := stats.MemoryStats.Usage - stats.MemoryStats.Stats["cache"]
	memLimit := stats.MemoryStats.Limit

	return Stats{
		CPUPerc:  strconv.FormatFloat(cpuPerc, 'f', 1, 64) + "%",
		MemUsage: formatBytesPair(memUsage, memLimit),
	}, nil
}

func (g *SDKGateway) Act(ctx context.Context, name string, action Action) error {
	var err error
	switch action {
	case ActionStart:
		err = g.cli.ContainerStart(ctx, name, container.StartOptions{})
	case ActionStop:
		err = g.cli.ContainerStop(ctx, name, container.StopOptions{})
	case ActionRestart:
		err = g.cli.ContainerRestart(ctx, name, container.StopOptions{Timeout: &restartStopTimeout})
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	if err != nil {
		if client.IsErrNotFound(err) {
			return fmt.Errorf("%q: %w", name, ErrNotFound)
		}
		return fmt.Errorf("container %s: %w", action, err)
	}
	return nil
}

func (g *SDKGateway) Close() error {
	return g.cli.Close()
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatUint(b, 10) + "B"
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + string("KMGTPE"[exp]) + "iB"
}

func formatBytesPair(a, b uint64) string {
	var sb strings.Builder
	sb.Grow(32)
	sb.WriteString(formatBytes(a))
	sb.WriteString(" / ")
	sb.WriteString(formatBytes(b))
	return sb.String()
}

// Ensure SDKGateway implements Gateway at compile time.
var _ Gateway = (*SDKGateway)(nil)
