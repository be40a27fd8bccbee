// Package status owns the container status cache, the pending-action tracker
// and the periodic refresh loop that feeds both.
package status

import (
	"strconv"
	"time"
)

// Snapshot is one fetched observation of a container. CPU, Mem and Uptime are
// pre-formatted for display; DetailsAllowed gates whether they may be shown
// at all. FetchedAt is the origin timestamp taken when the fetch started and
// decides which of two competing writes wins.
type Snapshot struct {
	Name           string
	Running        bool
	NotFound       bool
	CPU            string
	Mem            string
	Uptime         string
	DetailsAllowed bool
	FetchedAt      time.Time
}

// FormatUptime renders the time since start as "3d 4h 12m". Sub-minute
// uptimes come out as "< 1m".
func FormatUptime(startedAt, now time.Time) string {
	if startedAt.IsZero() || !now.After(startedAt) {
		return "< 1m"
	}
	d := now.Sub(startedAt)
	if d < time.Minute {
		return "< 1m"
	}

	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int(d / time.Minute)

	out := make([]byte, 0, 12)
	if days > 0 {
		out = strconv.AppendInt(out, int64(days), 10)
		out = append(out, 'd', ' ')
	}
	if days > 0 || hours > 0 {
		out = strconv.AppendInt(out, int64(hours), 10)
		out = append(out, 'h', ' ')
	}
	out = strconv.AppendInt(out, int64(minutes), 10)
	out = append(out, 'm')
	return string(out)
}
