package render

import (
	"strings"
	"time"

	"github.com/DockerDiscordControl/ddc/internal/docker"
)

// OverviewLine is one container's row in the fleet overview.
type OverviewLine struct {
	Name    string
	Running bool
	Known   bool // false before the first successful fetch
	Pending docker.Action
}

// Overview renders the fleet summary box: one line per container in display
// order, with pending actions shown ahead of cached run state.
func Overview(lines []OverviewLine, generatedAt time.Time, loc *time.Location) string {
	var b strings.Builder
	writeHeader(&b, "Overview")

	for _, l := range lines {
		b.WriteString("│ ")
		switch {
		case l.Pending != "":
			b.WriteString("🟡 ")
			b.WriteString(l.Name)
			b.WriteString(" (")
			b.WriteString(strings.TrimSuffix(pendingLabel(l.Pending), "..."))
			b.WriteString(")")
		case !l.Known:
			b.WriteString("⚠️ ")
			b.WriteString(l.Name)
		case l.Running:
			b.WriteString("🟢 ")
			b.WriteString(l.Name)
		default:
			b.WriteString("🔴 ")
			b.WriteString(l.Name)
		}
		b.WriteString("\n")
	}
	if len(lines) == 0 {
		b.WriteString("│ (no containers configured)\n")
	}

	writeFooter(&b)

	if !generatedAt.IsZero() {
		if loc == nil {
			loc = time.UTC
		}
		b.WriteString("-# Updated ")
		b.WriteString(generatedAt.In(loc).Format("15:04:05"))
		b.WriteString("\n")
	}
	return b.String()
}
