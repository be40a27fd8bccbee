// Package render turns container state into display text. Rendering is pure:
// the same Input always produces the same Output, with no clocks, caches or
// runtime calls behind it. Timestamps shown are the fetch times carried in
// the input.
package render

import (
	"strings"
	"time"

	"github.com/DockerDiscordControl/ddc/internal/docker"
)

// BoxWidth is the inner width of a status box in characters.
const BoxWidth = 28

// Kind selects which face a container card shows.
type Kind int

const (
	// KindStatus shows cached status data.
	KindStatus Kind = iota
	// KindPending shows an in-flight action, suppressing cached status.
	KindPending
	// KindLoading shows a placeholder before the first fetch completes.
	KindLoading
	// KindError shows that status could not be determined.
	KindError
	// KindConfigError shows that the container's configuration is invalid.
	KindConfigError
)

// Input is everything a card render depends on. Expanded is the viewer's
// toggle state; DetailsAllowed is the container's policy. An expanded card
// whose policy forbids details says so instead of silently looking collapsed.
type Input struct {
	Kind           Kind
	Name           string
	Running        bool
	CPU            string
	Mem            string
	Uptime         string
	DetailsAllowed bool
	Expanded       bool
	ControlAllowed bool
	Pending        docker.Action
	FetchedAt      time.Time
	Location       *time.Location

	// Actions the viewer may trigger from this card. Empty for locations
	// without control permission.
	Actions []docker.Action
}

// Output is a rendered card: display text, an accent color for platforms
// that have one, and the actions to attach.
type Output struct {
	Kind      Kind
	Text      string
	Color     string
	Running   bool
	Actions   []docker.Action
	CanToggle bool
}

// Card renders one container box.
func Card(in Input) Output {
	var b strings.Builder
	writeHeader(&b, in.Name)

	switch in.Kind {
	case KindPending:
		b.WriteString("│ 🟡 **")
		b.WriteString(pendingLabel(in.Pending))
		b.WriteString("**\n")
	case KindLoading:
		b.WriteString("│ ⏳ **Loading...**\n")
	case KindError:
		b.WriteString("│ ⚠️ **Status unavailable**\n")
	case KindConfigError:
		b.WriteString("│ ⚠️ **Configuration error**\n")
	default:
		if in.Running {
			b.WriteString("│ 🟢 **Online**\n")
			if in.Expanded {
				if in.DetailsAllowed {
					b.WriteString("│ CPU: ")
					b.WriteString(in.CPU)
					b.WriteString("\n│ RAM: ")
					b.WriteString(in.Mem)
					b.WriteString("\n")
				} else {
					b.WriteString("│ 🔒 Details hidden\n")
				}
			}
			b.WriteString("│ Uptime: ")
			b.WriteString(in.Uptime)
			b.WriteString("\n")
		} else {
			b.WriteString("│ 🔴 **Offline**\n")
		}
	}

	writeFooter(&b)

	if in.Kind == KindStatus && !in.FetchedAt.IsZero() {
		loc := in.Location
		if loc == nil {
			loc = time.UTC
		}
		b.WriteString("-# Updated ")
		b.WriteString(in.FetchedAt.In(loc).Format("15:04:05"))
		b.WriteString("\n")
	}

	out := Output{
		Kind:    in.Kind,
		Text:    b.String(),
		Color:   cardColor(in),
		Running: in.Kind == KindStatus && in.Running,
	}
	// Buttons only make sense when an action could be accepted right now.
	// The toggle needs a running container whose policy has details to show
	// and a viewer allowed to push it.
	if in.Kind == KindStatus || in.Kind == KindError {
		out.Actions = in.Actions
		out.CanToggle = in.Kind == KindStatus && in.Running && in.DetailsAllowed && in.ControlAllowed
	}
	return out
}

func cardColor(in Input) string {
	switch in.Kind {
	case KindPending:
		return "yellow"
	case KindLoading:
		return "grey"
	case KindError, KindConfigError:
		return "orange"
	}
	if in.Running {
		return "green"
	}
	return "red"
}

func writeHeader(b *strings.Builder, name string) {
	b.WriteString("┌── ")
	b.WriteString(name)
	b.WriteString(" ")
	used := 5 + len([]rune(name)) // "┌── " plus trailing space
	for i := used; i < BoxWidth; i++ {
		b.WriteString("─")
	}
	b.WriteString("\n")
}

func writeFooter(b *strings.Builder) {
	b.WriteString("└")
	b.WriteString(strings.Repeat("─", BoxWidth-1))
	b.WriteString("\n")
}

func pendingLabel(a docker.Action) string {
	switch a {
	case docker.ActionStart:
		return "Starting..."
	case docker.ActionStop:
		return "Stopping..."
	case docker.ActionRestart:
		return "Restarting..."
	}
	return "Working..."
}
