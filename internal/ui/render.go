package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rileyhilliard/myssh/internal/files"
	"github.com/rileyhilliard/myssh/internal/monitor"
	"github.com/rileyhilliard/myssh/internal/session"
)

// barWidth is the cell width of usage bars in snapshot output.
const barWidth = 20

// RenderEntries renders a directory listing like `ls -l`, with human sizes
// and modification times relative to now.
func RenderEntries(entries []files.Entry, now time.Time) string {
	if len(entries) == 0 {
		return mutedStyle.Render("(empty directory)") + "\n"
	}
	t := NewTable("MODE", "SIZE", "MODIFIED", "NAME")
	for _, e := range entries {
		name := e.Name
		size := humanize.IBytes(uint64(max(e.SizeBytes, 0)))
		switch e.Kind {
		case files.KindDirectory:
			name = dirStyle.Render(e.Name + "/")
			size = mutedStyle.Render("-")
		case files.KindSymlink:
			name = linkStyle.Render(e.Name + "@")
		}
		t.AddRow(
			mutedStyle.Render(kindChar(e.Kind)+e.Permissions),
			size,
			humanize.RelTime(e.ModifiedAt, now, "ago", "from now"),
			name,
		)
	}
	return t.Render()
}

func kindChar(k files.Kind) string {
	switch k {
	case files.KindDirectory:
		return "d"
	case files.KindSymlink:
		return "l"
	default:
		return "-"
	}
}

// RenderSnapshot renders a monitor sample. Sources that produced no data are
// listed at the end instead of being shown as zero.
func RenderSnapshot(s *monitor.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n\n", headerStyle.Render(string(s.Platform)),
		mutedStyle.Render(s.Timestamp.Local().Format(time.DateTime)))

	if c := s.CPU; c != nil {
		fmt.Fprintf(&sb, "%-8s %s  %d cores", "CPU", UsageBar(c.UsagePercent, barWidth), c.Cores)
		if c.FrequencyMHz > 0 {
			fmt.Fprintf(&sb, " @ %s MHz", humanize.CommafWithDigits(c.FrequencyMHz, 0))
		}
		fmt.Fprintf(&sb, "  load %.2f %.2f %.2f\n", c.LoadAverage[0], c.LoadAverage[1], c.LoadAverage[2])
	}
	if m := s.Memory; m != nil {
		fmt.Fprintf(&sb, "%-8s %s  %s / %s\n", "Memory", UsageBar(m.UsagePercent, barWidth),
			humanize.IBytes(uint64(m.UsedBytes)), humanize.IBytes(uint64(m.TotalBytes)))
	}
	for _, d := range s.Disks {
		fmt.Fprintf(&sb, "%-8s %s  %s / %s  %s\n", "Disk", UsageBar(d.UsagePercent, barWidth),
			humanize.IBytes(uint64(d.UsedBytes)), humanize.IBytes(uint64(d.TotalBytes)),
			mutedStyle.Render(d.Mount))
	}
	if n := s.Network; n != nil {
		fmt.Fprintf(&sb, "%-8s ↓ %s/s  ↑ %s/s  %s\n", "Network",
			humanize.IBytes(uint64(n.DownloadBytesPerSec)), humanize.IBytes(uint64(n.UploadBytesPerSec)),
			mutedStyle.Render(fmt.Sprintf("(%s in, %s out)",
				humanize.IBytes(uint64(n.DownloadTotalBytes)), humanize.IBytes(uint64(n.UploadTotalBytes)))))
	}

	if len(s.Missing) > 0 {
		sb.WriteString("\n")
		for _, m := range s.Missing {
			fmt.Fprintf(&sb, "%s %s unavailable: %s\n", warningStyle.Render(SymbolFail), m.Source,
				mutedStyle.Render(firstLine(m.Detail)))
		}
	}
	return sb.String()
}

// StateSymbol is the status glyph for a session state.
func StateSymbol(st session.State) string {
	switch st {
	case session.StateConnected:
		return successStyle.Render(SymbolConnected)
	case session.StateConnecting, session.StateReconnecting:
		return warningStyle.Render(SymbolProgress)
	case session.StateFailed:
		return errorStyle.Render(SymbolFail)
	default:
		return mutedStyle.Render(SymbolPending)
	}
}

// RenderSessions renders the live session table.
func RenderSessions(infos []session.Info, now time.Time) string {
	if len(infos) == 0 {
		return mutedStyle.Render("No sessions") + "\n"
	}
	t := NewTable("", "SERVER", "TARGET", "STATE", "LAST ACTIVITY")
	for _, in := range infos {
		state := in.State.String()
		if in.LastError != "" {
			state += " " + mutedStyle.Render("("+firstLine(in.LastError)+")")
		}
		t.AddRow(
			StateSymbol(in.State),
			in.ServerID,
			fmt.Sprintf("%s@%s:%d", in.Username, in.Host, in.Port),
			state,
			humanize.RelTime(in.LastActivityAt, now, "ago", "from now"),
		)
	}
	return t.Render()
}

// RenderBatch renders per-path outcomes followed by summary.
func RenderBatch(b *files.BatchResult, summary string) string {
	var sb strings.Builder
	for _, r := range b.Results {
		if r.Status == files.StatusOK {
			fmt.Fprintf(&sb, "%s %s\n", successStyle.Render(SymbolSuccess), r.Path)
			continue
		}
		fmt.Fprintf(&sb, "%s %s %s\n", errorStyle.Render(SymbolFail), r.Path,
			mutedStyle.Render(r.Kind+": "+r.Detail))
	}
	sb.WriteString(summary + "\n")
	return sb.String()
}

// Success formats a one-line confirmation.
func Success(msg string) string {
	return successStyle.Render(SymbolSuccess) + " " + msg
}

// Failure formats a one-line error.
func Failure(msg string) string {
	return errorStyle.Render(SymbolFail) + " " + msg
}

// Muted renders secondary text.
func Muted(s string) string {
	return mutedStyle.Render(s)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
