package monitor

import (
	"strconv"
	"strings"
	"time"
)

// Platform represents the operating system type of a remote host.
type Platform string

const (
	// PlatformLinux indicates a Linux host.
	PlatformLinux Platform = "linux"
	// PlatformDarwin indicates a macOS host.
	PlatformDarwin Platform = "darwin"
	// PlatformUnknown indicates an unknown platform.
	PlatformUnknown Platform = "unknown"
)

// Separator splits multi-part command output.
const OutputSeparator = "---"

// PlatformDetectCommand returns the command to detect the platform type.
func PlatformDetectCommand() string {
	return "uname -s"
}

// ParsePlatform converts uname output to a Platform value.
func ParsePlatform(unameOutput string) Platform {
	switch strings.TrimSpace(unameOutput) {
	case "Linux":
		return PlatformLinux
	case "Darwin":
		return PlatformDarwin
	default:
		return PlatformUnknown
	}
}

// Source is one diagnostic command and the parser that folds its stdout into
// a snapshot. Apply runs sequentially, so it may touch any field of snap.
type Source struct {
	Name    string
	Command string
	Apply   func(snap *Snapshot, stdout string) error
}

// Battery returns the sources to run for a platform. window is the gap
// between the paired reads used for rates.
type Battery func(p Platform, window time.Duration) []Source

// SplitSections splits output on lines consisting of OutputSeparator.
func SplitSections(out string) []string {
	var sections []string
	var cur strings.Builder
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == OutputSeparator {
			sections = append(sections, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	return append(sections, cur.String())
}

// SleepArg formats d for the remote sleep command, e.g. "0.5".
func SleepArg(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return strconv.FormatFloat(d.Round(time.Millisecond).Seconds(), 'f', -1, 64)
}
