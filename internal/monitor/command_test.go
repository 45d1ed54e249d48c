package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlatformDetectCommand(t *testing.T) {
	assert.Equal(t, "uname -s", PlatformDetectCommand())
}

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect Platform
	}{
		{"Linux", "Linux", PlatformLinux},
		{"Linux with newline", "Linux\n", PlatformLinux},
		{"Darwin", "Darwin", PlatformDarwin},
		{"FreeBSD", "FreeBSD", PlatformUnknown},
		{"Windows", "MINGW64_NT-10.0", PlatformUnknown},
		{"empty", "", PlatformUnknown},
		{"lowercase linux", "linux", PlatformUnknown}, // case-sensitive
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, ParsePlatform(tt.input))
		})
	}
}

func TestSplitSections_Separator(t *testing.T) {
	out := "cpu 1 2 3\n---\ncpu 4 5 6\n"
	sections := SplitSections(out)

	assert.Len(t, sections, 2)
	assert.Equal(t, "cpu 1 2 3\n", sections[0])
	assert.Contains(t, sections[1], "cpu 4 5 6")
}

func TestSnapshot_EnsureCPU(t *testing.T) {
	var snap Snapshot
	cpu := snap.EnsureCPU()
	cpu.Cores = 4

	assert.Same(t, cpu, snap.EnsureCPU(), "second call returns the same record")
	assert.Equal(t, 4, snap.CPU.Cores)
}

func TestSnapshot_IsMissing(t *testing.T) {
	snap := Snapshot{Missing: []SourceFailure{{Source: "disk", Kind: "PARSE_FAILURE"}}}

	assert.True(t, snap.IsMissing("disk"))
	assert.False(t, snap.IsMissing("memory"))
}
