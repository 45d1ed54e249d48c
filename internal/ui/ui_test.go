package ui

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rileyhilliard/myssh/internal/files"
	"github.com/rileyhilliard/myssh/internal/monitor"
	"github.com/rileyhilliard/myssh/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	DisableColors()
	os.Exit(m.Run())
}

func TestTable_Render(t *testing.T) {
	tbl := NewTable("NAME", "HOST", "PORT")
	tbl.AddRow("db1", "10.0.0.5", "22")
	tbl.AddRow("warehouse", "wh.internal", "2222")

	lines := strings.Split(strings.TrimSuffix(tbl.Render(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "NAME       HOST         PORT", lines[0])
	assert.Equal(t, strings.Repeat("─", 28), lines[1])
	assert.Equal(t, "db1        10.0.0.5     22", lines[2])
	assert.Equal(t, "warehouse  wh.internal  2222", lines[3])
}

func TestTable_ShortRow(t *testing.T) {
	tbl := NewTable("A", "B")
	tbl.AddRow("only")
	assert.Contains(t, tbl.Render(), "only\n")
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab   ", padRight("ab", 5))
	assert.Equal(t, "abcdef", padRight("abcdef", 3))
	assert.Equal(t, "✓ ", padRight("✓", 2))
}

func TestUsageBar(t *testing.T) {
	tests := []struct {
		percent float64
		width   int
		want    string
	}{
		{50, 10, "[█████░░░░░]  50%"},
		{0, 4, "[░░░░]   0%"},
		{150, 4, "[████] 100%"},
		{-5, 4, "[░░░░]   0%"},
		{50, 0, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UsageBar(tt.percent, tt.width))
	}
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, "", Sparkline(nil, 10))
	assert.Equal(t, "▁▄█", Sparkline([]float64{0, 50, 100}, 10))
	assert.Equal(t, "▄█", Sparkline([]float64{0, 50, 100}, 2), "keeps the most recent values")
	assert.Equal(t, "█", Sparkline([]float64{250}, 1))
}

func TestThresholdColor(t *testing.T) {
	assert.Equal(t, ColorSuccess, thresholdColor(10))
	assert.Equal(t, ColorWarning, thresholdColor(60))
	assert.Equal(t, ColorError, thresholdColor(95))
}

func TestRenderEntries(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	out := RenderEntries([]files.Entry{
		{Name: "log", Kind: files.KindDirectory, Permissions: "rwxr-xr-x", ModifiedAt: now.Add(-2 * time.Hour)},
		{Name: "syslog", Kind: files.KindFile, Permissions: "rw-r-----", SizeBytes: 3 << 20, ModifiedAt: now.Add(-time.Minute)},
		{Name: "current", Kind: files.KindSymlink, Permissions: "rwxrwxrwx", SizeBytes: 12, ModifiedAt: now},
	}, now)

	assert.Contains(t, out, "drwxr-xr-x")
	assert.Contains(t, out, "log/")
	assert.Contains(t, out, "3.0 MiB")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "current@")
	assert.Contains(t, out, "lrwxrwxrwx")

	assert.Contains(t, RenderEntries(nil, now), "empty directory")
}

func TestRenderSnapshot(t *testing.T) {
	snap := &monitor.Snapshot{
		Timestamp: time.Now(),
		Platform:  monitor.PlatformLinux,
		CPU:       &monitor.CPU{UsagePercent: 42, Cores: 4, FrequencyMHz: 2400, LoadAverage: [3]float64{0.5, 1, 1.5}},
		Memory:    &monitor.Memory{TotalBytes: 8 << 30, UsedBytes: 2 << 30, UsagePercent: 25},
		Network:   &monitor.Network{DownloadBytesPerSec: 1 << 20},
		Missing: []monitor.SourceFailure{
			{Source: "disk", Kind: "PARSE_FAILURE", Detail: "sh: 1: df: not found\nmore"},
		},
	}

	out := RenderSnapshot(snap)
	assert.Contains(t, out, "linux")
	assert.Contains(t, out, " 42%")
	assert.Contains(t, out, "4 cores @ 2,400 MHz")
	assert.Contains(t, out, "load 0.50 1.00 1.50")
	assert.Contains(t, out, "2.0 GiB / 8.0 GiB")
	assert.Contains(t, out, "↓ 1.0 MiB/s")
	assert.Contains(t, out, "disk unavailable: sh: 1: df: not found\n")
	assert.NotContains(t, out, "Disk ")
}

func TestRenderSessions(t *testing.T) {
	now := time.Now()
	out := RenderSessions([]session.Info{
		{ServerID: "db1", Host: "10.0.0.5", Port: 22, Username: "admin", State: session.StateConnected, LastActivityAt: now},
		{ServerID: "web2", Host: "web2", Port: 2222, Username: "deploy", State: session.StateFailed, LastError: "auth failed"},
	}, now)

	assert.Contains(t, out, SymbolConnected)
	assert.Contains(t, out, "admin@10.0.0.5:22")
	assert.Contains(t, out, "failed (auth failed)")
	assert.Contains(t, RenderSessions(nil, now), "No sessions")
}

func TestRenderBatch(t *testing.T) {
	b := &files.BatchResult{Results: []files.PathResult{
		{Path: "/tmp/a", Outcome: files.Outcome{Status: files.StatusOK}},
		{Path: "/tmp/b", Outcome: files.Outcome{Status: files.StatusError, Kind: "PATH_NOT_FOUND", Detail: "no such file"}},
	}}
	out := RenderBatch(b, b.Summary("deleted"))
	assert.Contains(t, out, SymbolSuccess+" /tmp/a")
	assert.Contains(t, out, SymbolFail+" /tmp/b PATH_NOT_FOUND: no such file")
	assert.Contains(t, out, "1 of 2 deleted, 1 failed")
}
