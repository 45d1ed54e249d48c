package parsers

import (
	"strings"
	"testing"
	"time"

	"github.com/rileyhilliard/myssh/internal/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func source(t *testing.T, sources []monitor.Source, name string) monitor.Source {
	t.Helper()
	for _, s := range sources {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("no %s source", name)
	return monitor.Source{}
}

func TestBattery_Selection(t *testing.T) {
	window := 500 * time.Millisecond

	linux := Battery(monitor.PlatformLinux, window)
	unknown := Battery(monitor.PlatformUnknown, window)
	darwin := Battery(monitor.PlatformDarwin, window)

	var names []string
	for _, s := range linux {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{SourceCPU, SourceLoad, SourceMemory, SourceDisk, SourceNetwork}, names)
	assert.Equal(t, len(linux), len(unknown))
	assert.Equal(t, linux[0].Command, unknown[0].Command)

	assert.Contains(t, source(t, linux, SourceCPU).Command, "sleep 0.5")
	assert.Contains(t, source(t, linux, SourceDisk).Command, "df -PTh")
	assert.Contains(t, source(t, darwin, SourceCPU).Command, "top -l 2")
	assert.Contains(t, source(t, darwin, SourceCPU).Command, "-s 1")
	assert.Contains(t, source(t, darwin, SourceMemory).Command, "vm_stat")
}

func TestLinuxBattery_Apply(t *testing.T) {
	sources := LinuxBattery(time.Second)
	snap := &monitor.Snapshot{}

	require.NoError(t, source(t, sources, SourceCPU).Apply(snap, `cpu  100 0 0 100 0 0 0 0 0 0
cpu0 100 0 0 100 0 0 0 0 0 0
---
cpu  150 0 0 150 0 0 0 0 0 0
cpu0 150 0 0 150 0 0 0 0 0 0
---
cpu MHz		: 3000.000
`))
	require.NoError(t, source(t, sources, SourceLoad).Apply(snap, "0.10 0.20 0.30 1/100 42\n"))
	require.NotNil(t, snap.CPU)
	assert.InDelta(t, 50.0, snap.CPU.UsagePercent, 0.01)
	assert.Equal(t, 1, snap.CPU.Cores)
	assert.InDelta(t, 3000.0, snap.CPU.FrequencyMHz, 0.01)
	assert.Equal(t, [3]float64{0.1, 0.2, 0.3}, snap.CPU.LoadAverage)

	err := source(t, sources, SourceNetwork).Apply(snap, procNetDev+"\n---\n"+strings.Replace(procNetDev, "50000000", "50100000", 1))
	require.NoError(t, err)
	require.NotNil(t, snap.Network)
	assert.Equal(t, int64(100000), snap.Network.DownloadBytesPerSec)
	assert.Equal(t, int64(50100000+30000000), snap.Network.DownloadTotalBytes)

	assert.Error(t, source(t, sources, SourceNetwork).Apply(snap, procNetDev))
	assert.Error(t, source(t, sources, SourceDisk).Apply(snap, "Filesystem Type Size Used Avail Use% Mounted on\n"))
}

func TestLoadBeforeCPU(t *testing.T) {
	sources := LinuxBattery(time.Second)
	snap := &monitor.Snapshot{}

	require.NoError(t, source(t, sources, SourceLoad).Apply(snap, "1.00 2.00 3.00 1/100 42\n"))
	require.NoError(t, source(t, sources, SourceCPU).Apply(snap, "cpu  1 0 0 1 0 0 0 0 0 0\n---\ncpu  2 0 0 2 0 0 0 0 0 0\n"))
	assert.Equal(t, [3]float64{1, 2, 3}, snap.CPU.LoadAverage)
}

func TestDarwinBattery_Apply(t *testing.T) {
	sources := DarwinBattery(2 * time.Second)
	snap := &monitor.Snapshot{}

	require.NoError(t, source(t, sources, SourceCPU).Apply(snap, `CPU usage: 1.00% user, 1.00% sys, 98.00% idle
CPU usage: 20.00% user, 10.00% sys, 70.00% idle
---
8
---
`))
	assert.InDelta(t, 30.0, snap.CPU.UsagePercent, 0.01)
	assert.Equal(t, 8, snap.CPU.Cores)
	assert.Zero(t, snap.CPU.FrequencyMHz)

	require.NoError(t, source(t, sources, SourceLoad).Apply(snap, "{ 1.50 1.25 1.00 }\n"))
	assert.Equal(t, [3]float64{1.5, 1.25, 1}, snap.CPU.LoadAverage)

	require.NoError(t, source(t, sources, SourceMemory).Apply(snap, `Mach Virtual Memory Statistics: (page size of 4096 bytes)
Pages free:                              100000.
Pages active:                            500000.
Pages inactive:                          200000.
Pages wired down:                        300000.
---
8589934592
`))
	assert.Equal(t, int64(8589934592), snap.Memory.TotalBytes)
	assert.Equal(t, int64(800000*4096), snap.Memory.UsedBytes)
}
