package monitor_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rileyhilliard/myssh/internal/errors"
	"github.com/rileyhilliard/myssh/internal/exec"
	"github.com/rileyhilliard/myssh/internal/monitor"
	"github.com/rileyhilliard/myssh/internal/monitor/parsers"
	"github.com/rileyhilliard/myssh/internal/session"
	"github.com/rileyhilliard/myssh/pkg/sshutil"
	sshtest "github.com/rileyhilliard/myssh/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	statOut = `cpu  1000 0 0 1000 0 0 0 0 0 0
cpu0 500 0 0 500 0 0 0 0 0 0
cpu1 500 0 0 500 0 0 0 0 0 0
---
cpu  1100 0 0 1100 0 0 0 0 0 0
cpu0 600 0 0 500 0 0 0 0 0 0
cpu1 500 0 0 600 0 0 0 0 0 0
---
cpu MHz		: 2400.000
cpu MHz		: 2400.000
`
	meminfoOut = `MemTotal:       8000000 kB
MemFree:         500000 kB
MemAvailable:   2000000 kB
Buffers:          50000 kB
Cached:         1000000 kB
`
	dfOut = `Filesystem     Type  Size  Used Avail Use% Mounted on
/dev/sda1      ext4   20G  8.0G   11G  43% /
`
	netBefore = `Inter-|   Receive                                                |  Transmit
 face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed
    lo:  1000000   10000    0    0    0     0          0         0   1000000   10000    0    0    0     0       0          0
  eth0: 50000000  500000    0    0    0     0          0         0  25000000  250000    0    0    0     0       0          0
`
)

func linuxHost(h *sshtest.MockHost, withDF bool) {
	h.SetCommandPattern(`/proc/stat`, sshtest.CommandResponse{Stdout: statOut})
	h.SetCommandResponse("cat /proc/loadavg", sshtest.CommandResponse{Stdout: "0.50 1.00 1.50 2/100 1234\n"})
	h.SetCommandResponse("cat /proc/meminfo", sshtest.CommandResponse{Stdout: meminfoOut})
	netAfter := strings.Replace(netBefore, "50000000", "50500000", 1)
	h.SetCommandPattern(`/proc/net/dev`, sshtest.CommandResponse{Stdout: netBefore + "---\n" + netAfter})
	if withDF {
		h.SetCommandResponse("df -PTh", sshtest.CommandResponse{Stdout: dfOut})
	}
}

func setup(t *testing.T) (*monitor.Sampler, *session.Registry, *sshtest.MockHost) {
	t.Helper()
	d := sshtest.NewMockDialer()
	h := d.AddHost("db1", "admin", "secret")
	reg := session.New(session.Options{Dialer: d, BaseDelay: time.Millisecond})
	t.Cleanup(reg.Close)

	_, err := reg.Connect(context.Background(), session.Params{
		ServerID:   "db1",
		Host:       "db1",
		Username:   "admin",
		Credential: sshutil.PasswordCredential("secret"),
	})
	require.NoError(t, err)

	s := monitor.NewSampler(reg, exec.New(reg, exec.Options{}), monitor.Options{
		Battery:      parsers.Battery,
		SampleWindow: time.Second,
	})
	return s, reg, h
}

func TestSample(t *testing.T) {
	s, _, h := setup(t)
	linuxHost(h, true)

	snap, err := s.Sample(context.Background(), "db1")
	require.NoError(t, err)
	assert.Empty(t, snap.Missing)
	assert.Equal(t, monitor.PlatformLinux, snap.Platform)
	assert.False(t, snap.Timestamp.IsZero())

	require.NotNil(t, snap.CPU)
	assert.InDelta(t, 50.0, snap.CPU.UsagePercent, 0.01)
	assert.Equal(t, 2, snap.CPU.Cores)
	assert.Equal(t, []float64{100, 0}, snap.CPU.CoresUsage)
	assert.InDelta(t, 2400.0, snap.CPU.FrequencyMHz, 0.01)
	assert.Equal(t, [3]float64{0.5, 1, 1.5}, snap.CPU.LoadAverage)

	require.NotNil(t, snap.Memory)
	assert.Equal(t, int64(8000000*1024), snap.Memory.TotalBytes)

	require.Len(t, snap.Disks, 1)
	assert.Equal(t, "/", snap.Disks[0].Mount)
	assert.Equal(t, 43.0, snap.Disks[0].UsagePercent)

	require.NotNil(t, snap.Network)
	assert.Equal(t, int64(500000), snap.Network.DownloadBytesPerSec)
	assert.Equal(t, int64(0), snap.Network.UploadBytesPerSec)
}

func TestSample_MissingTool(t *testing.T) {
	s, _, h := setup(t)
	linuxHost(h, false)

	snap, err := s.Sample(context.Background(), "db1")
	require.NoError(t, err, "one missing tool never fails the sample")

	assert.NotNil(t, snap.CPU)
	assert.NotNil(t, snap.Memory)
	assert.NotNil(t, snap.Network)
	assert.Empty(t, snap.Disks)

	require.Len(t, snap.Missing, 1)
	assert.Equal(t, parsers.SourceDisk, snap.Missing[0].Source)
	assert.Equal(t, errors.ErrParseFailure, snap.Missing[0].Kind)
	assert.Contains(t, snap.Missing[0].Detail, "'df' not found")
	assert.True(t, snap.IsMissing(parsers.SourceDisk))
}

func TestSample_UnparseableOutput(t *testing.T) {
	s, _, h := setup(t)
	linuxHost(h, true)
	h.SetCommandResponse("cat /proc/meminfo", sshtest.CommandResponse{Stdout: "surprise\n"})

	snap, err := s.Sample(context.Background(), "db1")
	require.NoError(t, err)
	assert.Nil(t, snap.Memory)
	assert.True(t, snap.IsMissing(parsers.SourceMemory))
	assert.NotNil(t, snap.CPU)
}

func TestSample_NonZeroExit(t *testing.T) {
	s, _, h := setup(t)
	linuxHost(h, true)
	h.SetCommandResponse("cat /proc/loadavg", sshtest.CommandResponse{
		Stderr:   "cat: /proc/loadavg: Permission denied\n",
		ExitCode: 1,
	})

	snap, err := s.Sample(context.Background(), "db1")
	require.NoError(t, err)
	require.Len(t, snap.Missing, 1)
	assert.Contains(t, snap.Missing[0].Detail, "Permission denied")
	assert.Equal(t, [3]float64{}, snap.CPU.LoadAverage)
}

func TestSample_NotConnected(t *testing.T) {
	s, _, _ := setup(t)

	_, err := s.Sample(context.Background(), "web9")
	assert.True(t, errors.IsCode(err, errors.ErrNotConnected))
}

func TestSample_TransportLostFailsWholeSample(t *testing.T) {
	s, _, h := setup(t)
	linuxHost(h, true)
	h.SetDialDelay(time.Minute)
	h.SetCommandResponse("cat /proc/meminfo", sshtest.CommandResponse{Drop: true})

	_, err := s.Sample(context.Background(), "db1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTransportLost) || errors.IsCode(err, errors.ErrCanceled),
		"got %v", err)
}

func TestSample_PlatformCachedPerConnection(t *testing.T) {
	s, reg, h := setup(t)
	linuxHost(h, true)

	unameCount := func() int {
		n := 0
		for _, c := range h.Commands() {
			if c == monitor.PlatformDetectCommand() {
				n++
			}
		}
		return n
	}

	_, err := s.Sample(context.Background(), "db1")
	require.NoError(t, err)
	_, err = s.Sample(context.Background(), "db1")
	require.NoError(t, err)
	assert.Equal(t, 1, unameCount())

	require.NoError(t, reg.Reconnect(context.Background(), "db1"))
	_, err = s.Sample(context.Background(), "db1")
	require.NoError(t, err)
	assert.Equal(t, 2, unameCount(), "a new connection may be a different machine")

	s.Forget("db1")
	_, err = s.Sample(context.Background(), "db1")
	require.NoError(t, err)
	assert.Equal(t, 3, unameCount())
}

func TestSample_Darwin(t *testing.T) {
	s, _, h := setup(t)
	h.SetCommandResponse("uname -s", sshtest.CommandResponse{Stdout: "Darwin\n"})
	h.SetCommandResponse("sysctl -n vm.loadavg", sshtest.CommandResponse{Stdout: "{ 2.00 1.50 1.00 }\n"})

	snap, err := s.Sample(context.Background(), "db1")
	require.NoError(t, err)
	assert.Equal(t, monitor.PlatformDarwin, snap.Platform)
	require.NotNil(t, snap.CPU)
	assert.Equal(t, [3]float64{2, 1.5, 1}, snap.CPU.LoadAverage)
	assert.True(t, snap.IsMissing(parsers.SourceMemory))
	assert.True(t, snap.IsMissing(parsers.SourceDisk))
}

func TestSplitSections(t *testing.T) {
	got := monitor.SplitSections("a\nb\n---\nc\n---\n")
	require.Len(t, got, 3)
	assert.Equal(t, "a\nb\n", got[0])
	assert.Equal(t, "c\n", got[1])
}

func TestSleepArg(t *testing.T) {
	assert.Equal(t, "0.5", monitor.SleepArg(500*time.Millisecond))
	assert.Equal(t, "2", monitor.SleepArg(2*time.Second))
	assert.Equal(t, "0", monitor.SleepArg(0))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 50.0, monitor.Percent(1, 2))
	assert.Equal(t, 0.0, monitor.Percent(1, 0))
	assert.Equal(t, 100.0, monitor.Percent(3, 2))
}
