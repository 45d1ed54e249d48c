package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDarwinCPU(t *testing.T) {
	tests := []struct {
		name      string
		topOutput string
		cores     string
		wantPct   float64
		wantCores int
		wantErr   bool
	}{
		{
			name: "second sample wins",
			topOutput: `CPU usage: 3.00% user, 2.00% sys, 95.00% idle
CPU usage: 15.79% user, 10.52% sys, 73.69% idle`,
			cores:     "8\n",
			wantPct:   26.31,
			wantCores: 8,
		},
		{
			name: "full top output",
			topOutput: `Processes: 300 total, 5 running, 295 sleeping
Load Avg: 8.50, 6.25, 4.75
CPU usage: 45.00% user, 35.00% sys, 20.00% idle`,
			cores:     "10",
			wantPct:   80.0,
			wantCores: 10,
		},
		{
			name:      "missing core count",
			topOutput: "CPU usage: 2.00% user, 3.00% sys, 95.00% idle",
			cores:     "",
			wantPct:   5.0,
			wantCores: 0,
		},
		{
			name:      "empty output",
			topOutput: "",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics, err := ParseDarwinCPU(tt.topOutput, tt.cores)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, metrics)
			assert.InDelta(t, tt.wantPct, metrics.UsagePercent, 0.01)
			assert.Equal(t, tt.wantCores, metrics.Cores)
		})
	}
}

func TestParseDarwinFrequency(t *testing.T) {
	assert.InDelta(t, 2600.0, ParseDarwinFrequency("2600000000\n"), 0.001)
	assert.Zero(t, ParseDarwinFrequency(""))
}

func TestParseDarwinMemory(t *testing.T) {
	tests := []struct {
		name       string
		vmStatOut  string
		memsize    string
		wantUsed   int64
		wantTotal  int64
		wantCached int64
		wantErr    bool
	}{
		{
			name: "Apple Silicon with hw.memsize",
			vmStatOut: `Mach Virtual Memory Statistics: (page size of 16384 bytes)
Pages free:                               50000.
Pages active:                            200000.
Pages inactive:                          100000.
Pages speculative:                        10000.
Pages throttled:                              0.
Pages wired down:                        150000.
Pages purgeable:                          20000.
"Translation faults":                 500000000.
File-backed pages:                        80000.
Anonymous pages:                         180000.
Pages stored in compressor:               30000.
Pages occupied by compressor:             25000.`,
			memsize: "17179869184\n",
			// active + wired + compressor
			wantUsed:   375000 * 16384,
			wantTotal:  17179869184,
			wantCached: 80000 * 16384,
		},
		{
			name: "Intel without hw.memsize",
			vmStatOut: `Mach Virtual Memory Statistics: (page size of 4096 bytes)
Pages free:                              100000.
Pages active:                            500000.
Pages inactive:                          200000.
Pages speculative:                        50000.
Pages wired down:                        300000.
Pages purgeable:                          30000.
File-backed pages:                       100000.
Pages occupied by compressor:             50000.`,
			memsize: "",
			// Available = free + inactive + purgeable + speculative
			wantUsed:   850000 * 4096,
			wantTotal:  (850000 + 380000) * 4096,
			wantCached: 100000 * 4096,
		},
		{
			name:      "empty output",
			vmStatOut: "",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics, err := ParseDarwinMemory(tt.vmStatOut, tt.memsize)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantUsed, metrics.UsedBytes)
			assert.Equal(t, tt.wantTotal, metrics.TotalBytes)
			assert.Equal(t, tt.wantCached, metrics.CachedBytes)
			assert.Greater(t, metrics.UsagePercent, 0.0)
			assert.LessOrEqual(t, metrics.UsagePercent, 100.0)
		})
	}
}

func TestParseDarwinNetwork(t *testing.T) {
	out := `Name       Mtu   Network       Address            Ipkts Ierrs     Ibytes    Opkts Oerrs     Obytes  Coll
lo0        16384 <Link#1>                         123456     0   98765432   123456     0   98765432     0
lo0        16384 127           localhost          123456     -   98765432   123456     -   98765432     -
en0        1500  <Link#4>      a4:83:e7:12:34:56  5000000     0 6000000000  3000000     0  400000000     0
en0        1500  192.168.1     192.168.1.10       5000000     - 6000000000  3000000     -  400000000     -
utun0      1380  <Link#12>                              10     0       1000       20     0       2000     0`

	interfaces, err := ParseDarwinNetwork(out)
	require.NoError(t, err)
	require.Len(t, interfaces, 3)

	assert.Equal(t, "lo0", interfaces[0].Name)
	assert.Equal(t, int64(98765432), interfaces[0].BytesIn)

	assert.Equal(t, "en0", interfaces[1].Name)
	assert.Equal(t, int64(5000000), interfaces[1].PacketsIn)
	assert.Equal(t, int64(6000000000), interfaces[1].BytesIn)
	assert.Equal(t, int64(3000000), interfaces[1].PacketsOut)
	assert.Equal(t, int64(400000000), interfaces[1].BytesOut)

	assert.Equal(t, "utun0", interfaces[2].Name)
	assert.Equal(t, int64(2000), interfaces[2].BytesOut)

	_, err = ParseDarwinNetwork("netstat: command not found")
	assert.Error(t, err)
}
