package parsers

import (
	"testing"
	"time"

	"github.com/rileyhilliard/myssh/internal/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"0", 0, false},
		{"512", 512, false},
		{"20K", 20 * 1024, false},
		{"1.5M", 1572864, false},
		{"20G", 20 << 30, false},
		{"2T", 2 << 40, false},
		{"466Gi", 466 << 30, false},
		{"0Bi", 0, false},
		{"-", 0, true},
		{"lots", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDF_Linux(t *testing.T) {
	out := `Filesystem     Type      Size  Used Avail Use% Mounted on
/dev/sda1      ext4       20G  8.0G   11G  43% /
tmpfs          tmpfs     2.0G     0  2.0G   0% /dev/shm
/dev/sdb1      xfs       1.0T  512G  512G  50% /mnt/data disk
proc           proc         0     0     0    - /proc
`
	disks, err := ParseDF(out)
	require.NoError(t, err)
	require.Len(t, disks, 3, "zero-size pseudo filesystems are skipped")

	root := disks[0]
	assert.Equal(t, "/", root.Mount)
	assert.Equal(t, "ext4", root.Filesystem)
	assert.Equal(t, int64(20<<30), root.TotalBytes)
	assert.Equal(t, int64(8<<30), root.UsedBytes)
	assert.Equal(t, int64(11<<30), root.AvailableBytes)
	assert.Equal(t, 43.0, root.UsagePercent)

	assert.Equal(t, "/mnt/data disk", disks[2].Mount)
	assert.Equal(t, "xfs", disks[2].Filesystem)
}

func TestParseDF_Darwin(t *testing.T) {
	out := `Filesystem       Size   Used  Avail Capacity  Mounted on
/dev/disk3s1s1  460Gi   10Gi  300Gi     4%    /
devfs          199Ki  199Ki    0Bi   100%    /dev
`
	disks, err := ParseDF(out)
	require.NoError(t, err)
	require.Len(t, disks, 2)
	assert.Equal(t, "/dev/disk3s1s1", disks[0].Filesystem)
	assert.Equal(t, int64(460<<30), disks[0].TotalBytes)
	assert.Equal(t, 4.0, disks[0].UsagePercent)
	assert.Equal(t, int64(0), disks[1].AvailableBytes)
}

func TestParseDF_Errors(t *testing.T) {
	_, err := ParseDF("")
	assert.Error(t, err)

	_, err = ParseDF("sh: 1: df: not found\n")
	assert.Error(t, err)
}

func TestNetworkRates(t *testing.T) {
	before := []monitor.NetworkInterface{
		{Name: "lo", BytesIn: 1000, BytesOut: 1000},
		{Name: "eth0", BytesIn: 10000, BytesOut: 5000},
		{Name: "eth1", BytesIn: 900, BytesOut: 900},
	}
	after := []monitor.NetworkInterface{
		{Name: "lo", BytesIn: 9000, BytesOut: 9000},
		{Name: "eth0", BytesIn: 11000, BytesOut: 5500},
		// Counter reset.
		{Name: "eth1", BytesIn: 100, BytesOut: 100},
		// Appeared between readings.
		{Name: "wg0", BytesIn: 50, BytesOut: 50},
	}

	n := NetworkRates(before, after, 500*time.Millisecond)
	assert.Equal(t, int64(2000), n.DownloadBytesPerSec)
	assert.Equal(t, int64(1000), n.UploadBytesPerSec)
	assert.Equal(t, int64(11000+100+50), n.DownloadTotalBytes)
	assert.Equal(t, int64(5500+100+50), n.UploadTotalBytes)
	assert.Len(t, n.Interfaces, 3, "loopback excluded")

	zero := NetworkRates(before, after, 0)
	assert.Zero(t, zero.DownloadBytesPerSec)
}
