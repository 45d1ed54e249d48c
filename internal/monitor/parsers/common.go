package parsers

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/rileyhilliard/myssh/internal/monitor"
)

// isLoopback reports interfaces excluded from throughput totals.
func isLoopback(name string) bool {
	return name == "lo" || strings.HasPrefix(name, "lo0")
}

// NetworkRates turns two interface readings taken window apart into totals
// and per-second rates. Loopback is excluded; counter resets count as zero.
func NetworkRates(before, after []monitor.NetworkInterface, window time.Duration) *monitor.Network {
	prev := make(map[string]monitor.NetworkInterface, len(before))
	for _, iface := range before {
		prev[iface.Name] = iface
	}

	n := &monitor.Network{}
	var deltaIn, deltaOut int64
	for _, iface := range after {
		if isLoopback(iface.Name) {
			continue
		}
		n.Interfaces = append(n.Interfaces, iface)
		n.DownloadTotalBytes += iface.BytesIn
		n.UploadTotalBytes += iface.BytesOut
		if p, ok := prev[iface.Name]; ok {
			if d := iface.BytesIn - p.BytesIn; d > 0 {
				deltaIn += d
			}
			if d := iface.BytesOut - p.BytesOut; d > 0 {
				deltaOut += d
			}
		}
	}

	if secs := window.Seconds(); secs > 0 {
		n.DownloadBytesPerSec = int64(float64(deltaIn) / secs)
		n.UploadBytesPerSec = int64(float64(deltaOut) / secs)
	}
	return n
}

// ParseSize converts a df -h size ("20G", "1.5T", "466Gi", "0B") to bytes.
// df's suffixes are binary multiples.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "-":
		return 0, fmt.Errorf("empty size")
	case strings.HasSuffix(s, "Bi"):
		// macOS prints zero as "0Bi".
		s = strings.TrimSuffix(s, "Bi")
	case strings.HasSuffix(s, "i"):
		// go-units wants "GiB", not "Gi".
		s += "B"
	}
	return units.RAMInBytes(s)
}

// ParseDF parses `df -PTh` (with a Type column) or `df -Ph` output.
// Mount points containing spaces are kept whole.
func ParseDF(out string) ([]monitor.Disk, error) {
	scanner := bufio.NewScanner(strings.NewReader(out))
	var disks []monitor.Disk
	headerSeen := false
	hasType := false

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if !headerSeen {
			if fields[0] != "Filesystem" {
				return nil, fmt.Errorf("unexpected df header: %q", scanner.Text())
			}
			headerSeen = true
			hasType = len(fields) > 1 && fields[1] == "Type"
			continue
		}

		// device [type] size used avail capacity mount...
		want := 6
		if hasType {
			want = 7
		}
		if len(fields) < want {
			continue
		}

		d := monitor.Disk{Filesystem: fields[0]}
		i := 1
		if hasType {
			d.Filesystem = fields[1]
			i = 2
		}

		var err error
		if d.TotalBytes, err = ParseSize(fields[i]); err != nil {
			return nil, fmt.Errorf("disk %s: size %q: %w", fields[0], fields[i], err)
		}
		if d.UsedBytes, err = ParseSize(fields[i+1]); err != nil {
			return nil, fmt.Errorf("disk %s: used %q: %w", fields[0], fields[i+1], err)
		}
		if d.AvailableBytes, err = ParseSize(fields[i+2]); err != nil {
			return nil, fmt.Errorf("disk %s: avail %q: %w", fields[0], fields[i+2], err)
		}
		pct, err := strconv.ParseFloat(strings.TrimSuffix(fields[i+3], "%"), 64)
		if err != nil {
			pct = monitor.Percent(float64(d.UsedBytes), float64(d.TotalBytes))
		}
		d.UsagePercent = pct
		d.Mount = strings.Join(fields[i+4:], " ")

		// Pseudo filesystems report zero size.
		if d.TotalBytes == 0 {
			continue
		}
		disks = append(disks, d)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning df output: %w", err)
	}
	if !headerSeen {
		return nil, fmt.Errorf("empty df output")
	}
	return disks, nil
}
