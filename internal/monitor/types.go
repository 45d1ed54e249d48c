package monitor

import "time"

// Snapshot is one point-in-time sample of a remote host. A nil sub-record
// (or empty Disks) with a matching Missing entry means that source was
// unavailable for this sample.
type Snapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	Platform  Platform        `json:"platform"`
	CPU       *CPU            `json:"cpu"`
	Memory    *Memory         `json:"memory"`
	Disks     []Disk          `json:"disk"`
	Network   *Network        `json:"network"`
	Missing   []SourceFailure `json:"missing,omitempty"`
}

// CPU contains processor usage over the sample window.
type CPU struct {
	UsagePercent float64    `json:"usage"`
	Cores        int        `json:"cores"`
	FrequencyMHz float64    `json:"frequency"`
	LoadAverage  [3]float64 `json:"load_average"`
	CoresUsage   []float64  `json:"cores_usage"`
}

// Memory contains RAM usage in bytes.
type Memory struct {
	TotalBytes     int64   `json:"total"`
	UsedBytes      int64   `json:"used"`
	CachedBytes    int64   `json:"cached"`
	AvailableBytes int64   `json:"available"`
	UsagePercent   float64 `json:"usage"`
}

// Disk is one mounted filesystem.
type Disk struct {
	Mount          string  `json:"mount"`
	Filesystem     string  `json:"filesystem"`
	TotalBytes     int64   `json:"total"`
	UsedBytes      int64   `json:"used"`
	AvailableBytes int64   `json:"available"`
	UsagePercent   float64 `json:"usage"`
}

// Network aggregates every non-loopback interface.
type Network struct {
	DownloadBytesPerSec int64              `json:"download"`
	UploadBytesPerSec   int64              `json:"upload"`
	DownloadTotalBytes  int64              `json:"download_total"`
	UploadTotalBytes    int64              `json:"upload_total"`
	Interfaces          []NetworkInterface `json:"interfaces,omitempty"`
}

// NetworkInterface contains cumulative counters for a single interface.
type NetworkInterface struct {
	Name       string `json:"name"`
	BytesIn    int64  `json:"bytes_in"`
	BytesOut   int64  `json:"bytes_out"`
	PacketsIn  int64  `json:"packets_in"`
	PacketsOut int64  `json:"packets_out"`
}

// SourceFailure records a diagnostic source that produced no data.
type SourceFailure struct {
	Source string `json:"source"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// EnsureCPU returns snap.CPU, allocating it first if needed. Sources that
// each contribute part of the CPU record share it this way.
func (s *Snapshot) EnsureCPU() *CPU {
	if s.CPU == nil {
		s.CPU = &CPU{}
	}
	return s.CPU
}

// IsMissing reports whether source failed in this snapshot.
func (s *Snapshot) IsMissing(source string) bool {
	for _, m := range s.Missing {
		if m.Source == source {
			return true
		}
	}
	return false
}

// Percent returns part/total*100 clamped to [0, 100]; zero when total is zero.
func Percent(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	p := part / total * 100
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
