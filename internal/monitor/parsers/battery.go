// Package parsers turns the text output of remote diagnostic commands into
// monitor records, and assembles the per-platform command batteries.
package parsers

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rileyhilliard/myssh/internal/monitor"
)

// Source names, as reported in Snapshot.Missing.
const (
	SourceCPU     = "cpu"
	SourceLoad    = "load"
	SourceMemory  = "memory"
	SourceDisk    = "disk"
	SourceNetwork = "network"
)

// Battery returns the diagnostic sources for platform. Unknown platforms get
// the Linux battery; sources that don't apply fail individually.
func Battery(platform monitor.Platform, window time.Duration) []monitor.Source {
	if platform == monitor.PlatformDarwin {
		return DarwinBattery(window)
	}
	return LinuxBattery(window)
}

// LinuxBattery reads /proc and df.
func LinuxBattery(window time.Duration) []monitor.Source {
	sleep := monitor.SleepArg(window)
	return []monitor.Source{
		{
			Name: SourceCPU,
			Command: fmt.Sprintf(`grep '^cpu' /proc/stat; echo "---"; sleep %s; grep '^cpu' /proc/stat; echo "---"; grep 'cpu MHz' /proc/cpuinfo || true`,
				sleep),
			Apply: applyLinuxCPU,
		},
		{
			Name:    SourceLoad,
			Command: "cat /proc/loadavg",
			Apply:   applyLoad,
		},
		{
			Name:    SourceMemory,
			Command: "cat /proc/meminfo",
			Apply: func(snap *monitor.Snapshot, out string) error {
				m, err := ParseLinuxMemory(out)
				if err != nil {
					return err
				}
				snap.Memory = m
				return nil
			},
		},
		{
			Name:    SourceDisk,
			Command: "df -PTh",
			Apply:   applyDisk,
		},
		{
			Name:    SourceNetwork,
			Command: fmt.Sprintf(`cat /proc/net/dev; echo "---"; sleep %s; cat /proc/net/dev`, sleep),
			Apply:   applyNetwork(ParseLinuxNetwork, window),
		},
	}
}

// DarwinBattery reads top, sysctl, vm_stat, df and netstat.
func DarwinBattery(window time.Duration) []monitor.Source {
	// top only accepts whole seconds between samples.
	topDelay := int(math.Max(1, math.Ceil(window.Seconds())))
	return []monitor.Source{
		{
			Name: SourceCPU,
			Command: fmt.Sprintf(`top -l 2 -n 0 -s %d | grep '^CPU usage'; echo "---"; sysctl -n hw.ncpu; echo "---"; sysctl -n hw.cpufrequency 2>/dev/null || true`,
				topDelay),
			Apply: applyDarwinCPU,
		},
		{
			Name:    SourceLoad,
			Command: "sysctl -n vm.loadavg",
			Apply:   applyLoad,
		},
		{
			Name:    SourceMemory,
			Command: `vm_stat; echo "---"; sysctl -n hw.memsize`,
			Apply: func(snap *monitor.Snapshot, out string) error {
				sections := monitor.SplitSections(out)
				if len(sections) < 2 {
					return fmt.Errorf("expected vm_stat and hw.memsize output")
				}
				m, err := ParseDarwinMemory(sections[0], sections[1])
				if err != nil {
					return err
				}
				snap.Memory = m
				return nil
			},
		},
		{
			Name:    SourceDisk,
			Command: "df -Ph",
			Apply:   applyDisk,
		},
		{
			Name:    SourceNetwork,
			Command: fmt.Sprintf(`netstat -ib; echo "---"; sleep %s; netstat -ib`, monitor.SleepArg(window)),
			Apply:   applyNetwork(ParseDarwinNetwork, window),
		},
	}
}

func applyLinuxCPU(snap *monitor.Snapshot, out string) error {
	sections := monitor.SplitSections(out)
	if len(sections) < 2 {
		return fmt.Errorf("expected two /proc/stat readings")
	}
	cpu, err := ParseLinuxCPU(sections[0], sections[1])
	if err != nil {
		return err
	}
	if len(sections) > 2 {
		cpu.FrequencyMHz = ParseCPUInfoMHz(sections[2])
	}
	mergeCPU(snap, cpu)
	return nil
}

func applyDarwinCPU(snap *monitor.Snapshot, out string) error {
	sections := monitor.SplitSections(out)
	cores := ""
	if len(sections) > 1 {
		cores = sections[1]
	}
	cpu, err := ParseDarwinCPU(sections[0], cores)
	if err != nil {
		return err
	}
	if len(sections) > 2 {
		cpu.FrequencyMHz = ParseDarwinFrequency(sections[2])
	}
	mergeCPU(snap, cpu)
	return nil
}

// mergeCPU keeps a load average applied before the CPU source.
func mergeCPU(snap *monitor.Snapshot, cpu *monitor.CPU) {
	if snap.CPU != nil {
		cpu.LoadAverage = snap.CPU.LoadAverage
	}
	snap.CPU = cpu
}

func applyLoad(snap *monitor.Snapshot, out string) error {
	load, err := ParseLoadAverage(out)
	if err != nil {
		return err
	}
	snap.EnsureCPU().LoadAverage = load
	return nil
}

func applyDisk(snap *monitor.Snapshot, out string) error {
	disks, err := ParseDF(out)
	if err != nil {
		return err
	}
	if len(disks) == 0 {
		return fmt.Errorf("df reported no filesystems")
	}
	snap.Disks = disks
	return nil
}

func applyNetwork(parse func(string) ([]monitor.NetworkInterface, error), window time.Duration) func(*monitor.Snapshot, string) error {
	return func(snap *monitor.Snapshot, out string) error {
		sections := monitor.SplitSections(out)
		if len(sections) < 2 || strings.TrimSpace(sections[1]) == "" {
			return fmt.Errorf("expected two interface readings")
		}
		before, err := parse(sections[0])
		if err != nil {
			return err
		}
		after, err := parse(sections[1])
		if err != nil {
			return err
		}
		snap.Network = NetworkRates(before, after, window)
		return nil
	}
}
