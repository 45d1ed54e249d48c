package parsers

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/rileyhilliard/myssh/internal/monitor"
)

// cpuTimes is the jiffy count of one /proc/stat cpu line.
type cpuTimes struct {
	total int64
	idle  int64
}

// usage returns busy percent between two readings.
func usage(before, after cpuTimes) float64 {
	total := after.total - before.total
	idle := after.idle - before.idle
	if total <= 0 {
		// No ticks elapsed; fall back to the cumulative figure.
		return monitor.Percent(float64(after.total-after.idle), float64(after.total))
	}
	return monitor.Percent(float64(total-idle), float64(total))
}

// parseProcStat reads the aggregate cpu line and the per-core cpuN lines.
func parseProcStat(procStat string) (cpuTimes, []cpuTimes, error) {
	var agg cpuTimes
	var cores []cpuTimes
	found := false

	scanner := bufio.NewScanner(strings.NewReader(procStat))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "cpu") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			return agg, nil, fmt.Errorf("invalid /proc/stat cpu line: %s", line)
		}

		// Fields: cpu user nice system idle iowait irq softirq steal guest guest_nice
		var t cpuTimes
		for i := 1; i < len(fields); i++ {
			val, err := strconv.ParseInt(fields[i], 10, 64)
			if err != nil {
				return agg, nil, fmt.Errorf("failed to parse cpu field %d: %w", i, err)
			}
			t.total += val

			// idle is field 4, iowait is field 5
			if i == 4 || i == 5 {
				t.idle += val
			}
		}

		if fields[0] == "cpu" {
			agg = t
			found = true
		} else {
			cores = append(cores, t)
		}
	}

	if err := scanner.Err(); err != nil {
		return agg, nil, fmt.Errorf("error scanning /proc/stat: %w", err)
	}
	if !found {
		return agg, nil, fmt.Errorf("no aggregate cpu line in /proc/stat")
	}
	return agg, cores, nil
}

// ParseLinuxCPU computes overall and per-core usage from two /proc/stat
// readings taken one sample window apart.
func ParseLinuxCPU(before, after string) (*monitor.CPU, error) {
	aggBefore, coresBefore, err := parseProcStat(before)
	if err != nil {
		return nil, err
	}
	aggAfter, coresAfter, err := parseProcStat(after)
	if err != nil {
		return nil, err
	}

	metrics := &monitor.CPU{
		UsagePercent: usage(aggBefore, aggAfter),
		Cores:        len(coresAfter),
	}
	for i, c := range coresAfter {
		var prev cpuTimes
		if i < len(coresBefore) {
			prev = coresBefore[i]
		}
		metrics.CoresUsage = append(metrics.CoresUsage, usage(prev, c))
	}
	return metrics, nil
}

// ParseCPUInfoMHz averages the "cpu MHz" lines of /proc/cpuinfo. Zero when
// the kernel doesn't report a frequency (common on ARM).
func ParseCPUInfoMHz(cpuinfo string) float64 {
	var sum float64
	var n int
	scanner := bufio.NewScanner(strings.NewReader(cpuinfo))
	for scanner.Scan() {
		key, val, ok := strings.Cut(scanner.Text(), ":")
		if !ok || strings.TrimSpace(key) != "cpu MHz" {
			continue
		}
		mhz, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			continue
		}
		sum += mhz
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// ParseLoadAverage parses /proc/loadavg ("0.50 1.00 1.50 2/100 1234") or
// sysctl vm.loadavg ("{ 0.50 1.00 1.50 }").
func ParseLoadAverage(out string) ([3]float64, error) {
	var load [3]float64
	out = strings.NewReplacer("{", " ", "}", " ", ",", " ").Replace(out)
	fields := strings.Fields(out)
	if len(fields) < 3 {
		return load, fmt.Errorf("unexpected load average output: %q", strings.TrimSpace(out))
	}
	for i := 0; i < 3; i++ {
		val, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return load, fmt.Errorf("failed to parse loadavg field %d: %w", i, err)
		}
		load[i] = val
	}
	return load, nil
}

// ParseLinuxMemory parses memory metrics from /proc/meminfo output.
func ParseLinuxMemory(procMeminfo string) (*monitor.Memory, error) {
	scanner := bufio.NewScanner(strings.NewReader(procMeminfo))

	var memTotal, memFree, memAvailable, buffers, cached int64
	foundFields := 0
	hasAvailable := false

	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}

		// Values in /proc/meminfo are in kB
		key := strings.TrimSuffix(parts[0], ":")
		val, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}
		valBytes := val * 1024

		switch key {
		case "MemTotal":
			memTotal = valBytes
			foundFields++
		case "MemFree":
			memFree = valBytes
			foundFields++
		case "MemAvailable":
			memAvailable = valBytes
			hasAvailable = true
			foundFields++
		case "Buffers":
			buffers = valBytes
			foundFields++
		case "Cached":
			cached = valBytes
			foundFields++
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning /proc/meminfo: %w", err)
	}
	if foundFields < 3 || memTotal == 0 {
		return nil, fmt.Errorf("insufficient memory info found in /proc/meminfo")
	}

	// Kernels before 3.14 have no MemAvailable.
	if !hasAvailable {
		memAvailable = memFree + buffers + cached
	}

	used := memTotal - memFree - buffers - cached
	if used < 0 {
		used = 0
	}
	return &monitor.Memory{
		TotalBytes:     memTotal,
		UsedBytes:      used,
		CachedBytes:    cached + buffers,
		AvailableBytes: memAvailable,
		UsagePercent:   monitor.Percent(float64(used), float64(memTotal)),
	}, nil
}

// ParseLinuxNetwork parses network interface counters from /proc/net/dev output.
func ParseLinuxNetwork(procNetDev string) ([]monitor.NetworkInterface, error) {
	var interfaces []monitor.NetworkInterface
	scanner := bufio.NewScanner(strings.NewReader(procNetDev))

	for scanner.Scan() {
		// Format: "  iface: bytes packets errs drop fifo frame compressed multicast | bytes packets..."
		// The two header lines have no colon before the counters.
		name, rest, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		fields := strings.Fields(rest)

		// Need at least 16 fields (8 receive + 8 transmit)
		if len(fields) < 16 {
			continue
		}

		var vals [4]int64
		for i, idx := range []int{0, 1, 8, 9} {
			v, err := strconv.ParseInt(fields[idx], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse counter %d for %s: %w", idx, name, err)
			}
			vals[i] = v
		}

		interfaces = append(interfaces, monitor.NetworkInterface{
			Name:       name,
			BytesIn:    vals[0],
			PacketsIn:  vals[1],
			BytesOut:   vals[2],
			PacketsOut: vals[3],
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning /proc/net/dev: %w", err)
	}
	if len(interfaces) == 0 {
		return nil, fmt.Errorf("no interfaces found in /proc/net/dev")
	}
	return interfaces, nil
}
