package parsers

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/rileyhilliard/myssh/internal/monitor"
)

// ParseDarwinCPU parses CPU usage from `top -l 2 -n 0` output. The first
// sample top prints is measured since boot, so the last "CPU usage" line wins.
// cores is the output of `sysctl -n hw.ncpu`.
func ParseDarwinCPU(topOutput, cores string) (*monitor.CPU, error) {
	metrics := &monitor.CPU{}
	found := false

	scanner := bufio.NewScanner(strings.NewReader(topOutput))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// "CPU usage: 5.26% user, 10.52% sys, 84.21% idle"
		if strings.HasPrefix(line, "CPU usage:") {
			if pct, ok := parseDarwinCPUUsage(line); ok {
				metrics.UsagePercent = pct
				found = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning top output: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("no CPU usage line in top output")
	}

	if n, err := strconv.Atoi(strings.TrimSpace(cores)); err == nil {
		metrics.Cores = n
	}
	return metrics, nil
}

// parseDarwinCPUUsage returns 100 - idle from top's CPU usage line.
func parseDarwinCPUUsage(line string) (float64, bool) {
	for _, part := range strings.Split(line, ",") {
		part = strings.TrimSpace(part)
		if !strings.Contains(part, "idle") {
			continue
		}
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		idle, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "%"), 64)
		if err == nil {
			return monitor.Percent(100-idle, 100), true
		}
	}
	return 0, false
}

// ParseDarwinFrequency converts `sysctl -n hw.cpufrequency` (Hz) to MHz.
// Apple Silicon has no such key; the result is then zero.
func ParseDarwinFrequency(out string) float64 {
	hz, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0
	}
	return hz / 1e6
}

// ParseDarwinMemory parses `vm_stat` output. memsize is the output of
// `sysctl -n hw.memsize` and gives the real total.
func ParseDarwinMemory(vmStatOutput, memsize string) (*monitor.Memory, error) {
	scanner := bufio.NewScanner(strings.NewReader(vmStatOutput))

	// Default page size is 16384 on Apple Silicon, 4096 on Intel
	pageSize := int64(16384)
	var pagesActive, pagesWired, pagesInactive, pagesSpeculative, pagesFree int64
	var pagesCompressed, pagesPurgeable, pagesCached int64
	found := 0

	for scanner.Scan() {
		line := scanner.Text()

		// "Mach Virtual Memory Statistics: (page size of 16384 bytes)"
		if _, rest, ok := strings.Cut(line, "page size of"); ok {
			fields := strings.Fields(rest)
			if len(fields) >= 1 {
				if size, err := strconv.ParseInt(fields[0], 10, 64); err == nil {
					pageSize = size
				}
			}
			continue
		}

		// "Pages active:    123456."
		key, valStr, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimSpace(valStr), "."), 10, 64)
		if err != nil {
			continue
		}

		switch strings.TrimSpace(key) {
		case "Pages active":
			pagesActive = val
		case "Pages wired down":
			pagesWired = val
		case "Pages inactive":
			pagesInactive = val
		case "Pages speculative":
			pagesSpeculative = val
		case "Pages free":
			pagesFree = val
		case "Pages occupied by compressor":
			pagesCompressed = val
		case "Pages purgeable":
			pagesPurgeable = val
		case "File-backed pages":
			pagesCached = val
		default:
			continue
		}
		found++
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning vm_stat output: %w", err)
	}
	if found < 3 {
		return nil, fmt.Errorf("insufficient page counts in vm_stat output")
	}

	// Speculative pages are reclaimable, so they count as available.
	usedPages := pagesActive + pagesWired + pagesCompressed
	availablePages := pagesFree + pagesInactive + pagesPurgeable + pagesSpeculative

	total, err := strconv.ParseInt(strings.TrimSpace(memsize), 10, 64)
	if err != nil || total <= 0 {
		// Approximate from the page counts.
		total = (usedPages + availablePages) * pageSize
	}

	used := usedPages * pageSize
	return &monitor.Memory{
		TotalBytes:     total,
		UsedBytes:      used,
		CachedBytes:    pagesCached * pageSize,
		AvailableBytes: availablePages * pageSize,
		UsagePercent:   monitor.Percent(float64(used), float64(total)),
	}, nil
}

// ParseDarwinNetwork parses link-level interface counters from `netstat -ib`.
func ParseDarwinNetwork(netstatOutput string) ([]monitor.NetworkInterface, error) {
	var interfaces []monitor.NetworkInterface
	scanner := bufio.NewScanner(strings.NewReader(netstatOutput))

	headerSkipped := false
	seen := make(map[string]bool)

	for scanner.Scan() {
		line := scanner.Text()
		if !headerSkipped {
			if strings.HasPrefix(line, "Name") {
				headerSkipped = true
			}
			continue
		}

		// Name  Mtu   Network       Address            Ipkts Ierrs     Ibytes    Opkts Oerrs     Obytes  Coll
		// en0   1500  <Link#4>      xx:xx:xx:xx:xx:xx  12345     0   12345678    67890     0    9876543     0
		fields := strings.Fields(line)
		if len(fields) < 8 {
			continue
		}
		name := fields[0]
		if seen[name] || !strings.HasPrefix(fields[2], "<Link#") {
			// One row per address family; only the link row has totals.
			continue
		}

		// Address is absent on some link rows (lo0, utun), so count numeric
		// columns from the right: ipkts ierrs ibytes opkts oerrs obytes coll.
		var nums []int64
		for _, f := range fields[3:] {
			if v, err := strconv.ParseInt(f, 10, 64); err == nil {
				nums = append(nums, v)
			}
		}
		if len(nums) < 7 {
			continue
		}
		nums = nums[len(nums)-7:]
		seen[name] = true

		interfaces = append(interfaces, monitor.NetworkInterface{
			Name:       name,
			PacketsIn:  nums[0],
			BytesIn:    nums[2],
			PacketsOut: nums[3],
			BytesOut:   nums[5],
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning netstat output: %w", err)
	}
	if len(interfaces) == 0 {
		return nil, fmt.Errorf("no link-level interfaces in netstat output")
	}
	return interfaces, nil
}
