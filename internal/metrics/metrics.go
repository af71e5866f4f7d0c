// Package metrics collects the capability snapshot reported on each sync.
package metrics

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"syscall"
)

// Snapshot is the capability report sent to the coordination service.
type Snapshot struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float64 `json:"memoryPercent"`
	DiskFreeGB    float64 `json:"diskFreeGb"`
	DownloadMbps  float64 `json:"downloadMbps"`
	UploadMbps    float64 `json:"uploadMbps"`
}

// Provider returns the current capability metrics. Collection failures
// degrade to zero values; they never fail the sync loop.
type Provider func() Snapshot

// NewHostProvider builds the default Provider: CPU and memory from
// /proc, disk free space from diskPath, and network throughput from the
// speed-test collaborator's result file (two whitespace-separated
// numbers, download and upload in Mbps).
func NewHostProvider(speedFile, diskPath string) Provider {
	return func() Snapshot {
		down, up := readThroughput(speedFile)
		return Snapshot{
			CPUPercent:    cpuUtilizationPercent(),
			MemoryPercent: memoryUtilizationPercent(),
			DiskFreeGB:    diskFreeGB(diskPath),
			DownloadMbps:  down,
			UploadMbps:    up,
		}
	}
}

func readThroughput(path string) (down, up float64) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0, 0
	}
	d, errD := strconv.ParseFloat(fields[0], 64)
	u, errU := strconv.ParseFloat(fields[1], 64)
	if errD != nil || errU != nil || d < 0 || u < 0 {
		return 0, 0
	}
	return d, u
}

func cpuUtilizationPercent() float64 {
	// Linux loadavg-based estimate normalized by CPU cores.
	b, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0
	}
	parts := strings.Fields(string(b))
	if len(parts) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0
	}
	cpus := float64(runtime.NumCPU())
	if cpus <= 0 {
		cpus = 1
	}
	return clampPercent((v / cpus) * 100.0)
}

func memoryUtilizationPercent() float64 {
	b, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0
	}
	var totalKB, availKB float64
	for _, line := range strings.Split(string(b), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			totalKB, _ = strconv.ParseFloat(fields[1], 64)
		case "MemAvailable:":
			availKB, _ = strconv.ParseFloat(fields[1], 64)
		}
	}
	if totalKB <= 0 || availKB < 0 {
		return 0
	}
	return clampPercent(((totalKB - availKB) / totalKB) * 100.0)
}

func diskFreeGB(path string) float64 {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0
	}
	free := float64(st.Bavail) * float64(st.Bsize)
	return free / (1 << 30)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
