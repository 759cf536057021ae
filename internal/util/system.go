package util

import (
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"
)

var (
	parallelismOnce sync.Once
	parallelism     int
)

// AvailableParallelism returns the number of logical CPUs usable by child
// processes, never less than 1. The value is probed once per process.
func AvailableParallelism() int {
	parallelismOnce.Do(func() {
		parallelism = LogicalCores()
	})
	return parallelism
}

// LogicalCores returns the number of logical CPU cores (includes hyperthreads).
// gopsutil reads the platform topology; runtime.NumCPU is the fallback.
func LogicalCores() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return max(runtime.NumCPU(), 1)
}

// PhysicalCores returns the number of physical CPU cores, falling back to
// the logical count when the topology is unavailable.
func PhysicalCores() int {
	if n, err := cpu.Counts(false); err == nil && n > 0 {
		return n
	}
	return LogicalCores()
}
