package helpers

import "runtime/debug"

const minMemoryLimitMB = 256

// MemoryLimitMB returns percent of the memory available to the process, never
// below minMemoryLimitMB unless the machine has less. Zero means unknown.
func MemoryLimitMB(percent int) int {
	totalMB := TotalSystemMemoryMB()
	if totalMB == 0 || percent <= 0 {
		return 0
	}

	limit := totalMB * percent / 100
	if limit < minMemoryLimitMB {
		return min(totalMB, minMemoryLimitMB)
	}
	return limit
}

// ApplyMemoryLimit sets the runtime soft memory limit and returns it in MB.
func ApplyMemoryLimit(percent int) int {
	limit := MemoryLimitMB(percent)
	if limit > 0 {
		debug.SetMemoryLimit(int64(limit) << 20)
	}
	return limit
}
