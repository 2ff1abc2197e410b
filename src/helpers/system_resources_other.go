//go:build !linux && !darwin && !windows

package helpers

// TotalSystemMemoryMB is unknown on this platform.
func TotalSystemMemoryMB() int {
	return 0
}
