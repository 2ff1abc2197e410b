//go:build linux

package helpers

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// TotalSystemMemoryMB returns the cgroup memory limit when one is set, else the
// physical memory from /proc/meminfo.
func TotalSystemMemoryMB() int {
	physical := meminfoTotalMB()
	if limit := cgroupLimitMB(); limit > 0 && (physical == 0 || limit < physical) {
		return limit
	}
	return physical
}

func cgroupLimitMB() int {
	raw, err := os.ReadFile("/sys/fs/cgroup/memory.max")
	if err != nil {
		return 0
	}
	value := strings.TrimSpace(string(raw))
	if value == "max" {
		return 0
	}
	bytes, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return int(bytes >> 20)
}

func meminfoTotalMB() int {
	file, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != "MemTotal:" {
			continue
		}
		kb, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0
		}
		return kb / 1024
	}
	return 0
}
