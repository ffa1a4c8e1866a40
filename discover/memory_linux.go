package discover

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// GetCPUMem reads total and available system memory. MemAvailable from
// /proc/meminfo is the kernel's estimate of allocatable memory; sysinfo
// is the fallback when it is absent (pre-3.14 kernels).
func GetCPUMem() (MemInfo, error) {
	var mem MemInfo
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return sysinfoMem()
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	for s.Scan() {
		line := s.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			mem.TotalMemory = meminfoBytes(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			mem.FreeMemory = meminfoBytes(line)
		}
		if mem.TotalMemory > 0 && mem.FreeMemory > 0 {
			break
		}
	}
	if mem.TotalMemory == 0 {
		return sysinfoMem()
	}
	return mem, nil
}

func meminfoBytes(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	kb, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return kb * 1024
}

func sysinfoMem() (MemInfo, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return MemInfo{}, err
	}
	unit := uint64(info.Unit)
	return MemInfo{
		TotalMemory: uint64(info.Totalram) * unit,
		FreeMemory:  (uint64(info.Freeram) + uint64(info.Bufferram)) * unit,
	}, nil
}
