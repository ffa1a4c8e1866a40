package discover

import (
	"golang.org/x/sys/unix"
)

// GetCPUMem reads total system memory. macOS compresses and swaps
// aggressively, so free memory is not a meaningful admission signal
// there; report the total for both, matching the Metal working-set
// convention.
func GetCPUMem() (MemInfo, error) {
	total, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return MemInfo{}, err
	}
	return MemInfo{TotalMemory: total, FreeMemory: total}, nil
}
