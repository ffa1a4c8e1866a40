package discover

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

func GetCPUMem() (MemInfo, error) {
	var status windows.MemoryStatusEx
	status.Length = uint32(unsafe.Sizeof(status))
	if err := windows.GlobalMemoryStatusEx(&status); err != nil {
		return MemInfo{}, err
	}
	return MemInfo{
		TotalMemory: status.TotalPhys,
		FreeMemory:  status.AvailPhys,
	}, nil
}
