package discover

import (
	"log/slog"

	"github.com/klauspost/cpuid/v2"
)

type cpuHandler struct{}

func (*cpuHandler) Strategy() Strategy { return StrategyCPU }

func (*cpuHandler) DeviceInfos() []DeviceInfo {
	mem, err := GetCPUMem()
	if err != nil {
		slog.Warn("error looking up system memory", "error", err)
	}
	cpu := DeviceInfo{
		MemInfo:    mem,
		Library:    "cpu",
		Capability: cpuCapability(),
		ID:         "0",
		Name:       cpuid.CPU.BrandName,
	}
	slog.Debug("detected CPU", "device", cpu)
	return []DeviceInfo{cpu}
}

// cpuCapability returns the highest instruction-set tier the host
// supports. Non-x86 hosts report the none tier and run the plain cpu
// build.
func cpuCapability() CPUCapability {
	switch {
	case cpuid.CPU.Supports(cpuid.AVX2):
		return CPUCapabilityAVX2
	case cpuid.CPU.Supports(cpuid.AVX):
		return CPUCapabilityAVX
	default:
		return CPUCapabilityNone
	}
}
