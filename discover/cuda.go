//go:build linux || windows

package discover

import (
	"fmt"
	"log/slog"

	"github.com/llamalink/llamalink/format"
)

const cudaMinimumMemory = 457 * format.MebiByte

// GPUs older than compute capability 5.0 will not run the prebuilt
// CUDA backends.
const (
	cudaComputeMajorMin = 5
	cudaComputeMinorMin = 0
)

// cudaHandler holds whichever of the three NVIDIA sub-probes came up.
// Any of them may be nil; the strategy as a whole fails only when no
// devices were counted.
type cudaHandler struct {
	deviceCount int
	cudart      *cudartHandle
	nvcuda      *nvcudaHandle
	nvml        *nvmlHandle
}

func (*cudaHandler) Strategy() Strategy { return StrategyCUDA }

// newCUDAHandler runs the monitoring, driver-level and runtime-level
// sub-probes. Each may fail without blocking the others; the device
// count is the maximum the driver and runtime APIs report.
func newCUDAHandler() (*cudaHandler, error) {
	nvml, err := loadNVML()
	if err != nil {
		slog.Debug("NVML unavailable", "error", err)
	} else if v := nvml.driverVersion(); v != "" {
		slog.Debug("NVML reports driver", "version", v)
	}

	driverCount, nvcuda, err := loadNVCUDA()
	if err != nil {
		slog.Debug("CUDA driver API unavailable", "error", err)
	}

	runtimeCount, cudart, err := loadCUDART(nil)
	if err != nil {
		slog.Debug("CUDA runtime API unavailable", "error", err)
	}

	deviceCount := max(driverCount, runtimeCount)
	if deviceCount == 0 {
		nvml.release()
		nvcuda.release()
		cudart.release()
		return nil, fmt.Errorf("no CUDA devices detected")
	}
	return &cudaHandler{
		deviceCount: deviceCount,
		cudart:      cudart,
		nvcuda:      nvcuda,
		nvml:        nvml,
	}, nil
}

func (h *cudaHandler) DeviceInfos() []DeviceInfo {
	var devices []DeviceInfo
	for i := 0; i < h.deviceCount; i++ {
		var info DeviceInfo
		var err error
		switch {
		case h.cudart != nil:
			info, err = h.cudart.bootstrap(i)
			// The runtime API has no name or driver query; backfill
			// from the driver API when it is up.
			if err == nil && h.nvcuda != nil {
				if driverInfo, derr := h.nvcuda.bootstrap(i); derr == nil {
					info.Name = driverInfo.Name
					info.DriverMajor = driverInfo.DriverMajor
					info.DriverMinor = driverInfo.DriverMinor
				}
			}
		case h.nvcuda != nil:
			info, err = h.nvcuda.bootstrap(i)
		default:
			err = fmt.Errorf("no CUDA bootstrap API available")
		}
		if err != nil {
			slog.Debug("skipping CUDA device", "index", i, "error", err)
			continue
		}

		var major, minor int
		fmt.Sscanf(info.Compute, "%d.%d", &major, &minor)
		if major < cudaComputeMajorMin || (major == cudaComputeMajorMin && minor < cudaComputeMinorMin) {
			slog.Info("CUDA device too old", "index", i, "name", info.Name, "compute", info.Compute)
			continue
		}

		info.MinimumMemory = cudaMinimumMemory
		slog.Debug("detected CUDA device", "device", info,
			"total", format.HumanBytes2(info.TotalMemory),
			"free", format.HumanBytes2(info.FreeMemory))
		devices = append(devices, info)
	}
	return devices
}
