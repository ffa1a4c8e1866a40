//go:build linux || windows

package discover

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/llamalink/llamalink/dl"
)

// cudartHandle wraps the CUDA runtime API, bundled alongside the
// backend variants (cudart64_*.dll / libcudart.so).
type cudartHandle struct {
	lib *dl.Library

	getDeviceCount    func(count *int32) int32
	setDevice         func(dev int32) int32
	memGetInfo        func(free, total *uint64) int32
	deviceGetAttr     func(value *int32, attr int32, dev int32) int32
	runtimeGetVersion func(version *int32) int32
	deviceReset       func() int32
}

// cudaDeviceGetAttribute selectors.
const (
	cudartDevAttrComputeCapabilityMajor = 75
	cudartDevAttrComputeCapabilityMinor = 76
)

var cudartGlobs = map[string][]string{
	"windows": {"c:\\Program Files\\NVIDIA GPU Computing Toolkit\\CUDA\\v*\\bin\\cudart64_*.dll"},
	"linux": {
		"/usr/local/cuda/lib64/libcudart.so*",
		"/usr/lib/x86_64-linux-gnu/nvidia/current/libcudart.so*",
		"/usr/lib/x86_64-linux-gnu/libcudart.so*",
		"/usr/lib/wsl/lib/libcudart.so*",
		"/opt/cuda/lib64/libcudart.so*",
		"/usr/local/cuda*/targets/aarch64-linux/lib/libcudart.so*",
		"/usr/lib/aarch64-linux-gnu/libcudart.so*",
		"/usr/local/cuda/lib*/libcudart.so*",
	},
}

func cudartMgmtName() string {
	if runtime.GOOS == "windows" {
		return "cudart64_*.dll"
	}
	return "libcudart.so*"
}

// loadCUDART initializes the runtime API and returns the device count
// it reports alongside the handle. Extra patterns let the caller prefer
// the runtime bundled with the backend variants.
func loadCUDART(extraPatterns []string) (int, *cudartHandle, error) {
	patterns := append(append([]string{}, extraPatterns...), cudartGlobs[runtime.GOOS]...)
	var err error
	for _, libPath := range findLibs(cudartMgmtName(), patterns) {
		var h *cudartHandle
		var count int
		count, h, err = openCUDART(libPath)
		if err != nil {
			slog.Debug("unable to load CUDA runtime library", "library", libPath, "error", err)
			continue
		}
		slog.Debug("loaded CUDA runtime library", "library", libPath, "devices", count)
		return count, h, nil
	}
	if err == nil {
		err = fmt.Errorf("no CUDA runtime library found")
	}
	return 0, nil, err
}

func openCUDART(libPath string) (int, *cudartHandle, error) {
	lib, err := dl.Open(libPath)
	if err != nil {
		return 0, nil, err
	}
	h := &cudartHandle{lib: lib}
	for _, bind := range []struct {
		name string
		fptr any
	}{
		{"cudaGetDeviceCount", &h.getDeviceCount},
		{"cudaSetDevice", &h.setDevice},
		{"cudaMemGetInfo", &h.memGetInfo},
		{"cudaDeviceGetAttribute", &h.deviceGetAttr},
		{"cudaRuntimeGetVersion", &h.runtimeGetVersion},
		{"cudaDeviceReset", &h.deviceReset},
	} {
		if err := lib.Bind(bind.name, bind.fptr); err != nil {
			lib.Close()
			return 0, nil, err
		}
	}

	var count int32
	if status := h.getDeviceCount(&count); status != cudaSuccess {
		lib.Close()
		return 0, nil, fmt.Errorf("cudaGetDeviceCount failed: %d", status)
	}
	return int(count), h, nil
}

// bootstrap gathers memory and compute information for one device
// index. The runtime API reports no device name; the caller fills it in
// from the driver API when available.
func (h *cudartHandle) bootstrap(index int) (DeviceInfo, error) {
	if status := h.setDevice(int32(index)); status != cudaSuccess {
		return DeviceInfo{}, fmt.Errorf("cudaSetDevice(%d) failed: %d", index, status)
	}

	var free, total uint64
	if status := h.memGetInfo(&free, &total); status != cudaSuccess {
		return DeviceInfo{}, fmt.Errorf("cudaMemGetInfo(%d) failed: %d", index, status)
	}

	var major, minor int32
	if status := h.deviceGetAttr(&major, cudartDevAttrComputeCapabilityMajor, int32(index)); status != cudaSuccess {
		return DeviceInfo{}, fmt.Errorf("compute capability query(%d) failed: %d", index, status)
	}
	if status := h.deviceGetAttr(&minor, cudartDevAttrComputeCapabilityMinor, int32(index)); status != cudaSuccess {
		return DeviceInfo{}, fmt.Errorf("compute capability query(%d) failed: %d", index, status)
	}

	return DeviceInfo{
		MemInfo: MemInfo{TotalMemory: total, FreeMemory: free},
		Library: "cuda",
		ID:      fmt.Sprintf("%d", index),
		Name:    fmt.Sprintf("CUDA device %d", index),
		Compute: fmt.Sprintf("%d.%d", major, minor),
	}, nil
}

func (h *cudartHandle) release() {
	if h == nil {
		return
	}
	h.lib.Close()
}
