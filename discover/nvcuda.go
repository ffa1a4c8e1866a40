//go:build linux || windows

package discover

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/llamalink/llamalink/dl"
)

// CUDA driver API status codes the probe cares about.
const (
	cudaSuccess                   = 0
	cudaErrorNoDevice             = 100
	cudaErrorInsufficientDriver   = 803
	cudaErrorSystemDriverMismatch = 802
)

// nvcudaHandle wraps the CUDA driver API (nvcuda.dll / libcuda.so).
type nvcudaHandle struct {
	lib *dl.Library

	init             func(flags uint32) int32
	driverGetVersion func(version *int32) int32
	deviceGetCount   func(count *int32) int32
	deviceGet        func(dev *int32, ordinal int32) int32
	deviceGetName    func(buf *byte, length int32, dev int32) int32
	deviceGetAttr    func(value *int32, attr int32, dev int32) int32
	deviceTotalMem   func(bytes *uint64, dev int32) int32
	ctxCreate        func(ctx *uintptr, flags uint32, dev int32) int32
	ctxDestroy       func(ctx uintptr) int32
	memGetInfo       func(free, total *uint64) int32
}

// cuDeviceGetAttribute selectors.
const (
	cuDevAttrComputeCapabilityMajor = 75
	cuDevAttrComputeCapabilityMinor = 76
)

var nvcudaGlobs = map[string][]string{
	"windows": {"c:\\windows\\system*\\nvcuda.dll"},
	"linux": {
		"/usr/lib/x86_64-linux-gnu/nvidia/current/libcuda.so*",
		"/usr/lib/x86_64-linux-gnu/libcuda.so*",
		"/usr/lib/wsl/lib/libcuda.so*",
		"/usr/lib*/libcuda.so*",
		"/usr/local/cuda*/targets/*/lib/libcuda.so*",
		"/usr/lib/aarch64-linux-gnu/nvidia/current/libcuda.so*",
		"/usr/lib/aarch64-linux-gnu/libcuda.so*",
	},
}

func nvcudaMgmtName() string {
	if runtime.GOOS == "windows" {
		return "nvcuda.dll"
	}
	return "libcuda.so*"
}

// loadNVCUDA initializes the driver API and returns the device count it
// reports alongside the handle.
func loadNVCUDA() (int, *nvcudaHandle, error) {
	var err error
	for _, libPath := range findLibs(nvcudaMgmtName(), nvcudaGlobs[runtime.GOOS]) {
		var h *nvcudaHandle
		var count int
		count, h, err = openNVCUDA(libPath)
		if err != nil {
			slog.Debug("unable to load CUDA driver library", "library", libPath, "error", err)
			continue
		}
		slog.Debug("loaded CUDA driver library", "library", libPath, "devices", count)
		return count, h, nil
	}
	if err == nil {
		err = fmt.Errorf("no CUDA driver library found")
	}
	return 0, nil, err
}

func openNVCUDA(libPath string) (int, *nvcudaHandle, error) {
	lib, err := dl.Open(libPath)
	if err != nil {
		return 0, nil, err
	}
	h := &nvcudaHandle{lib: lib}
	for _, bind := range []struct {
		name string
		fptr any
	}{
		{"cuInit", &h.init},
		{"cuDriverGetVersion", &h.driverGetVersion},
		{"cuDeviceGetCount", &h.deviceGetCount},
		{"cuDeviceGet", &h.deviceGet},
		{"cuDeviceGetName", &h.deviceGetName},
		{"cuDeviceGetAttribute", &h.deviceGetAttr},
		{"cuDeviceTotalMem_v2", &h.deviceTotalMem},
		{"cuCtxCreate_v2", &h.ctxCreate},
		{"cuCtxDestroy_v2", &h.ctxDestroy},
		{"cuMemGetInfo_v2", &h.memGetInfo},
	} {
		if err := lib.Bind(bind.name, bind.fptr); err != nil {
			lib.Close()
			return 0, nil, err
		}
	}

	switch status := h.init(0); status {
	case cudaSuccess:
	case cudaErrorNoDevice:
		lib.Close()
		return 0, nil, fmt.Errorf("no nvidia devices detected by library %s", libPath)
	case cudaErrorInsufficientDriver, cudaErrorSystemDriverMismatch:
		lib.Close()
		return 0, nil, fmt.Errorf("version mismatch between driver and cuda driver library %s - reboot or driver upgrade may be required", libPath)
	default:
		lib.Close()
		return 0, nil, fmt.Errorf("cuInit failed: %d", status)
	}

	var count int32
	if status := h.deviceGetCount(&count); status != cudaSuccess {
		lib.Close()
		return 0, nil, fmt.Errorf("cuDeviceGetCount failed: %d", status)
	}
	return int(count), h, nil
}

func (h *nvcudaHandle) driverVersion() (major, minor int) {
	var v int32
	if h.driverGetVersion(&v) != cudaSuccess {
		return 0, 0
	}
	return int(v) / 1000, (int(v) % 1000) / 10
}

// bootstrap gathers identity and memory information for one device
// index. Free memory requires a context, which is created and torn down
// around the query.
func (h *nvcudaHandle) bootstrap(index int) (DeviceInfo, error) {
	var dev int32
	if status := h.deviceGet(&dev, int32(index)); status != cudaSuccess {
		return DeviceInfo{}, fmt.Errorf("cuDeviceGet(%d) failed: %d", index, status)
	}

	buf := make([]byte, 256)
	if status := h.deviceGetName(&buf[0], int32(len(buf)), dev); status != cudaSuccess {
		return DeviceInfo{}, fmt.Errorf("cuDeviceGetName(%d) failed: %d", index, status)
	}
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}

	var major, minor int32
	if status := h.deviceGetAttr(&major, cuDevAttrComputeCapabilityMajor, dev); status != cudaSuccess {
		return DeviceInfo{}, fmt.Errorf("compute capability query(%d) failed: %d", index, status)
	}
	if status := h.deviceGetAttr(&minor, cuDevAttrComputeCapabilityMinor, dev); status != cudaSuccess {
		return DeviceInfo{}, fmt.Errorf("compute capability query(%d) failed: %d", index, status)
	}

	var total uint64
	if status := h.deviceTotalMem(&total, dev); status != cudaSuccess {
		return DeviceInfo{}, fmt.Errorf("cuDeviceTotalMem(%d) failed: %d", index, status)
	}

	var ctx uintptr
	if status := h.ctxCreate(&ctx, 0, dev); status != cudaSuccess {
		return DeviceInfo{}, fmt.Errorf("cuCtxCreate(%d) failed: %d", index, status)
	}
	var free, ctxTotal uint64
	status := h.memGetInfo(&free, &ctxTotal)
	h.ctxDestroy(ctx)
	if status != cudaSuccess {
		return DeviceInfo{}, fmt.Errorf("cuMemGetInfo(%d) failed: %d", index, status)
	}

	driverMajor, driverMinor := h.driverVersion()
	return DeviceInfo{
		MemInfo: MemInfo{TotalMemory: total, FreeMemory: free},
		Library: "cuda",
		ID:      fmt.Sprintf("%d", index),
		Name:    string(buf[:n]),
		Compute: fmt.Sprintf("%d.%d", major, minor),

		DriverMajor: driverMajor,
		DriverMinor: driverMinor,
	}, nil
}

func (h *nvcudaHandle) release() {
	if h == nil {
		return
	}
	h.lib.Close()
}
