//go:build linux || windows

package discover

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/llamalink/llamalink/dl"
)

// nvmlHandle wraps the NVIDIA monitoring library. It contributes driver
// identification but never a device count; the driver and runtime APIs
// are authoritative for enumeration.
type nvmlHandle struct {
	lib *dl.Library

	initV2           func() int32
	shutdown         func() int32
	sysDriverVersion func(buf *byte, length uint32) int32
}

var nvmlGlobs = map[string][]string{
	"windows": {"c:\\Windows\\System32\\nvml.dll"},
	"linux": {
		"/usr/local/cuda/lib64/libnvidia-ml.so*",
		"/usr/lib/x86_64-linux-gnu/nvidia/current/libnvidia-ml.so*",
		"/usr/lib/x86_64-linux-gnu/libnvidia-ml.so*",
		"/usr/lib/wsl/lib/libnvidia-ml.so*",
		"/opt/cuda/lib64/libnvidia-ml.so*",
		"/usr/lib*/libnvidia-ml.so*",
		"/usr/lib/aarch64-linux-gnu/nvidia/current/libnvidia-ml.so*",
		"/usr/lib/aarch64-linux-gnu/libnvidia-ml.so*",
	},
}

func nvmlMgmtName() string {
	if runtime.GOOS == "windows" {
		return "nvml.dll"
	}
	return "libnvidia-ml.so*"
}

func loadNVML() (*nvmlHandle, error) {
	var err error
	for _, libPath := range findLibs(nvmlMgmtName(), nvmlGlobs[runtime.GOOS]) {
		var h *nvmlHandle
		h, err = openNVML(libPath)
		if err != nil {
			slog.Debug("unable to load NVML management library", "library", libPath, "error", err)
			continue
		}
		slog.Debug("loaded NVML management library", "library", libPath)
		return h, nil
	}
	if err == nil {
		err = fmt.Errorf("no NVML management library found")
	}
	return nil, err
}

func openNVML(libPath string) (*nvmlHandle, error) {
	lib, err := dl.Open(libPath)
	if err != nil {
		return nil, err
	}
	h := &nvmlHandle{lib: lib}
	for _, bind := range []struct {
		name string
		fptr any
	}{
		{"nvmlInit_v2", &h.initV2},
		{"nvmlShutdown", &h.shutdown},
		{"nvmlSystemGetDriverVersion", &h.sysDriverVersion},
	} {
		if err := lib.Bind(bind.name, bind.fptr); err != nil {
			lib.Close()
			return nil, err
		}
	}
	if status := h.initV2(); status != 0 {
		lib.Close()
		return nil, fmt.Errorf("nvmlInit_v2 failed: %d", status)
	}
	return h, nil
}

// driverVersion returns the driver version string NVML reports, e.g.
// "550.54.14". Empty on failure.
func (h *nvmlHandle) driverVersion() string {
	buf := make([]byte, 80)
	if status := h.sysDriverVersion(&buf[0], uint32(len(buf))); status != 0 {
		return ""
	}
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

func (h *nvmlHandle) release() {
	if h == nil {
		return
	}
	h.shutdown()
	h.lib.Close()
}
