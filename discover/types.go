// Package discover probes the host for compute devices usable by the
// dynamically loaded llama.cpp backends. GPU probing is best effort and
// platform specific; CPU detection always succeeds and is the universal
// fallback.
package discover

import (
	"fmt"
	"log/slog"
	"strconv"
)

type MemInfo struct {
	TotalMemory uint64 `json:"total_memory"`
	FreeMemory  uint64 `json:"free_memory"`
}

// CPUCapability is the instruction-set tier of the host CPU. The order
// matters: a host at a given tier can run any variant requiring that
// tier or a lower one.
type CPUCapability int

const (
	CPUCapabilityNone CPUCapability = iota
	CPUCapabilityAVX
	CPUCapabilityAVX2
)

func (c CPUCapability) String() string {
	switch c {
	case CPUCapabilityAVX:
		return "avx"
	case CPUCapabilityAVX2:
		return "avx2"
	default:
		return ""
	}
}

// ParseCPUCapability maps a variant tag to its required tier. Unknown
// tags map to the none tier so that unrecognized CPU builds are still
// loadable anywhere, ranked last.
func ParseCPUCapability(s string) CPUCapability {
	switch s {
	case "avx":
		return CPUCapabilityAVX
	case "avx2":
		return CPUCapabilityAVX2
	default:
		return CPUCapabilityNone
	}
}

// DeviceInfo describes one detected compute device.
type DeviceInfo struct {
	MemInfo

	// Library is the backend family the device needs: "cpu", "cuda",
	// "rocm" or "metal".
	Library string `json:"library"`

	// Capability is the detected instruction-set tier. Only meaningful
	// when Library is "cpu".
	Capability CPUCapability `json:"capability,omitempty"`

	// MinimumMemory is the amount of device memory set aside for
	// overhead independent of model allocations.
	MinimumMemory uint64 `json:"minimum_memory,omitempty"`

	// DependencyPaths are extra directories the loader should consider
	// when resolving this device's backend libraries.
	DependencyPaths []string `json:"dependency_paths,omitempty"`

	// EnvWorkarounds are environment settings the backend needs before
	// its libraries are loaded, in application order.
	EnvWorkarounds [][2]string `json:"env_workarounds,omitempty"`

	ID      string `json:"id"`
	Name    string `json:"name"`
	Compute string `json:"compute,omitempty"`

	DriverMajor int `json:"driver_major,omitempty"`
	DriverMinor int `json:"driver_minor,omitempty"`
}

func (d DeviceInfo) Driver() string {
	return strconv.Itoa(d.DriverMajor) + "." + strconv.Itoa(d.DriverMinor)
}

func (d DeviceInfo) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("library", d.Library),
		slog.String("id", d.ID),
		slog.String("name", d.Name),
		slog.Uint64("total", d.TotalMemory),
		slog.Uint64("free", d.FreeMemory),
	}
	if d.Library == "cpu" {
		attrs = append(attrs, slog.String("capability", d.Capability.String()))
	} else {
		attrs = append(attrs,
			slog.String("compute", d.Compute),
			slog.String("driver", d.Driver()),
		)
	}
	return slog.GroupValue(attrs...)
}

func (d DeviceInfo) String() string {
	if d.Library == "cpu" {
		return fmt.Sprintf("cpu(%s)", d.Capability)
	}
	return fmt.Sprintf("%s(%s %q)", d.Library, d.ID, d.Name)
}
