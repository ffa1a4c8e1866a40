package discover

import (
	"log/slog"
	"sync"

	"github.com/llamalink/llamalink/envconfig"
)

// Strategy is the compute approach selected for this process. It is
// chosen once, at first probe, and never changes afterwards.
type Strategy int

const (
	StrategyCPU Strategy = iota
	StrategyCUDA
	StrategyMetal
)

func (s Strategy) String() string {
	switch s {
	case StrategyCUDA:
		return "cuda"
	case StrategyMetal:
		return "metal"
	default:
		return "cpu"
	}
}

// A handler enumerates the devices one backend strategy can drive.
type handler interface {
	Strategy() Strategy
	DeviceInfos() []DeviceInfo
}

var (
	probeOnce sync.Once
	active    handler
)

// Devices returns the detected devices in probe order. The first call
// selects the backend strategy for the process: the platform GPU probe
// is attempted first and its failure falls back to CPU, which always
// succeeds.
func Devices() []DeviceInfo {
	return activeHandler().DeviceInfos()
}

// ActiveStrategy reports the backend strategy chosen at first probe.
func ActiveStrategy() Strategy {
	return activeHandler().Strategy()
}

func activeHandler() handler {
	probeOnce.Do(func() {
		if envconfig.ForceCPU() {
			slog.Info("LLAMALINK_FORCE_CPU set, skipping GPU probe")
			active = &cpuHandler{}
			return
		}
		h, err := newGPUHandler()
		if err != nil {
			slog.Debug("no usable GPU, falling back to CPU", "error", err)
			active = &cpuHandler{}
			return
		}
		active = h
	})
	return active
}
