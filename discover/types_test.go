package discover

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCPUCapabilityOrdering(t *testing.T) {
	assert.Less(t, CPUCapabilityNone, CPUCapabilityAVX)
	assert.Less(t, CPUCapabilityAVX, CPUCapabilityAVX2)
}

func TestParseCPUCapability(t *testing.T) {
	cases := map[string]CPUCapability{
		"avx":    CPUCapabilityAVX,
		"avx2":   CPUCapabilityAVX2,
		"":       CPUCapabilityNone,
		"sse4.2": CPUCapabilityNone,
		"AVX2":   CPUCapabilityNone,
	}
	for tag, want := range cases {
		assert.Equal(t, want, ParseCPUCapability(tag), "tag %q", tag)
	}
}

func TestCPUCapabilityRoundTrip(t *testing.T) {
	for _, c := range []CPUCapability{CPUCapabilityNone, CPUCapabilityAVX, CPUCapabilityAVX2} {
		assert.Equal(t, c, ParseCPUCapability(c.String()))
	}
}

func TestStrategyString(t *testing.T) {
	assert.Equal(t, "cpu", StrategyCPU.String())
	assert.Equal(t, "cuda", StrategyCUDA.String())
	assert.Equal(t, "metal", StrategyMetal.String())
}

func TestDeviceInfoString(t *testing.T) {
	cpu := DeviceInfo{Library: "cpu", Capability: CPUCapabilityAVX2}
	assert.Equal(t, "cpu(avx2)", cpu.String())

	gpu := DeviceInfo{Library: "cuda", ID: "0", Name: "NVIDIA GeForce RTX 3090"}
	assert.Equal(t, `cuda(0 "NVIDIA GeForce RTX 3090")`, gpu.String())
}
