package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llamalink/llamalink/discover"
)

func TestParseVariant(t *testing.T) {
	assert.Equal(t, Variant{Library: "cuda", Variant: "v12.4"}, parseVariant("cuda_v12.4"))
	assert.Equal(t, Variant{Library: "cpu", Variant: ""}, parseVariant("cpu"))
	assert.Equal(t, Variant{Library: "cpu", Variant: "avx2"}, parseVariant("cpu_avx2"))

	// String is the inverse of parseVariant.
	for _, name := range []string{"cpu", "cpu_avx2", "cuda_v12.4", "rocm_v6.1"} {
		assert.Equal(t, name, parseVariant(name).String())
	}
}

func TestVariantVersionOrdering(t *testing.T) {
	assert.Greater(t, variantVersion("v12.4"), variantVersion("v11.0"))
	assert.Greater(t, variantVersion("v11.0"), variantVersion("v2.1"))
	assert.Equal(t, variantVersion("v12.4"), variantVersion("v12.4"))
	assert.Equal(t, 0, variantVersion(""))
}

func TestMatchingVariantsCPUTiers(t *testing.T) {
	catalog := []Variant{
		{Library: "cpu"},
		{Library: "cpu", Variant: "avx"},
		{Library: "cpu", Variant: "avx2"},
		{Library: "cuda", Variant: "v12.4"},
	}

	avx := discover.DeviceInfo{Library: "cpu", Capability: discover.CPUCapabilityAVX}
	matched := matchingVariants(catalog, avx)
	assert.ElementsMatch(t, []Variant{
		{Library: "cpu"},
		{Library: "cpu", Variant: "avx"},
	}, matched, "an avx host must never see avx2 or gpu builds")

	none := discover.DeviceInfo{Library: "cpu", Capability: discover.CPUCapabilityNone}
	assert.ElementsMatch(t, []Variant{{Library: "cpu"}}, matchingVariants(catalog, none))
}

func TestMatchingVariantsTierIsFloorNotEqual(t *testing.T) {
	// Only an avx build on disk; an avx2 host still takes it.
	catalog := []Variant{{Library: "cpu", Variant: "avx"}}
	host := discover.DeviceInfo{Library: "cpu", Capability: discover.CPUCapabilityAVX2}

	ranked, err := rankVariants(matchingVariants(catalog, host))
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "cpu_avx", ranked[0].String())
}

func TestRankVariantsCPU(t *testing.T) {
	catalog := []Variant{
		{Library: "cpu"},
		{Library: "cpu", Variant: "avx2"},
	}
	host := discover.DeviceInfo{Library: "cpu", Capability: discover.CPUCapabilityAVX2}

	ranked, err := rankVariants(matchingVariants(catalog, host))
	require.NoError(t, err)
	assert.Equal(t, []Variant{
		{Library: "cpu", Variant: "avx2"},
		{Library: "cpu"},
	}, ranked, "highest matching tier is tried first")
}

func TestRankVariantsGPU(t *testing.T) {
	catalog := []Variant{
		{Library: "cpu"},
		{Library: "cuda", Variant: "v11.0"},
		{Library: "cpu", Variant: "avx2"},
		{Library: "cuda", Variant: "v12.4"},
	}
	gpu := discover.DeviceInfo{Library: "cuda", ID: "0"}

	ranked, err := rankVariants(matchingVariants(catalog, gpu))
	require.NoError(t, err)
	assert.Equal(t, []Variant{
		{Library: "cuda", Variant: "v12.4"},
		{Library: "cuda", Variant: "v11.0"},
		{Library: "cpu", Variant: "avx2"},
		{Library: "cpu"},
	}, ranked, "cpu fallbacks rank strictly after every native gpu build")
}

func TestRankVariantsMixedLibraries(t *testing.T) {
	_, err := rankVariants([]Variant{
		{Library: "cuda", Variant: "v12.4"},
		{Library: "rocm", Variant: "v6.1"},
	})
	assert.ErrorIs(t, err, ErrMixedLibraries)
}
