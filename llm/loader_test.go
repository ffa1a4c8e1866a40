package llm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llamalink/llamalink/discover"
	"github.com/llamalink/llamalink/dl"
)

// mkVariant creates one variant directory holding the named library
// files.
func mkVariant(t *testing.T, base, name string, stems ...string) {
	t.Helper()
	dir := filepath.Join(base, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, stem := range stems {
		require.NoError(t, os.WriteFile(filepath.Join(dir, libraryFile(stem)), []byte("stub"), 0o644))
	}
}

// stubOpen replaces the real dynamic loader with one that succeeds when
// the requested file exists, recording every open in order.
func stubOpen(t *testing.T) *[]string {
	t.Helper()
	var opened []string
	prev := openLibrary
	openLibrary = func(path string) (*dl.Library, error) {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		opened = append(opened, path)
		return &dl.Library{Path: path}, nil
	}
	t.Cleanup(func() { openLibrary = prev })
	return &opened
}

func TestAvailableVariants(t *testing.T) {
	base := t.TempDir()
	mkVariant(t, base, "cpu", coreLibrary, inferenceLibrary, multimodalLibrary)
	mkVariant(t, base, "cuda_v12.4", coreLibrary, inferenceLibrary, multimodalLibrary)
	// No core library marker, not a variant.
	mkVariant(t, base, "notavariant", inferenceLibrary)
	require.NoError(t, os.WriteFile(filepath.Join(base, "stray.txt"), nil, 0o644))

	assert.ElementsMatch(t, []Variant{
		{Library: "cpu"},
		{Library: "cuda", Variant: "v12.4"},
	}, AvailableVariants(base))
}

func TestAvailableVariantsMissingBase(t *testing.T) {
	assert.Empty(t, AvailableVariants(filepath.Join(t.TempDir(), "nope")))
}

func TestLoadLibrariesPrefersBestVariant(t *testing.T) {
	base := t.TempDir()
	mkVariant(t, base, "cpu", coreLibrary, inferenceLibrary, multimodalLibrary)
	mkVariant(t, base, "cpu_avx2", coreLibrary, inferenceLibrary, multimodalLibrary)
	opened := stubOpen(t)

	devices := []discover.DeviceInfo{{Library: "cpu", Capability: discover.CPUCapabilityAVX2}}
	libs, err := LoadLibraries(base, devices, AvailableVariants(base))
	require.NoError(t, err)

	assert.Equal(t, "cpu_avx2", libs.Variant.String())
	assert.Equal(t, filepath.Join(base, "cpu_avx2"), libs.Dir)
	require.Equal(t, []string{
		filepath.Join(base, "cpu_avx2", libraryFile(coreLibrary)),
		filepath.Join(base, "cpu_avx2", libraryFile(inferenceLibrary)),
		filepath.Join(base, "cpu_avx2", libraryFile(multimodalLibrary)),
	}, *opened, "libraries load in dependency order and no further candidate is tried")
}

func TestLoadLibrariesFallsBackOnMissingFile(t *testing.T) {
	base := t.TempDir()
	// The GPU build is missing its multimodal library.
	mkVariant(t, base, "cuda_v12.4", coreLibrary, inferenceLibrary)
	mkVariant(t, base, "cpu", coreLibrary, inferenceLibrary, multimodalLibrary)
	opened := stubOpen(t)

	devices := []discover.DeviceInfo{
		{Library: "cuda", ID: "0"},
		{Library: "cpu", Capability: discover.CPUCapabilityAVX2},
	}
	libs, err := LoadLibraries(base, devices, AvailableVariants(base))
	require.NoError(t, err)

	assert.Equal(t, "cpu", libs.Variant.String())
	require.Equal(t, []string{
		filepath.Join(base, "cuda_v12.4", libraryFile(coreLibrary)),
		filepath.Join(base, "cuda_v12.4", libraryFile(inferenceLibrary)),
		filepath.Join(base, "cpu", libraryFile(coreLibrary)),
		filepath.Join(base, "cpu", libraryFile(inferenceLibrary)),
		filepath.Join(base, "cpu", libraryFile(multimodalLibrary)),
	}, *opened, "the broken candidate is abandoned at its first missing file")
}

func TestLoadLibrariesExhaustion(t *testing.T) {
	base := t.TempDir()
	stubOpen(t)

	devices := []discover.DeviceInfo{{Library: "cpu", Capability: discover.CPUCapabilityAVX2}}
	_, err := LoadLibraries(base, devices, AvailableVariants(base))

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Empty(t, loadErr.Attempts)
	assert.Contains(t, loadErr.Error(), "no backend variants")
}

func TestLoadLibrariesAggregatesAttempts(t *testing.T) {
	base := t.TempDir()
	mkVariant(t, base, "cpu", coreLibrary, inferenceLibrary) // multimodal missing
	mkVariant(t, base, "cpu_avx2", coreLibrary)              // inference missing
	stubOpen(t)

	devices := []discover.DeviceInfo{{Library: "cpu", Capability: discover.CPUCapabilityAVX2}}
	_, err := LoadLibraries(base, devices, AvailableVariants(base))

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	require.Len(t, loadErr.Attempts, 2)
	assert.Equal(t, filepath.Join(base, "cpu_avx2"), loadErr.Attempts[0].Path)
	assert.Equal(t, filepath.Join(base, "cpu"), loadErr.Attempts[1].Path)
	for _, a := range loadErr.Attempts {
		assert.Contains(t, loadErr.Error(), a.Path)
	}
}

func TestLoadLibrariesForcedVariant(t *testing.T) {
	base := t.TempDir()
	mkVariant(t, base, "cpu", coreLibrary, inferenceLibrary, multimodalLibrary)
	mkVariant(t, base, "cpu_avx2", coreLibrary, inferenceLibrary, multimodalLibrary)
	stubOpen(t)
	t.Setenv("LLAMALINK_LIBRARY", "cpu")

	devices := []discover.DeviceInfo{{Library: "cpu", Capability: discover.CPUCapabilityAVX2}}
	libs, err := LoadLibraries(base, devices, AvailableVariants(base))
	require.NoError(t, err)
	assert.Equal(t, "cpu", libs.Variant.String())
}
