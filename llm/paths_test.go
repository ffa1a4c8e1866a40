package llm

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasePathFromEnv(t *testing.T) {
	t.Setenv("LLAMALINK_LIBRARY_PATH", filepath.Join("opt", "llamalink"))
	base, err := BasePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("opt", "llamalink", runtime.GOOS, archTag()), base)
}

func TestLibraryFile(t *testing.T) {
	name := libraryFile("ggml")
	switch runtime.GOOS {
	case "windows":
		assert.Equal(t, "ggml.dll", name)
	case "darwin":
		assert.Equal(t, "libggml.dylib", name)
	default:
		assert.Equal(t, "libggml.so", name)
	}
}
