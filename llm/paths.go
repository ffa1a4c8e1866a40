// Package llm locates, ranks and loads the prebuilt llama.cpp backend
// variants shipped alongside the binary. A variant is a directory of
// three shared libraries (core math, inference, multimodal) named
// <library>[_<variant>] under a platform and architecture specific base
// path.
package llm

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/llamalink/llamalink/envconfig"
)

func osTag() string {
	// GOOS values happen to match the on-disk layout tags.
	return runtime.GOOS
}

func archTag() string {
	if runtime.GOARCH == "amd64" {
		return "x86_64"
	}
	return runtime.GOARCH
}

// BasePath returns the directory holding this platform's variant
// subdirectories: <root>/<os>/<arch>. The root is LLAMALINK_LIBRARY_PATH
// when set, otherwise lib/ next to the running executable.
func BasePath() (string, error) {
	if root := envconfig.LibraryPath(); root != "" {
		return filepath.Join(root, osTag(), archTag()), nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("unable to locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), "lib", osTag(), archTag()), nil
}

// libraryFile maps a library stem to its platform file name, e.g.
// "ggml" to ggml.dll, libggml.dylib or libggml.so.
func libraryFile(stem string) string {
	switch runtime.GOOS {
	case "windows":
		return stem + ".dll"
	case "darwin":
		return "lib" + stem + ".dylib"
	default:
		return "lib" + stem + ".so"
	}
}
