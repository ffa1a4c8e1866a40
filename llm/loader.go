package llm

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/llamalink/llamalink/discover"
	"github.com/llamalink/llamalink/dl"
	"github.com/llamalink/llamalink/envconfig"
)

// Libraries is the loaded triplet backing one process's bindings. The
// handles are immutable once returned and are never unloaded before
// process exit.
type Libraries struct {
	Ggml  *dl.Library
	Llama *dl.Library
	Llava *dl.Library

	Dir     string
	Variant Variant
}

// LoadAttempt records one candidate directory that failed to load.
type LoadAttempt struct {
	Path string
	Err  error
}

// LoadError aggregates every failed candidate after all devices and
// variants are exhausted. Zero attempts means no candidate matched any
// device at all.
type LoadError struct {
	Attempts []LoadAttempt
}

func (e *LoadError) Error() string {
	if len(e.Attempts) == 0 {
		return "no backend variants available to load"
	}
	var sb strings.Builder
	sb.WriteString("unable to load any backend variant:")
	for _, a := range e.Attempts {
		fmt.Fprintf(&sb, "\n  %s: %v", a.Path, a.Err)
	}
	return sb.String()
}

// openLibrary is swapped out by tests to simulate load failures.
var openLibrary = dl.Open

// LoadLibraries walks the devices in probe order and each device's
// ranked variants, most capable first, and returns the first candidate
// whose three libraries all load. When every combination fails, the
// returned *LoadError enumerates each attempted directory with its
// specific failure.
func LoadLibraries(base string, devices []discover.DeviceInfo, catalog []Variant) (*Libraries, error) {
	extendSearchPath(base)
	forced := envconfig.Library()
	if forced != "" {
		slog.Info("LLAMALINK_LIBRARY set, only considering one variant", "variant", forced)
	}

	loadErr := &LoadError{}
	for _, device := range devices {
		applyEnvWorkarounds(device)
		extendSearchPath(device.DependencyPaths...)

		ranked, err := RankedVariants(catalog, device)
		if err != nil {
			slog.Warn("skipping device with inconsistent candidate set", "device", device, "error", err)
			continue
		}
		slog.Debug("variant try order", "device", device, "variants", ranked)

		for _, v := range ranked {
			if forced != "" && v.String() != forced {
				continue
			}
			dir := filepath.Join(base, v.String())
			libs, err := loadVariant(dir)
			if err != nil {
				slog.Info("backend variant failed to load", "dir", dir, "error", err)
				loadErr.Attempts = append(loadErr.Attempts, LoadAttempt{Path: dir, Err: err})
				continue
			}
			libs.Dir = dir
			libs.Variant = v
			slog.Info("loaded backend", "variant", v.String(), "dir", dir)
			return libs, nil
		}
	}
	return nil, loadErr
}

// loadVariant loads the triplet from one directory in dependency order.
// Any failure unloads what was already loaded and abandons the
// candidate.
func loadVariant(dir string) (*Libraries, error) {
	libs := &Libraries{}
	for _, target := range []struct {
		stem string
		dst  **dl.Library
	}{
		{coreLibrary, &libs.Ggml},
		{inferenceLibrary, &libs.Llama},
		{multimodalLibrary, &libs.Llava},
	} {
		lib, err := openLibrary(filepath.Join(dir, libraryFile(target.stem)))
		if err != nil {
			libs.close()
			return nil, err
		}
		*target.dst = lib
	}
	return libs, nil
}

func (l *Libraries) close() {
	for _, lib := range []*dl.Library{l.Llava, l.Llama, l.Ggml} {
		lib.Close()
	}
}

func applyEnvWorkarounds(device discover.DeviceInfo) {
	for _, kv := range device.EnvWorkarounds {
		slog.Debug("applying env workaround", "device", device.ID, "key", kv[0], "value", kv[1])
		os.Setenv(kv[0], kv[1])
	}
}
