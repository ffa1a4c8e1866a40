// Package llama exposes the dynamically loaded llama.cpp entry points
// behind a process-wide, lazily initialized backend. The first caller
// from any goroutine triggers device probing, variant selection and
// library loading exactly once; every caller converges on that single
// outcome. Loaded libraries stay resident until process exit.
package llama

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/ebitengine/purego"

	"github.com/llamalink/llamalink/discover"
	"github.com/llamalink/llamalink/llm"
	"github.com/llamalink/llamalink/logutil"
)

var (
	backendOnce sync.Once
	backend     *binder
	backendErr  error
)

// loadBackend is swapped out by tests.
var loadBackend = initBackend

func ensureBackend() (*binder, error) {
	backendOnce.Do(func() {
		backend, backendErr = loadBackend()
	})
	return backend, backendErr
}

// Init forces backend initialization. Safe to call from any goroutine;
// concurrent first callers block on the same single load and observe
// the identical result, success or failure.
func Init() error {
	_, err := ensureBackend()
	return err
}

// BackendVariant reports the variant the loader selected, initializing
// the backend if needed.
func BackendVariant() (llm.Variant, error) {
	b, err := ensureBackend()
	if err != nil {
		return llm.Variant{}, err
	}
	return b.libs.Variant, nil
}

func initBackend() (*binder, error) {
	devices := discover.Devices()
	base, err := llm.BasePath()
	if err != nil {
		return nil, err
	}
	libs, err := llm.LoadLibraries(base, devices, llm.AvailableVariants(base))
	if err != nil {
		return nil, err
	}

	b := newBinder(libs)
	if b.require("llama_log_set") == nil {
		b.llama.logSet(backendLogCallback, 0)
	}
	if err := b.require("llama_backend_init"); err != nil {
		return nil, err
	}
	b.llama.backendInit()
	if b.require("llama_numa_init") == nil {
		b.llama.numaInit(0) // GGML_NUMA_STRATEGY_DISABLED
	}

	slog.Info("llama backend initialized",
		"strategy", discover.ActiveStrategy().String(),
		"variant", libs.Variant.String(),
		"dir", libs.Dir)
	return b, nil
}

// backendLogCallback forwards the engine's own log lines to slog at
// trace level.
var backendLogCallback = purego.NewCallback(func(level, text, _ uintptr) uintptr {
	if msg := strings.TrimRight(goString(text), "\n"); msg != "" {
		logutil.Trace("llama.cpp", "level", int(level), "message", msg)
	}
	return 0
})
