// Package envconfig reads llamalink configuration from the environment.
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/llamalink/llamalink/logutil"
)

// Var reads an environment variable, stripping whitespace and quotes.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// Debug reports whether debug logging was requested via LLAMALINK_DEBUG.
func Debug() bool {
	if s := Var("LLAMALINK_DEBUG"); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
		return true
	}
	return false
}

// LogLevel returns the slog level selected by LLAMALINK_DEBUG.
// LLAMALINK_DEBUG=1 enables debug logging, LLAMALINK_DEBUG=2 (or more)
// enables trace logging.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("LLAMALINK_DEBUG"); s != "" {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil && i >= 2 {
			level = logutil.LevelTrace
		} else if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		}
	}
	return level
}

// LibraryPath returns the root of the prebuilt backend tree, overriding
// the default next-to-executable location. The platform and architecture
// subdirectories are appended by the loader.
func LibraryPath() string {
	return Var("LLAMALINK_LIBRARY_PATH")
}

// Library returns the requested backend variant (e.g. "cuda_v12.4",
// "cpu_avx2"), bypassing autodetection. Empty means autodetect.
func Library() string {
	return Var("LLAMALINK_LIBRARY")
}

// ForceCPU reports whether GPU probing should be skipped entirely.
func ForceCPU() bool {
	if s := Var("LLAMALINK_FORCE_CPU"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return true
		}
		return b
	}
	return false
}

// EnvVar describes one configuration variable for display.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	ret := map[string]EnvVar{
		"LLAMALINK_DEBUG":        {"LLAMALINK_DEBUG", LogLevel(), "Show additional debug information (e.g. LLAMALINK_DEBUG=1)"},
		"LLAMALINK_LIBRARY":      {"LLAMALINK_LIBRARY", Library(), "Set backend variant to bypass autodetection"},
		"LLAMALINK_LIBRARY_PATH": {"LLAMALINK_LIBRARY_PATH", LibraryPath(), "Root directory of the prebuilt backend tree"},
		"LLAMALINK_FORCE_CPU":    {"LLAMALINK_FORCE_CPU", ForceCPU(), "Skip GPU probing and use the CPU backend"},
	}

	if runtime.GOOS != "darwin" {
		ret["CUDA_VISIBLE_DEVICES"] = EnvVar{"CUDA_VISIBLE_DEVICES", Var("CUDA_VISIBLE_DEVICES"), "Set which NVIDIA devices are visible"}
	}

	return ret
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
