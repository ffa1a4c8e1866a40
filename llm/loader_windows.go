package llm

import (
	"os"
	"slices"
	"strings"
)

// Windows resolves transitive DLL dependencies (CUDA runtime, MSVC
// runtime) through PATH, so the dependency directories must be visible
// there before the first load attempt.
func extendSearchPath(dirs ...string) {
	parts := strings.Split(os.Getenv("PATH"), string(os.PathListSeparator))
	changed := false
	for _, dir := range dirs {
		if dir == "" || slices.Contains(parts, dir) {
			continue
		}
		parts = append([]string{dir}, parts...)
		changed = true
	}
	if changed {
		os.Setenv("PATH", strings.Join(parts, string(os.PathListSeparator)))
	}
}
