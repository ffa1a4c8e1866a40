//go:build linux || windows

package discover

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// findLibs globs for a management library by name across the system
// loader search path and a set of default install locations, resolving
// symlinks so the same library is not probed twice.
func findLibs(baseName string, defaultPatterns []string) []string {
	var patterns []string

	var ldPaths []string
	switch {
	case os.PathSeparator == '\\':
		ldPaths = strings.Split(os.Getenv("PATH"), string(os.PathListSeparator))
	default:
		ldPaths = strings.Split(os.Getenv("LD_LIBRARY_PATH"), string(os.PathListSeparator))
	}
	for _, p := range ldPaths {
		if p == "" {
			continue
		}
		p, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		patterns = append(patterns, filepath.Join(p, baseName))
	}
	patterns = append(patterns, defaultPatterns...)
	slog.Debug("searching for management library", "name", baseName, "globs", patterns)

	var libPaths []string
	for _, pattern := range patterns {
		matches, _ := filepath.Glob(pattern)
		for _, match := range matches {
			libPath := match
			tmp := match
			var err error
			for ; err == nil; tmp, err = os.Readlink(libPath) {
				if !filepath.IsAbs(tmp) {
					tmp = filepath.Join(filepath.Dir(libPath), tmp)
				}
				libPath = tmp
			}
			if !slices.Contains(libPaths, libPath) {
				libPaths = append(libPaths, libPath)
			}
		}
	}
	slog.Debug("discovered management libraries", "name", baseName, "paths", libPaths)
	return libPaths
}
