//go:build !windows

package llm

// Libraries are opened by full path and the core math library is loaded
// RTLD_GLOBAL, so the dynamic linker needs no search-path changes here.
func extendSearchPath(...string) {}
