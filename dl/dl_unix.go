//go:build darwin || linux

package dl

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// Open loads the shared library at path. RTLD_GLOBAL keeps the core math
// library's symbols visible to the inference library loaded after it.
func Open(path string) (*Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("unable to load library %s: %w", path, err)
	}
	return &Library{Path: path, handle: handle}, nil
}

func (l *Library) lookup(name string) (uintptr, error) {
	return purego.Dlsym(l.handle, name)
}

func (l *Library) Close() error {
	if l == nil || l.handle == 0 {
		return nil
	}
	return purego.Dlclose(l.handle)
}
