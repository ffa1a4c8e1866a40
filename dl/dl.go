// Package dl opens shared libraries at runtime and resolves symbols from
// them, without cgo. On unix platforms it wraps dlopen/dlsym via purego;
// on Windows it wraps LoadLibraryEx/GetProcAddress.
package dl

import (
	"errors"
	"fmt"

	"github.com/ebitengine/purego"
)

// ErrSymbolNotFound distinguishes a missing entry point, which indicates
// an incompatible or mispackaged library, from an ordinary load failure.
var ErrSymbolNotFound = errors.New("symbol not found")

// A Library is a live handle to a loaded shared library. Handles are
// never unloaded before process exit; Close exists for probe-only
// libraries such as the CUDA management APIs.
type Library struct {
	Path   string
	handle uintptr
}

// Lookup resolves a named symbol. The returned address stays valid for
// the lifetime of the library.
func (l *Library) Lookup(name string) (uintptr, error) {
	addr, err := l.lookup(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %q in %s: %v", ErrSymbolNotFound, name, l.Path, err)
	}
	return addr, nil
}

// Bind resolves name and binds it to the function pointed to by fptr,
// which must be a pointer to a function variable with a signature
// matching the foreign entry point.
func (l *Library) Bind(name string, fptr any) error {
	addr, err := l.Lookup(name)
	if err != nil {
		return err
	}
	purego.RegisterFunc(fptr, addr)
	return nil
}
