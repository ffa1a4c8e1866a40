package dl

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// Open loads the DLL at path. LOAD_WITH_ALTERED_SEARCH_PATH makes the
// candidate's own directory the first stop for its dependent DLLs; CUDA
// and MSVC runtime DLLs outside it resolve through PATH, which the
// loader extends with the base dependency directory.
func Open(path string) (*Library, error) {
	handle, err := windows.LoadLibraryEx(path, 0, windows.LOAD_WITH_ALTERED_SEARCH_PATH)
	if err != nil {
		return nil, fmt.Errorf("unable to load library %s: %w", path, err)
	}
	return &Library{Path: path, handle: uintptr(handle)}, nil
}

func (l *Library) lookup(name string) (uintptr, error) {
	return windows.GetProcAddress(windows.Handle(l.handle), name)
}

func (l *Library) Close() error {
	if l == nil || l.handle == 0 {
		return nil
	}
	return windows.FreeLibrary(windows.Handle(l.handle))
}
