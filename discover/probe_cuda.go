//go:build linux || windows

package discover

func newGPUHandler() (handler, error) {
	return newCUDAHandler()
}
