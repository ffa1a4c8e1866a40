//go:build darwin && arm64

package discover

func newGPUHandler() (handler, error) {
	return newMetalHandler()
}
