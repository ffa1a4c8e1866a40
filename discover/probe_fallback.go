//go:build !(linux || windows || (darwin && arm64))

package discover

import "fmt"

func newGPUHandler() (handler, error) {
	return nil, fmt.Errorf("no GPU support on this platform")
}
