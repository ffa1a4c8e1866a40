//go:build darwin && arm64

package discover

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/ebitengine/purego/objc"

	"github.com/llamalink/llamalink/dl"
	"github.com/llamalink/llamalink/format"
)

const metalMinimumMemory = 512 * format.MebiByte

const metalFramework = "/System/Library/Frameworks/Metal.framework/Metal"

type metalHandler struct {
	info DeviceInfo
}

func (*metalHandler) Strategy() Strategy { return StrategyMetal }

func (h *metalHandler) DeviceInfos() []DeviceInfo {
	return []DeviceInfo{h.info}
}

// newMetalHandler asks Metal for the default device. On Apple silicon
// the GPU shares system memory, so the recommended working set size
// stands in for both total and free.
func newMetalHandler() (*metalHandler, error) {
	lib, err := dl.Open(metalFramework)
	if err != nil {
		return nil, err
	}
	defer lib.Close()

	var createDevice func() objc.ID
	if err := lib.Bind("MTLCreateSystemDefaultDevice", &createDevice); err != nil {
		return nil, err
	}

	dev := createDevice()
	if dev == 0 {
		return nil, fmt.Errorf("no Metal device available")
	}
	defer dev.Send(objc.RegisterName("release"))

	name := goString(uintptr(dev.Send(objc.RegisterName("name")).Send(objc.RegisterName("UTF8String"))))
	if name == "Apple Paravirtual device" {
		// VMs expose a stub device with no working GPU behind it.
		return nil, fmt.Errorf("unsupported Metal device: %s", name)
	}

	workingSet := objc.Send[uint64](dev, objc.RegisterName("recommendedMaxWorkingSetSize"))
	info := DeviceInfo{
		MemInfo:       MemInfo{TotalMemory: workingSet, FreeMemory: workingSet},
		Library:       "metal",
		MinimumMemory: metalMinimumMemory,
		ID:            "0",
		Name:          name,
	}
	slog.Debug("detected Metal device", "device", info,
		"workingset", format.HumanBytes2(workingSet))
	return &metalHandler{info: info}, nil
}

func goString(p uintptr) string {
	if p == 0 {
		return ""
	}
	var b []byte
	for {
		c := *(*byte)(unsafe.Pointer(p))
		if c == 0 {
			break
		}
		b = append(b, c)
		p++
	}
	return string(b)
}
