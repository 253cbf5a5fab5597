package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/hellhand/kube/internal/frame"
	"github.com/vulkan-go/vulkan"
)

var (
	ErrValidationUnavailable = errors.New("gpu: requested validation layers not available")
	ErrNoSuitableDevice      = errors.New("gpu: no suitable GPU found")
	ErrNoMemoryType          = errors.New("gpu: no suitable memory type")
	ErrNoDepthFormat         = errors.New("gpu: no supported depth format")
	ErrNoSurfaceFormats      = errors.New("gpu: surface reports no formats or present modes")
	ErrShaderCode            = errors.New("gpu: invalid SPIR-V bytecode")
	ErrZeroExtent            = errors.New("gpu: surface has no area")
)

// resultError converts a failed Vulkan result into an error. Swapchain
// staleness and expired waits map onto the frame package sentinels so the
// scheduler can classify them.
func resultError(res vulkan.Result) error {
	switch res {
	case vulkan.ErrorOutOfDate:
		return frame.ErrOutOfDate
	case vulkan.Suboptimal:
		return frame.ErrSuboptimal
	case vulkan.Timeout, vulkan.NotReady:
		return frame.ErrTimeout
	}
	if err := vulkan.Error(res); err != nil {
		return err
	}
	return errors.Newf("gpu: unexpected vulkan result %d", int32(res))
}
