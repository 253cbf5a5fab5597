package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
)

// frameSync holds the primitives of one frame slot. The fence starts signaled
// so the first wait on a fresh slot returns immediately.
type frameSync struct {
	imageAvailable vulkan.Semaphore
	renderFinished vulkan.Semaphore
	inFlight       vulkan.Fence
}

func (r *Renderer) createSyncObjects() error {
	semInfo := vulkan.SemaphoreCreateInfo{
		SType: vulkan.StructureTypeSemaphoreCreateInfo,
	}
	fenceInfo := vulkan.FenceCreateInfo{
		SType: vulkan.StructureTypeFenceCreateInfo,
		Flags: vulkan.FenceCreateFlags(vulkan.FenceCreateSignaledBit),
	}

	r.frames = make([]frameSync, 0, r.opts.FramesInFlight)
	for i := 0; i < r.opts.FramesInFlight; i++ {
		var s frameSync
		if res := vulkan.CreateSemaphore(r.device, &semInfo, nil, &s.imageAvailable); res != vulkan.Success {
			return errors.Wrapf(resultError(res), "create image-available semaphore %d", i)
		}
		r.longLived.push("image-available semaphore", func() {
			vulkan.DestroySemaphore(r.device, s.imageAvailable, nil)
		})
		if res := vulkan.CreateSemaphore(r.device, &semInfo, nil, &s.renderFinished); res != vulkan.Success {
			return errors.Wrapf(resultError(res), "create render-finished semaphore %d", i)
		}
		r.longLived.push("render-finished semaphore", func() {
			vulkan.DestroySemaphore(r.device, s.renderFinished, nil)
		})
		if res := vulkan.CreateFence(r.device, &fenceInfo, nil, &s.inFlight); res != vulkan.Success {
			return errors.Wrapf(resultError(res), "create in-flight fence %d", i)
		}
		r.longLived.push("in-flight fence", func() {
			vulkan.DestroyFence(r.device, s.inFlight, nil)
		})
		r.frames = append(r.frames, s)
	}
	return nil
}
