package gpu

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hellhand/kube/internal/frame"
	"github.com/vulkan-go/vulkan"
)

// timeoutNanos converts a wait bound for the driver; zero means wait forever.
func timeoutNanos(d time.Duration) uint64 {
	if d <= 0 {
		return vulkan.MaxUint64
	}
	return uint64(d.Nanoseconds())
}

func (r *Renderer) slot(slot int) (frameSync, error) {
	if slot < 0 || slot >= len(r.frames) {
		return frameSync{}, errors.Wrapf(frame.ErrInvalidSlot, "slot %d of %d", slot, len(r.frames))
	}
	return r.frames[slot], nil
}

func (r *Renderer) WaitForFence(slot int, timeout time.Duration) error {
	s, err := r.slot(slot)
	if err != nil {
		return err
	}
	if res := vulkan.WaitForFences(r.device, 1, []vulkan.Fence{s.inFlight}, vulkan.True, timeoutNanos(timeout)); res != vulkan.Success {
		return resultError(res)
	}
	return nil
}

func (r *Renderer) AcquireNextImage(slot int, timeout time.Duration) (uint32, error) {
	s, err := r.slot(slot)
	if err != nil {
		return 0, err
	}
	var image uint32
	res := vulkan.AcquireNextImage(r.device, r.swapchain, timeoutNanos(timeout), s.imageAvailable, vulkan.NullFence, &image)
	switch res {
	case vulkan.Success:
		return image, nil
	case vulkan.Suboptimal:
		return image, frame.ErrSuboptimal
	default:
		return 0, resultError(res)
	}
}

func (r *Renderer) ResetFence(slot int) error {
	s, err := r.slot(slot)
	if err != nil {
		return err
	}
	if res := vulkan.ResetFences(r.device, 1, []vulkan.Fence{s.inFlight}); res != vulkan.Success {
		return resultError(res)
	}
	return nil
}

// Submit queues the prerecorded commands for image. They start once the
// slot's image-available semaphore fires and signal render-finished and the
// slot's fence when done.
func (r *Renderer) Submit(slot int, image uint32) error {
	s, err := r.slot(slot)
	if err != nil {
		return err
	}
	if int(image) >= len(r.commandBuffers) {
		return errors.Newf("gpu: no command buffer for image %d", image)
	}
	submitInfo := vulkan.SubmitInfo{
		SType:                vulkan.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vulkan.Semaphore{s.imageAvailable},
		PWaitDstStageMask:    []vulkan.PipelineStageFlags{vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vulkan.CommandBuffer{r.commandBuffers[image]},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vulkan.Semaphore{s.renderFinished},
	}
	if res := vulkan.QueueSubmit(r.graphicsQueue, 1, []vulkan.SubmitInfo{submitInfo}, s.inFlight); res != vulkan.Success {
		return resultError(res)
	}
	return nil
}

func (r *Renderer) Present(slot int, image uint32) error {
	s, err := r.slot(slot)
	if err != nil {
		return err
	}
	presentInfo := vulkan.PresentInfo{
		SType:              vulkan.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vulkan.Semaphore{s.renderFinished},
		SwapchainCount:     1,
		PSwapchains:        []vulkan.Swapchain{r.swapchain},
		PImageIndices:      []uint32{image},
	}
	if res := vulkan.QueuePresent(r.presentQueue, &presentInfo); res != vulkan.Success {
		return resultError(res)
	}
	return nil
}

func (r *Renderer) WaitIdle() error {
	if res := vulkan.DeviceWaitIdle(r.device); res != vulkan.Success {
		return resultError(res)
	}
	return nil
}

// RebuildSwapchain destroys the swapchain batch in reverse creation order and
// builds it again against the current surface. The device must be idle.
func (r *Renderer) RebuildSwapchain() (int, error) {
	r.batch.unwind()
	if err := r.buildSwapchainBatch(); err != nil {
		return 0, err
	}
	return len(r.swapchainImages), nil
}
