package gpu

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
)

type swapchainSupport struct {
	capabilities vulkan.SurfaceCapabilities
	formats      []vulkan.SurfaceFormat
	presentModes []vulkan.PresentMode
}

func (s swapchainSupport) adequate() bool {
	return len(s.formats) > 0 && len(s.presentModes) > 0
}

func querySwapchainSupport(device vulkan.PhysicalDevice, surface vulkan.Surface) swapchainSupport {
	var details swapchainSupport
	vulkan.GetPhysicalDeviceSurfaceCapabilities(device, surface, &details.capabilities)
	details.capabilities.Deref()
	details.capabilities.CurrentExtent.Deref()
	details.capabilities.MinImageExtent.Deref()
	details.capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	vulkan.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, nil)
	if formatCount > 0 {
		details.formats = make([]vulkan.SurfaceFormat, formatCount)
		vulkan.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, details.formats)
		for i := range details.formats {
			details.formats[i].Deref()
		}
	}

	var presentCount uint32
	vulkan.GetPhysicalDeviceSurfacePresentModes(device, surface, &presentCount, nil)
	if presentCount > 0 {
		details.presentModes = make([]vulkan.PresentMode, presentCount)
		vulkan.GetPhysicalDeviceSurfacePresentModes(device, surface, &presentCount, details.presentModes)
	}

	return details
}

var preferredSurfaceFormats = []vulkan.Format{
	vulkan.FormatB8g8r8a8Srgb,
	vulkan.FormatR8g8b8a8Srgb,
}

// chooseSurfaceFormat picks an sRGB 8-bit format, falling back to the first
// one the surface reports. available must not be empty.
func chooseSurfaceFormat(available []vulkan.SurfaceFormat) vulkan.SurfaceFormat {
	for _, want := range preferredSurfaceFormats {
		for _, f := range available {
			if f.Format == want && f.ColorSpace == vulkan.ColorSpaceSrgbNonlinear {
				return f
			}
		}
	}
	return available[0]
}

func choosePresentMode(available []vulkan.PresentMode) vulkan.PresentMode {
	for _, m := range available {
		if m == vulkan.PresentModeMailbox {
			return m
		}
	}
	return vulkan.PresentModeFifo
}

// chooseExtent uses the surface's fixed extent when it has one and otherwise
// clamps the framebuffer size into the allowed range.
func chooseExtent(caps vulkan.SurfaceCapabilities, width, height int) vulkan.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	min := caps.MinImageExtent
	max := caps.MaxImageExtent
	return vulkan.Extent2D{
		Width:  uint32(clamp(uint64(width), uint64(min.Width), uint64(max.Width))),
		Height: uint32(clamp(uint64(height), uint64(min.Height), uint64(max.Height))),
	}
}

// chooseImageCount asks for one image above the minimum. A maximum of zero
// means the surface sets no upper bound.
func chooseImageCount(caps vulkan.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

// chooseSharing returns the sharing mode for swapchain images and the queue
// families that need access when it is concurrent.
func chooseSharing(q queueFamilyIndices) (vulkan.SharingMode, []uint32) {
	if q.graphicsFamily == q.presentFamily {
		return vulkan.SharingModeExclusive, nil
	}
	return vulkan.SharingModeConcurrent, []uint32{q.graphicsFamily, q.presentFamily}
}

func clamp(val, min, max uint64) uint64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// waitForExtent chooses the swapchain extent, blocking on the window while the
// surface has no area. caps is queried again after every wait since the
// surface's fixed extent follows the window.
func waitForExtent(window Surface, caps func() vulkan.SurfaceCapabilities) (vulkan.Extent2D, error) {
	for {
		width, height := window.FramebufferSize()
		extent := chooseExtent(caps(), width, height)
		if extent.Width > 0 && extent.Height > 0 {
			return extent, nil
		}
		logger.Debugf("surface is %dx%d; waiting for the window to be restored", extent.Width, extent.Height)
		if !window.WaitForFramebuffer() {
			return extent, ErrZeroExtent
		}
	}
}

func (r *Renderer) createSwapchain() error {
	var support swapchainSupport
	extent, err := waitForExtent(r.window, func() vulkan.SurfaceCapabilities {
		support = querySwapchainSupport(r.physicalDevice, r.surface)
		return support.capabilities
	})
	if err != nil {
		return err
	}
	if !support.adequate() {
		return ErrNoSurfaceFormats
	}

	surfaceFormat := chooseSurfaceFormat(support.formats)
	presentMode := choosePresentMode(support.presentModes)
	sharing, families := chooseSharing(r.queues)

	createInfo := vulkan.SwapchainCreateInfo{
		SType:                 vulkan.StructureTypeSwapchainCreateInfo,
		Surface:               r.surface,
		MinImageCount:         chooseImageCount(support.capabilities),
		ImageFormat:           surfaceFormat.Format,
		ImageColorSpace:       surfaceFormat.ColorSpace,
		ImageExtent:           extent,
		ImageArrayLayers:      1,
		ImageUsage:            vulkan.ImageUsageFlags(vulkan.ImageUsageColorAttachmentBit),
		ImageSharingMode:      sharing,
		QueueFamilyIndexCount: uint32(len(families)),
		PQueueFamilyIndices:   families,
		PreTransform:          support.capabilities.CurrentTransform,
		CompositeAlpha:        vulkan.CompositeAlphaOpaqueBit,
		PresentMode:           presentMode,
		Clipped:               vulkan.True,
		OldSwapchain:          vulkan.Swapchain(vulkan.NullHandle),
	}

	var swapchain vulkan.Swapchain
	if res := vulkan.CreateSwapchain(r.device, &createInfo, nil, &swapchain); res != vulkan.Success {
		return errors.Wrap(resultError(res), "create swapchain")
	}
	r.swapchain = swapchain
	r.batch.push("swapchain", func() {
		vulkan.DestroySwapchain(r.device, swapchain, nil)
		r.swapchain = vulkan.Swapchain(vulkan.NullHandle)
	})

	var count uint32
	if res := vulkan.GetSwapchainImages(r.device, swapchain, &count, nil); res != vulkan.Success {
		return errors.Wrap(resultError(res), "count swapchain images")
	}
	r.swapchainImages = make([]vulkan.Image, count)
	if res := vulkan.GetSwapchainImages(r.device, swapchain, &count, r.swapchainImages); res != vulkan.Success {
		return errors.Wrap(resultError(res), "get swapchain images")
	}
	r.swapchainFormat = surfaceFormat.Format
	r.swapchainExtent = extent

	logger.Infof("swapchain %dx%d, %d images, present mode %d", extent.Width, extent.Height, count, presentMode)
	return nil
}

func (r *Renderer) createImageViews() error {
	r.swapchainViews = make([]vulkan.ImageView, 0, len(r.swapchainImages))
	for i, img := range r.swapchainImages {
		view, err := r.createImageView(img, r.swapchainFormat, vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit))
		if err != nil {
			return errors.Wrapf(err, "create view for swapchain image %d", i)
		}
		r.swapchainViews = append(r.swapchainViews, view)
		r.batch.push("swapchain image view", func() {
			vulkan.DestroyImageView(r.device, view, nil)
		})
	}
	return nil
}

func (r *Renderer) createFramebuffers() error {
	r.framebuffers = make([]vulkan.Framebuffer, 0, len(r.swapchainViews))
	for i, view := range r.swapchainViews {
		attachments := []vulkan.ImageView{view, r.depthImageView}
		createInfo := vulkan.FramebufferCreateInfo{
			SType:           vulkan.StructureTypeFramebufferCreateInfo,
			RenderPass:      r.renderPass,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           r.swapchainExtent.Width,
			Height:          r.swapchainExtent.Height,
			Layers:          1,
		}
		var fb vulkan.Framebuffer
		if res := vulkan.CreateFramebuffer(r.device, &createInfo, nil, &fb); res != vulkan.Success {
			return errors.Wrapf(resultError(res), "create framebuffer %d", i)
		}
		r.framebuffers = append(r.framebuffers, fb)
		r.batch.push("framebuffer", func() {
			vulkan.DestroyFramebuffer(r.device, fb, nil)
		})
	}
	return nil
}

// swapchainSteps lists every resource sized by the surface extent, in the
// order their destroy steps must run backwards.
func (r *Renderer) swapchainSteps() []buildStep {
	return []buildStep{
		{"swapchain", r.createSwapchain},
		{"image views", r.createImageViews},
		{"render pass", r.createRenderPass},
		{"graphics pipeline", r.createGraphicsPipeline},
		{"depth resources", r.createDepthResources},
		{"framebuffers", r.createFramebuffers},
		{"uniform buffers", r.createUniformBuffers},
		{"descriptor sets", r.createDescriptorSets},
		{"command buffers", r.createCommandBuffers},
	}
}

func (r *Renderer) buildSwapchainBatch() error {
	return runSteps("build", r.swapchainSteps())
}
