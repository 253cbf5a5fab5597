package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
)

var depthFormatCandidates = []vulkan.Format{
	vulkan.FormatD32Sfloat,
	vulkan.FormatD32SfloatS8Uint,
	vulkan.FormatD24UnormS8Uint,
}

// memoryTypeIndex returns the first memory type allowed by typeFilter that has
// every requested property flag.
func memoryTypeIndex(types []vulkan.MemoryPropertyFlags, typeFilter uint32, want vulkan.MemoryPropertyFlags) (uint32, error) {
	for i, flags := range types {
		if typeFilter&(1<<uint(i)) != 0 && flags&want == want {
			return uint32(i), nil
		}
	}
	return 0, errors.Wrapf(ErrNoMemoryType, "filter %#x, properties %#x", typeFilter, uint32(want))
}

func (r *Renderer) findMemoryType(typeFilter uint32, properties vulkan.MemoryPropertyFlagBits) (uint32, error) {
	var memProps vulkan.PhysicalDeviceMemoryProperties
	vulkan.GetPhysicalDeviceMemoryProperties(r.physicalDevice, &memProps)
	memProps.Deref()

	types := make([]vulkan.MemoryPropertyFlags, 0, memProps.MemoryTypeCount)
	for i := uint32(0); i < memProps.MemoryTypeCount; i++ {
		memoryType := memProps.MemoryTypes[i]
		memoryType.Deref()
		types = append(types, memoryType.PropertyFlags)
	}
	return memoryTypeIndex(types, typeFilter, vulkan.MemoryPropertyFlags(properties))
}

// supportedFormat returns the first candidate whose features for the given
// tiling include every wanted feature bit.
func supportedFormat(candidates []vulkan.Format, tiling vulkan.ImageTiling, features vulkan.FormatFeatureFlags, query func(vulkan.Format) vulkan.FormatProperties) (vulkan.Format, bool) {
	for _, format := range candidates {
		props := query(format)
		switch {
		case tiling == vulkan.ImageTilingLinear && props.LinearTilingFeatures&features == features:
			return format, true
		case tiling == vulkan.ImageTilingOptimal && props.OptimalTilingFeatures&features == features:
			return format, true
		}
	}
	return vulkan.FormatUndefined, false
}

// findDepthFormat runs once per device; the result does not depend on the extent.
func (r *Renderer) findDepthFormat() error {
	format, ok := supportedFormat(depthFormatCandidates, vulkan.ImageTilingOptimal,
		vulkan.FormatFeatureFlags(vulkan.FormatFeatureDepthStencilAttachmentBit),
		func(f vulkan.Format) vulkan.FormatProperties {
			var props vulkan.FormatProperties
			vulkan.GetPhysicalDeviceFormatProperties(r.physicalDevice, f, &props)
			props.Deref()
			return props
		})
	if !ok {
		return ErrNoDepthFormat
	}
	r.depthFormat = format
	return nil
}

func (r *Renderer) createImage(width, height uint32, format vulkan.Format, tiling vulkan.ImageTiling, usage vulkan.ImageUsageFlags, properties vulkan.MemoryPropertyFlagBits) (vulkan.Image, vulkan.DeviceMemory, error) {
	createInfo := vulkan.ImageCreateInfo{
		SType:     vulkan.StructureTypeImageCreateInfo,
		ImageType: vulkan.ImageType2d,
		Extent: vulkan.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: vulkan.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vulkan.SampleCount1Bit,
		SharingMode:   vulkan.SharingModeExclusive,
	}

	var image vulkan.Image
	if res := vulkan.CreateImage(r.device, &createInfo, nil, &image); res != vulkan.Success {
		return vulkan.NullImage, vulkan.NullDeviceMemory, errors.Wrap(resultError(res), "create image")
	}

	var memRequirements vulkan.MemoryRequirements
	vulkan.GetImageMemoryRequirements(r.device, image, &memRequirements)
	memRequirements.Deref()

	memoryType, err := r.findMemoryType(memRequirements.MemoryTypeBits, properties)
	if err != nil {
		vulkan.DestroyImage(r.device, image, nil)
		return vulkan.NullImage, vulkan.NullDeviceMemory, err
	}
	allocInfo := vulkan.MemoryAllocateInfo{
		SType:           vulkan.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryType,
	}

	var memory vulkan.DeviceMemory
	if res := vulkan.AllocateMemory(r.device, &allocInfo, nil, &memory); res != vulkan.Success {
		vulkan.DestroyImage(r.device, image, nil)
		return vulkan.NullImage, vulkan.NullDeviceMemory, errors.Wrap(resultError(res), "allocate image memory")
	}
	if res := vulkan.BindImageMemory(r.device, image, memory, 0); res != vulkan.Success {
		vulkan.FreeMemory(r.device, memory, nil)
		vulkan.DestroyImage(r.device, image, nil)
		return vulkan.NullImage, vulkan.NullDeviceMemory, errors.Wrap(resultError(res), "bind image memory")
	}
	return image, memory, nil
}

func (r *Renderer) createImageView(image vulkan.Image, format vulkan.Format, aspectFlags vulkan.ImageAspectFlags) (vulkan.ImageView, error) {
	viewInfo := vulkan.ImageViewCreateInfo{
		SType:    vulkan.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vulkan.ImageViewType2d,
		Format:   format,
		Components: vulkan.ComponentMapping{
			R: vulkan.ComponentSwizzleIdentity,
			G: vulkan.ComponentSwizzleIdentity,
			B: vulkan.ComponentSwizzleIdentity,
			A: vulkan.ComponentSwizzleIdentity,
		},
		SubresourceRange: vulkan.ImageSubresourceRange{
			AspectMask: aspectFlags,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vulkan.ImageView
	if res := vulkan.CreateImageView(r.device, &viewInfo, nil, &view); res != vulkan.Success {
		return vulkan.NullImageView, errors.Wrap(resultError(res), "create image view")
	}
	return view, nil
}

func (r *Renderer) createDepthResources() error {
	image, memory, err := r.createImage(r.swapchainExtent.Width, r.swapchainExtent.Height, r.depthFormat,
		vulkan.ImageTilingOptimal, vulkan.ImageUsageFlags(vulkan.ImageUsageDepthStencilAttachmentBit), vulkan.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return errors.Wrap(err, "create depth image")
	}
	r.batch.push("depth image", func() {
		vulkan.DestroyImage(r.device, image, nil)
		vulkan.FreeMemory(r.device, memory, nil)
	})

	view, err := r.createImageView(image, r.depthFormat, vulkan.ImageAspectFlags(vulkan.ImageAspectDepthBit))
	if err != nil {
		return errors.Wrap(err, "create depth image view")
	}
	r.depthImageView = view
	r.batch.push("depth image view", func() {
		vulkan.DestroyImageView(r.device, view, nil)
		r.depthImageView = vulkan.NullImageView
	})
	return nil
}
