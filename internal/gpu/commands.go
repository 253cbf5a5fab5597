package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
)

var clearColor = []float32{0.05, 0.05, 0.08, 1.0}

func (r *Renderer) createCommandPool() error {
	poolInfo := vulkan.CommandPoolCreateInfo{
		SType:            vulkan.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: r.queues.graphicsFamily,
	}
	var pool vulkan.CommandPool
	if res := vulkan.CreateCommandPool(r.device, &poolInfo, nil, &pool); res != vulkan.Success {
		return errors.Wrap(resultError(res), "create command pool")
	}
	r.commandPool = pool
	r.longLived.push("command pool", func() {
		vulkan.DestroyCommandPool(r.device, pool, nil)
	})
	return nil
}

// createCommandBuffers allocates and records one command buffer per
// framebuffer. The recordings stay valid until the next swapchain rebuild.
func (r *Renderer) createCommandBuffers() error {
	count := uint32(len(r.framebuffers))
	allocInfo := vulkan.CommandBufferAllocateInfo{
		SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        r.commandPool,
		Level:              vulkan.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	}
	buffers := make([]vulkan.CommandBuffer, count)
	if res := vulkan.AllocateCommandBuffers(r.device, &allocInfo, buffers); res != vulkan.Success {
		return errors.Wrap(resultError(res), "allocate command buffers")
	}
	r.commandBuffers = buffers
	r.batch.push("command buffers", func() {
		vulkan.FreeCommandBuffers(r.device, r.commandPool, uint32(len(buffers)), buffers)
		r.commandBuffers = nil
	})

	for i, cb := range buffers {
		if err := r.recordCommandBuffer(cb, i); err != nil {
			return errors.Wrapf(err, "record command buffer %d", i)
		}
	}
	return nil
}

func (r *Renderer) recordCommandBuffer(cb vulkan.CommandBuffer, image int) error {
	beginInfo := vulkan.CommandBufferBeginInfo{
		SType: vulkan.StructureTypeCommandBufferBeginInfo,
	}
	if res := vulkan.BeginCommandBuffer(cb, &beginInfo); res != vulkan.Success {
		return errors.Wrap(resultError(res), "begin command buffer")
	}

	clearValues := []vulkan.ClearValue{
		vulkan.NewClearValue(clearColor),
		vulkan.NewClearDepthStencil(1.0, 0),
	}
	renderPassInfo := vulkan.RenderPassBeginInfo{
		SType:       vulkan.StructureTypeRenderPassBeginInfo,
		RenderPass:  r.renderPass,
		Framebuffer: r.framebuffers[image],
		RenderArea: vulkan.Rect2D{
			Offset: vulkan.Offset2D{X: 0, Y: 0},
			Extent: r.swapchainExtent,
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}

	vulkan.CmdBeginRenderPass(cb, &renderPassInfo, vulkan.SubpassContentsInline)
	vulkan.CmdBindPipeline(cb, vulkan.PipelineBindPointGraphics, r.pipeline)
	vulkan.CmdBindVertexBuffers(cb, 0, 1, []vulkan.Buffer{r.vertexBuffer}, []vulkan.DeviceSize{0})
	vulkan.CmdBindIndexBuffer(cb, r.indexBuffer, 0, vulkan.IndexTypeUint32)
	vulkan.CmdBindDescriptorSets(cb, vulkan.PipelineBindPointGraphics, r.pipelineLayout, 0, 1, []vulkan.DescriptorSet{r.descriptorSets[image]}, 0, nil)
	vulkan.CmdDrawIndexed(cb, uint32(len(cubeIndices)), 1, 0, 0, 0)
	vulkan.CmdEndRenderPass(cb)

	if res := vulkan.EndCommandBuffer(cb); res != vulkan.Success {
		return errors.Wrap(resultError(res), "end command buffer")
	}
	return nil
}
