package gpu

import (
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/vulkan-go/vulkan"
)

type uniformBufferObject struct {
	Model mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

// Three column-major 4x4 float matrices, as declared by the vertex shader.
var _ [192]byte = [unsafe.Sizeof(uniformBufferObject{})]byte{}

const uniformSize = vulkan.DeviceSize(unsafe.Sizeof(uniformBufferObject{}))

// cubeTransform returns the matrices for a cube that has been spinning for
// elapsed, rendered into a target of the given size.
func cubeTransform(elapsed time.Duration, extent vulkan.Extent2D) uniformBufferObject {
	angle := float32(elapsed.Seconds()) * mgl32.DegToRad(45)
	aspect := float32(1)
	if extent.Width > 0 && extent.Height > 0 {
		aspect = float32(extent.Width) / float32(extent.Height)
	}

	proj := mgl32.Perspective(mgl32.DegToRad(45), aspect, 0.1, 10.0)
	// Vulkan clip space has Y pointing down.
	proj[5] *= -1

	return uniformBufferObject{
		Model: mgl32.HomogRotate3D(angle, mgl32.Vec3{0, 0, 1}),
		View: mgl32.LookAtV(
			mgl32.Vec3{3, 3, 3},
			mgl32.Vec3{0, 0, 0},
			mgl32.Vec3{0, 0, 1},
		),
		Proj: proj,
	}
}

func (r *Renderer) createUniformBuffers() error {
	count := len(r.swapchainImages)
	r.uniformBuffers = make([]vulkan.Buffer, 0, count)
	r.uniformMemory = make([]vulkan.DeviceMemory, 0, count)
	for i := 0; i < count; i++ {
		buffer, memory, err := r.createBuffer(uniformSize, vulkan.BufferUsageFlags(vulkan.BufferUsageUniformBufferBit), hostVisible)
		if err != nil {
			return errors.Wrapf(err, "uniform buffer %d", i)
		}
		r.uniformBuffers = append(r.uniformBuffers, buffer)
		r.uniformMemory = append(r.uniformMemory, memory)
		r.batch.push("uniform buffer", func() {
			vulkan.DestroyBuffer(r.device, buffer, nil)
			vulkan.FreeMemory(r.device, memory, nil)
		})
	}
	return nil
}

// createDescriptorSets allocates one set per swapchain image from a fresh pool
// and points each at its image's uniform buffer. Destroying the pool frees the sets.
func (r *Renderer) createDescriptorSets() error {
	count := uint32(len(r.swapchainImages))
	poolInfo := vulkan.DescriptorPoolCreateInfo{
		SType:         vulkan.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       count,
		PoolSizeCount: 1,
		PPoolSizes: []vulkan.DescriptorPoolSize{{
			Type:            vulkan.DescriptorTypeUniformBuffer,
			DescriptorCount: count,
		}},
	}
	var pool vulkan.DescriptorPool
	if res := vulkan.CreateDescriptorPool(r.device, &poolInfo, nil, &pool); res != vulkan.Success {
		return errors.Wrap(resultError(res), "create descriptor pool")
	}
	r.batch.push("descriptor pool", func() {
		vulkan.DestroyDescriptorPool(r.device, pool, nil)
		r.descriptorSets = nil
	})

	layouts := make([]vulkan.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = r.descriptorSetLayout
	}
	allocInfo := vulkan.DescriptorSetAllocateInfo{
		SType:              vulkan.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: count,
		PSetLayouts:        layouts,
	}
	r.descriptorSets = make([]vulkan.DescriptorSet, count)
	if res := vulkan.AllocateDescriptorSets(r.device, &allocInfo, &r.descriptorSets[0]); res != vulkan.Success {
		return errors.Wrap(resultError(res), "allocate descriptor sets")
	}

	for i, set := range r.descriptorSets {
		write := vulkan.WriteDescriptorSet{
			SType:           vulkan.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      0,
			DescriptorType:  vulkan.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			PBufferInfo: []vulkan.DescriptorBufferInfo{{
				Buffer: r.uniformBuffers[i],
				Range:  uniformSize,
			}},
		}
		vulkan.UpdateDescriptorSets(r.device, 1, []vulkan.WriteDescriptorSet{write}, 0, nil)
	}
	return nil
}

// UpdateUniforms writes this frame's transform into the uniform buffer of the
// acquired image.
func (r *Renderer) UpdateUniforms(image uint32) error {
	if int(image) >= len(r.uniformMemory) {
		return errors.Newf("gpu: no uniform buffer for image %d", image)
	}
	ubo := cubeTransform(time.Since(r.startTime), r.swapchainExtent)
	data := unsafe.Slice((*byte)(unsafe.Pointer(&ubo)), uniformSize)
	return r.mapWrite(r.uniformMemory[image], data)
}
