package gpu

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
)

const hostVisible = vulkan.MemoryPropertyHostVisibleBit | vulkan.MemoryPropertyHostCoherentBit

// asBytes views a slice of plain values as raw bytes without copying.
func asBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(zero)))
}

func (r *Renderer) createBuffer(size vulkan.DeviceSize, usage vulkan.BufferUsageFlags, properties vulkan.MemoryPropertyFlagBits) (vulkan.Buffer, vulkan.DeviceMemory, error) {
	bufferInfo := vulkan.BufferCreateInfo{
		SType:       vulkan.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vulkan.SharingModeExclusive,
	}
	var buffer vulkan.Buffer
	if res := vulkan.CreateBuffer(r.device, &bufferInfo, nil, &buffer); res != vulkan.Success {
		return vulkan.NullBuffer, vulkan.NullDeviceMemory, errors.Wrap(resultError(res), "create buffer")
	}

	var memReq vulkan.MemoryRequirements
	vulkan.GetBufferMemoryRequirements(r.device, buffer, &memReq)
	memReq.Deref()

	memoryType, err := r.findMemoryType(memReq.MemoryTypeBits, properties)
	if err != nil {
		vulkan.DestroyBuffer(r.device, buffer, nil)
		return vulkan.NullBuffer, vulkan.NullDeviceMemory, err
	}
	allocInfo := vulkan.MemoryAllocateInfo{
		SType:           vulkan.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReq.Size,
		MemoryTypeIndex: memoryType,
	}
	var memory vulkan.DeviceMemory
	if res := vulkan.AllocateMemory(r.device, &allocInfo, nil, &memory); res != vulkan.Success {
		vulkan.DestroyBuffer(r.device, buffer, nil)
		return vulkan.NullBuffer, vulkan.NullDeviceMemory, errors.Wrap(resultError(res), "allocate buffer memory")
	}
	if res := vulkan.BindBufferMemory(r.device, buffer, memory, 0); res != vulkan.Success {
		vulkan.FreeMemory(r.device, memory, nil)
		vulkan.DestroyBuffer(r.device, buffer, nil)
		return vulkan.NullBuffer, vulkan.NullDeviceMemory, errors.Wrap(resultError(res), "bind buffer memory")
	}
	return buffer, memory, nil
}

// mapWrite copies data to the start of host-visible memory. The memory is
// unmapped before mapWrite returns, whether or not the copy happened.
func (r *Renderer) mapWrite(memory vulkan.DeviceMemory, data []byte) error {
	var ptr unsafe.Pointer
	if res := vulkan.MapMemory(r.device, memory, 0, vulkan.DeviceSize(len(data)), 0, &ptr); res != vulkan.Success {
		return errors.Wrap(resultError(res), "map memory")
	}
	defer vulkan.UnmapMemory(r.device, memory)
	copy(unsafe.Slice((*byte)(ptr), len(data)), data)
	return nil
}

// createStaticBuffer uploads data into a new host-visible buffer owned by the
// long-lived destroy list.
func (r *Renderer) createStaticBuffer(name string, usage vulkan.BufferUsageFlagBits, data []byte) (vulkan.Buffer, error) {
	buffer, memory, err := r.createBuffer(vulkan.DeviceSize(len(data)), vulkan.BufferUsageFlags(usage), hostVisible)
	if err != nil {
		return vulkan.NullBuffer, errors.Wrapf(err, "create %s", name)
	}
	r.longLived.push(name, func() {
		vulkan.DestroyBuffer(r.device, buffer, nil)
		vulkan.FreeMemory(r.device, memory, nil)
	})
	if err := r.mapWrite(memory, data); err != nil {
		return vulkan.NullBuffer, errors.Wrapf(err, "upload %s", name)
	}
	return buffer, nil
}
