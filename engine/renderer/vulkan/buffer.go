package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

/**
 * @brief A buffer and its memory. Dynamic buffers live in host visible memory
 * and stay mapped for their whole life; static buffers are device local and
 * only written through a staging copy.
 */
type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   int
	Kind   metadata.BufferKind
	Usage  metadata.BufferUsage

	mapped []byte
}

func bufferUsageFlags(kind metadata.BufferKind) vk.BufferUsageFlags {
	usage := vk.BufferUsageTransferDstBit
	switch kind {
	case metadata.BUFFER_KIND_VERTEX:
		usage |= vk.BufferUsageVertexBufferBit
	case metadata.BUFFER_KIND_INDEX:
		usage |= vk.BufferUsageIndexBufferBit
	case metadata.BUFFER_KIND_UNIFORM:
		usage |= vk.BufferUsageUniformBufferBit
	}
	return vk.BufferUsageFlags(usage)
}

func (d *Driver) allocateBuffer(size int, usage vk.BufferUsageFlags, memoryFlags vk.MemoryPropertyFlagBits) (vk.Buffer, vk.DeviceMemory, error) {
	device := d.context.Device.LogicalDevice
	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if err := vkCheck("vkCreateBuffer", vk.CreateBuffer(device, &bufferCreateInfo, d.context.Allocator, &buffer)); err != nil {
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, buffer, &requirements)
	requirements.Deref()

	memoryType := d.context.FindMemoryIndex(requirements.MemoryTypeBits, uint32(memoryFlags))
	if memoryType == -1 {
		vk.DestroyBuffer(device, buffer, d.context.Allocator)
		return vk.NullBuffer, vk.NullDeviceMemory, core.NewFatalError("CreateBuffer", "no suitable memory type")
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if err := vkCheck("vkAllocateMemory", vk.AllocateMemory(device, &allocateInfo, d.context.Allocator, &memory)); err != nil {
		vk.DestroyBuffer(device, buffer, d.context.Allocator)
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}
	if err := vkCheck("vkBindBufferMemory", vk.BindBufferMemory(device, buffer, memory, 0)); err != nil {
		vk.FreeMemory(device, memory, d.context.Allocator)
		vk.DestroyBuffer(device, buffer, d.context.Allocator)
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}
	return buffer, memory, nil
}

func (d *Driver) mapMemory(memory vk.DeviceMemory, size int) ([]byte, error) {
	var ptr unsafe.Pointer
	if err := vkCheck("vkMapMemory", vk.MapMemory(d.context.Device.LogicalDevice, memory, 0, vk.DeviceSize(size), 0, &ptr)); err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(ptr), size), nil
}

func (d *Driver) CreateBuffer(kind metadata.BufferKind, size int, usage metadata.BufferUsage) (metadata.NativeBuffer, error) {
	buf := &VulkanBuffer{Size: size, Kind: kind, Usage: usage}
	err := d.locks.SafeCall(BufferManagement, func() error {
		memoryFlags := vk.MemoryPropertyDeviceLocalBit
		if usage == metadata.BU_DYNAMIC {
			memoryFlags = vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
		}
		handle, memory, err := d.allocateBuffer(size, bufferUsageFlags(kind), memoryFlags)
		if err != nil {
			return err
		}
		buf.Handle, buf.Memory = handle, memory
		if usage == metadata.BU_DYNAMIC {
			if buf.mapped, err = d.mapMemory(memory, size); err != nil {
				d.freeBuffer(buf)
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *Driver) freeBuffer(buf *VulkanBuffer) {
	device := d.context.Device.LogicalDevice
	if buf.mapped != nil {
		vk.UnmapMemory(device, buf.Memory)
		buf.mapped = nil
	}
	if buf.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, buf.Memory, d.context.Allocator)
		buf.Memory = vk.NullDeviceMemory
	}
	if buf.Handle != vk.NullBuffer {
		vk.DestroyBuffer(device, buf.Handle, d.context.Allocator)
		buf.Handle = vk.NullBuffer
	}
}

func asBuffer(buf metadata.NativeBuffer, site string) (*VulkanBuffer, error) {
	vb, ok := buf.(*VulkanBuffer)
	if !ok {
		return nil, fmt.Errorf("%s: %T is not a vulkan buffer", site, buf)
	}
	return vb, nil
}

func (d *Driver) DestroyBuffer(buf metadata.NativeBuffer) {
	vb, err := asBuffer(buf, "DestroyBuffer")
	if err != nil {
		core.LogError(err.Error())
		return
	}
	_ = d.locks.SafeCall(BufferManagement, func() error {
		d.freeBuffer(vb)
		return nil
	})
}

// MapBuffer returns the persistent mapping of a dynamic buffer.
func (d *Driver) MapBuffer(buf metadata.NativeBuffer, mode metadata.MapMode) ([]byte, error) {
	vb, err := asBuffer(buf, "MapBuffer")
	if err != nil {
		return nil, err
	}
	if vb.mapped == nil {
		return nil, fmt.Errorf("MapBuffer: %s buffer of %d bytes is not host visible", vb.Kind, vb.Size)
	}
	return vb.mapped, nil
}

// Coherent memory stays mapped, so there is nothing to flush.
func (d *Driver) UnmapBuffer(buf metadata.NativeBuffer) error {
	_, err := asBuffer(buf, "UnmapBuffer")
	return err
}

/**
 * @brief Writes data at offset. Dynamic buffers are written in place, static
 * buffers through a staging buffer and a blocking copy on the graphics queue.
 */
func (d *Driver) UploadBuffer(buf metadata.NativeBuffer, offset int, data []byte) error {
	vb, err := asBuffer(buf, "UploadBuffer")
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(data) > vb.Size {
		return fmt.Errorf("UploadBuffer: %d+%d past buffer end %d", offset, len(data), vb.Size)
	}
	if len(data) == 0 {
		return nil
	}
	if vb.mapped != nil {
		copy(vb.mapped[offset:], data)
		return nil
	}

	staging := &VulkanBuffer{Size: len(data), Kind: vb.Kind, Usage: metadata.BU_DYNAMIC}
	err = d.locks.SafeCall(BufferManagement, func() error {
		handle, memory, err := d.allocateBuffer(len(data), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
			vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
		if err != nil {
			return err
		}
		staging.Handle, staging.Memory = handle, memory
		staging.mapped, err = d.mapMemory(memory, len(data))
		return err
	})
	defer func() {
		_ = d.locks.SafeCall(BufferManagement, func() error {
			d.freeBuffer(staging)
			return nil
		})
	}()
	if err != nil {
		return err
	}
	copy(staging.mapped, data)

	cb, err := d.AllocateAndBeginSingleUse()
	if err != nil {
		return err
	}
	region := vk.BufferCopy{
		SrcOffset: 0,
		DstOffset: vk.DeviceSize(offset),
		Size:      vk.DeviceSize(len(data)),
	}
	vk.CmdCopyBuffer(cb, staging.Handle, vb.Handle, 1, []vk.BufferCopy{region})
	return d.EndSingleUse(cb)
}
