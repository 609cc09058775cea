package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type uniformBinding struct {
	buffer vk.Buffer
	offset vk.DeviceSize
	size   vk.DeviceSize
}

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState

	// Descriptor sets for this command buffer's draws, reset when recording begins.
	descriptorPool vk.DescriptorPool
	setsAllocated  uint32

	bindings      [VULKAN_UNIFORM_BINDING_COUNT]uniformBinding
	bindingsDirty bool
	pipeline      *VulkanPipeline
}

func (v *VulkanCommandBuffer) invalidate() {
	v.pipeline = nil
	v.bindingsDirty = true
}

func (d *Driver) CreateCommandBuffers(count int) ([]metadata.CommandBuffer, error) {
	device := d.context.Device
	handles := make([]vk.CommandBuffer, count)
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        device.GraphicsCommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}
	err := d.locks.SafeCall(CommandBufferManagement, func() error {
		return vkCheck("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(device.LogicalDevice, &allocateInfo, handles))
	})
	if err != nil {
		return nil, err
	}

	cbs := make([]metadata.CommandBuffer, count)
	for i, h := range handles {
		vcb := &VulkanCommandBuffer{Handle: h, State: COMMAND_BUFFER_STATE_READY}
		pool, err := d.createDescriptorPool()
		if err != nil {
			return nil, err
		}
		vcb.descriptorPool = pool
		cbs[i] = vcb
	}
	return cbs, nil
}

func (d *Driver) FreeCommandBuffers(cbs []metadata.CommandBuffer) {
	device := d.context.Device
	handles := make([]vk.CommandBuffer, 0, len(cbs))
	for _, cb := range cbs {
		vcb, ok := cb.(*VulkanCommandBuffer)
		if !ok {
			continue
		}
		d.destroyDescriptorPool(vcb.descriptorPool)
		vcb.descriptorPool = vk.NullDescriptorPool
		handles = append(handles, vcb.Handle)
		vcb.Handle = nil
		vcb.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
	}
	if len(handles) == 0 {
		return
	}
	_ = d.locks.SafeCall(CommandBufferManagement, func() error {
		vk.FreeCommandBuffers(device.LogicalDevice, device.GraphicsCommandPool, uint32(len(handles)), handles)
		return nil
	})
}

func asCommandBuffer(cb metadata.CommandBuffer, site string) (*VulkanCommandBuffer, error) {
	vcb, ok := cb.(*VulkanCommandBuffer)
	if !ok {
		return nil, fmt.Errorf("%s: %T is not a vulkan command buffer", site, cb)
	}
	return vcb, nil
}

/**
 * @brief Starts recording. The descriptor pool of the command buffer is reset
 * here, so the GPU must be done with the previous recording.
 */
func (d *Driver) BeginCommandBuffer(cb metadata.CommandBuffer) error {
	vcb, err := asCommandBuffer(cb, "BeginCommandBuffer")
	if err != nil {
		return err
	}
	if err := vkCheck("vkResetDescriptorPool", vk.ResetDescriptorPool(d.context.Device.LogicalDevice, vcb.descriptorPool, 0)); err != nil {
		return err
	}
	vcb.setsAllocated = 0
	vcb.bindings = [VULKAN_UNIFORM_BINDING_COUNT]uniformBinding{}
	vcb.invalidate()

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vkCheck("vkBeginCommandBuffer", vk.BeginCommandBuffer(vcb.Handle, &beginInfo)); err != nil {
		return err
	}
	vcb.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (d *Driver) EndCommandBuffer(cb metadata.CommandBuffer) error {
	vcb, err := asCommandBuffer(cb, "EndCommandBuffer")
	if err != nil {
		return err
	}
	if err := vkCheck("vkEndCommandBuffer", vk.EndCommandBuffer(vcb.Handle)); err != nil {
		return err
	}
	vcb.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

// Submit waits on wait at color output, signals signal and fence on completion.
func (d *Driver) Submit(cb metadata.CommandBuffer, wait, signal metadata.Semaphore, fence metadata.Fence) error {
	vcb, err := asCommandBuffer(cb, "Submit")
	if err != nil {
		return err
	}
	waitSem, ok := wait.(vk.Semaphore)
	if !ok {
		return fmt.Errorf("Submit: %T is not a vulkan semaphore", wait)
	}
	signalSem, ok := signal.(vk.Semaphore)
	if !ok {
		return fmt.Errorf("Submit: %T is not a vulkan semaphore", signal)
	}
	vf, ok := fence.(*VulkanFence)
	if !ok {
		return fmt.Errorf("Submit: %T is not a vulkan fence", fence)
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{waitSem},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{vcb.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{signalSem},
	}
	device := d.context.Device
	err = d.locks.SafeQueueCall(uint32(device.GraphicsQueueIndex), func() error {
		return vkCheck("vkQueueSubmit", vk.QueueSubmit(device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vf.Handle))
	})
	if err != nil {
		return err
	}
	vf.IsSignaled = false
	vcb.State = COMMAND_BUFFER_STATE_SUBMITTED
	return nil
}

/**
 * Allocates and begins recording a one-shot command buffer from the graphics pool.
 */
func (d *Driver) AllocateAndBeginSingleUse() (vk.CommandBuffer, error) {
	device := d.context.Device
	handles := make([]vk.CommandBuffer, 1)
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        device.GraphicsCommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	err := d.locks.SafeCall(CommandBufferManagement, func() error {
		return vkCheck("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(device.LogicalDevice, &allocateInfo, handles))
	})
	if err != nil {
		return nil, err
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vkCheck("vkBeginCommandBuffer", vk.BeginCommandBuffer(handles[0], &beginInfo)); err != nil {
		d.freeSingleUse(handles[0])
		return nil, err
	}
	return handles[0], nil
}

/**
 * Ends recording, submits to and waits for the graphics queue, then frees the command buffer.
 */
func (d *Driver) EndSingleUse(cb vk.CommandBuffer) error {
	defer d.freeSingleUse(cb)
	if err := vkCheck("vkEndCommandBuffer", vk.EndCommandBuffer(cb)); err != nil {
		return err
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb},
	}
	device := d.context.Device
	return d.locks.SafeQueueCall(uint32(device.GraphicsQueueIndex), func() error {
		if err := vkCheck("vkQueueSubmit", vk.QueueSubmit(device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence)); err != nil {
			return err
		}
		// Wait for it to finish
		return vkCheck("vkQueueWaitIdle", vk.QueueWaitIdle(device.GraphicsQueue))
	})
}

func (d *Driver) freeSingleUse(cb vk.CommandBuffer) {
	device := d.context.Device
	_ = d.locks.SafeCall(CommandBufferManagement, func() error {
		vk.FreeCommandBuffers(device.LogicalDevice, device.GraphicsCommandPool, 1, []vk.CommandBuffer{cb})
		return nil
	})
}
