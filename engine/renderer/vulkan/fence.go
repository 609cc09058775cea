package vulkan

import (
	"fmt"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func asFence(f metadata.Fence, site string) (*VulkanFence, error) {
	vf, ok := f.(*VulkanFence)
	if !ok {
		return nil, fmt.Errorf("%s: %T is not a vulkan fence", site, f)
	}
	return vf, nil
}

func (d *Driver) CreateFence(signaled bool) (metadata.Fence, error) {
	fence := &VulkanFence{
		// Make sure to signal the fence if required.
		IsSignaled: signaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var handle vk.Fence
	if err := vkCheck("vkCreateFence", vk.CreateFence(d.context.Device.LogicalDevice, &fenceCreateInfo, d.context.Allocator, &handle)); err != nil {
		return nil, err
	}
	fence.Handle = handle
	return fence, nil
}

func (d *Driver) DestroyFence(f metadata.Fence) {
	vf, err := asFence(f, "DestroyFence")
	if err != nil {
		core.LogError(err.Error())
		return
	}
	if vf.Handle != vk.NullFence {
		vk.DestroyFence(d.context.Device.LogicalDevice, vf.Handle, d.context.Allocator)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}

/**
 * @brief Blocks until the fence signals. A timeout is reported as an error.
 */
func (d *Driver) WaitFence(f metadata.Fence, timeout time.Duration) error {
	vf, err := asFence(f, "WaitFence")
	if err != nil {
		return err
	}
	if vf.IsSignaled {
		// If already signaled, do not wait.
		return nil
	}
	result := vk.WaitForFences(d.context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, uint64(timeout.Nanoseconds()))
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		return fmt.Errorf("vkWaitForFences: timed out after %s", timeout)
	}
	return vkCheck("vkWaitForFences", result)
}

func (d *Driver) ResetFence(f metadata.Fence) error {
	vf, err := asFence(f, "ResetFence")
	if err != nil {
		return err
	}
	if err := vkCheck("vkResetFences", vk.ResetFences(d.context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle})); err != nil {
		return err
	}
	vf.IsSignaled = false
	return nil
}

func (d *Driver) FenceSignaled(f metadata.Fence) bool {
	vf, err := asFence(f, "FenceSignaled")
	if err != nil {
		core.LogError(err.Error())
		return false
	}
	if vf.IsSignaled {
		return true
	}
	if vk.GetFenceStatus(d.context.Device.LogicalDevice, vf.Handle) == vk.Success {
		vf.IsSignaled = true
	}
	return vf.IsSignaled
}

func (d *Driver) CreateSemaphore() (metadata.Semaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var handle vk.Semaphore
	if err := vkCheck("vkCreateSemaphore", vk.CreateSemaphore(d.context.Device.LogicalDevice, &semaphoreCreateInfo, d.context.Allocator, &handle)); err != nil {
		return nil, err
	}
	return handle, nil
}

func (d *Driver) DestroySemaphore(s metadata.Semaphore) {
	handle, ok := s.(vk.Semaphore)
	if !ok || handle == vk.NullSemaphore {
		return
	}
	vk.DestroySemaphore(d.context.Device.LogicalDevice, handle, d.context.Allocator)
}
