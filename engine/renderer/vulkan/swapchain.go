package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

type VulkanSwapchain struct {
	ImageFormat vk.SurfaceFormat
	Handle      vk.Swapchain
	Extent      vk.Extent2D
	ImageCount  uint32
	Images      []vk.Image
	Views       []vk.ImageView

	// Layout each image is left in by the commands recorded so far.
	layouts []vk.ImageLayout
}

func clampU32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}

func (d *Driver) CreateSwapchain(desc metadata.SwapchainDesc) (metadata.SwapchainInfo, error) {
	device := d.context.Device
	var caps vk.SurfaceCapabilities
	if err := vkCheck("vkGetPhysicalDeviceSurfaceCapabilities", vk.GetPhysicalDeviceSurfaceCapabilities(device.PhysicalDevice, d.context.Surface, &caps)); err != nil {
		return metadata.SwapchainInfo{}, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	swapchain := &VulkanSwapchain{
		ImageFormat: vk.SurfaceFormat{
			Format:     toVkFormat(desc.Format.Format),
			ColorSpace: toVkColorSpace(desc.Format.ColorSpace),
		},
		Extent: vk.Extent2D{Width: desc.Width, Height: desc.Height},
	}

	// Clamp to the value allowed by the GPU.
	swapchain.Extent.Width = clampU32(swapchain.Extent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
	swapchain.Extent.Height = clampU32(swapchain.Extent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.context.Surface,
		MinImageCount:    desc.MinImageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      swapchain.Extent,
		ImageArrayLayers: 1,
		// Transfer source for CopyFrameBuffer.
		ImageUsage:     vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferSrcBit),
		PreTransform:   caps.CurrentTransform,
		CompositeAlpha: vk.CompositeAlphaOpaqueBit,
		PresentMode:    toVkPresentMode(desc.PresentMode),
		Clipped:        vk.True,
	}

	// Setup the queue family indices
	if desc.GraphicsFamily != desc.PresentFamily {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{uint32(desc.GraphicsFamily), uint32(desc.PresentFamily)}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	if err := vkCheck("vkCreateSwapchainKHR", vk.CreateSwapchain(device.LogicalDevice, &swapchainCreateInfo, d.context.Allocator, &handle)); err != nil {
		return metadata.SwapchainInfo{}, err
	}
	swapchain.Handle = handle
	d.context.Swapchain = swapchain

	// Images
	if err := vkCheck("vkGetSwapchainImagesKHR", vk.GetSwapchainImages(device.LogicalDevice, handle, &swapchain.ImageCount, nil)); err != nil {
		return metadata.SwapchainInfo{}, err
	}
	swapchain.Images = make([]vk.Image, swapchain.ImageCount)
	if err := vkCheck("vkGetSwapchainImagesKHR", vk.GetSwapchainImages(device.LogicalDevice, handle, &swapchain.ImageCount, swapchain.Images)); err != nil {
		return metadata.SwapchainInfo{}, err
	}
	swapchain.layouts = make([]vk.ImageLayout, swapchain.ImageCount)

	// Views
	swapchain.Views = make([]vk.ImageView, swapchain.ImageCount)
	for i := range swapchain.Images {
		view, err := d.createImageView(swapchain.Images[i], swapchain.ImageFormat.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			return metadata.SwapchainInfo{}, err
		}
		swapchain.Views[i] = view
	}
	d.imageCount = swapchain.ImageCount

	core.LogInfo("Swapchain created successfully.")
	return metadata.SwapchainInfo{
		ImageCount: swapchain.ImageCount,
		Width:      swapchain.Extent.Width,
		Height:     swapchain.Extent.Height,
	}, nil
}

func (d *Driver) DestroySwapchain() {
	swapchain := d.context.Swapchain
	if swapchain == nil {
		return
	}
	// Only destroy the views, not the images, since those are owned by the swapchain and are thus
	// destroyed when it is.
	for _, view := range swapchain.Views {
		vk.DestroyImageView(d.context.Device.LogicalDevice, view, d.context.Allocator)
	}
	vk.DestroySwapchain(d.context.Device.LogicalDevice, swapchain.Handle, d.context.Allocator)
	d.context.Swapchain = nil
	d.imageCount = 0
}

/**
 * @brief Returns the index of the next image. An out of date swapchain boots
 * the frame with core.ErrSwapchainBooting; the caller recreates it.
 */
func (d *Driver) AcquireNextImage(acquired metadata.Semaphore) (uint32, error) {
	sem, ok := acquired.(vk.Semaphore)
	if !ok {
		return 0, fmt.Errorf("AcquireNextImage: %T is not a vulkan semaphore", acquired)
	}
	var imageIndex uint32
	result := vk.AcquireNextImage(d.context.Device.LogicalDevice, d.context.Swapchain.Handle, vk.MaxUint64, sem, vk.NullFence, &imageIndex)
	switch result {
	case vk.Success, vk.Suboptimal:
		return imageIndex, nil
	case vk.ErrorOutOfDate:
		return 0, fmt.Errorf("vkAcquireNextImageKHR: %w", core.ErrSwapchainBooting)
	}
	return 0, vkCheck("vkAcquireNextImageKHR", result)
}

func (d *Driver) Present(imageIndex uint32, wait metadata.Semaphore) error {
	sem, ok := wait.(vk.Semaphore)
	if !ok {
		return fmt.Errorf("Present: %T is not a vulkan semaphore", wait)
	}
	device := d.context.Device
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{sem},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{d.context.Swapchain.Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	return d.locks.SafeQueueCall(uint32(device.PresentQueueIndex), func() error {
		result := vk.QueuePresent(device.PresentQueue, &presentInfo)
		if result == vk.ErrorOutOfDate || result == vk.Suboptimal {
			// The resize event recreates the swapchain before the next frame.
			core.LogDebug("vkQueuePresentKHR: %s", VulkanResultString(result, false))
			return nil
		}
		return vkCheck("vkQueuePresentKHR", result)
	})
}
