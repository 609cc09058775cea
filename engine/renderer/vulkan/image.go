package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Format vk.Format
	Width  uint32
	Height uint32

	layout vk.ImageLayout
}

/** @brief Depth-stencil target and, when multisampling, the color target it resolves from. */
type VulkanRenderTargets struct {
	Desc    metadata.RenderTargetDesc
	Samples vk.SampleCountFlagBits
	Depth   *VulkanImage
	// MSAA color attachment; nil without a resolve.
	Color *VulkanImage
}

func (d *Driver) ImageCreate(width, height uint32, format vk.Format, samples vk.SampleCountFlagBits, usage vk.ImageUsageFlags, memoryFlags vk.MemoryPropertyFlags, viewAspect vk.ImageAspectFlags) (*VulkanImage, error) {
	device := d.context.Device.LogicalDevice
	image := &VulkanImage{Format: format, Width: width, Height: height, layout: vk.ImageLayoutUndefined}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       samples,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var handle vk.Image
	if err := vkCheck("vkCreateImage", vk.CreateImage(device, &imageCreateInfo, d.context.Allocator, &handle)); err != nil {
		return nil, err
	}
	image.Handle = handle

	// Query memory requirements.
	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType := d.context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(memoryFlags))
	if memoryType == -1 {
		d.ImageDestroy(image)
		return nil, core.NewFatalError("ImageCreate", "no suitable memory type")
	}

	memoryAllocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if err := vkCheck("vkAllocateMemory", vk.AllocateMemory(device, &memoryAllocateInfo, d.context.Allocator, &memory)); err != nil {
		d.ImageDestroy(image)
		return nil, err
	}
	image.Memory = memory

	if err := vkCheck("vkBindImageMemory", vk.BindImageMemory(device, handle, memory, 0)); err != nil {
		d.ImageDestroy(image)
		return nil, err
	}

	view, err := d.createImageView(handle, format, viewAspect)
	if err != nil {
		d.ImageDestroy(image)
		return nil, err
	}
	image.View = view
	return image, nil
}

func (d *Driver) createImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if err := vkCheck("vkCreateImageView", vk.CreateImageView(d.context.Device.LogicalDevice, &viewCreateInfo, d.context.Allocator, &view)); err != nil {
		return vk.NullImageView, err
	}
	return view, nil
}

func (d *Driver) ImageDestroy(image *VulkanImage) {
	if image == nil {
		return
	}
	device := d.context.Device.LogicalDevice
	if image.View != vk.NullImageView {
		vk.DestroyImageView(device, image.View, d.context.Allocator)
		image.View = vk.NullImageView
	}
	if image.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, image.Memory, d.context.Allocator)
		image.Memory = vk.NullDeviceMemory
	}
	if image.Handle != vk.NullImage {
		vk.DestroyImage(device, image.Handle, d.context.Allocator)
		image.Handle = vk.NullImage
	}
}

func colorRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LevelCount: 1,
		LayerCount: 1,
	}
}

func depthStencilRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit),
		LevelCount: 1,
		LayerCount: 1,
	}
}

type layoutTransition struct {
	oldLayout, newLayout vk.ImageLayout
	srcAccess, dstAccess vk.AccessFlagBits
	srcStage, dstStage   vk.PipelineStageFlagBits
}

func imageBarrier(cb vk.CommandBuffer, image vk.Image, subresource vk.ImageSubresourceRange, t layoutTransition) {
	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(t.srcStage),
		vk.PipelineStageFlags(t.dstStage),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(t.srcAccess),
			DstAccessMask:       vk.AccessFlags(t.dstAccess),
			OldLayout:           t.oldLayout,
			NewLayout:           t.newLayout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               image,
			SubresourceRange:    subresource,
		}})
}

/**
 * @brief Creates the depth-stencil target and, when multisampling, the color
 * target. Both are moved to their attachment layouts once, here.
 */
func (d *Driver) CreateRenderTargets(desc metadata.RenderTargetDesc) error {
	targets := &VulkanRenderTargets{Desc: desc, Samples: toVkSamples(desc.Samples)}
	d.context.Targets = targets

	depth, err := d.ImageCreate(desc.Width, desc.Height, toVkFormat(desc.DepthFormat), targets.Samples,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		vk.ImageAspectFlags(vk.ImageAspectDepthBit|vk.ImageAspectStencilBit))
	if err != nil {
		return err
	}
	targets.Depth = depth

	if desc.Resolve() {
		color, err := d.ImageCreate(desc.Width, desc.Height, toVkFormat(desc.ColorFormat), targets.Samples,
			vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit|vk.ImageUsageTransientAttachmentBit),
			vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
			vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			return err
		}
		targets.Color = color
	}

	cb, err := d.AllocateAndBeginSingleUse()
	if err != nil {
		return err
	}
	imageBarrier(cb, depth.Handle, depthStencilRange(), layoutTransition{
		oldLayout: vk.ImageLayoutUndefined,
		newLayout: vk.ImageLayoutDepthStencilAttachmentOptimal,
		dstAccess: vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit,
		srcStage:  vk.PipelineStageTopOfPipeBit,
		dstStage:  vk.PipelineStageEarlyFragmentTestsBit,
	})
	depth.layout = vk.ImageLayoutDepthStencilAttachmentOptimal
	if targets.Color != nil {
		imageBarrier(cb, targets.Color.Handle, colorRange(), layoutTransition{
			oldLayout: vk.ImageLayoutUndefined,
			newLayout: vk.ImageLayoutColorAttachmentOptimal,
			dstAccess: vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit,
			srcStage:  vk.PipelineStageTopOfPipeBit,
			dstStage:  vk.PipelineStageColorAttachmentOutputBit,
		})
		targets.Color.layout = vk.ImageLayoutColorAttachmentOptimal
	}
	return d.EndSingleUse(cb)
}

func (d *Driver) DestroyRenderTargets() {
	targets := d.context.Targets
	if targets == nil {
		return
	}
	d.ImageDestroy(targets.Color)
	d.ImageDestroy(targets.Depth)
	d.context.Targets = nil
}

func (d *Driver) CreateRenderImage(name string, width, height uint32) (*metadata.RenderImage, error) {
	image, err := d.ImageCreate(width, height, vk.FormatR8g8b8a8Unorm, vk.SampleCount1Bit,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return nil, err
	}
	return &metadata.RenderImage{Name: name, Width: width, Height: height, Native: image}, nil
}

func (d *Driver) DestroyRenderImage(img *metadata.RenderImage) {
	if img == nil {
		return
	}
	if image, ok := img.Native.(*VulkanImage); ok {
		d.ImageDestroy(image)
	}
	img.Native = nil
}

// clampRect clips a top-left origin rectangle to a w x h surface.
func clampRect(x, y, w, h int32, width, height uint32) (int32, int32, int32, int32) {
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x+w > int32(width) {
		w = int32(width) - x
	}
	if y+h > int32(height) {
		h = int32(height) - y
	}
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return x, y, w, h
}

/**
 * @brief Blits a region of the swapchain image into img. Must be recorded
 * outside the render pass; the swapchain image is returned to its attachment
 * layout afterwards.
 */
func (d *Driver) CopyFrameBuffer(cb metadata.CommandBuffer, img *metadata.RenderImage, imageIndex uint32, x, y, w, h int32) {
	vcb, ok := cb.(*VulkanCommandBuffer)
	if !ok {
		core.LogError("CopyFrameBuffer: %T is not a vulkan command buffer", cb)
		return
	}
	dst, ok := img.Native.(*VulkanImage)
	if !ok {
		core.LogError("CopyFrameBuffer: render image '%s' has no vulkan image", img.Name)
		return
	}
	swapchain := d.context.Swapchain
	x, y, w, h = clampRect(x, y, w, h, swapchain.Extent.Width, swapchain.Extent.Height)
	_, _, w, h = clampRect(0, 0, w, h, dst.Width, dst.Height)
	if w == 0 || h == 0 {
		return
	}
	src := swapchain.Images[imageIndex]

	imageBarrier(vcb.Handle, src, colorRange(), layoutTransition{
		oldLayout: vk.ImageLayoutColorAttachmentOptimal,
		newLayout: vk.ImageLayoutTransferSrcOptimal,
		srcAccess: vk.AccessColorAttachmentWriteBit,
		dstAccess: vk.AccessTransferReadBit,
		srcStage:  vk.PipelineStageColorAttachmentOutputBit,
		dstStage:  vk.PipelineStageTransferBit,
	})
	imageBarrier(vcb.Handle, dst.Handle, colorRange(), layoutTransition{
		oldLayout: dst.layout,
		newLayout: vk.ImageLayoutTransferDstOptimal,
		srcAccess: vk.AccessShaderReadBit,
		dstAccess: vk.AccessTransferWriteBit,
		srcStage:  vk.PipelineStageFragmentShaderBit,
		dstStage:  vk.PipelineStageTransferBit,
	})

	layers := vk.ImageSubresourceLayers{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LayerCount: 1,
	}
	region := vk.ImageBlit{
		SrcSubresource: layers,
		SrcOffsets:     [2]vk.Offset3D{{X: x, Y: y, Z: 0}, {X: x + w, Y: y + h, Z: 1}},
		DstSubresource: layers,
		DstOffsets:     [2]vk.Offset3D{{X: 0, Y: 0, Z: 0}, {X: w, Y: h, Z: 1}},
	}
	vk.CmdBlitImage(vcb.Handle,
		src, vk.ImageLayoutTransferSrcOptimal,
		dst.Handle, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageBlit{region}, vk.FilterNearest)

	imageBarrier(vcb.Handle, dst.Handle, colorRange(), layoutTransition{
		oldLayout: vk.ImageLayoutTransferDstOptimal,
		newLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		srcAccess: vk.AccessTransferWriteBit,
		dstAccess: vk.AccessShaderReadBit,
		srcStage:  vk.PipelineStageTransferBit,
		dstStage:  vk.PipelineStageFragmentShaderBit,
	})
	dst.layout = vk.ImageLayoutShaderReadOnlyOptimal

	imageBarrier(vcb.Handle, src, colorRange(), layoutTransition{
		oldLayout: vk.ImageLayoutTransferSrcOptimal,
		newLayout: vk.ImageLayoutColorAttachmentOptimal,
		srcAccess: vk.AccessTransferReadBit,
		dstAccess: vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit,
		srcStage:  vk.PipelineStageTransferBit,
		dstStage:  vk.PipelineStageColorAttachmentOutputBit,
	})
	swapchain.layouts[imageIndex] = vk.ImageLayoutColorAttachmentOptimal
}

func (d *Driver) TransitionToPresent(cb metadata.CommandBuffer, imageIndex uint32) {
	vcb, ok := cb.(*VulkanCommandBuffer)
	if !ok {
		core.LogError("TransitionToPresent: %T is not a vulkan command buffer", cb)
		return
	}
	swapchain := d.context.Swapchain
	imageBarrier(vcb.Handle, swapchain.Images[imageIndex], colorRange(), layoutTransition{
		oldLayout: swapchain.layouts[imageIndex],
		newLayout: vk.ImageLayoutPresentSrc,
		srcAccess: vk.AccessColorAttachmentWriteBit,
		srcStage:  vk.PipelineStageColorAttachmentOutputBit,
		dstStage:  vk.PipelineStageBottomOfPipeBit,
	})
	swapchain.layouts[imageIndex] = vk.ImageLayoutPresentSrc
}
