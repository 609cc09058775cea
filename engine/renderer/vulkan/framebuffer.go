package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-renderer/engine/core"
)

type VulkanFramebuffer struct {
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
}

func (d *Driver) framebufferCreate(width, height uint32, attachments []vk.ImageView) (*VulkanFramebuffer, error) {
	outFramebuffer := &VulkanFramebuffer{
		Attachments: append([]vk.ImageView(nil), attachments...),
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      d.context.MainRenderpass.Handle,
		AttachmentCount: uint32(len(outFramebuffer.Attachments)),
		PAttachments:    outFramebuffer.Attachments,
		Width:           width,
		Height:          height,
		Layers:          1,
	}

	var handle vk.Framebuffer
	if err := vkCheck("vkCreateFramebuffer", vk.CreateFramebuffer(d.context.Device.LogicalDevice, &framebufferCreateInfo, d.context.Allocator, &handle)); err != nil {
		return nil, err
	}
	outFramebuffer.Handle = handle
	return outFramebuffer, nil
}

// CreateFramebuffers builds one framebuffer per swapchain image, in render pass attachment order.
func (d *Driver) CreateFramebuffers(width, height uint32) error {
	swapchain := d.context.Swapchain
	targets := d.context.Targets
	d.context.Framebuffers = make([]*VulkanFramebuffer, 0, swapchain.ImageCount)
	for i := range swapchain.Views {
		var attachments []vk.ImageView
		if d.context.MainRenderpass.Resolve {
			attachments = []vk.ImageView{targets.Color.View, targets.Depth.View, swapchain.Views[i]}
		} else {
			attachments = []vk.ImageView{swapchain.Views[i], targets.Depth.View}
		}
		fb, err := d.framebufferCreate(width, height, attachments)
		if err != nil {
			return err
		}
		d.context.Framebuffers = append(d.context.Framebuffers, fb)
	}
	core.LogDebug("%d framebuffers created.", len(d.context.Framebuffers))
	return nil
}

func (d *Driver) DestroyFramebuffers() {
	for _, fb := range d.context.Framebuffers {
		vk.DestroyFramebuffer(d.context.Device.LogicalDevice, fb.Handle, d.context.Allocator)
		fb.Handle = vk.NullFramebuffer
		fb.Attachments = nil
	}
	d.context.Framebuffers = nil
}
