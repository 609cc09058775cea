package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

type VulkanRenderpass struct {
	Handle  vk.RenderPass
	Resolve bool
	Samples vk.SampleCountFlagBits
}

/**
 * @brief One subpass drawing into [color, depth] or, when multisampling,
 * [msaa color, depth, resolve]. Attachments are loaded and stored so the pass
 * can be suspended and resumed within a frame; clears are explicit.
 */
func (d *Driver) CreateRenderPass(desc metadata.RenderTargetDesc) error {
	samples := toVkSamples(desc.Samples)
	resolve := desc.Resolve()

	attachments := []vk.AttachmentDescription{
		// Color attachment
		{
			Format:         toVkFormat(desc.ColorFormat),
			Samples:        samples,
			LoadOp:         vk.AttachmentLoadOpLoad,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutColorAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
		},
		// Depth attachment
		{
			Format:         toVkFormat(desc.DepthFormat),
			Samples:        samples,
			LoadOp:         vk.AttachmentLoadOpLoad,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpLoad,
			StencilStoreOp: vk.AttachmentStoreOpStore,
			InitialLayout:  vk.ImageLayoutDepthStencilAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}

	colorRef := []vk.AttachmentReference{{Attachment: 0, Layout: vk.ImageLayoutColorAttachmentOptimal}}
	depthRef := vk.AttachmentReference{Attachment: 1, Layout: vk.ImageLayoutDepthStencilAttachmentOptimal}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       colorRef,
		PDepthStencilAttachment: &depthRef,
	}

	if resolve {
		// The swapchain image only receives the resolve.
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         toVkFormat(desc.ColorFormat),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpDontCare,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutColorAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
		})
		subpass.PResolveAttachments = []vk.AttachmentReference{{Attachment: 2, Layout: vk.ImageLayoutColorAttachmentOptimal}}
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageTransferBit),
		SrcAccessMask: vk.AccessFlags(vk.AccessTransferReadBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit |
			vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit),
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var handle vk.RenderPass
	if err := vkCheck("vkCreateRenderPass", vk.CreateRenderPass(d.context.Device.LogicalDevice, &renderpassCreateInfo, d.context.Allocator, &handle)); err != nil {
		return err
	}
	d.context.MainRenderpass = &VulkanRenderpass{Handle: handle, Resolve: resolve, Samples: samples}
	core.LogDebug("Render pass created (%d attachments).", len(attachments))
	return nil
}

func (d *Driver) DestroyRenderPass() {
	rp := d.context.MainRenderpass
	if rp == nil {
		return
	}
	if rp.Handle != vk.NullRenderPass {
		vk.DestroyRenderPass(d.context.Device.LogicalDevice, rp.Handle, d.context.Allocator)
	}
	d.context.MainRenderpass = nil
}

/**
 * @brief Begins the pass on the framebuffer of imageIndex. The first begin of
 * a frame moves the swapchain image into its attachment layout.
 */
func (d *Driver) BeginRenderPass(cb metadata.CommandBuffer, imageIndex uint32) {
	vcb, ok := cb.(*VulkanCommandBuffer)
	if !ok {
		core.LogError("BeginRenderPass: %T is not a vulkan command buffer", cb)
		return
	}
	swapchain := d.context.Swapchain
	if swapchain.layouts[imageIndex] != vk.ImageLayoutColorAttachmentOptimal {
		// Contents of a freshly acquired image are undefined.
		imageBarrier(vcb.Handle, swapchain.Images[imageIndex], colorRange(), layoutTransition{
			oldLayout: vk.ImageLayoutUndefined,
			newLayout: vk.ImageLayoutColorAttachmentOptimal,
			dstAccess: vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit,
			srcStage:  vk.PipelineStageColorAttachmentOutputBit,
			dstStage:  vk.PipelineStageColorAttachmentOutputBit,
		})
		swapchain.layouts[imageIndex] = vk.ImageLayoutColorAttachmentOptimal
	}

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  d.context.MainRenderpass.Handle,
		Framebuffer: d.context.Framebuffers[imageIndex].Handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: swapchain.Extent,
		},
	}
	vk.CmdBeginRenderPass(vcb.Handle, &beginInfo, vk.SubpassContentsInline)
	vcb.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
	// Rebind pipeline and uniforms on the first draw of the pass.
	vcb.invalidate()
}

func (d *Driver) EndRenderPass(cb metadata.CommandBuffer) {
	vcb, ok := cb.(*VulkanCommandBuffer)
	if !ok {
		core.LogError("EndRenderPass: %T is not a vulkan command buffer", cb)
		return
	}
	if vcb.State != COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		return
	}
	vk.CmdEndRenderPass(vcb.Handle)
	vcb.State = COMMAND_BUFFER_STATE_RECORDING
}
