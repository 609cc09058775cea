package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

func recording(cb metadata.CommandBuffer, site string) *VulkanCommandBuffer {
	vcb, err := asCommandBuffer(cb, site)
	if err != nil {
		core.LogError(err.Error())
		return nil
	}
	return vcb
}

func nativeBuffer(buf metadata.NativeBuffer, site string) *VulkanBuffer {
	vb, err := asBuffer(buf, site)
	if err != nil {
		core.LogError(err.Error())
		return nil
	}
	return vb
}

func (d *Driver) BindIndexBuffer(cb metadata.CommandBuffer, buf metadata.NativeBuffer, offset int) {
	vcb, vb := recording(cb, "BindIndexBuffer"), nativeBuffer(buf, "BindIndexBuffer")
	if vcb == nil || vb == nil {
		return
	}
	vk.CmdBindIndexBuffer(vcb.Handle, vb.Handle, vk.DeviceSize(offset), vk.IndexTypeUint16)
}

func (d *Driver) BindVertexBuffer(cb metadata.CommandBuffer, buf metadata.NativeBuffer, offset int) {
	vcb, vb := recording(cb, "BindVertexBuffer"), nativeBuffer(buf, "BindVertexBuffer")
	if vcb == nil || vb == nil {
		return
	}
	vk.CmdBindVertexBuffers(vcb.Handle, 0, 1, []vk.Buffer{vb.Handle}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

// BindUniformBuffer records the range for binding. The descriptor set is written at the next draw.
func (d *Driver) BindUniformBuffer(cb metadata.CommandBuffer, binding int, buf metadata.NativeBuffer, offset, size int) {
	vcb, vb := recording(cb, "BindUniformBuffer"), nativeBuffer(buf, "BindUniformBuffer")
	if vcb == nil || vb == nil {
		return
	}
	if binding < 0 || binding >= VULKAN_UNIFORM_BINDING_COUNT {
		core.LogError("BindUniformBuffer: binding %d out of range", binding)
		return
	}
	next := uniformBinding{buffer: vb.Handle, offset: vk.DeviceSize(offset), size: vk.DeviceSize(size)}
	if vcb.bindings[binding] != next {
		vcb.bindings[binding] = next
		vcb.bindingsDirty = true
	}
}

func (d *Driver) DrawIndexed(cb metadata.CommandBuffer, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int) {
	vcb := recording(cb, "DrawIndexed")
	if vcb == nil {
		return
	}
	if vcb.pipeline == nil {
		core.LogError("DrawIndexed: no pipeline bound")
		return
	}
	if err := d.flushBindings(vcb); err != nil {
		core.LogError("DrawIndexed: %s", err)
		return
	}
	vk.CmdDrawIndexed(vcb.Handle, uint32(indexCount), uint32(instanceCount), uint32(firstIndex), int32(vertexOffset), uint32(firstInstance))
}

func (d *Driver) SetScissor(cb metadata.CommandBuffer, x, y, w, h int32) {
	vcb := recording(cb, "SetScissor")
	if vcb == nil {
		return
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: x, Y: y},
		Extent: vk.Extent2D{Width: uint32(max(w, 0)), Height: uint32(max(h, 0))},
	}
	vk.CmdSetScissor(vcb.Handle, 0, 1, []vk.Rect2D{scissor})
}

func (d *Driver) SetViewport(cb metadata.CommandBuffer, x, y, w, h int32) {
	vcb := recording(cb, "SetViewport")
	if vcb == nil {
		return
	}
	viewport := vk.Viewport{
		X:        float32(x),
		Y:        float32(y),
		Width:    float32(w),
		Height:   float32(h),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	vk.CmdSetViewport(vcb.Handle, 0, 1, []vk.Viewport{viewport})
}

// SetDepthBounds is a no-op on devices without the depthBounds feature.
func (d *Driver) SetDepthBounds(cb metadata.CommandBuffer, zmin, zmax float32) {
	vcb := recording(cb, "SetDepthBounds")
	if vcb == nil || !d.context.Device.DepthBounds {
		return
	}
	vk.CmdSetDepthBounds(vcb.Handle, zmin, zmax)
}

func (d *Driver) SetPolygonOffset(cb metadata.CommandBuffer, scale, bias float32) {
	vcb := recording(cb, "SetPolygonOffset")
	if vcb == nil {
		return
	}
	vk.CmdSetDepthBias(vcb.Handle, bias, 0.0, scale)
}

/**
 * @brief Clears the requested aspects over the whole render area. Recorded
 * inside the render pass.
 */
func (d *Driver) ClearAttachments(cb metadata.CommandBuffer, clear metadata.ClearDesc) {
	vcb := recording(cb, "ClearAttachments")
	if vcb == nil {
		return
	}
	if vcb.State != COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		core.LogWarn("ClearAttachments: recorded outside a render pass")
		return
	}

	attachments := make([]vk.ClearAttachment, 0, 2)
	if clear.Color {
		attachments = append(attachments, vk.ClearAttachment{
			AspectMask:      vk.ImageAspectFlags(vk.ImageAspectColorBit),
			ColorAttachment: 0,
			ClearValue:      vk.NewClearValue([]float32{clear.R, clear.G, clear.B, clear.A}),
		})
	}
	var aspect vk.ImageAspectFlagBits
	if clear.Depth {
		aspect |= vk.ImageAspectDepthBit
	}
	if clear.Stencil {
		aspect |= vk.ImageAspectStencilBit
	}
	if aspect != 0 {
		attachments = append(attachments, vk.ClearAttachment{
			AspectMask: vk.ImageAspectFlags(aspect),
			ClearValue: vk.NewClearDepthStencil(1.0, uint32(clear.StencilValue)),
		})
	}
	if len(attachments) == 0 {
		return
	}

	width, height := clear.Width, clear.Height
	if width == 0 || height == 0 {
		width, height = d.context.Swapchain.Extent.Width, d.context.Swapchain.Extent.Height
	}
	rect := vk.ClearRect{
		Rect: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: width, Height: height},
		},
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
	vk.CmdClearAttachments(vcb.Handle, uint32(len(attachments)), attachments, 1, []vk.ClearRect{rect})
}
