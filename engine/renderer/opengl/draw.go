package opengl

import (
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

// replayState is the context state the replayed commands rely on.
type replayState struct {
	pipeline     *Pipeline
	vertex       *Buffer
	vertexOffset int
	attribsDirty bool
}

func (r *replayState) reset() {
	*r = replayState{attribsDirty: true}
}

func (d *Driver) setupAttributes() {
	r := &d.replay
	if !r.attribsDirty || r.pipeline == nil || r.vertex == nil {
		return
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, r.vertex.ID)
	for i := uint32(0); i < 6; i++ {
		gl.DisableVertexAttribArray(i)
	}
	for _, a := range r.pipeline.attributes {
		gl.EnableVertexAttribArray(a.location)
		gl.VertexAttribPointerWithOffset(a.location, a.size, a.xtype, a.normalized, r.pipeline.stride, uintptr(r.vertexOffset)+a.offset)
	}
	r.attribsDirty = false
}

func bufferArg(buf metadata.NativeBuffer, site string) *Buffer {
	b, err := asBuffer(buf, site)
	if err != nil {
		core.LogError(err.Error())
		return nil
	}
	return b
}

func (d *Driver) BindIndexBuffer(cb metadata.CommandBuffer, buf metadata.NativeBuffer, offset int) {
	gcb, b := recording(cb, "BindIndexBuffer"), bufferArg(buf, "BindIndexBuffer")
	if gcb == nil || b == nil {
		return
	}
	gcb.record(func() {
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, b.ID)
	})
	gcb.indexOffset = offset
	gcb.index = b
}

func (d *Driver) BindVertexBuffer(cb metadata.CommandBuffer, buf metadata.NativeBuffer, offset int) {
	gcb, b := recording(cb, "BindVertexBuffer"), bufferArg(buf, "BindVertexBuffer")
	if gcb == nil || b == nil {
		return
	}
	gcb.reads(b, b.Size)
	gcb.record(func() {
		if d.replay.vertex != b || d.replay.vertexOffset != offset {
			d.replay.vertex = b
			d.replay.vertexOffset = offset
			d.replay.attribsDirty = true
		}
	})
}

func (d *Driver) BindUniformBuffer(cb metadata.CommandBuffer, binding int, buf metadata.NativeBuffer, offset, size int) {
	gcb, b := recording(cb, "BindUniformBuffer"), bufferArg(buf, "BindUniformBuffer")
	if gcb == nil || b == nil {
		return
	}
	gcb.reads(b, offset+size)
	gcb.record(func() {
		gl.BindBufferRange(gl.UNIFORM_BUFFER, uint32(binding), b.ID, offset, size)
	})
}

/**
 * @brief firstIndex counts indexes past the offset of the bound index buffer.
 * Instancing is not used by the backend; instanceCount must be 1.
 */
func (d *Driver) DrawIndexed(cb metadata.CommandBuffer, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int) {
	gcb := recording(cb, "DrawIndexed")
	if gcb == nil {
		return
	}
	if gcb.index == nil {
		core.LogError("DrawIndexed: no index buffer bound")
		return
	}
	byteOffset := gcb.indexOffset + firstIndex*metadata.TRIINDEX_SIZE
	gcb.reads(gcb.index, byteOffset+indexCount*metadata.TRIINDEX_SIZE)
	if instanceCount != 1 || firstInstance != 0 {
		core.LogWarn("DrawIndexed: %d instances from %d drawn as one", instanceCount, firstInstance)
	}
	gcb.record(func() {
		if d.replay.pipeline == nil {
			return
		}
		d.setupAttributes()
		gl.DrawElementsBaseVertex(gl.TRIANGLES, int32(indexCount), gl.UNSIGNED_SHORT, gl.PtrOffset(byteOffset), int32(vertexOffset))
	})
}

func (d *Driver) surfaceHeight() uint32 {
	if d.swapchain == nil {
		return 0
	}
	return d.swapchain.Height
}

func (d *Driver) SetScissor(cb metadata.CommandBuffer, x, y, w, h int32) {
	gcb := recording(cb, "SetScissor")
	if gcb == nil {
		return
	}
	y = flipY(y, h, d.surfaceHeight())
	gcb.record(func() {
		gl.Scissor(x, y, max(w, 0), max(h, 0))
	})
}

func (d *Driver) SetViewport(cb metadata.CommandBuffer, x, y, w, h int32) {
	gcb := recording(cb, "SetViewport")
	if gcb == nil {
		return
	}
	y = flipY(y, h, d.surfaceHeight())
	gcb.record(func() {
		gl.Viewport(x, y, w, h)
	})
}

// OpenGL 4.1 core has no depth bounds test.
func (d *Driver) SetDepthBounds(cb metadata.CommandBuffer, zmin, zmax float32) {}

func (d *Driver) SetPolygonOffset(cb metadata.CommandBuffer, scale, bias float32) {
	gcb := recording(cb, "SetPolygonOffset")
	if gcb == nil {
		return
	}
	gcb.record(func() {
		gl.PolygonOffset(scale, bias)
	})
}

/**
 * @brief Clears the whole back buffer regardless of the scissor and the
 * write masks of the bound pipeline, which is re-applied at the next bind.
 */
func (d *Driver) ClearAttachments(cb metadata.CommandBuffer, clear metadata.ClearDesc) {
	gcb := recording(cb, "ClearAttachments")
	if gcb == nil {
		return
	}
	if !gcb.inPass {
		core.LogWarn("ClearAttachments: recorded outside a render pass")
		return
	}
	var mask uint32
	if clear.Color {
		mask |= gl.COLOR_BUFFER_BIT
	}
	if clear.Depth {
		mask |= gl.DEPTH_BUFFER_BIT
	}
	if clear.Stencil {
		mask |= gl.STENCIL_BUFFER_BIT
	}
	if mask == 0 {
		return
	}
	gcb.record(func() {
		gl.Disable(gl.SCISSOR_TEST)
		gl.ColorMask(true, true, true, true)
		gl.DepthMask(true)
		gl.StencilMask(0xFF)
		gl.ClearColor(clear.R, clear.G, clear.B, clear.A)
		gl.ClearDepth(1.0)
		gl.ClearStencil(int32(clear.StencilValue))
		gl.Clear(mask)
		gl.Enable(gl.SCISSOR_TEST)
		if d.replay.pipeline != nil {
			applyState(d.replay.pipeline.Desc)
		}
	})
}
