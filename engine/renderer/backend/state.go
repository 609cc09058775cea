package backend

import (
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/math"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

// Stencil value the shadow volumes count from.
const STENCIL_SHADOW_TEST_VALUE = 128

// commandBuffer returns the buffer being recorded, or false outside a frame.
func (b *Backend) commandBuffer(site string) (metadata.CommandBuffer, bool) {
	if b.state != STATE_FRAME_IN_PROGRESS {
		b.warnings.Warn(b.counter, "no-frame-"+site, "%s called outside a frame", site)
		return nil, false
	}
	return b.slots[b.currentFrameData].CommandBuffer, true
}

// SetDefaultState resets the state bits and opens the scissor to the whole swapchain.
func (b *Backend) SetDefaultState() {
	b.glStateBits = 0
	b.GLState(0)
	b.stencilOperations = [metadata.STENCIL_FACE_NUM]uint64{}
	b.currentScissor = math.ScreenRect{X2: int32(b.swapchain.Width), Y2: int32(b.swapchain.Height)}
	if cb, ok := b.commandBufferQuiet(); ok {
		b.driver.SetScissor(cb, 0, 0, int32(b.swapchain.Width), int32(b.swapchain.Height))
	}
}

func (b *Backend) commandBufferQuiet() (metadata.CommandBuffer, bool) {
	if b.state != STATE_FRAME_IN_PROGRESS {
		return nil, false
	}
	return b.slots[b.currentFrameData].CommandBuffer, true
}

/**
 * @brief Replaces the state bits, keeping the sticky ones. Mirror views force
 * GLS_MIRROR_VIEW so the pipeline flips the winding.
 */
func (b *Backend) GLState(stateBits uint64) {
	b.glStateBits = stateBits | (b.glStateBits & metadata.GLS_KEEP)
	if b.viewDef != nil && b.viewDef.IsMirror {
		b.glStateBits |= metadata.GLS_MIRROR_VIEW
	}
}

func (b *Backend) StateBits() uint64 {
	return b.glStateBits
}

// SeparateStencil sets the stencil operations of one face.
func (b *Backend) SeparateStencil(face metadata.StencilFace, stencilBits uint64) {
	b.stencilOperations[face] = stencilBits
}

func (b *Backend) StencilOperations(face metadata.StencilFace) uint64 {
	return b.stencilOperations[face]
}

func (b *Backend) Clear(color, depth, stencil bool, stencilValue byte, r, g, bl, a float32) {
	cb, ok := b.commandBuffer("Clear")
	if !ok {
		return
	}
	b.driver.ClearAttachments(cb, metadata.ClearDesc{
		Color:        color,
		Depth:        depth,
		Stencil:      stencil,
		StencilValue: stencilValue,
		R:            r,
		G:            g,
		B:            bl,
		A:            a,
		Width:        b.swapchain.Width,
		Height:       b.swapchain.Height,
	})
}

/**
 * @brief Restricts the depth test to [zmin, zmax]. 0, 0 disables the bounds.
 */
func (b *Backend) DepthBoundsTest(zmin, zmax float32) {
	if zmin > zmax {
		return
	}
	if zmin == 0 && zmax == 0 {
		b.glStateBits &^= metadata.GLS_DEPTH_TEST_MASK
		return
	}
	b.glStateBits |= metadata.GLS_DEPTH_TEST_MASK
	if cb, ok := b.commandBuffer("DepthBoundsTest"); ok {
		b.driver.SetDepthBounds(cb, zmin, zmax)
	}
}

func (b *Backend) PolygonOffset(scale, bias float32) {
	if cb, ok := b.commandBuffer("PolygonOffset"); ok {
		b.driver.SetPolygonOffset(cb, scale, bias)
	}
}

func (b *Backend) Scissor(x, y, w, h int32) {
	if cb, ok := b.commandBuffer("Scissor"); ok {
		b.driver.SetScissor(cb, x, y, w, h)
	}
}

func (b *Backend) Viewport(x, y, w, h int32) {
	if cb, ok := b.commandBuffer("Viewport"); ok {
		b.driver.SetViewport(cb, x, y, w, h)
	}
}

/**
 * @brief Copies a region of the image being rendered into img. The render
 * pass is suspended around the copy.
 */
func (b *Backend) CopyFrameBuffer(img *metadata.RenderImage, x, y, w, h int32) {
	cb, ok := b.commandBuffer("CopyFrameBuffer")
	if !ok {
		return
	}
	if img == nil {
		core.LogError("CopyFrameBuffer: nil image")
		return
	}
	b.driver.EndRenderPass(cb)
	b.driver.CopyFrameBuffer(cb, img, b.imageIndex, x, y, w, h)
	b.driver.BeginRenderPass(cb, b.imageIndex)
	b.pc.CopyFrameBuffer.Add(1)
}
