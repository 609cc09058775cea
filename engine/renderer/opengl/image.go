package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

// Image is an RGBA8 texture with a framebuffer object to blit into it.
type Image struct {
	Texture     uint32
	Framebuffer uint32
}

func (d *Driver) CreateRenderImage(name string, width, height uint32) (*metadata.RenderImage, error) {
	img := &Image{}
	gl.GenTextures(1, &img.Texture)
	gl.BindTexture(gl.TEXTURE_2D, img.Texture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	gl.GenFramebuffers(1, &img.Framebuffer)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, img.Framebuffer)
	gl.FramebufferTexture2D(gl.DRAW_FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, img.Texture, 0)
	status := gl.CheckFramebufferStatus(gl.DRAW_FRAMEBUFFER)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		d.destroyImage(img)
		return nil, fmt.Errorf("render image '%s': framebuffer incomplete (0x%04x)", name, status)
	}
	core.LogDebug("Render image '%s' %dx%d (%s).", name, width, height, core.FormatBytes(uint64(width)*uint64(height)*4))
	return &metadata.RenderImage{Name: name, Width: width, Height: height, Native: img}, nil
}

func (d *Driver) destroyImage(img *Image) {
	if img.Framebuffer != 0 {
		gl.DeleteFramebuffers(1, &img.Framebuffer)
		img.Framebuffer = 0
	}
	if img.Texture != 0 {
		gl.DeleteTextures(1, &img.Texture)
		img.Texture = 0
	}
}

func (d *Driver) DestroyRenderImage(img *metadata.RenderImage) {
	if img == nil {
		return
	}
	if image, ok := img.Native.(*Image); ok {
		d.destroyImage(image)
	}
	img.Native = nil
}

// clampRect clips a top-left origin rectangle to a width x height surface.
func clampRect(x, y, w, h int32, width, height uint32) (int32, int32, int32, int32) {
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	w = min(w, int32(width)-x)
	h = min(h, int32(height)-y)
	return x, y, max(w, 0), max(h, 0)
}

/**
 * @brief Blits a region of the back buffer into img. A multisampled back
 * buffer is resolved by the blit.
 */
func (d *Driver) CopyFrameBuffer(cb metadata.CommandBuffer, img *metadata.RenderImage, imageIndex uint32, x, y, w, h int32) {
	gcb := recording(cb, "CopyFrameBuffer")
	if gcb == nil {
		return
	}
	dst, ok := img.Native.(*Image)
	if !ok {
		core.LogError("CopyFrameBuffer: render image '%s' has no opengl image", img.Name)
		return
	}
	if d.swapchain == nil {
		core.LogError("CopyFrameBuffer: no swapchain")
		return
	}
	height := d.swapchain.Height
	x, y, w, h = clampRect(x, y, w, h, d.swapchain.Width, height)
	_, _, w, h = clampRect(0, 0, w, h, img.Width, img.Height)
	if w == 0 || h == 0 {
		return
	}
	srcY := flipY(y, h, height)
	gcb.record(func() {
		gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
		gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, dst.Framebuffer)
		gl.Disable(gl.SCISSOR_TEST)
		gl.BlitFramebuffer(x, srcY, x+w, srcY+h, 0, 0, w, h, gl.COLOR_BUFFER_BIT, gl.NEAREST)
		gl.Enable(gl.SCISSOR_TEST)
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	})
}
