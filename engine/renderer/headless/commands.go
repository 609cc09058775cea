package headless

import (
	"fmt"
	"maps"

	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

func (d *Driver) CreatePipeline(desc metadata.PipelineDesc) (metadata.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreatePipeline")
	if d.renderPass == nil {
		return nil, fmt.Errorf("headless: pipeline %q without render pass", desc.Program)
	}
	p := &Pipeline{ID: d.id(), Desc: desc}
	d.livePipelines[p] = struct{}{}
	return p, nil
}

func (d *Driver) DestroyPipeline(p metadata.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DestroyPipeline")
	delete(d.livePipelines, p.(*Pipeline))
}

func (d *Driver) BindPipeline(cb metadata.CommandBuffer, p metadata.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("BindPipeline")
	d.boundPipeline = p.(*Pipeline)
}

func (d *Driver) BindIndexBuffer(cb metadata.CommandBuffer, buf metadata.NativeBuffer, offset int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("BindIndexBuffer")
	d.boundIndex = buf.(*Buffer)
	d.boundIndexOff = offset
}

func (d *Driver) BindVertexBuffer(cb metadata.CommandBuffer, buf metadata.NativeBuffer, offset int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("BindVertexBuffer")
	d.boundVertex = buf.(*Buffer)
	d.boundVertexOff = offset
}

func (d *Driver) BindUniformBuffer(cb metadata.CommandBuffer, binding int, buf metadata.NativeBuffer, offset, size int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("BindUniformBuffer")
	d.boundUniforms[binding] = buf.(*Buffer)
}

func (d *Driver) DrawIndexed(cb metadata.CommandBuffer, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DrawIndexed")
	d.draws = append(d.draws, DrawCall{
		IndexCount:   indexCount,
		FirstIndex:   firstIndex,
		VertexOffset: vertexOffset,
		IndexBuffer:  d.boundIndex,
		IndexOffset:  d.boundIndexOff,
		VertexBuffer: d.boundVertex,
		VertBinding:  d.boundVertexOff,
		Pipeline:     d.boundPipeline,
		Uniforms:     maps.Clone(d.boundUniforms),
	})
}

// Draws returns every recorded draw call.
func (d *Driver) Draws() []DrawCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DrawCall(nil), d.draws...)
}

func (d *Driver) SetScissor(cb metadata.CommandBuffer, x, y, w, h int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("SetScissor")
	d.scissor = [4]int32{x, y, w, h}
}

func (d *Driver) SetViewport(cb metadata.CommandBuffer, x, y, w, h int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("SetViewport")
	d.viewport = [4]int32{x, y, w, h}
}

// Scissor returns the last scissor rectangle as x, y, w, h.
func (d *Driver) Scissor() [4]int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scissor
}

func (d *Driver) Viewport() [4]int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewport
}

func (d *Driver) SetDepthBounds(cb metadata.CommandBuffer, zmin, zmax float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("SetDepthBounds")
	d.depthBounds = [2]float32{zmin, zmax}
}

func (d *Driver) SetPolygonOffset(cb metadata.CommandBuffer, scale, bias float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("SetPolygonOffset")
	d.polygonOffset = [2]float32{scale, bias}
}

func (d *Driver) ClearAttachments(cb metadata.CommandBuffer, clear metadata.ClearDesc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("ClearAttachments")
	d.clears = append(d.clears, clear)
}

func (d *Driver) Clears() []metadata.ClearDesc {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]metadata.ClearDesc(nil), d.clears...)
}

func (d *Driver) CreateRenderImage(name string, width, height uint32) (*metadata.RenderImage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateRenderImage")
	img := &metadata.RenderImage{Name: name, Width: width, Height: height, Native: make([]byte, width*height*4)}
	d.renderImages[name] = img
	return img, nil
}

func (d *Driver) DestroyRenderImage(img *metadata.RenderImage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DestroyRenderImage")
	delete(d.renderImages, img.Name)
}

func (d *Driver) CopyFrameBuffer(cb metadata.CommandBuffer, img *metadata.RenderImage, imageIndex uint32, x, y, w, h int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CopyFrameBuffer")
	d.copiedToImages = append(d.copiedToImages, img.Name)
}

// CopiedImages lists the images the frame buffer was copied into, in order.
func (d *Driver) CopiedImages() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.copiedToImages...)
}

// Reset forgets recorded draws, clears, presents and call counts.
func (d *Driver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draws = nil
	d.clears = nil
	d.presented = nil
	d.copiedToImages = nil
	clear(d.calls)
}

var _ metadata.Driver = (*Driver)(nil)
