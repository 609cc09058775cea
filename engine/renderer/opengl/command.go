package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

/**
 * @brief A list of GL calls replayed at Submit. Dynamic buffers referenced by
 * the recording are uploaded right before the replay.
 */
type CommandBuffer struct {
	cmds      []func()
	recording bool
	inPass    bool
	// Bytes of each dynamic buffer the recorded commands read.
	uploads map[*Buffer]int
	// Index buffer bound at record time, for draw offsets.
	index       *Buffer
	indexOffset int
}

func (cb *CommandBuffer) record(fn func()) {
	cb.cmds = append(cb.cmds, fn)
}

func (cb *CommandBuffer) reads(b *Buffer, end int) {
	if b.shadow == nil {
		return
	}
	if end > cb.uploads[b] {
		cb.uploads[b] = end
	}
}

func asCommandBuffer(cb metadata.CommandBuffer, site string) (*CommandBuffer, error) {
	gcb, ok := cb.(*CommandBuffer)
	if !ok {
		return nil, fmt.Errorf("%s: %T is not an opengl command buffer", site, cb)
	}
	return gcb, nil
}

func recording(cb metadata.CommandBuffer, site string) *CommandBuffer {
	gcb, err := asCommandBuffer(cb, site)
	if err != nil {
		core.LogError(err.Error())
		return nil
	}
	if !gcb.recording {
		core.LogError("%s: command buffer is not recording", site)
		return nil
	}
	return gcb
}

func (d *Driver) CreateCommandBuffers(count int) ([]metadata.CommandBuffer, error) {
	cbs := make([]metadata.CommandBuffer, count)
	for i := range cbs {
		cbs[i] = &CommandBuffer{uploads: make(map[*Buffer]int)}
	}
	return cbs, nil
}

func (d *Driver) FreeCommandBuffers(cbs []metadata.CommandBuffer) {
	for _, cb := range cbs {
		if gcb, ok := cb.(*CommandBuffer); ok {
			gcb.cmds = nil
			clear(gcb.uploads)
		}
	}
}

func (d *Driver) BeginCommandBuffer(cb metadata.CommandBuffer) error {
	gcb, err := asCommandBuffer(cb, "BeginCommandBuffer")
	if err != nil {
		return err
	}
	gcb.cmds = gcb.cmds[:0]
	clear(gcb.uploads)
	gcb.recording = true
	gcb.inPass = false
	gcb.index, gcb.indexOffset = nil, 0
	return nil
}

func (d *Driver) EndCommandBuffer(cb metadata.CommandBuffer) error {
	gcb, err := asCommandBuffer(cb, "EndCommandBuffer")
	if err != nil {
		return err
	}
	if !gcb.recording {
		return fmt.Errorf("EndCommandBuffer: command buffer is not recording")
	}
	gcb.recording = false
	return nil
}

/**
 * @brief Binds the default framebuffer and the pass state. The back buffer
 * keeps its contents between passes of a frame.
 */
func (d *Driver) BeginRenderPass(cb metadata.CommandBuffer, imageIndex uint32) {
	gcb := recording(cb, "BeginRenderPass")
	if gcb == nil {
		return
	}
	multisample := d.renderPass != nil && d.renderPass.Resolve()
	supersample := multisample && d.renderPass.Supersampling
	gcb.inPass = true
	gcb.record(func() {
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		gl.BindVertexArray(d.vao)
		gl.Enable(gl.SCISSOR_TEST)
		gl.Enable(gl.DEPTH_TEST)
		setEnabled(gl.MULTISAMPLE, multisample)
		setEnabled(gl.SAMPLE_SHADING, supersample)
		if supersample {
			gl.MinSampleShading(1.0)
		}
		d.replay.reset()
	})
}

func (d *Driver) EndRenderPass(cb metadata.CommandBuffer) {
	if gcb := recording(cb, "EndRenderPass"); gcb != nil {
		gcb.inPass = false
	}
}

// The default framebuffer is always presentable.
func (d *Driver) TransitionToPresent(cb metadata.CommandBuffer, imageIndex uint32) {}

/**
 * @brief Uploads the dynamic data the recording reads, replays it and inserts
 * a sync object for fence.
 */
func (d *Driver) Submit(cb metadata.CommandBuffer, wait, signal metadata.Semaphore, fence metadata.Fence) error {
	gcb, err := asCommandBuffer(cb, "Submit")
	if err != nil {
		return err
	}
	if gcb.recording {
		return fmt.Errorf("Submit: command buffer is still recording")
	}
	waitSem, ok := wait.(*Semaphore)
	if !ok {
		return fmt.Errorf("Submit: %T is not an opengl semaphore", wait)
	}
	signalSem, ok := signal.(*Semaphore)
	if !ok {
		return fmt.Errorf("Submit: %T is not an opengl semaphore", signal)
	}
	gf, err := asFence(fence, "Submit")
	if err != nil {
		return err
	}

	for b, n := range gcb.uploads {
		b.flush(n)
	}
	for _, cmd := range gcb.cmds {
		cmd()
	}
	if code := gl.GetError(); code != gl.NO_ERROR {
		return core.NewFatalError("Submit", glErrorString(code))
	}

	if gf.sync != 0 {
		gl.DeleteSync(gf.sync)
	}
	gf.sync = gl.FenceSync(gl.SYNC_GPU_COMMANDS_COMPLETE, 0)
	gf.signaled = false
	waitSem.signaled = false
	signalSem.signaled = true
	return nil
}
