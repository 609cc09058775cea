package backend

import (
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

/**
 * @brief Acquires the next swapchain image, recycles the slot's garbage and
 * starts recording its command buffer inside the render pass.
 */
func (b *Backend) StartFrame() error {
	if b.state != STATE_INITIALIZED {
		return b.transition(STATE_FRAME_IN_PROGRESS)
	}
	fs := b.slots[b.currentFrameData]
	b.gc.setSlot(fs.Index)

	if fs.state == SLOT_PRESENTED {
		if n := b.gc.empty(fs.Index); n > 0 {
			core.LogDebug("released %d buffers of frame slot %d", n, fs.Index)
		}
		if err := fs.transition(SLOT_IDLE); err != nil {
			return err
		}
	}
	if err := fs.transition(SLOT_RECORDING); err != nil {
		core.LogError(err.Error())
		return err
	}
	b.state = STATE_FRAME_IN_PROGRESS

	imageIndex, err := b.driver.AcquireNextImage(fs.Acquired)
	if errors.Is(err, core.ErrSwapchainBooting) {
		// Nothing was recorded; the slot goes back to idle until Resize.
		fs.state = SLOT_IDLE
		b.state = STATE_INITIALIZED
		b.stale = true
		core.LogDebug("StartFrame: %s", err)
		return err
	}
	if err != nil {
		return core.WrapFatal(err, "AcquireNextImage")
	}
	b.imageIndex = imageIndex

	b.progs.StartFrame(fs.Index)
	fs.cacheSlot = b.cache.DrawSlot()

	if err := b.driver.BeginCommandBuffer(fs.CommandBuffer); err != nil {
		return core.WrapFatal(err, "BeginCommandBuffer")
	}
	b.driver.BeginRenderPass(fs.CommandBuffer, b.imageIndex)
	b.SetDefaultState()

	b.pc.Reset()
	b.frameStart = time.Now()
	return nil
}

/**
 * @brief Closes the render pass, moves the image to its presentable layout and
 * submits the slot. Never waits on the GPU.
 */
func (b *Backend) EndFrame() error {
	if b.state != STATE_FRAME_IN_PROGRESS {
		return fmt.Errorf("EndFrame outside a frame: %w", core.ErrInvalidTransition)
	}
	fs := b.slots[b.currentFrameData]
	cb := fs.CommandBuffer

	b.driver.EndRenderPass(cb)
	b.driver.TransitionToPresent(cb, b.imageIndex)
	if err := b.driver.EndCommandBuffer(cb); err != nil {
		return core.WrapFatal(err, "EndCommandBuffer")
	}
	if err := b.driver.Submit(cb, fs.Acquired, fs.RenderComplete, fs.Fence); err != nil {
		return core.WrapFatal(fmt.Errorf("%w: %w", core.ErrSubmit, err), "Submit")
	}
	if err := fs.transition(SLOT_SUBMITTED); err != nil {
		return err
	}
	b.pc.TotalMicroSec.Store(time.Since(b.frameStart).Microseconds())
	return b.transition(STATE_INITIALIZED)
}

/**
 * @brief Waits for the submitted slot, presents its image and advances to the
 * next slot. Returns immediately when nothing was submitted.
 */
func (b *Backend) BlockingSwapBuffers() error {
	if b.state == STATE_UNINITIALIZED {
		return fmt.Errorf("BlockingSwapBuffers: %w", core.ErrNotInitialized)
	}
	fs := b.slots[b.currentFrameData]
	if fs.state != SLOT_SUBMITTED {
		return nil
	}

	if err := b.driver.WaitFence(fs.Fence, FENCE_TIMEOUT); err != nil {
		return core.WrapFatal(err, "WaitFence")
	}
	if err := b.driver.ResetFence(fs.Fence); err != nil {
		return core.WrapFatal(err, "ResetFence")
	}
	if err := b.driver.Present(b.imageIndex, fs.RenderComplete); err != nil {
		return core.WrapFatal(err, "Present")
	}
	if err := fs.transition(SLOT_PRESENTED); err != nil {
		return err
	}

	b.counter++
	b.currentFrameData = int(b.counter % uint64(len(b.slots)))
	b.gc.setSlot(b.currentFrameData)
	return nil
}

/**
 * @brief Runs the commands of one frame between StartFrame and EndFrame.
 */
func (b *Backend) Execute(cmds []metadata.RenderCommand) error {
	if err := b.StartFrame(); err != nil {
		return err
	}
	for i := range cmds {
		cmd := &cmds[i]
		switch cmd.Op {
		case metadata.RC_NOP:
		case metadata.RC_DRAW_VIEW_3D, metadata.RC_DRAW_VIEW_GUI:
			b.DrawView(cmd)
		case metadata.RC_COPY_RENDER:
			b.CopyRender(cmd)
		default:
			core.LogError("Execute: bad render command %d", cmd.Op)
		}
	}
	return b.EndFrame()
}
