package opengl

import (
	"fmt"
	"time"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

type Semaphore struct {
	signaled bool
}

/** @brief A sync object inserted after the commands of one submit. */
type Fence struct {
	sync     uintptr
	signaled bool
}

/**
 * @brief Records the surface size and present mode. The image count only
 * drives the index AcquireNextImage hands out.
 */
func (d *Driver) CreateSwapchain(desc metadata.SwapchainDesc) (metadata.SwapchainInfo, error) {
	interval := 1
	if desc.PresentMode == metadata.PRESENT_MODE_IMMEDIATE {
		interval = 0
	}
	d.window.SetSwapInterval(interval)

	info := metadata.SwapchainInfo{
		ImageCount: max(desc.MinImageCount, 2),
		Width:      desc.Width,
		Height:     desc.Height,
	}
	d.swapchain = &info
	d.presentMode = desc.PresentMode
	d.currentImage = info.ImageCount - 1
	core.LogDebug("OpenGL swapchain %dx%d, %d images, %s.", info.Width, info.Height, info.ImageCount, desc.PresentMode)
	return info, nil
}

func (d *Driver) DestroySwapchain() { d.swapchain = nil }

func (d *Driver) CreateRenderTargets(desc metadata.RenderTargetDesc) error {
	d.targets = &desc
	return nil
}

func (d *Driver) DestroyRenderTargets() { d.targets = nil }

func (d *Driver) CreateRenderPass(desc metadata.RenderTargetDesc) error {
	d.renderPass = &desc
	return nil
}

func (d *Driver) DestroyRenderPass() { d.renderPass = nil }

func (d *Driver) CreateFramebuffers(width, height uint32) error {
	if d.swapchain == nil || d.renderPass == nil {
		return fmt.Errorf("opengl: framebuffers need a swapchain and a render pass")
	}
	d.framebuffers = true
	return nil
}

func (d *Driver) DestroyFramebuffers() { d.framebuffers = false }

func (d *Driver) CreateSemaphore() (metadata.Semaphore, error) {
	return &Semaphore{}, nil
}

func (d *Driver) DestroySemaphore(s metadata.Semaphore) {}

func (d *Driver) CreateFence(signaled bool) (metadata.Fence, error) {
	return &Fence{signaled: signaled}, nil
}

func asFence(f metadata.Fence, site string) (*Fence, error) {
	gf, ok := f.(*Fence)
	if !ok {
		return nil, fmt.Errorf("%s: %T is not an opengl fence", site, f)
	}
	return gf, nil
}

func (d *Driver) WaitFence(f metadata.Fence, timeout time.Duration) error {
	gf, err := asFence(f, "WaitFence")
	if err != nil {
		return err
	}
	if gf.signaled {
		return nil
	}
	if gf.sync == 0 {
		return fmt.Errorf("WaitFence: fence was never submitted")
	}
	switch gl.ClientWaitSync(gf.sync, gl.SYNC_FLUSH_COMMANDS_BIT, uint64(timeout.Nanoseconds())) {
	case gl.ALREADY_SIGNALED, gl.CONDITION_SATISFIED:
		gf.signaled = true
		return nil
	case gl.TIMEOUT_EXPIRED:
		return fmt.Errorf("glClientWaitSync: timed out after %s", timeout)
	}
	return core.NewFatalError("glClientWaitSync", "GL_WAIT_FAILED")
}

func (d *Driver) ResetFence(f metadata.Fence) error {
	gf, err := asFence(f, "ResetFence")
	if err != nil {
		return err
	}
	if gf.sync != 0 {
		gl.DeleteSync(gf.sync)
		gf.sync = 0
	}
	gf.signaled = false
	return nil
}

func (d *Driver) FenceSignaled(f metadata.Fence) bool {
	gf, err := asFence(f, "FenceSignaled")
	if err != nil {
		core.LogError(err.Error())
		return false
	}
	if !gf.signaled && gf.sync != 0 {
		status := gl.ClientWaitSync(gf.sync, 0, 0)
		gf.signaled = status == gl.ALREADY_SIGNALED || status == gl.CONDITION_SATISFIED
	}
	return gf.signaled
}

func (d *Driver) DestroyFence(f metadata.Fence) {
	if gf, err := asFence(f, "DestroyFence"); err == nil && gf.sync != 0 {
		gl.DeleteSync(gf.sync)
		gf.sync = 0
	}
}

/**
 * @brief Hands out the next back buffer index. A window whose framebuffer no
 * longer matches the swapchain reports a booting swapchain.
 */
func (d *Driver) AcquireNextImage(acquired metadata.Semaphore) (uint32, error) {
	sem, ok := acquired.(*Semaphore)
	if !ok {
		return 0, fmt.Errorf("AcquireNextImage: %T is not an opengl semaphore", acquired)
	}
	if d.swapchain == nil {
		return 0, fmt.Errorf("AcquireNextImage: no swapchain")
	}
	w, h := d.window.FramebufferSize()
	if uint32(w) != d.swapchain.Width || uint32(h) != d.swapchain.Height {
		return 0, fmt.Errorf("opengl: framebuffer is %dx%d: %w", w, h, core.ErrSwapchainBooting)
	}
	d.currentImage = (d.currentImage + 1) % d.swapchain.ImageCount
	sem.signaled = true
	return d.currentImage, nil
}

func (d *Driver) Present(imageIndex uint32, wait metadata.Semaphore) error {
	sem, ok := wait.(*Semaphore)
	if !ok {
		return fmt.Errorf("Present: %T is not an opengl semaphore", wait)
	}
	if !sem.signaled {
		return fmt.Errorf("Present: image %d was never rendered", imageIndex)
	}
	sem.signaled = false
	d.window.SwapBuffers()
	return nil
}
