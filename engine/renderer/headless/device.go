package headless

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

func (d *Driver) CreateInstance(appName string, validation bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateInstance")
	d.instance = true
	return nil
}

func (d *Driver) CreateSurface() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateSurface")
	if !d.instance {
		return fmt.Errorf("headless: surface without instance")
	}
	d.surface = true
	return nil
}

func (d *Driver) EnumeratePhysicalDevices() ([]*metadata.PhysicalDeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("EnumeratePhysicalDevices")
	return d.opts.Devices, nil
}

func (d *Driver) SurfaceCapabilities(gpu *metadata.PhysicalDeviceInfo) (metadata.SurfaceCaps, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("SurfaceCapabilities")
	caps := gpu.SurfaceCaps
	if d.opts.SurfaceWidth > 0 {
		caps.CurrentWidth = d.opts.SurfaceWidth
		caps.CurrentHeight = d.opts.SurfaceHeight
	}
	return caps, nil
}

func (d *Driver) SurfaceSupportsPresent(gpu *metadata.PhysicalDeviceInfo, family int) bool {
	if family < 0 || family >= len(gpu.QueueFamilies) {
		return false
	}
	return gpu.QueueFamilies[family].Present
}

// SetSurfaceSize simulates the window being resized.
func (d *Driver) SetSurfaceSize(w, h int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts.SurfaceWidth = w
	d.opts.SurfaceHeight = h
}

func (d *Driver) CreateDevice(gpu *metadata.PhysicalDeviceInfo, graphicsFamily, presentFamily int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateDevice")
	d.device = true
	d.gpu = gpu
	return nil
}

func (d *Driver) DestroyDevice() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DestroyDevice")
	d.device = false
}

func (d *Driver) DestroySurface() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DestroySurface")
	d.surface = false
}

func (d *Driver) DestroyInstance() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DestroyInstance")
	d.instance = false
}

func (d *Driver) CreateSwapchain(desc metadata.SwapchainDesc) (metadata.SwapchainInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateSwapchain")
	if d.opts.FailSwapchain {
		return metadata.SwapchainInfo{}, fmt.Errorf("headless: swapchain refused")
	}
	info := metadata.SwapchainInfo{ImageCount: desc.MinImageCount, Width: desc.Width, Height: desc.Height}
	d.swapchain = &info
	d.nextImage = 0
	return info, nil
}

func (d *Driver) DestroySwapchain() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DestroySwapchain")
	d.swapchain = nil
}

func (d *Driver) CreateRenderTargets(desc metadata.RenderTargetDesc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateRenderTargets")
	if desc.Resolve() {
		d.record("CreateResolveTarget")
	}
	d.targets = &desc
	return nil
}

func (d *Driver) DestroyRenderTargets() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DestroyRenderTargets")
	d.targets = nil
}

func (d *Driver) CreateRenderPass(desc metadata.RenderTargetDesc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateRenderPass")
	d.renderPass = &desc
	return nil
}

func (d *Driver) DestroyRenderPass() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DestroyRenderPass")
	d.renderPass = nil
}

func (d *Driver) CreateFramebuffers(width, height uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateFramebuffers")
	if d.swapchain == nil || d.renderPass == nil {
		return fmt.Errorf("headless: framebuffers need a swapchain and a render pass")
	}
	d.framebuffers = int(d.swapchain.ImageCount)
	return nil
}

func (d *Driver) DestroyFramebuffers() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DestroyFramebuffers")
	d.framebuffers = 0
}

// RenderTargets returns the active render target description, nil when none.
func (d *Driver) RenderTargets() *metadata.RenderTargetDesc {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.targets
}

func (d *Driver) CreateCommandBuffers(count int) ([]metadata.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateCommandBuffers")
	cbs := make([]metadata.CommandBuffer, count)
	for i := range cbs {
		cbs[i] = &CommandBuffer{ID: d.id()}
	}
	return cbs, nil
}

func (d *Driver) FreeCommandBuffers(cbs []metadata.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("FreeCommandBuffers")
}

func (d *Driver) CreateFence(signaled bool) (metadata.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateFence")
	f := &Fence{ID: d.id(), Signaled: signaled}
	d.liveFences[f] = struct{}{}
	return f, nil
}

func (d *Driver) WaitFence(f metadata.Fence, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("WaitFence")
	fence := f.(*Fence)
	if !fence.Signaled {
		return ErrFenceNeverSubmitted
	}
	return nil
}

func (d *Driver) ResetFence(f metadata.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("ResetFence")
	fence := f.(*Fence)
	fence.Signaled = false
	fence.Pending = false
	return nil
}

func (d *Driver) FenceSignaled(f metadata.Fence) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return f.(*Fence).Signaled
}

func (d *Driver) DestroyFence(f metadata.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DestroyFence")
	delete(d.liveFences, f.(*Fence))
}

func (d *Driver) CreateSemaphore() (metadata.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateSemaphore")
	s := &Semaphore{ID: d.id()}
	d.liveSems[s] = struct{}{}
	return s, nil
}

func (d *Driver) DestroySemaphore(s metadata.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DestroySemaphore")
	delete(d.liveSems, s.(*Semaphore))
}

// LiveSyncObjects counts fences and semaphores still alive.
func (d *Driver) LiveSyncObjects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.liveFences) + len(d.liveSems)
}

func (d *Driver) AcquireNextImage(acquired metadata.Semaphore) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("AcquireNextImage")
	if d.swapchain == nil {
		return 0, fmt.Errorf("headless: acquire without swapchain")
	}
	if d.opts.OutOfDate {
		d.opts.OutOfDate = false
		return 0, fmt.Errorf("headless: %w", core.ErrSwapchainBooting)
	}
	idx := d.nextImage
	d.nextImage = (d.nextImage + 1) % d.swapchain.ImageCount
	acquired.(*Semaphore).Signaled = true
	return idx, nil
}

func (d *Driver) BeginCommandBuffer(cb metadata.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("BeginCommandBuffer")
	c := cb.(*CommandBuffer)
	if c.Recording {
		return fmt.Errorf("headless: command buffer %d already recording", c.ID)
	}
	c.Recording = true
	return nil
}

func (d *Driver) EndCommandBuffer(cb metadata.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("EndCommandBuffer")
	c := cb.(*CommandBuffer)
	if !c.Recording || c.InPass {
		return fmt.Errorf("headless: command buffer %d ended in a bad state", c.ID)
	}
	c.Recording = false
	return nil
}

func (d *Driver) BeginRenderPass(cb metadata.CommandBuffer, imageIndex uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("BeginRenderPass")
	cb.(*CommandBuffer).InPass = true
}

func (d *Driver) EndRenderPass(cb metadata.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("EndRenderPass")
	cb.(*CommandBuffer).InPass = false
}

func (d *Driver) TransitionToPresent(cb metadata.CommandBuffer, imageIndex uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("TransitionToPresent")
}

func (d *Driver) Submit(cb metadata.CommandBuffer, wait, signal metadata.Semaphore, fence metadata.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("Submit")
	if d.opts.FailSubmit {
		return fmt.Errorf("headless: device lost")
	}
	if cb.(*CommandBuffer).Recording {
		return fmt.Errorf("headless: submit of a command buffer still recording")
	}
	wait.(*Semaphore).Signaled = false
	signal.(*Semaphore).Signaled = true
	f := fence.(*Fence)
	if f.Pending {
		return fmt.Errorf("headless: fence %d submitted twice", f.ID)
	}
	f.Pending = true
	f.Signaled = true
	d.submittedFrames++
	return nil
}

func (d *Driver) Present(imageIndex uint32, wait metadata.Semaphore) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("Present")
	wait.(*Semaphore).Signaled = false
	d.presented = append(d.presented, imageIndex)
	return nil
}

// Presented returns the swapchain image indexes presented so far.
func (d *Driver) Presented() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint32(nil), d.presented...)
}

func (d *Driver) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("WaitIdle")
	return nil
}
