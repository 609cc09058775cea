package backend

import (
	"fmt"
	"slices"

	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

// PCI vendor ids logged when a device is picked.
const (
	VENDOR_INTEL  = 0x8086
	VENDOR_NVIDIA = 0x10DE
	VENDOR_AMD    = 0x1002
)

func vendorName(id uint32) string {
	switch id {
	case VENDOR_INTEL:
		return "Intel"
	case VENDOR_NVIDIA:
		return "NVIDIA"
	case VENDOR_AMD:
		return "AMD"
	}
	return "Unknown"
}

func hasExtensions(available, required []string) bool {
	for _, ext := range required {
		if !slices.Contains(available, ext) {
			return false
		}
	}
	return true
}

/**
 * @brief Picks the first device with the required extensions, at least one
 * surface format and present mode, a graphics queue and a present queue.
 */
func (b *Backend) selectPhysicalDevice(gpus []*metadata.PhysicalDeviceInfo) error {
	for _, gpu := range gpus {
		if !hasExtensions(gpu.Extensions, b.opts.RequiredExtensions) {
			core.LogDebug("skipping '%s': missing device extensions", gpu.Name)
			continue
		}
		if len(gpu.SurfaceFormats) == 0 {
			continue
		}
		if len(gpu.PresentModes) == 0 {
			continue
		}

		graphicsIdx := -1
		for j, props := range gpu.QueueFamilies {
			if props.QueueCount == 0 {
				continue
			}
			if props.Graphics {
				graphicsIdx = j
				break
			}
		}

		presentIdx := -1
		for j, props := range gpu.QueueFamilies {
			if props.QueueCount == 0 {
				continue
			}
			if b.driver.SurfaceSupportsPresent(gpu, j) {
				presentIdx = j
				break
			}
		}

		if graphicsIdx >= 0 && presentIdx >= 0 {
			b.gpu = gpu
			b.graphicsFamily = graphicsIdx
			b.presentFamily = presentIdx
			core.LogInfo("Device Vendor: %s (%s)", vendorName(gpu.VendorID), gpu.Name)
			core.LogInfo("Device Type: %s, memory %s", gpu.DeviceType, core.FormatBytes(gpu.DeviceMemory))
			return nil
		}
	}
	// if we can't find a device that meets our needs, we can't render
	return core.WrapFatal(core.ErrNoCapableDevice, "selectPhysicalDevice")
}

func chooseSurfaceFormat(formats []metadata.SurfaceFormat) metadata.SurfaceFormat {
	preferred := metadata.SurfaceFormat{Format: metadata.FORMAT_B8G8R8A8_UNORM, ColorSpace: metadata.COLOR_SPACE_SRGB_NONLINEAR}
	if len(formats) == 1 && formats[0].Format == metadata.FORMAT_UNDEFINED {
		return preferred
	}
	for _, f := range formats {
		if f == preferred {
			return f
		}
	}
	return formats[0]
}

// choosePresentMode avoids vsync only when the swap interval asks for it.
func choosePresentMode(modes []metadata.PresentMode, swapInterval int) metadata.PresentMode {
	if swapInterval < 1 {
		for _, m := range modes {
			if m == metadata.PRESENT_MODE_MAILBOX || m == metadata.PRESENT_MODE_IMMEDIATE {
				return m
			}
		}
	}
	return metadata.PRESENT_MODE_FIFO
}

func chooseSurfaceExtent(caps metadata.SurfaceCaps, width, height uint32) (uint32, uint32) {
	if caps.CurrentWidth == -1 {
		return width, height
	}
	return uint32(caps.CurrentWidth), uint32(caps.CurrentHeight)
}

/**
 * @brief The highest supported count not above the requested one. Requests
 * the device cannot honor degrade to fewer samples.
 */
func chooseSampleCount(requested int, supported metadata.SampleCount) metadata.SampleCount {
	for _, c := range []metadata.SampleCount{
		metadata.SAMPLE_COUNT_16,
		metadata.SAMPLE_COUNT_8,
		metadata.SAMPLE_COUNT_4,
		metadata.SAMPLE_COUNT_2,
	} {
		if requested >= int(c) && supported&c != 0 {
			return c
		}
	}
	return metadata.SAMPLE_COUNT_1
}

func chooseDepthFormat(gpu *metadata.PhysicalDeviceInfo) (metadata.Format, error) {
	for _, f := range []metadata.Format{metadata.FORMAT_D32_SFLOAT_S8_UINT, metadata.FORMAT_D24_UNORM_S8_UINT} {
		if slices.Contains(gpu.DepthFormats, f) {
			return f, nil
		}
	}
	return metadata.FORMAT_UNDEFINED, core.NewFatalError("chooseDepthFormat", "no depth-stencil format")
}

func (b *Backend) swapchainImageCount() uint32 {
	count := uint32(b.opts.FrameData)
	caps := b.gpu.SurfaceCaps
	if count < caps.MinImageCount {
		count = caps.MinImageCount
	}
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func (b *Backend) createSwapChain() error {
	format := chooseSurfaceFormat(b.gpu.SurfaceFormats)
	presentMode := choosePresentMode(b.gpu.PresentModes, b.parms.SwapInterval)
	width, height := chooseSurfaceExtent(b.gpu.SurfaceCaps, b.parms.Width, b.parms.Height)

	info, err := b.driver.CreateSwapchain(metadata.SwapchainDesc{
		Format:         format,
		PresentMode:    presentMode,
		Width:          width,
		Height:         height,
		MinImageCount:  b.swapchainImageCount(),
		GraphicsFamily: b.graphicsFamily,
		PresentFamily:  b.presentFamily,
	})
	if err != nil {
		return core.WrapFatal(fmt.Errorf("%w: %w", core.ErrSwapchain, err), "CreateSwapchain")
	}
	if info.ImageCount == 0 {
		return core.WrapFatal(fmt.Errorf("%w: zero image count", core.ErrSwapchain), "CreateSwapchain")
	}
	b.swapchainFormat = format
	b.presentMode = presentMode
	b.swapchain = info
	b.fullscreen = b.parms.FullScreen
	b.created.swapchain = true
	core.LogDebug("swapchain %dx%d, %d images, %s", info.Width, info.Height, info.ImageCount, presentMode)
	return nil
}

func (b *Backend) renderTargetDesc() metadata.RenderTargetDesc {
	return metadata.RenderTargetDesc{
		ColorFormat:   b.swapchainFormat.Format,
		DepthFormat:   b.depthFormat,
		Samples:       b.sampleCount,
		Width:         b.swapchain.Width,
		Height:        b.swapchain.Height,
		Supersampling: b.supersampling,
	}
}

func (b *Backend) createRenderTargets() error {
	b.sampleCount = chooseSampleCount(b.parms.MultiSamples, b.gpu.ColorSampleCounts)
	b.supersampling = b.sampleCount > metadata.SAMPLE_COUNT_1 && b.gpu.SampleRateShading
	if b.parms.MultiSamples > int(b.sampleCount) {
		core.LogWarn("%d samples requested, using %d", b.parms.MultiSamples, b.sampleCount)
	}
	if err := b.driver.CreateRenderTargets(b.renderTargetDesc()); err != nil {
		return core.WrapFatal(err, "CreateRenderTargets")
	}
	b.created.targets = true
	return nil
}

func (b *Backend) createRenderPass() error {
	if err := b.driver.CreateRenderPass(b.renderTargetDesc()); err != nil {
		return core.WrapFatal(err, "CreateRenderPass")
	}
	b.created.renderPass = true
	return nil
}

func (b *Backend) createFrameBuffers() error {
	if err := b.driver.CreateFramebuffers(b.swapchain.Width, b.swapchain.Height); err != nil {
		return core.WrapFatal(err, "CreateFramebuffers")
	}
	b.created.framebuffers = true
	return nil
}
