package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

// Window is the part of the platform window the GL driver needs. The context
// must be current on the thread that calls the driver.
type Window interface {
	FramebufferSize() (int, int)
	SwapBuffers()
	SetSwapInterval(interval int)
}

type Options struct {
	// Directory holding gl/<program>.vert and gl/<program>.frag (GLSL 410).
	ShaderPath string
}

/**
 * @brief A metadata.Driver on OpenGL 4.1 core. Instances, surfaces, render
 * passes and semaphores are bookkeeping; command buffers record closures that
 * run against the context at Submit.
 */
type Driver struct {
	window Window
	opts   Options

	initialized bool
	surface     bool
	device      bool

	vao      uint32
	programs map[string]*program
	// Dynamic buffers keep a CPU copy that is uploaded when a command buffer referencing them is submitted.
	dynamic map[*Buffer]struct{}

	swapchain    *metadata.SwapchainInfo
	presentMode  metadata.PresentMode
	currentImage uint32
	targets      *metadata.RenderTargetDesc
	renderPass   *metadata.RenderTargetDesc
	framebuffers bool

	replay replayState
}

func New(window Window, opts Options) *Driver {
	return &Driver{
		window:   window,
		opts:     opts,
		programs: make(map[string]*program),
		dynamic:  make(map[*Buffer]struct{}),
	}
}

func (d *Driver) Name() string { return "opengl" }

// Clip space Y grows upwards; the window origin is bottom-left.
func (d *Driver) ClipSpaceYDown() bool { return false }

/**
 * @brief Loads the GL entry points for the current context.
 */
func (d *Driver) CreateInstance(appName string, validation bool) error {
	if err := gl.Init(); err != nil {
		err = fmt.Errorf("failed to initialize OpenGL for '%s': %w", appName, err)
		core.LogError(err.Error())
		return err
	}
	d.initialized = true
	core.LogInfo("OpenGL %s, GLSL %s", gl.GoStr(gl.GetString(gl.VERSION)), gl.GoStr(gl.GetString(gl.SHADING_LANGUAGE_VERSION)))
	if validation {
		core.LogDebug("OpenGL 4.1 core has no debug output; validation ignored")
	}
	return nil
}

func (d *Driver) CreateSurface() error {
	if !d.initialized {
		return fmt.Errorf("opengl: surface without instance")
	}
	d.surface = true
	return nil
}

func (d *Driver) DestroySurface()  { d.surface = false }
func (d *Driver) DestroyInstance() { d.initialized = false }

/**
 * @brief Describes the context as the only device. It has one queue family
 * that both draws and presents.
 */
func (d *Driver) EnumeratePhysicalDevices() ([]*metadata.PhysicalDeviceInfo, error) {
	if !d.initialized {
		return nil, fmt.Errorf("opengl: no context")
	}
	var maxSamples, uboAlignment, numExtensions int32
	gl.GetIntegerv(gl.MAX_SAMPLES, &maxSamples)
	gl.GetIntegerv(gl.UNIFORM_BUFFER_OFFSET_ALIGNMENT, &uboAlignment)
	gl.GetIntegerv(gl.NUM_EXTENSIONS, &numExtensions)

	extensions := make([]string, 0, numExtensions)
	for i := int32(0); i < numExtensions; i++ {
		extensions = append(extensions, gl.GoStr(gl.GetStringi(gl.EXTENSIONS, uint32(i))))
	}

	gpu := &metadata.PhysicalDeviceInfo{
		Name:       gl.GoStr(gl.GetString(gl.RENDERER)),
		DeviceType: gl.GoStr(gl.GetString(gl.VENDOR)),
		Extensions: extensions,
		SurfaceFormats: []metadata.SurfaceFormat{
			{Format: metadata.FORMAT_B8G8R8A8_UNORM, ColorSpace: metadata.COLOR_SPACE_SRGB_NONLINEAR},
		},
		PresentModes:                    []metadata.PresentMode{metadata.PRESENT_MODE_FIFO, metadata.PRESENT_MODE_IMMEDIATE},
		QueueFamilies:                   []metadata.QueueFamily{{QueueCount: 1, Graphics: true, Present: true}},
		ColorSampleCounts:               sampleCountsUpTo(maxSamples),
		MinUniformBufferOffsetAlignment: int(uboAlignment),
		SampleRateShading:               true,
		DepthFormats:                    []metadata.Format{metadata.FORMAT_D24_UNORM_S8_UINT},
	}
	caps, err := d.SurfaceCapabilities(gpu)
	if err != nil {
		return nil, err
	}
	gpu.SurfaceCaps = caps
	return []*metadata.PhysicalDeviceInfo{gpu}, nil
}

func sampleCountsUpTo(max int32) metadata.SampleCount {
	counts := metadata.SAMPLE_COUNT_1
	for s := metadata.SAMPLE_COUNT_2; s <= metadata.SAMPLE_COUNT_16 && int32(s) <= max; s <<= 1 {
		counts |= s
	}
	return counts
}

// The default framebuffer is double buffered.
func (d *Driver) SurfaceCapabilities(gpu *metadata.PhysicalDeviceInfo) (metadata.SurfaceCaps, error) {
	w, h := d.window.FramebufferSize()
	return metadata.SurfaceCaps{
		CurrentWidth:  int32(w),
		CurrentHeight: int32(h),
		MinImageCount: 2,
		MaxImageCount: 3,
	}, nil
}

func (d *Driver) SurfaceSupportsPresent(gpu *metadata.PhysicalDeviceInfo, family int) bool {
	return family == 0
}

func (d *Driver) CreateDevice(gpu *metadata.PhysicalDeviceInfo, graphicsFamily, presentFamily int) error {
	if graphicsFamily != 0 || presentFamily != 0 {
		return fmt.Errorf("opengl: queue families %d/%d do not exist", graphicsFamily, presentFamily)
	}
	gl.GenVertexArrays(1, &d.vao)
	gl.BindVertexArray(d.vao)
	d.device = true
	core.LogInfo("OpenGL device '%s' ready.", gpu.Name)
	return nil
}

func (d *Driver) DestroyDevice() {
	if !d.device {
		return
	}
	if len(d.dynamic) > 0 {
		core.LogWarn("OpenGL device destroyed with %d dynamic buffers alive.", len(d.dynamic))
	}
	d.destroyPrograms()
	gl.BindVertexArray(0)
	gl.DeleteVertexArrays(1, &d.vao)
	d.vao = 0
	d.device = false
}

func (d *Driver) WaitIdle() error {
	gl.Finish()
	return nil
}
