package platform

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/anima-renderer/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type Platform struct {
	Window *glfw.Window
	driver core.DriverKind

	startTime float64
}

func New(driver core.DriverKind) *Platform {
	return &Platform{driver: driver}
}

/**
 * @brief Opens the window. Vulkan windows carry no client API; OpenGL windows
 * get a 4.1 core forward-compatible context made current on this thread.
 */
func (p *Platform) Startup(applicationName string, display core.DisplayConfig) error {
	if err := glfw.Init(); err != nil {
		err = fmt.Errorf("failed to initialize glfw: %w", err)
		core.LogError(err.Error())
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	switch p.driver {
	case core.DRIVER_OPENGL:
		glfw.WindowHint(glfw.ContextVersionMajor, 4)
		glfw.WindowHint(glfw.ContextVersionMinor, 1)
		glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
		glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
		glfw.WindowHint(glfw.Samples, display.MultiSamples)
		glfw.WindowHint(glfw.StencilBits, 8)
		glfw.WindowHint(glfw.DepthBits, 24)
	default:
		glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	}
	if display.DisplayHz > 0 {
		glfw.WindowHint(glfw.RefreshRate, display.DisplayHz)
	}

	var monitor *glfw.Monitor
	if display.FullScreen {
		monitor = glfw.GetPrimaryMonitor()
	}
	window, err := glfw.CreateWindow(display.Width, display.Height, applicationName, monitor, nil)
	if err != nil {
		err = fmt.Errorf("failed to create window: %w", err)
		core.LogError(err.Error())
		glfw.Terminate()
		return err
	}
	p.Window = window

	if p.driver == core.DRIVER_OPENGL {
		p.Window.MakeContextCurrent()
		glfw.SwapInterval(display.SwapInterval)
	}

	p.Window.SetFramebufferSizeCallback(framebufferSizeCallback)
	p.Window.SetCloseCallback(closeCallback)
	p.Window.SetKeyCallback(keyCallback)
	if monitor == nil {
		p.Window.SetPos(display.X, display.Y)
	}
	p.Window.Show()

	p.startTime = glfw.GetTime()
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

func (p *Platform) PumpMessages() {
	glfw.PollEvents()
}

func (p *Platform) ShouldClose() bool {
	return p.Window == nil || p.Window.ShouldClose()
}

// GetAbsoluteTime is the number of seconds since Startup.
func (p *Platform) GetAbsoluteTime() float64 {
	return glfw.GetTime() - p.startTime
}

func (p *Platform) FramebufferSize() (int, int) {
	return p.Window.GetFramebufferSize()
}

// RequiredInstanceExtensions lists the Vulkan instance extensions the window surface needs.
func (p *Platform) RequiredInstanceExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

// CreateVulkanSurface creates a VkSurfaceKHR for the window and returns its raw handle.
func (p *Platform) CreateVulkanSurface(instance interface{}) (uintptr, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return 0, fmt.Errorf("vulkan surface creation failed: %w", err)
	}
	return surface, nil
}

func (p *Platform) VulkanProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func (p *Platform) SwapBuffers() {
	p.Window.SwapBuffers()
}

func (p *Platform) SetSwapInterval(interval int) {
	glfw.SwapInterval(interval)
}

func framebufferSizeCallback(w *glfw.Window, width, height int) {
	ctx := core.EventContext{}
	ctx.Data.U32[0] = uint32(width)
	ctx.Data.U32[1] = uint32(height)
	core.EventFire(core.EVENT_CODE_RESIZED, w, ctx)
}

func closeCallback(w *glfw.Window) {
	core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, w, core.EventContext{})
}

func keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if key == glfw.KeyEscape && action == glfw.Press {
		w.SetShouldClose(true)
		core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, w, core.EventContext{})
	}
}
