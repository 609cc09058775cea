package vulkan

import (
	"fmt"
	"runtime"
	"slices"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-renderer/engine/core"
)

/**
 * @brief The window side of the driver: instance extensions, the loader entry
 * point and the surface. Implemented by the platform layer.
 */
type Window interface {
	RequiredInstanceExtensions() []string
	VulkanProcAddr() unsafe.Pointer
	CreateVulkanSurface(instance interface{}) (uintptr, error)
	FramebufferSize() (int, int)
}

type Options struct {
	// Directory holding <program>.vert.spv and <program>.frag.spv.
	ShaderPath string
	// Debug enables the debug report callback and the validation layer.
	Debug bool
}

/**
 * @brief metadata.Driver over goki/vulkan.
 */
type Driver struct {
	window  Window
	opts    Options
	context *VulkanContext
	locks   *VulkanLockPool
	shaders map[string]*VulkanShaderStages

	debug bool
	// Swapchain image count; framebuffers are created per image.
	imageCount uint32
}

func New(window Window, opts Options) *Driver {
	return &Driver{
		window: window,
		opts:   opts,
		context: &VulkanContext{
			Allocator: nil,
		},
		locks:   NewVulkanLockPool(),
		shaders: make(map[string]*VulkanShaderStages),
		debug:   opts.Debug,
	}
}

func (d *Driver) Name() string         { return "vulkan" }
func (d *Driver) ClipSpaceYDown() bool { return true }

func (d *Driver) CreateInstance(appName string, validation bool) error {
	procAddr := d.window.VulkanProcAddr()
	if procAddr == nil {
		err := fmt.Errorf("GetInstanceProcAddress is nil")
		core.LogError(err.Error())
		return err
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		err = fmt.Errorf("failed to initialize vk: %w", err)
		core.LogError(err.Error())
		return err
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Anima Renderer"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Obtain a list of required extensions
	requiredExtensions := []string{"VK_KHR_surface"}
	for _, ext := range d.window.RequiredInstanceExtensions() {
		if !slices.Contains(requiredExtensions, ext) {
			requiredExtensions = append(requiredExtensions, ext)
		}
	}

	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1
	}

	if d.debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		core.LogDebug("Required extensions: %v", requiredExtensions)
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	// Validation layers.
	var layers []string
	if validation {
		found, err := validationLayerPresent()
		if err != nil {
			return err
		}
		if found {
			layers = append(layers, VULKAN_VALIDATION_LAYER)
			core.LogInfo("Validation layer %s enabled.", VULKAN_VALIDATION_LAYER)
		} else {
			core.LogWarn("Validation layer %s is missing, continuing without it.", VULKAN_VALIDATION_LAYER)
		}
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if err := vkCheck("vkCreateInstance", vk.CreateInstance(&createInfo, d.context.Allocator, &d.context.Instance)); err != nil {
		return err
	}
	if err := vk.InitInstance(d.context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if d.debug {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(d.context.Instance, &debugCreateInfo, nil, &dbg); res != vk.Success {
			// The messenger only reports; rendering works without it.
			core.LogWarn("vkCreateDebugReportCallback failed with %s", VulkanResultString(res, false))
		} else {
			d.context.debugMessenger = dbg
			core.LogDebug("Vulkan debugger created.")
		}
	}
	return nil
}

func validationLayerPresent() (bool, error) {
	var count uint32
	if err := vkCheck("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return false, err
	}
	available := make([]vk.LayerProperties, count)
	if err := vkCheck("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, available)); err != nil {
		return false, err
	}
	for i := range available {
		available[i].Deref()
		if cString(available[i].LayerName[:]) == VULKAN_VALIDATION_LAYER {
			return true, nil
		}
	}
	return false, nil
}

func (d *Driver) CreateSurface() error {
	surface, err := d.window.CreateVulkanSurface(d.context.Instance)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	d.context.Surface = vk.SurfaceFromPointer(surface)
	w, h := d.window.FramebufferSize()
	d.context.FramebufferWidth = uint32(w)
	d.context.FramebufferHeight = uint32(h)
	core.LogDebug("Vulkan surface created.")
	return nil
}

func (d *Driver) DestroySurface() {
	if d.context.Surface != vk.NullSurface {
		vk.DestroySurface(d.context.Instance, d.context.Surface, d.context.Allocator)
		d.context.Surface = vk.NullSurface
	}
}

func (d *Driver) DestroyInstance() {
	if d.context.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(d.context.Instance, d.context.debugMessenger, d.context.Allocator)
		d.context.debugMessenger = vk.NullDebugReportCallback
	}
	if d.context.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(d.context.Instance, d.context.Allocator)
		d.context.Instance = nil
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		core.LogDebug("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
