package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	GraphicsQueueIndex int32
	PresentQueueIndex  int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	// DepthBounds is false when the device lacks the depthBounds feature;
	// SetDepthBounds is then ignored.
	DepthBounds bool
}

var depthCandidates = []metadata.Format{
	metadata.FORMAT_D32_SFLOAT_S8_UINT,
	metadata.FORMAT_D24_UNORM_S8_UINT,
}

/**
 * @brief Lists every physical device together with what the backend needs to
 * choose one: extensions, surface formats, present modes, queue families and
 * the supported sample counts.
 */
func (d *Driver) EnumeratePhysicalDevices() ([]*metadata.PhysicalDeviceInfo, error) {
	var count uint32
	if err := vkCheck("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(d.context.Instance, &count, nil)); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("no devices which support Vulkan were found: %w", core.ErrNoCapableDevice)
	}
	physicalDevices := make([]vk.PhysicalDevice, count)
	if err := vkCheck("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(d.context.Instance, &count, physicalDevices)); err != nil {
		return nil, err
	}

	gpus := make([]*metadata.PhysicalDeviceInfo, 0, count)
	for _, pd := range physicalDevices {
		gpu, err := d.describePhysicalDevice(pd)
		if err != nil {
			return nil, err
		}
		gpus = append(gpus, gpu)
	}
	return gpus, nil
}

func (d *Driver) describePhysicalDevice(pd vk.PhysicalDevice) (*metadata.PhysicalDeviceInfo, error) {
	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &properties)
	properties.Deref()
	properties.Limits.Deref()

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(pd, &features)
	features.Deref()

	var memory vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(pd, &memory)
	memory.Deref()

	gpu := &metadata.PhysicalDeviceInfo{
		Name:                            cString(properties.DeviceName[:]),
		VendorID:                        properties.VendorID,
		DeviceType:                      deviceTypeName(properties.DeviceType),
		ColorSampleCounts:               metadata.SampleCount(properties.Limits.FramebufferColorSampleCounts & properties.Limits.FramebufferDepthSampleCounts),
		MinUniformBufferOffsetAlignment: int(properties.Limits.MinUniformBufferOffsetAlignment),
		SampleRateShading:               features.SampleRateShading == vk.True,
		Handle:                          pd,
	}

	for j := uint32(0); j < memory.MemoryHeapCount; j++ {
		memory.MemoryHeaps[j].Deref()
		if vk.MemoryHeapFlagBits(memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			gpu.DeviceMemory += uint64(memory.MemoryHeaps[j].Size)
		}
	}

	// Device extensions.
	var extCount uint32
	if err := vkCheck("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(pd, "", &extCount, nil)); err != nil {
		return nil, err
	}
	if extCount > 0 {
		available := make([]vk.ExtensionProperties, extCount)
		if err := vkCheck("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(pd, "", &extCount, available)); err != nil {
			return nil, err
		}
		for i := range available {
			available[i].Deref()
			gpu.Extensions = append(gpu.Extensions, cString(available[i].ExtensionName[:]))
		}
	}

	// Queue families.
	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, families)
	for i := range families {
		families[i].Deref()
		gpu.QueueFamilies = append(gpu.QueueFamilies, metadata.QueueFamily{
			QueueCount: families[i].QueueCount,
			Graphics:   vk.QueueFlagBits(families[i].QueueFlags)&vk.QueueGraphicsBit != 0,
			Present:    d.SurfaceSupportsPresent(gpu, i),
		})
	}

	// Surface formats.
	var formatCount uint32
	if err := vkCheck("vkGetPhysicalDeviceSurfaceFormats", vk.GetPhysicalDeviceSurfaceFormats(pd, d.context.Surface, &formatCount, nil)); err != nil {
		return nil, err
	}
	if formatCount > 0 {
		formats := make([]vk.SurfaceFormat, formatCount)
		if err := vkCheck("vkGetPhysicalDeviceSurfaceFormats", vk.GetPhysicalDeviceSurfaceFormats(pd, d.context.Surface, &formatCount, formats)); err != nil {
			return nil, err
		}
		for i := range formats {
			formats[i].Deref()
			gpu.SurfaceFormats = append(gpu.SurfaceFormats, metadata.SurfaceFormat{
				Format:     fromVkFormat(formats[i].Format),
				ColorSpace: fromVkColorSpace(formats[i].ColorSpace),
			})
		}
	}

	// Present modes.
	var modeCount uint32
	if err := vkCheck("vkGetPhysicalDeviceSurfacePresentModes", vk.GetPhysicalDeviceSurfacePresentModes(pd, d.context.Surface, &modeCount, nil)); err != nil {
		return nil, err
	}
	if modeCount > 0 {
		modes := make([]vk.PresentMode, modeCount)
		if err := vkCheck("vkGetPhysicalDeviceSurfacePresentModes", vk.GetPhysicalDeviceSurfacePresentModes(pd, d.context.Surface, &modeCount, modes)); err != nil {
			return nil, err
		}
		for _, vm := range modes {
			if m, ok := fromVkPresentMode(vm); ok {
				gpu.PresentModes = append(gpu.PresentModes, m)
			}
		}
	}

	caps, err := d.SurfaceCapabilities(gpu)
	if err != nil {
		return nil, err
	}
	gpu.SurfaceCaps = caps

	for _, f := range depthCandidates {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(pd, toVkFormat(f), &props)
		props.Deref()
		if vk.FormatFeatureFlagBits(props.OptimalTilingFeatures)&vk.FormatFeatureDepthStencilAttachmentBit != 0 {
			gpu.DepthFormats = append(gpu.DepthFormats, f)
		}
	}
	return gpu, nil
}

func (d *Driver) SurfaceCapabilities(gpu *metadata.PhysicalDeviceInfo) (metadata.SurfaceCaps, error) {
	pd, ok := gpu.Handle.(vk.PhysicalDevice)
	if !ok {
		return metadata.SurfaceCaps{}, fmt.Errorf("SurfaceCapabilities: '%s' is not a vulkan device", gpu.Name)
	}
	var caps vk.SurfaceCapabilities
	if err := vkCheck("vkGetPhysicalDeviceSurfaceCapabilities", vk.GetPhysicalDeviceSurfaceCapabilities(pd, d.context.Surface, &caps)); err != nil {
		return metadata.SurfaceCaps{}, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()

	out := metadata.SurfaceCaps{
		CurrentWidth:  -1,
		CurrentHeight: -1,
		MinImageCount: caps.MinImageCount,
		MaxImageCount: caps.MaxImageCount,
	}
	if caps.CurrentExtent.Width != vk.MaxUint32 {
		out.CurrentWidth = int32(caps.CurrentExtent.Width)
		out.CurrentHeight = int32(caps.CurrentExtent.Height)
	}
	return out, nil
}

func (d *Driver) SurfaceSupportsPresent(gpu *metadata.PhysicalDeviceInfo, family int) bool {
	pd, ok := gpu.Handle.(vk.PhysicalDevice)
	if !ok {
		return false
	}
	var supportsPresent vk.Bool32
	if res := vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(family), d.context.Surface, &supportsPresent); res != vk.Success {
		return false
	}
	return supportsPresent == vk.True
}

/**
 * @brief Creates the logical device, its queues, the graphics command pool and
 * the descriptor set and pipeline layouts every program shares.
 */
func (d *Driver) CreateDevice(gpu *metadata.PhysicalDeviceInfo, graphicsFamily, presentFamily int) error {
	pd, ok := gpu.Handle.(vk.PhysicalDevice)
	if !ok {
		return fmt.Errorf("CreateDevice: '%s' is not a vulkan device", gpu.Name)
	}
	device := &VulkanDevice{
		PhysicalDevice:     pd,
		GraphicsQueueIndex: int32(graphicsFamily),
		PresentQueueIndex:  int32(presentFamily),
	}
	vk.GetPhysicalDeviceProperties(pd, &device.Properties)
	device.Properties.Deref()
	device.Properties.Limits.Deref()
	vk.GetPhysicalDeviceFeatures(pd, &device.Features)
	device.Features.Deref()
	vk.GetPhysicalDeviceMemoryProperties(pd, &device.Memory)
	device.Memory.Deref()

	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	indices := []uint32{uint32(graphicsFamily)}
	if presentFamily != graphicsFamily {
		indices = append(indices, uint32(presentFamily))
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{}
	if device.Features.SampleRateShading == vk.True {
		deviceFeatures.SampleRateShading = vk.True
	}
	if device.Features.DepthBounds == vk.True {
		deviceFeatures.DepthBounds = vk.True
		device.DepthBounds = true
	}
	if device.Features.DepthBiasClamp == vk.True {
		deviceFeatures.DepthBiasClamp = vk.True
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	for _, ext := range gpu.Extensions {
		if ext == VULKAN_PORTABILITY_SUBSET {
			core.LogInfo("Adding required extension '%s'.", VULKAN_PORTABILITY_SUBSET)
			extensionNames = append(extensionNames, VULKAN_PORTABILITY_SUBSET)
			break
		}
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	if err := vkCheck("vkCreateDevice", vk.CreateDevice(pd, &deviceCreateInfo, d.context.Allocator, &device.LogicalDevice)); err != nil {
		return err
	}
	d.context.Device = device
	core.LogInfo("Logical device created.")

	var graphicsQueue, presentQueue vk.Queue
	vk.GetDeviceQueue(device.LogicalDevice, uint32(graphicsFamily), 0, &graphicsQueue)
	vk.GetDeviceQueue(device.LogicalDevice, uint32(presentFamily), 0, &presentQueue)
	device.GraphicsQueue = graphicsQueue
	device.PresentQueue = presentQueue
	d.locks.SetQueueFamily(uint32(graphicsFamily))
	d.locks.SetQueueFamily(uint32(presentFamily))
	core.LogInfo("Queues obtained.")

	// Create command pool for graphics queue.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(graphicsFamily),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if err := vkCheck("vkCreateCommandPool", vk.CreateCommandPool(device.LogicalDevice, &poolCreateInfo, d.context.Allocator, &pool)); err != nil {
		return err
	}
	device.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	return d.createLayouts()
}

func (d *Driver) DestroyDevice() {
	device := d.context.Device
	if device == nil {
		return
	}
	d.destroyShaders()
	d.destroyLayouts()

	core.LogInfo("Destroying command pools...")
	if device.GraphicsCommandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(device.LogicalDevice, device.GraphicsCommandPool, d.context.Allocator)
		device.GraphicsCommandPool = vk.NullCommandPool
	}

	// Unset queues
	device.GraphicsQueue = nil
	device.PresentQueue = nil

	core.LogInfo("Destroying logical device...")
	if device.LogicalDevice != nil {
		vk.DestroyDevice(device.LogicalDevice, d.context.Allocator)
		device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	device.PhysicalDevice = nil
	device.GraphicsQueueIndex = -1
	device.PresentQueueIndex = -1
	d.context.Device = nil
}

func (d *Driver) WaitIdle() error {
	if d.context.Device == nil || d.context.Device.LogicalDevice == nil {
		return nil
	}
	return vkCheck("vkDeviceWaitIdle", vk.DeviceWaitIdle(d.context.Device.LogicalDevice))
}
