package metadata

import "time"

// Opaque native objects. Each driver stores its own concrete type behind them.
type (
	NativeBuffer  any
	Fence         any
	Semaphore     any
	CommandBuffer any
	Pipeline      any
)

type BufferKind int

const (
	BUFFER_KIND_VERTEX BufferKind = iota
	BUFFER_KIND_INDEX
	BUFFER_KIND_UNIFORM
)

func (k BufferKind) String() string {
	switch k {
	case BUFFER_KIND_VERTEX:
		return "vertex"
	case BUFFER_KIND_INDEX:
		return "index"
	case BUFFER_KIND_UNIFORM:
		return "uniform"
	}
	return "unknown"
}

/** @brief How often a buffer is rewritten. */
type BufferUsage int

const (
	/** @brief Uploaded once, read for many frames. */
	BU_STATIC BufferUsage = iota
	/** @brief Rewritten every frame through a persistent mapping. */
	BU_DYNAMIC
)

type MapMode int

const (
	MAP_READ MapMode = iota
	MAP_WRITE
)

/**
 * @brief The subset of a driver the buffer objects need. Kept separate so the
 * backend can interpose a garbage-deferring implementation.
 */
type BufferDriver interface {
	CreateBuffer(kind BufferKind, size int, usage BufferUsage) (NativeBuffer, error)
	DestroyBuffer(buf NativeBuffer)
	// MapBuffer returns the whole allocation. Callers slice their own offset.
	MapBuffer(buf NativeBuffer, mode MapMode) ([]byte, error)
	UnmapBuffer(buf NativeBuffer) error
	UploadBuffer(buf NativeBuffer, offset int, data []byte) error
}

/**
 * @brief A native graphics API behind one interface. The vulkan driver maps the
 * calls one to one; the opengl driver implements the explicit objects
 * (semaphores, command buffers, render passes) as bookkeeping.
 */
type Driver interface {
	BufferDriver

	Name() string
	// ClipSpaceYDown reports whether clip-space Y grows downwards.
	ClipSpaceYDown() bool

	CreateInstance(appName string, validation bool) error
	CreateSurface() error
	EnumeratePhysicalDevices() ([]*PhysicalDeviceInfo, error)
	// SurfaceCapabilities refreshes the capabilities of the current surface.
	SurfaceCapabilities(gpu *PhysicalDeviceInfo) (SurfaceCaps, error)
	SurfaceSupportsPresent(gpu *PhysicalDeviceInfo, family int) bool
	CreateDevice(gpu *PhysicalDeviceInfo, graphicsFamily, presentFamily int) error
	DestroyDevice()
	DestroySurface()
	DestroyInstance()

	CreateSwapchain(desc SwapchainDesc) (SwapchainInfo, error)
	DestroySwapchain()
	CreateRenderTargets(desc RenderTargetDesc) error
	DestroyRenderTargets()
	CreateRenderPass(desc RenderTargetDesc) error
	DestroyRenderPass()
	CreateFramebuffers(width, height uint32) error
	DestroyFramebuffers()

	CreateCommandBuffers(count int) ([]CommandBuffer, error)
	FreeCommandBuffers(cbs []CommandBuffer)
	CreateFence(signaled bool) (Fence, error)
	WaitFence(f Fence, timeout time.Duration) error
	ResetFence(f Fence) error
	FenceSignaled(f Fence) bool
	DestroyFence(f Fence)
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(s Semaphore)

	AcquireNextImage(acquired Semaphore) (uint32, error)
	BeginCommandBuffer(cb CommandBuffer) error
	EndCommandBuffer(cb CommandBuffer) error
	BeginRenderPass(cb CommandBuffer, imageIndex uint32)
	EndRenderPass(cb CommandBuffer)
	// TransitionToPresent moves the swapchain image into its presentable layout.
	TransitionToPresent(cb CommandBuffer, imageIndex uint32)
	Submit(cb CommandBuffer, wait, signal Semaphore, fence Fence) error
	Present(imageIndex uint32, wait Semaphore) error
	WaitIdle() error

	CreatePipeline(desc PipelineDesc) (Pipeline, error)
	DestroyPipeline(p Pipeline)
	BindPipeline(cb CommandBuffer, p Pipeline)

	BindIndexBuffer(cb CommandBuffer, buf NativeBuffer, offset int)
	BindVertexBuffer(cb CommandBuffer, buf NativeBuffer, offset int)
	BindUniformBuffer(cb CommandBuffer, binding int, buf NativeBuffer, offset, size int)
	DrawIndexed(cb CommandBuffer, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int)
	SetScissor(cb CommandBuffer, x, y, w, h int32)
	SetViewport(cb CommandBuffer, x, y, w, h int32)
	SetDepthBounds(cb CommandBuffer, zmin, zmax float32)
	SetPolygonOffset(cb CommandBuffer, scale, bias float32)
	ClearAttachments(cb CommandBuffer, clear ClearDesc)

	CreateRenderImage(name string, width, height uint32) (*RenderImage, error)
	DestroyRenderImage(img *RenderImage)
	// CopyFrameBuffer blits the current swapchain image into img.
	CopyFrameBuffer(cb CommandBuffer, img *RenderImage, imageIndex uint32, x, y, w, h int32)
}

type SampleCount uint32

const (
	SAMPLE_COUNT_1  SampleCount = 0x01
	SAMPLE_COUNT_2  SampleCount = 0x02
	SAMPLE_COUNT_4  SampleCount = 0x04
	SAMPLE_COUNT_8  SampleCount = 0x08
	SAMPLE_COUNT_16 SampleCount = 0x10
)

type Format int

const (
	FORMAT_UNDEFINED Format = iota
	FORMAT_B8G8R8A8_UNORM
	FORMAT_B8G8R8A8_SRGB
	FORMAT_R8G8B8A8_UNORM
	FORMAT_D32_SFLOAT_S8_UINT
	FORMAT_D24_UNORM_S8_UINT
)

type ColorSpace int

const (
	COLOR_SPACE_SRGB_NONLINEAR ColorSpace = iota
	COLOR_SPACE_EXTENDED_SRGB_LINEAR
)

type PresentMode int

const (
	PRESENT_MODE_IMMEDIATE PresentMode = iota
	PRESENT_MODE_MAILBOX
	PRESENT_MODE_FIFO
	PRESENT_MODE_FIFO_RELAXED
)

func (m PresentMode) String() string {
	switch m {
	case PRESENT_MODE_IMMEDIATE:
		return "immediate"
	case PRESENT_MODE_MAILBOX:
		return "mailbox"
	case PRESENT_MODE_FIFO:
		return "fifo"
	case PRESENT_MODE_FIFO_RELAXED:
		return "fifo-relaxed"
	}
	return "unknown"
}

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type QueueFamily struct {
	QueueCount uint32
	Graphics   bool
	// Present is filled from the surface query when the driver enumerates devices.
	Present bool
}

type SurfaceCaps struct {
	// CurrentWidth and CurrentHeight are -1 when the surface lets the swapchain decide.
	CurrentWidth  int32
	CurrentHeight int32
	MinImageCount uint32
	MaxImageCount uint32
}

type PhysicalDeviceInfo struct {
	Name       string
	VendorID   uint32
	DeviceType string
	// Total device-local memory in bytes.
	DeviceMemory uint64

	Extensions     []string
	SurfaceFormats []SurfaceFormat
	PresentModes   []PresentMode
	QueueFamilies  []QueueFamily
	SurfaceCaps    SurfaceCaps

	// Sample counts supported for color attachments of the swapchain format.
	ColorSampleCounts               SampleCount
	MinUniformBufferOffsetAlignment int
	SampleRateShading               bool
	// Depth formats usable as a depth-stencil attachment, in device preference order.
	DepthFormats []Format

	Handle any
}

type SwapchainDesc struct {
	Format         SurfaceFormat
	PresentMode    PresentMode
	Width, Height  uint32
	MinImageCount  uint32
	GraphicsFamily int
	PresentFamily  int
}

type SwapchainInfo struct {
	ImageCount    uint32
	Width, Height uint32
}

type RenderTargetDesc struct {
	ColorFormat   Format
	DepthFormat   Format
	Samples       SampleCount
	Width, Height uint32
	// Supersampling enables per-sample shading when multisampling.
	Supersampling bool
}

// Resolve reports whether a resolve attachment is needed.
func (d RenderTargetDesc) Resolve() bool {
	return d.Samples > SAMPLE_COUNT_1
}

type ClearDesc struct {
	Color, Depth, Stencil bool
	StencilValue          byte
	R, G, B, A            float32
	Width, Height         uint32
}

type PipelineDesc struct {
	Program    string
	Layout     VertexLayout
	UsesJoints bool
	StateBits  uint64
	// Per-face stencil operations, using the GLS_STENCIL_OP bits.
	StencilFront uint64
	StencilBack  uint64
	Samples      SampleCount
}

/** @brief An offscreen color image the frame buffer can be copied into. */
type RenderImage struct {
	Name          string
	Width, Height uint32
	Native        any
}

/** @brief Window and display parameters handed to the backend. */
type GfxImpParms struct {
	X, Y          int32
	Width, Height uint32
	// 0 is windowed, otherwise the 1 based monitor number.
	FullScreen   int
	DisplayHz    int
	MultiSamples int
	SwapInterval int
}
