package headless

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

var ErrFenceNeverSubmitted = errors.New("fence was never submitted")

// Buffer is the native buffer handed out by the headless driver.
type Buffer struct {
	ID        int
	Kind      metadata.BufferKind
	Usage     metadata.BufferUsage
	Data      []byte
	Mapped    bool
	Destroyed bool
}

type Fence struct {
	ID       int
	Signaled bool
	Pending  bool
}

type Semaphore struct {
	ID       int
	Signaled bool
}

type CommandBuffer struct {
	ID        int
	Recording bool
	InPass    bool
}

type Pipeline struct {
	ID   int
	Desc metadata.PipelineDesc
}

// DrawCall is one recorded DrawIndexed with the state bound at that time.
type DrawCall struct {
	IndexCount   int
	FirstIndex   int
	VertexOffset int
	IndexBuffer  *Buffer
	IndexOffset  int
	VertexBuffer *Buffer
	VertBinding  int
	Pipeline     *Pipeline
	Uniforms     map[int]*Buffer
}

type Options struct {
	// Devices reported by EnumeratePhysicalDevices. Defaults to one capable device.
	Devices []*metadata.PhysicalDeviceInfo
	// FailCreateBuffer makes CreateBuffer fail for the matching requests.
	FailCreateBuffer func(kind metadata.BufferKind, size int, usage metadata.BufferUsage) bool
	FailSwapchain    bool
	FailSubmit       bool
	// OutOfDate makes the next AcquireNextImage report a stale swapchain.
	OutOfDate bool
	// Surface size reported after a resize.
	SurfaceWidth, SurfaceHeight int32
}

/**
 * @brief An in-memory Driver. GPU work completes at submit time, so fences
 * signal as soon as the command buffer is submitted.
 */
type Driver struct {
	mu   sync.Mutex
	opts Options

	calls  map[string]int
	nextID int

	buffers map[int]*Buffer

	instance, surface, device bool
	gpu                       *metadata.PhysicalDeviceInfo

	swapchain     *metadata.SwapchainInfo
	nextImage     uint32
	targets       *metadata.RenderTargetDesc
	renderPass    *metadata.RenderTargetDesc
	framebuffers  int
	renderImages  map[string]*metadata.RenderImage
	liveFences    map[*Fence]struct{}
	liveSems      map[*Semaphore]struct{}
	livePipelines map[*Pipeline]struct{}

	boundIndex      *Buffer
	boundIndexOff   int
	boundVertex     *Buffer
	boundVertexOff  int
	boundPipeline   *Pipeline
	boundUniforms   map[int]*Buffer
	draws           []DrawCall
	scissor         [4]int32
	viewport        [4]int32
	depthBounds     [2]float32
	polygonOffset   [2]float32
	clears          []metadata.ClearDesc
	presented       []uint32
	copiedToImages  []string
	submittedFrames int
}

func New(opts Options) *Driver {
	if len(opts.Devices) == 0 {
		opts.Devices = []*metadata.PhysicalDeviceInfo{DefaultDevice()}
	}
	return &Driver{
		opts:          opts,
		calls:         make(map[string]int),
		buffers:       make(map[int]*Buffer),
		renderImages:  make(map[string]*metadata.RenderImage),
		liveFences:    make(map[*Fence]struct{}),
		liveSems:      make(map[*Semaphore]struct{}),
		livePipelines: make(map[*Pipeline]struct{}),
		boundUniforms: make(map[int]*Buffer),
	}
}

/**
 * @brief A device that passes every selection requirement.
 */
func DefaultDevice() *metadata.PhysicalDeviceInfo {
	return &metadata.PhysicalDeviceInfo{
		Name:         "Headless Device",
		VendorID:     0x10DE,
		DeviceType:   "virtual",
		DeviceMemory: 4 << 30,
		Extensions:   []string{"VK_KHR_swapchain"},
		SurfaceFormats: []metadata.SurfaceFormat{
			{Format: metadata.FORMAT_B8G8R8A8_UNORM, ColorSpace: metadata.COLOR_SPACE_SRGB_NONLINEAR},
		},
		PresentModes: []metadata.PresentMode{metadata.PRESENT_MODE_FIFO, metadata.PRESENT_MODE_MAILBOX},
		QueueFamilies: []metadata.QueueFamily{
			{QueueCount: 1, Graphics: true, Present: true},
		},
		SurfaceCaps: metadata.SurfaceCaps{
			CurrentWidth:  1280,
			CurrentHeight: 720,
			MinImageCount: 2,
			MaxImageCount: 8,
		},
		ColorSampleCounts:               metadata.SAMPLE_COUNT_1 | metadata.SAMPLE_COUNT_2 | metadata.SAMPLE_COUNT_4 | metadata.SAMPLE_COUNT_8,
		MinUniformBufferOffsetAlignment: 256,
		SampleRateShading:               true,
		DepthFormats:                    []metadata.Format{metadata.FORMAT_D32_SFLOAT_S8_UINT, metadata.FORMAT_D24_UNORM_S8_UINT},
	}
}

func (d *Driver) record(name string) {
	d.calls[name]++
}

func (d *Driver) id() int {
	d.nextID++
	return d.nextID
}

// Calls returns how many times the named driver method ran.
func (d *Driver) Calls(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[name]
}

// SetOutOfDate makes the next acquire fail as if the surface had been resized.
func (d *Driver) SetOutOfDate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts.OutOfDate = true
}

func (d *Driver) Name() string         { return "headless" }
func (d *Driver) ClipSpaceYDown() bool { return true }

func (d *Driver) CreateBuffer(kind metadata.BufferKind, size int, usage metadata.BufferUsage) (metadata.NativeBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CreateBuffer")
	if d.opts.FailCreateBuffer != nil && d.opts.FailCreateBuffer(kind, size, usage) {
		return nil, fmt.Errorf("headless: out of device memory for %d bytes", size)
	}
	b := &Buffer{ID: d.id(), Kind: kind, Usage: usage, Data: make([]byte, size)}
	d.buffers[b.ID] = b
	return b, nil
}

func (d *Driver) DestroyBuffer(buf metadata.NativeBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("DestroyBuffer")
	b := buf.(*Buffer)
	if b.Destroyed {
		core.LogError("headless: double free of buffer %d", b.ID)
		d.record("DoubleFree")
		return
	}
	b.Destroyed = true
	delete(d.buffers, b.ID)
}

func (d *Driver) MapBuffer(buf metadata.NativeBuffer, mode metadata.MapMode) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("MapBuffer")
	b := buf.(*Buffer)
	if b.Destroyed {
		return nil, fmt.Errorf("headless: map of destroyed buffer %d", b.ID)
	}
	b.Mapped = true
	return b.Data, nil
}

func (d *Driver) UnmapBuffer(buf metadata.NativeBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("UnmapBuffer")
	buf.(*Buffer).Mapped = false
	return nil
}

func (d *Driver) UploadBuffer(buf metadata.NativeBuffer, offset int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("UploadBuffer")
	b := buf.(*Buffer)
	if offset+len(data) > len(b.Data) {
		return fmt.Errorf("headless: upload %d+%d past buffer end %d", offset, len(data), len(b.Data))
	}
	copy(b.Data[offset:], data)
	return nil
}

// LiveBuffers is the number of buffers created and not destroyed.
func (d *Driver) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}
