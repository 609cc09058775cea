package backend

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/math"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/progs"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/vertexcache"
)

// Effectively infinite. BlockingSwapBuffers is meant to block.
const FENCE_TIMEOUT = time.Duration(1<<63 - 1)

// Extensions every device must expose to drive a swapchain.
var DEVICE_EXTENSIONS = []string{"VK_KHR_swapchain"}

type Options struct {
	AppName    string
	FrameData  int
	Validation bool
	// Devices missing any of these are skipped during selection.
	RequiredExtensions []string
	GarbageQueueSize   int
	Cache              vertexcache.Options
	// Render the Z-fail shadow volumes in two passes instead of relying on the caller's stencil ops.
	UseStencilShadowPreload bool
	// Debug logs skinning mismatches that are otherwise skipped silently.
	Debug bool
}

func OptionsFromConfig(cfg *core.RenderConfig) Options {
	opts := Options{
		AppName:          "anima",
		FrameData:        cfg.Renderer.FrameData,
		Validation:       cfg.Renderer.Debug,
		GarbageQueueSize: cfg.Renderer.GarbageQueueSize,
		Cache:            vertexcache.OptionsFromConfig(&cfg.Renderer),
		Debug:            cfg.Renderer.Debug,
	}
	if cfg.Renderer.Driver == core.DRIVER_VULKAN {
		opts.RequiredExtensions = DEVICE_EXTENSIONS
	}
	return opts
}

// ParmsFromConfig turns the display section into backend parameters.
func ParmsFromConfig(cfg *core.DisplayConfig) metadata.GfxImpParms {
	parms := metadata.GfxImpParms{
		X:            int32(cfg.X),
		Y:            int32(cfg.Y),
		Width:        uint32(cfg.Width),
		Height:       uint32(cfg.Height),
		DisplayHz:    cfg.DisplayHz,
		MultiSamples: cfg.MultiSamples,
		SwapInterval: cfg.SwapInterval,
	}
	if cfg.FullScreen {
		parms.FullScreen = 1
	}
	return parms
}

type createdObjects struct {
	instance, surface, device bool
	swapchain, targets        bool
	renderPass, framebuffers  bool
}

/**
 * @brief Owns the device, the swapchain, the frame slots and the caches that
 * depend on them, and turns render commands into native command buffers.
 */
type Backend struct {
	id     uuid.UUID
	opts   Options
	driver metadata.Driver
	gc     *garbageDriver
	state  State

	gpu            *metadata.PhysicalDeviceInfo
	graphicsFamily int
	presentFamily  int

	parms           metadata.GfxImpParms
	swapchain       metadata.SwapchainInfo
	swapchainFormat metadata.SurfaceFormat
	presentMode     metadata.PresentMode
	depthFormat     metadata.Format
	sampleCount     metadata.SampleCount
	supersampling   bool
	fullscreen      int
	created         createdObjects
	// Set when the driver reported the swapchain out of date.
	stale bool

	slots            []*FrameSlot
	counter          uint64
	currentFrameData int
	imageIndex       uint32

	cache *vertexcache.Cache
	progs *progs.Manager

	glStateBits       uint64
	stencilOperations [metadata.STENCIL_FACE_NUM]uint64
	viewDef           *metadata.ViewDef
	currentScissor    math.ScreenRect

	pc         core.BackendCounters
	warnings   *core.FrameWarnings
	frameStart time.Time
}

func New(driver metadata.Driver, opts Options) *Backend {
	if opts.FrameData == 0 {
		opts.FrameData = core.DEFAULT_FRAME_DATA
	}
	if opts.GarbageQueueSize <= 0 {
		opts.GarbageQueueSize = core.DEFAULT_GARBAGE_QUEUE_SIZE
	}
	opts.Cache.FrameData = opts.FrameData
	gc := newGarbageDriver(driver, opts.FrameData, opts.GarbageQueueSize)
	return &Backend{
		opts:     opts,
		driver:   driver,
		gc:       gc,
		cache:    vertexcache.New(gc, opts.Cache),
		warnings: core.NewFrameWarnings(),
	}
}

/**
 * @brief Creates the device, the swapchain, the render targets, the render
 * pass and the frame slots, then the program manager and the vertex cache.
 * Every error returned is fatal.
 */
func (b *Backend) Init(parms metadata.GfxImpParms) error {
	if b.state != STATE_UNINITIALIZED {
		return b.transition(STATE_INITIALIZED)
	}
	if b.opts.FrameData < 2 || b.opts.FrameData > 3 {
		return fmt.Errorf("render backend frame data %d must be 2 or 3", b.opts.FrameData)
	}
	core.LogInfo("----- Initializing %s render backend -----", b.driver.Name())
	b.parms = parms

	if err := b.initDevice(); err != nil {
		core.LogError(err.Error())
		b.destroyAll()
		return err
	}

	b.id = core.IdentifierAquireNewID("render-backend:" + b.driver.Name())
	b.counter = 0
	b.currentFrameData = 0
	b.gc.setSlot(0)
	b.SetDefaultState()
	return b.transition(STATE_INITIALIZED)
}

func (b *Backend) initDevice() error {
	if err := b.driver.CreateInstance(b.opts.AppName, b.opts.Validation); err != nil {
		return core.WrapFatal(err, "CreateInstance")
	}
	b.created.instance = true

	if err := b.driver.CreateSurface(); err != nil {
		return core.WrapFatal(err, "CreateSurface")
	}
	b.created.surface = true

	gpus, err := b.driver.EnumeratePhysicalDevices()
	if err != nil {
		return core.WrapFatal(err, "EnumeratePhysicalDevices")
	}
	if len(gpus) == 0 {
		return core.WrapFatal(core.ErrNoCapableDevice, "EnumeratePhysicalDevices")
	}
	if err := b.selectPhysicalDevice(gpus); err != nil {
		return err
	}
	if err := b.driver.CreateDevice(b.gpu, b.graphicsFamily, b.presentFamily); err != nil {
		return core.WrapFatal(err, "CreateDevice")
	}
	b.created.device = true

	if err := b.createFrameSlots(); err != nil {
		return err
	}

	if b.depthFormat, err = chooseDepthFormat(b.gpu); err != nil {
		return err
	}
	if err := b.createSwapChain(); err != nil {
		return err
	}
	if err := b.createRenderTargets(); err != nil {
		return err
	}
	if err := b.createRenderPass(); err != nil {
		return err
	}
	if err := b.createFrameBuffers(); err != nil {
		return err
	}

	b.progs = progs.NewManager(b.gc, b.opts.FrameData, b.gpu.MinUniformBufferOffsetAlignment)
	if err := b.progs.Init(metadata.BuiltinPrograms[:], b.sampleCount); err != nil {
		return core.WrapFatal(err, "progs.Init")
	}
	if err := b.cache.Init(b.gpu.MinUniformBufferOffsetAlignment); err != nil {
		return core.WrapFatal(err, "vertexCache.Init")
	}
	b.cache.SetGate(b)
	return nil
}

// Shutdown drains the device and destroys everything Init created.
func (b *Backend) Shutdown() error {
	if b.state == STATE_UNINITIALIZED {
		return nil
	}
	if err := b.transition(STATE_SHUTTING_DOWN); err != nil {
		return err
	}
	core.LogInfo("----- Shutting down render backend -----")
	b.destroyAll()
	_ = core.IdentifierReleaseID(b.id)
	b.id = uuid.Nil
	return b.transition(STATE_UNINITIALIZED)
}

func (b *Backend) destroyAll() {
	if b.created.device {
		if err := b.driver.WaitIdle(); err != nil {
			core.LogError("WaitIdle: %s", err)
		}
	}
	b.cache.Shutdown()
	if b.progs != nil {
		b.progs.Shutdown()
	}
	b.gc.emptyAll()

	if b.created.framebuffers {
		b.driver.DestroyFramebuffers()
	}
	if b.created.renderPass {
		b.driver.DestroyRenderPass()
	}
	if b.created.targets {
		b.driver.DestroyRenderTargets()
	}
	if b.created.swapchain {
		b.driver.DestroySwapchain()
	}
	if b.created.device {
		b.destroyFrameSlots()
		b.driver.DestroyDevice()
	}
	if b.created.surface {
		b.driver.DestroySurface()
	}
	if b.created.instance {
		b.driver.DestroyInstance()
	}
	b.created = createdObjects{}
	b.gpu = nil
}

/**
 * @brief Recreates the surface, the swapchain, the render targets and the
 * frame buffers for new display parameters. The render pass and every cached
 * pipeline survive. Nothing happens when the size and the fullscreen mode are
 * unchanged.
 */
func (b *Backend) Resize(parms metadata.GfxImpParms) error {
	if b.state == STATE_INITIALIZED && !b.stale &&
		parms.Width == b.swapchain.Width && parms.Height == b.swapchain.Height &&
		parms.FullScreen == b.fullscreen {
		return nil
	}
	if err := b.transition(STATE_RESIZING); err != nil {
		return err
	}
	b.parms = parms
	if err := b.recreate(false); err != nil {
		core.LogError(err.Error())
		return err
	}
	return b.transition(STATE_INITIALIZED)
}

/**
 * @brief Like Resize but also rebuilds the render pass, which drops every
 * pipeline. Used when the sample count changes.
 */
func (b *Backend) Restart(parms metadata.GfxImpParms) error {
	if err := b.transition(STATE_RESIZING); err != nil {
		return err
	}
	b.parms = parms
	if err := b.recreate(true); err != nil {
		core.LogError(err.Error())
		return err
	}
	return b.transition(STATE_INITIALIZED)
}

func (b *Backend) recreate(renderPass bool) error {
	if err := b.driver.WaitIdle(); err != nil {
		return core.WrapFatal(err, "WaitIdle")
	}
	b.gc.emptyAll()

	b.driver.DestroyFramebuffers()
	b.created.framebuffers = false
	if renderPass {
		b.driver.DestroyRenderPass()
		b.created.renderPass = false
	}
	b.driver.DestroyRenderTargets()
	b.created.targets = false
	b.driver.DestroySwapchain()
	b.created.swapchain = false
	b.driver.DestroySurface()
	b.created.surface = false

	if err := b.driver.CreateSurface(); err != nil {
		return core.WrapFatal(err, "CreateSurface")
	}
	b.created.surface = true

	caps, err := b.driver.SurfaceCapabilities(b.gpu)
	if err != nil {
		return core.WrapFatal(err, "SurfaceCapabilities")
	}
	b.gpu.SurfaceCaps = caps
	if !b.driver.SurfaceSupportsPresent(b.gpu, b.presentFamily) {
		return core.NewFatalError("SurfaceSupportsPresent", "present family lost after resize")
	}

	if err := b.createSwapChain(); err != nil {
		return err
	}
	if err := b.createRenderTargets(); err != nil {
		return err
	}
	if renderPass {
		if err := b.createRenderPass(); err != nil {
			return err
		}
		b.progs.InvalidatePipelines(b.sampleCount)
	}
	if err := b.createFrameBuffers(); err != nil {
		return err
	}

	b.stale = false

	ctx := core.EventContext{}
	ctx.Data.U32[0] = b.swapchain.Width
	ctx.Data.U32[1] = b.swapchain.Height
	ctx.Data.U32[2] = uint32(b.sampleCount)
	core.EventFire(core.EVENT_CODE_RENDER_TARGETS_RECREATED, b, ctx)
	return nil
}

func (b *Backend) ID() uuid.UUID                        { return b.id }
func (b *Backend) State() State                         { return b.state }
func (b *Backend) Driver() metadata.Driver              { return b.driver }
func (b *Backend) Cache() *vertexcache.Cache            { return b.cache }
func (b *Backend) Progs() *progs.Manager                { return b.progs }
func (b *Backend) SampleCount() metadata.SampleCount    { return b.sampleCount }
func (b *Backend) Supersampling() bool                  { return b.supersampling }
func (b *Backend) PresentMode() metadata.PresentMode    { return b.presentMode }
func (b *Backend) DepthFormat() metadata.Format         { return b.depthFormat }
func (b *Backend) Device() *metadata.PhysicalDeviceInfo { return b.gpu }
func (b *Backend) CurrentFrameData() int                { return b.currentFrameData }
func (b *Backend) FrameCounter() uint64                 { return b.counter }
func (b *Backend) Slot(i int) *FrameSlot                { return b.slots[i] }

// SwapchainExtent is the size of the images being presented.
func (b *Backend) SwapchainExtent() (uint32, uint32) {
	return b.swapchain.Width, b.swapchain.Height
}

// Counters returns the statistics of the last executed frame.
func (b *Backend) Counters() core.CountersSnapshot {
	return b.pc.Snapshot()
}
