package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/math"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/buffer"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/frame"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/gui"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/headless"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/vertexcache"
)

var defaultParms = metadata.GfxImpParms{Width: 1280, Height: 720, MultiSamples: 1, SwapInterval: 1}

func testOptions() Options {
	return Options{
		AppName:            "backend-test",
		FrameData:          2,
		RequiredExtensions: DEVICE_EXTENSIONS,
		GarbageQueueSize:   16,
		Cache: vertexcache.Options{
			VertexMemoryPerFrame: 64 * 1024,
			IndexMemoryPerFrame:  16 * 1024,
			JointMemoryPerFrame:  16 * 1024,
			StaticVertexMemory:   4096,
			StaticIndexMemory:    4096,
		},
	}
}

func newBackend(t *testing.T, hopts headless.Options, opts Options, parms metadata.GfxImpParms) (*Backend, *headless.Driver) {
	t.Helper()
	drv := headless.New(hopts)
	b := New(drv, opts)
	require.NoError(t, b.Init(parms))
	t.Cleanup(func() { _ = b.Shutdown() })
	return b, drv
}

func material(name string) *metadata.ConstMaterial {
	return &metadata.ConstMaterial{MaterialName: name, SortKey: metadata.SS_GUI, Prog: metadata.BUILTIN_GUI, Registers: []float32{1, 0, 0, 1}}
}

func TestMSAARequestDowngradesToSupportedCount(t *testing.T) {
	dev := headless.DefaultDevice()
	dev.ColorSampleCounts = metadata.SAMPLE_COUNT_1
	parms := defaultParms
	parms.MultiSamples = 2

	b, drv := newBackend(t, headless.Options{Devices: []*metadata.PhysicalDeviceInfo{dev}}, testOptions(), parms)
	assert.Equal(t, metadata.SAMPLE_COUNT_1, b.SampleCount())
	assert.False(t, b.Supersampling())
	assert.Zero(t, drv.Calls("CreateResolveTarget"))
	require.NotNil(t, drv.RenderTargets())
	assert.False(t, drv.RenderTargets().Resolve())
}

func TestMSAAPicksHighestSupportedCount(t *testing.T) {
	dev := headless.DefaultDevice()
	dev.ColorSampleCounts = metadata.SAMPLE_COUNT_1 | metadata.SAMPLE_COUNT_2 | metadata.SAMPLE_COUNT_4
	parms := defaultParms
	parms.MultiSamples = 8

	b, drv := newBackend(t, headless.Options{Devices: []*metadata.PhysicalDeviceInfo{dev}}, testOptions(), parms)
	assert.Equal(t, metadata.SAMPLE_COUNT_4, b.SampleCount())
	assert.True(t, b.Supersampling())
	assert.Equal(t, 1, drv.Calls("CreateResolveTarget"))
}

func TestInitShutdownReleasesEverything(t *testing.T) {
	drv := headless.New(headless.Options{})
	b := New(drv, testOptions())
	require.NoError(t, b.Init(defaultParms))
	assert.Equal(t, STATE_INITIALIZED, b.State())
	assert.NotEqual(t, b.ID().String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, metadata.FORMAT_D32_SFLOAT_S8_UINT, b.DepthFormat())
	assert.Equal(t, metadata.PRESENT_MODE_FIFO, b.PresentMode())

	require.NoError(t, b.Shutdown())
	assert.Equal(t, STATE_UNINITIALIZED, b.State())
	assert.Zero(t, drv.LiveBuffers())
	assert.Zero(t, drv.LiveSyncObjects())
	assert.Equal(t, 1, drv.Calls("DestroyDevice"))
	assert.Equal(t, 1, drv.Calls("DestroyInstance"))
	assert.NoError(t, b.Shutdown(), "second shutdown is a no-op")
}

func TestInitTwiceIsRejected(t *testing.T) {
	b, _ := newBackend(t, headless.Options{}, testOptions(), defaultParms)
	assert.ErrorIs(t, b.Init(defaultParms), core.ErrInvalidTransition)
}

func TestNoCapableDeviceIsFatal(t *testing.T) {
	dev := headless.DefaultDevice()
	dev.Extensions = nil
	drv := headless.New(headless.Options{Devices: []*metadata.PhysicalDeviceInfo{dev}})
	b := New(drv, testOptions())

	err := b.Init(defaultParms)
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
	assert.ErrorIs(t, err, core.ErrNoCapableDevice)
	assert.Equal(t, STATE_UNINITIALIZED, b.State())
	assert.Equal(t, 1, drv.Calls("DestroyInstance"))
	assert.Zero(t, drv.Calls("CreateDevice"))
}

func TestDeviceSelectionSkipsIncapableDevices(t *testing.T) {
	noModes := headless.DefaultDevice()
	noModes.Name = "no present modes"
	noModes.PresentModes = nil

	noQueues := headless.DefaultDevice()
	noQueues.Name = "empty queues"
	noQueues.QueueFamilies = []metadata.QueueFamily{{QueueCount: 0, Graphics: true, Present: true}}

	split := headless.DefaultDevice()
	split.Name = "split queues"
	split.QueueFamilies = []metadata.QueueFamily{
		{QueueCount: 1, Graphics: false, Present: true},
		{QueueCount: 4, Graphics: true, Present: false},
	}

	b, _ := newBackend(t, headless.Options{Devices: []*metadata.PhysicalDeviceInfo{noModes, noQueues, split}}, testOptions(), defaultParms)
	assert.Equal(t, "split queues", b.Device().Name)
	assert.Equal(t, 1, b.graphicsFamily)
	assert.Equal(t, 0, b.presentFamily)
}

func TestChoosers(t *testing.T) {
	preferred := metadata.SurfaceFormat{Format: metadata.FORMAT_B8G8R8A8_UNORM, ColorSpace: metadata.COLOR_SPACE_SRGB_NONLINEAR}
	assert.Equal(t, preferred, chooseSurfaceFormat([]metadata.SurfaceFormat{{Format: metadata.FORMAT_UNDEFINED}}))
	other := metadata.SurfaceFormat{Format: metadata.FORMAT_R8G8B8A8_UNORM}
	assert.Equal(t, other, chooseSurfaceFormat([]metadata.SurfaceFormat{other, {Format: metadata.FORMAT_B8G8R8A8_SRGB}}))
	assert.Equal(t, preferred, chooseSurfaceFormat([]metadata.SurfaceFormat{other, preferred}))

	modes := []metadata.PresentMode{metadata.PRESENT_MODE_FIFO, metadata.PRESENT_MODE_IMMEDIATE, metadata.PRESENT_MODE_MAILBOX}
	assert.Equal(t, metadata.PRESENT_MODE_IMMEDIATE, choosePresentMode(modes, 0))
	assert.Equal(t, metadata.PRESENT_MODE_FIFO, choosePresentMode(modes, 1))
	assert.Equal(t, metadata.PRESENT_MODE_FIFO, choosePresentMode([]metadata.PresentMode{metadata.PRESENT_MODE_FIFO}, 0))

	w, h := chooseSurfaceExtent(metadata.SurfaceCaps{CurrentWidth: -1}, 800, 600)
	assert.Equal(t, [2]uint32{800, 600}, [2]uint32{w, h})
	w, h = chooseSurfaceExtent(metadata.SurfaceCaps{CurrentWidth: 1024, CurrentHeight: 768}, 800, 600)
	assert.Equal(t, [2]uint32{1024, 768}, [2]uint32{w, h})

	all := metadata.SAMPLE_COUNT_1 | metadata.SAMPLE_COUNT_2 | metadata.SAMPLE_COUNT_4 | metadata.SAMPLE_COUNT_8 | metadata.SAMPLE_COUNT_16
	assert.Equal(t, metadata.SAMPLE_COUNT_16, chooseSampleCount(32, all))
	assert.Equal(t, metadata.SAMPLE_COUNT_4, chooseSampleCount(6, all))
	assert.Equal(t, metadata.SAMPLE_COUNT_1, chooseSampleCount(0, all))
	assert.Equal(t, metadata.SAMPLE_COUNT_2, chooseSampleCount(16, metadata.SAMPLE_COUNT_1|metadata.SAMPLE_COUNT_2))

	assert.Equal(t, "Intel", vendorName(VENDOR_INTEL))
	assert.Equal(t, "AMD", vendorName(VENDOR_AMD))
	assert.Equal(t, "Unknown", vendorName(0x1234))

	dev := headless.DefaultDevice()
	dev.DepthFormats = []metadata.Format{metadata.FORMAT_D24_UNORM_S8_UINT}
	f, err := chooseDepthFormat(dev)
	require.NoError(t, err)
	assert.Equal(t, metadata.FORMAT_D24_UNORM_S8_UINT, f)
	dev.DepthFormats = nil
	_, err = chooseDepthFormat(dev)
	assert.True(t, core.IsFatal(err))
}

func TestFrameSlotStateMachine(t *testing.T) {
	fs := &FrameSlot{}
	assert.ErrorIs(t, fs.transition(SLOT_SUBMITTED), core.ErrInvalidTransition)
	require.NoError(t, fs.transition(SLOT_RECORDING))
	require.NoError(t, fs.transition(SLOT_SUBMITTED))
	assert.ErrorIs(t, fs.transition(SLOT_SUBMITTED), core.ErrInvalidTransition, "double submit")
	require.NoError(t, fs.transition(SLOT_PRESENTED))
	require.NoError(t, fs.transition(SLOT_IDLE))
	assert.Equal(t, SLOT_IDLE, fs.State())
}

func TestFrameCycleAdvancesSlots(t *testing.T) {
	b, drv := newBackend(t, headless.Options{}, testOptions(), defaultParms)

	require.NoError(t, b.Execute(nil))
	assert.Equal(t, SLOT_SUBMITTED, b.Slot(0).State())
	assert.Equal(t, STATE_INITIALIZED, b.State())

	require.NoError(t, b.BlockingSwapBuffers())
	assert.Equal(t, SLOT_PRESENTED, b.Slot(0).State())
	assert.Equal(t, 1, b.CurrentFrameData())
	assert.Equal(t, 1, drv.Calls("ResetFence"))

	require.NoError(t, b.BlockingSwapBuffers(), "nothing submitted")
	assert.Equal(t, 1, drv.Calls("Present"))

	require.NoError(t, b.Execute(nil))
	require.NoError(t, b.BlockingSwapBuffers())
	require.NoError(t, b.Execute(nil))
	assert.Equal(t, SLOT_SUBMITTED, b.Slot(0).State(), "slot 0 recycled after its fence")
	require.NoError(t, b.BlockingSwapBuffers())

	assert.Equal(t, uint64(3), b.FrameCounter())
	assert.Equal(t, []uint32{0, 1, 0}, drv.Presented())
}

func TestSecondSubmitWithoutSwapIsRejected(t *testing.T) {
	b, _ := newBackend(t, headless.Options{}, testOptions(), defaultParms)
	require.NoError(t, b.Execute(nil))

	err := b.Execute(nil)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
	assert.False(t, core.IsFatal(err))
	assert.Equal(t, STATE_INITIALIZED, b.State())
}

func TestEndFrameOutsideFrame(t *testing.T) {
	b, _ := newBackend(t, headless.Options{}, testOptions(), defaultParms)
	assert.ErrorIs(t, b.EndFrame(), core.ErrInvalidTransition)
}

func TestSubmitFailureIsFatal(t *testing.T) {
	b, _ := newBackend(t, headless.Options{FailSubmit: true}, testOptions(), defaultParms)
	err := b.Execute(nil)
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
	assert.ErrorIs(t, err, core.ErrSubmit)
}

func TestSwapchainFailureIsFatal(t *testing.T) {
	drv := headless.New(headless.Options{FailSwapchain: true})
	b := New(drv, testOptions())
	err := b.Init(defaultParms)
	assert.True(t, core.IsFatal(err))
	assert.ErrorIs(t, err, core.ErrSwapchain)
	assert.Zero(t, drv.LiveSyncObjects())
}

func TestOutOfDateSwapchainBootsFrame(t *testing.T) {
	b, drv := newBackend(t, headless.Options{}, testOptions(), defaultParms)
	drv.SetOutOfDate()

	err := b.StartFrame()
	require.ErrorIs(t, err, core.ErrSwapchainBooting)
	assert.False(t, core.IsFatal(err))
	assert.Equal(t, STATE_INITIALIZED, b.State())
	assert.Equal(t, SLOT_IDLE, b.Slot(b.CurrentFrameData()).State())

	require.NoError(t, b.Resize(defaultParms))
	assert.Equal(t, 2, drv.Calls("CreateSwapchain"), "same size still recreates a stale swapchain")
	require.NoError(t, b.Resize(defaultParms))
	assert.Equal(t, 2, drv.Calls("CreateSwapchain"))

	require.NoError(t, b.Execute(nil))
	require.NoError(t, b.BlockingSwapBuffers())
}

func TestDrawGuiViewSubmitsOneDrawPerSurface(t *testing.T) {
	b, drv := newBackend(t, headless.Options{}, testOptions(), defaultParms)
	gm := gui.NewGuiModel(b.Cache(), gui.Options{MaxVerts: 64, MaxIndexes: 96, ClipSpaceYDown: true})
	gm.BeginFrame()

	quad := []metadata.TriIndex{0, 1, 2, 0, 2, 3}
	require.NotNil(t, gm.AllocTris(4, quad, material("m1"), 0))
	require.NotNil(t, gm.AllocTris(4, quad, material("m2"), 0))

	f := frame.New(0)
	view := gm.EmitFullScreen(f, math.ScreenRect{X2: 1280, Y2: 720})
	require.NotNil(t, view)
	require.NoError(t, b.Cache().BeginFrame())

	require.NoError(t, b.Execute([]metadata.RenderCommand{{Op: metadata.RC_DRAW_VIEW_GUI, ViewDef: view}}))

	draws := drv.Draws()
	require.Len(t, draws, 2)
	assert.Equal(t, 6, draws[0].IndexCount)
	assert.Equal(t, 0, draws[0].FirstIndex)
	assert.Equal(t, 8, draws[1].FirstIndex)
	assert.Equal(t, "gui", draws[0].Pipeline.Desc.Program)
	assert.NotZero(t, draws[0].Pipeline.Desc.StateBits&metadata.GLS_DEPTHFUNC_ALWAYS)
	assert.Contains(t, draws[0].Uniforms, metadata.BINDING_RENDERPARMS)
	assert.Same(t, draws[0].Pipeline, draws[1].Pipeline, "same program and state share a pipeline")
	assert.Equal(t, [4]int32{0, 0, 1280, 720}, drv.Viewport())

	c := b.Counters()
	assert.Equal(t, int64(2), c.Surfaces)
	assert.Equal(t, int64(2), c.DrawElements)
	assert.Equal(t, int64(12), c.DrawIndexes)
	assert.Equal(t, int64(1), c.Shaders)
	assert.Zero(t, c.DroppedDraws)
}

func newSurface(vb, ib metadata.CacheHandle, numIndexes int) *metadata.DrawSurface {
	return &metadata.DrawSurface{
		NumIndexes:   numIndexes,
		AmbientCache: vb,
		IndexCache:   ib,
		Material:     material("m"),
		Space:        &metadata.ViewEntity{Mvp: math.NewMat4Identity()},
	}
}

func TestStaleHandlesDropTheDraw(t *testing.T) {
	b, drv := newBackend(t, headless.Options{}, testOptions(), defaultParms)
	vc := b.Cache()

	verts := make([]metadata.DrawVert, 4)
	vb := vc.AllocVertex(metadata.AsBytes(verts), 4, metadata.DRAWVERT_SIZE)
	ib := vc.AllocIndex(metadata.AsBytes([]metadata.TriIndex{0, 1, 2, 0, 2, 3}), 6)
	require.NoError(t, vc.BeginFrame())
	require.NoError(t, vc.BeginFrame())

	view := &metadata.ViewDef{Is2DGui: true, Viewport: math.ScreenRect{X2: 640, Y2: 480}, Scissor: math.ScreenRect{X2: 640, Y2: 480}}
	for i := 0; i < 3; i++ {
		s := newSurface(vb, ib, 6)
		s.ScissorRect = view.Scissor
		view.LinkDrawSurf(s)
	}
	view.LinkDrawSurf(&metadata.DrawSurface{ScissorRect: view.Scissor})

	require.NoError(t, b.Execute([]metadata.RenderCommand{{Op: metadata.RC_DRAW_VIEW_GUI, ViewDef: view}}))
	assert.Empty(t, drv.Draws())
	assert.Equal(t, int64(4), b.Counters().DroppedDraws)
	assert.False(t, b.warnings.Warn(b.counter, "stale-vertex", "probe"), "warned once this frame")
	assert.False(t, b.warnings.Warn(b.counter, "null-material", "probe"))
}

func TestSkinningMismatchSkipsDraw(t *testing.T) {
	b, drv := newBackend(t, headless.Options{}, testOptions(), defaultParms)
	vc := b.Cache()
	vb := vc.AllocVertex(make([]byte, 4*metadata.DRAWVERT_SIZE), 4, metadata.DRAWVERT_SIZE)
	ib := vc.AllocIndex(make([]byte, 6*metadata.TRIINDEX_SIZE), 6)
	jc := vc.AllocJoint(make([]byte, metadata.JOINTMAT_SIZE), 1)
	require.NoError(t, vc.BeginFrame())

	require.NoError(t, b.StartFrame())
	b.progs.BindProgram(int(metadata.BUILTIN_DEPTH_SKINNED))
	b.DrawElementsWithCounters(newSurface(vb, ib, 6))
	assert.Empty(t, drv.Draws(), "skinned program without joints")

	skinned := newSurface(vb, ib, 6)
	skinned.JointCache = jc
	b.DrawElementsWithCounters(skinned)
	require.Len(t, drv.Draws(), 1)
	assert.Contains(t, drv.Draws()[0].Uniforms, metadata.BINDING_JOINTS)

	b.progs.BindProgram(int(metadata.BUILTIN_GUI))
	b.DrawElementsWithCounters(skinned)
	assert.Len(t, drv.Draws(), 1, "joints on an unskinned program")
	require.NoError(t, b.EndFrame())
}

func TestDrawVertsAfterOddShadowAllocation(t *testing.T) {
	b, drv := newBackend(t, headless.Options{}, testOptions(), defaultParms)
	vc := b.Cache()

	// one 16 byte shadow vertex leaves the next allocation off the DrawVert stride
	vc.AllocVertex(make([]byte, metadata.SHADOWVERT_SIZE), 1, metadata.SHADOWVERT_SIZE)
	verts := make([]metadata.DrawVert, 4)
	verts[0].Xyz = [3]float32{16, 0, 0}
	vb := vc.AllocVertex(metadata.AsBytes(verts), 4, metadata.DRAWVERT_SIZE)
	require.Equal(t, 16, vb.Offset())
	ib := vc.AllocIndex(metadata.AsBytes([]metadata.TriIndex{0, 1, 2, 0, 2, 3}), 6)
	require.NoError(t, vc.BeginFrame())

	require.NoError(t, b.StartFrame())
	b.progs.BindProgram(int(metadata.BUILTIN_COLOR))
	b.DrawElementsWithCounters(newSurface(vb, ib, 6))
	require.NoError(t, b.EndFrame())

	draws := drv.Draws()
	require.Len(t, draws, 1)
	assert.Zero(t, draws[0].VertexOffset)
	assert.Equal(t, 16, draws[0].VertBinding)
	first := metadata.FromBytes[metadata.DrawVert](draws[0].VertexBuffer.Data[draws[0].VertBinding:])
	assert.Equal(t, float32(16), first[0].Xyz[0])
}

func shadowSurface(t *testing.T, b *Backend, zfail bool) *metadata.DrawSurface {
	t.Helper()
	vc := b.Cache()
	// pad so the volume does not start at vertex 0
	vc.AllocVertex(make([]byte, metadata.DRAWVERT_SIZE), 1, metadata.DRAWVERT_SIZE)
	sc := vc.AllocVertex(make([]byte, 8*metadata.SHADOWVERT_SIZE), 8, metadata.SHADOWVERT_SIZE)
	ib := vc.AllocIndex(make([]byte, 36*metadata.TRIINDEX_SIZE), 36)
	require.NoError(t, vc.BeginFrame())

	s := newSurface(metadata.NoHandle, ib, 36)
	s.ShadowCache = sc
	s.RenderZFail = zfail
	return s
}

func TestStencilShadowPreloadDrawsTwice(t *testing.T) {
	opts := testOptions()
	opts.UseStencilShadowPreload = true
	b, drv := newBackend(t, headless.Options{}, opts, defaultParms)
	s := shadowSurface(t, b, true)

	view := &metadata.ViewDef{Viewport: math.ScreenRect{X2: 1280, Y2: 720}, Scissor: math.ScreenRect{X2: 1280, Y2: 720}}
	s.ScissorRect = view.Scissor
	view.LinkDrawSurf(s)
	require.NoError(t, b.Execute([]metadata.RenderCommand{{Op: metadata.RC_DRAW_VIEW_3D, ViewDef: view}}))

	draws := drv.Draws()
	require.Len(t, draws, 2)
	assert.Equal(t, "shadow", draws[0].Pipeline.Desc.Program)
	assert.Equal(t, STENCIL_PRELOAD_FRONT, draws[0].Pipeline.Desc.StencilFront)
	assert.Equal(t, STENCIL_PRELOAD_BACK, draws[0].Pipeline.Desc.StencilBack)
	assert.Equal(t, STENCIL_ZPASS_FRONT, draws[1].Pipeline.Desc.StencilFront)
	assert.Equal(t, STENCIL_ZPASS_BACK, draws[1].Pipeline.Desc.StencilBack)
	assert.Equal(t, s.ShadowCache.Offset(), draws[0].VertBinding)
	assert.Zero(t, draws[0].VertexOffset)
	assert.Equal(t, int64(2), b.Counters().ShadowElements)

	clears := drv.Clears()
	require.Len(t, clears, 1, "3D views clear depth and stencil")
	assert.True(t, clears[0].Stencil)
	assert.Equal(t, byte(STENCIL_SHADOW_TEST_VALUE), clears[0].StencilValue)
}

func TestStencilShadowZPassDrawsOnce(t *testing.T) {
	b, drv := newBackend(t, headless.Options{}, testOptions(), defaultParms)
	s := shadowSurface(t, b, false)

	require.NoError(t, b.StartFrame())
	b.progs.BindProgram(int(metadata.BUILTIN_SHADOW))
	b.DrawStencilShadowPass(s, true)
	require.NoError(t, b.EndFrame())

	draws := drv.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, STENCIL_ZPASS_FRONT, draws[0].Pipeline.Desc.StencilFront)
	assert.Equal(t, int64(36), b.Counters().ShadowIndexes)
}

func TestGLStateKeepsStickyBitsAndForcesMirror(t *testing.T) {
	b, drv := newBackend(t, headless.Options{}, testOptions(), defaultParms)
	require.NoError(t, b.StartFrame())

	b.DepthBoundsTest(0.1, 0.9)
	assert.Equal(t, 1, drv.Calls("SetDepthBounds"))
	b.GLState(metadata.GLS_POLYGON_OFFSET)
	assert.Equal(t, metadata.GLS_POLYGON_OFFSET|metadata.GLS_DEPTH_TEST_MASK, b.StateBits())

	b.DepthBoundsTest(0.9, 0.1)
	assert.Equal(t, 1, drv.Calls("SetDepthBounds"), "inverted range is ignored")

	b.DepthBoundsTest(0, 0)
	assert.Zero(t, b.StateBits()&metadata.GLS_DEPTH_TEST_MASK)

	b.viewDef = &metadata.ViewDef{IsMirror: true}
	b.GLState(metadata.GLS_CULL_TWOSIDED)
	assert.Equal(t, metadata.GLS_CULL_TWOSIDED|metadata.GLS_MIRROR_VIEW, b.StateBits())
	b.viewDef = nil

	b.SetDefaultState()
	assert.Zero(t, b.StateBits())
	assert.Equal(t, [4]int32{0, 0, 1280, 720}, drv.Scissor())

	b.PolygonOffset(2, 3)
	assert.Equal(t, 1, drv.Calls("SetPolygonOffset"))
	require.NoError(t, b.EndFrame())
}

func TestResizeRecreatesSwapchainAndKeepsPipelines(t *testing.T) {
	b, drv := newBackend(t, headless.Options{}, testOptions(), defaultParms)
	b.progs.BindProgram(int(metadata.BUILTIN_GUI))
	_, err := b.progs.GetPipeline(0, 0, 0)
	require.NoError(t, err)

	var got [3]uint32
	listener := &struct{}{}
	core.EventRegister(core.EVENT_CODE_RENDER_TARGETS_RECREATED, listener,
		func(code core.SystemEventCode, sender, l interface{}, ctx core.EventContext) bool {
			got = [3]uint32{ctx.Data.U32[0], ctx.Data.U32[1], ctx.Data.U32[2]}
			return false
		})
	t.Cleanup(func() { core.EventUnregister(core.EVENT_CODE_RENDER_TARGETS_RECREATED, listener) })

	require.NoError(t, b.Resize(defaultParms), "unchanged parameters")
	assert.Equal(t, 1, drv.Calls("CreateSwapchain"))

	drv.SetSurfaceSize(1920, 1080)
	parms := defaultParms
	parms.Width, parms.Height = 1920, 1080
	require.NoError(t, b.Resize(parms))

	w, h := b.SwapchainExtent()
	assert.Equal(t, [2]uint32{1920, 1080}, [2]uint32{w, h})
	assert.Equal(t, 2, drv.Calls("CreateSwapchain"))
	assert.Equal(t, 2, drv.Calls("CreateSurface"))
	assert.Equal(t, 1, drv.Calls("CreateRenderPass"), "render pass kept")
	assert.Equal(t, 1, b.progs.NumPipelines())
	assert.Equal(t, [3]uint32{1920, 1080, 1}, got)
	assert.Equal(t, STATE_INITIALIZED, b.State())

	require.NoError(t, b.Execute(nil))
	require.NoError(t, b.BlockingSwapBuffers())
}

func TestRestartRebuildsRenderPass(t *testing.T) {
	b, drv := newBackend(t, headless.Options{}, testOptions(), defaultParms)
	b.progs.BindProgram(int(metadata.BUILTIN_GUI))
	_, err := b.progs.GetPipeline(0, 0, 0)
	require.NoError(t, err)

	parms := defaultParms
	parms.MultiSamples = 4
	require.NoError(t, b.Restart(parms))
	assert.Equal(t, metadata.SAMPLE_COUNT_4, b.SampleCount())
	assert.Equal(t, 2, drv.Calls("CreateRenderPass"))
	assert.Zero(t, b.progs.NumPipelines())

	p, err := b.progs.GetPipeline(0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, metadata.SAMPLE_COUNT_4, p.(*headless.Pipeline).Desc.Samples)
}

func TestResizeDuringFrameIsRejected(t *testing.T) {
	b, _ := newBackend(t, headless.Options{}, testOptions(), defaultParms)
	require.NoError(t, b.StartFrame())
	parms := defaultParms
	parms.Width = 800
	assert.ErrorIs(t, b.Resize(parms), core.ErrInvalidTransition)
	require.NoError(t, b.EndFrame())
}

func TestGarbageReleasedOnlyAfterSlotFence(t *testing.T) {
	b, drv := newBackend(t, headless.Options{}, testOptions(), defaultParms)
	live := drv.LiveBuffers()

	vb := buffer.NewVertexBuffer(b.gc)
	require.NoError(t, vb.AllocBufferObject(nil, 64, metadata.BU_STATIC))
	vb.FreeBufferObject()
	assert.Equal(t, live+1, drv.LiveBuffers(), "queued on slot 0")
	assert.Equal(t, 1, b.gc.pending())

	require.NoError(t, b.Execute(nil))
	require.NoError(t, b.BlockingSwapBuffers())
	require.NoError(t, b.Execute(nil))
	require.NoError(t, b.BlockingSwapBuffers())
	assert.Equal(t, live+1, drv.LiveBuffers())

	require.NoError(t, b.Execute(nil))
	assert.Equal(t, live, drv.LiveBuffers(), "released when slot 0 came around")
	assert.Zero(t, b.gc.pending())
}

func TestWaitSlotWaitsOnlyForSubmittedReaders(t *testing.T) {
	b, drv := newBackend(t, headless.Options{}, testOptions(), defaultParms)
	require.NoError(t, b.Execute(nil))

	require.NoError(t, b.WaitSlot(1))
	assert.Zero(t, drv.Calls("WaitFence"))
	require.NoError(t, b.WaitSlot(0))
	assert.Equal(t, 1, drv.Calls("WaitFence"))
	assert.Equal(t, SLOT_SUBMITTED, b.Slot(0).State())
}

func TestCopyRender(t *testing.T) {
	b, drv := newBackend(t, headless.Options{}, testOptions(), defaultParms)
	img, err := drv.CreateRenderImage("_currentRender", 256, 256)
	require.NoError(t, err)

	require.NoError(t, b.Execute([]metadata.RenderCommand{
		{Op: metadata.RC_COPY_RENDER, Image: img, ImageWidth: 256, ImageHeight: 256, ClearColorAfterCopy: true},
		{Op: metadata.RC_COPY_RENDER},
	}))
	assert.Equal(t, []string{"_currentRender"}, drv.CopiedImages())
	assert.Equal(t, int64(1), b.Counters().CopyFrameBuffer)
	clears := drv.Clears()
	require.Len(t, clears, 1)
	assert.True(t, clears[0].Color)
	assert.Equal(t, 2, drv.Calls("BeginRenderPass"))
}

func TestStateOutsideFrameIsIgnored(t *testing.T) {
	b, drv := newBackend(t, headless.Options{}, testOptions(), defaultParms)
	b.Scissor(0, 0, 10, 10)
	b.Clear(true, true, true, 0, 0, 0, 0, 0)
	assert.Zero(t, drv.Calls("SetScissor"))
	assert.Zero(t, drv.Calls("ClearAttachments"))
	assert.NoError(t, b.BlockingSwapBuffers())
}
