package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/math"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/components"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/headless"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

func testConfig() *core.RenderConfig {
	cfg := core.DefaultRenderConfig()
	cfg.Renderer.Driver = core.DRIVER_HEADLESS
	cfg.Renderer.VertexMemoryPerFrame = 64 * 1024
	cfg.Renderer.IndexMemoryPerFrame = 16 * 1024
	cfg.Renderer.JointMemoryPerFrame = 16 * 1024
	cfg.Renderer.StaticVertexMemory = 4096
	cfg.Renderer.StaticIndexMemory = 4096
	cfg.Renderer.GuiMaxVerts = 256
	cfg.Renderer.GuiMaxIndexes = 384
	return cfg
}

func newRenderSystem(t *testing.T) (*RenderSystem, *headless.Driver) {
	t.Helper()
	drv := headless.New(headless.Options{})
	rs := New(drv, testConfig())
	require.NoError(t, rs.Init())
	t.Cleanup(func() { _ = rs.Shutdown() })
	return rs, drv
}

func red() *metadata.ConstMaterial {
	return &metadata.ConstMaterial{MaterialName: "red", SortKey: metadata.SS_GUI, Prog: metadata.BUILTIN_GUI, Registers: []float32{1, 0, 0, 1}}
}

func ops(cmds []metadata.RenderCommand) []metadata.RenderCommandOp {
	out := make([]metadata.RenderCommandOp, len(cmds))
	for i, c := range cmds {
		out[i] = c.Op
	}
	return out
}

func TestPackColor(t *testing.T) {
	assert.Equal(t, uint32(0xFFFFFFFF), PackColor(1, 1, 1, 1))
	assert.Equal(t, uint32(0xFF0000FF), PackColor(1, 0, 0, 1))
	assert.Equal(t, uint32(0xFF0000FF), PackColor(2, -1, 0, 1), "components are clamped")
}

func TestDrawStretchPicFillsQuad(t *testing.T) {
	rs, _ := newRenderSystem(t)
	rs.SetColor(1, 0, 0, 1)
	rs.DrawStretchPic(10, 20, 100, 50, 0, 0, 1, 1, nil)

	require.Equal(t, 4, rs.Gui().NumVerts())
	require.Equal(t, 6, rs.Gui().NumIndexes())
	surfs := rs.Gui().Surfaces()
	require.Len(t, surfs, 1)
	assert.Same(t, WhiteMaterial, surfs[0].Material)
}

func TestFrameRoundTrip(t *testing.T) {
	rs, drv := newRenderSystem(t)
	rs.DrawStretchPic(0, 0, 640, 480, 0, 0, 1, 1, nil)
	rs.DrawStretchPic(10, 10, 20, 20, 0, 0, 1, 1, red())

	cmds, err := rs.SwapCommandBuffers()
	require.NoError(t, err)
	assert.Equal(t, []metadata.RenderCommandOp{metadata.RC_DRAW_VIEW_GUI}, ops(cmds))
	assert.Equal(t, uint64(1), rs.FrameCount())
	assert.Zero(t, rs.Gui().NumIndexes(), "next frame starts empty")

	require.NoError(t, rs.RenderCommandBuffers(cmds))
	assert.Len(t, drv.Draws(), 2)

	cmds, err = rs.SwapCommandBuffers()
	require.NoError(t, err)
	assert.Empty(t, cmds)
	assert.Equal(t, int64(2), rs.LastCounters().DrawElements)
	assert.Equal(t, 1, drv.Calls("Present"))
}

func TestCaptureRenderToImageSplitsGui(t *testing.T) {
	rs, drv := newRenderSystem(t)
	_, err := rs.CreateRenderImage("_currentRender", 256, 256)
	require.NoError(t, err)

	rs.DrawStretchPic(0, 0, 64, 64, 0, 0, 1, 1, nil)
	rs.CaptureRenderToImage("_currentRender", false)
	rs.DrawFilled(0, 0, 1, 1, 0, 0, 32, 32)
	rs.CaptureRenderToImage("missing", false)

	cmds, err := rs.SwapCommandBuffers()
	require.NoError(t, err)
	assert.Equal(t, []metadata.RenderCommandOp{
		metadata.RC_DRAW_VIEW_GUI,
		metadata.RC_COPY_RENDER,
		metadata.RC_DRAW_VIEW_GUI,
	}, ops(cmds))
	assert.Equal(t, int32(256), cmds[1].ImageWidth)

	require.NoError(t, rs.RenderCommandBuffers(cmds))
	assert.Equal(t, []string{"_currentRender"}, drv.CopiedImages())
	assert.Len(t, drv.Draws(), 2)
}

func TestResizeAppliedBetweenFrames(t *testing.T) {
	rs, drv := newRenderSystem(t)
	drv.SetSurfaceSize(800, 600)

	ctx := core.EventContext{}
	ctx.Data.U32[0] = 800
	ctx.Data.U32[1] = 600
	core.EventFire(core.EVENT_CODE_RESIZED, nil, ctx)
	w, h := rs.Backend().SwapchainExtent()
	assert.Equal(t, []uint32{1280, 720}, []uint32{w, h}, "nothing changes until the next swap")

	_, err := rs.SwapCommandBuffers()
	require.NoError(t, err)
	w, h = rs.Backend().SwapchainExtent()
	assert.Equal(t, []uint32{800, 600}, []uint32{w, h})
	assert.Equal(t, int32(800), rs.Viewport().X2)
	assert.Equal(t, int32(600), rs.Viewport().Y2)
}

func TestMinimizedWindowIsIgnored(t *testing.T) {
	rs, drv := newRenderSystem(t)
	rs.RequestResize(0, 0)
	_, err := rs.SwapCommandBuffers()
	require.NoError(t, err)
	assert.Equal(t, 1, drv.Calls("CreateSwapchain"))
}

func TestOutOfDateSwapchainDropsFrame(t *testing.T) {
	rs, drv := newRenderSystem(t)
	rs.DrawStretchPic(0, 0, 64, 64, 0, 0, 1, 1, nil)
	cmds, err := rs.SwapCommandBuffers()
	require.NoError(t, err)

	drv.SetOutOfDate()
	require.NoError(t, rs.RenderCommandBuffers(cmds))
	assert.Empty(t, drv.Draws())
	assert.Equal(t, 2, drv.Calls("CreateSwapchain"))

	cmds, err = rs.SwapCommandBuffers()
	require.NoError(t, err)
	require.NoError(t, rs.RenderCommandBuffers(cmds))
}

func TestConfigReloadRestartsOnSampleChange(t *testing.T) {
	rs, drv := newRenderSystem(t)
	cfg := testConfig()
	cfg.Display.MultiSamples = 4

	core.EventFire(core.EVENT_CODE_CONFIG_RELOADED, nil, core.EventContext{Payload: cfg})
	_, err := rs.SwapCommandBuffers()
	require.NoError(t, err)
	assert.Equal(t, 2, drv.Calls("CreateRenderPass"))
	assert.Equal(t, metadata.SAMPLE_COUNT_4, rs.Backend().SampleCount())
}

func TestInitTwice(t *testing.T) {
	rs, _ := newRenderSystem(t)
	assert.ErrorIs(t, rs.Init(), core.ErrInvalidTransition)
}

func triangle() *Model {
	verts := make([]metadata.DrawVert, 3)
	verts[0].Xyz = [3]float32{-1, 0, 0}
	verts[1].Xyz = [3]float32{1, 0, 0}
	verts[2].Xyz = [3]float32{0, 1, 0}
	return &Model{
		Verts:       verts,
		Indexes:     []metadata.TriIndex{0, 1, 2},
		ModelMatrix: math.NewMat4Translation(math.NewVec3(0, 0, -5)),
		Material: &metadata.ConstMaterial{
			MaterialName: "solid",
			SortKey:      metadata.SS_OPAQUE,
			Prog:         metadata.BUILTIN_COLOR,
			Registers:    []float32{0, 1, 0, 1},
		},
	}
}

func TestViewIsDrawnBeforeGui(t *testing.T) {
	rs, drv := newRenderSystem(t)

	view := rs.NewView(components.NewCamera())
	assert.Equal(t, rs.Viewport(), view.Viewport)
	require.True(t, rs.AddModel(view, triangle()))
	rs.AddView(view)
	rs.DrawFilled(1, 1, 1, 1, 0, 0, 32, 32)

	require.Len(t, view.DrawSurfs, 1)
	require.Len(t, view.ViewEntities, 1)
	center := view.ViewEntities[0].Mvp.TransformPoint(0, 0, 0)
	assert.InDelta(t, 0, center.X/center.W, 1e-5)
	assert.InDelta(t, 5, center.W, 1e-5, "w is the distance in front of the camera")

	cmds, err := rs.SwapCommandBuffers()
	require.NoError(t, err)
	assert.Equal(t, []metadata.RenderCommandOp{metadata.RC_DRAW_VIEW_3D, metadata.RC_DRAW_VIEW_GUI}, ops(cmds))

	require.NoError(t, rs.RenderCommandBuffers(cmds))
	draws := drv.Draws()
	require.Len(t, draws, 2)
	assert.Equal(t, 3, draws[0].IndexCount)
	assert.Equal(t, 6, draws[1].IndexCount)
}

func TestDynamicModelRegisters(t *testing.T) {
	rs, _ := newRenderSystem(t)
	m := triangle()
	m.ShaderParms = []float32{0.25}
	m.Material = &metadata.ConstMaterial{
		MaterialName: "pulse",
		Prog:         metadata.BUILTIN_COLOR,
		Registers:    []float32{1, 1, 1, 1},
		Eval: func(regs, entityParms, globalParms []float32, time float32) {
			regs[3] = entityParms[0]
		},
	}

	view := rs.NewView(components.NewCamera())
	require.True(t, rs.AddModel(view, m))
	assert.Equal(t, []float32{1, 1, 1, 0.25}, view.DrawSurfs[0].ShaderRegisters)
}

func TestAddModelOutOfMemory(t *testing.T) {
	rs, _ := newRenderSystem(t)
	view := rs.NewView(components.NewCamera())

	m := triangle()
	m.Verts = make([]metadata.DrawVert, 64*1024/metadata.DRAWVERT_SIZE+1)
	assert.False(t, rs.AddModel(view, m))
	assert.False(t, rs.AddModel(view, &Model{}))
	assert.Empty(t, view.DrawSurfs)
}
