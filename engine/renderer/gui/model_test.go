package gui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-renderer/engine/math"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/frame"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/headless"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/vertexcache"
)

var quad = []metadata.TriIndex{0, 1, 2, 0, 2, 3}

func newModel(t *testing.T) (*GuiModel, *vertexcache.Cache) {
	t.Helper()
	vc := vertexcache.New(headless.New(headless.Options{}), vertexcache.Options{
		FrameData:            2,
		VertexMemoryPerFrame: 64 * metadata.DRAWVERT_SIZE,
		IndexMemoryPerFrame:  256,
		JointMemoryPerFrame:  256,
		StaticVertexMemory:   256,
		StaticIndexMemory:    256,
	})
	require.NoError(t, vc.Init(256))
	t.Cleanup(vc.Shutdown)

	gm := NewGuiModel(vc, Options{
		MaxVerts:        64,
		MaxIndexes:      96,
		DefaultMaterial: &metadata.ConstMaterial{MaterialName: "_default"},
		ClipSpaceYDown:  true,
	})
	gm.BeginFrame()
	return gm, vc
}

func material(name string) *metadata.ConstMaterial {
	return &metadata.ConstMaterial{MaterialName: name, SortKey: metadata.SS_GUI, Prog: metadata.BUILTIN_GUI, Registers: []float32{1, 1, 1, 1}}
}

func TestTwoMaterialsYieldTwoAlignedSurfaces(t *testing.T) {
	gm, _ := newModel(t)
	m1, m2 := material("m1"), material("m2")

	require.Len(t, gm.AllocTris(4, quad, m1, 0), 4)
	require.Len(t, gm.AllocTris(4, quad, m2, 0), 4)

	f := frame.New(0)
	view := gm.EmitFullScreen(f, math.ScreenRect{X2: 1280, Y2: 720})
	require.NotNil(t, view)
	require.Len(t, view.DrawSurfs, 2)

	first, second := view.DrawSurfs[0], view.DrawSurfs[1]
	assert.Equal(t, 6, first.NumIndexes)
	assert.Equal(t, 6, second.NumIndexes)
	assert.Same(t, m1, first.Material)
	assert.Same(t, m2, second.Material)

	offset := second.IndexCache.Offset() - first.IndexCache.Offset()
	assert.Equal(t, 8*metadata.TRIINDEX_SIZE, offset, "second run starts on an 8 index boundary")
	assert.Equal(t, 8, gm.Surfaces()[1].FirstIndex)
}

func TestIdenticalCallsShareOneSurface(t *testing.T) {
	gm, _ := newModel(t)
	m := material("m")

	for i := 0; i < 5; i++ {
		require.NotNil(t, gm.AllocTris(4, quad, m, metadata.GLS_DEPTHFUNC_ALWAYS))
	}
	require.Len(t, gm.Surfaces(), 1)
	assert.Equal(t, 30, gm.Surfaces()[0].NumIndexes)

	f := frame.New(0)
	view := gm.EmitFullScreen(f, math.ScreenRect{X2: 640, Y2: 480})
	require.Len(t, view.DrawSurfs, 1)
	assert.Equal(t, metadata.GLS_DEPTHFUNC_ALWAYS, view.DrawSurfs[0].ExtraGLState)
}

func TestStateChangeAdvances(t *testing.T) {
	gm, _ := newModel(t)
	m := material("m")

	gm.AllocTris(4, quad, m, 0)
	gm.AllocTris(4, quad, m, metadata.GLS_POLYGON_OFFSET)
	assert.Len(t, gm.Surfaces(), 2)
}

func TestFirstAllocReusesEmptySurface(t *testing.T) {
	gm, _ := newModel(t)
	gm.AllocTris(4, quad, material("m"), 0)
	assert.Len(t, gm.Surfaces(), 1, "the empty default surface takes the material")
}

func TestIndexesAreRebasedOnStartVertex(t *testing.T) {
	gm, vc := newModel(t)
	m := material("m")

	gm.AllocTris(4, quad, m, 0)
	gm.AllocTris(4, quad, m, 0)
	// odd count takes the single index path
	gm.AllocTris(3, []metadata.TriIndex{0, 1, 2}, m, 0)

	idx := metadata.FromBytes[metadata.TriIndex](vc.MappedIndexBuffer(gm.indexBlock))
	assert.Equal(t, []metadata.TriIndex{0, 1, 2, 0, 2, 3}, idx[0:6])
	assert.Equal(t, []metadata.TriIndex{4, 5, 6, 4, 6, 7}, idx[6:12])
	assert.Equal(t, []metadata.TriIndex{8, 9, 10}, idx[12:15])
}

func TestAllocTrisRejectsNilMaterialAndOverflow(t *testing.T) {
	gm, _ := newModel(t)
	assert.Nil(t, gm.AllocTris(4, quad, nil, 0))

	m := material("m")
	assert.Nil(t, gm.AllocTris(65, quad, m, 0), "vertex capacity")
	assert.Nil(t, gm.AllocTris(4, make([]metadata.TriIndex, 97), m, 0), "index capacity")
	assert.False(t, gm.warnings.Warn(0, "max-verts", "probe"))
	assert.False(t, gm.warnings.Warn(0, "max-indexes", "probe"))
	assert.Equal(t, 0, gm.NumVerts())
}

func TestEmitFullScreenEmpty(t *testing.T) {
	gm, _ := newModel(t)
	assert.Nil(t, gm.EmitFullScreen(frame.New(0), math.ScreenRect{X2: 640, Y2: 480}))
}

func TestEmitFullScreenView(t *testing.T) {
	gm, _ := newModel(t)
	gm.AllocTris(4, quad, material("m"), 0)

	view := gm.EmitFullScreen(frame.New(0), math.ScreenRect{X1: 10, Y1: 20, X2: 650, Y2: 500})
	require.NotNil(t, view)
	assert.True(t, view.Is2DGui)
	assert.Equal(t, math.ScreenRect{X2: 640, Y2: 480}, view.Scissor)
	assert.Equal(t, view.Scissor, view.DrawSurfs[0].ScissorRect)
	assert.Empty(t, view.ViewEntities, "full screen guis are not linked as entities")

	// the top-left corner of the virtual screen lands on clip (-1, -1) with Y down
	corner := view.DrawSurfs[0].Space.Mvp.TransformPoint(0, 0, 0)
	assert.InDelta(t, -1, corner.X, 1e-6)
	assert.InDelta(t, -1, corner.Y, 1e-6)
	far := view.DrawSurfs[0].Space.Mvp.TransformPoint(SCREEN_WIDTH, SCREEN_HEIGHT, 0)
	assert.InDelta(t, 1, far.X, 1e-6)
	assert.InDelta(t, 1, far.Y, 1e-6)
}

func TestDynamicRegistersEvaluatedIntoFrameMemory(t *testing.T) {
	gm, _ := newModel(t)
	dyn := &metadata.ConstMaterial{
		MaterialName: "pulse",
		Registers:    []float32{0, 0},
		Eval: func(regs, entityParms, globalParms []float32, time float32) {
			regs[0] = entityParms[0]
			regs[1] = time
		},
	}
	gm.SetShaderParms([]float32{0.5})
	gm.AllocTris(4, quad, dyn, 0)

	f := frame.New(0)
	view := f.AllocView()
	view.Time = 2
	view.ProjectionMatrix = math.NewMat4Identity()
	view.WorldSpace.ModelViewMatrix = math.NewMat4Identity()
	gm.EmitToCurrentView(f, view, math.NewMat4Identity(), true)

	require.Len(t, view.DrawSurfs, 1)
	assert.Equal(t, []float32{0.5, 2}, view.DrawSurfs[0].ShaderRegisters)
	assert.Len(t, view.ViewEntities, 1)
	assert.True(t, view.DrawSurfs[0].Space.WeaponDepthHack)
	assert.InDelta(t, 0.25, view.DrawSurfs[0].Space.Mvp.Data[10], 1e-6)
}
