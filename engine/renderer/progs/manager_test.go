package progs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-renderer/engine/math"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/headless"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

func newManager(t *testing.T) (*Manager, *headless.Driver, metadata.CommandBuffer) {
	t.Helper()
	drv := headless.New(headless.Options{})
	require.NoError(t, drv.CreateRenderPass(metadata.RenderTargetDesc{Samples: metadata.SAMPLE_COUNT_1}))
	cbs, err := drv.CreateCommandBuffers(1)
	require.NoError(t, err)

	m := NewManager(drv, 2, 256)
	require.NoError(t, m.Init(metadata.BuiltinPrograms[:], metadata.SAMPLE_COUNT_1))
	t.Cleanup(m.Shutdown)
	return m, drv, cbs[0]
}

func TestBuiltinsRegisteredInOrder(t *testing.T) {
	m, _, _ := newManager(t)
	assert.Equal(t, int(metadata.MAX_BUILTINS), m.NumPrograms())
	assert.Equal(t, int(metadata.BUILTIN_SHADOW), m.FindProgram("shadow", metadata.LAYOUT_DRAW_SHADOW_VERT, false, false))

	idx := m.FindProgram("custom", metadata.LAYOUT_DRAW_VERT, false, false)
	assert.Equal(t, int(metadata.MAX_BUILTINS), idx)
	assert.Equal(t, idx, m.FindProgram("custom", metadata.LAYOUT_DRAW_VERT, false, false))
}

func TestPipelineCache(t *testing.T) {
	m, drv, _ := newManager(t)

	_, err := m.GetPipeline(0, 0, 0)
	assert.Error(t, err, "no program bound")

	m.BindProgram(int(metadata.BUILTIN_GUI))
	a, err := m.GetPipeline(metadata.GLS_DEPTHFUNC_ALWAYS, 0, 0)
	require.NoError(t, err)
	b, err := m.GetPipeline(metadata.GLS_DEPTHFUNC_ALWAYS, 0, 0)
	require.NoError(t, err)
	assert.Same(t, a.(*headless.Pipeline), b.(*headless.Pipeline))
	assert.Equal(t, 1, drv.Calls("CreatePipeline"))

	c, err := m.GetPipeline(metadata.GLS_DEPTHFUNC_ALWAYS, metadata.GLS_STENCIL_OP_PASS_INCR, 0)
	require.NoError(t, err)
	assert.NotSame(t, a.(*headless.Pipeline), c.(*headless.Pipeline))

	m.BindProgram(int(metadata.BUILTIN_COLOR))
	_, err = m.GetPipeline(metadata.GLS_DEPTHFUNC_ALWAYS, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, m.NumPipelines())
}

func TestInvalidatePipelines(t *testing.T) {
	m, drv, _ := newManager(t)
	m.BindProgram(int(metadata.BUILTIN_DEPTH_SKINNED))

	p, err := m.GetPipeline(0, 0, 0)
	require.NoError(t, err)
	assert.True(t, p.(*headless.Pipeline).Desc.UsesJoints)

	m.InvalidatePipelines(metadata.SAMPLE_COUNT_4)
	assert.Equal(t, 0, m.NumPipelines())
	assert.Equal(t, 1, drv.Calls("DestroyPipeline"))

	p2, err := m.GetPipeline(0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, metadata.SAMPLE_COUNT_4, p2.(*headless.Pipeline).Desc.Samples)
}

func TestCommitUniformsBumpsPerSlot(t *testing.T) {
	m, drv, cb := newManager(t)
	m.BindProgram(int(metadata.BUILTIN_GUI))
	m.SetRenderParm(metadata.RENDERPARM_COLOR, [4]float32{1, 0.5, 0.25, 1})

	m.StartFrame(0)
	require.NoError(t, m.CommitUniforms(cb, 0))
	require.NoError(t, m.CommitUniforms(cb, 0))
	assert.Equal(t, 2*m.blockSize, m.parmOffsets[0])
	assert.Equal(t, 0, m.parmOffsets[1])
	assert.Equal(t, 2, drv.Calls("BindUniformBuffer"))

	native := m.parmBuffers[0].Native().(*headless.Buffer)
	colors := metadata.FromBytes[math.Vec4](native.Data[m.blockSize:])
	assert.Equal(t, math.Vec4{X: 1, Y: 0.5, Z: 0.25, W: 1}, colors[metadata.RENDERPARM_COLOR])

	m.StartFrame(0)
	assert.Equal(t, 0, m.parmOffsets[0])
}

func TestSetMVPLoadsRows(t *testing.T) {
	m, _, _ := newManager(t)
	mvp := math.NewMat4Identity()
	mvp.Data[12] = 5

	m.SetMVP(mvp)
	assert.Equal(t, math.Vec4{X: 1, W: 5}, m.RenderParm(metadata.RENDERPARM_MVPMATRIX_X))
	assert.Equal(t, math.Vec4{W: 1}, m.RenderParm(metadata.RENDERPARM_MVPMATRIX_W))
}

func TestShutdownReleasesBuffers(t *testing.T) {
	drv := headless.New(headless.Options{})
	m := NewManager(drv, 3, 256)
	require.NoError(t, m.Init(nil, metadata.SAMPLE_COUNT_1))
	assert.Equal(t, 3, drv.LiveBuffers())
	m.Shutdown()
	assert.Equal(t, 0, drv.LiveBuffers())
}
