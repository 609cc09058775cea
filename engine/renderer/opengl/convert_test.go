package opengl

import (
	"testing"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

func TestBlendState(t *testing.T) {
	src, dst, op := blendState(metadata.GLS_DEFAULT)
	assert.Equal(t, uint32(gl.ONE), src)
	assert.Equal(t, uint32(gl.ZERO), dst)
	assert.Equal(t, uint32(gl.FUNC_ADD), op)

	src, dst, op = blendState(metadata.GLS_SRCBLEND_SRC_ALPHA | metadata.GLS_DSTBLEND_ONE_MINUS_SRC_ALPHA | metadata.GLS_BLENDOP_SUB)
	assert.Equal(t, uint32(gl.SRC_ALPHA), src)
	assert.Equal(t, uint32(gl.ONE_MINUS_SRC_ALPHA), dst)
	assert.Equal(t, uint32(gl.FUNC_SUBTRACT), op)
}

func TestDepthFunc(t *testing.T) {
	assert.Equal(t, uint32(gl.LEQUAL), depthFunc(metadata.GLS_DEPTHFUNC_LESS))
	assert.Equal(t, uint32(gl.ALWAYS), depthFunc(metadata.GLS_DEPTHFUNC_ALWAYS))
	assert.Equal(t, uint32(gl.GEQUAL), depthFunc(metadata.GLS_DEPTHFUNC_GREATER))
	assert.Equal(t, uint32(gl.EQUAL), depthFunc(metadata.GLS_DEPTHFUNC_EQUAL))
}

func TestCullFace(t *testing.T) {
	_, cull := cullFace(metadata.GLS_CULL_TWOSIDED)
	assert.False(t, cull)

	face, cull := cullFace(metadata.GLS_CULL_FRONTSIDED)
	assert.True(t, cull)
	assert.Equal(t, uint32(gl.FRONT), face)

	face, _ = cullFace(metadata.GLS_CULL_FRONTSIDED | metadata.GLS_MIRROR_VIEW)
	assert.Equal(t, uint32(gl.BACK), face)

	face, _ = cullFace(metadata.GLS_CULL_BACKSIDED)
	assert.Equal(t, uint32(gl.BACK), face)
}

func TestStencilFace(t *testing.T) {
	state := metadata.GLS_STENCIL_FUNC_EQUAL | metadata.StencilRef(128) | metadata.StencilMask(0xFF) |
		metadata.GLS_STENCIL_OP_FAIL_KEEP | metadata.GLS_STENCIL_OP_ZFAIL_KEEP | metadata.GLS_STENCIL_OP_PASS_INCR
	assert.True(t, stencilTestEnabled(state, 0, 0))
	assert.False(t, stencilTestEnabled(metadata.GLS_DEFAULT, 0, 0))

	s := stencilFace(state, 0)
	assert.Equal(t, uint32(gl.EQUAL), s.fn)
	assert.Equal(t, int32(128), s.ref)
	assert.Equal(t, uint32(0xFF), s.mask)
	assert.Equal(t, uint32(gl.KEEP), s.fail)
	assert.Equal(t, uint32(gl.INCR), s.pass)

	back := stencilFace(state, metadata.GLS_STENCIL_OP_ZFAIL_DECR_WRAP)
	assert.Equal(t, uint32(gl.DECR_WRAP), back.zfail)
	assert.Equal(t, uint32(gl.KEEP), back.pass)
}

func TestFlipY(t *testing.T) {
	assert.Equal(t, int32(600-10-100), flipY(10, 100, 600))
	assert.Equal(t, int32(0), flipY(0, 600, 600))
}

func TestClampRect(t *testing.T) {
	x, y, w, h := clampRect(-10, 5, 100, 100, 50, 50)
	assert.Equal(t, []int32{0, 5, 50, 45}, []int32{x, y, w, h})

	_, _, w, h = clampRect(60, 60, 10, 10, 50, 50)
	assert.Zero(t, w)
	assert.Zero(t, h)
}

func TestVertexAttributes(t *testing.T) {
	for _, layout := range []metadata.VertexLayout{
		metadata.LAYOUT_DRAW_VERT,
		metadata.LAYOUT_DRAW_SHADOW_VERT,
		metadata.LAYOUT_DRAW_SHADOW_VERT_SKINNED,
	} {
		attrs := vertexAttributes(layout)
		require.NotEmpty(t, attrs)
		for i, a := range attrs {
			assert.Equal(t, uint32(i), a.location)
			assert.Less(t, int(a.offset), layout.Stride())
		}
	}
	drawVert := vertexAttributes(metadata.LAYOUT_DRAW_VERT)
	assert.Equal(t, uintptr(metadata.DRAWVERT_SIZE-4), drawVert[len(drawVert)-1].offset)
	assert.Equal(t, uint32(gl.HALF_FLOAT), drawVert[1].xtype)
}

func TestSampleCountsUpTo(t *testing.T) {
	assert.Equal(t, metadata.SAMPLE_COUNT_1, sampleCountsUpTo(0))
	assert.Equal(t, metadata.SAMPLE_COUNT_1|metadata.SAMPLE_COUNT_2|metadata.SAMPLE_COUNT_4, sampleCountsUpTo(4))
	assert.Equal(t, metadata.SampleCount(0x1F), sampleCountsUpTo(32))
}
