package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

func TestBlendState(t *testing.T) {
	src, dst, op := blendState(metadata.GLS_SRCBLEND_SRC_ALPHA | metadata.GLS_DSTBLEND_ONE_MINUS_SRC_ALPHA)
	assert.Equal(t, vk.BlendFactorSrcAlpha, src)
	assert.Equal(t, vk.BlendFactorOneMinusSrcAlpha, dst)
	assert.Equal(t, vk.BlendOpAdd, op)
	assert.True(t, blendEnabled(src, dst))

	src, dst, op = blendState(metadata.GLS_DEFAULT)
	assert.Equal(t, vk.BlendFactorOne, src)
	assert.Equal(t, vk.BlendFactorZero, dst)
	assert.Equal(t, vk.BlendOpAdd, op)
	assert.False(t, blendEnabled(src, dst))

	_, _, op = blendState(metadata.GLS_BLENDOP_MAX)
	assert.Equal(t, vk.BlendOpMax, op)
}

func TestColorWriteMask(t *testing.T) {
	all := vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit)
	assert.Equal(t, all, colorWriteMask(0))
	assert.Equal(t, vk.ColorComponentFlags(vk.ColorComponentABit), colorWriteMask(metadata.GLS_COLORMASK))
	assert.Equal(t, vk.ColorComponentFlags(0), colorWriteMask(metadata.GLS_COLORMASK|metadata.GLS_ALPHAMASK))
}

func TestDepthCompareOp(t *testing.T) {
	assert.Equal(t, vk.CompareOpLessOrEqual, depthCompareOp(metadata.GLS_DEPTHFUNC_LESS))
	assert.Equal(t, vk.CompareOpAlways, depthCompareOp(metadata.GLS_DEPTHFUNC_ALWAYS))
	assert.Equal(t, vk.CompareOpGreaterOrEqual, depthCompareOp(metadata.GLS_DEPTHFUNC_GREATER))
	assert.Equal(t, vk.CompareOpEqual, depthCompareOp(metadata.GLS_DEPTHFUNC_EQUAL))
}

func TestCullMode(t *testing.T) {
	tests := []struct {
		name  string
		state uint64
		want  vk.CullModeFlagBits
	}{
		{"two sided", metadata.GLS_CULL_TWOSIDED, vk.CullModeNone},
		{"two sided mirror", metadata.GLS_CULL_TWOSIDED | metadata.GLS_MIRROR_VIEW, vk.CullModeNone},
		{"back sided", metadata.GLS_CULL_BACKSIDED, vk.CullModeBackBit},
		{"back sided mirror", metadata.GLS_CULL_BACKSIDED | metadata.GLS_MIRROR_VIEW, vk.CullModeFrontBit},
		{"front sided", metadata.GLS_CULL_FRONTSIDED, vk.CullModeFrontBit},
		{"front sided mirror", metadata.GLS_CULL_FRONTSIDED | metadata.GLS_MIRROR_VIEW, vk.CullModeBackBit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, vk.CullModeFlags(tt.want), cullMode(tt.state))
		})
	}
}

func TestStencilFace(t *testing.T) {
	state := metadata.GLS_STENCIL_FUNC_EQUAL | metadata.StencilRef(128) | metadata.StencilMask(255) |
		metadata.GLS_STENCIL_OP_FAIL_KEEP | metadata.GLS_STENCIL_OP_ZFAIL_KEEP | metadata.GLS_STENCIL_OP_PASS_REPLACE
	assert.True(t, stencilTestEnabled(state, 0, 0))
	assert.False(t, stencilTestEnabled(metadata.GLS_DEFAULT, 0, 0))

	face := stencilFace(state, 0)
	assert.Equal(t, vk.CompareOpEqual, face.CompareOp)
	assert.Equal(t, vk.StencilOpReplace, face.PassOp)
	assert.Equal(t, vk.StencilOpKeep, face.FailOp)
	assert.Equal(t, uint32(128), face.Reference)
	assert.Equal(t, uint32(255), face.CompareMask)

	// A per-face word overrides the ops of the state word.
	back := stencilFace(state, metadata.GLS_STENCIL_OP_ZFAIL_DECR)
	assert.Equal(t, vk.StencilOpDecrementAndClamp, back.DepthFailOp)
	assert.Equal(t, vk.StencilOpKeep, back.PassOp)
}

func TestClampRect(t *testing.T) {
	x, y, w, h := clampRect(-10, 5, 100, 100, 64, 48)
	assert.Equal(t, []int32{0, 5, 64, 43}, []int32{x, y, w, h})

	_, _, w, h = clampRect(100, 100, 10, 10, 64, 48)
	assert.Zero(t, w)
	assert.Zero(t, h)
}

func TestVertexAttributes(t *testing.T) {
	assert.Len(t, vertexAttributes(metadata.LAYOUT_DRAW_VERT), 6)
	assert.Len(t, vertexAttributes(metadata.LAYOUT_DRAW_SHADOW_VERT), 1)
	assert.Len(t, vertexAttributes(metadata.LAYOUT_DRAW_SHADOW_VERT_SKINNED), 3)
	assert.Nil(t, vertexAttributes(metadata.LAYOUT_UNKNOWN))

	last := vertexAttributes(metadata.LAYOUT_DRAW_VERT)[5]
	assert.Equal(t, uint32(metadata.DRAWVERT_SIZE-4), last.Offset)
}

func TestFormatRoundTrip(t *testing.T) {
	for f := range formats {
		assert.Equal(t, f, fromVkFormat(toVkFormat(f)))
	}
	assert.Equal(t, vk.SampleCount1Bit, toVkSamples(0))
	assert.Equal(t, vk.SampleCount4Bit, toVkSamples(metadata.SAMPLE_COUNT_4))
}
