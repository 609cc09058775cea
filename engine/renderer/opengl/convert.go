package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

var srcBlendFactors = [8]uint32{
	gl.ONE,
	gl.ZERO,
	gl.DST_COLOR,
	gl.ONE_MINUS_DST_COLOR,
	gl.SRC_ALPHA,
	gl.ONE_MINUS_SRC_ALPHA,
	gl.DST_ALPHA,
	gl.ONE_MINUS_DST_ALPHA,
}

var dstBlendFactors = [8]uint32{
	gl.ZERO,
	gl.ONE,
	gl.SRC_COLOR,
	gl.ONE_MINUS_SRC_COLOR,
	gl.SRC_ALPHA,
	gl.ONE_MINUS_SRC_ALPHA,
	gl.DST_ALPHA,
	gl.ONE_MINUS_DST_ALPHA,
}

func blendState(stateBits uint64) (src, dst, op uint32) {
	src = srcBlendFactors[stateBits&metadata.GLS_SRCBLEND_BITS]
	dst = dstBlendFactors[(stateBits&metadata.GLS_DSTBLEND_BITS)>>3]
	switch stateBits & metadata.GLS_BLENDOP_BITS {
	case metadata.GLS_BLENDOP_SUB:
		op = gl.FUNC_SUBTRACT
	case metadata.GLS_BLENDOP_MIN:
		op = gl.MIN
	case metadata.GLS_BLENDOP_MAX:
		op = gl.MAX
	default:
		op = gl.FUNC_ADD
	}
	return src, dst, op
}

func depthFunc(stateBits uint64) uint32 {
	switch stateBits & metadata.GLS_DEPTHFUNC_BITS {
	case metadata.GLS_DEPTHFUNC_ALWAYS:
		return gl.ALWAYS
	case metadata.GLS_DEPTHFUNC_GREATER:
		return gl.GEQUAL
	case metadata.GLS_DEPTHFUNC_EQUAL:
		return gl.EQUAL
	}
	return gl.LEQUAL
}

// cullFace returns the face to cull, or false for two sided surfaces.
func cullFace(stateBits uint64) (uint32, bool) {
	mirror := stateBits&metadata.GLS_MIRROR_VIEW != 0
	switch stateBits & metadata.GLS_CULL_BITS {
	case metadata.GLS_CULL_TWOSIDED:
		return 0, false
	case metadata.GLS_CULL_BACKSIDED:
		if mirror {
			return gl.FRONT, true
		}
		return gl.BACK, true
	}
	if mirror {
		return gl.BACK, true
	}
	return gl.FRONT, true
}

func frontFace(stateBits uint64) uint32 {
	if stateBits&metadata.GLS_CLOCKWISE != 0 {
		return gl.CW
	}
	return gl.CCW
}

var stencilFuncs = [8]uint32{
	gl.ALWAYS,
	gl.LESS,
	gl.LEQUAL,
	gl.GREATER,
	gl.GEQUAL,
	gl.EQUAL,
	gl.NOTEQUAL,
	gl.NEVER,
}

var stencilOps = [8]uint32{
	gl.KEEP,
	gl.ZERO,
	gl.REPLACE,
	gl.INCR,
	gl.DECR,
	gl.INVERT,
	gl.INCR_WRAP,
	gl.DECR_WRAP,
}

type stencilState struct {
	fn                uint32
	ref               int32
	mask              uint32
	fail, zfail, pass uint32
}

// stencilFace builds one face. A zero per-face word falls back to the ops of the state word.
func stencilFace(stateBits, faceOps uint64) stencilState {
	ops := faceOps
	if ops == 0 {
		ops = stateBits
	}
	fail, zfail, pass := metadata.StencilOps(ops)
	return stencilState{
		fn:    stencilFuncs[(stateBits&metadata.GLS_STENCIL_FUNC_BITS)>>36],
		ref:   int32((stateBits & metadata.GLS_STENCIL_FUNC_REF_BITS) >> metadata.GLS_STENCIL_FUNC_REF_SHIFT),
		mask:  uint32((stateBits & metadata.GLS_STENCIL_FUNC_MASK_BITS) >> metadata.GLS_STENCIL_FUNC_MASK_SHIFT),
		fail:  stencilOps[fail],
		zfail: stencilOps[zfail],
		pass:  stencilOps[pass],
	}
}

func stencilTestEnabled(stateBits, front, back uint64) bool {
	return stateBits&(metadata.GLS_STENCIL_FUNC_BITS|metadata.GLS_STENCIL_OP_BITS) != 0 || front != 0 || back != 0
}

// flipY converts a top-left origin rectangle to the bottom-left origin of the window.
func flipY(y, h int32, height uint32) int32 {
	return int32(height) - y - h
}

type vertexAttribute struct {
	location   uint32
	size       int32
	xtype      uint32
	normalized bool
	offset     uintptr
}

func vertexAttributes(layout metadata.VertexLayout) []vertexAttribute {
	switch layout {
	case metadata.LAYOUT_DRAW_VERT:
		return []vertexAttribute{
			{0, 3, gl.FLOAT, false, 0},
			{1, 2, gl.HALF_FLOAT, false, 12},
			{2, 4, gl.UNSIGNED_BYTE, true, 16},
			{3, 4, gl.UNSIGNED_BYTE, true, 20},
			{4, 4, gl.UNSIGNED_BYTE, true, 24},
			{5, 4, gl.UNSIGNED_BYTE, true, 28},
		}
	case metadata.LAYOUT_DRAW_SHADOW_VERT:
		return []vertexAttribute{
			{0, 4, gl.FLOAT, false, 0},
		}
	case metadata.LAYOUT_DRAW_SHADOW_VERT_SKINNED:
		return []vertexAttribute{
			{0, 4, gl.FLOAT, false, 0},
			{1, 4, gl.UNSIGNED_BYTE, true, 16},
			{2, 4, gl.UNSIGNED_BYTE, true, 20},
		}
	}
	return nil
}

func glErrorString(code uint32) string {
	switch code {
	case gl.INVALID_ENUM:
		return "GL_INVALID_ENUM"
	case gl.INVALID_VALUE:
		return "GL_INVALID_VALUE"
	case gl.INVALID_OPERATION:
		return "GL_INVALID_OPERATION"
	case gl.INVALID_FRAMEBUFFER_OPERATION:
		return "GL_INVALID_FRAMEBUFFER_OPERATION"
	case gl.OUT_OF_MEMORY:
		return "GL_OUT_OF_MEMORY"
	}
	return fmt.Sprintf("GL error 0x%04x", code)
}

func setEnabled(capability uint32, on bool) {
	if on {
		gl.Enable(capability)
	} else {
		gl.Disable(capability)
	}
}
