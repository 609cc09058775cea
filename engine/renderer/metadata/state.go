package metadata

/**
 * @brief A 64-bit word describing blend, depth, stencil, cull and polygon
 * offset configuration. The backend turns it into a pipeline lazily at draw time.
 */
const (
	GLS_SRCBLEND_ONE                 uint64 = 0 << 0
	GLS_SRCBLEND_ZERO                uint64 = 1 << 0
	GLS_SRCBLEND_DST_COLOR           uint64 = 2 << 0
	GLS_SRCBLEND_ONE_MINUS_DST_COLOR uint64 = 3 << 0
	GLS_SRCBLEND_SRC_ALPHA           uint64 = 4 << 0
	GLS_SRCBLEND_ONE_MINUS_SRC_ALPHA uint64 = 5 << 0
	GLS_SRCBLEND_DST_ALPHA           uint64 = 6 << 0
	GLS_SRCBLEND_ONE_MINUS_DST_ALPHA uint64 = 7 << 0
	GLS_SRCBLEND_BITS                uint64 = 7 << 0

	GLS_DSTBLEND_ZERO                uint64 = 0 << 3
	GLS_DSTBLEND_ONE                 uint64 = 1 << 3
	GLS_DSTBLEND_SRC_COLOR           uint64 = 2 << 3
	GLS_DSTBLEND_ONE_MINUS_SRC_COLOR uint64 = 3 << 3
	GLS_DSTBLEND_SRC_ALPHA           uint64 = 4 << 3
	GLS_DSTBLEND_ONE_MINUS_SRC_ALPHA uint64 = 5 << 3
	GLS_DSTBLEND_DST_ALPHA           uint64 = 6 << 3
	GLS_DSTBLEND_ONE_MINUS_DST_ALPHA uint64 = 7 << 3
	GLS_DSTBLEND_BITS                uint64 = 7 << 3

	// Disables depth writes.
	GLS_DEPTHMASK uint64 = 1 << 6

	GLS_REDMASK   uint64 = 1 << 7
	GLS_GREENMASK uint64 = 1 << 8
	GLS_BLUEMASK  uint64 = 1 << 9
	GLS_ALPHAMASK uint64 = 1 << 10
	GLS_COLORMASK uint64 = GLS_REDMASK | GLS_GREENMASK | GLS_BLUEMASK

	GLS_POLYMODE_LINE  uint64 = 1 << 11
	GLS_POLYGON_OFFSET uint64 = 1 << 12

	GLS_DEPTHFUNC_LESS    uint64 = 0 << 13
	GLS_DEPTHFUNC_ALWAYS  uint64 = 1 << 13
	GLS_DEPTHFUNC_GREATER uint64 = 2 << 13
	GLS_DEPTHFUNC_EQUAL   uint64 = 3 << 13
	GLS_DEPTHFUNC_BITS    uint64 = 3 << 13

	GLS_CULL_FRONTSIDED uint64 = 0 << 15
	GLS_CULL_BACKSIDED  uint64 = 1 << 15
	GLS_CULL_TWOSIDED   uint64 = 2 << 15
	GLS_CULL_BITS       uint64 = 3 << 15

	GLS_BLENDOP_ADD  uint64 = 0 << 18
	GLS_BLENDOP_SUB  uint64 = 1 << 18
	GLS_BLENDOP_MIN  uint64 = 2 << 18
	GLS_BLENDOP_MAX  uint64 = 3 << 18
	GLS_BLENDOP_BITS uint64 = 3 << 18

	GLS_STENCIL_FUNC_REF_SHIFT        = 20
	GLS_STENCIL_FUNC_REF_BITS  uint64 = 0xFF << GLS_STENCIL_FUNC_REF_SHIFT

	GLS_STENCIL_FUNC_MASK_SHIFT        = 28
	GLS_STENCIL_FUNC_MASK_BITS  uint64 = 0xFF << GLS_STENCIL_FUNC_MASK_SHIFT

	GLS_STENCIL_FUNC_ALWAYS   uint64 = 0 << 36
	GLS_STENCIL_FUNC_LESS     uint64 = 1 << 36
	GLS_STENCIL_FUNC_LEQUAL   uint64 = 2 << 36
	GLS_STENCIL_FUNC_GREATER  uint64 = 3 << 36
	GLS_STENCIL_FUNC_GEQUAL   uint64 = 4 << 36
	GLS_STENCIL_FUNC_EQUAL    uint64 = 5 << 36
	GLS_STENCIL_FUNC_NOTEQUAL uint64 = 6 << 36
	GLS_STENCIL_FUNC_NEVER    uint64 = 7 << 36
	GLS_STENCIL_FUNC_BITS     uint64 = 7 << 36

	GLS_STENCIL_OP_FAIL_KEEP      uint64 = 0 << 39
	GLS_STENCIL_OP_FAIL_ZERO      uint64 = 1 << 39
	GLS_STENCIL_OP_FAIL_REPLACE   uint64 = 2 << 39
	GLS_STENCIL_OP_FAIL_INCR      uint64 = 3 << 39
	GLS_STENCIL_OP_FAIL_DECR      uint64 = 4 << 39
	GLS_STENCIL_OP_FAIL_INVERT    uint64 = 5 << 39
	GLS_STENCIL_OP_FAIL_INCR_WRAP uint64 = 6 << 39
	GLS_STENCIL_OP_FAIL_DECR_WRAP uint64 = 7 << 39
	GLS_STENCIL_OP_FAIL_BITS      uint64 = 7 << 39

	GLS_STENCIL_OP_ZFAIL_KEEP      uint64 = 0 << 42
	GLS_STENCIL_OP_ZFAIL_ZERO      uint64 = 1 << 42
	GLS_STENCIL_OP_ZFAIL_REPLACE   uint64 = 2 << 42
	GLS_STENCIL_OP_ZFAIL_INCR      uint64 = 3 << 42
	GLS_STENCIL_OP_ZFAIL_DECR      uint64 = 4 << 42
	GLS_STENCIL_OP_ZFAIL_INVERT    uint64 = 5 << 42
	GLS_STENCIL_OP_ZFAIL_INCR_WRAP uint64 = 6 << 42
	GLS_STENCIL_OP_ZFAIL_DECR_WRAP uint64 = 7 << 42
	GLS_STENCIL_OP_ZFAIL_BITS      uint64 = 7 << 42

	GLS_STENCIL_OP_PASS_KEEP      uint64 = 0 << 45
	GLS_STENCIL_OP_PASS_ZERO      uint64 = 1 << 45
	GLS_STENCIL_OP_PASS_REPLACE   uint64 = 2 << 45
	GLS_STENCIL_OP_PASS_INCR      uint64 = 3 << 45
	GLS_STENCIL_OP_PASS_DECR      uint64 = 4 << 45
	GLS_STENCIL_OP_PASS_INVERT    uint64 = 5 << 45
	GLS_STENCIL_OP_PASS_INCR_WRAP uint64 = 6 << 45
	GLS_STENCIL_OP_PASS_DECR_WRAP uint64 = 7 << 45
	GLS_STENCIL_OP_PASS_BITS      uint64 = 7 << 45

	GLS_STENCIL_OP_BITS = GLS_STENCIL_OP_FAIL_BITS | GLS_STENCIL_OP_ZFAIL_BITS | GLS_STENCIL_OP_PASS_BITS

	// Set while a depth bounds range is active.
	GLS_DEPTH_TEST_MASK uint64 = 1 << 60
	GLS_CLOCKWISE       uint64 = 1 << 61
	GLS_MIRROR_VIEW     uint64 = 1 << 62
	GLS_OVERRIDE        uint64 = 1 << 63

	// Bits that survive GL_State calls.
	GLS_KEEP    = GLS_DEPTH_TEST_MASK
	GLS_DEFAULT = uint64(0)
)

type StencilFace int

const (
	STENCIL_FACE_FRONT StencilFace = iota
	STENCIL_FACE_BACK
	STENCIL_FACE_NUM
)

// StencilRef builds the stencil reference bits.
func StencilRef(ref uint8) uint64 {
	return uint64(ref) << GLS_STENCIL_FUNC_REF_SHIFT
}

// StencilMask builds the stencil mask bits.
func StencilMask(mask uint8) uint64 {
	return uint64(mask) << GLS_STENCIL_FUNC_MASK_SHIFT
}

// StencilOps splits a stencil operation word into its fail, depth-fail and pass fields.
func StencilOps(bits uint64) (fail, zfail, pass uint64) {
	return (bits & GLS_STENCIL_OP_FAIL_BITS) >> 39,
		(bits & GLS_STENCIL_OP_ZFAIL_BITS) >> 42,
		(bits & GLS_STENCIL_OP_PASS_BITS) >> 45
}
