package metadata

import (
	"unsafe"

	"github.com/x448/float16"
)

/**
 * @brief The vertex format shared by every surface. Texture coordinates are
 * half floats; normal, tangent and colors are packed bytes.
 */
type DrawVert struct {
	Xyz     [3]float32
	St      [2]uint16
	Normal  [4]byte
	Tangent [4]byte
	Color   [4]byte
	Color2  [4]byte
}

const DRAWVERT_SIZE = int(unsafe.Sizeof(DrawVert{}))

func (v *DrawVert) SetTexCoord(s, t float32) {
	v.St[0] = float16.Fromfloat32(s).Bits()
	v.St[1] = float16.Fromfloat32(t).Bits()
}

func (v *DrawVert) TexCoord() (float32, float32) {
	return float16.Frombits(v.St[0]).Float32(), float16.Frombits(v.St[1]).Float32()
}

func (v *DrawVert) SetColor(packed uint32) {
	v.Color[0] = byte(packed)
	v.Color[1] = byte(packed >> 8)
	v.Color[2] = byte(packed >> 16)
	v.Color[3] = byte(packed >> 24)
}

/** @brief Shadow volume vertex; w is 0 for vertices projected to infinity. */
type ShadowVert struct {
	Xyzw [4]float32
}

const SHADOWVERT_SIZE = int(unsafe.Sizeof(ShadowVert{}))

type ShadowVertSkinned struct {
	Xyzw   [4]float32
	Color  [4]byte
	Color2 [4]byte
	Pad    [2]float32
}

const SHADOWVERT_SKINNED_SIZE = int(unsafe.Sizeof(ShadowVertSkinned{}))

type TriIndex = uint16

const TRIINDEX_SIZE = int(unsafe.Sizeof(TriIndex(0)))

/** @brief The size of one joint matrix (3x4 floats) in a skinning uniform buffer. */
const JOINTMAT_SIZE = 12 * 4

// AsBytes reinterprets a slice of plain values as raw bytes without copying.
func AsBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

// FromBytes reinterprets raw bytes as a slice of T. Trailing bytes that do not
// fill a whole element are dropped.
func FromBytes[T any](b []byte) []T {
	var zero T
	n := len(b) / int(unsafe.Sizeof(zero))
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), n)
}

type VertexLayout int

const (
	LAYOUT_UNKNOWN VertexLayout = iota - 1
	LAYOUT_DRAW_VERT
	LAYOUT_DRAW_SHADOW_VERT
	LAYOUT_DRAW_SHADOW_VERT_SKINNED
	NUM_VERTEX_LAYOUTS
)

// Stride is the vertex size for the layout.
func (l VertexLayout) Stride() int {
	switch l {
	case LAYOUT_DRAW_VERT:
		return DRAWVERT_SIZE
	case LAYOUT_DRAW_SHADOW_VERT:
		return SHADOWVERT_SIZE
	case LAYOUT_DRAW_SHADOW_VERT_SKINNED:
		return SHADOWVERT_SKINNED_SIZE
	}
	return 0
}
