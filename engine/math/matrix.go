package math

import "github.com/chewxy/math32"

/**
 * @brief Creates and returns an identity matrix.
 */
func NewMat4Identity() Mat4 {
	out := Mat4{}
	out.Data[0] = 1.0
	out.Data[5] = 1.0
	out.Data[10] = 1.0
	out.Data[15] = 1.0
	return out
}

/**
 * @brief Returns the product of mt and other, applying mt first.
 * With column-major storage, modelView.Mul(projection) yields the model-view-projection.
 */
func (mt Mat4) Mul(other Mat4) Mat4 {
	out := Mat4{}
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			sum := float32(0)
			for i := 0; i < 4; i++ {
				sum += mt.Data[row*4+i] * other.Data[i*4+col]
			}
			out.Data[row*4+col] = sum
		}
	}
	return out
}

/**
 * @brief Returns a transposed copy of the matrix.
 */
func (mt Mat4) Transposed() Mat4 {
	out := Mat4{}
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out.Data[col*4+row] = mt.Data[row*4+col]
		}
	}
	return out
}

/**
 * @brief Transforms a point (w = 1) by the matrix.
 */
func (mt Mat4) TransformPoint(x, y, z float32) Vec4 {
	d := mt.Data
	return Vec4{
		X: d[0]*x + d[4]*y + d[8]*z + d[12],
		Y: d[1]*x + d[5]*y + d[9]*z + d[13],
		Z: d[2]*x + d[6]*y + d[10]*z + d[14],
		W: d[3]*x + d[7]*y + d[11]*z + d[15],
	}
}

/**
 * @brief Compares two matrices element-wise within tolerance.
 */
func (mt Mat4) Compare(other Mat4, tolerance float32) bool {
	for i := range mt.Data {
		if math32.Abs(mt.Data[i]-other.Data[i]) > tolerance {
			return false
		}
	}
	return true
}

/**
 * @brief Builds the projection used for full-screen GUI views: virtual screen
 * coordinates with the origin in the top-left corner mapped to clip space.
 * Clip space Y points down when yDown is set (Vulkan), up otherwise (GL).
 */
func NewMat4GuiOrtho(screenWidth, screenHeight float32, yDown bool) Mat4 {
	out := Mat4{}
	out.Data[0] = 2.0 / screenWidth
	out.Data[10] = -1.0
	out.Data[12] = -1.0
	out.Data[15] = 1.0
	if yDown {
		out.Data[5] = 2.0 / screenHeight
		out.Data[13] = -1.0
	} else {
		out.Data[5] = -2.0 / screenHeight
		out.Data[13] = 1.0
	}
	return out
}

/**
 * @brief Creates an orthographic projection for the given frustum.
 */
func NewMat4Orthographic(left, right, bottom, top, nearClip, farClip float32) Mat4 {
	out := NewMat4Identity()
	lr := 1.0 / (left - right)
	bt := 1.0 / (bottom - top)
	nf := 1.0 / (nearClip - farClip)

	out.Data[0] = -2.0 * lr
	out.Data[5] = -2.0 * bt
	out.Data[10] = 2.0 * nf
	out.Data[12] = (left + right) * lr
	out.Data[13] = (top + bottom) * bt
	out.Data[14] = (farClip + nearClip) * nf
	return out
}

/**
 * @brief Scales the projected depth to 25% so view weapons never poke into walls.
 */
func ApplyDepthHack(m *Mat4) {
	m.Data[2] *= 0.25
	m.Data[6] *= 0.25
	m.Data[10] *= 0.25
	m.Data[14] *= 0.25
}

/**
 * @brief Pulls the projected depth towards the viewer by value in clip-space w units.
 */
func ApplyModelDepthHack(m *Mat4, value float32) {
	m.Data[2] += m.Data[3] * value
	m.Data[6] += m.Data[7] * value
	m.Data[10] += m.Data[11] * value
	m.Data[14] += m.Data[15] * value
}

/**
 * @brief Creates a translation matrix.
 */
func NewMat4Translation(position Vec3) Mat4 {
	out := NewMat4Identity()
	out.Data[12] = position.X
	out.Data[13] = position.Y
	out.Data[14] = position.Z
	return out
}

/**
 * @brief Creates a scale matrix.
 */
func NewMat4Scale(scale Vec3) Mat4 {
	out := NewMat4Identity()
	out.Data[0] = scale.X
	out.Data[5] = scale.Y
	out.Data[10] = scale.Z
	return out
}

// NewMat4RotationX rotates counter-clockwise around +X by angle radians.
func NewMat4RotationX(angle float32) Mat4 {
	out := NewMat4Identity()
	s, c := math32.Sincos(angle)
	out.Data[5] = c
	out.Data[6] = s
	out.Data[9] = -s
	out.Data[10] = c
	return out
}

// NewMat4RotationY rotates counter-clockwise around +Y by angle radians.
func NewMat4RotationY(angle float32) Mat4 {
	out := NewMat4Identity()
	s, c := math32.Sincos(angle)
	out.Data[0] = c
	out.Data[2] = -s
	out.Data[8] = s
	out.Data[10] = c
	return out
}

/**
 * @brief Creates a right-handed perspective projection looking down -Z.
 * Depth maps to 0 at nearClip and 1 at farClip. Clip space Y points down when
 * yDown is set, like NewMat4GuiOrtho.
 * @param fovRadians The vertical field of view in radians.
 */
func NewMat4Perspective(fovRadians, aspectRatio, nearClip, farClip float32, yDown bool) Mat4 {
	f := 1.0 / math32.Tan(fovRadians*0.5)
	out := Mat4{}
	out.Data[0] = f / aspectRatio
	out.Data[5] = f
	if yDown {
		out.Data[5] = -f
	}
	out.Data[10] = farClip / (nearClip - farClip)
	out.Data[11] = -1.0
	out.Data[14] = nearClip * farClip / (nearClip - farClip)
	return out
}
