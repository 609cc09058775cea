package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

/**
 * @brief a 4x4 matrix stored column-major, the layout uploaded to shaders.
 * Data[12], Data[13] and Data[14] hold the translation.
 */
type Mat4 struct {
	/** @brief The matrix elements */
	Data [16]float32
}

/**
 * @brief A screen-space rectangle in pixels. X2 and Y2 are exclusive.
 */
type ScreenRect struct {
	X1, Y1 int32
	X2, Y2 int32
	// Depth bounds, used by the depth bounds test.
	Zmin, Zmax float32
}
