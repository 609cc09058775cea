package components

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/anima-renderer/engine/math"
)

// 89 degrees, keeps the view from flipping over the poles.
const PITCH_LIMIT float32 = 1.55334306

/**
 * @brief A first person camera: a position, yaw around +Y and pitch around
 * the camera's X axis. It looks down -Z when both angles are zero.
 */
type Camera struct {
	/**
	 * @brief The position of this camera.
	 * NOTE: Do not set this directly, use SetPosition() instead
	 * so the view matrix is recalculated when needed.
	 */
	Position math.Vec3
	Yaw      float32
	Pitch    float32

	/** @brief Vertical field of view in radians. */
	Fov      float32
	NearClip float32
	FarClip  float32

	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty    bool
	ViewMatrix math.Mat4
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.Position = math.NewVec3Zero()
	c.Yaw = 0
	c.Pitch = 0
	c.Fov = math32.Pi / 3
	c.NearClip = 0.1
	c.FarClip = 1000
	c.IsDirty = false
	c.ViewMatrix = math.NewMat4Identity()
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
	c.IsDirty = true
}

// GetView returns the world to view transform.
func (c *Camera) GetView() math.Mat4 {
	if c.IsDirty {
		translation := math.NewMat4Translation(c.Position.MulScalar(-1))
		c.ViewMatrix = translation.Mul(math.NewMat4RotationY(-c.Yaw)).Mul(math.NewMat4RotationX(-c.Pitch))
		c.IsDirty = false
	}
	return c.ViewMatrix
}

// Projection returns the perspective projection for a viewport of the given aspect ratio.
func (c *Camera) Projection(aspectRatio float32, yDown bool) math.Mat4 {
	return math.NewMat4Perspective(c.Fov, aspectRatio, c.NearClip, c.FarClip, yDown)
}

func (c *Camera) Forward() math.Vec3 {
	sy, cy := math32.Sincos(c.Yaw)
	sp, cp := math32.Sincos(c.Pitch)
	return math.NewVec3(-sy*cp, sp, -cy*cp)
}

func (c *Camera) Right() math.Vec3 {
	sy, cy := math32.Sincos(c.Yaw)
	return math.NewVec3(cy, 0, -sy)
}

func (c *Camera) move(direction math.Vec3, amount float32) {
	c.Position = c.Position.Add(direction.MulScalar(amount))
	c.IsDirty = true
}

func (c *Camera) MoveForward(amount float32)  { c.move(c.Forward(), amount) }
func (c *Camera) MoveBackward(amount float32) { c.move(c.Forward(), -amount) }
func (c *Camera) MoveLeft(amount float32)     { c.move(c.Right(), -amount) }
func (c *Camera) MoveRight(amount float32)    { c.move(c.Right(), amount) }
func (c *Camera) MoveUp(amount float32)       { c.move(math.NewVec3Up(), amount) }
func (c *Camera) MoveDown(amount float32)     { c.move(math.NewVec3Down(), amount) }

func (c *Camera) AddYaw(amount float32) {
	c.Yaw += amount
	c.IsDirty = true
}

func (c *Camera) AddPitch(amount float32) {
	c.Pitch = math.Clamp(c.Pitch+amount, -PITCH_LIMIT, PITCH_LIMIT)
	c.IsDirty = true
}
