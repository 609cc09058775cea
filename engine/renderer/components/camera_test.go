package components

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/anima-renderer/engine/math"
)

func TestViewMovesWorldOppositeToCamera(t *testing.T) {
	c := NewCamera()
	c.SetPosition(math.NewVec3(0, 0, 5))

	origin := c.GetView().TransformPoint(0, 0, 0)
	assert.InDelta(t, -5, origin.Z, 1e-6)
	assert.False(t, c.IsDirty)
}

func TestYawTurnsForward(t *testing.T) {
	c := NewCamera()
	c.AddYaw(math32.Pi / 2)

	f := c.Forward()
	assert.InDelta(t, -1, f.X, 1e-6)
	assert.InDelta(t, 0, f.Z, 1e-6)

	// a point straight ahead ends up on the view's -Z axis
	ahead := c.GetView().TransformPoint(-3, 0, 0)
	assert.InDelta(t, 0, ahead.X, 1e-5)
	assert.InDelta(t, -3, ahead.Z, 1e-5)
}

func TestPitchIsClamped(t *testing.T) {
	c := NewCamera()
	c.AddPitch(10)
	assert.Equal(t, PITCH_LIMIT, c.Pitch)
	c.AddPitch(-20)
	assert.Equal(t, -PITCH_LIMIT, c.Pitch)
}

func TestMoves(t *testing.T) {
	c := NewCamera()
	c.MoveForward(2)
	c.MoveRight(1)
	c.MoveUp(3)
	assert.InDelta(t, 1, c.Position.X, 1e-6)
	assert.InDelta(t, 3, c.Position.Y, 1e-6)
	assert.InDelta(t, -2, c.Position.Z, 1e-6)

	c.MoveBackward(2)
	c.MoveLeft(1)
	c.MoveDown(3)
	assert.InDelta(t, 0, c.Position.Length(), 1e-6)
}
