package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

func TestAllocationsAreZeroedAfterReset(t *testing.T) {
	f := New(0)

	v := f.AllocView()
	v.Is2DGui = true
	ds := f.AllocSurface()
	ds.NumIndexes = 12
	regs := f.AllocFloats(4)
	regs[0] = 1
	f.AddCommand(metadata.RenderCommand{Op: metadata.RC_DRAW_VIEW_GUI, ViewDef: v})

	assert.Equal(t, Usage{Views: 1, Surfaces: 1, Floats: 4, Commands: 1}, f.Usage())

	f.Reset()
	assert.Equal(t, Usage{}, f.Usage())
	assert.Empty(t, f.Commands())

	v2 := f.AllocView()
	assert.False(t, v2.Is2DGui)
	assert.Zero(t, f.AllocSurface().NumIndexes)
	assert.Equal(t, []float32{0, 0, 0, 0}, f.AllocFloats(4))
}

func TestViewsGetDistinctIDs(t *testing.T) {
	f := New(1)
	a := f.AllocView()
	b := f.AllocView()
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSurfacePointersStableAcrossBlocks(t *testing.T) {
	f := New(0)
	first := f.AllocSurface()
	first.Sort = 42
	for i := 0; i < DEFAULT_SURFACES_PER_BLOCK*2; i++ {
		f.AllocSurface()
	}
	require.Equal(t, float32(42), first.Sort)
}
