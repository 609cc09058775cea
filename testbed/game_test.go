package testbed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/basicfont"

	"github.com/spaghettifunk/anima-renderer/engine"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/headless"
)

func TestFallbackLayout(t *testing.T) {
	tr := NewTextRenderer(filepath.Join(t.TempDir(), "missing.fnt"))
	require.False(t, tr.Bitmap())

	assert.Empty(t, tr.Layout("   ", 1))

	quads := tr.Layout("A", 2)
	require.NotEmpty(t, quads)
	face := basicfont.Face7x13
	for _, q := range quads {
		assert.GreaterOrEqual(t, q.X, float32(0))
		assert.LessOrEqual(t, q.X+q.W, float32(face.Width*2))
		assert.Less(t, q.Y, float32(face.Height*2))
		assert.Equal(t, float32(2), q.H)
		assert.Nil(t, q.Material)
	}

	two := tr.Layout("AA", 1)
	require.Len(t, two, 2*len(tr.Layout("A", 1)))
	assert.GreaterOrEqual(t, two[len(two)-1].X, float32(face.Advance))

	lines := tr.Layout("A\nA", 1)
	assert.Equal(t, tr.LineHeight(1)+tr.Layout("A", 1)[0].Y, lines[len(lines)/2].Y)
}

func TestGlyphRunsAreCached(t *testing.T) {
	tr := NewTextRenderer("")
	first := tr.glyphRuns('x')
	require.NotEmpty(t, first)
	assert.Equal(t, first, tr.glyphRuns('x'))
	assert.Len(t, tr.runs, 1)
}

const testbedConfig = `
[renderer]
driver = "headless"
vertex_memory_per_frame = 1048576
index_memory_per_frame = 262144
joint_memory_per_frame = 16384
static_vertex_memory = 4096
static_index_memory = 4096
gui_max_verts = 8192
gui_max_indexes = 12288

[log]
level = "error"
`

func TestTestbedRunsHeadless(t *testing.T) {
	path := filepath.Join(t.TempDir(), "render.toml")
	require.NoError(t, os.WriteFile(path, []byte(testbedConfig), 0o644))

	tg := NewTestGame(path, "")
	tg.ApplicationConfig.WatchConfig = false
	tg.ApplicationConfig.MaxFrames = 3

	e, err := engine.New(tg.Game)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	defer e.Shutdown()
	require.NoError(t, e.Run())

	drv := e.RenderSystem().Backend().Driver().(*headless.Driver)
	assert.Equal(t, []string{CAPTURE_IMAGE, CAPTURE_IMAGE}, drv.CopiedImages())
	// two rendered frames, each with the cube and at least the panel
	draws := drv.Draws()
	require.GreaterOrEqual(t, len(draws), 4)
	assert.Equal(t, 36, draws[0].IndexCount)
	assert.Equal(t, 1, tg.state().resizes)
}

func TestCubeFacesPointOutwards(t *testing.T) {
	verts, indexes := NewCube(2)
	require.Len(t, verts, 24)
	require.Len(t, indexes, 36)

	for i := 0; i < len(indexes); i += 3 {
		a, b, c := verts[indexes[i]].Xyz, verts[indexes[i+1]].Xyz, verts[indexes[i+2]].Xyz
		e1 := [3]float32{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
		e2 := [3]float32{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
		n := [3]float32{e1[1]*e2[2] - e1[2]*e2[1], e1[2]*e2[0] - e1[0]*e2[2], e1[0]*e2[1] - e1[1]*e2[0]}
		center := [3]float32{(a[0] + b[0] + c[0]) / 3, (a[1] + b[1] + c[1]) / 3, (a[2] + b[2] + c[2]) / 3}
		assert.Positive(t, n[0]*center[0]+n[1]*center[1]+n[2]*center[2], "triangle %d winds inwards", i/3)
	}
	for _, v := range verts {
		for _, x := range v.Xyz {
			assert.Equal(t, float32(2), abs(x), "corners sit on the extent")
		}
	}
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
