package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/headless"
)

const headlessConfig = `
[display]
width = 640
height = 480

[renderer]
driver = "headless"
frame_data = 2
vertex_memory_per_frame = 65536
index_memory_per_frame = 16384
joint_memory_per_frame = 16384
static_vertex_memory = 4096
static_index_memory = 4096
gui_max_verts = 256
gui_max_indexes = 384

[log]
level = "error"
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "render.toml")
	require.NoError(t, os.WriteFile(path, []byte(headlessConfig), 0o644))
	return path
}

func newGame(t *testing.T, frames uint64) (*Game, *int) {
	drawn := 0
	return &Game{
		ApplicationConfig: &ApplicationConfig{
			Name:       "engine-test",
			ConfigPath: writeConfig(t),
			MaxFrames:  frames,
		},
		FnRender: func(rs *renderer.RenderSystem, deltaTime float64) error {
			rs.DrawFilled(1, 1, 1, 1, 0, 0, 64, 64)
			drawn++
			return nil
		},
	}, &drawn
}

func TestRunHeadlessFrames(t *testing.T) {
	g, drawn := newGame(t, 5)
	e, err := New(g)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())

	require.NoError(t, e.Run())
	assert.Equal(t, uint64(5), e.Frames())
	assert.Equal(t, 5, *drawn)

	drv, ok := e.RenderSystem().Backend().Driver().(*headless.Driver)
	require.True(t, ok)
	// the first frame closes before the game drew anything
	assert.Len(t, drv.Draws(), 4)
	require.NoError(t, e.Shutdown())
	assert.NoError(t, e.Shutdown())
}

func TestGameErrorStopsRun(t *testing.T) {
	g, _ := newGame(t, 0)
	boom := errors.New("boom")
	g.FnUpdate = func(float64) error { return boom }

	e, err := New(g)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	defer e.Shutdown()

	assert.ErrorIs(t, e.Run(), boom)
	assert.Zero(t, e.Frames())
}

func TestQuitEventStopsRun(t *testing.T) {
	g, _ := newGame(t, 0)
	e, err := New(g)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	defer e.Shutdown()

	g.FnUpdate = func(float64) error {
		core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{})
		return nil
	}
	require.NoError(t, e.Run())
	assert.Equal(t, uint64(1), e.Frames())
}

func TestResizeEventReachesGame(t *testing.T) {
	g, _ := newGame(t, 1)
	var sizes [][2]uint32
	g.FnOnResize = func(w, h uint32) error {
		sizes = append(sizes, [2]uint32{w, h})
		return nil
	}
	e, err := New(g)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	defer e.Shutdown()

	ctx := core.EventContext{}
	core.EventFire(core.EVENT_CODE_RESIZED, nil, ctx)
	assert.True(t, e.isSuspended, "a zero size suspends")

	ctx.Data.U32[0], ctx.Data.U32[1] = 800, 600
	core.EventFire(core.EVENT_CODE_RESIZED, nil, ctx)
	assert.False(t, e.isSuspended)
	assert.Equal(t, [][2]uint32{{640, 480}, {800, 600}}, sizes)
}

func TestRunBeforeInitialize(t *testing.T) {
	g, _ := newGame(t, 1)
	e, err := New(g)
	require.NoError(t, err)
	assert.Error(t, e.Run())
}
