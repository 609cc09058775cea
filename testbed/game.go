package testbed

import (
	"fmt"
	stdmath "math"

	"github.com/spaghettifunk/anima-renderer/engine"
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/math"
	"github.com/spaghettifunk/anima-renderer/engine/renderer"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/components"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/gui"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

// Image the status panel is copied into every frame.
const CAPTURE_IMAGE = "_testbedCapture"

type TestGame struct {
	*engine.Game
}

var cubeMaterial = &metadata.ConstMaterial{
	MaterialName: "testbed/cube",
	SortKey:      metadata.SS_OPAQUE,
	Prog:         metadata.BUILTIN_COLOR,
	Registers:    []float32{1, 1, 1, 1},
}

type gameState struct {
	text     *TextRenderer
	fontPath string

	camera    *components.Camera
	cubeVerts []metadata.DrawVert
	cubeIdx   []metadata.TriIndex

	elapsed float64
	width   uint32
	height  uint32
	resizes int
}

func NewTestGame(configPath, fontPath string) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				Name:        "Anima Renderer Testbed",
				ConfigPath:  configPath,
				WatchConfig: true,
				Workers:     1,
			},
			State: &gameState{fontPath: fontPath},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(rs *renderer.RenderSystem) error {
	core.LogInfo("initializing testbed...")
	st := g.state()
	st.text = NewTextRenderer(st.fontPath)
	st.camera = components.NewCamera()
	st.camera.SetPosition(math.NewVec3(0, 0.5, 4))
	st.camera.AddPitch(-0.1)
	st.cubeVerts, st.cubeIdx = NewCube(1)
	if _, err := rs.CreateRenderImage(CAPTURE_IMAGE, 256, 128); err != nil {
		return err
	}
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	g.state().elapsed += deltaTime
	return nil
}

/**
 * @brief Draws a spinning cube, then a status panel that gets captured, then
 * a sweeping bar and a row of color swatches on top.
 */
func (g *TestGame) Render(rs *renderer.RenderSystem, deltaTime float64) error {
	st := g.state()

	view := rs.NewView(st.camera)
	spin := float32(st.elapsed)
	rs.AddModel(view, &renderer.Model{
		Verts:       st.cubeVerts,
		Indexes:     st.cubeIdx,
		Material:    cubeMaterial,
		ModelMatrix: math.NewMat4RotationX(spin * 0.5).Mul(math.NewMat4RotationY(spin)),
	})
	rs.AddView(view)

	rs.DrawFilled(0.08, 0.09, 0.12, 0.85, 16, 16, 300, 96)
	rs.SetColor(0.95, 0.95, 0.9, 1)
	y := float32(24)
	lines := []string{
		"anima renderer",
		fmt.Sprintf("%.1f fps  %.2f ms", core.MetricsFPS(), core.MetricsFrameTime()),
		fmt.Sprintf("frame %d  %dx%d", rs.FrameCount(), st.width, st.height),
	}
	counters := rs.LastCounters()
	lines = append(lines, fmt.Sprintf("%d draws  %d tris", counters.DrawElements, counters.DrawIndexes/3))
	for _, line := range lines {
		st.text.DrawText(rs, 24, y, 1, line)
		y += st.text.LineHeight(1) + 4
	}

	rs.CaptureRenderToImage(CAPTURE_IMAGE, false)

	phase := float32(0.5 + 0.5*stdmath.Sin(st.elapsed*2))
	barW := float32(64)
	rs.DrawFilled(0.9, 0.4, 0.1, 1, 16+phase*(gui.SCREEN_WIDTH-32-barW), gui.SCREEN_HEIGHT-40, barW, 16)

	for i := 0; i < 8; i++ {
		c := float32(i) / 7
		rs.DrawFilled(c, 1-c, 0.5, 1, 16+float32(i)*36, 128, 32, 32)
	}
	rs.SetColor(1, 1, 1, 1)
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	st := g.state()
	st.width, st.height = width, height
	st.resizes++
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("shutting down testbed after %.1fs", g.state().elapsed)
	return nil
}
