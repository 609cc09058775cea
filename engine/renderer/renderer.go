package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/math"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/backend"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/buffer"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/frame"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/gui"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

// WhiteMaterial is drawn when DrawStretchPic gets no material.
var WhiteMaterial = &metadata.ConstMaterial{
	MaterialName: "_white",
	SortKey:      metadata.SS_GUI,
	Prog:         metadata.BUILTIN_GUI,
	Registers:    []float32{1, 1, 1, 1},
}

// Quad corners are emitted top-left, top-right, bottom-right, bottom-left.
var quadIndexes = []metadata.TriIndex{3, 0, 2, 2, 0, 1}

/**
 * @brief Display changes queued by the platform or the config watcher. They
 * are applied between frames, never while the backend records.
 */
type pendingChange struct {
	resize  bool
	restart bool
	parms   metadata.GfxImpParms
}

/**
 * @brief The frontend. Game code draws into the current frame from any single
 * thread; SwapCommandBuffers and RenderCommandBuffers run on the thread that
 * owns the native context.
 */
type RenderSystem struct {
	id      uuid.UUID
	cfg     *core.RenderConfig
	backend *backend.Backend
	gui     *gui.GuiModel

	frames     []*frame.Frame
	frameCount uint64
	current    *frame.Frame

	color   uint32
	glState uint64
	// swapchain size, refreshed only between frames
	vp math.ScreenRect

	images map[string]*metadata.RenderImage

	mu      sync.Mutex
	pending pendingChange
	parms   metadata.GfxImpParms

	lastCounters core.CountersSnapshot
	initialized  bool
}

func New(driver metadata.Driver, cfg *core.RenderConfig) *RenderSystem {
	return &RenderSystem{
		cfg:     cfg,
		backend: backend.New(driver, backend.OptionsFromConfig(cfg)),
		images:  make(map[string]*metadata.RenderImage),
		color:   0xFFFFFFFF,
	}
}

/**
 * @brief Brings up the backend and opens the first frame.
 */
func (rs *RenderSystem) Init() error {
	if rs.initialized {
		return fmt.Errorf("render system already initialized: %w", core.ErrInvalidTransition)
	}
	if err := buffer.SetAlignment(rs.cfg.Renderer.BufferAlignment); err != nil {
		return err
	}
	rs.parms = backend.ParmsFromConfig(&rs.cfg.Display)
	if err := rs.backend.Init(rs.parms); err != nil {
		return err
	}

	rs.gui = gui.NewGuiModel(rs.backend.Cache(), gui.Options{
		MaxVerts:        rs.cfg.Renderer.GuiMaxVerts,
		MaxIndexes:      rs.cfg.Renderer.GuiMaxIndexes,
		DefaultMaterial: WhiteMaterial,
		ClipSpaceYDown:  rs.backend.Driver().ClipSpaceYDown(),
	})

	n := rs.cfg.Renderer.FrameData
	rs.frames = make([]*frame.Frame, n)
	for i := range rs.frames {
		rs.frames[i] = frame.New(i)
	}
	rs.frameCount = 0
	rs.current = rs.frames[0]
	rs.vp = rs.swapchainRect()
	rs.gui.BeginFrame()

	core.EventRegister(core.EVENT_CODE_RESIZED, rs, rs.onResized)
	core.EventRegister(core.EVENT_CODE_CONFIG_RELOADED, rs, rs.onConfigReloaded)

	rs.id = core.IdentifierAquireNewID("render-system")
	rs.initialized = true
	core.LogInfo("Render system ready: %d frames in flight, %s driver.", n, rs.backend.Driver().Name())
	return nil
}

func (rs *RenderSystem) Shutdown() error {
	if !rs.initialized {
		return nil
	}
	core.EventUnregister(core.EVENT_CODE_RESIZED, rs)
	core.EventUnregister(core.EVENT_CODE_CONFIG_RELOADED, rs)

	// finish the frame the backend may still hold
	if err := rs.backend.BlockingSwapBuffers(); err != nil {
		core.LogError(err.Error())
	}
	for name, img := range rs.images {
		rs.backend.Driver().DestroyRenderImage(img)
		delete(rs.images, name)
	}
	for _, f := range rs.frames {
		f.Reset()
	}
	rs.initialized = false
	if err := core.IdentifierReleaseID(rs.id); err != nil {
		core.LogWarn(err.Error())
	}
	return rs.backend.Shutdown()
}

func (rs *RenderSystem) Backend() *backend.Backend { return rs.backend }
func (rs *RenderSystem) Gui() *gui.GuiModel        { return rs.gui }
func (rs *RenderSystem) FrameCount() uint64        { return rs.frameCount }

// CurrentFrame is the frame the game is filling.
func (rs *RenderSystem) CurrentFrame() *frame.Frame { return rs.current }

// LastCounters are the backend counters of the last presented frame.
func (rs *RenderSystem) LastCounters() core.CountersSnapshot { return rs.lastCounters }

// SetColor sets the color of the following 2D draws.
func (rs *RenderSystem) SetColor(r, g, b, a float32) {
	rs.color = PackColor(r, g, b, a)
}

// SetGLState sets the extra state bits of the following 2D draws.
func (rs *RenderSystem) SetGLState(stateBits uint64) {
	rs.glState = stateBits
}

// PackColor converts a float color to the byte order of DrawVert.Color.
func PackColor(r, g, b, a float32) uint32 {
	pack := func(c float32) uint32 {
		return uint32(math.Clamp(c, 0, 1)*255 + 0.5)
	}
	return pack(r) | pack(g)<<8 | pack(b)<<16 | pack(a)<<24
}

/**
 * @brief Draws a textured quad in the 640x480 virtual screen with the current
 * color and state. A nil material draws white.
 */
func (rs *RenderSystem) DrawStretchPic(x, y, w, h, s1, t1, s2, t2 float32, material metadata.Material) {
	if material == nil {
		material = WhiteMaterial
	}
	verts := rs.gui.AllocTris(4, quadIndexes, material, rs.glState)
	if verts == nil {
		return
	}
	corners := [4][4]float32{
		{x, y, s1, t1},
		{x + w, y, s2, t1},
		{x + w, y + h, s2, t2},
		{x, y + h, s1, t2},
	}
	for i, c := range corners {
		v := &verts[i]
		*v = metadata.DrawVert{}
		v.Xyz = [3]float32{c[0], c[1], 0}
		v.SetTexCoord(c[2], c[3])
		v.SetColor(rs.color)
	}
}

// DrawFilled draws a solid rectangle of the given color.
func (rs *RenderSystem) DrawFilled(r, g, b, a, x, y, w, h float32) {
	color := rs.color
	rs.SetColor(r, g, b, a)
	rs.DrawStretchPic(x, y, w, h, 0, 0, 1, 1, WhiteMaterial)
	rs.color = color
}

/**
 * @brief Creates a named image CaptureRenderToImage can copy into. Must be
 * called on the thread that owns the native context.
 */
func (rs *RenderSystem) CreateRenderImage(name string, width, height uint32) (*metadata.RenderImage, error) {
	if img, ok := rs.images[name]; ok {
		return img, nil
	}
	img, err := rs.backend.Driver().CreateRenderImage(name, width, height)
	if err != nil {
		err = fmt.Errorf("failed to create render image '%s': %w", name, err)
		core.LogError(err.Error())
		return nil, err
	}
	rs.images[name] = img
	return img, nil
}

func (rs *RenderSystem) RenderImage(name string) *metadata.RenderImage {
	return rs.images[name]
}

func (rs *RenderSystem) swapchainRect() math.ScreenRect {
	w, h := rs.backend.SwapchainExtent()
	return math.ScreenRect{X2: int32(w), Y2: int32(h)}
}

// Viewport is the size views of the current frame are drawn at.
func (rs *RenderSystem) Viewport() math.ScreenRect { return rs.vp }

// emitGui turns the 2D draws so far into a view command and starts a fresh batch.
func (rs *RenderSystem) emitGui() {
	view := rs.gui.EmitFullScreen(rs.current, rs.vp)
	if view != nil {
		rs.current.AddCommand(metadata.RenderCommand{Op: metadata.RC_DRAW_VIEW_GUI, ViewDef: view})
	}
	rs.gui.Clear()
}

/**
 * @brief Queues a copy of everything drawn so far into the named image. The
 * pending 2D draws are emitted first so they are part of the copy.
 */
func (rs *RenderSystem) CaptureRenderToImage(name string, clearColorAfterCopy bool) {
	img := rs.images[name]
	if img == nil {
		core.LogWarn("CaptureRenderToImage: no render image '%s'", name)
		return
	}
	rs.emitGui()
	rs.current.AddCommand(metadata.RenderCommand{
		Op:                  metadata.RC_COPY_RENDER,
		Image:               img,
		ImageWidth:          min(rs.vp.X2, int32(img.Width)),
		ImageHeight:         min(rs.vp.Y2, int32(img.Height)),
		ClearColorAfterCopy: clearColorAfterCopy,
	})
}

// AddView queues a 3D view built by the caller in the current frame.
func (rs *RenderSystem) AddView(view *metadata.ViewDef) {
	if view == nil {
		return
	}
	rs.current.AddCommand(metadata.RenderCommand{Op: metadata.RC_DRAW_VIEW_3D, ViewDef: view})
}

/**
 * @brief Finishes the frame the backend was rendering, closes the frame the
 * game just built and opens the next one. Returns the commands to pass to
 * RenderCommandBuffers.
 */
func (rs *RenderSystem) SwapCommandBuffers() ([]metadata.RenderCommand, error) {
	if !rs.initialized {
		return nil, fmt.Errorf("SwapCommandBuffers: %w", core.ErrNotInitialized)
	}
	if err := rs.finishRendering(); err != nil {
		return nil, err
	}
	rs.vp = rs.swapchainRect()

	rs.emitGui()
	cmds := rs.current.Commands()

	// hands the slot the game wrote to the backend
	if err := rs.backend.Cache().BeginFrame(); err != nil {
		return nil, err
	}

	rs.frameCount++
	rs.current = rs.frames[rs.frameCount%uint64(len(rs.frames))]
	rs.current.Reset()
	rs.gui.BeginFrame()
	return cmds, nil
}

func (rs *RenderSystem) finishRendering() error {
	if err := rs.backend.BlockingSwapBuffers(); err != nil {
		return err
	}
	rs.lastCounters = rs.backend.Counters()
	_, err := rs.applyPending()
	return err
}

func (rs *RenderSystem) applyPending() (bool, error) {
	rs.mu.Lock()
	change := rs.pending
	rs.pending = pendingChange{}
	if change.resize || change.restart {
		rs.parms = change.parms
	}
	rs.mu.Unlock()

	switch {
	case change.restart:
		return true, rs.backend.Restart(change.parms)
	case change.resize:
		return true, rs.backend.Resize(change.parms)
	}
	return false, nil
}

/**
 * @brief Executes a command list returned by SwapCommandBuffers. A swapchain
 * that went out of date drops the frame and is rebuilt for the next one.
 */
func (rs *RenderSystem) RenderCommandBuffers(cmds []metadata.RenderCommand) error {
	err := rs.backend.Execute(cmds)
	if !errors.Is(err, core.ErrSwapchainBooting) {
		return err
	}
	core.LogDebug("frame %d dropped, rebuilding swapchain", rs.frameCount)
	applied, err := rs.applyPending()
	if applied || err != nil {
		return err
	}
	rs.mu.Lock()
	parms := rs.parms
	rs.mu.Unlock()
	return rs.backend.Resize(parms)
}

// RequestResize queues a new window size, applied before the next frame.
func (rs *RenderSystem) RequestResize(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	parms := rs.parms
	if rs.pending.resize || rs.pending.restart {
		parms = rs.pending.parms
	}
	parms.Width = width
	parms.Height = height
	rs.pending.parms = parms
	rs.pending.resize = true
}

func (rs *RenderSystem) onResized(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	rs.RequestResize(data.Data.U32[0], data.Data.U32[1])
	return false
}

/**
 * @brief A changed sample count or swap interval rebuilds the render pass;
 * size and position changes only resize.
 */
func (rs *RenderSystem) onConfigReloaded(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	cfg, ok := data.Payload.(*core.RenderConfig)
	if !ok {
		core.LogError("config reload event without a render config (%T)", data.Payload)
		return false
	}
	parms := backend.ParmsFromConfig(&cfg.Display)

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if parms == rs.parms {
		return false
	}
	rs.pending.parms = parms
	if parms.MultiSamples != rs.parms.MultiSamples || parms.SwapInterval != rs.parms.SwapInterval {
		rs.pending.restart = true
	} else {
		rs.pending.resize = true
	}
	return false
}
