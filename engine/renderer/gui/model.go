package gui

import (
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/math"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/frame"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

// Virtual screen every full-screen GUI is authored against.
const (
	SCREEN_WIDTH  = 640
	SCREEN_HEIGHT = 480
)

// Index runs start on this boundary so each surface begins 16 byte aligned.
const INDEX_RUN_ALIGN = 8

/**
 * @brief The part of the frame cache the GUI batcher writes into.
 */
type VertexCache interface {
	AllocVertex(data []byte, num, size int) metadata.CacheHandle
	AllocIndex(data []byte, num int) metadata.CacheHandle
	MappedVertexBuffer(h metadata.CacheHandle) []byte
	MappedIndexBuffer(h metadata.CacheHandle) []byte
	CurrentFrame() uint64
}

type Options struct {
	MaxVerts        int
	MaxIndexes      int
	DefaultMaterial metadata.Material
	// ClipSpaceYDown selects the full-screen projection flip.
	ClipSpaceYDown bool
}

// Surface is one run of indexes sharing a material and GL state.
type Surface struct {
	Material   metadata.Material
	GLState    uint64
	FirstIndex int
	NumIndexes int
}

/**
 * @brief Accumulates 2D geometry into one vertex block and one index block of
 * the frame cache, splitting the index stream into surfaces whenever the
 * material or GL state changes.
 */
type GuiModel struct {
	cache VertexCache
	opts  Options

	surfaces []Surface
	// Index of the open surface in surfaces.
	surf int

	vertexBlock   metadata.CacheHandle
	indexBlock    metadata.CacheHandle
	vertexPointer []metadata.DrawVert
	indexPointer  []metadata.TriIndex

	numVerts   int
	numIndexes int

	shaderParms [metadata.MAX_ENTITY_SHADER_PARMS]float32
	warnings    *core.FrameWarnings
}

func NewGuiModel(cache VertexCache, opts Options) *GuiModel {
	gm := &GuiModel{
		cache:    cache,
		opts:     opts,
		warnings: core.NewFrameWarnings(),
	}
	// identity color for register evaluation
	for i := range gm.shaderParms {
		gm.shaderParms[i] = 1.0
	}
	return gm
}

/**
 * @brief Grabs this frame's vertex and index blocks and opens the first surface.
 * Must be called once per frame after the frame cache moved to the new slot.
 */
func (gm *GuiModel) BeginFrame() {
	gm.vertexBlock = gm.cache.AllocVertex(nil, gm.opts.MaxVerts, metadata.DRAWVERT_SIZE)
	gm.indexBlock = gm.cache.AllocIndex(nil, gm.opts.MaxIndexes)
	gm.vertexPointer = metadata.FromBytes[metadata.DrawVert](gm.cache.MappedVertexBuffer(gm.vertexBlock))
	gm.indexPointer = metadata.FromBytes[metadata.TriIndex](gm.cache.MappedIndexBuffer(gm.indexBlock))
	gm.numVerts = 0
	gm.numIndexes = 0
	gm.Clear()
}

// Clear drops every surface and opens a fresh one.
func (gm *GuiModel) Clear() {
	gm.surfaces = gm.surfaces[:0]
	gm.AdvanceSurf()
}

/**
 * @brief Opens a new surface starting at the next aligned index, inheriting
 * the material and state of the previous one.
 */
func (gm *GuiModel) AdvanceSurf() {
	s := Surface{}
	if len(gm.surfaces) > 0 {
		s.Material = gm.surfaces[gm.surf].Material
		s.GLState = gm.surfaces[gm.surf].GLState
	} else {
		s.Material = gm.opts.DefaultMaterial
		s.GLState = 0
	}

	gm.numIndexes = math.Align(gm.numIndexes, INDEX_RUN_ALIGN)

	s.NumIndexes = 0
	s.FirstIndex = gm.numIndexes

	gm.surfaces = append(gm.surfaces, s)
	gm.surf = len(gm.surfaces) - 1
}

/**
 * @brief Reserves vertCount vertices and copies the indexes, rebased on the
 * first reserved vertex. Returns the vertices to fill, or nil when the material
 * is nil or the frame is out of room.
 */
func (gm *GuiModel) AllocTris(vertCount int, indexes []metadata.TriIndex, material metadata.Material, glState uint64) []metadata.DrawVert {
	if material == nil {
		return nil
	}
	indexCount := len(indexes)
	frameNum := gm.cache.CurrentFrame()
	if gm.numIndexes+indexCount > gm.opts.MaxIndexes || gm.numIndexes+indexCount > len(gm.indexPointer) {
		gm.warnings.Warn(frameNum, "max-indexes", "GuiModel.AllocTris: MAX_INDEXES exceeded")
		return nil
	}
	if gm.numVerts+vertCount > gm.opts.MaxVerts || gm.numVerts+vertCount > len(gm.vertexPointer) {
		gm.warnings.Warn(frameNum, "max-verts", "GuiModel.AllocTris: MAX_VERTS exceeded")
		return nil
	}

	surf := &gm.surfaces[gm.surf]
	if material != surf.Material || glState != surf.GLState {
		if surf.NumIndexes != 0 {
			gm.AdvanceSurf()
			surf = &gm.surfaces[gm.surf]
		}
		surf.Material = material
		surf.GLState = glState
	}

	startVert := gm.numVerts
	startIndex := gm.numIndexes

	gm.numVerts += vertCount
	gm.numIndexes += indexCount
	surf.NumIndexes += indexCount

	if startIndex&1 != 0 || indexCount&1 != 0 {
		// rare, quads always carry an even index count
		for i := 0; i < indexCount; i++ {
			gm.indexPointer[startIndex+i] = metadata.TriIndex(startVert) + indexes[i]
		}
	} else {
		pairs := metadata.FromBytes[uint32](metadata.AsBytes(gm.indexPointer[startIndex : startIndex+indexCount]))
		for i := 0; i < indexCount; i += 2 {
			writeIndexPair(pairs, i>>1, metadata.TriIndex(startVert)+indexes[i], metadata.TriIndex(startVert)+indexes[i+1])
		}
	}

	return gm.vertexPointer[startVert : startVert+vertCount : startVert+vertCount]
}

func writeIndexPair(dest []uint32, i int, a, b metadata.TriIndex) {
	dest[i] = uint32(a) | uint32(b)<<16
}

// SetShaderParms sets the entity parms used when evaluating dynamic materials.
func (gm *GuiModel) SetShaderParms(parms []float32) {
	copy(gm.shaderParms[:], parms)
}

/**
 * @brief Builds one draw surface per non-empty batch and links them into view.
 * When linkAsEntity is set the gui space is also added to the view's entities.
 */
func (gm *GuiModel) EmitSurfaces(alloc frame.Allocator, view *metadata.ViewDef, modelMatrix, modelViewMatrix math.Mat4, depthHack, linkAsEntity bool) {
	guiSpace := alloc.AllocEntity()
	guiSpace.ModelMatrix = modelMatrix
	guiSpace.ModelViewMatrix = modelViewMatrix
	guiSpace.WeaponDepthHack = depthHack
	guiSpace.IsGuiSurface = true

	if linkAsEntity {
		view.ViewEntities = append(view.ViewEntities, guiSpace)
	}

	guiSpace.Mvp = modelViewMatrix.Mul(view.ProjectionMatrix)
	if depthHack {
		math.ApplyDepthHack(&guiSpace.Mvp)
	}

	for i := range gm.surfaces {
		guiSurf := &gm.surfaces[i]
		if guiSurf.NumIndexes == 0 {
			continue
		}

		shader := guiSurf.Material
		ds := alloc.AllocSurface()
		ds.NumIndexes = guiSurf.NumIndexes
		ds.AmbientCache = gm.vertexBlock
		// point inside the allocated block
		ds.IndexCache = gm.indexBlock.WithOffset(guiSurf.FirstIndex * metadata.TRIINDEX_SIZE)
		ds.ShadowCache = metadata.NoHandle
		ds.JointCache = metadata.NoHandle
		ds.Space = guiSpace
		ds.Material = shader
		ds.ExtraGLState = guiSurf.GLState
		ds.ScissorRect = view.Scissor
		ds.Sort = shader.Sort()
		ds.RenderZFail = false

		if constRegs := shader.ConstantRegisters(); constRegs != nil {
			ds.ShaderRegisters = constRegs
		} else {
			regs := alloc.AllocFloats(shader.NumRegisters())
			shader.EvaluateRegisters(regs, gm.shaderParms[:], view.ShaderParms, view.Time)
			ds.ShaderRegisters = regs
		}
		view.LinkDrawSurf(ds)
	}
}

/**
 * @brief Emits the surfaces into an existing view, placed by modelMatrix.
 */
func (gm *GuiModel) EmitToCurrentView(alloc frame.Allocator, view *metadata.ViewDef, modelMatrix math.Mat4, depthHack bool) {
	modelViewMatrix := modelMatrix.Mul(view.WorldSpace.ModelViewMatrix)
	gm.EmitSurfaces(alloc, view, modelMatrix, modelViewMatrix, depthHack, true)
}

/**
 * @brief Creates a view covering viewport and emits the surfaces into it.
 * Returns nil when nothing was drawn.
 */
func (gm *GuiModel) EmitFullScreen(alloc frame.Allocator, viewport math.ScreenRect) *metadata.ViewDef {
	if len(gm.surfaces) == 0 || gm.surfaces[0].NumIndexes == 0 {
		return nil
	}

	view := alloc.AllocView()
	view.Is2DGui = true
	view.Viewport = viewport
	view.Scissor = math.ScreenRect{
		X1: 0,
		Y1: 0,
		X2: viewport.X2 - viewport.X1,
		Y2: viewport.Y2 - viewport.Y1,
	}
	view.ProjectionMatrix = math.NewMat4GuiOrtho(SCREEN_WIDTH, SCREEN_HEIGHT, gm.opts.ClipSpaceYDown)
	view.WorldSpace.ModelMatrix = math.NewMat4Identity()
	view.WorldSpace.ModelViewMatrix = math.NewMat4Identity()
	view.MaxDrawSurfs = len(gm.surfaces)
	view.DrawSurfs = make([]*metadata.DrawSurface, 0, view.MaxDrawSurfs)

	gm.EmitSurfaces(alloc, view, view.WorldSpace.ModelMatrix, view.WorldSpace.ModelViewMatrix, false, false)
	return view
}

// Surfaces returns the batches collected so far, the last one still open.
func (gm *GuiModel) Surfaces() []Surface {
	return gm.surfaces
}

func (gm *GuiModel) NumVerts() int   { return gm.numVerts }
func (gm *GuiModel) NumIndexes() int { return gm.numIndexes }
