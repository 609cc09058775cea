package renderer

import (
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/math"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/components"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

/**
 * @brief Geometry placed in a 3D view for one frame. Vertices and indexes
 * are copied into the frame's vertex cache.
 */
type Model struct {
	Verts       []metadata.DrawVert
	Indexes     []metadata.TriIndex
	Material    metadata.Material
	ModelMatrix math.Mat4
	GLState     uint64
	// ShaderParms are evaluated by dynamic materials.
	ShaderParms     []float32
	WeaponDepthHack bool
	ModelDepthHack  float32
}

/**
 * @brief Allocates a full viewport 3D view seen through cam. Fill it with
 * AddModel and queue it with AddView.
 */
func (rs *RenderSystem) NewView(cam *components.Camera) *metadata.ViewDef {
	view := rs.current.AllocView()
	view.Viewport = rs.vp
	view.Scissor = math.ScreenRect{X2: rs.vp.X2 - rs.vp.X1, Y2: rs.vp.Y2 - rs.vp.Y1}

	aspect := float32(1)
	if h := rs.vp.Y2 - rs.vp.Y1; h > 0 {
		aspect = float32(rs.vp.X2-rs.vp.X1) / float32(h)
	}
	view.ProjectionMatrix = cam.Projection(aspect, rs.backend.Driver().ClipSpaceYDown())
	view.WorldSpace.ModelMatrix = math.NewMat4Identity()
	view.WorldSpace.ModelViewMatrix = cam.GetView()
	view.WorldSpace.Mvp = view.WorldSpace.ModelViewMatrix.Mul(view.ProjectionMatrix)
	return view
}

/**
 * @brief Copies the model into frame memory and links one surface for it.
 * Returns false when the vertex cache is out of room.
 */
func (rs *RenderSystem) AddModel(view *metadata.ViewDef, m *Model) bool {
	if len(m.Verts) == 0 || len(m.Indexes) == 0 {
		return false
	}
	cache := rs.backend.Cache()
	ambient := cache.AllocVertex(metadata.AsBytes(m.Verts), len(m.Verts), metadata.DRAWVERT_SIZE)
	indexes := cache.AllocIndex(metadata.AsBytes(m.Indexes), len(m.Indexes))
	if !ambient.IsValid() || !indexes.IsValid() {
		core.LogWarn("AddModel: out of frame vertex memory, %d verts dropped", len(m.Verts))
		return false
	}

	material := m.Material
	if material == nil {
		material = WhiteMaterial
	}

	space := rs.current.AllocEntity()
	space.ModelMatrix = m.ModelMatrix
	space.ModelViewMatrix = m.ModelMatrix.Mul(view.WorldSpace.ModelViewMatrix)
	space.Mvp = space.ModelViewMatrix.Mul(view.ProjectionMatrix)
	space.WeaponDepthHack = m.WeaponDepthHack
	space.ModelDepthHack = m.ModelDepthHack
	if m.WeaponDepthHack {
		math.ApplyDepthHack(&space.Mvp)
	} else if m.ModelDepthHack != 0 {
		math.ApplyModelDepthHack(&space.Mvp, m.ModelDepthHack)
	}
	view.ViewEntities = append(view.ViewEntities, space)

	ds := rs.current.AllocSurface()
	ds.NumIndexes = len(m.Indexes)
	ds.AmbientCache = ambient
	ds.IndexCache = indexes
	ds.ShadowCache = metadata.NoHandle
	ds.JointCache = metadata.NoHandle
	ds.Space = space
	ds.Material = material
	ds.ExtraGLState = m.GLState
	ds.ScissorRect = view.Scissor
	ds.Sort = material.Sort()

	if constRegs := material.ConstantRegisters(); constRegs != nil {
		ds.ShaderRegisters = constRegs
	} else {
		regs := rs.current.AllocFloats(material.NumRegisters())
		material.EvaluateRegisters(regs, m.ShaderParms, view.ShaderParms, view.Time)
		ds.ShaderRegisters = regs
	}
	view.LinkDrawSurf(ds)
	return true
}
