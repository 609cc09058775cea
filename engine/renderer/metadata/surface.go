package metadata

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-renderer/engine/math"
)

// Material sort order.
const (
	SS_SUBVIEW      float32 = -3
	SS_GUI          float32 = -2
	SS_BAD          float32 = -1
	SS_OPAQUE       float32 = 0
	SS_DECAL        float32 = 2
	SS_MEDIUM       float32 = 6
	SS_POST_PROCESS float32 = 100
)

const MAX_ENTITY_SHADER_PARMS = 12

/**
 * @brief The resolved output of the material system. The renderer only reads
 * register values, it never parses material definitions.
 */
type Material interface {
	Name() string
	Sort() float32
	Program() BuiltinProgram
	// ConstantRegisters is nil when the material has dynamic expressions.
	ConstantRegisters() []float32
	NumRegisters() int
	EvaluateRegisters(regs []float32, entityParms []float32, globalParms []float32, time float32)
}

/**
 * @brief A Material with fixed register values, or registers computed by Eval.
 */
type ConstMaterial struct {
	MaterialName string
	SortKey      float32
	Prog         BuiltinProgram
	Registers    []float32
	// Eval makes the material dynamic when set.
	Eval func(regs, entityParms, globalParms []float32, time float32)
}

func (m *ConstMaterial) Name() string            { return m.MaterialName }
func (m *ConstMaterial) Sort() float32           { return m.SortKey }
func (m *ConstMaterial) Program() BuiltinProgram { return m.Prog }
func (m *ConstMaterial) NumRegisters() int       { return len(m.Registers) }

func (m *ConstMaterial) ConstantRegisters() []float32 {
	if m.Eval != nil {
		return nil
	}
	return m.Registers
}

func (m *ConstMaterial) EvaluateRegisters(regs, entityParms, globalParms []float32, time float32) {
	copy(regs, m.Registers)
	if m.Eval != nil {
		m.Eval(regs, entityParms, globalParms, time)
	}
}

/** @brief Per-entity transforms of a view. */
type ViewEntity struct {
	ModelMatrix     math.Mat4
	ModelViewMatrix math.Mat4
	Mvp             math.Mat4
	WeaponDepthHack bool
	ModelDepthHack  float32
	IsGuiSurface    bool
}

/** @brief One batch of geometry sharing a material and raster state, ready for submission. */
type DrawSurface struct {
	NumIndexes   int
	AmbientCache CacheHandle
	IndexCache   CacheHandle
	ShadowCache  CacheHandle
	JointCache   CacheHandle
	Space        *ViewEntity
	Material     Material
	ExtraGLState uint64
	ScissorRect  math.ScreenRect
	Sort         float32
	// Register values, either the material's constants or frame memory.
	ShaderRegisters []float32
	RenderZFail     bool
}

/**
 * @brief Camera, projection, scissor and viewport state for one view plus the
 * surfaces emitted into it. Lives in frame memory until the frame is reset.
 */
type ViewDef struct {
	ID               uuid.UUID
	Is2DGui          bool
	IsMirror         bool
	Viewport         math.ScreenRect
	Scissor          math.ScreenRect
	ProjectionMatrix math.Mat4
	WorldSpace       ViewEntity
	DrawSurfs        []*DrawSurface
	MaxDrawSurfs     int
	ViewEntities     []*ViewEntity
	// Global shader parms and time in seconds, used when evaluating registers.
	ShaderParms []float32
	Time        float32
}

// LinkDrawSurf appends a surface to the view's draw list.
func (v *ViewDef) LinkDrawSurf(ds *DrawSurface) {
	v.DrawSurfs = append(v.DrawSurfs, ds)
}
