package metadata

type BuiltinProgram int

const (
	BUILTIN_GUI BuiltinProgram = iota
	BUILTIN_COLOR
	BUILTIN_TEXTURED
	BUILTIN_DEPTH
	BUILTIN_DEPTH_SKINNED
	BUILTIN_SHADOW
	BUILTIN_SHADOW_SKINNED
	MAX_BUILTINS
)

/** @brief Static description of a shader program. */
type ProgramDesc struct {
	Name             string
	Layout           VertexLayout
	UsesJoints       bool
	OptionalSkinning bool
}

// BuiltinPrograms lists the programs registered at init, indexed by BuiltinProgram.
var BuiltinPrograms = [MAX_BUILTINS]ProgramDesc{
	BUILTIN_GUI:            {Name: "gui", Layout: LAYOUT_DRAW_VERT},
	BUILTIN_COLOR:          {Name: "color", Layout: LAYOUT_DRAW_VERT},
	BUILTIN_TEXTURED:       {Name: "texture", Layout: LAYOUT_DRAW_VERT},
	BUILTIN_DEPTH:          {Name: "depth", Layout: LAYOUT_DRAW_VERT},
	BUILTIN_DEPTH_SKINNED:  {Name: "depth_skinned", Layout: LAYOUT_DRAW_VERT, UsesJoints: true},
	BUILTIN_SHADOW:         {Name: "shadow", Layout: LAYOUT_DRAW_SHADOW_VERT},
	BUILTIN_SHADOW_SKINNED: {Name: "shadow_skinned", Layout: LAYOUT_DRAW_SHADOW_VERT_SKINNED, UsesJoints: true},
}

/**
 * @brief Global uniform slots. Each slot is one vec4 in the shared uniform block
 * the shaders declare; the order must match the shader sources.
 */
type RenderParm int

const (
	RENDERPARM_SCREENCORRECTIONFACTOR RenderParm = iota
	RENDERPARM_WINDOWCOORD
	RENDERPARM_DIFFUSEMODIFIER
	RENDERPARM_SPECULARMODIFIER

	RENDERPARM_LOCALLIGHTORIGIN
	RENDERPARM_LOCALVIEWORIGIN

	RENDERPARM_LIGHTPROJECTION_S
	RENDERPARM_LIGHTPROJECTION_T
	RENDERPARM_LIGHTPROJECTION_Q
	RENDERPARM_LIGHTFALLOFF_S

	RENDERPARM_BUMPMATRIX_S
	RENDERPARM_BUMPMATRIX_T

	RENDERPARM_DIFFUSEMATRIX_S
	RENDERPARM_DIFFUSEMATRIX_T

	RENDERPARM_SPECULARMATRIX_S
	RENDERPARM_SPECULARMATRIX_T

	RENDERPARM_VERTEXCOLOR_MODULATE
	RENDERPARM_VERTEXCOLOR_ADD

	RENDERPARM_COLOR
	RENDERPARM_VIEWORIGIN
	RENDERPARM_GLOBALEYEPOS

	RENDERPARM_MVPMATRIX_X
	RENDERPARM_MVPMATRIX_Y
	RENDERPARM_MVPMATRIX_Z
	RENDERPARM_MVPMATRIX_W

	RENDERPARM_MODELMATRIX_X
	RENDERPARM_MODELMATRIX_Y
	RENDERPARM_MODELMATRIX_Z
	RENDERPARM_MODELMATRIX_W

	RENDERPARM_PROJMATRIX_X
	RENDERPARM_PROJMATRIX_Y
	RENDERPARM_PROJMATRIX_Z
	RENDERPARM_PROJMATRIX_W

	RENDERPARM_MODELVIEWMATRIX_X
	RENDERPARM_MODELVIEWMATRIX_Y
	RENDERPARM_MODELVIEWMATRIX_Z
	RENDERPARM_MODELVIEWMATRIX_W

	RENDERPARM_TEXTUREMATRIX_S
	RENDERPARM_TEXTUREMATRIX_T

	RENDERPARM_OVERBRIGHT
	RENDERPARM_ENABLE_SKINNING
	RENDERPARM_ALPHA_TEST

	RENDERPARM_USER0
	RENDERPARM_USER1
	RENDERPARM_USER2
	RENDERPARM_USER3

	RENDERPARM_TOTAL
)

// Size in bytes of the uniform block holding every RenderParm.
const RENDERPARM_BLOCK_SIZE = int(RENDERPARM_TOTAL) * 4 * 4

// Uniform buffer bindings shared by every program.
const (
	BINDING_RENDERPARMS = 0
	BINDING_JOINTS      = 1
)
