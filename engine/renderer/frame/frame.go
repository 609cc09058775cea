package frame

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-renderer/engine/containers"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

const (
	DEFAULT_VIEWS_PER_BLOCK    = 16
	DEFAULT_SURFACES_PER_BLOCK = 1024
	DEFAULT_ENTITIES_PER_BLOCK = 256
	DEFAULT_FRAME_FLOATS       = 64 * 1024
)

/**
 * @brief Memory allocator the frontend uses for everything that lives exactly
 * one frame: views, surfaces, entity transforms, register values.
 */
type Allocator interface {
	AllocView() *metadata.ViewDef
	AllocSurface() *metadata.DrawSurface
	AllocEntity() *metadata.ViewEntity
	AllocFloats(n int) []float32
}

/**
 * @brief One frame of frontend data: arenas for views, surfaces and entity
 * transforms plus the render command list handed to the backend.
 * Nothing is freed individually, Reset reclaims everything at once.
 */
type Frame struct {
	Index int

	views    *containers.Arena[metadata.ViewDef]
	surfaces *containers.Arena[metadata.DrawSurface]
	entities *containers.Arena[metadata.ViewEntity]
	floats   *containers.SliceArena[float32]
	commands []metadata.RenderCommand
}

func New(index int) *Frame {
	return &Frame{
		Index:    index,
		views:    containers.NewArena[metadata.ViewDef](DEFAULT_VIEWS_PER_BLOCK),
		surfaces: containers.NewArena[metadata.DrawSurface](DEFAULT_SURFACES_PER_BLOCK),
		entities: containers.NewArena[metadata.ViewEntity](DEFAULT_ENTITIES_PER_BLOCK),
		floats:   containers.NewSliceArena[float32](DEFAULT_FRAME_FLOATS),
	}
}

func (f *Frame) AllocView() *metadata.ViewDef {
	v := f.views.Alloc()
	v.ID = uuid.New()
	return v
}

func (f *Frame) AllocSurface() *metadata.DrawSurface {
	return f.surfaces.Alloc()
}

func (f *Frame) AllocEntity() *metadata.ViewEntity {
	return f.entities.Alloc()
}

func (f *Frame) AllocFloats(n int) []float32 {
	return f.floats.Alloc(n)
}

// AddCommand appends a render command to this frame's list.
func (f *Frame) AddCommand(cmd metadata.RenderCommand) {
	f.commands = append(f.commands, cmd)
}

func (f *Frame) Commands() []metadata.RenderCommand {
	return f.commands
}

type Usage struct {
	Views, Surfaces, Entities, Floats, Commands int
}

func (f *Frame) Usage() Usage {
	return Usage{
		Views:    f.views.Len(),
		Surfaces: f.surfaces.Len(),
		Entities: f.entities.Len(),
		Floats:   f.floats.Used(),
		Commands: len(f.commands),
	}
}

/**
 * @brief Reclaims every allocation of the frame. Views allocated before the
 * reset must not be used afterwards.
 */
func (f *Frame) Reset() {
	clear(f.commands)
	f.commands = f.commands[:0]
	f.views.Reset()
	f.surfaces.Reset()
	f.entities.Reset()
	f.floats.Reset()
}

var _ Allocator = (*Frame)(nil)
