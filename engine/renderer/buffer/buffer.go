package buffer

import (
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/math"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

var alignment atomic.Int64

func init() {
	alignment.Store(core.DEFAULT_BUFFER_ALIGNMENT)
}

// SetAlignment changes the size rounding applied to every allocation. It must be
// a power of two and should be set before any buffer is allocated.
func SetAlignment(a int) error {
	if a <= 0 || a&(a-1) != 0 {
		return fmt.Errorf("buffer alignment %d is not a power of two", a)
	}
	alignment.Store(int64(a))
	return nil
}

func Alignment() int {
	return int(alignment.Load())
}

/**
 * @brief The state shared by vertex, index and uniform buffers. A buffer either
 * owns its native allocation or is a view into another buffer's allocation.
 */
type bufferObject struct {
	driver metadata.BufferDriver
	kind   metadata.BufferKind

	size      int
	allocSize int
	usage     metadata.BufferUsage
	owns      bool
	// Offset of this buffer inside the owning allocation.
	offset int
	native metadata.NativeBuffer

	// The whole allocation, persistently mapped for BU_DYNAMIC owners and shared with views.
	persistent []byte
	mapped     []byte
	isMapped   bool
}

func newBufferObject(driver metadata.BufferDriver, kind metadata.BufferKind) bufferObject {
	return bufferObject{
		driver: driver,
		kind:   kind,
		owns:   true,
	}
}

/**
 * @brief Allocates a native buffer of at least size bytes. Non-nil data is
 * copied in immediately. A failed STATIC allocation is fatal; a failed DYNAMIC
 * allocation is reported and the buffer stays unallocated.
 */
func (bo *bufferObject) AllocBufferObject(data []byte, size int, usage metadata.BufferUsage) error {
	if bo.native != nil {
		return fmt.Errorf("%s buffer already allocated: %w", bo.kind, core.ErrAllocation)
	}
	if size <= 0 {
		return fmt.Errorf("%s buffer allocSize = %d: %w", bo.kind, size, core.ErrAllocation)
	}

	allocSize := math.Align(size, Alignment())
	native, err := bo.driver.CreateBuffer(bo.kind, allocSize, usage)
	if err != nil {
		err = fmt.Errorf("%s buffer allocation of %s failed: %w: %w", bo.kind, core.FormatBytes(uint64(allocSize)), core.ErrAllocation, err)
		if usage == metadata.BU_STATIC {
			return core.WrapFatal(err, "AllocBufferObject")
		}
		core.LogWarn(err.Error())
		return err
	}

	bo.size = size
	bo.allocSize = allocSize
	bo.usage = usage
	bo.owns = true
	bo.offset = 0
	bo.native = native

	if usage == metadata.BU_DYNAMIC {
		mem, err := bo.driver.MapBuffer(native, metadata.MAP_WRITE)
		if err != nil {
			bo.driver.DestroyBuffer(native)
			bo.clearWithoutFreeing()
			err = fmt.Errorf("%s buffer persistent map failed: %w: %w", bo.kind, core.ErrAllocation, err)
			core.LogWarn(err.Error())
			return err
		}
		bo.persistent = mem
	}

	core.LogDebug("%s buffer alloc %p (%s)", bo.kind, bo, core.FormatBytes(uint64(allocSize)))

	if data != nil {
		return bo.Update(data, 0)
	}
	return nil
}

/**
 * @brief Releases the buffer. Views only forget their state; the owner of the
 * allocation is the only one that talks to the driver. Safe to call twice.
 */
func (bo *bufferObject) FreeBufferObject() {
	if bo.isMapped {
		if err := bo.UnmapBuffer(); err != nil {
			core.LogWarn("%s buffer unmap on free: %s", bo.kind, err.Error())
		}
	}

	if !bo.owns {
		bo.clearWithoutFreeing()
		return
	}
	if bo.native == nil {
		return
	}

	core.LogDebug("%s buffer free %p (%s)", bo.kind, bo, core.FormatBytes(uint64(bo.allocSize)))

	if bo.persistent != nil {
		if err := bo.driver.UnmapBuffer(bo.native); err != nil {
			core.LogWarn("%s buffer persistent unmap failed: %s", bo.kind, err.Error())
		}
	}
	bo.driver.DestroyBuffer(bo.native)
	bo.clearWithoutFreeing()
}

/**
 * @brief Copies data into the buffer at offset bytes past the buffer start.
 */
func (bo *bufferObject) Update(data []byte, offset int) error {
	if bo.native == nil {
		return fmt.Errorf("%s buffer update: %w", bo.kind, core.ErrNotAllocated)
	}
	if offset < 0 || offset+len(data) > bo.size {
		return fmt.Errorf("%s buffer update %d+%d > %d: %w", bo.kind, offset, len(data), bo.size, core.ErrOverrun)
	}
	if len(data) == 0 {
		return nil
	}

	start := bo.offset + offset
	if bo.usage == metadata.BU_DYNAMIC {
		copy(bo.persistent[start:start+len(data)], data)
		return nil
	}
	return bo.driver.UploadBuffer(bo.native, start, data)
}

/**
 * @brief Maps the buffer and returns its bytes starting at the buffer offset.
 * WRITE mappings may be write-combined: write sequentially, never read back.
 */
func (bo *bufferObject) MapBuffer(mode metadata.MapMode) ([]byte, error) {
	if bo.native == nil {
		return nil, fmt.Errorf("%s buffer map: %w", bo.kind, core.ErrNotAllocated)
	}
	if bo.isMapped {
		return nil, fmt.Errorf("%s buffer map: %w", bo.kind, core.ErrAlreadyMapped)
	}
	if mode != metadata.MAP_READ && mode != metadata.MAP_WRITE {
		return nil, fmt.Errorf("%s buffer map mode %d: %w", bo.kind, mode, core.ErrInvalidMapMode)
	}

	mem := bo.persistent
	if bo.usage != metadata.BU_DYNAMIC {
		m, err := bo.driver.MapBuffer(bo.native, mode)
		if err != nil {
			return nil, core.WrapFatal(err, fmt.Sprintf("%s MapBuffer", bo.kind))
		}
		mem = m
	}

	end := bo.offset + bo.allocSize
	if end > len(mem) {
		end = len(mem)
	}
	bo.mapped = mem[bo.offset:end:end]
	bo.isMapped = true
	return bo.mapped, nil
}

func (bo *bufferObject) UnmapBuffer() error {
	if bo.native == nil {
		return fmt.Errorf("%s buffer unmap: %w", bo.kind, core.ErrNotAllocated)
	}
	if !bo.isMapped {
		return fmt.Errorf("%s buffer unmap: %w", bo.kind, core.ErrNotMapped)
	}

	var err error
	if bo.usage != metadata.BU_DYNAMIC {
		err = bo.driver.UnmapBuffer(bo.native)
	}
	bo.mapped = nil
	bo.isMapped = false
	return err
}

func (bo *bufferObject) reference(other *bufferObject, refOffset, refSize int) error {
	if other.native == nil {
		return fmt.Errorf("%s buffer reference: %w", bo.kind, core.ErrNotAllocated)
	}
	if refOffset < 0 || refSize <= 0 || refOffset+refSize > other.allocSize {
		return fmt.Errorf("%s buffer reference %d+%d > %d: %w", bo.kind, refOffset, refSize, other.allocSize, core.ErrOverrun)
	}

	bo.FreeBufferObject()
	bo.driver = other.driver
	bo.size = refSize
	// the aligned tail never reaches past the parent
	bo.allocSize = min(math.Align(refSize, Alignment()), other.allocSize-refOffset)
	bo.usage = other.usage
	bo.native = other.native
	bo.persistent = other.persistent
	bo.offset = other.offset + refOffset
	bo.owns = false
	return nil
}

func (bo *bufferObject) clearWithoutFreeing() {
	bo.size = 0
	bo.allocSize = 0
	bo.offset = 0
	bo.owns = true
	bo.native = nil
	bo.persistent = nil
	bo.mapped = nil
	bo.isMapped = false
}

func (bo *bufferObject) Size() int                   { return bo.size }
func (bo *bufferObject) AllocedSize() int            { return bo.allocSize }
func (bo *bufferObject) Usage() metadata.BufferUsage { return bo.usage }
func (bo *bufferObject) OwnsBuffer() bool            { return bo.owns }
func (bo *bufferObject) Offset() int                 { return bo.offset }
func (bo *bufferObject) IsMapped() bool              { return bo.isMapped }
func (bo *bufferObject) IsAllocated() bool           { return bo.native != nil }
func (bo *bufferObject) Native() metadata.NativeBuffer {
	return bo.native
}

type VertexBuffer struct {
	bufferObject
}

func NewVertexBuffer(driver metadata.BufferDriver) *VertexBuffer {
	return &VertexBuffer{newBufferObject(driver, metadata.BUFFER_KIND_VERTEX)}
}

// Reference turns vb into a view of size bytes at offset inside other.
func (vb *VertexBuffer) Reference(other *VertexBuffer, offset, size int) error {
	return vb.reference(&other.bufferObject, offset, size)
}

type IndexBuffer struct {
	bufferObject
}

func NewIndexBuffer(driver metadata.BufferDriver) *IndexBuffer {
	return &IndexBuffer{newBufferObject(driver, metadata.BUFFER_KIND_INDEX)}
}

func (ib *IndexBuffer) Reference(other *IndexBuffer, offset, size int) error {
	return ib.reference(&other.bufferObject, offset, size)
}

type UniformBuffer struct {
	bufferObject
}

func NewUniformBuffer(driver metadata.BufferDriver) *UniformBuffer {
	return &UniformBuffer{newBufferObject(driver, metadata.BUFFER_KIND_UNIFORM)}
}

func (ub *UniformBuffer) Reference(other *UniformBuffer, offset, size int) error {
	return ub.reference(&other.bufferObject, offset, size)
}

// MapBuffer only supports write mappings for uniform data.
func (ub *UniformBuffer) MapBuffer(mode metadata.MapMode) ([]byte, error) {
	if mode != metadata.MAP_WRITE {
		return nil, fmt.Errorf("uniform buffer map mode %d: %w", mode, core.ErrInvalidMapMode)
	}
	return ub.bufferObject.MapBuffer(mode)
}
