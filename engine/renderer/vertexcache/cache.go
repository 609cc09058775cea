package vertexcache

import (
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/math"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/buffer"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

type Handle = metadata.CacheHandle

const NoHandle = metadata.NoHandle

const VERTEX_CACHE_ALIGN = 16

type cacheType int

const (
	CACHE_INDEX cacheType = iota
	CACHE_VERTEX
	CACHE_JOINT
)

func (ct cacheType) String() string {
	switch ct {
	case CACHE_INDEX:
		return "index"
	case CACHE_VERTEX:
		return "vertex"
	case CACHE_JOINT:
		return "joint"
	}
	return "unknown"
}

/**
 * @brief Gates reuse of a frame slot until the GPU finished reading it.
 */
type SlotGate interface {
	WaitSlot(slot int) error
}

type Options struct {
	FrameData            int
	VertexMemoryPerFrame int
	IndexMemoryPerFrame  int
	JointMemoryPerFrame  int
	StaticVertexMemory   int
	StaticIndexMemory    int
}

func OptionsFromConfig(cfg *core.RendererConfig) Options {
	return Options{
		FrameData:            cfg.FrameData,
		VertexMemoryPerFrame: cfg.VertexMemoryPerFrame,
		IndexMemoryPerFrame:  cfg.IndexMemoryPerFrame,
		JointMemoryPerFrame:  cfg.JointMemoryPerFrame,
		StaticVertexMemory:   cfg.StaticVertexMemory,
		StaticIndexMemory:    cfg.StaticIndexMemory,
	}
}

// A set of buffers bump-allocated together: one frame slot or the static data.
type geoBufferSet struct {
	indexBuffer  *buffer.IndexBuffer
	vertexBuffer *buffer.VertexBuffer
	jointBuffer  *buffer.UniformBuffer

	mappedVertexBase []byte
	mappedIndexBase  []byte
	mappedJointBase  []byte

	indexMemUsed  atomic.Int64
	vertexMemUsed atomic.Int64
	jointMemUsed  atomic.Int64
	allocations   atomic.Int64
}

// Usage reports the bytes handed out from one buffer set.
type Usage struct {
	Vertex, Index, Joint int
	Allocations          int
}

/**
 * @brief Per-frame bump allocator for vertex, index and joint data layered over
 * a ring of dynamic buffer sets, plus one static set uploaded once.
 */
type Cache struct {
	driver metadata.BufferDriver
	opts   Options

	currentFrame uint64
	// Slot written by the frontend this frame.
	listNum int
	// Slot read by the backend this frame.
	drawListNum int

	frameData  []*geoBufferSet
	staticData *geoBufferSet

	uniformBufferOffsetAlignment int
	gate                         SlotGate
	warnings                     *core.FrameWarnings
	initialized                  bool
}

func New(driver metadata.BufferDriver, opts Options) *Cache {
	return &Cache{
		driver:   driver,
		opts:     opts,
		warnings: core.NewFrameWarnings(),
	}
}

// SetGate installs the fence gate consulted before a slot is reused.
func (vc *Cache) SetGate(gate SlotGate) {
	vc.gate = gate
}

/**
 * @brief Allocates every frame slot and the static data, then maps the first slot.
 * @param uniformBufferOffsetAlignment The device minimum offset for uniform bindings.
 */
func (vc *Cache) Init(uniformBufferOffsetAlignment int) error {
	if vc.opts.FrameData < 2 || vc.opts.FrameData > 3 {
		return fmt.Errorf("vertex cache frame data %d must be 2 or 3", vc.opts.FrameData)
	}
	for _, n := range []int{vc.opts.VertexMemoryPerFrame, vc.opts.IndexMemoryPerFrame, vc.opts.JointMemoryPerFrame, vc.opts.StaticVertexMemory, vc.opts.StaticIndexMemory} {
		if n < 0 || uint64(n) > metadata.VERTCACHE_OFFSET_MASK+1 {
			return fmt.Errorf("vertex cache buffer of %d bytes exceeds the %s a handle can address",
				n, core.FormatBytes(metadata.VERTCACHE_OFFSET_MASK+1))
		}
	}
	if uniformBufferOffsetAlignment <= 0 {
		uniformBufferOffsetAlignment = VERTEX_CACHE_ALIGN
	}
	vc.uniformBufferOffsetAlignment = uniformBufferOffsetAlignment
	vc.currentFrame = 0
	vc.listNum = 0
	vc.drawListNum = 0

	vc.frameData = make([]*geoBufferSet, vc.opts.FrameData)
	for i := range vc.frameData {
		gbs, err := vc.allocGeoBufferSet(vc.opts.VertexMemoryPerFrame, vc.opts.IndexMemoryPerFrame, vc.opts.JointMemoryPerFrame, metadata.BU_DYNAMIC)
		if err != nil {
			vc.Shutdown()
			return err
		}
		vc.frameData[i] = gbs
	}

	static, err := vc.allocGeoBufferSet(vc.opts.StaticVertexMemory, vc.opts.StaticIndexMemory, 0, metadata.BU_STATIC)
	if err != nil {
		vc.Shutdown()
		return err
	}
	vc.staticData = static

	if err := vc.mapGeoBufferSet(vc.frameData[vc.listNum]); err != nil {
		vc.Shutdown()
		return err
	}
	vc.initialized = true

	core.LogInfo("vertex cache: %d frames of %s vertex / %s index / %s joint, static %s / %s",
		vc.opts.FrameData,
		core.FormatBytes(uint64(vc.opts.VertexMemoryPerFrame)),
		core.FormatBytes(uint64(vc.opts.IndexMemoryPerFrame)),
		core.FormatBytes(uint64(vc.opts.JointMemoryPerFrame)),
		core.FormatBytes(uint64(vc.opts.StaticVertexMemory)),
		core.FormatBytes(uint64(vc.opts.StaticIndexMemory)))
	return nil
}

func (vc *Cache) Shutdown() {
	for _, gbs := range vc.frameData {
		if gbs != nil {
			freeGeoBufferSet(gbs)
		}
	}
	if vc.staticData != nil {
		freeGeoBufferSet(vc.staticData)
	}
	vc.frameData = nil
	vc.staticData = nil
	vc.initialized = false
}

func (vc *Cache) allocGeoBufferSet(vertexBytes, indexBytes, jointBytes int, usage metadata.BufferUsage) (*geoBufferSet, error) {
	gbs := &geoBufferSet{
		vertexBuffer: buffer.NewVertexBuffer(vc.driver),
		indexBuffer:  buffer.NewIndexBuffer(vc.driver),
		jointBuffer:  buffer.NewUniformBuffer(vc.driver),
	}
	if vertexBytes > 0 {
		if err := gbs.vertexBuffer.AllocBufferObject(nil, vertexBytes, usage); err != nil {
			return nil, err
		}
	}
	if indexBytes > 0 {
		if err := gbs.indexBuffer.AllocBufferObject(nil, indexBytes, usage); err != nil {
			gbs.vertexBuffer.FreeBufferObject()
			return nil, err
		}
	}
	if jointBytes > 0 {
		if err := gbs.jointBuffer.AllocBufferObject(nil, jointBytes, usage); err != nil {
			gbs.vertexBuffer.FreeBufferObject()
			gbs.indexBuffer.FreeBufferObject()
			return nil, err
		}
	}
	clearGeoBufferSet(gbs)
	return gbs, nil
}

func freeGeoBufferSet(gbs *geoBufferSet) {
	unmapGeoBufferSet(gbs)
	gbs.vertexBuffer.FreeBufferObject()
	gbs.indexBuffer.FreeBufferObject()
	gbs.jointBuffer.FreeBufferObject()
}

func clearGeoBufferSet(gbs *geoBufferSet) {
	gbs.indexMemUsed.Store(0)
	gbs.vertexMemUsed.Store(0)
	gbs.jointMemUsed.Store(0)
	gbs.allocations.Store(0)
}

func (vc *Cache) mapGeoBufferSet(gbs *geoBufferSet) error {
	var err error
	if gbs.mappedVertexBase == nil && gbs.vertexBuffer.IsAllocated() {
		if gbs.mappedVertexBase, err = gbs.vertexBuffer.MapBuffer(metadata.MAP_WRITE); err != nil {
			return err
		}
	}
	if gbs.mappedIndexBase == nil && gbs.indexBuffer.IsAllocated() {
		if gbs.mappedIndexBase, err = gbs.indexBuffer.MapBuffer(metadata.MAP_WRITE); err != nil {
			return err
		}
	}
	if gbs.mappedJointBase == nil && gbs.jointBuffer.IsAllocated() {
		if gbs.mappedJointBase, err = gbs.jointBuffer.MapBuffer(metadata.MAP_WRITE); err != nil {
			return err
		}
	}
	return nil
}

func unmapGeoBufferSet(gbs *geoBufferSet) {
	if gbs.mappedVertexBase != nil {
		_ = gbs.vertexBuffer.UnmapBuffer()
		gbs.mappedVertexBase = nil
	}
	if gbs.mappedIndexBase != nil {
		_ = gbs.indexBuffer.UnmapBuffer()
		gbs.mappedIndexBase = nil
	}
	if gbs.mappedJointBase != nil {
		_ = gbs.jointBuffer.UnmapBuffer()
		gbs.mappedJointBase = nil
	}
}

/**
 * @brief Hands the slot written this frame to the backend and prepares the
 * next slot for the frontend. Blocks on the gate until the GPU released the
 * next slot, so its mapping is never touched while in flight.
 */
func (vc *Cache) BeginFrame() error {
	if !vc.initialized {
		return fmt.Errorf("vertex cache begin frame: %w", core.ErrNotInitialized)
	}

	unmapGeoBufferSet(vc.frameData[vc.listNum])
	vc.drawListNum = vc.listNum

	vc.currentFrame++
	vc.listNum = int(vc.currentFrame % uint64(len(vc.frameData)))

	if vc.gate != nil {
		if err := vc.gate.WaitSlot(vc.listNum); err != nil {
			return err
		}
	}

	next := vc.frameData[vc.listNum]
	if err := vc.mapGeoBufferSet(next); err != nil {
		return err
	}
	clearGeoBufferSet(next)
	vc.warnings.Reset()
	return nil
}

func (vc *Cache) actuallyAlloc(gbs *geoBufferSet, data []byte, bytes int, ct cacheType) Handle {
	if bytes == 0 {
		return NoHandle
	}

	static := gbs == vc.staticData
	if bytes < 0 || uint64(bytes) > metadata.VERTCACHE_SIZE_MASK {
		vc.warnings.Warn(vc.currentFrame, "oversized-"+ct.String(), "%s cache request of %d bytes exceeds the %s a handle can hold",
			ct, bytes, core.FormatBytes(metadata.VERTCACHE_SIZE_MASK))
		return NoHandle
	}

	var used *atomic.Int64
	var capacity int
	switch ct {
	case CACHE_INDEX:
		used, capacity = &gbs.indexMemUsed, gbs.indexBuffer.Size()
	case CACHE_VERTEX:
		used, capacity = &gbs.vertexMemUsed, gbs.vertexBuffer.Size()
	case CACHE_JOINT:
		used, capacity = &gbs.jointMemUsed, gbs.jointBuffer.Size()
	}

	var offset int64
	for {
		offset = used.Load()
		end := offset + int64(bytes)
		if end > int64(capacity) {
			kind := "frame"
			if static {
				kind = "static"
			}
			site := kind + "-" + ct.String()
			vc.warnings.Warn(vc.currentFrame, site, "out of %s %s cache: %s requested, %s of %s used",
				kind, ct, core.FormatBytes(uint64(bytes)), core.FormatBytes(uint64(offset)), core.FormatBytes(uint64(capacity)))
			return NoHandle
		}
		if used.CompareAndSwap(offset, end) {
			break
		}
	}

	if data != nil {
		var err error
		switch ct {
		case CACHE_INDEX:
			err = gbs.indexBuffer.Update(data, int(offset))
		case CACHE_VERTEX:
			err = gbs.vertexBuffer.Update(data, int(offset))
		case CACHE_JOINT:
			err = gbs.jointBuffer.Update(data, int(offset))
		}
		if err != nil {
			core.LogError("vertex cache %s update: %s", ct, err.Error())
			return NoHandle
		}
	}

	gbs.allocations.Add(1)
	return metadata.NewCacheHandle(static, bytes, int(offset), vc.currentFrame)
}

func sized(data []byte, n int) []byte {
	if data == nil {
		return nil
	}
	if len(data) > n {
		return data[:n]
	}
	return data
}

// AllocVertex reserves num vertices of size bytes in this frame's slot.
func (vc *Cache) AllocVertex(data []byte, num, size int) Handle {
	return vc.actuallyAlloc(vc.frameData[vc.listNum], sized(data, num*size), math.Align(num*size, VERTEX_CACHE_ALIGN), CACHE_VERTEX)
}

func (vc *Cache) AllocIndex(data []byte, num int) Handle {
	n := num * metadata.TRIINDEX_SIZE
	return vc.actuallyAlloc(vc.frameData[vc.listNum], sized(data, n), math.Align(n, VERTEX_CACHE_ALIGN), CACHE_INDEX)
}

// AllocJoint reserves num joint matrices aligned for uniform buffer binding.
func (vc *Cache) AllocJoint(data []byte, num int) Handle {
	n := num * metadata.JOINTMAT_SIZE
	return vc.actuallyAlloc(vc.frameData[vc.listNum], sized(data, n), math.Align(n, vc.uniformBufferOffsetAlignment), CACHE_JOINT)
}

func (vc *Cache) AllocStaticVertex(data []byte, bytes int) Handle {
	if data == nil {
		core.LogError("AllocStaticVertex called with nil data")
		return NoHandle
	}
	return vc.actuallyAlloc(vc.staticData, sized(data, bytes), math.Align(bytes, VERTEX_CACHE_ALIGN), CACHE_VERTEX)
}

func (vc *Cache) AllocStaticIndex(data []byte, bytes int) Handle {
	if data == nil {
		core.LogError("AllocStaticIndex called with nil data")
		return NoHandle
	}
	return vc.actuallyAlloc(vc.staticData, sized(data, bytes), math.Align(bytes, VERTEX_CACHE_ALIGN), CACHE_INDEX)
}

func CacheIsStatic(h Handle) bool {
	return h.IsStatic()
}

func (vc *Cache) CurrentFrame() uint64 {
	return vc.currentFrame
}

// DrawSlot is the slot the backend reads while drawing the previous frame.
func (vc *Cache) DrawSlot() int {
	return vc.drawListNum
}

func (vc *Cache) FrameData() int {
	return len(vc.frameData)
}

/**
 * @brief Reports whether h can still be read: static handles always, dynamic
 * ones during the frame that produced them and the following one.
 */
func (vc *Cache) IsCurrent(h Handle) bool {
	if h.IsStatic() {
		return true
	}
	tag := h.FrameTag()
	return tag == vc.currentFrame&metadata.VERTCACHE_FRAME_MASK ||
		tag == (vc.currentFrame-1)&metadata.VERTCACHE_FRAME_MASK
}

func (vc *Cache) slotFor(h Handle) (*geoBufferSet, error) {
	if h.IsStatic() {
		return vc.staticData, nil
	}
	switch h.FrameTag() {
	case vc.currentFrame & metadata.VERTCACHE_FRAME_MASK:
		return vc.frameData[vc.listNum], nil
	case (vc.currentFrame - 1) & metadata.VERTCACHE_FRAME_MASK:
		return vc.frameData[vc.drawListNum], nil
	}
	return nil, fmt.Errorf("%s at frame %d: %w", h, vc.currentFrame, core.ErrStaleHandle)
}

func (vc *Cache) mapped(h Handle, pick func(*geoBufferSet) []byte) []byte {
	if h.IsStatic() || h.FrameTag() != vc.currentFrame&metadata.VERTCACHE_FRAME_MASK {
		return nil
	}
	base := pick(vc.frameData[vc.listNum])
	if base == nil {
		return nil
	}
	return base[h.Offset() : h.Offset()+h.Size() : h.Offset()+h.Size()]
}

// MappedVertexBuffer returns the writable bytes behind a handle of the current frame.
func (vc *Cache) MappedVertexBuffer(h Handle) []byte {
	return vc.mapped(h, func(g *geoBufferSet) []byte { return g.mappedVertexBase })
}

func (vc *Cache) MappedIndexBuffer(h Handle) []byte {
	return vc.mapped(h, func(g *geoBufferSet) []byte { return g.mappedIndexBase })
}

func (vc *Cache) MappedJointBuffer(h Handle) []byte {
	return vc.mapped(h, func(g *geoBufferSet) []byte { return g.mappedJointBase })
}

/**
 * @brief Resolves h to the whole buffer holding it and the byte offset of the data.
 */
func (vc *Cache) ResolveVertex(h Handle) (*buffer.VertexBuffer, int, error) {
	gbs, err := vc.slotFor(h)
	if err != nil {
		return nil, 0, err
	}
	return gbs.vertexBuffer, h.Offset(), nil
}

func (vc *Cache) ResolveIndex(h Handle) (*buffer.IndexBuffer, int, error) {
	gbs, err := vc.slotFor(h)
	if err != nil {
		return nil, 0, err
	}
	return gbs.indexBuffer, h.Offset(), nil
}

func (vc *Cache) ResolveJoint(h Handle) (*buffer.UniformBuffer, int, error) {
	if h.IsStatic() {
		return nil, 0, fmt.Errorf("%s: joints are never static: %w", h, core.ErrStaleHandle)
	}
	gbs, err := vc.slotFor(h)
	if err != nil {
		return nil, 0, err
	}
	return gbs.jointBuffer, h.Offset(), nil
}

// GetVertexBuffer makes vb a view of exactly the bytes behind h.
func (vc *Cache) GetVertexBuffer(h Handle, vb *buffer.VertexBuffer) error {
	parent, offset, err := vc.ResolveVertex(h)
	if err != nil {
		return err
	}
	return vb.Reference(parent, offset, h.Size())
}

func (vc *Cache) GetIndexBuffer(h Handle, ib *buffer.IndexBuffer) error {
	parent, offset, err := vc.ResolveIndex(h)
	if err != nil {
		return err
	}
	return ib.Reference(parent, offset, h.Size())
}

func (vc *Cache) GetJointBuffer(h Handle, ub *buffer.UniformBuffer) error {
	parent, offset, err := vc.ResolveJoint(h)
	if err != nil {
		return err
	}
	return ub.Reference(parent, offset, h.Size())
}

// FrameUsage reports what the frontend allocated so far in the current slot.
func (vc *Cache) FrameUsage() Usage {
	if !vc.initialized {
		return Usage{}
	}
	return usageOf(vc.frameData[vc.listNum])
}

func (vc *Cache) StaticUsage() Usage {
	if vc.staticData == nil {
		return Usage{}
	}
	return usageOf(vc.staticData)
}

func usageOf(gbs *geoBufferSet) Usage {
	return Usage{
		Vertex:      int(gbs.vertexMemUsed.Load()),
		Index:       int(gbs.indexMemUsed.Load()),
		Joint:       int(gbs.jointMemUsed.Load()),
		Allocations: int(gbs.allocations.Load()),
	}
}
