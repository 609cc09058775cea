package metadata

import "fmt"

// Bit layout of a CacheHandle.
const (
	VERTCACHE_STATIC       uint64 = 1
	VERTCACHE_SIZE_SHIFT          = 1
	VERTCACHE_SIZE_MASK    uint64 = 0x7fffff
	VERTCACHE_OFFSET_SHIFT        = 24
	VERTCACHE_OFFSET_MASK  uint64 = 0x1ffffff
	VERTCACHE_FRAME_SHIFT         = 49
	VERTCACHE_FRAME_MASK   uint64 = 0x7fff
)

/**
 * @brief An opaque reference into the frame vertex cache: static flag, byte size,
 * byte offset and the frame it was allocated in.
 */
type CacheHandle uint64

// NoHandle is returned when an allocation is refused.
const NoHandle CacheHandle = 0

func NewCacheHandle(static bool, size, offset int, frame uint64) CacheHandle {
	h := (uint64(size)&VERTCACHE_SIZE_MASK)<<VERTCACHE_SIZE_SHIFT |
		(uint64(offset)&VERTCACHE_OFFSET_MASK)<<VERTCACHE_OFFSET_SHIFT |
		(frame&VERTCACHE_FRAME_MASK)<<VERTCACHE_FRAME_SHIFT
	if static {
		h |= VERTCACHE_STATIC
	}
	return CacheHandle(h)
}

func (h CacheHandle) IsStatic() bool {
	return uint64(h)&VERTCACHE_STATIC != 0
}

func (h CacheHandle) Size() int {
	return int((uint64(h) >> VERTCACHE_SIZE_SHIFT) & VERTCACHE_SIZE_MASK)
}

func (h CacheHandle) Offset() int {
	return int((uint64(h) >> VERTCACHE_OFFSET_SHIFT) & VERTCACHE_OFFSET_MASK)
}

func (h CacheHandle) FrameTag() uint64 {
	return (uint64(h) >> VERTCACHE_FRAME_SHIFT) & VERTCACHE_FRAME_MASK
}

func (h CacheHandle) IsValid() bool {
	return h != NoHandle
}

// WithOffset returns a handle pointing delta bytes further into the same allocation.
func (h CacheHandle) WithOffset(delta int) CacheHandle {
	return h + CacheHandle(uint64(delta)<<VERTCACHE_OFFSET_SHIFT)
}

func (h CacheHandle) String() string {
	if h == NoHandle {
		return "handle(none)"
	}
	kind := "dynamic"
	if h.IsStatic() {
		kind = "static"
	}
	return fmt.Sprintf("handle(%s frame=%d offset=%d size=%d)", kind, h.FrameTag(), h.Offset(), h.Size())
}
