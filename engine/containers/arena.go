package containers

const DEFAULT_ARENA_BLOCK = 256

// Arena hands out zeroed *T from fixed-size blocks and frees them all at once with Reset.
// Pointers stay valid until the next Reset since blocks are never reallocated.
type Arena[T any] struct {
	blocks    [][]T
	blockSize int
	block     int
	next      int
	allocated int
}

func NewArena[T any](blockSize int) *Arena[T] {
	if blockSize <= 0 {
		blockSize = DEFAULT_ARENA_BLOCK
	}
	return &Arena[T]{
		blocks:    [][]T{make([]T, blockSize)},
		blockSize: blockSize,
	}
}

func (a *Arena[T]) Alloc() *T {
	if a.next == a.blockSize {
		a.block++
		a.next = 0
		if a.block == len(a.blocks) {
			a.blocks = append(a.blocks, make([]T, a.blockSize))
		}
	}
	p := &a.blocks[a.block][a.next]
	var zero T
	*p = zero
	a.next++
	a.allocated++
	return p
}

// Len is the number of live allocations since the last Reset.
func (a *Arena[T]) Len() int {
	return a.allocated
}

// Blocks is the number of blocks retained across resets.
func (a *Arena[T]) Blocks() int {
	return len(a.blocks)
}

// Reset reclaims every allocation. Callers must not use earlier pointers afterwards.
func (a *Arena[T]) Reset() {
	a.block = 0
	a.next = 0
	a.allocated = 0
}

// SliceArena bump-allocates contiguous runs of T, used for per-frame register and matrix storage.
type SliceArena[T any] struct {
	buf  []T
	used int
	// overflow keeps runs that did not fit so they live until Reset.
	overflow [][]T
}

func NewSliceArena[T any](capacity int) *SliceArena[T] {
	return &SliceArena[T]{buf: make([]T, capacity)}
}

// Alloc returns a zeroed slice of n elements. It never fails; runs that do not
// fit in the main buffer are allocated on the side and the buffer grows on Reset.
func (sa *SliceArena[T]) Alloc(n int) []T {
	if n <= 0 {
		return nil
	}
	if sa.used+n > len(sa.buf) {
		s := make([]T, n)
		sa.overflow = append(sa.overflow, s)
		return s
	}
	s := sa.buf[sa.used : sa.used+n : sa.used+n]
	clear(s)
	sa.used += n
	return s
}

func (sa *SliceArena[T]) Used() int {
	return sa.used
}

func (sa *SliceArena[T]) Reset() {
	if len(sa.overflow) > 0 {
		extra := 0
		for _, o := range sa.overflow {
			extra += len(o)
		}
		sa.buf = make([]T, len(sa.buf)+extra)
		sa.overflow = nil
	}
	sa.used = 0
}
