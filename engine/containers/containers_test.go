package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueWrapsAround(t *testing.T) {
	rq := NewRingQueue[int](3)
	require.NoError(t, rq.Enqueue(1))
	require.NoError(t, rq.Enqueue(2))
	require.NoError(t, rq.Enqueue(3))
	assert.ErrorIs(t, rq.Enqueue(4), ErrQueueFull)

	v, err := rq.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, rq.Enqueue(4))
	for _, want := range []int{2, 3, 4} {
		got, err := rq.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err = rq.Peek()
	assert.ErrorIs(t, err, ErrQueueEmpty)
	assert.True(t, rq.IsEmpty())
}

func TestArenaResetReusesBlocks(t *testing.T) {
	type item struct{ a, b int }
	ar := NewArena[item](4)

	ptrs := make([]*item, 0, 10)
	for i := 0; i < 10; i++ {
		p := ar.Alloc()
		p.a = i
		ptrs = append(ptrs, p)
	}
	assert.Equal(t, 10, ar.Len())
	assert.Equal(t, 3, ar.Blocks())
	for i, p := range ptrs {
		assert.Equal(t, i, p.a, "earlier pointers stay valid while allocating")
	}

	ar.Reset()
	assert.Equal(t, 0, ar.Len())
	p := ar.Alloc()
	assert.Equal(t, item{}, *p, "allocations are zeroed after reset")
	assert.Equal(t, 3, ar.Blocks())
}

func TestSliceArenaOverflowGrowsOnReset(t *testing.T) {
	sa := NewSliceArena[float32](8)
	a := sa.Alloc(6)
	a[0] = 1
	b := sa.Alloc(4)
	assert.Len(t, b, 4)
	assert.Equal(t, 6, sa.Used())

	sa.Reset()
	c := sa.Alloc(12)
	assert.Len(t, c, 12)
	assert.Equal(t, 12, sa.Used(), "buffer grew to fit the overflow")
	assert.Nil(t, sa.Alloc(0))
}
