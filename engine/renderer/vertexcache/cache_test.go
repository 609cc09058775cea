package vertexcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/buffer"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/headless"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

func smallOptions() Options {
	return Options{
		FrameData:            2,
		VertexMemoryPerFrame: 1024,
		IndexMemoryPerFrame:  256,
		JointMemoryPerFrame:  1024,
		StaticVertexMemory:   512,
		StaticIndexMemory:    128,
	}
}

func newCache(t *testing.T, opts Options) (*Cache, *headless.Driver) {
	t.Helper()
	drv := headless.New(headless.Options{})
	vc := New(drv, opts)
	require.NoError(t, vc.Init(256))
	t.Cleanup(vc.Shutdown)
	return vc, drv
}

type recordingGate struct {
	slots []int
}

func (g *recordingGate) WaitSlot(slot int) error {
	g.slots = append(g.slots, slot)
	return nil
}

func TestInitRejectsFrameData(t *testing.T) {
	opts := smallOptions()
	opts.FrameData = 1
	vc := New(headless.New(headless.Options{}), opts)
	assert.Error(t, vc.Init(256))
}

func TestInitRejectsUnaddressableCapacity(t *testing.T) {
	opts := smallOptions()
	opts.StaticVertexMemory = int(metadata.VERTCACHE_OFFSET_MASK) + 2
	vc := New(headless.New(headless.Options{}), opts)
	assert.Error(t, vc.Init(256))
	assert.Equal(t, uint64(core.MAX_CACHE_MEMORY), metadata.VERTCACHE_OFFSET_MASK+1, "config limit matches the handle offset field")
}

func TestAllocLargerThanHandleSizeIsRefused(t *testing.T) {
	opts := smallOptions()
	opts.VertexMemoryPerFrame = 10 * 1024 * 1024
	vc, _ := newCache(t, opts)

	// fits the frame but not the handle's size field
	h := vc.AllocVertex(nil, 300000, metadata.DRAWVERT_SIZE)
	assert.Equal(t, NoHandle, h)
	assert.Zero(t, vc.FrameUsage().Vertex, "a refused request does not move the bump pointer")
	assert.False(t, vc.warnings.Warn(vc.CurrentFrame(), "oversized-"+CACHE_VERTEX.String(), "again"))

	largest := int(metadata.VERTCACHE_SIZE_MASK) &^ (VERTEX_CACHE_ALIGN - 1)
	ok := vc.AllocVertex(nil, largest, 1)
	require.True(t, ok.IsValid())
	assert.Equal(t, largest, ok.Size())
	assert.Len(t, vc.MappedVertexBuffer(ok), largest)
}

func TestAllocationsAreDisjointAndIncreasing(t *testing.T) {
	vc, _ := newCache(t, smallOptions())

	var last metadata.CacheHandle
	for i := 0; i < 5; i++ {
		h := vc.AllocVertex(nil, 3, metadata.DRAWVERT_SIZE)
		require.True(t, h.IsValid())
		assert.Equal(t, 96, h.Size())
		if i > 0 {
			assert.Equal(t, last.Offset()+last.Size(), h.Offset())
		}
		last = h
	}
	usage := vc.FrameUsage()
	assert.Equal(t, 5*96, usage.Vertex)
	assert.Equal(t, 5, usage.Allocations)
}

func TestAllocIndexAlignsTo16(t *testing.T) {
	vc, _ := newCache(t, smallOptions())

	a := vc.AllocIndex([]byte{1, 0, 2, 0, 3, 0}, 3)
	b := vc.AllocIndex(nil, 1)
	assert.Equal(t, 16, a.Size())
	assert.Equal(t, 16, b.Offset())

	mem := vc.MappedIndexBuffer(a)
	require.Len(t, mem, 16)
	assert.Equal(t, []byte{1, 0, 2, 0, 3, 0}, mem[:6])
}

func TestAllocJointUsesUniformAlignment(t *testing.T) {
	vc, _ := newCache(t, smallOptions())

	a := vc.AllocJoint(nil, 1)
	b := vc.AllocJoint(nil, 1)
	assert.Equal(t, 256, a.Size())
	assert.Equal(t, 256, b.Offset())
}

func TestOverflowReturnsNoHandleAndKeepsServing(t *testing.T) {
	vc, _ := newCache(t, smallOptions())

	big := vc.AllocIndex(nil, 120)
	require.True(t, big.IsValid())
	assert.Equal(t, NoHandle, vc.AllocIndex(nil, 64))
	assert.Equal(t, NoHandle, vc.AllocIndex(nil, 64))

	small := vc.AllocIndex(nil, 8)
	assert.True(t, small.IsValid(), "a request that still fits is served after an overflow")
	assert.Equal(t, 240, small.Offset())
}

func TestOverflowWarnsOncePerFrame(t *testing.T) {
	vc, _ := newCache(t, smallOptions())

	assert.Equal(t, NoHandle, vc.AllocVertex(nil, 64, metadata.DRAWVERT_SIZE))
	assert.False(t, vc.warnings.Warn(vc.CurrentFrame(), "frame-vertex", "probe"), "site already warned this frame")

	require.NoError(t, vc.BeginFrame())
	assert.True(t, vc.warnings.Warn(vc.CurrentFrame(), "frame-vertex", "probe"), "a new frame re-arms the site")
}

func TestHandleFreshnessWindow(t *testing.T) {
	vc, _ := newCache(t, smallOptions())

	h := vc.AllocVertex(nil, 1, metadata.DRAWVERT_SIZE)
	assert.True(t, vc.IsCurrent(h))

	require.NoError(t, vc.BeginFrame())
	assert.True(t, vc.IsCurrent(h), "the backend reads last frame's data")
	_, _, err := vc.ResolveVertex(h)
	assert.NoError(t, err)

	require.NoError(t, vc.BeginFrame())
	assert.False(t, vc.IsCurrent(h))
	_, _, err = vc.ResolveVertex(h)
	assert.ErrorIs(t, err, core.ErrStaleHandle)
}

func TestResolvePicksProducingSlot(t *testing.T) {
	vc, _ := newCache(t, smallOptions())

	prev := vc.AllocVertex(nil, 1, metadata.DRAWVERT_SIZE)
	require.NoError(t, vc.BeginFrame())
	cur := vc.AllocVertex(nil, 1, metadata.DRAWVERT_SIZE)

	prevBuf, _, err := vc.ResolveVertex(prev)
	require.NoError(t, err)
	curBuf, _, err := vc.ResolveVertex(cur)
	require.NoError(t, err)
	assert.NotSame(t, prevBuf, curBuf)
	assert.Equal(t, prev.Offset(), cur.Offset(), "each slot restarts at zero")
}

func TestStaticHandlesAreAlwaysCurrent(t *testing.T) {
	vc, drv := newCache(t, smallOptions())

	data := make([]byte, 40)
	for i := range data {
		data[i] = byte(i)
	}
	h := vc.AllocStaticVertex(data, len(data))
	require.True(t, h.IsValid())
	assert.True(t, CacheIsStatic(h))
	assert.Equal(t, 48, h.Size())
	assert.Nil(t, vc.MappedVertexBuffer(h), "static data is not CPU mapped")
	assert.Equal(t, 1, drv.Calls("UploadBuffer"))

	for i := 0; i < 5; i++ {
		require.NoError(t, vc.BeginFrame())
	}
	assert.True(t, vc.IsCurrent(h))

	view := buffer.NewVertexBuffer(drv)
	require.NoError(t, vc.GetVertexBuffer(h, view))
	assert.Equal(t, 48, view.Size())
	assert.False(t, view.OwnsBuffer())
	native := view.Native().(*headless.Buffer)
	assert.Equal(t, data, native.Data[view.Offset():view.Offset()+40])

	assert.Equal(t, NoHandle, vc.AllocStaticIndex(nil, 16))
}

func TestMappedBufferOnlyForCurrentFrame(t *testing.T) {
	vc, _ := newCache(t, smallOptions())

	h := vc.AllocVertex(nil, 2, metadata.DRAWVERT_SIZE)
	mem := vc.MappedVertexBuffer(h)
	require.Len(t, mem, 64)
	mem[0] = 0xAB

	require.NoError(t, vc.BeginFrame())
	assert.Nil(t, vc.MappedVertexBuffer(h))

	vb, offset, err := vc.ResolveVertex(h)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), vb.Native().(*headless.Buffer).Data[offset])
}

func TestBeginFrameWaitsOnSlotGate(t *testing.T) {
	opts := smallOptions()
	opts.FrameData = 3
	vc, _ := newCache(t, opts)
	gate := &recordingGate{}
	vc.SetGate(gate)

	for i := 0; i < 4; i++ {
		require.NoError(t, vc.BeginFrame())
	}
	assert.Equal(t, []int{1, 2, 0, 1}, gate.slots)
}

func TestShutdownReleasesEverything(t *testing.T) {
	drv := headless.New(headless.Options{})
	vc := New(drv, smallOptions())
	require.NoError(t, vc.Init(256))
	assert.Equal(t, 2*3+2, drv.LiveBuffers())

	vc.Shutdown()
	assert.Equal(t, 0, drv.LiveBuffers())
	assert.Equal(t, 0, drv.Calls("DoubleFree"))
}
