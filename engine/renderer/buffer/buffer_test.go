package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/headless"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

func TestAllocRoundsToAlignment(t *testing.T) {
	drv := headless.New(headless.Options{})
	vb := NewVertexBuffer(drv)

	require.NoError(t, vb.AllocBufferObject(nil, 100, metadata.BU_STATIC))
	assert.Equal(t, 100, vb.Size())
	assert.Equal(t, 112, vb.AllocedSize())
	assert.True(t, vb.OwnsBuffer())
	assert.Len(t, vb.Native().(*headless.Buffer).Data, 112)

	vb.FreeBufferObject()
	assert.False(t, vb.IsAllocated())
	assert.Equal(t, 0, drv.LiveBuffers())
}

func TestAllocRejectsBadSize(t *testing.T) {
	drv := headless.New(headless.Options{})
	ib := NewIndexBuffer(drv)
	err := ib.AllocBufferObject(nil, 0, metadata.BU_DYNAMIC)
	assert.ErrorIs(t, err, core.ErrAllocation)
	assert.Equal(t, 0, drv.Calls("CreateBuffer"))
}

func TestAllocFailureSeverity(t *testing.T) {
	drv := headless.New(headless.Options{
		FailCreateBuffer: func(metadata.BufferKind, int, metadata.BufferUsage) bool { return true },
	})

	static := NewVertexBuffer(drv)
	err := static.AllocBufferObject(nil, 64, metadata.BU_STATIC)
	assert.ErrorIs(t, err, core.ErrAllocation)
	assert.True(t, core.IsFatal(err), "static geometry is required to render")

	dynamic := NewVertexBuffer(drv)
	err = dynamic.AllocBufferObject(nil, 64, metadata.BU_DYNAMIC)
	assert.ErrorIs(t, err, core.ErrAllocation)
	assert.False(t, core.IsFatal(err), "dynamic data degrades")
	assert.False(t, dynamic.IsAllocated())
}

func TestDynamicUpdateReadBack(t *testing.T) {
	drv := headless.New(headless.Options{})
	vb := NewVertexBuffer(drv)
	require.NoError(t, vb.AllocBufferObject(nil, 64, metadata.BU_DYNAMIC))

	data := []byte("0123456789abcdefghijklmnopqrstu")
	require.NoError(t, vb.Update(data, 16))
	assert.Equal(t, 0, drv.Calls("UploadBuffer"), "dynamic writes go through the persistent mapping")

	mem, err := vb.MapBuffer(metadata.MAP_READ)
	require.NoError(t, err)
	assert.Equal(t, data, mem[16:16+len(data)])
	require.NoError(t, vb.UnmapBuffer())
	assert.Equal(t, 1, drv.Calls("MapBuffer"), "only the persistent map reaches the driver")
}

func TestStaticUpdateUploads(t *testing.T) {
	drv := headless.New(headless.Options{})
	parent := NewIndexBuffer(drv)
	require.NoError(t, parent.AllocBufferObject(nil, 256, metadata.BU_STATIC))

	view := NewIndexBuffer(drv)
	require.NoError(t, view.Reference(parent, 32, 64))
	require.NoError(t, view.Update([]byte{1, 2, 3, 4}, 8))

	native := parent.Native().(*headless.Buffer)
	assert.Equal(t, []byte{1, 2, 3, 4}, native.Data[40:44], "upload lands at view offset plus update offset")
	assert.Equal(t, 1, drv.Calls("UploadBuffer"))
}

func TestUpdateOverrun(t *testing.T) {
	drv := headless.New(headless.Options{})
	vb := NewVertexBuffer(drv)
	assert.ErrorIs(t, vb.Update([]byte{1}, 0), core.ErrNotAllocated)

	require.NoError(t, vb.AllocBufferObject(nil, 16, metadata.BU_DYNAMIC))
	assert.ErrorIs(t, vb.Update(make([]byte, 17), 0), core.ErrOverrun)
	assert.ErrorIs(t, vb.Update(make([]byte, 8), 12), core.ErrOverrun)
	assert.NoError(t, vb.Update(make([]byte, 8), 8))
}

func TestUpdateStopsAtRequestedSize(t *testing.T) {
	drv := headless.New(headless.Options{})
	vb := NewVertexBuffer(drv)
	require.NoError(t, vb.AllocBufferObject(nil, 100, metadata.BU_STATIC))
	require.Equal(t, 112, vb.AllocedSize())

	assert.ErrorIs(t, vb.Update(make([]byte, 8), 96), core.ErrOverrun, "alignment padding is not writable")
	assert.ErrorIs(t, vb.Update(make([]byte, 101), 0), core.ErrOverrun)
	assert.NoError(t, vb.Update(make([]byte, 4), 96))
	assert.Equal(t, 1, drv.Calls("UploadBuffer"))
}

func TestSingleOutstandingMapping(t *testing.T) {
	drv := headless.New(headless.Options{})
	vb := NewVertexBuffer(drv)
	require.NoError(t, vb.AllocBufferObject(nil, 32, metadata.BU_STATIC))

	_, err := vb.MapBuffer(metadata.MAP_WRITE)
	require.NoError(t, err)
	_, err = vb.MapBuffer(metadata.MAP_WRITE)
	assert.ErrorIs(t, err, core.ErrAlreadyMapped)

	require.NoError(t, vb.UnmapBuffer())
	assert.ErrorIs(t, vb.UnmapBuffer(), core.ErrNotMapped)
}

func TestUniformBufferWriteOnly(t *testing.T) {
	drv := headless.New(headless.Options{})
	ub := NewUniformBuffer(drv)
	require.NoError(t, ub.AllocBufferObject(nil, 64, metadata.BU_DYNAMIC))

	_, err := ub.MapBuffer(metadata.MAP_READ)
	assert.ErrorIs(t, err, core.ErrInvalidMapMode)
	mem, err := ub.MapBuffer(metadata.MAP_WRITE)
	require.NoError(t, err)
	assert.Len(t, mem, 64)
}

func TestViewFreeNeverReachesDriver(t *testing.T) {
	drv := headless.New(headless.Options{})
	parent := NewVertexBuffer(drv)
	require.NoError(t, parent.AllocBufferObject(nil, 1024, metadata.BU_DYNAMIC))

	view := NewVertexBuffer(drv)
	require.NoError(t, view.Reference(parent, 64, 128))
	assert.False(t, view.OwnsBuffer())
	assert.Equal(t, 64, view.Offset())

	_, err := view.MapBuffer(metadata.MAP_WRITE)
	require.NoError(t, err)

	view.FreeBufferObject()
	view.FreeBufferObject()
	assert.Equal(t, 0, drv.Calls("DestroyBuffer"))
	assert.Equal(t, 0, drv.Calls("UnmapBuffer"))
	assert.False(t, view.IsAllocated())
	assert.True(t, parent.IsAllocated())

	parent.FreeBufferObject()
	parent.FreeBufferObject()
	assert.Equal(t, 1, drv.Calls("DestroyBuffer"))
	assert.Equal(t, 0, drv.Calls("DoubleFree"))
}

func TestReferenceBounds(t *testing.T) {
	drv := headless.New(headless.Options{})
	parent := NewVertexBuffer(drv)
	require.NoError(t, parent.AllocBufferObject(nil, 64, metadata.BU_STATIC))

	view := NewVertexBuffer(drv)
	assert.ErrorIs(t, view.Reference(parent, 32, 64), core.ErrOverrun)
	assert.ErrorIs(t, view.Reference(NewVertexBuffer(drv), 0, 16), core.ErrNotAllocated)
}

func TestSetAlignment(t *testing.T) {
	assert.Error(t, SetAlignment(24))
	require.NoError(t, SetAlignment(64))
	defer func() { require.NoError(t, SetAlignment(core.DEFAULT_BUFFER_ALIGNMENT)) }()

	drv := headless.New(headless.Options{})
	vb := NewVertexBuffer(drv)
	require.NoError(t, vb.AllocBufferObject(nil, 65, metadata.BU_STATIC))
	assert.Equal(t, 128, vb.AllocedSize())
}

func TestReferenceTailStaysInsideParent(t *testing.T) {
	drv := headless.New(headless.Options{})
	parent := NewVertexBuffer(drv)
	require.NoError(t, parent.AllocBufferObject(nil, 64, metadata.BU_DYNAMIC))

	view := NewVertexBuffer(drv)
	require.NoError(t, view.Reference(parent, 48, 10))
	assert.Equal(t, 10, view.Size())
	assert.Equal(t, 16, view.AllocedSize())

	require.NoError(t, view.Reference(parent, 56, 8))
	assert.Equal(t, 8, view.AllocedSize(), "aligned size is clipped to the parent")

	mem, err := view.MapBuffer(metadata.MAP_WRITE)
	require.NoError(t, err)
	assert.Len(t, mem, 8)
	assert.Equal(t, 8, cap(mem))
	require.NoError(t, view.UnmapBuffer())
}
