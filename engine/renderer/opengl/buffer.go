package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

/**
 * @brief A GL buffer object. Dynamic buffers carry a CPU copy that stands in
 * for a persistent mapping.
 */
type Buffer struct {
	ID    uint32
	Size  int
	Kind  metadata.BufferKind
	Usage metadata.BufferUsage

	shadow []byte
}

// Element array bindings are VAO state, so every upload goes through the copy target.
func (b *Buffer) bind() {
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, b.ID)
}

func (d *Driver) CreateBuffer(kind metadata.BufferKind, size int, usage metadata.BufferUsage) (metadata.NativeBuffer, error) {
	b := &Buffer{Size: size, Kind: kind, Usage: usage}
	gl.GenBuffers(1, &b.ID)
	if b.ID == 0 {
		return nil, fmt.Errorf("glGenBuffers: no buffer name for %s buffer", kind)
	}
	hint := uint32(gl.STATIC_DRAW)
	if usage == metadata.BU_DYNAMIC {
		hint = gl.STREAM_DRAW
		b.shadow = make([]byte, size)
		d.dynamic[b] = struct{}{}
	}
	b.bind()
	gl.BufferData(gl.COPY_WRITE_BUFFER, size, nil, hint)
	if code := gl.GetError(); code == gl.OUT_OF_MEMORY {
		gl.DeleteBuffers(1, &b.ID)
		delete(d.dynamic, b)
		return nil, fmt.Errorf("glBufferData: out of memory for %s", core.FormatBytes(uint64(size)))
	}
	return b, nil
}

func asBuffer(buf metadata.NativeBuffer, site string) (*Buffer, error) {
	b, ok := buf.(*Buffer)
	if !ok {
		return nil, fmt.Errorf("%s: %T is not an opengl buffer", site, buf)
	}
	return b, nil
}

func (d *Driver) DestroyBuffer(buf metadata.NativeBuffer) {
	b, err := asBuffer(buf, "DestroyBuffer")
	if err != nil {
		core.LogError(err.Error())
		return
	}
	if b.ID != 0 {
		gl.DeleteBuffers(1, &b.ID)
		b.ID = 0
	}
	b.shadow = nil
	delete(d.dynamic, b)
}

func (d *Driver) MapBuffer(buf metadata.NativeBuffer, mode metadata.MapMode) ([]byte, error) {
	b, err := asBuffer(buf, "MapBuffer")
	if err != nil {
		return nil, err
	}
	if b.shadow == nil {
		return nil, fmt.Errorf("MapBuffer: static %s buffer cannot be mapped", b.Kind)
	}
	return b.shadow, nil
}

func (d *Driver) UnmapBuffer(buf metadata.NativeBuffer) error {
	_, err := asBuffer(buf, "UnmapBuffer")
	return err
}

func (d *Driver) UploadBuffer(buf metadata.NativeBuffer, offset int, data []byte) error {
	b, err := asBuffer(buf, "UploadBuffer")
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(data) > b.Size {
		return fmt.Errorf("UploadBuffer: %d+%d past buffer end %d", offset, len(data), b.Size)
	}
	if len(data) == 0 {
		return nil
	}
	if b.shadow != nil {
		copy(b.shadow[offset:], data)
		return nil
	}
	b.bind()
	gl.BufferSubData(gl.COPY_WRITE_BUFFER, offset, len(data), gl.Ptr(data))
	return nil
}

// flush uploads the first n bytes of the CPU copy.
func (b *Buffer) flush(n int) {
	if b.ID == 0 || b.shadow == nil || n <= 0 {
		return
	}
	n = min(n, len(b.shadow))
	b.bind()
	gl.BufferSubData(gl.COPY_WRITE_BUFFER, 0, n, gl.Ptr(b.shadow[:n]))
}
