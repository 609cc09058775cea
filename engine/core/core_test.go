package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameWarningsOncePerFrame(t *testing.T) {
	fw := NewFrameWarnings()

	assert.True(t, fw.Warn(1, "alloc", "over capacity"))
	assert.False(t, fw.Warn(1, "alloc", "over capacity"))
	assert.False(t, fw.Warn(1, "alloc", "over capacity"))
	assert.True(t, fw.Warn(1, "stale", "stale handle"), "sites are independent")

	assert.True(t, fw.Warn(2, "alloc", "over capacity"), "a new frame re-arms the site")
	assert.False(t, fw.Warn(2, "alloc", "over capacity"))

	fw.Reset()
	assert.True(t, fw.Warn(2, "alloc", "over capacity"))
}

func TestParseConfigKeepsDefaults(t *testing.T) {
	cfg := DefaultRenderConfig()
	doc := []byte(`
[display]
width = 1920
height = 1080
multi_samples = 4

[renderer]
driver = "headless"
frame_data = 3
`)
	require.NoError(t, ParseConfig(doc, cfg))

	assert.Equal(t, 1920, cfg.Display.Width)
	assert.Equal(t, 4, cfg.Display.MultiSamples)
	assert.Equal(t, DRIVER_HEADLESS, cfg.Renderer.Driver)
	assert.Equal(t, 3, cfg.Renderer.FrameData)
	assert.Equal(t, DEFAULT_BUFFER_ALIGNMENT, cfg.Renderer.BufferAlignment)
	assert.Equal(t, DEFAULT_GUI_MAX_INDEXES, cfg.Renderer.GuiMaxIndexes)
}

func TestParseConfigRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"ring size":     "[renderer]\nframe_data = 4\n",
		"alignment":     "[renderer]\nbuffer_alignment = 24\n",
		"driver":        "[renderer]\ndriver = \"metal\"\n",
		"unknown field": "[renderer]\nframes = 2\n",
		"gui verts":     "[renderer]\ngui_max_verts = 80000\n",
		"vertex memory": "[renderer]\nvertex_memory_per_frame = 33554433\n",
		"static memory": "[renderer]\nstatic_index_memory = 67108864\n",
		"negative":      "[renderer]\njoint_memory_per_frame = -1\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, ParseConfig([]byte(doc), DefaultRenderConfig()))
		})
	}
}

func TestParseConfigAcceptsMaxCacheMemory(t *testing.T) {
	cfg := DefaultRenderConfig()
	require.NoError(t, ParseConfig([]byte("[renderer]\nvertex_memory_per_frame = 33554432\n"), cfg))
	assert.Equal(t, MAX_CACHE_MEMORY, cfg.Renderer.VertexMemoryPerFrame)
}

func TestConfigMarshalRoundTrip(t *testing.T) {
	cfg := DefaultRenderConfig()
	cfg.Display.SwapInterval = 0
	data, err := cfg.Marshal()
	require.NoError(t, err)

	back := DefaultRenderConfig()
	require.NoError(t, ParseConfig(data, back))
	assert.Equal(t, cfg, back)
}

func TestFatalErrors(t *testing.T) {
	err := NewFatalError("vkQueueSubmit", "VK_ERROR_DEVICE_LOST")
	assert.True(t, IsFatal(err))
	assert.Contains(t, err.Error(), "vkQueueSubmit")
	assert.Contains(t, err.Error(), "VK_ERROR_DEVICE_LOST")

	wrapped := WrapFatal(fmt.Errorf("static vertex buffer: %w", ErrAllocation), "vertexcache.Init")
	assert.True(t, IsFatal(wrapped))
	assert.True(t, errors.Is(wrapped, ErrAllocation))

	assert.False(t, IsFatal(ErrOverrun))
	assert.Nil(t, WrapFatal(nil, "noop"))
}

func TestEvents(t *testing.T) {
	defer EventShutdown()

	type listener struct{ calls int }
	a, b := &listener{}, &listener{}

	handler := func(code SystemEventCode, sender, l interface{}, data EventContext) bool {
		l.(*listener).calls++
		return data.Data.U32[0] == 1
	}
	require.True(t, EventRegister(EVENT_CODE_RESIZED, a, handler))
	require.False(t, EventRegister(EVENT_CODE_RESIZED, a, handler), "duplicate listener")
	require.True(t, EventRegister(EVENT_CODE_RESIZED, b, handler))

	ctx := EventContext{}
	ctx.Data.U32[0] = 1
	assert.True(t, EventFire(EVENT_CODE_RESIZED, nil, ctx))
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 0, b.calls, "handled events stop propagating")

	assert.True(t, EventUnregister(EVENT_CODE_RESIZED, a))
	assert.False(t, EventFire(EVENT_CODE_RESIZED, nil, EventContext{}))
	assert.Equal(t, 1, b.calls)
}
