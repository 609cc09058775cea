package core

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

const (
	DEFAULT_BUFFER_ALIGNMENT        = 16
	DEFAULT_FRAME_DATA              = 2
	DEFAULT_VERTEX_MEMORY_PER_FRAME = 31 * 1024 * 1024
	DEFAULT_INDEX_MEMORY_PER_FRAME  = 31 * 1024 * 1024
	DEFAULT_JOINT_MEMORY_PER_FRAME  = 256 * 1024
	DEFAULT_STATIC_VERTEX_MEMORY    = 31 * 1024 * 1024
	DEFAULT_STATIC_INDEX_MEMORY     = 31 * 1024 * 1024
	DEFAULT_GUI_MAX_VERTS           = 16384 * 4
	DEFAULT_GUI_MAX_INDEXES         = 16384 * 6
	DEFAULT_GARBAGE_QUEUE_SIZE      = 1024

	// Cache handles carry 25 bit byte offsets.
	MAX_CACHE_MEMORY = 1 << 25
)

type DriverKind string

const (
	DRIVER_VULKAN   DriverKind = "vulkan"
	DRIVER_OPENGL   DriverKind = "opengl"
	DRIVER_HEADLESS DriverKind = "headless"
)

// DisplayConfig carries the parameters the platform layer hands to the backend.
type DisplayConfig struct {
	X            int  `toml:"x"`
	Y            int  `toml:"y"`
	Width        int  `toml:"width"`
	Height       int  `toml:"height"`
	FullScreen   bool `toml:"fullscreen"`
	DisplayHz    int  `toml:"display_hz"`
	MultiSamples int  `toml:"multi_samples"`
	SwapInterval int  `toml:"swap_interval"`
}

type RendererConfig struct {
	Driver               DriverKind `toml:"driver"`
	FrameData            int        `toml:"frame_data"`
	BufferAlignment      int        `toml:"buffer_alignment"`
	VertexMemoryPerFrame int        `toml:"vertex_memory_per_frame"`
	IndexMemoryPerFrame  int        `toml:"index_memory_per_frame"`
	JointMemoryPerFrame  int        `toml:"joint_memory_per_frame"`
	StaticVertexMemory   int        `toml:"static_vertex_memory"`
	StaticIndexMemory    int        `toml:"static_index_memory"`
	GuiMaxVerts          int        `toml:"gui_max_verts"`
	GuiMaxIndexes        int        `toml:"gui_max_indexes"`
	GarbageQueueSize     int        `toml:"garbage_queue_size"`
	ShaderPath           string     `toml:"shader_path"`
	Debug                bool       `toml:"debug"`
}

type LogConfig struct {
	Level LogLevel `toml:"level"`
}

type RenderConfig struct {
	Display  DisplayConfig  `toml:"display"`
	Renderer RendererConfig `toml:"renderer"`
	Log      LogConfig      `toml:"log"`
}

func DefaultRenderConfig() *RenderConfig {
	return &RenderConfig{
		Display: DisplayConfig{
			Width:        1280,
			Height:       720,
			DisplayHz:    60,
			MultiSamples: 1,
			SwapInterval: 1,
		},
		Renderer: RendererConfig{
			Driver:               DRIVER_VULKAN,
			FrameData:            DEFAULT_FRAME_DATA,
			BufferAlignment:      DEFAULT_BUFFER_ALIGNMENT,
			VertexMemoryPerFrame: DEFAULT_VERTEX_MEMORY_PER_FRAME,
			IndexMemoryPerFrame:  DEFAULT_INDEX_MEMORY_PER_FRAME,
			JointMemoryPerFrame:  DEFAULT_JOINT_MEMORY_PER_FRAME,
			StaticVertexMemory:   DEFAULT_STATIC_VERTEX_MEMORY,
			StaticIndexMemory:    DEFAULT_STATIC_INDEX_MEMORY,
			GuiMaxVerts:          DEFAULT_GUI_MAX_VERTS,
			GuiMaxIndexes:        DEFAULT_GUI_MAX_INDEXES,
			GarbageQueueSize:     DEFAULT_GARBAGE_QUEUE_SIZE,
			ShaderPath:           "shaders",
		},
		Log: LogConfig{
			Level: LOG_LEVEL_INFO,
		},
	}
}

// LoadConfig reads a TOML file on top of the defaults. A missing file yields the defaults.
func LoadConfig(path string) (*RenderConfig, error) {
	cfg := DefaultRenderConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			LogWarn("render config '%s' not found, using defaults", path)
			return cfg, nil
		}
		return nil, err
	}
	if err := ParseConfig(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig decodes TOML into cfg, keeping the values of keys the document omits.
func ParseConfig(data []byte, cfg *RenderConfig) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		err = fmt.Errorf("failed to decode render config: %w", err)
		LogError(err.Error())
		return err
	}
	return cfg.Validate()
}

func (c *RenderConfig) Validate() error {
	if c.Renderer.FrameData != 2 && c.Renderer.FrameData != 3 {
		return fmt.Errorf("renderer.frame_data must be 2 or 3, got %d", c.Renderer.FrameData)
	}
	a := c.Renderer.BufferAlignment
	if a <= 0 || a&(a-1) != 0 {
		return fmt.Errorf("renderer.buffer_alignment must be a power of two, got %d", a)
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fmt.Errorf("display size must be positive, got %dx%d", c.Display.Width, c.Display.Height)
	}
	if c.Display.MultiSamples < 1 {
		c.Display.MultiSamples = 1
	}
	switch c.Renderer.Driver {
	case DRIVER_VULKAN, DRIVER_OPENGL, DRIVER_HEADLESS:
	default:
		return fmt.Errorf("unknown renderer.driver '%s'", c.Renderer.Driver)
	}
	if c.Renderer.GuiMaxVerts <= 0 || c.Renderer.GuiMaxIndexes <= 0 {
		return fmt.Errorf("gui capacities must be positive")
	}
	// gui indexes are 16 bit
	if c.Renderer.GuiMaxVerts > 1<<16 {
		return fmt.Errorf("renderer.gui_max_verts must be at most %d, got %d", 1<<16, c.Renderer.GuiMaxVerts)
	}
	memory := []struct {
		key   string
		value int
	}{
		{"vertex_memory_per_frame", c.Renderer.VertexMemoryPerFrame},
		{"index_memory_per_frame", c.Renderer.IndexMemoryPerFrame},
		{"joint_memory_per_frame", c.Renderer.JointMemoryPerFrame},
		{"static_vertex_memory", c.Renderer.StaticVertexMemory},
		{"static_index_memory", c.Renderer.StaticIndexMemory},
	}
	for _, m := range memory {
		if m.value < 0 || m.value > MAX_CACHE_MEMORY {
			return fmt.Errorf("renderer.%s must be between 0 and %d, got %d", m.key, MAX_CACHE_MEMORY, m.value)
		}
	}
	if c.Renderer.GarbageQueueSize <= 0 {
		c.Renderer.GarbageQueueSize = DEFAULT_GARBAGE_QUEUE_SIZE
	}
	return nil
}

// Marshal renders the config back to TOML, used to write a default file.
func (c *RenderConfig) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
