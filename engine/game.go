package engine

import (
	"github.com/spaghettifunk/anima-renderer/engine/renderer"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

// Initialize runs on the main thread once the render system is up, so render
// images can be created here.
type Initialize func(rs *renderer.RenderSystem) error
type Update func(deltaTime float64) error

// Render fills the current frame. It runs on a worker while the previous
// frame executes.
type Render func(rs *renderer.RenderSystem, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
