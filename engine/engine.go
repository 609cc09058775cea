package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/platform"
	"github.com/spaghettifunk/anima-renderer/engine/renderer"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/headless"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/opengl"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/vulkan"
	"github.com/spaghettifunk/anima-renderer/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// Frames between two counter reports in the debug log.
const COUNTER_REPORT_INTERVAL = 300

type Engine struct {
	currentStage Stage
	gameInstance *Game
	cfg          *core.RenderConfig

	platform     *platform.Platform
	driver       metadata.Driver
	renderSystem *renderer.RenderSystem
	jobSystem    *systems.JobSystem
	watcher      *core.ConfigWatcher
	stopWatch    context.CancelFunc

	isRunning   atomic.Bool
	isSuspended bool
	width       uint32
	height      uint32
	clock       *core.Clock
	lastTime    time.Duration
	frames      uint64
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, fmt.Errorf("engine needs a game with an application config")
	}
	cfg, err := core.LoadConfig(g.ApplicationConfig.ConfigPath)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	core.SetLogLevel(cfg.Log.Level)

	e := &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		cfg:          cfg,
		clock:        core.NewClock(),
		width:        uint32(cfg.Display.Width),
		height:       uint32(cfg.Display.Height),
	}
	if cfg.Renderer.Driver != core.DRIVER_HEADLESS {
		e.platform = platform.New(cfg.Renderer.Driver)
	}
	return e, nil
}

func (e *Engine) newDriver() (metadata.Driver, error) {
	switch e.cfg.Renderer.Driver {
	case core.DRIVER_VULKAN:
		return vulkan.New(e.platform, vulkan.Options{
			ShaderPath: e.cfg.Renderer.ShaderPath,
			Debug:      e.cfg.Renderer.Debug,
		}), nil
	case core.DRIVER_OPENGL:
		return opengl.New(e.platform, opengl.Options{
			ShaderPath: e.cfg.Renderer.ShaderPath,
		}), nil
	case core.DRIVER_HEADLESS:
		return headless.New(headless.Options{}), nil
	}
	return nil, fmt.Errorf("unknown render driver '%s'", e.cfg.Renderer.Driver)
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("engine already initialized")
	}
	e.currentStage = EngineStageInitializing
	app := e.gameInstance.ApplicationConfig

	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onQuit)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)

	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	if e.platform != nil {
		if err := e.platform.Startup(app.Name, e.cfg.Display); err != nil {
			return err
		}
	}

	driver, err := e.newDriver()
	if err != nil {
		return err
	}
	e.driver = driver

	e.renderSystem = renderer.New(driver, e.cfg)
	if err := e.renderSystem.Init(); err != nil {
		return err
	}

	workers := app.Workers
	if workers <= 0 {
		workers = 1
	}
	js, err := systems.NewJobSystem(workers, 1)
	if err != nil {
		return err
	}
	e.jobSystem = js

	if app.WatchConfig && app.ConfigPath != "" {
		w, err := core.NewConfigWatcher(app.ConfigPath, e.cfg, nil)
		if err != nil {
			core.LogWarn("config hot reload disabled: %s", err)
		} else {
			ctx, cancel := context.WithCancel(context.Background())
			e.watcher = w
			e.stopWatch = cancel
			go func() {
				if err := w.Run(ctx); err != nil {
					core.LogDebug("config watcher stopped: %s", err)
				}
			}()
		}
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e.renderSystem); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	e.isRunning.Store(true)
	return nil
}

/**
 * @brief Main loop. Each iteration closes the frame the game built, hands the
 * next one to a worker and executes the closed one on this thread.
 */
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine not initialized")
	}
	e.currentStage = EngineStageRunning
	maxFrames := e.gameInstance.ApplicationConfig.MaxFrames

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning.Load() {
		if e.platform != nil {
			e.platform.PumpMessages()
			if e.platform.ShouldClose() {
				break
			}
		}
		if e.isSuspended {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := (currentTime - e.lastTime).Seconds()
		frameStart := time.Now()

		if err := e.frame(delta); err != nil {
			return err
		}

		core.MetricsUpdate(time.Since(frameStart))
		e.lastTime = currentTime
		e.frames++
		if e.frames%COUNTER_REPORT_INTERVAL == 0 {
			core.LogDebug("%.1f fps, %s", core.MetricsFPS(), e.renderSystem.LastCounters())
		}
		if maxFrames > 0 && e.frames >= maxFrames {
			break
		}
	}
	return nil
}

func (e *Engine) frame(delta float64) error {
	cmds, err := e.renderSystem.SwapCommandBuffers()
	if err != nil {
		core.LogError("SwapCommandBuffers: %s", err)
		return err
	}

	done := make(chan error, 1)
	if err := e.jobSystem.Submit(metadata.JobTask{
		InputParams: delta,
		OnStart: func(in any, out chan any) error {
			err := e.gameFrame(in.(float64))
			done <- err
			return err
		},
	}); err != nil {
		return err
	}

	renderErr := e.renderSystem.RenderCommandBuffers(cmds)
	gameErr := <-done

	if renderErr != nil {
		core.LogError("RenderCommandBuffers: %s", renderErr)
		if core.IsFatal(renderErr) {
			return renderErr
		}
	}
	if gameErr != nil {
		core.LogError("Game frame failed, shutting down: %s", gameErr)
		return gameErr
	}
	return nil
}

func (e *Engine) gameFrame(delta float64) error {
	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta); err != nil {
			return err
		}
	}
	if e.gameInstance.FnRender != nil {
		return e.gameInstance.FnRender(e.renderSystem, delta)
	}
	return nil
}

// Stop asks Run to return after the current frame.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageUninitialized || e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	core.EventUnregister(core.EVENT_CODE_APPLICATION_QUIT, e)
	core.EventUnregister(core.EVENT_CODE_RESIZED, e)

	if e.stopWatch != nil {
		e.stopWatch()
	}
	if e.jobSystem != nil {
		if err := e.jobSystem.Shutdown(); err != nil {
			core.LogWarn(err.Error())
		}
	}
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError(err.Error())
		}
	}
	if e.renderSystem != nil {
		if err := e.renderSystem.Shutdown(); err != nil {
			return err
		}
	}
	if e.platform != nil {
		if err := e.platform.Shutdown(); err != nil {
			return err
		}
	}
	core.EventShutdown()
	return nil
}

func (e *Engine) RenderSystem() *renderer.RenderSystem { return e.renderSystem }
func (e *Engine) Frames() uint64                       { return e.frames }

// GetFramebufferSize returns the width and height (in this order) of the window.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onQuit(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
	e.isRunning.Store(false)
	return true
}

func (e *Engine) onResized(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	width, height := data.Data.U32[0], data.Data.U32[1]
	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height
	core.LogDebug("Window resize: %d, %d", width, height)

	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return false
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	// the render system listens too
	return false
}
