/*
Testbed application driving the renderer: GUI text, panels and a
render-to-image capture every frame.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/janpfeifer/must"

	"github.com/spaghettifunk/anima-renderer/engine"
	"github.com/spaghettifunk/anima-renderer/testbed"
)

var (
	flagConfig = flag.String("config", "render.toml", "TOML render config")
	flagFont   = flag.String("font", "assets/fonts/UbuntuMono-21.fnt", "AngelCode .fnt bitmap font")
	flagFrames = flag.Uint64("frames", 0, "stop after this many frames, 0 runs until the window closes")
)

func main() {
	flag.Parse()

	tb := testbed.NewTestGame(*flagConfig, *flagFont)
	tb.ApplicationConfig.MaxFrames = *flagFrames

	e := must.M1(engine.New(tb.Game))
	must.M(e.Initialize())

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		<-sigCh
		e.Stop()
	}()

	runErr := e.Run()
	must.M(e.Shutdown())
	must.M(runErr)
}
