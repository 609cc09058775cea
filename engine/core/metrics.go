package core

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

const AVG_COUNT uint8 = 30

type MetricsState struct {
	FrameAVGCounter    uint8
	MStimes            [AVG_COUNT]float64
	MSavg              float64
	Frames             int32
	AccumulatedFrameMS float64
	FPS                float64
}

var onceMetrics sync.Once
var metricsState *MetricsState = nil

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = &MetricsState{}
	})
	return nil
}

func MetricsUpdate(frameElapsed time.Duration) {
	frameMS := float64(frameElapsed.Microseconds()) / 1000.0
	metricsState.MStimes[metricsState.FrameAVGCounter] = frameMS
	if metricsState.FrameAVGCounter == AVG_COUNT-1 {
		metricsState.MSavg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			metricsState.MSavg += metricsState.MStimes[i]
		}
		metricsState.MSavg /= float64(AVG_COUNT)
	}
	metricsState.FrameAVGCounter++
	metricsState.FrameAVGCounter %= AVG_COUNT

	// Calculate Frames per second.
	metricsState.AccumulatedFrameMS += frameMS
	if metricsState.AccumulatedFrameMS > 1000 {
		metricsState.FPS = float64(metricsState.Frames)
		metricsState.AccumulatedFrameMS -= 1000
		metricsState.Frames = 0
	}

	metricsState.Frames++
}

func MetricsFPS() float64 {
	return metricsState.FPS
}

func MetricsFrameTime() float64 {
	return metricsState.MSavg
}

func MetricsFrame() (float64, float64) {
	return metricsState.FPS, metricsState.MSavg
}

/**
 * @brief Per-frame statistics gathered by the render backend. The frontend
 * reads them after the backend finished a frame, so every field is atomic.
 */
type BackendCounters struct {
	Surfaces        atomic.Int64
	Shaders         atomic.Int64
	DrawElements    atomic.Int64
	DrawIndexes     atomic.Int64
	ShadowElements  atomic.Int64
	ShadowIndexes   atomic.Int64
	CopyFrameBuffer atomic.Int64
	DroppedDraws    atomic.Int64
	TotalMicroSec   atomic.Int64
	GPUMicroSec     atomic.Int64
}

type CountersSnapshot struct {
	Surfaces        int64
	Shaders         int64
	DrawElements    int64
	DrawIndexes     int64
	ShadowElements  int64
	ShadowIndexes   int64
	CopyFrameBuffer int64
	DroppedDraws    int64
	TotalMicroSec   int64
	GPUMicroSec     int64
}

func (bc *BackendCounters) Reset() {
	bc.Surfaces.Store(0)
	bc.Shaders.Store(0)
	bc.DrawElements.Store(0)
	bc.DrawIndexes.Store(0)
	bc.ShadowElements.Store(0)
	bc.ShadowIndexes.Store(0)
	bc.CopyFrameBuffer.Store(0)
	bc.DroppedDraws.Store(0)
	bc.TotalMicroSec.Store(0)
	bc.GPUMicroSec.Store(0)
}

func (bc *BackendCounters) Snapshot() CountersSnapshot {
	return CountersSnapshot{
		Surfaces:        bc.Surfaces.Load(),
		Shaders:         bc.Shaders.Load(),
		DrawElements:    bc.DrawElements.Load(),
		DrawIndexes:     bc.DrawIndexes.Load(),
		ShadowElements:  bc.ShadowElements.Load(),
		ShadowIndexes:   bc.ShadowIndexes.Load(),
		CopyFrameBuffer: bc.CopyFrameBuffer.Load(),
		DroppedDraws:    bc.DroppedDraws.Load(),
		TotalMicroSec:   bc.TotalMicroSec.Load(),
		GPUMicroSec:     bc.GPUMicroSec.Load(),
	}
}

func (cs CountersSnapshot) String() string {
	return fmt.Sprintf("views:%s draws:%s tris:%s shdw:%s copies:%d dropped:%d total:%dus",
		humanize.Comma(cs.Surfaces),
		humanize.Comma(cs.DrawElements),
		humanize.Comma(cs.DrawIndexes/3),
		humanize.Comma(cs.ShadowIndexes/3),
		cs.CopyFrameBuffer,
		cs.DroppedDraws,
		cs.TotalMicroSec)
}

// FormatBytes renders a byte count for log lines.
func FormatBytes(n uint64) string {
	return humanize.IBytes(n)
}
