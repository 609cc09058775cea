package backend

import (
	"github.com/spaghettifunk/anima-renderer/engine/containers"
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

/**
 * @brief A Driver whose DestroyBuffer defers the release onto the garbage
 * queue of the frame slot being built. The queue is emptied once that slot's
 * fence signaled.
 */
type garbageDriver struct {
	metadata.Driver

	queues []*containers.RingQueue[metadata.NativeBuffer]
	slot   int
}

func newGarbageDriver(driver metadata.Driver, frameData, queueSize int) *garbageDriver {
	g := &garbageDriver{
		Driver: driver,
		queues: make([]*containers.RingQueue[metadata.NativeBuffer], frameData),
	}
	for i := range g.queues {
		g.queues[i] = containers.NewRingQueue[metadata.NativeBuffer](queueSize)
	}
	return g
}

func (g *garbageDriver) setSlot(slot int) {
	g.slot = slot
}

func (g *garbageDriver) DestroyBuffer(buf metadata.NativeBuffer) {
	q := g.queues[g.slot]
	if q.IsFull() {
		// nothing of this slot can be released yet, drain the device
		core.LogWarn("garbage queue of frame slot %d is full, waiting for the device", g.slot)
		if err := g.Driver.WaitIdle(); err != nil {
			core.LogError("WaitIdle: %s", err)
		}
		g.emptyAll()
	}
	if err := q.Enqueue(buf); err != nil {
		core.LogError("garbage enqueue: %s", err)
		g.Driver.DestroyBuffer(buf)
	}
}

// empty releases everything queued on slot.
func (g *garbageDriver) empty(slot int) int {
	q := g.queues[slot]
	n := 0
	for !q.IsEmpty() {
		buf, err := q.Dequeue()
		if err != nil {
			break
		}
		g.Driver.DestroyBuffer(buf)
		n++
	}
	return n
}

func (g *garbageDriver) emptyAll() {
	for i := range g.queues {
		g.empty(i)
	}
}

func (g *garbageDriver) pending() int {
	n := 0
	for _, q := range g.queues {
		n += q.Len()
	}
	return n
}
