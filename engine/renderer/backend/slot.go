package backend

import (
	"fmt"

	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

type State int

const (
	STATE_UNINITIALIZED State = iota
	STATE_INITIALIZED
	STATE_FRAME_IN_PROGRESS
	STATE_RESIZING
	STATE_SHUTTING_DOWN
)

func (s State) String() string {
	switch s {
	case STATE_UNINITIALIZED:
		return "uninitialized"
	case STATE_INITIALIZED:
		return "initialized"
	case STATE_FRAME_IN_PROGRESS:
		return "frame-in-progress"
	case STATE_RESIZING:
		return "resizing"
	case STATE_SHUTTING_DOWN:
		return "shutting-down"
	}
	return "unknown"
}

var backendTransitions = map[State][]State{
	STATE_UNINITIALIZED:     {STATE_INITIALIZED},
	STATE_INITIALIZED:       {STATE_FRAME_IN_PROGRESS, STATE_RESIZING, STATE_SHUTTING_DOWN},
	STATE_FRAME_IN_PROGRESS: {STATE_INITIALIZED, STATE_SHUTTING_DOWN},
	STATE_RESIZING:          {STATE_INITIALIZED, STATE_SHUTTING_DOWN},
	STATE_SHUTTING_DOWN:     {STATE_UNINITIALIZED},
}

func (b *Backend) transition(to State) error {
	for _, next := range backendTransitions[b.state] {
		if next == to {
			b.state = to
			return nil
		}
	}
	err := fmt.Errorf("render backend %s -> %s: %w", b.state, to, core.ErrInvalidTransition)
	core.LogError(err.Error())
	return err
}

type SlotState int

const (
	SLOT_IDLE SlotState = iota
	SLOT_RECORDING
	SLOT_SUBMITTED
	SLOT_PRESENTED
)

func (s SlotState) String() string {
	switch s {
	case SLOT_IDLE:
		return "idle"
	case SLOT_RECORDING:
		return "recording"
	case SLOT_SUBMITTED:
		return "submitted"
	case SLOT_PRESENTED:
		return "presented"
	}
	return "unknown"
}

var slotTransitions = map[SlotState]SlotState{
	SLOT_IDLE:      SLOT_RECORDING,
	SLOT_RECORDING: SLOT_SUBMITTED,
	SLOT_SUBMITTED: SLOT_PRESENTED,
	SLOT_PRESENTED: SLOT_IDLE,
}

/**
 * @brief The native objects one in-flight frame owns. A slot is only recycled
 * after the fence of its previous submission signaled.
 */
type FrameSlot struct {
	Index          int
	CommandBuffer  metadata.CommandBuffer
	Fence          metadata.Fence
	Acquired       metadata.Semaphore
	RenderComplete metadata.Semaphore

	state SlotState
	// Vertex cache slot the recorded draws read from.
	cacheSlot int
}

func (fs *FrameSlot) State() SlotState {
	return fs.state
}

func (fs *FrameSlot) transition(to SlotState) error {
	if slotTransitions[fs.state] != to {
		return fmt.Errorf("frame slot %d %s -> %s: %w", fs.Index, fs.state, to, core.ErrInvalidTransition)
	}
	fs.state = to
	return nil
}

func (b *Backend) createFrameSlots() error {
	cbs, err := b.driver.CreateCommandBuffers(b.opts.FrameData)
	if err != nil {
		return core.WrapFatal(err, "CreateCommandBuffers")
	}
	b.slots = make([]*FrameSlot, b.opts.FrameData)
	for i := range b.slots {
		fs := &FrameSlot{Index: i, CommandBuffer: cbs[i]}
		b.slots[i] = fs
		if fs.Acquired, err = b.driver.CreateSemaphore(); err != nil {
			return core.WrapFatal(err, "CreateSemaphore")
		}
		if fs.RenderComplete, err = b.driver.CreateSemaphore(); err != nil {
			return core.WrapFatal(err, "CreateSemaphore")
		}
		if fs.Fence, err = b.driver.CreateFence(false); err != nil {
			return core.WrapFatal(err, "CreateFence")
		}
	}
	return nil
}

func (b *Backend) destroyFrameSlots() {
	cbs := make([]metadata.CommandBuffer, 0, len(b.slots))
	for _, fs := range b.slots {
		if fs == nil {
			continue
		}
		if fs.Fence != nil {
			b.driver.DestroyFence(fs.Fence)
		}
		if fs.Acquired != nil {
			b.driver.DestroySemaphore(fs.Acquired)
		}
		if fs.RenderComplete != nil {
			b.driver.DestroySemaphore(fs.RenderComplete)
		}
		if fs.CommandBuffer != nil {
			cbs = append(cbs, fs.CommandBuffer)
		}
	}
	if len(cbs) > 0 {
		b.driver.FreeCommandBuffers(cbs)
	}
	b.slots = nil
}

/**
 * @brief Blocks until no submitted frame still reads the given vertex cache
 * slot. Slot state is left alone; BlockingSwapBuffers moves it on.
 */
func (b *Backend) WaitSlot(cacheSlot int) error {
	for _, fs := range b.slots {
		if fs.state != SLOT_SUBMITTED || fs.cacheSlot != cacheSlot {
			continue
		}
		if err := b.driver.WaitFence(fs.Fence, FENCE_TIMEOUT); err != nil {
			return core.WrapFatal(err, "WaitFence")
		}
	}
	return nil
}
