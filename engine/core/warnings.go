package core

import "sync"

// FrameWarnings emits a warning at most once per frame for each call site.
// The frame number is supplied by the caller, so a new frame re-arms every site.
type FrameWarnings struct {
	mu    sync.Mutex
	frame uint64
	seen  map[string]struct{}
}

func NewFrameWarnings() *FrameWarnings {
	return &FrameWarnings{
		seen: make(map[string]struct{}),
	}
}

// Warn logs msg for site unless site already warned during frame.
// Returns true when the message was actually logged.
func (fw *FrameWarnings) Warn(frame uint64, site string, msg string, args ...interface{}) bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if frame != fw.frame {
		fw.frame = frame
		clear(fw.seen)
	}
	if _, ok := fw.seen[site]; ok {
		return false
	}
	fw.seen[site] = struct{}{}
	LogWarn(msg, args...)
	return true
}

// Reset re-arms every call site without waiting for a frame change.
func (fw *FrameWarnings) Reset() {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	clear(fw.seen)
}
