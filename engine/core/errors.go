package core

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

var (
	ErrSwapchainBooting  = errors.New("swapchain resized or recreated, booting")
	ErrAllocation        = errors.New("buffer allocation failed")
	ErrOverrun           = errors.New("buffer update overruns allocated size")
	ErrNotAllocated      = errors.New("buffer is not allocated")
	ErrAlreadyMapped     = errors.New("buffer is already mapped")
	ErrNotMapped         = errors.New("buffer is not mapped")
	ErrInvalidMapMode    = errors.New("invalid buffer map mode")
	ErrStaleHandle       = errors.New("stale vertex cache handle")
	ErrNoCapableDevice   = errors.New("no capable graphics device found")
	ErrSwapchain         = errors.New("swapchain creation failed")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrSubmit            = errors.New("command buffer submission failed")
	ErrNotInitialized    = errors.New("render backend is not initialized")
	ErrFatal             = errors.New("fatal render error")
	ErrUnknown           = errors.New("unknown")
)

// NewFatalError builds a terminal error naming the failing call and the device-reported code.
// The returned error matches ErrFatal with errors.Is and carries a stack trace.
func NewFatalError(call string, code string) error {
	return pkgerrors.Wrapf(ErrFatal, "%s failed with %s", call, code)
}

// WrapFatal marks err as fatal while keeping it reachable through errors.Is.
func WrapFatal(err error, call string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(&fatalError{call: call, err: err})
}

type fatalError struct {
	call string
	err  error
}

func (fe *fatalError) Error() string {
	return fe.call + ": " + fe.err.Error()
}

func (fe *fatalError) Unwrap() []error {
	return []error{ErrFatal, fe.err}
}

// IsFatal reports whether err terminates the rendering subsystem.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}
