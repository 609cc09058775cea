package systems

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

func TestNewJobSystemRejectsBadSizes(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestJobCallbacks(t *testing.T) {
	js, err := NewJobSystem(2, 4)
	require.NoError(t, err)

	var completed, failed, finished atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, js.Submit(metadata.JobTask{
			InputParams: i,
			OnStart: func(in any, out chan any) error {
				if in.(int)%2 == 1 {
					return errors.New("odd")
				}
				out <- in.(int) * 2
				return nil
			},
			OnComplete: func(out chan any) {
				if (<-out).(int)%4 == 0 {
					completed.Add(1)
				}
			},
			OnFailure:            func(out chan any) { failed.Add(1) },
			OnCompletionCallback: func() { finished.Add(1) },
		}))
	}
	require.NoError(t, js.Shutdown())

	assert.Equal(t, int32(5), completed.Load())
	assert.Equal(t, int32(5), failed.Load())
	assert.Equal(t, int32(10), finished.Load())
}

func TestSubmitAfterShutdown(t *testing.T) {
	js, err := NewJobSystem(1, 0)
	require.NoError(t, err)
	require.NoError(t, js.Shutdown())

	err = js.Submit(metadata.JobTask{OnStart: func(any, chan any) error { return nil }})
	assert.ErrorIs(t, err, ErrJobSystemClosed)
	assert.ErrorIs(t, js.Shutdown(), ErrJobSystemClosed)
}

func TestSubmitWithoutEntryPoint(t *testing.T) {
	js, err := NewJobSystem(1, 0)
	require.NoError(t, err)
	defer js.Shutdown()
	assert.Error(t, js.Submit(metadata.JobTask{}))
}
