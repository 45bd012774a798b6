package timeout

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/errors"
)

func TestDo_ReturnsResultBeforeDeadline(t *testing.T) {
	got, err := Do(context.Background(), "fast", time.Second, func(context.Context) (int, error) {
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestDo_PropagatesOperationError(t *testing.T) {
	want := errors.New("insert failed")
	_, err := Do(context.Background(), "insert", time.Second, func(context.Context) (string, error) {
		return "", want
	})

	assert.ErrorIs(t, err, want)
}

func TestDo_TimesOutWithTypedError(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	_, err := Do(context.Background(), "slow insert", 20*time.Millisecond, func(context.Context) (int, error) {
		<-release
		return 1, nil
	})

	require.Error(t, err)
	var tErr *Error
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "slow insert", tErr.Operation)
	assert.Equal(t, 20*time.Millisecond, tErr.Deadline)
	assert.True(t, errors.Is(err, apperrors.ErrTimeout))
	assert.Equal(t, "slow insert timed out after 20ms", err.Error())
}

func TestDo_TimedOutOperationKeepsRunning(t *testing.T) {
	var finished atomic.Bool
	done := make(chan struct{})

	_, err := Do(context.Background(), "background", 10*time.Millisecond, func(context.Context) (int, error) {
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		close(done)
		return 0, nil
	})
	require.Error(t, err)
	assert.False(t, finished.Load())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("operation was not allowed to complete after the timeout")
	}
	assert.True(t, finished.Load())
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	block := make(chan struct{})
	defer close(block)

	_, err := Do(ctx, "canceled", time.Second, func(context.Context) (int, error) {
		<-block
		return 0, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_ZeroDeadlineWaits(t *testing.T) {
	got, err := Do(context.Background(), "unbounded", 0, func(context.Context) (string, error) {
		time.Sleep(5 * time.Millisecond)
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestDo_RecoversPanic(t *testing.T) {
	_, err := Do(context.Background(), "panicky", time.Second, func(context.Context) (int, error) {
		panic("boom")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicky panicked: boom")
}

func TestRun(t *testing.T) {
	err := Run(context.Background(), "noop", time.Second, func(context.Context) error { return nil })
	assert.NoError(t, err)

	err = Run(context.Background(), "stuck", 5*time.Millisecond, func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	})
	var tErr *Error
	assert.ErrorAs(t, err, &tErr)
}
