package taskmanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type ctxKey struct{}

func TestSubmitTask_DetachedFromCallerContext(t *testing.T) {
	tm := New(Config{MaxTasks: 2}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "value"))
	release := make(chan struct{})
	result := make(chan error, 1)

	id, err := tm.SubmitTask(ctx, "detached", func(taskCtx context.Context) error {
		<-release
		if taskCtx.Value(ctxKey{}) != "value" {
			return errors.New("context value lost")
		}
		result <- taskCtx.Err()
		return nil
	})
	require.NoError(t, err)

	cancel()
	close(release)

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("task did not finish")
	}

	require.NoError(t, tm.Shutdown(context.Background()))
	task, err := tm.FindTask("detached")
	require.NoError(t, err)
	assert.Equal(t, id, task.ID)
	assert.Equal(t, TaskStatusCompleted, task.Status)
}

func TestSubmitTask_Limit(t *testing.T) {
	tm := New(Config{MaxTasks: 1}, zap.NewNop())
	release := make(chan struct{})

	_, err := tm.SubmitTask(context.Background(), "first", func(context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, tm.Active())

	_, err = tm.SubmitTask(context.Background(), "second", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrTooManyTasks)

	close(release)
	require.NoError(t, tm.Shutdown(context.Background()))
	assert.Equal(t, 0, tm.Active())
}

func TestTaskStatuses(t *testing.T) {
	tm := New(Config{}, zap.NewNop())

	_, err := tm.SubmitTask(context.Background(), "fails", func(context.Context) error {
		return errors.New("boom")
	})
	require.NoError(t, err)
	_, err = tm.SubmitTask(context.Background(), "panics", func(context.Context) error {
		panic("unexpected")
	})
	require.NoError(t, err)

	require.NoError(t, tm.Shutdown(context.Background()))

	failed, err := tm.FindTask("fails")
	require.NoError(t, err)
	assert.Equal(t, TaskStatusFailed, failed.Status)
	assert.Equal(t, "boom", failed.Message)

	panicked, err := tm.FindTask("panics")
	require.NoError(t, err)
	assert.Equal(t, TaskStatusFailed, panicked.Status)
	assert.Contains(t, panicked.Message, "unexpected")
}

func TestShutdown(t *testing.T) {
	tm := New(Config{}, zap.NewNop())
	release := make(chan struct{})
	_, err := tm.SubmitTask(context.Background(), "slow", func(context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tm.Shutdown(ctx), context.DeadlineExceeded)

	_, err = tm.SubmitTask(context.Background(), "late", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)

	close(release)
	assert.NoError(t, tm.Shutdown(context.Background()))
}

func TestFindTaskAndCleanup(t *testing.T) {
	tm := New(Config{}, zap.NewNop())
	_, err := tm.FindTask("quick")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	id, err := tm.SubmitTask(context.Background(), "quick", func(context.Context) error { return nil })
	require.NoError(t, err)
	require.NoError(t, tm.Shutdown(context.Background()))
	task, err := tm.FindTask("quick")
	require.NoError(t, err)
	assert.Equal(t, id, task.ID)

	assert.Equal(t, 0, tm.CleanupTasks(time.Hour))
	assert.Equal(t, 1, tm.CleanupTasks(0))
	_, err = tm.FindTask("quick")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}
