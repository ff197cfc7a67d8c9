package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"storyline-server/internal/domain"
	"storyline-server/internal/metrics"
	"storyline-server/internal/mocks"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCleaner struct{ ages []time.Duration }

func (f *fakeCleaner) CleanupTasks(age time.Duration) int {
	f.ages = append(f.ages, age)
	return 1
}

func TestSweepOnce(t *testing.T) {
	repo := mocks.NewMockSessionRepository(t)
	cleaner := &fakeCleaner{}
	threshold := 24 * time.Hour

	repo.On("ListIdleSince", mock.Anything, threshold).Return([]string{"a", "b", "c"}, nil).Once()
	repo.On("DeleteByID", mock.Anything, "a").Return(nil).Once()
	repo.On("DeleteByID", mock.Anything, "b").Return(domain.ErrSessionNotFound).Once()
	repo.On("DeleteByID", mock.Anything, "c").Return(nil).Once()

	before := testutil.ToFloat64(metrics.SweptCounter())
	s := New(repo, cleaner, time.Hour, threshold, zap.NewNop())
	n, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.SweptCounter())-before)
	assert.Equal(t, []time.Duration{threshold}, cleaner.ages)
}

func TestSweepOnce_Errors(t *testing.T) {
	repo := mocks.NewMockSessionRepository(t)
	listErr := errors.New("db down")
	repo.On("ListIdleSince", mock.Anything, time.Hour).Return(nil, listErr).Once()

	s := New(repo, nil, time.Minute, time.Hour, zap.NewNop())
	_, err := s.SweepOnce(context.Background())
	assert.ErrorIs(t, err, listErr)

	deleteErr := errors.New("locked")
	repo.On("ListIdleSince", mock.Anything, time.Hour).Return([]string{"a", "b"}, nil).Once()
	repo.On("DeleteByID", mock.Anything, "a").Return(deleteErr).Once()
	repo.On("DeleteByID", mock.Anything, "b").Return(nil).Once()

	n, err := s.SweepOnce(context.Background())
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, deleteErr)
}

func TestRun_StopsOnCancel(t *testing.T) {
	repo := mocks.NewMockSessionRepository(t)
	swept := make(chan struct{}, 1)
	repo.On("ListIdleSince", mock.Anything, time.Hour).
		Run(func(mock.Arguments) {
			select {
			case swept <- struct{}{}:
			default:
			}
		}).
		Return([]string{}, nil)

	s := New(repo, nil, 10*time.Millisecond, time.Hour, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-swept:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not run")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
