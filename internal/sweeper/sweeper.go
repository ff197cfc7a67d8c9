// Package sweeper периодически удаляет неактивные игровые сессии.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storyline-server/internal/domain"
	"storyline-server/internal/metrics"
	"storyline-server/internal/repository"

	"go.uber.org/zap"
)

// TaskCleaner удаляет из памяти завершенные фоновые задачи.
type TaskCleaner interface {
	CleanupTasks(age time.Duration) int
}

// Sweeper удаляет сессии, не обновлявшиеся дольше threshold.
type Sweeper struct {
	repo      repository.SessionRepository
	tasks     TaskCleaner
	interval  time.Duration
	threshold time.Duration
	logger    *zap.Logger
}

// New создает Sweeper. tasks может быть nil.
func New(repo repository.SessionRepository, tasks TaskCleaner, interval, threshold time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		repo:      repo,
		tasks:     tasks,
		interval:  interval,
		threshold: threshold,
		logger:    logger.Named("Sweeper"),
	}
}

// Run выполняет проход раз в interval до отмены ctx. Ошибки прохода только логируются.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("Sweeper started", zap.Duration("interval", s.interval), zap.Duration("threshold", s.threshold))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("Sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce удаляет все сессии, простаивающие дольше threshold, и возвращает их число.
// Сессия, удаленная параллельно, не считается ошибкой.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	ids, err := s.repo.ListIdleSince(ctx, s.threshold)
	if err != nil {
		return 0, fmt.Errorf("list idle sessions: %w", err)
	}

	deleted := 0
	var errs []error
	for _, id := range ids {
		if err := s.repo.DeleteByID(ctx, id); err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				continue
			}
			s.logger.Warn("Failed to delete idle session", zap.String("session_id", id), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	metrics.AddSwept(deleted)

	if s.tasks != nil {
		if n := s.tasks.CleanupTasks(s.threshold); n > 0 {
			s.logger.Debug("Finished tasks cleaned up", zap.Int("count", n))
		}
	}
	if deleted > 0 {
		s.logger.Info("Idle sessions deleted", zap.Int("count", deleted), zap.Int("found", len(ids)))
	}
	return deleted, errors.Join(errs...)
}
