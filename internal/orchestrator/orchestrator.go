// Package orchestrator управляет пайплайнами генерации сессии: создание в фоне
// с публикацией прогресса и синхронная обработка выбора игрока.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"storyline-server/internal/domain"
	"storyline-server/internal/metrics"
	"storyline-server/internal/progress"
	"storyline-server/internal/prompts"
	"storyline-server/internal/repository"
	"storyline-server/pkg/ai"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// HistoryWindow - сколько последних реплик истории отправляется при генерации следующей сцены.
	HistoryWindow = 6

	// DefaultHeartbeatInterval - также нижняя граница: heartbeat не публикуется чаще.
	DefaultHeartbeatInterval = 500 * time.Millisecond
	DefaultNodeNum           = 10
)

// Config - параметры пайплайнов.
type Config struct {
	NodeNum           int
	MaxAttempts       int
	BaseRetryDelay    time.Duration
	HeartbeatInterval time.Duration
}

// Orchestrator связывает клиента генерации, хранилище сессий и канал прогресса.
type Orchestrator struct {
	client   ai.Client
	repo     repository.SessionRepository
	channel  progress.Channel
	prompts  *prompts.Set
	validate *validator.Validate
	cfg      Config
	locks    *sessionLocks
	tracer   trace.Tracer
	now      func() time.Time
	logger   *zap.Logger
}

func New(
	client ai.Client,
	repo repository.SessionRepository,
	channel progress.Channel,
	promptSet *prompts.Set,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.NodeNum <= 0 {
		cfg.NodeNum = DefaultNodeNum
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.HeartbeatInterval < DefaultHeartbeatInterval {
		if cfg.HeartbeatInterval > 0 {
			logger.Warn("Heartbeat interval is below the minimum, using the minimum",
				zap.Duration("configured", cfg.HeartbeatInterval),
				zap.Duration("minimum", DefaultHeartbeatInterval),
			)
		}
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	return &Orchestrator{
		client:   client,
		repo:     repo,
		channel:  channel,
		prompts:  promptSet,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cfg:      cfg,
		locks:    newSessionLocks(),
		tracer:   otel.Tracer("storyline-server/internal/orchestrator"),
		now:      time.Now,
		logger:   logger.Named("Orchestrator"),
	}
}

// publish отправляет событие в канал сессии. Ошибки канала только логируются.
func (o *Orchestrator) publish(ctx context.Context, sessionID string, event domain.ProgressEvent) {
	payload, err := event.Encode()
	if err != nil {
		o.logger.Error("Failed to encode progress event", zap.String("session_id", sessionID), zap.String("event", string(event.Event)), zap.Error(err))
		metrics.IncEvent(string(event.Event), "error")
		return
	}
	if err := o.channel.Publish(ctx, sessionID, payload); err != nil {
		o.logger.Warn("Failed to publish progress event",
			zap.String("session_id", sessionID),
			zap.String("event", string(event.Event)),
			zap.Bool("channel_unavailable", errors.Is(err, domain.ErrChannelUnavailable)),
			zap.Error(err),
		)
		metrics.IncEvent(string(event.Event), "error")
		return
	}
	metrics.IncEvent(string(event.Event), "published")
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// sessionLocks сериализует обработку выборов в рамках одной сессии.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// lock блокирует сессию и возвращает функцию разблокировки.
func (l *sessionLocks) lock(sessionID string) func() {
	l.mu.Lock()
	sl, ok := l.locks[sessionID]
	if !ok {
		sl = &sessionLock{}
		l.locks[sessionID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, sessionID)
		}
		l.mu.Unlock()
	}
}

func (l *sessionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
