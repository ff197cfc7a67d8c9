package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storyline-server/internal/domain"
	"storyline-server/internal/progress"
	"storyline-server/internal/repository"
	"storyline-server/pkg/taskmanager"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrServiceBusy - нет свободных слотов для фоновой генерации.
var ErrServiceBusy = errors.New("server is busy, try again later")

// Pipelines - пайплайны генерации, которые использует сервис.
type Pipelines interface {
	RunCreation(ctx context.Context, sessionID, storyType string) error
	SubmitChoice(ctx context.Context, sessionID, choiceText string) (*domain.GameState, error)
}

// TaskSubmitter запускает задачу в фоне и находит ее по имени.
type TaskSubmitter interface {
	SubmitTask(ctx context.Context, name string, fn taskmanager.TaskFunc) (uuid.UUID, error)
	FindTask(name string) (taskmanager.Task, error)
}

func creationTaskName(sessionID string) string {
	return "creation:" + sessionID
}

// GameService определяет операции над игровыми сессиями.
type GameService interface {
	CreateGame(ctx context.Context, storyType string) (*domain.CreateResult, error)
	SubmitChoice(ctx context.Context, sessionID, choiceText string) (*domain.GameState, error)
	GetState(ctx context.Context, sessionID string) (*domain.GameState, error)
	DeleteGame(ctx context.Context, sessionID string) error
	// Subscribe открывает подписку на события прогресса существующей сессии.
	Subscribe(ctx context.Context, sessionID string) (progress.Subscription, error)
}

type gameServiceImpl struct {
	repo      repository.SessionRepository
	pipelines Pipelines
	tasks     TaskSubmitter
	channel   progress.Channel
	newID     func() string
	logger    *zap.Logger
}

func NewGameService(
	repo repository.SessionRepository,
	pipelines Pipelines,
	tasks TaskSubmitter,
	channel progress.Channel,
	logger *zap.Logger,
) GameService {
	return &gameServiceImpl{
		repo:      repo,
		pipelines: pipelines,
		tasks:     tasks,
		channel:   channel,
		newID:     func() string { return uuid.New().String() },
		logger:    logger.Named("GameService"),
	}
}

// CreateGame сохраняет pending-сессию и запускает пайплайн создания в фоне.
// Пайплайн не зависит от контекста запроса.
func (s *gameServiceImpl) CreateGame(ctx context.Context, storyType string) (*domain.CreateResult, error) {
	storyType = strings.TrimSpace(storyType)
	if storyType == "" {
		return nil, fmt.Errorf("%w: story_type is required", domain.ErrInvalidInput)
	}

	session := &domain.Session{
		ID:           s.newID(),
		StoryType:    storyType,
		Status:       domain.SessionStatusPending,
		StoryHistory: []domain.Turn{},
		CreatedAt:    time.Now().UTC(),
	}
	id, err := s.repo.Create(ctx, session)
	if err != nil {
		s.logger.Error("Failed to create pending session", zap.String("story_type", storyType), zap.Error(err))
		return nil, fmt.Errorf("create session: %w", err)
	}
	log := s.logger.With(zap.String("session_id", id))

	taskID, err := s.tasks.SubmitTask(ctx, creationTaskName(id), func(taskCtx context.Context) error {
		return s.pipelines.RunCreation(taskCtx, id, storyType)
	})
	if err != nil {
		log.Warn("Failed to dispatch creation pipeline, removing pending session", zap.Error(err))
		if delErr := s.repo.DeleteByID(context.WithoutCancel(ctx), id); delErr != nil {
			log.Error("Failed to remove pending session", zap.Error(delErr))
		}
		if errors.Is(err, taskmanager.ErrTooManyTasks) || errors.Is(err, taskmanager.ErrClosed) {
			return nil, fmt.Errorf("%w: %v", ErrServiceBusy, err)
		}
		return nil, fmt.Errorf("dispatch creation: %w", err)
	}

	log.Info("Creation pipeline dispatched", zap.String("task_id", taskID.String()), zap.String("story_type", storyType))
	return &domain.CreateResult{SessionID: id, Status: domain.SessionStatusPending}, nil
}

func (s *gameServiceImpl) SubmitChoice(ctx context.Context, sessionID, choiceText string) (*domain.GameState, error) {
	if strings.TrimSpace(choiceText) == "" {
		return nil, fmt.Errorf("%w: choice_text is required", domain.ErrInvalidInput)
	}
	state, err := s.pipelines.SubmitChoice(ctx, sessionID, choiceText)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) && !errors.Is(err, domain.ErrSessionNotReady) {
			s.logger.Error("Choice pipeline failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil, err
	}
	return state, nil
}

// GetState возвращает сохраненное состояние. Для pending-сессии добавляется
// статус фоновой задачи создания, если она еще известна этому процессу.
func (s *gameServiceImpl) GetState(ctx context.Context, sessionID string) (*domain.GameState, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state := domain.NewGameState(session)
	if session.Status == domain.SessionStatusPending {
		if task, err := s.tasks.FindTask(creationTaskName(sessionID)); err == nil {
			state.Pipeline = string(task.Status)
		}
	}
	return state, nil
}

func (s *gameServiceImpl) DeleteGame(ctx context.Context, sessionID string) error {
	if err := s.repo.DeleteByID(ctx, sessionID); err != nil {
		return err
	}
	s.logger.Info("Session deleted", zap.String("session_id", sessionID))
	return nil
}

func (s *gameServiceImpl) Subscribe(ctx context.Context, sessionID string) (progress.Subscription, error) {
	if _, err := s.repo.GetByID(ctx, sessionID); err != nil {
		return nil, err
	}
	sub, err := s.channel.Subscribe(ctx, sessionID)
	if err != nil {
		s.logger.Error("Failed to subscribe to progress channel", zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return sub, nil
}
