package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storyline-server/internal/domain"
)

// SessionRepository - хранилище игровых сессий.
type SessionRepository interface {
	// Create сохраняет новую сессию и возвращает ее ID.
	Create(ctx context.Context, session *domain.Session) (string, error)
	// GetByID возвращает сессию или domain.ErrSessionNotFound.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// ReplaceFields одной операцией заменяет непустые поля и возвращает обновленную сессию.
	// updated_at никогда не уменьшается.
	ReplaceFields(ctx context.Context, id string, fields domain.SessionFields) (*domain.Session, error)
	// DeleteByID удаляет сессию. Для неизвестного ID возвращает domain.ErrSessionNotFound.
	DeleteByID(ctx context.Context, id string) error
	// ListIdleSince возвращает ID сессий, не обновлявшихся дольше threshold.
	ListIdleSince(ctx context.Context, threshold time.Duration) ([]string, error)
	Close() error
}

// sessionDocs - JSON-представление составных полей сессии. nil означает NULL.
type sessionDocs struct {
	StoryMap     []byte
	StoryHistory []byte
	CurrentScene []byte
}

func encodeDocs(storyMap *domain.StoryMap, history []domain.Turn, scene *domain.Scene) (sessionDocs, error) {
	var docs sessionDocs
	var err error
	if storyMap != nil {
		if docs.StoryMap, err = json.Marshal(storyMap); err != nil {
			return docs, fmt.Errorf("failed to marshal story map: %w", err)
		}
	}
	if history != nil {
		if docs.StoryHistory, err = json.Marshal(history); err != nil {
			return docs, fmt.Errorf("failed to marshal story history: %w", err)
		}
	}
	if scene != nil {
		if docs.CurrentScene, err = json.Marshal(scene); err != nil {
			return docs, fmt.Errorf("failed to marshal current scene: %w", err)
		}
	}
	return docs, nil
}

func decodeDocs(s *domain.Session, docs sessionDocs) error {
	if len(docs.StoryMap) > 0 {
		s.StoryMap = &domain.StoryMap{}
		if err := json.Unmarshal(docs.StoryMap, s.StoryMap); err != nil {
			return fmt.Errorf("failed to unmarshal story map of session %s: %w", s.ID, err)
		}
	}
	s.StoryHistory = []domain.Turn{}
	if len(docs.StoryHistory) > 0 {
		if err := json.Unmarshal(docs.StoryHistory, &s.StoryHistory); err != nil {
			return fmt.Errorf("failed to unmarshal story history of session %s: %w", s.ID, err)
		}
	}
	if len(docs.CurrentScene) > 0 {
		s.CurrentScene = &domain.Scene{}
		if err := json.Unmarshal(docs.CurrentScene, s.CurrentScene); err != nil {
			return fmt.Errorf("failed to unmarshal current scene of session %s: %w", s.ID, err)
		}
	}
	return nil
}

func statusArg(s *domain.SessionStatus) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func initialStatus(s *domain.Session) domain.SessionStatus {
	if s.Status == "" {
		return domain.SessionStatusPending
	}
	return s.Status
}
