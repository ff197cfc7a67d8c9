package domain

import (
	"time"
)

// Роли реплик в истории сессии.
const (
	RoleNarrator = "narrator"
	RolePlayer   = "player"
)

// StartNodeID - идентификатор обязательного начального узла карты.
const StartNodeID = "start"

// SessionStatus отражает готовность сессии.
type SessionStatus string

const (
	SessionStatusPending SessionStatus = "pending" // Пайплайн создания еще работает
	SessionStatusReady   SessionStatus = "ready"
)

// Node - узел карты сюжета.
type Node struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Details string `json:"details"`
}

// Edge - переход между узлами карты.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

// StoryMap - нелинейный граф сюжета.
// Структурные инварианты (наличие start, ссылки ребер) не проверяются.
type StoryMap struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// FindNode возвращает узел по id.
func (m *StoryMap) FindNode(id string) (Node, bool) {
	if m == nil {
		return Node{}, false
	}
	for _, n := range m.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Turn - одна реплика истории.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Choice - вариант действия игрока.
type Choice struct {
	ID   int    `json:"id" validate:"min=0"`
	Text string `json:"text" validate:"required"`
}

// Scene - текущая сцена с вариантами выбора.
type Scene struct {
	Content       string   `json:"content"`
	Choices       []Choice `json:"choices"`
	CurrentNodeID string   `json:"current_node_id"`
}

// Concept - автор, название и стиль истории.
type Concept struct {
	Author       string `json:"author" validate:"required"`
	Title        string `json:"title" validate:"required"`
	WritingStyle string `json:"writing_style" validate:"required"`
}

// Session - сохраненное прохождение.
type Session struct {
	ID           string        `json:"session_id"`
	StoryType    string        `json:"story_type"`
	Status       SessionStatus `json:"status"`
	WritingStyle string        `json:"writing_style"`
	Author       string        `json:"author"`
	Title        string        `json:"title"`
	StoryMap     *StoryMap     `json:"story_map,omitempty"`
	StoryHistory []Turn        `json:"story_history"`
	CurrentScene *Scene        `json:"current_scene,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// SessionFields - частичное обновление сессии. nil означает "не менять".
type SessionFields struct {
	Status       *SessionStatus
	WritingStyle *string
	Author       *string
	Title        *string
	StoryMap     *StoryMap
	StoryHistory []Turn
	CurrentScene *Scene
}

// GameState - полное состояние, отдаваемое клиенту.
type GameState struct {
	SessionID    string        `json:"session_id"`
	Status       SessionStatus `json:"status"`
	Scene        *Scene        `json:"scene"`
	Author       string        `json:"author"`
	Title        string        `json:"title"`
	StoryMap     *StoryMap     `json:"story_map"`
	StoryHistory []Turn        `json:"story_history"`
	// Pipeline - статус фоновой генерации, только для pending-сессии.
	Pipeline     string        `json:"pipeline,omitempty"`
}

// NewGameState собирает ответ из сохраненной сессии.
func NewGameState(s *Session) *GameState {
	history := s.StoryHistory
	if history == nil {
		history = []Turn{}
	}
	return &GameState{
		SessionID:    s.ID,
		Status:       s.Status,
		Scene:        s.CurrentScene,
		Author:       s.Author,
		Title:        s.Title,
		StoryMap:     s.StoryMap,
		StoryHistory: history,
	}
}

// CreateResult - немедленный ответ на создание сессии.
type CreateResult struct {
	SessionID string        `json:"session_id"`
	Status    SessionStatus `json:"status"`
}
