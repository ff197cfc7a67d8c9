package domain

import (
	"encoding/json"
	"time"
)

// EventKind - тип события канала прогресса.
type EventKind string

const (
	EventProgress          EventKind = "progress"
	EventError             EventKind = "error"
	EventStoryMapReady     EventKind = "storyMapReady"
	EventInitialSceneReady EventKind = "initialSceneReady"
)

// ProgressEvent - транзитное событие, публикуемое пайплайном создания. Не сохраняется.
// Поле event задает имя SSE события.
type ProgressEvent struct {
	Event        EventKind `json:"event"`
	Message      string    `json:"message,omitempty"`
	ElapsedMs    int64     `json:"elapsed_ms,omitempty"`
	Received     int       `json:"received_chars,omitempty"`
	StoryMap     *StoryMap `json:"story_map,omitempty"`
	Scene        *Scene    `json:"scene,omitempty"`
	Author       string    `json:"author,omitempty"`
	Title        string    `json:"title,omitempty"`
	StoryHistory []Turn    `json:"story_history,omitempty"`
}

func ProgressMessage(msg string) ProgressEvent {
	return ProgressEvent{Event: EventProgress, Message: msg}
}

// ProgressHeartbeat сообщает о ходе длительной потоковой генерации.
func ProgressHeartbeat(msg string, elapsed time.Duration, received int) ProgressEvent {
	return ProgressEvent{Event: EventProgress, Message: msg, ElapsedMs: elapsed.Milliseconds(), Received: received}
}

func ErrorMessage(msg string) ProgressEvent {
	return ProgressEvent{Event: EventError, Message: msg}
}

func StoryMapReady(m *StoryMap) ProgressEvent {
	return ProgressEvent{Event: EventStoryMapReady, StoryMap: m}
}

func InitialSceneReady(scene *Scene, author, title string, history []Turn) ProgressEvent {
	return ProgressEvent{
		Event:        EventInitialSceneReady,
		Scene:        scene,
		Author:       author,
		Title:        title,
		StoryHistory: history,
	}
}

// Encode сериализует событие в одну строку JSON.
func (e ProgressEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}
