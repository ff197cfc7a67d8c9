// Package fallback содержит детерминированные значения по умолчанию для каждого шага генерации.
// Функции не обращаются к внешним сервисам и никогда не возвращают ошибку.
package fallback

import (
	"fmt"

	"storyline-server/internal/domain"
)

const (
	ConceptAuthor = "An Anonymous Storyteller"
	ConceptTitle  = "The Untold Journey"

	// PlaceholderStartContent используется, если в карте нет узла start.
	PlaceholderStartContent = "In a distant world, an untold story is waiting for you..."

	ContinueChoiceText = "continue"

	ReorientationContent    = "A mysterious mist clouds your thoughts and carries you back to a familiar place. Perhaps fate is offering you another chance."
	ReorientationChoiceText = "Take another look around"
)

// Concept возвращает фиксированную тройку автор/название/стиль.
func Concept(storyType string) domain.Concept {
	return domain.Concept{
		Author:       ConceptAuthor,
		Title:        ConceptTitle,
		WritingStyle: fmt.Sprintf("You are a master of imitation, telling the %s story \"%s\" in the manner of %s.", storyType, ConceptTitle, ConceptAuthor),
	}
}

// StoryMap возвращает линейную карту start -> node_1 -> end_bad.
func StoryMap() *domain.StoryMap {
	return &domain.StoryMap{
		Nodes: []domain.Node{
			{ID: domain.StartNodeID, Label: "The Beginning", Details: PlaceholderStartContent},
			{ID: "node_1", Label: "Exploration", Details: "You walk on and discover a fork in the road."},
			{ID: "end_bad", Label: "Lost", Details: "You are lost in endless darkness."},
		},
		Edges: []domain.Edge{
			{From: domain.StartNodeID, To: "node_1", Label: "Press onward."},
			{From: "node_1", To: "end_bad", Label: "Take the left path."},
		},
	}
}

// Choices возвращает единственный вариант "continue".
func Choices() []domain.Choice {
	return []domain.Choice{{ID: 1, Text: ContinueChoiceText}}
}

// NextScene возвращает сцену возврата к началу и историю, дополненную
// репликой игрока и репликой рассказчика. Входной срез не изменяется.
func NextScene(history []domain.Turn, choiceText string) (*domain.Scene, []domain.Turn) {
	scene := &domain.Scene{
		Content:       ReorientationContent,
		Choices:       []domain.Choice{{ID: 1, Text: ReorientationChoiceText}},
		CurrentNodeID: domain.StartNodeID,
	}
	out := make([]domain.Turn, 0, len(history)+2)
	out = append(out, history...)
	out = append(out,
		domain.Turn{Role: domain.RolePlayer, Content: choiceText},
		domain.Turn{Role: domain.RoleNarrator, Content: ReorientationContent},
	)
	return scene, out
}
