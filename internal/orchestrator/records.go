package orchestrator

import (
	"errors"
	"fmt"

	"storyline-server/internal/domain"
	"storyline-server/internal/extractor"

	"github.com/go-playground/validator/v10"
)

// MaxChoices - максимальное число вариантов в сцене. Лишние отбрасываются.
const MaxChoices = 3

// ErrMissingRequiredField - запись разобрана, но в ней нет обязательного поля.
var ErrMissingRequiredField = errors.New("missing required field")

type storyMapRecord struct {
	Nodes []nodeRecord  `json:"nodes" validate:"required,min=1,dive"`
	Edges []domain.Edge `json:"edges"`
}

type nodeRecord struct {
	ID      string `json:"id" validate:"required"`
	Label   string `json:"label"`
	Details string `json:"details"`
}

type choicesRecord struct {
	Choices []domain.Choice `json:"choices" validate:"required,min=1,dive"`
}

type sceneRecord struct {
	Content       string          `json:"content" validate:"required"`
	Choices       []domain.Choice `json:"choices" validate:"required,min=1,dive"`
	CurrentNodeID string          `json:"current_node_id" validate:"required"`
}

// decodeRecord извлекает JSON из ответа модели, разбирает его в v и проверяет теги validate.
func decodeRecord(v *validator.Validate, raw string, out any) error {
	if err := extractor.Decode(raw, out); err != nil {
		return err
	}
	if err := v.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s", ErrMissingRequiredField, verrs[0].Namespace())
		}
		return fmt.Errorf("%w: %v", ErrMissingRequiredField, err)
	}
	return nil
}

func (o *Orchestrator) parseConcept(raw string) (domain.Concept, error) {
	var c domain.Concept
	if err := decodeRecord(o.validate, raw, &c); err != nil {
		return domain.Concept{}, err
	}
	return c, nil
}

func (o *Orchestrator) parseStoryMap(raw string) (*domain.StoryMap, error) {
	var rec storyMapRecord
	if err := decodeRecord(o.validate, raw, &rec); err != nil {
		return nil, err
	}
	m := &domain.StoryMap{
		Nodes: make([]domain.Node, 0, len(rec.Nodes)),
		Edges: rec.Edges,
	}
	for _, n := range rec.Nodes {
		m.Nodes = append(m.Nodes, domain.Node(n))
	}
	if m.Edges == nil {
		m.Edges = []domain.Edge{}
	}
	return m, nil
}

func (o *Orchestrator) parseChoices(raw string) ([]domain.Choice, error) {
	var rec choicesRecord
	if err := decodeRecord(o.validate, raw, &rec); err != nil {
		return nil, err
	}
	return limitChoices(rec.Choices), nil
}

func (o *Orchestrator) parseScene(raw string) (*domain.Scene, error) {
	var rec sceneRecord
	if err := decodeRecord(o.validate, raw, &rec); err != nil {
		return nil, err
	}
	return &domain.Scene{
		Content:       rec.Content,
		Choices:       limitChoices(rec.Choices),
		CurrentNodeID: rec.CurrentNodeID,
	}, nil
}

func limitChoices(choices []domain.Choice) []domain.Choice {
	if len(choices) > MaxChoices {
		return choices[:MaxChoices]
	}
	return choices
}
