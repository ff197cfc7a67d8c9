package fallback_test

import (
	"testing"

	"storyline-server/internal/domain"
	"storyline-server/internal/fallback"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcept_Deterministic(t *testing.T) {
	a := fallback.Concept("mystery")
	b := fallback.Concept("mystery")
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a.Author)
	assert.NotEmpty(t, a.Title)
	assert.Contains(t, a.WritingStyle, "mystery")
}

func TestStoryMap(t *testing.T) {
	m := fallback.StoryMap()
	assert.Equal(t, m, fallback.StoryMap())

	require.Len(t, m.Nodes, 3)
	require.Len(t, m.Edges, 2)
	start, ok := m.FindNode(domain.StartNodeID)
	require.True(t, ok)
	assert.Equal(t, fallback.PlaceholderStartContent, start.Details)

	ids := map[string]bool{}
	for _, n := range m.Nodes {
		ids[n.ID] = true
	}
	for _, e := range m.Edges {
		assert.True(t, ids[e.From], "edge from %s", e.From)
		assert.True(t, ids[e.To], "edge to %s", e.To)
	}
	assert.Equal(t, "node_1", m.Edges[0].To)
	assert.Equal(t, "end_bad", m.Edges[1].To)

	// Изменение возвращенной карты не влияет на следующий вызов.
	m.Nodes[0].Details = "mutated"
	again, _ := fallback.StoryMap().FindNode(domain.StartNodeID)
	assert.Equal(t, fallback.PlaceholderStartContent, again.Details)
}

func TestChoices(t *testing.T) {
	assert.Equal(t, []domain.Choice{{ID: 1, Text: "continue"}}, fallback.Choices())
}

func TestNextScene(t *testing.T) {
	history := []domain.Turn{
		{Role: domain.RoleNarrator, Content: "opening"},
	}

	scene, out := fallback.NextScene(history, "open the door")

	assert.Equal(t, domain.StartNodeID, scene.CurrentNodeID)
	assert.Equal(t, fallback.ReorientationContent, scene.Content)
	require.Len(t, scene.Choices, 1)

	require.Len(t, out, 3)
	assert.Equal(t, domain.Turn{Role: domain.RolePlayer, Content: "open the door"}, out[1])
	assert.Equal(t, domain.Turn{Role: domain.RoleNarrator, Content: fallback.ReorientationContent}, out[2])
	assert.Len(t, history, 1, "input history must not be modified")

	scene2, out2 := fallback.NextScene(history, "open the door")
	assert.Equal(t, scene, scene2)
	assert.Equal(t, out, out2)
}
