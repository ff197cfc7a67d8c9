package ai_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"storyline-server/pkg/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptedClient_StreamingMatchesComplete(t *testing.T) {
	text := "Туман над рекой, {\"id\": 1} и дальше."
	client := ai.NewScriptedClient(map[string][]ai.Reply{"scene": {{Text: text}}})
	client.FragmentSize = 5

	single, _, err := client.Complete(context.Background(), ai.Prompt{Name: "scene"}, ai.Options{})
	require.NoError(t, err)

	var fragments []string
	_, err = client.CompleteStreaming(context.Background(), ai.Prompt{Name: "scene"}, ai.Options{}, func(s string) error {
		fragments = append(fragments, s)
		return nil
	})
	require.NoError(t, err)
	assert.Greater(t, len(fragments), 1)
	assert.Equal(t, single, strings.Join(fragments, ""))
}

func TestScriptedClient_QueueAndErrors(t *testing.T) {
	boom := errors.New("boom")
	client := ai.NewScriptedClient(map[string][]ai.Reply{
		"step": {{Err: boom}, {Text: "second"}},
	})

	_, _, err := client.Complete(context.Background(), ai.Prompt{Name: "step"}, ai.Options{})
	assert.ErrorIs(t, err, boom)

	text, _, err := client.Complete(context.Background(), ai.Prompt{Name: "step"}, ai.Options{})
	require.NoError(t, err)
	assert.Equal(t, "second", text)

	// Последний ответ повторяется.
	text, _, err = client.Complete(context.Background(), ai.Prompt{Name: "step"}, ai.Options{})
	require.NoError(t, err)
	assert.Equal(t, "second", text)

	_, _, err = client.Complete(context.Background(), ai.Prompt{Name: "unknown"}, ai.Options{})
	assert.ErrorIs(t, err, ai.ErrUpstreamUnavailable)

	assert.Len(t, client.Calls(), 4)
}

func TestScriptedClient_DelayHonoursContext(t *testing.T) {
	client := ai.NewScriptedClient(map[string][]ai.Reply{"slow": {{Text: "x", Delay: time.Second}}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := client.Complete(ctx, ai.Prompt{Name: "slow"}, ai.Options{})
	assert.ErrorIs(t, err, ai.ErrUpstreamTimeout)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, ai.IsTransient(ai.ErrUpstreamUnavailable))
	assert.True(t, ai.IsTransient(ai.ErrUpstreamTimeout))
	assert.False(t, ai.IsTransient(ai.ErrUpstreamMalformedResponse))
	assert.False(t, ai.IsTransient(errors.New("other")))
	assert.False(t, ai.IsTransient(fmt.Errorf("%w: %w", ai.ErrUpstreamUnavailable, ai.ErrUpstreamRejected)))
}

func TestNewClient_UnknownType(t *testing.T) {
	_, err := ai.NewClient(context.Background(), ai.Config{Type: "parrot"}, nil)
	assert.Error(t, err)
}
