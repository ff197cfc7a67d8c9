package ai_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storyline-server/pkg/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const completionBody = `{"id":"c1","object":"chat.completion","created":1,"model":"test-model",
"choices":[{"index":0,"message":{"role":"assistant","content":"{\"title\":\"Night Train\"}"},"finish_reason":"stop"}],
"usage":{"prompt_tokens":12,"completion_tokens":5,"total_tokens":17}}`

func newOpenAITestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) ai.StreamingClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := ai.NewClient(context.Background(), ai.Config{
		Type:    "openai",
		BaseURL: srv.URL + "/v1",
		APIKey:  "test-key",
		Model:   "test-model",
		Timeout: timeout,
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestOpenAIClient_Complete(t *testing.T) {
	client := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody)
	}, 5*time.Second)

	text, usage, err := client.Complete(context.Background(), ai.Prompt{Name: "concept", System: "sys", User: "user"}, ai.Options{Temperature: ai.Float64(0.7)})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Night Train"}`, text)
	assert.Equal(t, 17, usage.TotalTokens)
	assert.False(t, usage.Estimated)
}

func TestOpenAIClient_Complete_Errors(t *testing.T) {
	t.Run("server error is unavailable", func(t *testing.T) {
		client := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
		}, 5*time.Second)

		_, _, err := client.Complete(context.Background(), ai.Prompt{Name: "concept", User: "u"}, ai.Options{})
		assert.ErrorIs(t, err, ai.ErrUpstreamUnavailable)
	})

	t.Run("unauthorized is rejected", func(t *testing.T) {
		client := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
		}, 5*time.Second)

		_, _, err := client.Complete(context.Background(), ai.Prompt{Name: "concept", User: "u"}, ai.Options{})
		assert.ErrorIs(t, err, ai.ErrUpstreamUnavailable)
		assert.ErrorIs(t, err, ai.ErrUpstreamRejected)
		assert.False(t, ai.IsTransient(err))
	})

	t.Run("rate limit stays transient", func(t *testing.T) {
		client := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"slow down","type":"rate_limit_error"}}`)
		}, 5*time.Second)

		_, _, err := client.Complete(context.Background(), ai.Prompt{Name: "concept", User: "u"}, ai.Options{})
		assert.ErrorIs(t, err, ai.ErrUpstreamUnavailable)
		assert.NotErrorIs(t, err, ai.ErrUpstreamRejected)
		assert.True(t, ai.IsTransient(err))
	})

	t.Run("empty choices is malformed", func(t *testing.T) {
		client := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"test-model","choices":[],"usage":{"total_tokens":0}}`)
		}, 5*time.Second)

		_, _, err := client.Complete(context.Background(), ai.Prompt{Name: "concept", User: "u"}, ai.Options{})
		assert.ErrorIs(t, err, ai.ErrUpstreamMalformedResponse)
	})

	t.Run("slow upstream is timeout", func(t *testing.T) {
		client := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}, 50*time.Millisecond)

		_, _, err := client.Complete(context.Background(), ai.Prompt{Name: "concept", User: "u"}, ai.Options{})
		assert.ErrorIs(t, err, ai.ErrUpstreamTimeout)
	})
}

func TestOpenAIClient_CompleteStreaming(t *testing.T) {
	chunks := []string{"{\\\"nodes\\\":", "[]", ",\\\"edges\\\":[]}"}
	client := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, c := range chunks {
			fmt.Fprintf(w, "data: {\"id\":\"s1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"test-model\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"%s\"}}]}\n\n", c)
			if flusher != nil {
				flusher.Flush()
			}
		}
		fmt.Fprint(w, "data: {\"id\":\"s1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"test-model\",\"choices\":[],\"usage\":{\"prompt_tokens\":10,\"completion_tokens\":6,\"total_tokens\":16}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}, 5*time.Second)

	var got []string
	usage, err := client.CompleteStreaming(context.Background(), ai.Prompt{Name: "story_map", User: "u"}, ai.Options{}, func(s string) error {
		got = append(got, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{`{"nodes":`, `[]`, `,"edges":[]}`}, got)
	assert.Equal(t, `{"nodes":[],"edges":[]}`, strings.Join(got, ""))
	assert.Equal(t, 16, usage.TotalTokens)
}

func TestOpenAIClient_CompleteStreaming_HandlerErrorStops(t *testing.T) {
	client := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 3; i++ {
			fmt.Fprintf(w, "data: {\"id\":\"s1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"test-model\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"part%d\"}}]}\n\n", i)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}, 5*time.Second)

	stop := fmt.Errorf("stop")
	calls := 0
	_, err := client.CompleteStreaming(context.Background(), ai.Prompt{Name: "story_map", User: "u"}, ai.Options{}, func(string) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}
