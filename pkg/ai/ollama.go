package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

const providerOllama = "ollama"

// ollamaClient работает с нативным API Ollama.
type ollamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

var _ StreamingClient = (*ollamaClient)(nil)

func newOllamaClient(cfg Config, logger *zap.Logger) (*ollamaClient, error) {
	// api.NewClient ожидает адрес без суффикса /v1
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1")
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid base url %q: %w", baseURL, err)
	}

	logger.Info("Ollama client created",
		zap.String("baseURL", baseURL),
		zap.String("model", cfg.Model),
		zap.Duration("timeout", cfg.Timeout),
	)
	return &ollamaClient{
		client:  api.NewClient(parsedURL, &http.Client{Timeout: cfg.Timeout}),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger.Named("OllamaClient"),
	}, nil
}

func (c *ollamaClient) request(p Prompt, opts Options, stream bool) *api.ChatRequest {
	var messages []api.Message
	if strings.TrimSpace(p.System) != "" {
		messages = append(messages, api.Message{Role: "system", Content: p.System})
	}
	if p.User != "" {
		messages = append(messages, api.Message{Role: "user", Content: p.User})
	}
	options := map[string]interface{}{}
	if opts.Temperature != nil {
		options["temperature"] = *opts.Temperature
	}
	if opts.TopP != nil {
		options["top_p"] = *opts.TopP
	}
	if opts.MaxTokens != nil {
		options["num_predict"] = *opts.MaxTokens
	}
	return &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}
}

func (c *ollamaClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Complete выполняет запрос без стриминга.
func (c *ollamaClient) Complete(ctx context.Context, p Prompt, opts Options) (string, Usage, error) {
	requestCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, c.request(p, opts, false), func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(start)
	if err != nil {
		err = classifyError(err)
		c.logger.Warn("Chat request failed", zap.String("step", p.Name), zap.Duration("duration", duration), zap.Error(err))
		observeRequest(providerOllama, c.model, p.Name, statusOf(err), duration, Usage{})
		return "", Usage{}, err
	}
	if resp.Message.Content == "" {
		err = fmt.Errorf("%w: empty message", ErrUpstreamMalformedResponse)
		observeRequest(providerOllama, c.model, p.Name, statusOf(err), duration, Usage{})
		return "", Usage{}, err
	}

	usage := Usage{
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
	}
	observeRequest(providerOllama, c.model, p.Name, "success", duration, usage)
	return resp.Message.Content, usage, nil
}

// CompleteStreaming передает каждый непустой чанк в onFragment.
func (c *ollamaClient) CompleteStreaming(ctx context.Context, p Prompt, opts Options, onFragment func(string) error) (Usage, error) {
	requestCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	var (
		usage      Usage
		received   int
		handlerErr error
	)
	err := c.client.Chat(requestCtx, c.request(p, opts, true), func(resp api.ChatResponse) error {
		if resp.Message.Content != "" {
			received += len(resp.Message.Content)
			if onFragment != nil {
				if err := onFragment(resp.Message.Content); err != nil {
					handlerErr = err
					return err
				}
			}
		}
		if resp.Done {
			usage = Usage{
				PromptTokens:     resp.PromptEvalCount,
				CompletionTokens: resp.EvalCount,
				TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
			}
			if resp.DoneReason != "" && resp.DoneReason != "stop" {
				c.logger.Warn("Stream finished with unexpected reason", zap.String("step", p.Name), zap.String("reason", resp.DoneReason))
			}
		}
		return nil
	})
	duration := time.Since(start)
	if handlerErr != nil {
		return Usage{}, handlerErr
	}
	if err != nil {
		err = classifyError(err)
		c.logger.Warn("Chat stream failed", zap.String("step", p.Name), zap.Int("receivedChars", received), zap.Error(err))
		observeRequest(providerOllama, c.model, p.Name, statusOf(err), duration, Usage{})
		return Usage{}, err
	}
	if received == 0 {
		err = fmt.Errorf("%w: empty stream", ErrUpstreamMalformedResponse)
		observeRequest(providerOllama, c.model, p.Name, statusOf(err), duration, Usage{})
		return Usage{}, err
	}
	observeRequest(providerOllama, c.model, p.Name, "success", duration, usage)
	return usage, nil
}
