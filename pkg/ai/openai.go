package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const providerOpenAI = "openai"

// openAIClient работает с любым OpenAI-совместимым API.
type openAIClient struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

var _ StreamingClient = (*openAIClient)(nil)

func newOpenAIClient(cfg Config, logger *zap.Logger) (*openAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	openaiConfig := openaigo.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		openaiConfig.BaseURL = cfg.BaseURL
	}
	openaiConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	logger.Info("OpenAI client created",
		zap.String("baseURL", openaiConfig.BaseURL),
		zap.String("model", cfg.Model),
		zap.Duration("timeout", cfg.Timeout),
	)
	return &openAIClient{
		client: openaigo.NewClientWithConfig(openaiConfig),
		model:  cfg.Model,
		logger: logger.Named("OpenAIClient"),
	}, nil
}

func (c *openAIClient) messages(p Prompt) []openaigo.ChatCompletionMessage {
	var messages []openaigo.ChatCompletionMessage
	if strings.TrimSpace(p.System) != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleSystem, Content: p.System})
	}
	if p.User != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleUser, Content: p.User})
	}
	return messages
}

// Complete выполняет разовый запрос chat completion.
func (c *openAIClient) Complete(ctx context.Context, p Prompt, opts Options) (string, Usage, error) {
	start := time.Now()
	log := c.logger.With(zap.String("step", p.Name))
	log.Debug("Sending completion request", zap.Int("systemBytes", len(p.System)), zap.Int("userBytes", len(p.User)))

	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    c.messages(p),
		Temperature: float32Val(opts.Temperature),
		MaxTokens:   intVal(opts.MaxTokens),
		TopP:        float32Val(opts.TopP),
	})
	duration := time.Since(start)
	if err != nil {
		err = classifyError(err)
		log.Warn("Completion request failed", zap.Duration("duration", duration), zap.Error(err))
		observeRequest(providerOpenAI, c.model, p.Name, statusOf(err), duration, Usage{})
		return "", Usage{}, err
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		err = fmt.Errorf("%w: empty choices", ErrUpstreamMalformedResponse)
		log.Warn("Completion returned no content", zap.Duration("duration", duration))
		observeRequest(providerOpenAI, c.model, p.Name, statusOf(err), duration, Usage{})
		return "", Usage{}, err
	}

	text := resp.Choices[0].Message.Content
	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	if usage.TotalTokens == 0 {
		usage = estimatedUsage(c.model, p, text)
	}
	observeRequest(providerOpenAI, c.model, p.Name, "success", duration, usage)
	log.Debug("Completion received", zap.Duration("duration", duration), zap.Int("chars", len(text)), zap.Int("totalTokens", usage.TotalTokens))
	return text, usage, nil
}

// CompleteStreaming читает поток дельт и передает каждую в onFragment.
func (c *openAIClient) CompleteStreaming(ctx context.Context, p Prompt, opts Options, onFragment func(string) error) (Usage, error) {
	start := time.Now()
	log := c.logger.With(zap.String("step", p.Name))

	stream, err := c.client.CreateChatCompletionStream(ctx, openaigo.ChatCompletionRequest{
		Model:         c.model,
		Messages:      c.messages(p),
		Stream:        true,
		StreamOptions: &openaigo.StreamOptions{IncludeUsage: true},
		Temperature:   float32Val(opts.Temperature),
		MaxTokens:     intVal(opts.MaxTokens),
		TopP:          float32Val(opts.TopP),
	})
	if err != nil {
		err = classifyError(err)
		log.Warn("Failed to open completion stream", zap.Error(err))
		observeRequest(providerOpenAI, c.model, p.Name, statusOf(err), time.Since(start), Usage{})
		return Usage{}, err
	}
	defer stream.Close()

	var (
		text       strings.Builder
		finalUsage *openaigo.Usage
	)
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			err = classifyError(err)
			log.Warn("Completion stream read failed", zap.Int("receivedChars", text.Len()), zap.Error(err))
			observeRequest(providerOpenAI, c.model, p.Name, statusOf(err), time.Since(start), Usage{})
			return Usage{}, err
		}
		if response.Usage != nil && response.Usage.TotalTokens > 0 {
			finalUsage = response.Usage
		}
		if len(response.Choices) == 0 {
			continue
		}
		chunk := response.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		text.WriteString(chunk)
		if onFragment != nil {
			if err := onFragment(chunk); err != nil {
				return Usage{}, err
			}
		}
	}

	duration := time.Since(start)
	if text.Len() == 0 {
		err := fmt.Errorf("%w: empty stream", ErrUpstreamMalformedResponse)
		observeRequest(providerOpenAI, c.model, p.Name, statusOf(err), duration, Usage{})
		return Usage{}, err
	}

	var usage Usage
	if finalUsage != nil {
		usage = Usage{
			PromptTokens:     finalUsage.PromptTokens,
			CompletionTokens: finalUsage.CompletionTokens,
			TotalTokens:      finalUsage.TotalTokens,
		}
	} else {
		log.Debug("Final usage block not received in stream, estimating")
		usage = estimatedUsage(c.model, p, text.String())
	}
	observeRequest(providerOpenAI, c.model, p.Name, "success", duration, usage)
	return usage, nil
}
