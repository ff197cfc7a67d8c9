package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const providerGemini = "gemini"

type geminiClient struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

var _ StreamingClient = (*geminiClient)(nil)

func newGeminiClient(ctx context.Context, cfg Config, logger *zap.Logger) (*geminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}
	logger.Info("Gemini client created", zap.String("model", cfg.Model))
	return &geminiClient{
		client: client,
		model:  cfg.Model,
		logger: logger.Named("GeminiClient"),
	}, nil
}

func (c *geminiClient) generativeModel(p Prompt, opts Options) *genai.GenerativeModel {
	m := c.client.GenerativeModel(c.model)
	if opts.Temperature != nil {
		m.SetTemperature(float32(*opts.Temperature))
	}
	if opts.TopP != nil {
		m.SetTopP(float32(*opts.TopP))
	}
	if opts.MaxTokens != nil {
		m.SetMaxOutputTokens(int32(*opts.MaxTokens))
	}
	if strings.TrimSpace(p.System) != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(p.System)}}
	}
	return m
}

// responseText склеивает текстовые части первого кандидата.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

func usageOf(resp *genai.GenerateContentResponse) Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return Usage{}
	}
	return Usage{
		PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
	}
}

func (c *geminiClient) Complete(ctx context.Context, p Prompt, opts Options) (string, Usage, error) {
	start := time.Now()
	resp, err := c.generativeModel(p, opts).GenerateContent(ctx, genai.Text(p.User))
	duration := time.Since(start)
	if err != nil {
		err = classifyError(err)
		c.logger.Warn("GenerateContent failed", zap.String("step", p.Name), zap.Error(err))
		observeRequest(providerGemini, c.model, p.Name, statusOf(err), duration, Usage{})
		return "", Usage{}, err
	}
	text := responseText(resp)
	if text == "" {
		err = fmt.Errorf("%w: no text candidates", ErrUpstreamMalformedResponse)
		observeRequest(providerGemini, c.model, p.Name, statusOf(err), duration, Usage{})
		return "", Usage{}, err
	}
	usage := usageOf(resp)
	observeRequest(providerGemini, c.model, p.Name, "success", duration, usage)
	return text, usage, nil
}

func (c *geminiClient) CompleteStreaming(ctx context.Context, p Prompt, opts Options, onFragment func(string) error) (Usage, error) {
	start := time.Now()
	iter := c.generativeModel(p, opts).GenerateContentStream(ctx, genai.Text(p.User))

	var (
		usage    Usage
		received int
	)
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			err = classifyError(err)
			c.logger.Warn("Content stream failed", zap.String("step", p.Name), zap.Int("receivedChars", received), zap.Error(err))
			observeRequest(providerGemini, c.model, p.Name, statusOf(err), time.Since(start), Usage{})
			return Usage{}, err
		}
		if u := usageOf(resp); u.TotalTokens > 0 {
			usage = u
		}
		chunk := responseText(resp)
		if chunk == "" {
			continue
		}
		received += len(chunk)
		if onFragment != nil {
			if err := onFragment(chunk); err != nil {
				return Usage{}, err
			}
		}
	}

	duration := time.Since(start)
	if received == 0 {
		err := fmt.Errorf("%w: empty stream", ErrUpstreamMalformedResponse)
		observeRequest(providerGemini, c.model, p.Name, statusOf(err), duration, Usage{})
		return Usage{}, err
	}
	observeRequest(providerGemini, c.model, p.Name, "success", duration, usage)
	return usage, nil
}

// Close освобождает соединения клиента.
func (c *geminiClient) Close() error {
	return c.client.Close()
}
