package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/ollama/ollama/api"
	openaigo "github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"
)

var (
	// ErrUpstreamUnavailable - сервис генерации недоступен или вернул ошибку.
	ErrUpstreamUnavailable = errors.New("generation upstream unavailable")
	// ErrUpstreamTimeout - истек таймаут запроса к сервису генерации.
	ErrUpstreamTimeout = errors.New("generation upstream timeout")
	// ErrUpstreamMalformedResponse - ответ получен, но в нем нет текста.
	ErrUpstreamMalformedResponse = errors.New("generation upstream malformed response")
	// ErrUpstreamRejected - запрос отклонен со статусом 4xx. Всегда идет вместе с
	// ErrUpstreamUnavailable и не повторяется.
	ErrUpstreamRejected = errors.New("generation upstream rejected request")
)

// Prompt - запрос к модели. Name идентифицирует шаг генерации в логах и метриках.
type Prompt struct {
	Name   string
	System string
	User   string
}

// Options - параметры генерации. Указатели позволяют отличить 0 от отсутствия значения.
type Options struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// Usage - информация об использованных токенах.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Estimated        bool
}

// Client - разовая генерация текста.
type Client interface {
	Complete(ctx context.Context, prompt Prompt, opts Options) (string, Usage, error)
}

// StreamingClient дополнительно умеет отдавать текст фрагментами по мере генерации.
// Конкатенация фрагментов в порядке поступления совпадает с результатом Complete.
// Ошибка из onFragment прерывает поток и возвращается как есть.
type StreamingClient interface {
	Client
	CompleteStreaming(ctx context.Context, prompt Prompt, opts Options, onFragment func(string) error) (Usage, error)
}

// Float64 и Int - хелперы для заполнения Options.
func Float64(v float64) *float64 { return &v }
func Int(v int) *int             { return &v }

// classifyError приводит ошибку транспорта к одной из ошибок пакета.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUpstreamTimeout) || errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, ErrUpstreamMalformedResponse) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	switch code := httpStatus(err); {
	case code == http.StatusRequestTimeout:
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	case code == http.StatusTooManyRequests:
	case code >= 400 && code < 500:
		return fmt.Errorf("%w: %w: %v", ErrUpstreamUnavailable, ErrUpstreamRejected, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}

// httpStatus достает HTTP-статус из ошибок SDK провайдеров, 0 если его нет.
func httpStatus(err error) int {
	var apiErr *openaigo.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openaigo.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code
	}
	return 0
}

// IsTransient сообщает, имеет ли смысл повторить запрос.
func IsTransient(err error) bool {
	if errors.Is(err, ErrUpstreamTimeout) {
		return true
	}
	return errors.Is(err, ErrUpstreamUnavailable) && !errors.Is(err, ErrUpstreamRejected)
}

func float32Val(f *float64) float32 {
	if f == nil {
		return 0
	}
	return float32(*f)
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
