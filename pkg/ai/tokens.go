package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const fallbackEncoding = "cl100k_base"

var (
	encodingsMu sync.Mutex
	encodings   = map[string]*tiktoken.Tiktoken{}
)

// estimateTokens оценивает число токенов, когда провайдер не вернул usage.
// Если токенизатор недоступен, используется грубая оценка 4 символа на токен.
func estimateTokens(model, text string) int {
	if text == "" {
		return 0
	}
	if tke := encodingFor(model); tke != nil {
		return len(tke.Encode(text, nil, nil))
	}
	return (len([]rune(text)) + 3) / 4
}

func encodingFor(model string) *tiktoken.Tiktoken {
	encodingsMu.Lock()
	defer encodingsMu.Unlock()

	if tke, ok := encodings[model]; ok {
		return tke
	}
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tke, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		tke = nil
	}
	encodings[model] = tke
	return tke
}

// estimatedUsage строит Usage по тексту запроса и ответа.
func estimatedUsage(model string, prompt Prompt, completion string) Usage {
	p := estimateTokens(model, prompt.System) + estimateTokens(model, prompt.User)
	c := estimateTokens(model, completion)
	return Usage{PromptTokens: p, CompletionTokens: c, TotalTokens: p + c, Estimated: true}
}
