package ai

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyline_ai_requests_total",
			Help: "Total number of requests to the generation upstream.",
		},
		[]string{"provider", "model", "step", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyline_ai_request_duration_seconds",
			Help:    "Histogram of generation request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "model", "step"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyline_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"provider", "model"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyline_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"provider", "model"},
	)
)

// observeRequest фиксирует результат запроса и, если есть, использование токенов.
func observeRequest(provider, model, step, status string, duration time.Duration, usage Usage) {
	aiRequestsTotal.WithLabelValues(provider, model, step, status).Inc()
	aiRequestDuration.WithLabelValues(provider, model, step).Observe(duration.Seconds())
	if usage.TotalTokens > 0 {
		aiPromptTokens.WithLabelValues(provider, model).Observe(float64(usage.PromptTokens))
		aiCompletionTokens.WithLabelValues(provider, model).Observe(float64(usage.CompletionTokens))
	}
}

// statusOf возвращает метку статуса для ошибки.
func statusOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrUpstreamTimeout):
		return "timeout"
	case errors.Is(err, ErrUpstreamRejected):
		return "rejected"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "unavailable"
	case errors.Is(err, ErrUpstreamMalformedResponse):
		return "malformed"
	default:
		return "error"
	}
}
