package orchestrator

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"storyline-server/internal/metrics"
	"storyline-server/internal/prompts"
	"storyline-server/pkg/ai"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Outcome - терминальное состояние шага генерации.
type Outcome string

const (
	OutcomeValid           Outcome = "valid"
	OutcomeFallbackApplied Outcome = "fallback"
)

// StepResult - результат шага: либо проверенная запись, либо подставленный fallback.
// Err хранит причину, по которой был применен fallback.
type StepResult[T any] struct {
	Value   T
	Outcome Outcome
	Err     error
}

func (r StepResult[T]) FallbackApplied() bool {
	return r.Outcome == OutcomeFallbackApplied
}

// step описывает один шаг генерации.
type step[T any] struct {
	name     string
	data     prompts.Data
	parse    func(raw string) (T, error)
	fallback func() T

	// onFragment включает потоковую генерацию, если клиент ее поддерживает.
	onFragment func(received int)
}

// runStep выполняет генерацию, извлечение, разбор и проверку записи.
// Любая ошибка приводит к fallback и никогда не возвращается вызывающему.
func runStep[T any](ctx context.Context, o *Orchestrator, s step[T]) StepResult[T] {
	ctx, span := o.tracer.Start(ctx, "step."+s.name, trace.WithAttributes(attribute.String("step", s.name)))
	defer span.End()
	log := o.logger.With(zap.String("step", s.name))

	result, err := func() (T, error) {
		var zero T
		prompt, opts, err := o.prompts.Render(s.name, s.data)
		if err != nil {
			return zero, fmt.Errorf("render prompt: %w", err)
		}
		raw, err := o.generate(ctx, prompt, opts, s.onFragment)
		if err != nil {
			return zero, err
		}
		return s.parse(raw)
	}()

	if err != nil {
		log.Warn("Generation step failed, applying fallback", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("outcome", string(OutcomeFallbackApplied)))
		metrics.IncStep(s.name, string(OutcomeFallbackApplied))
		return StepResult[T]{Value: s.fallback(), Outcome: OutcomeFallbackApplied, Err: err}
	}

	span.SetAttributes(attribute.String("outcome", string(OutcomeValid)))
	metrics.IncStep(s.name, string(OutcomeValid))
	log.Debug("Generation step succeeded")
	return StepResult[T]{Value: result, Outcome: OutcomeValid}
}

// generate вызывает модель с повторами при временных ошибках.
// Задержка растет экспоненциально от BaseRetryDelay с разбросом +-10%.
func (o *Orchestrator) generate(ctx context.Context, prompt ai.Prompt, opts ai.Options, onFragment func(int)) (string, error) {
	attempts := max(o.cfg.MaxAttempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		text, err := o.callOnce(ctx, prompt, opts, onFragment)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !ai.IsTransient(err) || attempt == attempts {
			break
		}

		wait := o.retryDelay(attempt)
		o.logger.Warn("Generation call failed, retrying",
			zap.String("step", prompt.Name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("%w: %v", ai.ErrUpstreamTimeout, ctx.Err())
		}
	}
	return "", lastErr
}

func (o *Orchestrator) retryDelay(attempt int) time.Duration {
	base := o.cfg.BaseRetryDelay
	if base <= 0 {
		return 0
	}
	delay := float64(base) * math.Pow(2, float64(attempt-1))
	jitter := delay * 0.1
	delay += jitter * (rand.Float64()*2 - 1)
	return time.Duration(delay)
}

func (o *Orchestrator) callOnce(ctx context.Context, prompt ai.Prompt, opts ai.Options, onFragment func(int)) (string, error) {
	streaming, ok := o.client.(ai.StreamingClient)
	if onFragment == nil || !ok {
		text, _, err := o.client.Complete(ctx, prompt, opts)
		return text, err
	}

	var sb strings.Builder
	_, err := streaming.CompleteStreaming(ctx, prompt, opts, func(fragment string) error {
		sb.WriteString(fragment)
		onFragment(sb.Len())
		return nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// heartbeat публикует событие прогресса каждые interval, пока идет потоковый шаг,
// независимо от того, приходят ли фрагменты.
type heartbeat struct {
	received atomic.Int64
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

func startHeartbeat(interval time.Duration, now func() time.Time, emit func(elapsed time.Duration, received int)) *heartbeat {
	h := &heartbeat{stop: make(chan struct{}), done: make(chan struct{})}
	if interval <= 0 {
		close(h.done)
		return h
	}
	started := now()
	go func() {
		defer close(h.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				emit(now().Sub(started), int(h.received.Load()))
			case <-h.stop:
				return
			}
		}
	}()
	return h
}

// observe запоминает объем уже полученного текста.
func (h *heartbeat) observe(received int) {
	h.received.Store(int64(received))
}

// Stop останавливает тикер и ждет завершения последней публикации.
func (h *heartbeat) Stop() {
	h.once.Do(func() { close(h.stop) })
	<-h.done
}
