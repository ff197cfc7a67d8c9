// Package metrics содержит Prometheus метрики пайплайна и каналов доставки.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyline_pipeline_steps_total",
			Help: "Generation steps by step name and outcome (valid, fallback).",
		},
		[]string{"step", "outcome"},
	)
	pipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyline_pipeline_duration_seconds",
			Help:    "Duration of creation and choice pipelines.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"pipeline"},
	)
	pipelinesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storyline_creation_pipelines_in_flight",
			Help: "Creation pipelines currently running in background.",
		},
	)
	progressEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyline_progress_events_total",
			Help: "Progress events published by event kind and result.",
		},
		[]string{"event", "result"},
	)
	streamSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storyline_stream_subscribers",
			Help: "Currently connected push-stream subscribers.",
		},
		[]string{"transport"},
	)
	sessionsSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storyline_sessions_swept_total",
			Help: "Inactive sessions deleted by the sweeper.",
		},
	)
)

func IncStep(step, outcome string) {
	pipelineStepsTotal.WithLabelValues(step, outcome).Inc()
}

func ObservePipeline(pipeline string, d time.Duration) {
	pipelineDuration.WithLabelValues(pipeline).Observe(d.Seconds())
}

func PipelineStarted()  { pipelinesInFlight.Inc() }
func PipelineFinished() { pipelinesInFlight.Dec() }

func IncEvent(event, result string) {
	progressEventsTotal.WithLabelValues(event, result).Inc()
}

func SubscriberConnected(transport string)    { streamSubscribers.WithLabelValues(transport).Inc() }
func SubscriberDisconnected(transport string) { streamSubscribers.WithLabelValues(transport).Dec() }

func AddSwept(n int) {
	sessionsSweptTotal.Add(float64(n))
}

// StepCount возвращает счетчик шагов для проверок в тестах.
func StepCount(step, outcome string) prometheus.Counter {
	return pipelineStepsTotal.WithLabelValues(step, outcome)
}

// SweptCounter возвращает счетчик удаленных сессий.
func SweptCounter() prometheus.Counter {
	return sessionsSweptTotal
}
