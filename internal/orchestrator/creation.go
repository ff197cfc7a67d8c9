package orchestrator

import (
	"context"
	"fmt"
	"time"

	"storyline-server/internal/domain"
	"storyline-server/internal/fallback"
	"storyline-server/internal/metrics"
	"storyline-server/internal/prompts"
	"storyline-server/pkg/ai"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Сообщения событий прогресса пайплайна создания.
const (
	MsgConstructingConcept = "Constructing the story concept..."
	MsgBuildingMap         = "Building the world map..."
	MsgWritingOpening      = "Writing the opening scene..."
	MsgMapFallback         = "Failed to generate the story map, using a fallback map."
	MsgSaveFailed          = "Failed to save the generated story."
)

// RunCreation выполняет пайплайн создания для уже сохраненной pending-сессии.
// Шаги не прерывают пайплайн: при ошибке применяется fallback. Ошибка возвращается
// только если не удалось сохранить результат.
func (o *Orchestrator) RunCreation(ctx context.Context, sessionID, storyType string) error {
	ctx, span := o.tracer.Start(ctx, "pipeline.creation", trace.WithAttributes(
		attribute.String("session_id", sessionID),
		attribute.String("story_type", storyType),
	))
	defer span.End()

	started := o.now()
	metrics.PipelineStarted()
	defer func() {
		metrics.PipelineFinished()
		metrics.ObservePipeline("creation", o.now().Sub(started))
	}()
	log := o.logger.With(zap.String("session_id", sessionID), zap.String("story_type", storyType))
	log.Info("Creation pipeline started")

	// 1. Концепция
	o.publish(ctx, sessionID, domain.ProgressMessage(MsgConstructingConcept))
	concept := runStep(ctx, o, step[domain.Concept]{
		name:     prompts.StepConcept,
		data:     prompts.Data{StoryType: storyType},
		parse:    o.parseConcept,
		fallback: func() domain.Concept { return fallback.Concept(storyType) },
	}).Value

	// 2. Карта сюжета, с heartbeat при потоковой генерации
	o.publish(ctx, sessionID, domain.ProgressMessage(MsgBuildingMap))
	mapStep := step[*domain.StoryMap]{
		name: prompts.StepStoryMap,
		data: prompts.Data{
			StoryType: storyType,
			Author:    concept.Author,
			Title:     concept.Title,
			NodeNum:   o.cfg.NodeNum,
		},
		parse:    o.parseStoryMap,
		fallback: fallback.StoryMap,
	}
	var mapResult StepResult[*domain.StoryMap]
	if _, streaming := o.client.(ai.StreamingClient); streaming {
		hb := startHeartbeat(o.cfg.HeartbeatInterval, o.now, func(elapsed time.Duration, received int) {
			o.publish(ctx, sessionID, domain.ProgressHeartbeat(MsgBuildingMap, elapsed, received))
		})
		mapStep.onFragment = hb.observe
		mapResult = runStep(ctx, o, mapStep)
		hb.Stop()
	} else {
		mapResult = runStep(ctx, o, mapStep)
	}
	storyMap := mapResult.Value
	if mapResult.FallbackApplied() {
		o.publish(ctx, sessionID, domain.ErrorMessage(MsgMapFallback))
	}

	// 3. Начальный узел
	startContent := fallback.PlaceholderStartContent
	if node, ok := storyMap.FindNode(domain.StartNodeID); ok && node.Details != "" {
		startContent = node.Details
	} else {
		log.Warn("Story map has no usable start node, using placeholder content")
	}

	// 4. Варианты выбора
	o.publish(ctx, sessionID, domain.ProgressMessage(MsgWritingOpening))
	choices := runStep(ctx, o, step[[]domain.Choice]{
		name: prompts.StepChoices,
		data: prompts.Data{
			WritingStyle: concept.WritingStyle,
			StoryMapJSON: mustJSON(storyMap),
			SceneContent: startContent,
		},
		parse:    o.parseChoices,
		fallback: fallback.Choices,
	}).Value

	// 5. Сборка сцены и истории
	scene := &domain.Scene{
		Content:       startContent,
		Choices:       choices,
		CurrentNodeID: domain.StartNodeID,
	}
	history := []domain.Turn{{Role: domain.RoleNarrator, Content: startContent}}

	// 6. Одно обновление со всеми полями
	ready := domain.SessionStatusReady
	updated, err := o.repo.ReplaceFields(ctx, sessionID, domain.SessionFields{
		Status:       &ready,
		WritingStyle: &concept.WritingStyle,
		Author:       &concept.Author,
		Title:        &concept.Title,
		StoryMap:     storyMap,
		StoryHistory: history,
		CurrentScene: scene,
	})
	if err != nil {
		log.Error("Failed to persist generated session", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.publish(ctx, sessionID, domain.ErrorMessage(MsgSaveFailed))
		return fmt.Errorf("persist session %s: %w", sessionID, err)
	}

	// 7. Карта, затем начальная сцена
	o.publish(ctx, sessionID, domain.StoryMapReady(updated.StoryMap))
	o.publish(ctx, sessionID, domain.InitialSceneReady(updated.CurrentScene, updated.Author, updated.Title, updated.StoryHistory))

	log.Info("Creation pipeline finished",
		zap.Bool("map_fallback", mapResult.FallbackApplied()),
		zap.Duration("duration", o.now().Sub(started)),
	)
	return nil
}
