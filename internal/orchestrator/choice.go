package orchestrator

import (
	"context"
	"fmt"

	"storyline-server/internal/domain"
	"storyline-server/internal/fallback"
	"storyline-server/internal/metrics"
	"storyline-server/internal/prompts"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SubmitChoice генерирует следующую сцену по выбору игрока и сохраняет ее.
// Выборы одной сессии обрабатываются по очереди. Для неизвестной сессии
// возвращается domain.ErrSessionNotFound без изменений в хранилище.
func (o *Orchestrator) SubmitChoice(ctx context.Context, sessionID, choiceText string) (*domain.GameState, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.choice", trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	unlock := o.locks.lock(sessionID)
	defer unlock()

	started := o.now()
	defer func() { metrics.ObservePipeline("choice", o.now().Sub(started)) }()
	log := o.logger.With(zap.String("session_id", sessionID))

	session, err := o.repo.GetByID(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if session.Status != domain.SessionStatusReady {
		return nil, domain.ErrSessionNotReady
	}

	history := make([]domain.Turn, 0, len(session.StoryHistory)+2)
	history = append(history, session.StoryHistory...)
	history = append(history, domain.Turn{Role: domain.RolePlayer, Content: choiceText})

	result := runStep(ctx, o, step[*domain.Scene]{
		name: prompts.StepNextScene,
		data: prompts.Data{
			WritingStyle: session.WritingStyle,
			StoryMapJSON: mustJSON(session.StoryMap),
			HistoryJSON:  mustJSON(lastTurns(history, HistoryWindow)),
			ChoiceText:   choiceText,
		},
		parse:    o.parseScene,
		fallback: func() *domain.Scene { return nil },
	})

	var scene *domain.Scene
	if result.FallbackApplied() {
		scene, history = fallback.NextScene(session.StoryHistory, choiceText)
	} else {
		scene = result.Value
		history = append(history, domain.Turn{Role: domain.RoleNarrator, Content: scene.Content})
	}

	updated, err := o.repo.ReplaceFields(ctx, sessionID, domain.SessionFields{
		StoryHistory: history,
		CurrentScene: scene,
	})
	if err != nil {
		log.Error("Failed to persist next scene", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("persist next scene: %w", err)
	}

	log.Info("Choice processed",
		zap.Bool("fallback", result.FallbackApplied()),
		zap.String("current_node_id", scene.CurrentNodeID),
		zap.Int("history_len", len(history)),
	)
	return domain.NewGameState(updated), nil
}

// lastTurns возвращает не более n последних реплик.
func lastTurns(history []domain.Turn, n int) []domain.Turn {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
