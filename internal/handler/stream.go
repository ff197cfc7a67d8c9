package handler

import (
	"errors"
	"net/http"

	"storyline-server/internal/metrics"
	"storyline-server/internal/progress"
	"storyline-server/internal/stream"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// streamEvents отдает события прогресса сессии как text/event-stream до отключения клиента.
// Отключение клиента не влияет на пайплайн. CloseStreams завершает поток.
func (h *GameHandler) streamEvents(c echo.Context) error {
	ctx, cancel := h.streamContext(c.Request().Context())
	defer cancel()
	sessionID := c.Param("id")
	log := h.logger.With(zap.String("session_id", sessionID), zap.String("transport", "sse"))

	sub, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		return handleServiceError(c, err)
	}
	defer sub.Close()

	metrics.SubscriberConnected("sse")
	defer metrics.SubscriberDisconnected("sse")

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()
	log.Debug("Stream opened")

	for {
		payload, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, progress.ErrSubscriptionClosed) {
				log.Warn("Progress subscription failed", zap.Error(err))
			}
			log.Debug("Stream closed")
			return nil
		}
		if _, err := res.Write(stream.Render(payload)); err != nil {
			log.Debug("Client gone", zap.Error(err))
			return nil
		}
		res.Flush()
	}
}
