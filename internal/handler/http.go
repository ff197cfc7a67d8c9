// Package handler содержит HTTP API игровых сессий: REST, SSE и WebSocket.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storyline-server/internal/domain"
	"storyline-server/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// APIError представляет стандартизированный ответ об ошибке.
type APIError struct {
	Message string `json:"message"`
}

// GameHandler обрабатывает HTTP запросы игровых сессий.
type GameHandler struct {
	service service.GameService
	logger  *zap.Logger

	// streams живет, пока сервер принимает потоковые подключения.
	streams      context.Context
	closeStreams context.CancelFunc
}

func NewGameHandler(s service.GameService, logger *zap.Logger) *GameHandler {
	streams, closeStreams := context.WithCancel(context.Background())
	return &GameHandler{
		service:      s,
		logger:       logger.Named("GameHandler"),
		streams:      streams,
		closeStreams: closeStreams,
	}
}

// CloseStreams завершает все открытые SSE и WebSocket подписки.
// Регистрируется через http.Server.RegisterOnShutdown: Shutdown не отменяет контексты запросов.
func (h *GameHandler) CloseStreams() {
	h.closeStreams()
}

// streamContext отменяется вместе с parent или при CloseStreams.
func (h *GameHandler) streamContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(h.streams, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// RegisterRoutes регистрирует маршруты API, health и метрики.
func (h *GameHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	{
		api.POST("/game", h.createGame)
		api.GET("/game/:id", h.getState)
		api.DELETE("/game/:id", h.deleteGame)
		api.POST("/game/:id/choice", h.submitChoice)
		api.GET("/game/:id/stream", h.streamEvents)
		api.GET("/game/:id/ws", h.serveWS)
	}
}

func (h *GameHandler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// RequestValidator - реализация echo.Validator поверх validator/v10.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *RequestValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%s: failed on %q", strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return err
	}
	return nil
}

func handleServiceError(c echo.Context, err error) error {
	var statusCode int
	var apiErr APIError

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, domain.ErrSessionNotFound):
		statusCode = http.StatusNotFound
		apiErr = APIError{Message: "Session not found"}
	case errors.Is(err, domain.ErrSessionNotReady):
		statusCode = http.StatusConflict
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, service.ErrServiceBusy):
		statusCode = http.StatusServiceUnavailable
		apiErr = APIError{Message: service.ErrServiceBusy.Error()}
	default:
		statusCode = http.StatusInternalServerError
		apiErr = APIError{Message: "Internal server error"}
	}
	return c.JSON(statusCode, apiErr)
}
