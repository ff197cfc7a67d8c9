// Package middleware содержит middleware echo сервера.
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// LoggerConfig настраивает EchoZapLoggerWithConfig.
type LoggerConfig struct {
	Logger *zap.Logger
	// SkipPaths - маршруты без access-лога (health, метрики).
	SkipPaths []string
	// StreamSuffixes - окончания маршрутов долгоживущих потоков.
	StreamSuffixes []string
}

// DefaultLoggerConfig пропускает /healthz и /metrics и считает потоками SSE и WebSocket.
func DefaultLoggerConfig(log *zap.Logger) LoggerConfig {
	return LoggerConfig{
		Logger:         log,
		SkipPaths:      []string{"/healthz", "/metrics"},
		StreamSuffixes: []string{"/stream", "/ws"},
	}
}

// EchoZapLogger логирует запросы с настройками по умолчанию.
func EchoZapLogger(log *zap.Logger) echo.MiddlewareFunc {
	return EchoZapLoggerWithConfig(DefaultLoggerConfig(log))
}

// EchoZapLoggerWithConfig логирует каждый запрос через zap. Уровень выбирается по классу статуса.
// Потоки логируются один раз при закрытии, с длительностью соединения.
func EchoZapLoggerWithConfig(cfg LoggerConfig) echo.MiddlewareFunc {
	log := cfg.Logger.Named("HTTP")
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	isStream := func(route string) bool {
		for _, suffix := range cfg.StreamSuffixes {
			if strings.HasSuffix(route, suffix) {
				return true
			}
		}
		return false
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := skip[c.Request().URL.Path]; ok {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			req := c.Request()
			res := c.Response()
			route := c.Path()
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("route", route),
				zap.String("uri", req.RequestURI),
				zap.String("remote_ip", c.RealIP()),
				zap.Int("status", res.Status),
			}
			if id := c.Param("id"); id != "" {
				fields = append(fields, zap.String("session_id", id))
			}
			if id := res.Header().Get(echo.HeaderXRequestID); id != "" {
				fields = append(fields, zap.String("request_id", id))
			} else if id := req.Header.Get(echo.HeaderXRequestID); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}

			if isStream(route) && err == nil {
				log.Info("Stream closed", append(fields, zap.Duration("connected", time.Since(start)))...)
				return nil
			}

			fields = append(fields, zap.Duration("latency", time.Since(start)))
			if err != nil {
				log.Error("Handler error", append(fields, zap.Error(err))...)
				return err
			}
			switch n := res.Status; {
			case n >= http.StatusInternalServerError:
				log.Error("Server error", fields...)
			case n >= http.StatusBadRequest:
				log.Warn("Client error", fields...)
			default:
				log.Info("Request handled", fields...)
			}
			return nil
		}
	}
}
