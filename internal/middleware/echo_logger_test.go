package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEchoZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := echo.New()
	e.Use(EchoZapLogger(zap.New(core)))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/missing", func(c echo.Context) error { return c.JSON(http.StatusNotFound, map[string]string{"message": "x"}) })
	e.GET("/boom", func(c echo.Context) error { return errors.New("boom") })

	for _, path := range []string{"/ok", "/missing", "/boom"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(echo.HeaderXRequestID, "req-1")
		e.ServeHTTP(httptest.NewRecorder(), req)
	}

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "HTTP", entries[0].LoggerName)
	assert.Equal(t, int64(http.StatusNoContent), entries[0].ContextMap()["status"])
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "Client error", entries[1].Message)

	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "Handler error", entries[2].Message)
	assert.Equal(t, "boom", entries[2].ContextMap()["error"])
}

func TestEchoZapLogger_SkipsProbesAndLogsStreams(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := echo.New()
	e.Use(EchoZapLogger(zap.New(core)))
	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/api/v1/game/:id", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/api/v1/game/:id/stream", func(c echo.Context) error {
		c.Response().WriteHeader(http.StatusOK)
		return nil
	})

	for _, path := range []string{"/healthz", "/api/v1/game/g1", "/api/v1/game/g1/stream"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, "Request handled", entries[0].Message)
	assert.Equal(t, "g1", entries[0].ContextMap()["session_id"])
	assert.Equal(t, "/api/v1/game/:id", entries[0].ContextMap()["route"])

	assert.Equal(t, "Stream closed", entries[1].Message)
	assert.Equal(t, "g1", entries[1].ContextMap()["session_id"])
	assert.Contains(t, entries[1].ContextMap(), "connected")
	assert.NotContains(t, entries[1].ContextMap(), "latency")
}
