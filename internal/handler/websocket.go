package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storyline-server/internal/metrics"
	"storyline-server/internal/progress"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	// Время, разрешенное для записи сообщения клиенту.
	writeWait = 10 * time.Second
	// Время, разрешенное для чтения следующего pong сообщения от клиента.
	pongWait = 60 * time.Second
	// Период пингов. Должен быть меньше pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Максимальный размер сообщения от клиента.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveWS пересылает события прогресса сессии текстовыми сообщениями WebSocket.
func (h *GameHandler) serveWS(c echo.Context) error {
	sessionID := c.Param("id")
	log := h.logger.With(zap.String("session_id", sessionID), zap.String("transport", "ws"))

	ctx, cancel := h.streamContext(context.WithoutCancel(c.Request().Context()))
	defer cancel()

	sub, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		return handleServiceError(c, err)
	}
	defer sub.Close()

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// upgrader уже ответил клиенту
		log.Warn("Failed to upgrade connection", zap.Error(err))
		return nil
	}
	defer conn.Close()

	metrics.SubscriberConnected("ws")
	defer metrics.SubscriberDisconnected("ws")
	log.Info("WebSocket connection established")

	go readPump(conn, cancel, log)

	send := make(chan []byte, 16)
	go func() {
		defer close(send)
		for {
			payload, err := sub.Next(ctx)
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, progress.ErrSubscriptionClosed) {
					log.Warn("Progress subscription failed", zap.Error(err))
				}
				return
			}
			select {
			case send <- payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	writePump(ctx, conn, send, log)
	return nil
}

// readPump читает входящие кадры ради pong и close. Сообщения клиента игнорируются.
func readPump(conn *websocket.Conn, cancel context.CancelFunc, log *zap.Logger) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("WebSocket read error", zap.Error(err))
			} else {
				log.Info("WebSocket connection closed")
			}
			return
		}
		log.Debug("Received unexpected message from client (ignored)")
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, send <-chan []byte, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Debug("Failed to write message", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("Failed to send ping", zap.Error(err))
				return
			}
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}
