// Package progress реализует канал прогресса сессии: публикация событий в топик
// session:<id> и подписка на него. Повторная доставка и история не поддерживаются.
package progress

import (
	"context"
	"errors"
	"time"
)

// DefaultPollWindow - ограниченное окно ожидания следующего сообщения.
// По истечении окна подписка переопрашивает транспорт и проверяет отмену контекста.
const DefaultPollWindow = 20 * time.Second

// ErrSubscriptionClosed - подписка закрыта.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Channel - транспорт событий прогресса.
type Channel interface {
	// Publish отправляет payload подписчикам, подключенным в момент публикации.
	Publish(ctx context.Context, sessionID string, payload []byte) error
	// Subscribe подписывается на топик сессии. Подписка активна к моменту возврата.
	Subscribe(ctx context.Context, sessionID string) (Subscription, error)
	Close() error
}

// Subscription - последовательность событий одного топика, не перезапускаемая.
type Subscription interface {
	// Next блокируется до следующего сообщения, отмены ctx или закрытия подписки.
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Topic возвращает имя топика сессии.
func Topic(sessionID string) string {
	return "session:" + sessionID
}

func pollWindow(w time.Duration) time.Duration {
	if w <= 0 {
		return DefaultPollWindow
	}
	return w
}
