package progress

import (
	"context"
	"sync"
	"time"

	"storyline-server/internal/domain"

	"go.uber.org/zap"
)

const memorySubscriberBuffer = 256

// MemoryChannel - брокер в памяти процесса. Подходит для одного экземпляра сервера и тестов.
type MemoryChannel struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySubscription]struct{}
	window time.Duration
	closed bool
	logger *zap.Logger
}

var _ Channel = (*MemoryChannel)(nil)

func NewMemoryChannel(window time.Duration, logger *zap.Logger) *MemoryChannel {
	return &MemoryChannel{
		subs:   make(map[string]map[*memorySubscription]struct{}),
		window: pollWindow(window),
		logger: logger.Named("MemoryChannel"),
	}
}

func (m *MemoryChannel) Publish(_ context.Context, sessionID string, payload []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return domain.ErrChannelUnavailable
	}
	topic := Topic(sessionID)
	for sub := range m.subs[topic] {
		msg := append([]byte(nil), payload...)
		select {
		case sub.ch <- msg:
		default:
			m.logger.Warn("Subscriber buffer is full, dropping message", zap.String("topic", topic))
		}
	}
	return nil
}

func (m *MemoryChannel) Subscribe(_ context.Context, sessionID string) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, domain.ErrChannelUnavailable
	}
	topic := Topic(sessionID)
	sub := &memorySubscription{
		owner:  m,
		topic:  topic,
		ch:     make(chan []byte, memorySubscriberBuffer),
		window: m.window,
	}
	if m.subs[topic] == nil {
		m.subs[topic] = make(map[*memorySubscription]struct{})
	}
	m.subs[topic][sub] = struct{}{}
	return sub, nil
}

// Subscribers возвращает число активных подписок на топик сессии.
func (m *MemoryChannel) Subscribers(sessionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[Topic(sessionID)])
}

func (m *MemoryChannel) remove(sub *memorySubscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if set, ok := m.subs[sub.topic]; ok {
		if _, ok := set[sub]; ok {
			delete(set, sub)
			close(sub.ch)
		}
		if len(set) == 0 {
			delete(m.subs, sub.topic)
		}
	}
}

// Close закрывает все подписки.
func (m *MemoryChannel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	for topic, set := range m.subs {
		for sub := range set {
			close(sub.ch)
		}
		delete(m.subs, topic)
	}
	return nil
}

type memorySubscription struct {
	owner  *MemoryChannel
	topic  string
	ch     chan []byte
	window time.Duration
	once   sync.Once
}

func (s *memorySubscription) Next(ctx context.Context) ([]byte, error) {
	timer := time.NewTimer(s.window)
	defer timer.Stop()
	for {
		select {
		case msg, ok := <-s.ch:
			if !ok {
				return nil, ErrSubscriptionClosed
			}
			return msg, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			// окно истекло, переопрашиваем
			timer.Reset(s.window)
		}
	}
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() { s.owner.remove(s) })
	return nil
}
