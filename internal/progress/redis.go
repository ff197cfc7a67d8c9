package progress

import (
	"context"
	"fmt"
	"time"

	"storyline-server/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient создает клиент по URL вида redis://host:port/db и проверяет соединение.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisChannel - канал прогресса поверх Redis Pub/Sub.
type RedisChannel struct {
	client *redis.Client
	window time.Duration
	logger *zap.Logger
}

var _ Channel = (*RedisChannel)(nil)

func NewRedisChannel(client *redis.Client, window time.Duration, logger *zap.Logger) *RedisChannel {
	return &RedisChannel{
		client: client,
		window: pollWindow(window),
		logger: logger.Named("RedisChannel"),
	}
}

func (r *RedisChannel) Publish(ctx context.Context, sessionID string, payload []byte) error {
	if err := r.client.Publish(ctx, Topic(sessionID), payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrChannelUnavailable, err)
	}
	return nil
}

func (r *RedisChannel) Subscribe(ctx context.Context, sessionID string) (Subscription, error) {
	topic := Topic(sessionID)
	ps := r.client.Subscribe(ctx, topic)
	// Дожидаемся подтверждения, чтобы не пропустить события, опубликованные сразу после возврата.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %v", domain.ErrChannelUnavailable, topic, err)
	}
	r.logger.Debug("Subscribed", zap.String("topic", topic))
	return &redisSubscription{
		ps:       ps,
		messages: ps.Channel(redis.WithChannelSize(redisSubscriberBuffer)),
		window:   r.window,
	}, nil
}

// Close закрывает клиент Redis.
func (r *RedisChannel) Close() error {
	return r.client.Close()
}

const redisSubscriberBuffer = 256

// redisSubscription читает сообщения из канала go-redis, а не через ReceiveTimeout:
// ReceiveTimeout не прерывается отменой ctx.
type redisSubscription struct {
	ps       *redis.PubSub
	messages <-chan *redis.Message
	window   time.Duration
}

func (s *redisSubscription) Next(ctx context.Context) ([]byte, error) {
	timer := time.NewTimer(s.window)
	defer timer.Stop()
	for {
		select {
		case msg, ok := <-s.messages:
			if !ok {
				return nil, ErrSubscriptionClosed
			}
			return []byte(msg.Payload), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			// окно истекло, переопрашиваем
			timer.Reset(s.window)
		}
	}
}

func (s *redisSubscription) Close() error {
	return s.ps.Close()
}
