package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storyline-server/internal/domain"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ExchangeProgress - имя exchange для событий прогресса. Ключ маршрутизации совпадает с топиком сессии.
const ExchangeProgress = "storyline.progress"

// AMQPChannel - канал прогресса поверх RabbitMQ. Каждая подписка получает
// собственную эксклюзивную очередь, удаляемую при отключении.
type AMQPChannel struct {
	conn   *amqp091.Connection
	mu     sync.Mutex
	ch     *amqp091.Channel
	window time.Duration
	logger *zap.Logger
}

var _ Channel = (*AMQPChannel)(nil)

// NewAMQPChannel открывает канал публикации и объявляет exchange.
// Соединение conn управляется вызывающим кодом.
func NewAMQPChannel(conn *amqp091.Connection, window time.Duration, logger *zap.Logger) (*AMQPChannel, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}
	log := logger.Named("AMQPChannel")

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := declareExchange(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}
	log.Info("Progress exchange declared", zap.String("exchange", ExchangeProgress))

	return &AMQPChannel{conn: conn, ch: ch, window: pollWindow(window), logger: log}, nil
}

func declareExchange(ch *amqp091.Channel) error {
	err := ch.ExchangeDeclare(
		ExchangeProgress, // name
		"direct",         // type
		false,            // durable
		false,            // auto-deleted
		false,            // internal
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange '%s': %w", ExchangeProgress, err)
	}
	return nil
}

func (a *AMQPChannel) Publish(ctx context.Context, sessionID string, payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ch == nil {
		return domain.ErrChannelUnavailable
	}
	err := a.ch.PublishWithContext(ctx,
		ExchangeProgress, // exchange
		Topic(sessionID), // routing key
		false,            // mandatory
		false,            // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        payload,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("%w: publish %s: %v", domain.ErrChannelUnavailable, Topic(sessionID), err)
	}
	return nil
}

func (a *AMQPChannel) Subscribe(_ context.Context, sessionID string) (Subscription, error) {
	topic := Topic(sessionID)

	ch, err := a.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%w: open channel: %v", domain.ErrChannelUnavailable, err)
	}
	fail := func(step string, err error) (Subscription, error) {
		_ = ch.Close()
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrChannelUnavailable, step, topic, err)
	}

	q, err := ch.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fail("declare queue", err)
	}
	if err := ch.QueueBind(q.Name, topic, ExchangeProgress, false, nil); err != nil {
		return fail("bind queue", err)
	}
	deliveries, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fail("consume", err)
	}

	a.logger.Debug("Subscribed", zap.String("topic", topic), zap.String("queue", q.Name))
	return &amqpSubscription{ch: ch, deliveries: deliveries, topic: topic, window: a.window}, nil
}

// Close закрывает канал публикации. Соединение не закрывается.
func (a *AMQPChannel) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ch == nil {
		return nil
	}
	err := a.ch.Close()
	a.ch = nil
	return err
}

type amqpSubscription struct {
	ch         *amqp091.Channel
	deliveries <-chan amqp091.Delivery
	topic      string
	window     time.Duration
	once       sync.Once
}

func (s *amqpSubscription) Next(ctx context.Context) ([]byte, error) {
	timer := time.NewTimer(s.window)
	defer timer.Stop()
	for {
		select {
		case d, ok := <-s.deliveries:
			if !ok {
				return nil, ErrSubscriptionClosed
			}
			return d.Body, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			timer.Reset(s.window)
		}
	}
}

func (s *amqpSubscription) Close() error {
	var err error
	s.once.Do(func() { err = s.ch.Close() })
	return err
}
