package progress_test

import (
	"context"
	"testing"
	"time"

	"storyline-server/internal/progress"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// ChannelIntegrationSuite проверяет транспорты прогресса на реальных брокерах.
type ChannelIntegrationSuite struct {
	suite.Suite
	ctx          context.Context
	rdContainer  *tcredis.RedisContainer
	rmqContainer *rabbitmq.RabbitMQContainer
	amqpConn     *amqp091.Connection
	logger       *zap.Logger
	channels     map[string]progress.Channel
	// idle - те же транспорты с окном опроса длиннее любого таймаута теста.
	idle map[string]progress.Channel
}

const idlePollWindow = 30 * time.Second

func (s *ChannelIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = zap.NewNop()
	s.channels = make(map[string]progress.Channel)
	s.idle = make(map[string]progress.Channel)

	var err error
	s.rdContainer, err = tcredis.Run(s.ctx,
		"docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").
				WithOccurrence(1).
				WithStartupTimeout(1*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start redis container")

	redisURL, err := s.rdContainer.ConnectionString(s.ctx)
	require.NoError(s.T(), err)
	redisClient, err := progress.NewRedisClient(s.ctx, redisURL)
	require.NoError(s.T(), err)
	s.channels["redis"] = progress.NewRedisChannel(redisClient, 200*time.Millisecond, s.logger)
	idleRedisClient, err := progress.NewRedisClient(s.ctx, redisURL)
	require.NoError(s.T(), err)
	s.idle["redis"] = progress.NewRedisChannel(idleRedisClient, idlePollWindow, s.logger)

	s.rmqContainer, err = rabbitmq.Run(s.ctx,
		"rabbitmq:3-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete"),
		),
	)
	require.NoError(s.T(), err, "Failed to start rabbitmq container")

	amqpURL, err := s.rmqContainer.AmqpURL(s.ctx)
	require.NoError(s.T(), err)
	s.amqpConn, err = amqp091.Dial(amqpURL)
	require.NoError(s.T(), err)
	amqpChannel, err := progress.NewAMQPChannel(s.amqpConn, 200*time.Millisecond, s.logger)
	require.NoError(s.T(), err)
	s.channels["amqp"] = amqpChannel
	idleAMQPChannel, err := progress.NewAMQPChannel(s.amqpConn, idlePollWindow, s.logger)
	require.NoError(s.T(), err)
	s.idle["amqp"] = idleAMQPChannel
	s.idle["memory"] = progress.NewMemoryChannel(idlePollWindow, s.logger)
}

func (s *ChannelIntegrationSuite) TearDownSuite() {
	for _, ch := range s.channels {
		_ = ch.Close()
	}
	for _, ch := range s.idle {
		_ = ch.Close()
	}
	if s.amqpConn != nil {
		_ = s.amqpConn.Close()
	}
	if s.rmqContainer != nil {
		_ = s.rmqContainer.Terminate(s.ctx)
	}
	if s.rdContainer != nil {
		_ = s.rdContainer.Terminate(s.ctx)
	}
}

func (s *ChannelIntegrationSuite) TestPublishSubscribeOrder() {
	for name, ch := range s.channels {
		s.Run(name, func() {
			sessionID := "order-" + name
			sub, err := ch.Subscribe(s.ctx, sessionID)
			s.Require().NoError(err)
			defer sub.Close()

			payloads := []string{`{"event":"progress"}`, `{"event":"storyMapReady"}`, `{"event":"initialSceneReady"}`}
			for _, p := range payloads {
				s.Require().NoError(ch.Publish(s.ctx, sessionID, []byte(p)))
			}

			ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
			defer cancel()
			for _, want := range payloads {
				got, err := sub.Next(ctx)
				s.Require().NoError(err)
				s.Equal(want, string(got))
			}
		})
	}
}

func (s *ChannelIntegrationSuite) TestNoReplayAndIsolation() {
	for name, ch := range s.channels {
		s.Run(name, func() {
			sessionID := "replay-" + name
			s.Require().NoError(ch.Publish(s.ctx, sessionID, []byte("before")))

			sub, err := ch.Subscribe(s.ctx, sessionID)
			s.Require().NoError(err)
			defer sub.Close()

			s.Require().NoError(ch.Publish(s.ctx, "someone-else", []byte("foreign")))
			s.Require().NoError(ch.Publish(s.ctx, sessionID, []byte("after")))

			ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
			defer cancel()
			got, err := sub.Next(ctx)
			s.Require().NoError(err)
			s.Equal("after", string(got))
		})
	}
}

func (s *ChannelIntegrationSuite) TestNextReturnsOnCancellation() {
	for name, ch := range s.channels {
		s.Run(name, func() {
			sub, err := ch.Subscribe(s.ctx, "idle-"+name)
			s.Require().NoError(err)
			defer sub.Close()

			ctx, cancel := context.WithTimeout(s.ctx, 700*time.Millisecond)
			defer cancel()
			_, err = sub.Next(ctx)
			s.ErrorIs(err, context.DeadlineExceeded)
		})
	}
}

func (s *ChannelIntegrationSuite) TestNextWakesOnCancelBeforeWindowEnds() {
	for name, ch := range s.idle {
		s.Run(name, func() {
			sub, err := ch.Subscribe(s.ctx, "cancel-"+name)
			s.Require().NoError(err)
			defer sub.Close()

			ctx, cancel := context.WithCancel(s.ctx)
			time.AfterFunc(100*time.Millisecond, cancel)

			started := time.Now()
			_, err = sub.Next(ctx)
			s.ErrorIs(err, context.Canceled)
			s.Less(time.Since(started), 2*time.Second)
		})
	}
}

func (s *ChannelIntegrationSuite) TestNextAfterCloseReportsClosed() {
	ch := s.idle["redis"]
	sub, err := ch.Subscribe(s.ctx, "closed-redis")
	s.Require().NoError(err)
	s.Require().NoError(sub.Close())

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	_, err = sub.Next(ctx)
	s.ErrorIs(err, progress.ErrSubscriptionClosed)
}

func TestChannelIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode.")
	}
	suite.Run(t, new(ChannelIntegrationSuite))
}
