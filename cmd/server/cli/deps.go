package cli

import (
	"context"
	"fmt"
	"time"

	"storyline-server/internal/progress"
	"storyline-server/internal/repository"
	"storyline-server/pkg/database"
	"storyline-server/pkg/migration"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// store - хранилище сессий и мигратор для выбранного драйвера.
type store struct {
	repo     repository.SessionRepository
	migrator *migration.Migrator
}

func openStore(ctx context.Context) (*store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := setupDatabase(ctx)
		if err != nil {
			return nil, err
		}
		return &store{
			repo: repository.NewPgSessionRepository(pool, log),
			migrator: migration.NewPostgresMigrator(migration.Config{
				MigrationsPath: repository.PostgresMigrationsPath,
				MigrationsFS:   repository.MigrationsFS,
			}, pool, log),
		}, nil
	case "sqlite":
		db, err := repository.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info("SQLite database opened", zap.String("path", cfg.SQLitePath))
		return &store{
			repo: repository.NewSQLiteSessionRepository(db, log),
			migrator: migration.NewSQLiteMigrator(migration.Config{
				MigrationsPath: repository.SQLiteMigrationsPath,
				MigrationsFS:   repository.MigrationsFS,
			}, repository.SQLiteDSN(cfg.SQLitePath), log),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

// setupDatabase подключается к PostgreSQL с повторными попытками.
func setupDatabase(ctx context.Context) (*pgxpool.Pool, error) {
	return database.Connect(ctx, database.Config{
		DSN:             cfg.GetDSN(),
		MaxConns:        cfg.DBMaxConns,
		MaxConnIdleTime: cfg.DBIdleTimeout,
		MaxRetries:      10,
		RetryDelay:      3 * time.Second,
	}, log)
}

// openChannel создает транспорт канала прогресса. close освобождает все его соединения.
func openChannel(ctx context.Context) (progress.Channel, func(), error) {
	switch cfg.ProgressTransport {
	case "redis":
		client, err := progress.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		ch := progress.NewRedisChannel(client, cfg.ProgressPollWindow, log)
		return ch, func() { _ = ch.Close() }, nil
	case "amqp":
		conn, err := connectRabbitMQ(ctx, cfg.RabbitMQURL)
		if err != nil {
			return nil, nil, err
		}
		ch, err := progress.NewAMQPChannel(conn, cfg.ProgressPollWindow, log)
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return ch, func() {
			_ = ch.Close()
			_ = conn.Close()
		}, nil
	case "memory":
		log.Warn("Using in-memory progress channel, events are not shared between processes")
		ch := progress.NewMemoryChannel(cfg.ProgressPollWindow, log)
		return ch, func() { _ = ch.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported progress transport %q", cfg.ProgressTransport)
	}
}

// connectRabbitMQ подключается к RabbitMQ с повторными попытками.
func connectRabbitMQ(ctx context.Context, url string) (*amqp.Connection, error) {
	const (
		maxRetries = 5
		retryDelay = 5 * time.Second
	)
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(url)
		if err == nil {
			log.Info("Connected to RabbitMQ", zap.Int("attempt", attempt))
			return conn, nil
		}
		log.Warn("Failed to connect to RabbitMQ",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_in", retryDelay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
}
