package repository_test

import (
	"context"
	"testing"
	"time"

	"storyline-server/internal/domain"
	"storyline-server/internal/repository"
	"storyline-server/pkg/database"
	"storyline-server/pkg/migration"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// PgSessionRepositorySuite проверяет репозиторий на реальном PostgreSQL.
type PgSessionRepositorySuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	pool        *pgxpool.Pool
	repo        repository.SessionRepository
}

func (s *PgSessionRepositorySuite) SetupSuite() {
	s.ctx = context.Background()
	logger := zap.NewNop()

	var err error
	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start postgres container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err)

	s.pool, err = database.Connect(s.ctx, database.Config{
		DSN:        connStr,
		MaxConns:   5,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}, logger)
	require.NoError(s.T(), err)

	migrator := migration.NewPostgresMigrator(migration.Config{
		MigrationsFS:   repository.MigrationsFS,
		MigrationsPath: repository.PostgresMigrationsPath,
	}, s.pool, logger)
	require.NoError(s.T(), migrator.Up(s.ctx), "Failed to run migrations")

	version, dirty, err := migrator.Version(s.ctx)
	require.NoError(s.T(), err)
	require.False(s.T(), dirty)
	require.Equal(s.T(), uint(1), version)

	s.repo = repository.NewPgSessionRepository(s.pool, logger)
}

func (s *PgSessionRepositorySuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(s.ctx)
	}
}

func (s *PgSessionRepositorySuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, `TRUNCATE game_sessions`)
	s.Require().NoError(err)
}

func (s *PgSessionRepositorySuite) TestLifecycle() {
	id := uuid.NewString()
	created, err := s.repo.Create(s.ctx, &domain.Session{ID: id, StoryType: "mystery"})
	s.Require().NoError(err)
	s.Equal(id, created)

	pending, err := s.repo.GetByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(domain.SessionStatusPending, pending.Status)
	s.Nil(pending.StoryMap)
	s.Empty(pending.StoryHistory)

	ready := domain.SessionStatusReady
	author, title, style := "Author", "Title", "gothic"
	storyMap := &domain.StoryMap{
		Nodes: []domain.Node{{ID: "start", Label: "Gate", Details: "Fog."}},
		Edges: []domain.Edge{},
	}
	scene := &domain.Scene{Content: "Fog.", Choices: []domain.Choice{{ID: 1, Text: "go"}}, CurrentNodeID: "start"}
	history := []domain.Turn{{Role: domain.RoleNarrator, Content: "Fog."}}

	updated, err := s.repo.ReplaceFields(s.ctx, id, domain.SessionFields{
		Status:       &ready,
		Author:       &author,
		Title:        &title,
		WritingStyle: &style,
		StoryMap:     storyMap,
		StoryHistory: history,
		CurrentScene: scene,
	})
	s.Require().NoError(err)
	s.Equal(domain.SessionStatusReady, updated.Status)
	s.Equal(storyMap, updated.StoryMap)
	s.Equal(scene, updated.CurrentScene)
	s.Equal(history, updated.StoryHistory)
	s.False(updated.UpdatedAt.Before(pending.UpdatedAt))

	partial, err := s.repo.ReplaceFields(s.ctx, id, domain.SessionFields{CurrentScene: &domain.Scene{Content: "Next", CurrentNodeID: "start"}})
	s.Require().NoError(err)
	s.Equal("Title", partial.Title)
	s.Equal("Next", partial.CurrentScene.Content)
	s.Equal(history, partial.StoryHistory)

	s.Require().NoError(s.repo.DeleteByID(s.ctx, id))
	_, err = s.repo.GetByID(s.ctx, id)
	s.ErrorIs(err, domain.ErrSessionNotFound)
	s.ErrorIs(s.repo.DeleteByID(s.ctx, id), domain.ErrSessionNotFound)
}

func (s *PgSessionRepositorySuite) TestReplaceFieldsUnknown() {
	title := "x"
	_, err := s.repo.ReplaceFields(s.ctx, uuid.NewString(), domain.SessionFields{Title: &title})
	s.ErrorIs(err, domain.ErrSessionNotFound)
}

func (s *PgSessionRepositorySuite) TestListIdleSince() {
	oldID, freshID := uuid.NewString(), uuid.NewString()
	_, err := s.repo.Create(s.ctx, &domain.Session{ID: oldID, StoryType: "mystery"})
	s.Require().NoError(err)
	_, err = s.repo.Create(s.ctx, &domain.Session{ID: freshID, StoryType: "mystery"})
	s.Require().NoError(err)

	_, err = s.pool.Exec(s.ctx, `UPDATE game_sessions SET updated_at = NOW() - INTERVAL '3 days' WHERE id = $1`, oldID)
	s.Require().NoError(err)

	ids, err := s.repo.ListIdleSince(s.ctx, 24*time.Hour)
	s.Require().NoError(err)
	s.Equal([]string{oldID}, ids)
}

func TestPgSessionRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode.")
	}
	suite.Run(t, new(PgSessionRepositorySuite))
}
