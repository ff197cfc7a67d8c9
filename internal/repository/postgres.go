package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storyline-server/internal/domain"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DBTX - общий интерфейс для pgxpool.Pool и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	pgSessionColumns = `id, story_type, status, writing_style, author, title, story_map, story_history, current_scene, created_at, updated_at`

	pgCreateSessionQuery = `
        INSERT INTO game_sessions (id, story_type, status, writing_style, author, title, story_map, story_history, current_scene)
        VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, COALESCE($8::jsonb, '[]'::jsonb), $9::jsonb)`

	pgGetSessionQuery = `SELECT ` + pgSessionColumns + ` FROM game_sessions WHERE id = $1`

	pgReplaceFieldsQuery = `
        UPDATE game_sessions SET
            status        = COALESCE($2::text, status),
            writing_style = COALESCE($3::text, writing_style),
            author        = COALESCE($4::text, author),
            title         = COALESCE($5::text, title),
            story_map     = COALESCE($6::jsonb, story_map),
            story_history = COALESCE($7::jsonb, story_history),
            current_scene = COALESCE($8::jsonb, current_scene),
            updated_at    = GREATEST(updated_at, NOW())
        WHERE id = $1
        RETURNING ` + pgSessionColumns

	pgDeleteSessionQuery = `DELETE FROM game_sessions WHERE id = $1`
	pgListIdleQuery      = `SELECT id FROM game_sessions WHERE updated_at < $1 ORDER BY updated_at`
)

type pgSessionRow struct {
	ID           string    `db:"id"`
	StoryType    string    `db:"story_type"`
	Status       string    `db:"status"`
	WritingStyle string    `db:"writing_style"`
	Author       string    `db:"author"`
	Title        string    `db:"title"`
	StoryMap     []byte    `db:"story_map"`
	StoryHistory []byte    `db:"story_history"`
	CurrentScene []byte    `db:"current_scene"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r pgSessionRow) toDomain() (*domain.Session, error) {
	s := &domain.Session{
		ID:           r.ID,
		StoryType:    r.StoryType,
		Status:       domain.SessionStatus(r.Status),
		WritingStyle: r.WritingStyle,
		Author:       r.Author,
		Title:        r.Title,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	err := decodeDocs(s, sessionDocs{StoryMap: r.StoryMap, StoryHistory: r.StoryHistory, CurrentScene: r.CurrentScene})
	return s, err
}

type pgSessionRepository struct {
	pool   *pgxpool.Pool
	db     DBTX
	logger *zap.Logger
}

var _ SessionRepository = (*pgSessionRepository)(nil)

// NewPgSessionRepository создает репозиторий сессий поверх пула PostgreSQL.
func NewPgSessionRepository(pool *pgxpool.Pool, logger *zap.Logger) *pgSessionRepository {
	return &pgSessionRepository{
		pool:   pool,
		db:     pool,
		logger: logger.Named("PgSessionRepo"),
	}
}

func (r *pgSessionRepository) Create(ctx context.Context, session *domain.Session) (string, error) {
	log := r.logger.With(zap.String("session_id", session.ID))

	docs, err := encodeDocs(session.StoryMap, session.StoryHistory, session.CurrentScene)
	if err != nil {
		return "", err
	}
	_, err = r.db.Exec(ctx, pgCreateSessionQuery,
		session.ID, session.StoryType, string(initialStatus(session)),
		session.WritingStyle, session.Author, session.Title,
		docs.StoryMap, docs.StoryHistory, docs.CurrentScene,
	)
	if err != nil {
		log.Error("Error creating session", zap.Error(err))
		return "", fmt.Errorf("failed to create session %s: %w", session.ID, err)
	}
	log.Debug("Session created")
	return session.ID, nil
}

func (r *pgSessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var row pgSessionRow
	if err := pgxscan.Get(ctx, r.db, &row, pgGetSessionQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		r.logger.Error("Error getting session", zap.String("session_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return row.toDomain()
}

func (r *pgSessionRepository) ReplaceFields(ctx context.Context, id string, fields domain.SessionFields) (*domain.Session, error) {
	docs, err := encodeDocs(fields.StoryMap, fields.StoryHistory, fields.CurrentScene)
	if err != nil {
		return nil, err
	}

	var row pgSessionRow
	err = pgxscan.Get(ctx, r.db, &row, pgReplaceFieldsQuery,
		id, statusArg(fields.Status), fields.WritingStyle, fields.Author, fields.Title,
		docs.StoryMap, docs.StoryHistory, docs.CurrentScene,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		r.logger.Error("Error updating session", zap.String("session_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to update session %s: %w", id, err)
	}
	return row.toDomain()
}

func (r *pgSessionRepository) DeleteByID(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, pgDeleteSessionQuery, id)
	if err != nil {
		r.logger.Error("Error deleting session", zap.String("session_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *pgSessionRepository) ListIdleSince(ctx context.Context, threshold time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	var ids []string
	if err := pgxscan.Select(ctx, r.db, &ids, pgListIdleQuery, cutoff); err != nil {
		r.logger.Error("Error listing idle sessions", zap.Time("cutoff", cutoff), zap.Error(err))
		return nil, fmt.Errorf("failed to list idle sessions: %w", err)
	}
	return ids, nil
}

// Close закрывает пул соединений.
func (r *pgSessionRepository) Close() error {
	r.pool.Close()
	return nil
}
