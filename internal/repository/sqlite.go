package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"storyline-server/internal/domain"

	"github.com/georgysavva/scany/v2/sqlscan"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	sqliteSessionColumns = `id, story_type, status, writing_style, author, title, story_map, story_history, current_scene, created_at, updated_at`

	sqliteCreateSessionQuery = `
        INSERT INTO game_sessions (id, story_type, status, writing_style, author, title, story_map, story_history, current_scene, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, COALESCE(?, '[]'), ?, ?, ?)`

	sqliteGetSessionQuery = `SELECT ` + sqliteSessionColumns + ` FROM game_sessions WHERE id = ?`

	sqliteReplaceFieldsQuery = `
        UPDATE game_sessions SET
            status        = COALESCE(?, status),
            writing_style = COALESCE(?, writing_style),
            author        = COALESCE(?, author),
            title         = COALESCE(?, title),
            story_map     = COALESCE(?, story_map),
            story_history = COALESCE(?, story_history),
            current_scene = COALESCE(?, current_scene),
            updated_at    = MAX(updated_at, ?)
        WHERE id = ?
        RETURNING ` + sqliteSessionColumns

	sqliteDeleteSessionQuery = `DELETE FROM game_sessions WHERE id = ?`
	sqliteListIdleQuery      = `SELECT id FROM game_sessions WHERE updated_at < ? ORDER BY updated_at`
)

// sqliteSessionRow хранит время в микросекундах Unix.
type sqliteSessionRow struct {
	ID           string         `db:"id"`
	StoryType    string         `db:"story_type"`
	Status       string         `db:"status"`
	WritingStyle string         `db:"writing_style"`
	Author       string         `db:"author"`
	Title        string         `db:"title"`
	StoryMap     sql.NullString `db:"story_map"`
	StoryHistory sql.NullString `db:"story_history"`
	CurrentScene sql.NullString `db:"current_scene"`
	CreatedAt    int64          `db:"created_at"`
	UpdatedAt    int64          `db:"updated_at"`
}

func (r sqliteSessionRow) toDomain() (*domain.Session, error) {
	s := &domain.Session{
		ID:           r.ID,
		StoryType:    r.StoryType,
		Status:       domain.SessionStatus(r.Status),
		WritingStyle: r.WritingStyle,
		Author:       r.Author,
		Title:        r.Title,
		CreatedAt:    time.UnixMicro(r.CreatedAt).UTC(),
		UpdatedAt:    time.UnixMicro(r.UpdatedAt).UTC(),
	}
	err := decodeDocs(s, sessionDocs{
		StoryMap:     nullBytes(r.StoryMap),
		StoryHistory: nullBytes(r.StoryHistory),
		CurrentScene: nullBytes(r.CurrentScene),
	})
	return s, err
}

func nullBytes(v sql.NullString) []byte {
	if !v.Valid {
		return nil
	}
	return []byte(v.String)
}

// textArg сохраняет JSON как TEXT, nil передается как NULL.
func textArg(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

type sqliteSessionRepository struct {
	db     *sql.DB
	now    func() time.Time
	logger *zap.Logger
}

var _ SessionRepository = (*sqliteSessionRepository)(nil)

// OpenSQLite открывает файл базы (создавая каталог) с WAL и busy_timeout.
func OpenSQLite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", SQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return db, nil
}

// SQLiteDSN возвращает строку подключения драйвера modernc для файла path.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// NewSQLiteSessionRepository создает репозиторий сессий поверх SQLite.
func NewSQLiteSessionRepository(db *sql.DB, logger *zap.Logger) *sqliteSessionRepository {
	return &sqliteSessionRepository{
		db:     db,
		now:    time.Now,
		logger: logger.Named("SQLiteSessionRepo"),
	}
}

func (r *sqliteSessionRepository) Create(ctx context.Context, session *domain.Session) (string, error) {
	docs, err := encodeDocs(session.StoryMap, session.StoryHistory, session.CurrentScene)
	if err != nil {
		return "", err
	}
	now := r.now().UnixMicro()
	_, err = r.db.ExecContext(ctx, sqliteCreateSessionQuery,
		session.ID, session.StoryType, string(initialStatus(session)),
		session.WritingStyle, session.Author, session.Title,
		textArg(docs.StoryMap), textArg(docs.StoryHistory), textArg(docs.CurrentScene),
		now, now,
	)
	if err != nil {
		r.logger.Error("Error creating session", zap.String("session_id", session.ID), zap.Error(err))
		return "", fmt.Errorf("failed to create session %s: %w", session.ID, err)
	}
	return session.ID, nil
}

func (r *sqliteSessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var row sqliteSessionRow
	if err := sqlscan.Get(ctx, r.db, &row, sqliteGetSessionQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		r.logger.Error("Error getting session", zap.String("session_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return row.toDomain()
}

func (r *sqliteSessionRepository) ReplaceFields(ctx context.Context, id string, fields domain.SessionFields) (*domain.Session, error) {
	docs, err := encodeDocs(fields.StoryMap, fields.StoryHistory, fields.CurrentScene)
	if err != nil {
		return nil, err
	}

	var row sqliteSessionRow
	err = sqlscan.Get(ctx, r.db, &row, sqliteReplaceFieldsQuery,
		statusArg(fields.Status), fields.WritingStyle, fields.Author, fields.Title,
		textArg(docs.StoryMap), textArg(docs.StoryHistory), textArg(docs.CurrentScene),
		r.now().UnixMicro(), id,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		r.logger.Error("Error updating session", zap.String("session_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to update session %s: %w", id, err)
	}
	return row.toDomain()
}

func (r *sqliteSessionRepository) DeleteByID(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, sqliteDeleteSessionQuery, id)
	if err != nil {
		r.logger.Error("Error deleting session", zap.String("session_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *sqliteSessionRepository) ListIdleSince(ctx context.Context, threshold time.Duration) ([]string, error) {
	cutoff := r.now().Add(-threshold)
	var ids []string
	if err := sqlscan.Select(ctx, r.db, &ids, sqliteListIdleQuery, cutoff.UnixMicro()); err != nil {
		r.logger.Error("Error listing idle sessions", zap.Time("cutoff", cutoff), zap.Error(err))
		return nil, fmt.Errorf("failed to list idle sessions: %w", err)
	}
	return ids, nil
}

func (r *sqliteSessionRepository) Close() error {
	return r.db.Close()
}
