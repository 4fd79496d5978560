// Package sqlxstore implements progress.Store with hand-written SQL on sqlx.
// It supports the "postgres" (lib/pq) and "sqlite3" (mattn/go-sqlite3)
// drivers.
package sqlxstore

import (
	"context"
	"database/sql"
	"time"

	"philosofium/backend/models"
	"philosofium/backend/progress"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS progress_records (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	course_id        TEXT NOT NULL,
	lesson_id        TEXT NOT NULL DEFAULT '',
	completed        BOOLEAN NOT NULL DEFAULT FALSE,
	progress_percent INTEGER NOT NULL DEFAULT 0,
	last_accessed    TIMESTAMPTZ NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_progress_key ON progress_records (user_id, course_id, lesson_id);
CREATE INDEX IF NOT EXISTS idx_progress_recency ON progress_records (user_id, last_accessed);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS progress_records (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	course_id        TEXT NOT NULL,
	lesson_id        TEXT NOT NULL DEFAULT '',
	completed        BOOLEAN NOT NULL DEFAULT 0,
	progress_percent INTEGER NOT NULL DEFAULT 0,
	last_accessed    TIMESTAMP NOT NULL,
	created_at       TIMESTAMP NOT NULL,
	updated_at       TIMESTAMP NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_progress_key ON progress_records (user_id, course_id, lesson_id);
CREATE INDEX IF NOT EXISTS idx_progress_recency ON progress_records (user_id, last_accessed);
`

const upsertCourseSQL = `
INSERT INTO progress_records (id, user_id, course_id, lesson_id, completed, progress_percent, last_accessed, created_at, updated_at)
VALUES (?, ?, ?, '', ?, ?, ?, ?, ?)
ON CONFLICT (user_id, course_id, lesson_id) DO UPDATE SET
	progress_percent = CASE WHEN progress_records.completed THEN progress_records.progress_percent ELSE excluded.progress_percent END,
	completed = progress_records.completed OR excluded.completed,
	last_accessed = excluded.last_accessed,
	updated_at = excluded.updated_at`

const upsertLessonSQL = `
INSERT INTO progress_records (id, user_id, course_id, lesson_id, completed, progress_percent, last_accessed, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)
ON CONFLICT (user_id, course_id, lesson_id) DO UPDATE SET
	last_accessed = excluded.last_accessed,
	updated_at = excluded.updated_at`

const selectColumns = `SELECT id, user_id, course_id, lesson_id, completed, progress_percent, last_accessed, created_at, updated_at FROM progress_records`

type Store struct {
	db *sqlx.DB
}

var _ progress.Store = (*Store)(nil)

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the progress table for the connection's driver.
func (s *Store) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if s.db.DriverName() == "sqlite3" {
		schema = sqliteSchema
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return progress.NewStorageError("migrate", errors.Wrap(err, "creating progress_records"))
	}
	return nil
}

func (s *Store) UpsertCourseProgress(ctx context.Context, userID, courseID string, c progress.Completion, at time.Time) error {
	at = at.UTC()
	_, err := s.db.ExecContext(ctx, s.db.Rebind(upsertCourseSQL),
		uuid.NewString(), userID, courseID, c.Completed(), c.Percent(), at, at, at)
	return progress.NewStorageError("upsert course progress", err)
}

func (s *Store) UpsertLessonProgress(ctx context.Context, userID, courseID, lessonID string, at time.Time) error {
	at = at.UTC()
	_, err := s.db.ExecContext(ctx, s.db.Rebind(upsertLessonSQL),
		uuid.NewString(), userID, courseID, lessonID, true, at, at, at)
	return progress.NewStorageError("upsert lesson progress", err)
}

func (s *Store) TouchCourseProgress(ctx context.Context, userID, courseID string, at time.Time) error {
	at = at.UTC()
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE progress_records SET last_accessed = ?, updated_at = ? WHERE user_id = ? AND course_id = ? AND lesson_id = ''`),
		at, at, userID, courseID)
	if err != nil {
		return progress.NewStorageError("touch course progress", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return progress.NewStorageError("touch course progress", err)
	}
	if n == 0 {
		return progress.ErrNotFound
	}
	return nil
}

func (s *Store) GetCourseProgress(ctx context.Context, userID, courseID string) (*models.ProgressRecord, error) {
	var row models.ProgressRecord
	err := s.db.GetContext(ctx, &row, s.db.Rebind(selectColumns+
		` WHERE user_id = ? AND course_id = ? AND lesson_id = ''`), userID, courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, progress.ErrNotFound
	}
	if err != nil {
		return nil, progress.NewStorageError("get course progress", err)
	}
	return &row, nil
}

func (s *Store) GetAllProgress(ctx context.Context, userID string) ([]models.ProgressRecord, error) {
	rows := []models.ProgressRecord{}
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(selectColumns+
		` WHERE user_id = ? AND lesson_id = '' ORDER BY last_accessed DESC, course_id`), userID)
	if err != nil {
		return nil, progress.NewStorageError("get all progress", err)
	}
	return rows, nil
}

func (s *Store) CountCompletedLessons(ctx context.Context, userID, courseID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.db.Rebind(
		`SELECT COUNT(*) FROM progress_records WHERE user_id = ? AND course_id = ? AND lesson_id <> '' AND completed = ?`),
		userID, courseID, true)
	if err != nil {
		return 0, progress.NewStorageError("count completed lessons", err)
	}
	return n, nil
}

func (s *Store) ListIncompleteCourseProgress(ctx context.Context, after *progress.Cursor, limit int) ([]models.ProgressRecord, error) {
	query := selectColumns + ` WHERE lesson_id = '' AND completed = ?`
	args := []interface{}{false}
	if after != nil {
		at := after.LastAccessed.UTC()
		query += ` AND (last_accessed > ? OR (last_accessed = ? AND id > ?))`
		args = append(args, at, at, after.ID)
	}
	query += ` ORDER BY last_accessed ASC, id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows := []models.ProgressRecord{}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, progress.NewStorageError("list incomplete progress", err)
	}
	return rows, nil
}
