// Package gormstore implements progress.Store on gorm. Upserts are single
// INSERT ... ON CONFLICT statements and work on both postgres and sqlite.
package gormstore

import (
	"context"
	"time"

	"philosofium/backend/models"
	"philosofium/backend/progress"
	"philosofium/backend/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var progressKey = []clause.Column{{Name: "user_id"}, {Name: "course_id"}, {Name: "lesson_id"}}

type Store struct {
	db  *gorm.DB
	log *utils.Logger
}

var _ progress.Store = (*Store)(nil)

func New(db *gorm.DB, baseLog *utils.Logger) *Store {
	return &Store{
		db:  db,
		log: baseLog.With("store", "GormProgressStore"),
	}
}

// Migrate creates the progress table and its indexes.
func (s *Store) Migrate(ctx context.Context) error {
	return progress.NewStorageError("migrate", s.db.WithContext(ctx).AutoMigrate(&models.ProgressRecord{}))
}

func (s *Store) UpsertCourseProgress(ctx context.Context, userID, courseID string, c progress.Completion, at time.Time) error {
	at = at.UTC()
	row := &models.ProgressRecord{
		ID:              uuid.NewString(),
		UserID:          userID,
		CourseID:        courseID,
		Completed:       c.Completed(),
		ProgressPercent: c.Percent(),
		LastAccessed:    at,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
	// a completed row keeps its percentage and flag
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: progressKey,
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "progress_percent"}, Value: gorm.Expr("CASE WHEN progress_records.completed THEN progress_records.progress_percent ELSE excluded.progress_percent END")},
				{Column: clause.Column{Name: "completed"}, Value: gorm.Expr("progress_records.completed OR excluded.completed")},
				{Column: clause.Column{Name: "last_accessed"}, Value: gorm.Expr("excluded.last_accessed")},
				{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
			},
		}).
		Create(row).Error
	return progress.NewStorageError("upsert course progress", err)
}

func (s *Store) UpsertLessonProgress(ctx context.Context, userID, courseID, lessonID string, at time.Time) error {
	at = at.UTC()
	row := &models.ProgressRecord{
		ID:           uuid.NewString(),
		UserID:       userID,
		CourseID:     courseID,
		LessonID:     lessonID,
		Completed:    true,
		LastAccessed: at,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   progressKey,
			DoUpdates: clause.AssignmentColumns([]string{"last_accessed", "updated_at"}),
		}).
		Create(row).Error
	return progress.NewStorageError("upsert lesson progress", err)
}

func (s *Store) TouchCourseProgress(ctx context.Context, userID, courseID string, at time.Time) error {
	at = at.UTC()
	res := s.db.WithContext(ctx).
		Model(&models.ProgressRecord{}).
		Where("user_id = ? AND course_id = ? AND lesson_id = ?", userID, courseID, "").
		UpdateColumns(map[string]interface{}{"last_accessed": at, "updated_at": at})
	if res.Error != nil {
		return progress.NewStorageError("touch course progress", res.Error)
	}
	if res.RowsAffected == 0 {
		return progress.ErrNotFound
	}
	return nil
}

func (s *Store) GetCourseProgress(ctx context.Context, userID, courseID string) (*models.ProgressRecord, error) {
	var row models.ProgressRecord
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ? AND lesson_id = ?", userID, courseID, "").
		Limit(1).
		Find(&row)
	if res.Error != nil {
		return nil, progress.NewStorageError("get course progress", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, progress.ErrNotFound
	}
	return &row, nil
}

func (s *Store) GetAllProgress(ctx context.Context, userID string) ([]models.ProgressRecord, error) {
	var rows []models.ProgressRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND lesson_id = ?", userID, "").
		Order("last_accessed DESC").
		Order("course_id").
		Find(&rows).Error
	if err != nil {
		return nil, progress.NewStorageError("get all progress", err)
	}
	return rows, nil
}

func (s *Store) CountCompletedLessons(ctx context.Context, userID, courseID string) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.ProgressRecord{}).
		Where("user_id = ? AND course_id = ? AND lesson_id <> ? AND completed = ?", userID, courseID, "", true).
		Count(&n).Error
	if err != nil {
		return 0, progress.NewStorageError("count completed lessons", err)
	}
	return int(n), nil
}

func (s *Store) ListIncompleteCourseProgress(ctx context.Context, after *progress.Cursor, limit int) ([]models.ProgressRecord, error) {
	q := s.db.WithContext(ctx).
		Where("lesson_id = ? AND completed = ?", "", false)
	if after != nil {
		at := after.LastAccessed.UTC()
		q = q.Where("(last_accessed > ? OR (last_accessed = ? AND id > ?))", at, at, after.ID)
	}
	q = q.Order("last_accessed ASC").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.ProgressRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, progress.NewStorageError("list incomplete progress", err)
	}
	s.log.Debug("listed incomplete course progress", "rows", len(rows))
	return rows, nil
}
