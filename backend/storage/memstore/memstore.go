// Package memstore keeps progress records in process memory. It is used for
// local development and as the reference store in tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"philosofium/backend/models"
	"philosofium/backend/progress"

	"github.com/google/uuid"
)

type key struct {
	userID   string
	courseID string
	lessonID string
}

type Store struct {
	mu      sync.RWMutex
	records map[key]*models.ProgressRecord
}

var _ progress.Store = (*Store)(nil)

func New() *Store {
	return &Store{records: make(map[key]*models.ProgressRecord)}
}

func (s *Store) UpsertCourseProgress(_ context.Context, userID, courseID string, c progress.Completion, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{userID: userID, courseID: courseID}
	rec, ok := s.records[k]
	if !ok {
		s.records[k] = newRecord(k, c.Percent(), c.Completed(), at)
		return nil
	}
	if !rec.Completed {
		rec.ProgressPercent = c.Percent()
		rec.Completed = c.Completed()
	}
	rec.LastAccessed = at
	rec.UpdatedAt = at
	return nil
}

func (s *Store) UpsertLessonProgress(_ context.Context, userID, courseID, lessonID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{userID: userID, courseID: courseID, lessonID: lessonID}
	if rec, ok := s.records[k]; ok {
		rec.LastAccessed = at
		rec.UpdatedAt = at
		return nil
	}
	s.records[k] = newRecord(k, 0, true, at)
	return nil
}

func (s *Store) TouchCourseProgress(_ context.Context, userID, courseID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key{userID: userID, courseID: courseID}]
	if !ok {
		return progress.ErrNotFound
	}
	rec.LastAccessed = at
	rec.UpdatedAt = at
	return nil
}

func (s *Store) GetCourseProgress(_ context.Context, userID, courseID string) (*models.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key{userID: userID, courseID: courseID}]
	if !ok {
		return nil, progress.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) GetAllProgress(_ context.Context, userID string) ([]models.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ProgressRecord, 0)
	for k, rec := range s.records {
		if k.userID == userID && rec.IsCourseLevel() {
			out = append(out, *rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastAccessed.Equal(out[j].LastAccessed) {
			return out[i].CourseID < out[j].CourseID
		}
		return out[i].LastAccessed.After(out[j].LastAccessed)
	})
	return out, nil
}

func (s *Store) CountCompletedLessons(_ context.Context, userID, courseID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k, rec := range s.records {
		if k.userID == userID && k.courseID == courseID && !rec.IsCourseLevel() && rec.Completed {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListIncompleteCourseProgress(_ context.Context, after *progress.Cursor, limit int) ([]models.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ProgressRecord, 0)
	for _, rec := range s.records {
		if rec.IsCourseLevel() && !rec.Completed && !after.Before(*rec) {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastAccessed.Equal(out[j].LastAccessed) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastAccessed.Before(out[j].LastAccessed)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newRecord(k key, percent int, completed bool, at time.Time) *models.ProgressRecord {
	return &models.ProgressRecord{
		ID:              uuid.NewString(),
		UserID:          k.userID,
		CourseID:        k.courseID,
		LessonID:        k.lessonID,
		Completed:       completed,
		ProgressPercent: percent,
		LastAccessed:    at,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
}
