package progress

import (
	"context"
	"time"

	"philosofium/backend/models"
)

// Store persists ProgressRecords. Every write is a single atomic upsert on
// (user, course, lesson); implementations must never read-then-write.
// Backend failures are returned as *StorageError.
type Store interface {
	// UpsertCourseProgress creates the course-level row or updates its
	// percent, completed flag and last access in place. A completed row
	// stays completed.
	UpsertCourseProgress(ctx context.Context, userID, courseID string, c Completion, at time.Time) error

	// UpsertLessonProgress marks a lesson completed. Repeating it only
	// refreshes the access time.
	UpsertLessonProgress(ctx context.Context, userID, courseID, lessonID string, at time.Time) error

	// TouchCourseProgress refreshes the access time of an existing
	// course-level row and returns ErrNotFound when there is none.
	TouchCourseProgress(ctx context.Context, userID, courseID string, at time.Time) error

	// GetCourseProgress returns the course-level row or ErrNotFound.
	GetCourseProgress(ctx context.Context, userID, courseID string) (*models.ProgressRecord, error)

	// GetAllProgress returns the user's course-level rows, most recently
	// accessed first.
	GetAllProgress(ctx context.Context, userID string) ([]models.ProgressRecord, error)

	CountCompletedLessons(ctx context.Context, userID, courseID string) (int, error)

	// ListIncompleteCourseProgress returns course-level rows that are not
	// completed in (last_accessed, id) order, starting after the cursor. A
	// nil cursor starts from the oldest row.
	ListIncompleteCourseProgress(ctx context.Context, after *Cursor, limit int) ([]models.ProgressRecord, error)
}

// Cursor is a keyset position in (last_accessed, id) order.
type Cursor struct {
	LastAccessed time.Time
	ID           string
}

func CursorAfter(rec models.ProgressRecord) *Cursor {
	return &Cursor{LastAccessed: rec.LastAccessed, ID: rec.ID}
}

// Before reports whether rec sorts before the cursor position or on it.
func (c *Cursor) Before(rec models.ProgressRecord) bool {
	if c == nil {
		return false
	}
	if rec.LastAccessed.Equal(c.LastAccessed) {
		return rec.ID <= c.ID
	}
	return rec.LastAccessed.Before(c.LastAccessed)
}

// CourseCatalog is the external course provider, used for display joins
// and lesson totals only. Unknown ids yield ErrNotFound.
type CourseCatalog interface {
	GetCourseByID(ctx context.Context, id string) (*models.Course, error)
	GetCourses(ctx context.Context) ([]models.Course, error)
}

type EventType string

const EventProgressUpdated EventType = "progress.updated"

// Event is published after every successful course-level write.
type Event struct {
	Type      EventType            `json:"type"`
	UserID    string               `json:"user_id"`
	CourseID  string               `json:"course_id"`
	LessonID  string               `json:"lesson_id,omitempty"`
	Percent   int                  `json:"percent"`
	Completed bool                 `json:"completed"`
	State     models.ProgressState `json:"state"`
	At        time.Time            `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
