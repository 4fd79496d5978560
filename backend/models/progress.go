package models

import "time"

type ProgressState string

const (
	StateNotStarted ProgressState = "not_started"
	StateInProgress ProgressState = "in_progress"
	StateCompleted  ProgressState = "completed"
)

// ProgressRecord is one row per (user, course, lesson). An empty LessonID
// marks the course-level rollup row; lesson rows never carry a percentage.
type ProgressRecord struct {
	ID              string    `gorm:"primaryKey;size:36" db:"id" json:"id"`
	UserID          string    `gorm:"size:64;not null;uniqueIndex:idx_progress_key,priority:1;index:idx_progress_recency,priority:1" db:"user_id" json:"user_id"`
	CourseID        string    `gorm:"size:64;not null;uniqueIndex:idx_progress_key,priority:2" db:"course_id" json:"course_id"`
	LessonID        string    `gorm:"size:64;not null;uniqueIndex:idx_progress_key,priority:3" db:"lesson_id" json:"lesson_id,omitempty"`
	Completed       bool      `gorm:"not null" db:"completed" json:"completed"`
	ProgressPercent int       `gorm:"not null" db:"progress_percent" json:"progress_percent"`
	LastAccessed    time.Time `gorm:"not null;index:idx_progress_recency,priority:2" db:"last_accessed" json:"last_accessed"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

func (ProgressRecord) TableName() string {
	return "progress_records"
}

func (r *ProgressRecord) IsCourseLevel() bool {
	return r.LessonID == ""
}

type CourseDetails struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ShortDesc   string `json:"short_desc,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	LessonCount int    `json:"lesson_count"`
}

// CourseProgressView is a course-level record joined with catalog data.
// CourseDetails is nil when the course no longer exists.
type CourseProgressView struct {
	Progress      ProgressRecord `json:"progress"`
	State         ProgressState  `json:"state"`
	CourseDetails *CourseDetails `json:"course_details"`
}

type ProgressOverview struct {
	CoursesStarted    int        `json:"courses_started"`
	CoursesInProgress int        `json:"courses_in_progress"`
	CoursesCompleted  int        `json:"courses_completed"`
	AveragePercent    float64    `json:"average_percent"`
	LastAccessed      *time.Time `json:"last_accessed,omitempty"`
}
