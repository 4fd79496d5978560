// Package catalog serves courses and their lessons from the courses and
// lessons tables.
package catalog

import (
	"context"
	"strings"

	"philosofium/backend/models"
	"philosofium/backend/progress"
	"philosofium/backend/utils"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type Catalog struct {
	db  *gorm.DB
	log *utils.Logger
}

var _ progress.CourseCatalog = (*Catalog)(nil)

func New(db *gorm.DB, baseLog *utils.Logger) *Catalog {
	return &Catalog{db: db, log: baseLog.With("component", "Catalog")}
}

func orderedLessons(db *gorm.DB) *gorm.DB {
	return db.Order("sequence_order ASC").Order("created_at ASC")
}

// GetCourseByID loads the course with its lessons in sequence order.
func (c *Catalog) GetCourseByID(ctx context.Context, id string) (*models.Course, error) {
	if id == "" {
		return nil, progress.ErrNotFound
	}
	var course models.Course
	res := c.db.WithContext(ctx).
		Preload("Lessons", orderedLessons).
		Where("id = ?", id).
		Limit(1).
		Find(&course)
	if res.Error != nil {
		return nil, progress.NewStorageError("get course", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, progress.ErrNotFound
	}
	return &course, nil
}

func (c *Catalog) GetCourses(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	err := c.db.WithContext(ctx).
		Preload("Lessons", orderedLessons).
		Order("title ASC").
		Find(&courses).Error
	if err != nil {
		return nil, progress.NewStorageError("list courses", err)
	}
	return courses, nil
}

func (c *Catalog) CreateCourse(ctx context.Context, course *models.Course) error {
	course.Title = strings.TrimSpace(course.Title)
	if course.Title == "" {
		return progress.NewValidationError(errors.New("course title is required"),
			progress.FieldError{Field: "title", Error: "this field is required"})
	}
	// lessons are added through AddLesson
	course.Lessons = nil
	if err := c.db.WithContext(ctx).Create(course).Error; err != nil {
		return progress.NewStorageError("create course", err)
	}
	c.log.Info("course created", "course_id", course.ID, "title", course.Title)
	return nil
}

// AddLesson appends a lesson to an existing course. A zero SequenceOrder
// places it after the current last lesson.
func (c *Catalog) AddLesson(ctx context.Context, courseID string, lesson *models.Lesson) error {
	course, err := c.GetCourseByID(ctx, courseID)
	if err != nil {
		return err
	}
	lesson.Title = strings.TrimSpace(lesson.Title)
	if lesson.Title == "" {
		return progress.NewValidationError(errors.New("lesson title is required"),
			progress.FieldError{Field: "title", Error: "this field is required"})
	}
	lesson.CourseID = course.ID
	if lesson.SequenceOrder == 0 {
		lesson.SequenceOrder = len(course.Lessons) + 1
		if n := len(course.Lessons); n > 0 && course.Lessons[n-1].SequenceOrder >= lesson.SequenceOrder {
			lesson.SequenceOrder = course.Lessons[n-1].SequenceOrder + 1
		}
	}
	if err := c.db.WithContext(ctx).Create(lesson).Error; err != nil {
		return progress.NewStorageError("add lesson", err)
	}
	c.log.Info("lesson added", "course_id", course.ID, "lesson_id", lesson.ID, "sequence_order", lesson.SequenceOrder)
	return nil
}
