package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Course struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	ShortDesc   string    `json:"short_desc"`
	Description string    `json:"description"`
	Difficulty  string    `json:"difficulty"` // beginner, intermediate, advanced
	Topic       string    `json:"topic"`
	AuthorID    string    `gorm:"size:36" json:"author_id"`
	LogoURL     string    `json:"logo_url"`
	Lessons     []Lesson  `json:"lessons,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Details is the display subset joined into progress views.
func (c *Course) Details() *CourseDetails {
	return &CourseDetails{
		ID:          c.ID,
		Title:       c.Title,
		ShortDesc:   c.ShortDesc,
		Thumbnail:   c.LogoURL,
		LessonCount: len(c.Lessons),
	}
}

type Lesson struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	CourseID      string    `gorm:"size:36;index;not null" json:"course_id"`
	Title         string    `gorm:"not null" json:"title"`
	Description   string    `json:"description"`
	Content       string    `json:"content"`
	SequenceOrder int       `json:"sequence_order"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (l *Lesson) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
