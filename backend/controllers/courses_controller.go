package controllers

import (
	"context"

	"philosofium/backend/catalog"
	"philosofium/backend/models"
	"philosofium/backend/progress"
	"philosofium/backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
)

type CoursesController struct {
	Catalog  *catalog.Catalog
	Progress *progress.Service
	Log      *utils.Logger
}

func NewCoursesController(cat *catalog.Catalog, svc *progress.Service, log *utils.Logger) *CoursesController {
	return &CoursesController{Catalog: cat, Progress: svc, Log: log.With("controller", "CoursesController")}
}

type courseSummary struct {
	models.CourseDetails
	Difficulty string               `json:"difficulty,omitempty"`
	Topic      string               `json:"topic,omitempty"`
	Progress   int                  `json:"progress"`
	State      models.ProgressState `json:"state"`
}

type courseDetailsResponse struct {
	Course   *models.Course         `json:"course"`
	Progress *models.ProgressRecord `json:"progress,omitempty"`
	State    models.ProgressState   `json:"state"`
}

type CreateCourseInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	ShortDesc   string `json:"short_desc" validate:"max=500"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Topic       string `json:"topic" validate:"max=100"`
	LogoURL     string `json:"logo_url" validate:"omitempty,max=500"`
}

type AddLessonInput struct {
	Title         string `json:"title" validate:"required,max=200"`
	Description   string `json:"description"`
	Content       string `json:"content"`
	SequenceOrder int    `json:"sequence_order" validate:"min=0"`
}

// GetCourses lists the catalog with the caller's progress on each course.
func (cc *CoursesController) GetCourses(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := utils.UserIDFromCtx(c)

	courses, err := cc.Catalog.GetCourses(ctx)
	if err != nil {
		cc.Log.Error("could not list courses", "error", err)
		return utils.InternalServerError(c, "Could not load courses")
	}

	result := make([]courseSummary, 0, len(courses))
	for i := range courses {
		course := &courses[i]
		rec := cc.courseProgress(ctx, userID, course.ID)
		summary := courseSummary{
			CourseDetails: *course.Details(),
			Difficulty:    course.Difficulty,
			Topic:         course.Topic,
			State:         progress.StateOf(rec),
		}
		if rec != nil {
			summary.Progress = rec.ProgressPercent
		}
		result = append(result, summary)
	}
	return utils.Success(c, fiber.StatusOK, result)
}

func (cc *CoursesController) GetCourseDetails(c *fiber.Ctx) error {
	ctx := c.UserContext()
	course, err := cc.Catalog.GetCourseByID(ctx, c.Params("id"))
	if errors.Is(err, progress.ErrNotFound) {
		return utils.NotFound(c, "Course not found")
	}
	if err != nil {
		cc.Log.Error("could not load course", "course_id", c.Params("id"), "error", err)
		return utils.InternalServerError(c, "Could not load course")
	}

	rec := cc.courseProgress(ctx, utils.UserIDFromCtx(c), course.ID)
	return utils.Success(c, fiber.StatusOK, courseDetailsResponse{
		Course:   course,
		Progress: rec,
		State:    progress.StateOf(rec),
	})
}

func (cc *CoursesController) CreateCourse(c *fiber.Ctx) error {
	var input CreateCourseInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if errs := utils.ValidateStruct(input); errs != nil {
		return utils.ValidationError(c, errs)
	}

	course := &models.Course{
		Title:       input.Title,
		ShortDesc:   input.ShortDesc,
		Description: input.Description,
		Difficulty:  input.Difficulty,
		Topic:       input.Topic,
		LogoURL:     input.LogoURL,
		AuthorID:    utils.UserIDFromCtx(c),
	}
	if err := cc.Catalog.CreateCourse(c.UserContext(), course); err != nil {
		return cc.writeError(c, err)
	}
	return utils.Created(c, course)
}

func (cc *CoursesController) AddLesson(c *fiber.Ctx) error {
	var input AddLessonInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if errs := utils.ValidateStruct(input); errs != nil {
		return utils.ValidationError(c, errs)
	}

	lesson := &models.Lesson{
		Title:         input.Title,
		Description:   input.Description,
		Content:       input.Content,
		SequenceOrder: input.SequenceOrder,
	}
	if err := cc.Catalog.AddLesson(c.UserContext(), c.Params("id"), lesson); err != nil {
		return cc.writeError(c, err)
	}
	return utils.Created(c, lesson)
}

// courseProgress returns nil for courses the user has not started. Read
// failures degrade to "not started" and are logged.
func (cc *CoursesController) courseProgress(ctx context.Context, userID, courseID string) *models.ProgressRecord {
	rec, err := cc.Progress.GetCourseProgress(ctx, userID, courseID)
	if err != nil {
		if !errors.Is(err, progress.ErrNotFound) {
			cc.Log.Warn("could not load course progress", "user_id", userID, "course_id", courseID, "error", err)
		}
		return nil
	}
	return rec
}

func (cc *CoursesController) writeError(c *fiber.Ctx, err error) error {
	var verr *progress.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make(map[string]string, len(verr.Fields))
		for _, f := range verr.Fields {
			fields[f.Field] = f.Error
		}
		return utils.ValidationError(c, fields)
	case errors.Is(err, progress.ErrNotFound):
		return utils.NotFound(c, "Course not found")
	default:
		cc.Log.Error("catalog write failed", "error", err)
		return utils.InternalServerError(c, "Could not save course")
	}
}
