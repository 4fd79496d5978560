package controllers

import (
	"bytes"

	"philosofium/backend/models"
	"philosofium/backend/progress"
	"philosofium/backend/report"
	"philosofium/backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
)

const (
	saveFailedNotice = "Progress may not have saved. Please try again."
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type ProgressController struct {
	Progress *progress.Service
	Catalog  progress.CourseCatalog
	Log      *utils.Logger
}

func NewProgressController(svc *progress.Service, cat progress.CourseCatalog, log *utils.Logger) *ProgressController {
	return &ProgressController{Progress: svc, Catalog: cat, Log: log.With("controller", "ProgressController")}
}

type UpdateProgressInput struct {
	Percent   *float64 `json:"percent"`
	Completed bool     `json:"completed"`
}

// saveResult is returned by every write endpoint. Saved is false when the
// store failed; the request itself still succeeds.
type saveResult struct {
	Saved     bool                 `json:"saved"`
	Notice    string               `json:"notice,omitempty"`
	CourseID  string               `json:"course_id"`
	LessonID  string               `json:"lesson_id,omitempty"`
	Percent   int                  `json:"percent"`
	Completed bool                 `json:"completed"`
	State     models.ProgressState `json:"state"`
}

func (pc *ProgressController) GetUserProgress(c *fiber.Ctx) error {
	views, err := pc.Progress.GetUserProgress(c.UserContext(), utils.UserIDFromCtx(c))
	if err != nil {
		return utils.Error(c, fiber.StatusServiceUnavailable, errors.New("Could not load progress"))
	}
	return utils.Success(c, fiber.StatusOK, views)
}

func (pc *ProgressController) GetProgressOverview(c *fiber.Ctx) error {
	ov, err := pc.Progress.Overview(c.UserContext(), utils.UserIDFromCtx(c))
	if err != nil {
		return utils.Error(c, fiber.StatusServiceUnavailable, errors.New("Could not load progress"))
	}
	return utils.Success(c, fiber.StatusOK, ov)
}

func (pc *ProgressController) ExportProgress(c *fiber.Ctx) error {
	views, err := pc.Progress.GetUserProgress(c.UserContext(), utils.UserIDFromCtx(c))
	if err != nil {
		return utils.Error(c, fiber.StatusServiceUnavailable, errors.New("Could not load progress"))
	}

	var buf bytes.Buffer
	if err := report.WriteWorkbook(&buf, views); err != nil {
		pc.Log.Error("could not render progress workbook", "error", err)
		return utils.InternalServerError(c, "Could not export progress")
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="progress.xlsx"`)
	return c.Status(fiber.StatusOK).Send(buf.Bytes())
}

// GetCourseProgress answers 404 for a course the caller has not started.
func (pc *ProgressController) GetCourseProgress(c *fiber.Ctx) error {
	rec, err := pc.Progress.GetCourseProgress(c.UserContext(), utils.UserIDFromCtx(c), c.Params("courseId"))
	switch {
	case errors.Is(err, progress.ErrNotFound):
		return utils.NotFound(c, "Course not started")
	case err != nil:
		return utils.Error(c, fiber.StatusServiceUnavailable, errors.New("Could not load progress"))
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"progress": rec,
		"state":    progress.StateOf(rec),
	})
}

func (pc *ProgressController) UpdateProgress(c *fiber.Ctx) error {
	var input UpdateProgressInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if input.Percent == nil && !input.Completed {
		return utils.ValidationError(c, map[string]string{"percent": "this field is required"})
	}
	percent := 0.0
	if input.Percent != nil {
		percent = *input.Percent
	}

	ctx := c.UserContext()
	userID := utils.UserIDFromCtx(c)
	courseID := c.Params("courseId")

	if !pc.Progress.UpdateProgress(ctx, userID, courseID, percent, input.Completed) {
		return pc.notSaved(c, saveResult{CourseID: courseID})
	}
	return pc.saved(c, userID, saveResult{CourseID: courseID})
}

// TouchCourse records that the caller opened the course.
func (pc *ProgressController) TouchCourse(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := utils.UserIDFromCtx(c)
	courseID := c.Params("courseId")

	if !pc.Progress.TouchCourse(ctx, userID, courseID) {
		return pc.notSaved(c, saveResult{CourseID: courseID})
	}
	return pc.saved(c, userID, saveResult{CourseID: courseID})
}

// MarkLessonCompleted takes the lesson total from the catalog so the
// percentage always reflects the current course.
func (pc *ProgressController) MarkLessonCompleted(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := utils.UserIDFromCtx(c)
	courseID := c.Params("courseId")
	lessonID := c.Params("lessonId")

	course, err := pc.Catalog.GetCourseByID(ctx, courseID)
	if errors.Is(err, progress.ErrNotFound) {
		return utils.NotFound(c, "Course not found")
	}
	if err != nil {
		pc.Log.Error("could not load course", "course_id", courseID, "error", err)
		return utils.Error(c, fiber.StatusServiceUnavailable, errors.New("Could not load course"))
	}
	if !hasLesson(course, lessonID) {
		return utils.NotFound(c, "Lesson not found")
	}

	result := saveResult{CourseID: courseID, LessonID: lessonID}
	percent, ok := pc.Progress.MarkLessonCompleted(ctx, userID, courseID, lessonID, len(course.Lessons))
	if !ok {
		return pc.notSaved(c, result)
	}
	done := progress.FromPercent(percent)
	result.Saved = true
	result.Percent = done.Percent()
	result.Completed = done.Completed()
	result.State = done.State()
	return utils.Success(c, fiber.StatusOK, result)
}

func (pc *ProgressController) saved(c *fiber.Ctx, userID string, result saveResult) error {
	result.Saved = true
	rec, err := pc.Progress.GetCourseProgress(c.UserContext(), userID, result.CourseID)
	switch {
	case err == nil:
		result.Percent = rec.ProgressPercent
		result.Completed = rec.Completed
		result.State = progress.StateOf(rec)
	case errors.Is(err, progress.ErrNotFound):
		result.State = models.StateNotStarted
	}
	return utils.Success(c, fiber.StatusOK, result)
}

func (pc *ProgressController) notSaved(c *fiber.Ctx, result saveResult) error {
	result.Saved = false
	result.Notice = saveFailedNotice
	return utils.Success(c, fiber.StatusOK, result)
}

func hasLesson(course *models.Course, lessonID string) bool {
	for _, l := range course.Lessons {
		if l.ID == lessonID {
			return true
		}
	}
	return false
}
