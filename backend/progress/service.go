package progress

import (
	"context"
	"time"

	"philosofium/backend/models"
	"philosofium/backend/utils"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultReconcileBatch = 500

// Service is the progress façade. Callers pass the authenticated user id
// explicitly; the service never looks up ambient session state.
type Service struct {
	store   Store
	catalog CourseCatalog
	events  Publisher
	log     *utils.Logger
	tracer  trace.Tracer
	now     func() time.Time
	batch   int
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithClock overrides the time source used for access timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithReconcileBatch sets how many rows Reconcile reads per page.
func WithReconcileBatch(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batch = n
		}
	}
}

func NewService(store Store, catalog CourseCatalog, log *utils.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		catalog: catalog,
		events:  nopPublisher{},
		log:     log.With("component", "ProgressService"),
		tracer:  otel.Tracer("philosofium/backend/progress"),
		now:     func() time.Time { return time.Now().UTC() },
		batch:   defaultReconcileBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetCourseProgress returns ErrNotFound for a course the user has not
// started and a *StorageError when the backend failed.
func (s *Service) GetCourseProgress(ctx context.Context, userID, courseID string) (*models.ProgressRecord, error) {
	ctx, span := s.start(ctx, "GetCourseProgress", userID, attribute.String("course.id", courseID))
	defer span.End()

	rec, err := s.store.GetCourseProgress(ctx, userID, courseID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		recordSpanError(span, err)
	}
	return rec, err
}

// GetUserProgress lists every course the user touched, most recent first,
// joined with catalog details. Rows whose course vanished keep a nil
// CourseDetails instead of being dropped.
func (s *Service) GetUserProgress(ctx context.Context, userID string) ([]models.CourseProgressView, error) {
	ctx, span := s.start(ctx, "GetUserProgress", userID)
	defer span.End()

	records, err := s.store.GetAllProgress(ctx, userID)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	views := make([]models.CourseProgressView, 0, len(records))
	for i := range records {
		rec := records[i]
		view := models.CourseProgressView{Progress: rec, State: StateOf(&rec)}

		course, err := s.catalog.GetCourseByID(ctx, rec.CourseID)
		switch {
		case err == nil:
			view.CourseDetails = course.Details()
		case errors.Is(err, ErrNotFound):
			s.log.Warn("progress references a missing course", "user_id", userID, "course_id", rec.CourseID)
		default:
			s.log.Warn("course lookup failed", "user_id", userID, "course_id", rec.CourseID, "error", err)
		}
		views = append(views, view)
	}
	span.SetAttributes(attribute.Int("progress.courses", len(views)))
	return views, nil
}

// MarkLessonCompleted records the lesson, recounts the user's completed
// lessons for the course and writes the derived course percentage. It
// returns the new percentage, or false when anything failed to save.
func (s *Service) MarkLessonCompleted(ctx context.Context, userID, courseID, lessonID string, totalLessons int) (int, bool) {
	ctx, span := s.start(ctx, "MarkLessonCompleted", userID,
		attribute.String("course.id", courseID),
		attribute.String("lesson.id", lessonID),
		attribute.Int("course.lessons", totalLessons),
	)
	defer span.End()
	log := s.log.With("user_id", userID, "course_id", courseID, "lesson_id", lessonID)

	if userID == "" || courseID == "" || lessonID == "" {
		log.Warn("refusing to mark lesson without identifiers")
		return 0, false
	}

	at := s.now()
	if err := s.store.UpsertLessonProgress(ctx, userID, courseID, lessonID, at); err != nil {
		s.fail(span, log, "failed to save lesson progress", err)
		return 0, false
	}

	done, err := s.store.CountCompletedLessons(ctx, userID, courseID)
	if err != nil {
		s.fail(span, log, "failed to count completed lessons", err)
		return 0, false
	}

	c := Summarize(totalLessons, done)
	if err := s.store.UpsertCourseProgress(ctx, userID, courseID, c, at); err != nil {
		s.fail(span, log, "failed to save course progress", err)
		return 0, false
	}
	c = s.stored(ctx, userID, courseID, c)

	log.Debug("lesson completed", "completed_lessons", done, "total_lessons", totalLessons, "progress", c)
	span.SetAttributes(attribute.Int("progress.percent", c.Percent()))
	s.publish(ctx, Event{
		Type:      EventProgressUpdated,
		UserID:    userID,
		CourseID:  courseID,
		LessonID:  lessonID,
		Percent:   c.Percent(),
		Completed: c.Completed(),
		State:     c.State(),
		At:        at,
	})
	return c.Percent(), true
}

// UpdateProgress overrides the course percentage directly. Out-of-range
// percentages are clamped; completed promotes the course to 100%.
func (s *Service) UpdateProgress(ctx context.Context, userID, courseID string, percent float64, completed bool) bool {
	ctx, span := s.start(ctx, "UpdateProgress", userID,
		attribute.String("course.id", courseID),
		attribute.Float64("progress.requested", percent),
	)
	defer span.End()
	log := s.log.With("user_id", userID, "course_id", courseID)

	if userID == "" || courseID == "" {
		log.Warn("refusing to update progress without identifiers")
		return false
	}

	pct, verr := ClampPercent(percent)
	if verr != nil {
		log.Warn("clamped out-of-range progress", "requested", percent, "stored", pct, "error", verr)
	}
	if completed {
		pct = 100
	}

	if pct == 0 {
		// a zero update never starts a course
		_, err := s.store.GetCourseProgress(ctx, userID, courseID)
		if errors.Is(err, ErrNotFound) {
			return true
		}
		if err != nil {
			s.fail(span, log, "failed to read course progress", err)
			return false
		}
	}

	c := FromPercent(pct)
	at := s.now()
	if err := s.store.UpsertCourseProgress(ctx, userID, courseID, c, at); err != nil {
		s.fail(span, log, "failed to save course progress", err)
		return false
	}
	c = s.stored(ctx, userID, courseID, c)

	span.SetAttributes(attribute.Int("progress.percent", c.Percent()))
	s.publish(ctx, Event{
		Type:      EventProgressUpdated,
		UserID:    userID,
		CourseID:  courseID,
		Percent:   c.Percent(),
		Completed: c.Completed(),
		State:     c.State(),
		At:        at,
	})
	return true
}

// TouchCourse records that the user opened a started course. Opening a
// course that was never started does not create progress.
func (s *Service) TouchCourse(ctx context.Context, userID, courseID string) bool {
	ctx, span := s.start(ctx, "TouchCourse", userID, attribute.String("course.id", courseID))
	defer span.End()
	log := s.log.With("user_id", userID, "course_id", courseID)

	err := s.store.TouchCourseProgress(ctx, userID, courseID, s.now())
	switch {
	case err == nil, errors.Is(err, ErrNotFound):
		return true
	default:
		s.fail(span, log, "failed to touch course progress", err)
		return false
	}
}

func (s *Service) Overview(ctx context.Context, userID string) (models.ProgressOverview, error) {
	ctx, span := s.start(ctx, "Overview", userID)
	defer span.End()

	records, err := s.store.GetAllProgress(ctx, userID)
	if err != nil {
		recordSpanError(span, err)
		return models.ProgressOverview{}, err
	}

	var ov models.ProgressOverview
	if len(records) == 0 {
		return ov, nil
	}
	total := 0
	for _, rec := range records {
		total += rec.ProgressPercent
		if rec.Completed {
			ov.CoursesCompleted++
		} else {
			ov.CoursesInProgress++
		}
	}
	ov.CoursesStarted = len(records)
	ov.AveragePercent = float64(total) / float64(len(records))
	last := records[0].LastAccessed
	ov.LastAccessed = &last
	return ov, nil
}

// Reconcile rewrites course rows whose percentage drifted from their
// lesson rows, e.g. after a failed second write or a catalog change. It
// pages through every incomplete course row and keeps access times. It
// returns the number of rows fixed.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "progress.Reconcile")
	defer span.End()

	fixed, scanned := 0, 0
	var after *Cursor
	for {
		rows, err := s.store.ListIncompleteCourseProgress(ctx, after, s.batch)
		if err != nil {
			recordSpanError(span, err)
			return fixed, err
		}
		for _, rec := range rows {
			if err := ctx.Err(); err != nil {
				return fixed, err
			}
			changed, err := s.reconcileOne(ctx, rec)
			if err != nil {
				recordSpanError(span, err)
				return fixed, err
			}
			if changed {
				fixed++
			}
		}
		scanned += len(rows)
		if len(rows) < s.batch {
			break
		}
		after = CursorAfter(rows[len(rows)-1])
	}

	span.SetAttributes(
		attribute.Int("progress.reconciled", fixed),
		attribute.Int("progress.scanned", scanned),
	)
	return fixed, nil
}

func (s *Service) reconcileOne(ctx context.Context, rec models.ProgressRecord) (bool, error) {
	done, err := s.store.CountCompletedLessons(ctx, rec.UserID, rec.CourseID)
	if err != nil || done == 0 {
		return false, err
	}
	course, err := s.catalog.GetCourseByID(ctx, rec.CourseID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	c := Summarize(len(course.Lessons), done)
	if c.Percent() == rec.ProgressPercent && c.Completed() == rec.Completed {
		return false, nil
	}
	if err := s.store.UpsertCourseProgress(ctx, rec.UserID, rec.CourseID, c, rec.LastAccessed); err != nil {
		return false, err
	}
	c = s.stored(ctx, rec.UserID, rec.CourseID, c)

	s.log.Info("reconciled course progress",
		"user_id", rec.UserID, "course_id", rec.CourseID,
		"stored", rec.ProgressPercent, "derived", c.Percent())
	s.publish(ctx, Event{
		Type:      EventProgressUpdated,
		UserID:    rec.UserID,
		CourseID:  rec.CourseID,
		Percent:   c.Percent(),
		Completed: c.Completed(),
		State:     c.State(),
		At:        s.now(),
	})
	return true, nil
}

// stored reads the course row back after a write. A completed row keeps
// its value, so the written Completion is not always what was saved.
func (s *Service) stored(ctx context.Context, userID, courseID string, written Completion) Completion {
	rec, err := s.store.GetCourseProgress(ctx, userID, courseID)
	if err != nil {
		s.log.Warn("could not read back course progress", "user_id", userID, "course_id", courseID, "error", err)
		return written
	}
	return CompletionOf(rec)
}

func (s *Service) start(ctx context.Context, op, userID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("user.id", userID))
	return s.tracer.Start(ctx, "progress."+op, trace.WithAttributes(attrs...))
}

func (s *Service) fail(span trace.Span, log *utils.Logger, msg string, err error) {
	recordSpanError(span, err)
	log.Error(msg, "error", err, "retryable", IsStorageError(err))
}

func (s *Service) publish(ctx context.Context, ev Event) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("failed to publish progress event", "user_id", ev.UserID, "course_id", ev.CourseID, "error", err)
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
