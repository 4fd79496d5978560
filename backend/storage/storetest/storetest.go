// Package storetest holds the behaviour every progress.Store backend must
// share. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"philosofium/backend/progress"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) progress.Store

var base = time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)

func Run(t *testing.T, newStore Factory) {
	t.Run("NotStartedIsNotFound", func(t *testing.T) { testNotStarted(t, newStore(t)) })
	t.Run("CourseUpsertKeepsOneRow", func(t *testing.T) { testCourseUpsert(t, newStore(t)) })
	t.Run("CompletedStaysCompleted", func(t *testing.T) { testCompletedTerminal(t, newStore(t)) })
	t.Run("LessonUpsertIsIdempotent", func(t *testing.T) { testLessonIdempotent(t, newStore(t)) })
	t.Run("CountIsScopedToUserAndCourse", func(t *testing.T) { testCountScope(t, newStore(t)) })
	t.Run("GetAllProgressOrderedByRecency", func(t *testing.T) { testOrdering(t, newStore(t)) })
	t.Run("TouchRefreshesStartedCourse", func(t *testing.T) { testTouch(t, newStore(t)) })
	t.Run("ListIncomplete", func(t *testing.T) { testListIncomplete(t, newStore(t)) })
	t.Run("ListIncompletePaging", func(t *testing.T) { testListIncompletePaging(t, newStore(t)) })
	t.Run("ConcurrentUpserts", func(t *testing.T) { testConcurrent(t, newStore(t)) })
}

func testNotStarted(t *testing.T, s progress.Store) {
	ctx := context.Background()

	rec, err := s.GetCourseProgress(ctx, "u1", "c1")
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, progress.ErrNotFound)

	all, err := s.GetAllProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, all)

	n, err := s.CountCompletedLessons(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testCourseUpsert(t *testing.T, s progress.Store) {
	ctx := context.Background()

	require.NoError(t, s.UpsertCourseProgress(ctx, "u1", "c1", progress.FromPercent(25), base))
	require.NoError(t, s.UpsertCourseProgress(ctx, "u1", "c1", progress.FromPercent(60), base.Add(time.Minute)))

	rec, err := s.GetCourseProgress(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, "c1", rec.CourseID)
	assert.Empty(t, rec.LessonID)
	assert.Equal(t, 60, rec.ProgressPercent)
	assert.False(t, rec.Completed)
	assert.True(t, rec.LastAccessed.Equal(base.Add(time.Minute)), "last accessed %s", rec.LastAccessed)
	assert.NotEmpty(t, rec.ID)

	all, err := s.GetAllProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testCompletedTerminal(t *testing.T, s progress.Store) {
	ctx := context.Background()

	require.NoError(t, s.UpsertCourseProgress(ctx, "u1", "c1", progress.FromPercent(100), base))
	require.NoError(t, s.UpsertCourseProgress(ctx, "u1", "c1", progress.FromPercent(40), base.Add(time.Hour)))

	rec, err := s.GetCourseProgress(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.True(t, rec.Completed)
	assert.Equal(t, 100, rec.ProgressPercent)
	assert.True(t, rec.LastAccessed.Equal(base.Add(time.Hour)))
}

func testLessonIdempotent(t *testing.T, s progress.Store) {
	ctx := context.Background()

	require.NoError(t, s.UpsertLessonProgress(ctx, "u1", "c1", "l1", base))
	require.NoError(t, s.UpsertLessonProgress(ctx, "u1", "c1", "l1", base.Add(time.Minute)))

	n, err := s.CountCompletedLessons(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// lesson rows are not course progress
	_, err = s.GetCourseProgress(ctx, "u1", "c1")
	assert.ErrorIs(t, err, progress.ErrNotFound)
}

func testCountScope(t *testing.T, s progress.Store) {
	ctx := context.Background()

	require.NoError(t, s.UpsertLessonProgress(ctx, "u1", "c1", "l1", base))
	require.NoError(t, s.UpsertLessonProgress(ctx, "u1", "c1", "l2", base))
	require.NoError(t, s.UpsertLessonProgress(ctx, "u1", "c2", "l1", base))
	require.NoError(t, s.UpsertLessonProgress(ctx, "u2", "c1", "l3", base))
	require.NoError(t, s.UpsertCourseProgress(ctx, "u1", "c1", progress.FromPercent(50), base))

	n, err := s.CountCompletedLessons(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.CountCompletedLessons(ctx, "u2", "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testOrdering(t *testing.T, s progress.Store) {
	ctx := context.Background()

	require.NoError(t, s.UpsertCourseProgress(ctx, "u1", "old", progress.FromPercent(10), base))
	require.NoError(t, s.UpsertCourseProgress(ctx, "u1", "new", progress.FromPercent(20), base.Add(2*time.Hour)))
	require.NoError(t, s.UpsertCourseProgress(ctx, "u1", "mid", progress.FromPercent(30), base.Add(time.Hour)))
	require.NoError(t, s.UpsertLessonProgress(ctx, "u1", "new", "l1", base.Add(3*time.Hour)))
	require.NoError(t, s.UpsertCourseProgress(ctx, "u2", "other", progress.FromPercent(30), base))

	all, err := s.GetAllProgress(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].CourseID)
	assert.Equal(t, "mid", all[1].CourseID)
	assert.Equal(t, "old", all[2].CourseID)
}

func testTouch(t *testing.T, s progress.Store) {
	ctx := context.Background()

	err := s.TouchCourseProgress(ctx, "u1", "c1", base)
	assert.ErrorIs(t, err, progress.ErrNotFound)
	_, err = s.GetCourseProgress(ctx, "u1", "c1")
	assert.ErrorIs(t, err, progress.ErrNotFound)

	require.NoError(t, s.UpsertCourseProgress(ctx, "u1", "c1", progress.FromPercent(30), base))
	require.NoError(t, s.TouchCourseProgress(ctx, "u1", "c1", base.Add(time.Hour)))

	rec, err := s.GetCourseProgress(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 30, rec.ProgressPercent)
	assert.True(t, rec.LastAccessed.Equal(base.Add(time.Hour)))
}

func testListIncomplete(t *testing.T, s progress.Store) {
	ctx := context.Background()

	require.NoError(t, s.UpsertCourseProgress(ctx, "u1", "c1", progress.FromPercent(10), base.Add(time.Hour)))
	require.NoError(t, s.UpsertCourseProgress(ctx, "u2", "c1", progress.FromPercent(20), base))
	require.NoError(t, s.UpsertCourseProgress(ctx, "u1", "c2", progress.FromPercent(100), base))
	require.NoError(t, s.UpsertLessonProgress(ctx, "u1", "c3", "l1", base))

	rows, err := s.ListIncompleteCourseProgress(ctx, nil, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "u2", rows[0].UserID)
	assert.Equal(t, "u1", rows[1].UserID)

	rows, err = s.ListIncompleteCourseProgress(ctx, nil, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "u2", rows[0].UserID)

	rows, err = s.ListIncompleteCourseProgress(ctx, progress.CursorAfter(rows[0]), 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "u1", rows[0].UserID)

	rows, err = s.ListIncompleteCourseProgress(ctx, progress.CursorAfter(rows[0]), 1)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// rows sharing an access time are still visited exactly once
func testListIncompletePaging(t *testing.T, s progress.Store) {
	ctx := context.Background()

	for _, user := range []string{"u1", "u2", "u3", "u4", "u5"} {
		require.NoError(t, s.UpsertCourseProgress(ctx, user, "c1", progress.FromPercent(10), base))
	}
	require.NoError(t, s.UpsertCourseProgress(ctx, "u6", "c1", progress.FromPercent(10), base.Add(time.Minute)))

	seen := map[string]int{}
	var after *progress.Cursor
	for pages := 0; pages < 10; pages++ {
		rows, err := s.ListIncompleteCourseProgress(ctx, after, 2)
		require.NoError(t, err)
		for _, rec := range rows {
			seen[rec.UserID]++
		}
		if len(rows) < 2 {
			break
		}
		after = progress.CursorAfter(rows[len(rows)-1])
	}

	assert.Len(t, seen, 6)
	for user, n := range seen {
		assert.Equal(t, 1, n, user)
	}
}

func testConcurrent(t *testing.T, s progress.Store) {
	ctx := context.Background()
	const writers = 16

	var wg sync.WaitGroup
	errs := make(chan error, 2*writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			at := base.Add(time.Duration(i) * time.Second)
			errs <- s.UpsertCourseProgress(ctx, "u1", "c1", progress.FromPercent(i), at)
			errs <- s.UpsertLessonProgress(ctx, "u1", "c1", "l1", at)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := s.GetAllProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	n, err := s.CountCompletedLessons(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
