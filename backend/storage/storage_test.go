package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"philosofium/backend/config"
	"philosofium/backend/progress"
	"philosofium/backend/storage/gormstore"
	"philosofium/backend/storage/memstore"
	"philosofium/backend/storage/sqlxstore"
	"philosofium/backend/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()
	log := utils.NewNopLogger()
	dir := t.TempDir()

	cfg := &config.Config{DBDriver: "sqlite", DBPath: filepath.Join(dir, "app.db")}
	db, err := utils.InitDB(cfg)
	require.NoError(t, err)

	cases := []struct {
		backend string
		check   func(progress.Store) bool
	}{
		{config.StoreMemory, func(s progress.Store) bool { _, ok := s.(*memstore.Store); return ok }},
		{config.StoreGorm, func(s progress.Store) bool { _, ok := s.(*gormstore.Store); return ok }},
		{config.StoreSQLX, func(s progress.Store) bool { _, ok := s.(*sqlxstore.Store); return ok }},
	}
	for _, tc := range cases {
		t.Run(tc.backend, func(t *testing.T) {
			c := *cfg
			c.StoreBackend = tc.backend
			s, closeFn, err := Open(ctx, &c, db, log)
			require.NoError(t, err)
			defer closeFn()
			assert.True(t, tc.check(s))

			require.NoError(t, s.UpsertCourseProgress(ctx, "u1", "c-"+tc.backend, progress.FromPercent(10), time.Now()))
			rec, err := s.GetCourseProgress(ctx, "u1", "c-"+tc.backend)
			require.NoError(t, err)
			assert.Equal(t, 10, rec.ProgressPercent)
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, _, err := Open(context.Background(), &config.Config{StoreBackend: "cassandra"}, nil, utils.NewNopLogger())
	assert.Error(t, err)
}
