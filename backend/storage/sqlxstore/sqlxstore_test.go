package sqlxstore

import (
	"context"
	"testing"

	"philosofium/backend/config"
	"philosofium/backend/progress"
	"philosofium/backend/storage/storetest"
	"philosofium/backend/utils"

	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) progress.Store {
		db, err := utils.OpenSQLX(&config.Config{DBDriver: "sqlite", DBPath: ":memory:"})
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		s := New(db)
		require.NoError(t, s.Migrate(context.Background()))
		return s
	})
}
