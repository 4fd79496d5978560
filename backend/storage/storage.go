// Package storage selects the progress.Store backend named in the config.
package storage

import (
	"context"

	"philosofium/backend/config"
	"philosofium/backend/progress"
	"philosofium/backend/storage/gormstore"
	"philosofium/backend/storage/memstore"
	"philosofium/backend/storage/sqlxstore"
	"philosofium/backend/utils"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Open builds and migrates the configured store. The returned close func
// releases connections the store opened itself; db stays owned by the
// caller.
func Open(ctx context.Context, cfg *config.Config, db *gorm.DB, log *utils.Logger) (progress.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreBackend {
	case config.StoreMemory:
		log.Warn("using in-memory progress store; progress is lost on restart")
		return memstore.New(), noop, nil

	case config.StoreSQLX:
		sdb, err := utils.OpenSQLX(cfg)
		if err != nil {
			return nil, nil, err
		}
		s := sqlxstore.New(sdb)
		if err := s.Migrate(ctx); err != nil {
			sdb.Close()
			return nil, nil, err
		}
		return s, sdb.Close, nil

	case config.StoreGorm, "":
		if db == nil {
			return nil, nil, errors.New("gorm store needs a database handle")
		}
		s := gormstore.New(db, log)
		if err := s.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		return s, noop, nil

	default:
		return nil, nil, errors.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
