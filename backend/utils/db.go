package utils

import (
	"os"
	"path/filepath"

	"philosofium/backend/config"
	"philosofium/backend/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// InitDB opens the gorm connection and migrates the user and catalog
// tables. Progress tables are migrated by the selected store.
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		if err := ensureDir(cfg.DBPath); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(cfg.DBPath)
	default:
		dialector = postgres.Open(cfg.PostgresDSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	if cfg.DBDriver == "sqlite" {
		// one writer; also keeps ":memory:" databases on a single connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, "getting sql.DB")
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Lesson{},
	); err != nil {
		return nil, errors.Wrap(err, "migrating database")
	}
	return db, nil
}

// OpenSQLX opens the connection used by the sqlx progress store.
func OpenSQLX(cfg *config.Config) (*sqlx.DB, error) {
	switch cfg.DBDriver {
	case "sqlite":
		if err := ensureDir(cfg.DBPath); err != nil {
			return nil, err
		}
		db, err := sqlx.Connect("sqlite3", cfg.DBPath)
		if err != nil {
			return nil, errors.Wrap(err, "connecting to sqlite")
		}
		db.SetMaxOpenConns(1)
		return db, nil
	default:
		db, err := sqlx.Connect("postgres", cfg.PostgresDSN())
		if err != nil {
			return nil, errors.Wrap(err, "connecting to postgres")
		}
		return db, nil
	}
}

func ensureDir(dbPath string) error {
	if dbPath == "" || dbPath == ":memory:" || filepath.Dir(dbPath) == "." {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return errors.Wrap(err, "creating data directory")
	}
	return nil
}
