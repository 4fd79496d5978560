package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, StoreGorm, cfg.StoreBackend)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "progress", cfg.RedisChannel)
	assert.Equal(t, 15*time.Minute, cfg.ReconcileInterval)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("STORE_BACKEND", "sqlx")
	t.Setenv("RECONCILE_INTERVAL", "30s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, StoreSQLX, cfg.StoreBackend)
	assert.Equal(t, 30*time.Second, cfg.ReconcileInterval)
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "mongo")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "db", DBPort: "5433", DBName: "lms"}
	assert.Equal(t, "postgres://u:p@db:5433/lms?sslmode=disable", cfg.PostgresDSN())
}
