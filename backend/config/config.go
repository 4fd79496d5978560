package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreGorm   = "gorm"
	StoreSQLX   = "sqlx"
	StoreMemory = "memory"
)

type Config struct {
	DBDriver   string // postgres, sqlite
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPath     string // sqlite file, ":memory:" in tests

	StoreBackend string

	JWTSecret  string
	JWTTTL     time.Duration
	ServerPort string
	LogMode    string

	RedisAddr    string
	RedisChannel string

	ReconcileInterval time.Duration
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file, using environment variables")
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		DBDriver:          strings.ToLower(v.GetString("DB_DRIVER")),
		DBHost:            v.GetString("DB_HOST"),
		DBPort:            v.GetString("DB_PORT"),
		DBUser:            v.GetString("DB_USER"),
		DBPassword:        v.GetString("DB_PASSWORD"),
		DBName:            v.GetString("DB_NAME"),
		DBPath:            v.GetString("DB_PATH"),
		StoreBackend:      strings.ToLower(v.GetString("STORE_BACKEND")),
		JWTSecret:         v.GetString("JWT_SECRET"),
		JWTTTL:            v.GetDuration("JWT_TTL"),
		ServerPort:        v.GetString("SERVER_PORT"),
		LogMode:           v.GetString("LOG_MODE"),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		RedisChannel:      v.GetString("REDIS_CHANNEL"),
		ReconcileInterval: v.GetDuration("RECONCILE_INTERVAL"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "learning_platform")
	v.SetDefault("DB_PATH", "data/philosofium.db")
	v.SetDefault("STORE_BACKEND", StoreGorm)
	v.SetDefault("JWT_SECRET", "secret")
	v.SetDefault("JWT_TTL", 72*time.Hour)
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_MODE", "development")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_CHANNEL", "progress")
	v.SetDefault("RECONCILE_INTERVAL", 15*time.Minute)
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.StoreBackend {
	case StoreGorm, StoreSQLX, StoreMemory:
	default:
		return fmt.Errorf("config: unsupported STORE_BACKEND %q", c.StoreBackend)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET must not be empty")
	}
	return nil
}

// PostgresDSN is shared by the gorm and sqlx connections.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}
