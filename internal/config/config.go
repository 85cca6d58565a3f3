// Package config loads quest-engine configuration from the environment and Docker secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config содержит конфигурацию quest-engine.
type Config struct {
	// Сервер
	Port        string `envconfig:"QUEST_SERVER_PORT" default:"8085"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	// Хранилище прогресса
	StoreDriver   string        `envconfig:"STORE_DRIVER" default:"postgres"`
	DBHost        string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" default:"quest"`
	DBName        string        `envconfig:"DB_NAME" default:"quest"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	DBAutoMigrate bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
	// Секрет, без envconfig тега
	DBPassword string `ignored:"true"`

	// Блокировки. Пустой REDIS_ADDR = блокировки в памяти процесса.
	RedisAddr string        `envconfig:"REDIS_ADDR"`
	RedisDB   int           `envconfig:"REDIS_DB" default:"0"`
	LockTTL   time.Duration `envconfig:"LOCK_TTL" default:"10s"`
	LockWait  time.Duration `envconfig:"LOCK_WAIT" default:"5s"`

	// Экспорт наград. Пустой RABBITMQ_URL = экспорт только в лог.
	RabbitMQURL        string `envconfig:"RABBITMQ_URL"`
	RewardsExportQueue string `envconfig:"REWARDS_EXPORT_QUEUE" default:"quest_rewards_export"`

	// Контент
	ContentDir           string `envconfig:"CONTENT_DIR" default:"./content"`
	ContentDefaultLocale string `envconfig:"CONTENT_DEFAULT_LOCALE" default:"en"`
	ContentCacheSize     int    `envconfig:"CONTENT_CACHE_SIZE" default:"256"`

	SecretsDir string `envconfig:"SECRETS_DIR" default:"/run/secrets"`

	// Секреты, без envconfig тега
	JWTSecret string `ignored:"true"`
	RNGSecret string `ignored:"true"`
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// RedactedDSN is GetDSN without the password, for logs.
func (c *Config) RedactedDSN() string {
	return fmt.Sprintf("postgres://%s:***@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig загружает конфигурацию из переменных окружения и секретов.
// db_password читается только для STORE_DRIVER=postgres.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load quest-engine config: %w", err)
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		password, err := ReadSecret(cfg.SecretsDir, "db_password")
		if err != nil {
			return nil, err
		}
		cfg.DBPassword = password
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	var err error
	if cfg.JWTSecret, err = ReadSecret(cfg.SecretsDir, "jwt_secret"); err != nil {
		return nil, err
	}
	if cfg.RNGSecret, err = ReadSecret(cfg.SecretsDir, "quest_rng_secret"); err != nil {
		return nil, err
	}
	if cfg.ContentCacheSize <= 0 {
		return nil, fmt.Errorf("CONTENT_CACHE_SIZE must be positive, got %d", cfg.ContentCacheSize)
	}
	return &cfg, nil
}

// ReadSecret читает секрет из файла в каталоге Docker Secrets.
func ReadSecret(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", path, err)
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", path)
	}
	return secret, nil
}
