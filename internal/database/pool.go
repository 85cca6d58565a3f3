// Package database sets up the PostgreSQL pool and schema.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PoolConfig - параметры пула соединений.
type PoolConfig struct {
	DSN         string
	MaxConns    int
	IdleTimeout time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

// NewPool connects to PostgreSQL, retrying while the database starts up.
func NewPool(ctx context.Context, cfg PoolConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.IdleTimeout > 0 {
		poolCfg.MaxConnIdleTime = cfg.IdleTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
		if err == nil {
			err = pool.Ping(connectCtx)
			if err == nil {
				cancel()
				return pool, nil
			}
			pool.Close()
		}
		cancel()
		lastErr = err
		logger.Warn("Не удалось подключиться к PostgreSQL",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_delay", cfg.RetryDelay),
			zap.Error(err),
		)
		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.RetryDelay):
			}
		}
	}
	return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", maxRetries, lastErr)
}
