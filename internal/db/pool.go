package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/mathieu-neron/segvote/internal/config"
)

const (
	maxRetries    = 5
	retryInterval = 2 * time.Second
)

// Pools holds the logical stores. Replica serves read-only queries that
// tolerate lag and falls back to Public when no replica is configured.
type Pools struct {
	Public  *pgxpool.Pool
	Replica *pgxpool.Pool
	Private *pgxpool.Pool
}

// Open connects every configured store.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Pools, error) {
	public, err := NewPool(ctx, cfg.URL, logger.With().Str("store", "public").Logger())
	if err != nil {
		return nil, err
	}

	replica := public
	if cfg.ReplicaURL != "" {
		replica, err = NewPool(ctx, cfg.ReplicaURL, logger.With().Str("store", "replica").Logger())
		if err != nil {
			public.Close()
			return nil, err
		}
	}

	private, err := NewPool(ctx, cfg.PrivateURL, logger.With().Str("store", "private").Logger())
	if err != nil {
		if replica != public {
			replica.Close()
		}
		public.Close()
		return nil, err
	}

	return &Pools{Public: public, Replica: replica, Private: private}, nil
}

// Close releases all pools.
func (p *Pools) Close() {
	p.Private.Close()
	if p.Replica != p.Public {
		p.Replica.Close()
	}
	p.Public.Close()
}

func NewPool(ctx context.Context, databaseURL string, logger zerolog.Logger) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= maxRetries; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				logger.Info().Msg("database connected")
				return pool, nil
			} else {
				pool.Close()
				err = pingErr
			}
		}

		logger.Warn().Err(err).Int("attempt", attempt).Int("max", maxRetries).Msg("database connection attempt failed")
		if attempt < maxRetries {
			time.Sleep(retryInterval)
		}
	}

	return nil, fmt.Errorf("database connection failed after %d attempts: %w", maxRetries, err)
}
