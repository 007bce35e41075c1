package health

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisWriterConfig holds the configuration for a RedisWriter.
type RedisWriterConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
	// TTL bounds how long a snapshot outlives a dead process. Zero means the
	// key never expires and readers rely on the timestamp alone.
	TTL time.Duration
}

// RedisWriter persists snapshots to a single Redis key, overwriting each time.
// Useful when a shared liveness view is needed across hosts and there is no
// common filesystem.
type RedisWriter struct {
	redisClient *redis.Client
	key         string
	ttl         time.Duration
	logger      zerolog.Logger
}

// NewRedisWriter connects and pings the Redis server to ensure connectivity
// before returning.
func NewRedisWriter(ctx context.Context, cfg *RedisWriterConfig, logger zerolog.Logger) (*RedisWriter, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis health key is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis.")

	return &RedisWriter{
		redisClient: rdb,
		key:         cfg.Key,
		ttl:         cfg.TTL,
		logger:      logger.With().Str("component", "RedisWriter").Logger(),
	}, nil
}

func (w *RedisWriter) Write(ctx context.Context, record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal health record: %w", err)
	}
	if err = w.redisClient.Set(ctx, w.key, data, w.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write health record to redis: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (w *RedisWriter) Close() error {
	return w.redisClient.Close()
}
