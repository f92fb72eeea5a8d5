package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nursingcollective/cartengine/pkg/config"
	"github.com/nursingcollective/cartengine/pkg/logger"
	"github.com/nursingcollective/cartengine/pkg/storage"
	"github.com/redis/go-redis/v9"
)

const (
	keyNamespace = "nc"
	localPrefix  = "local"
)

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// Store keeps local cart entries in Redis without expiry, matching browser
// local storage lifetime.
type Store struct {
	store cmdable
	raw   *redis.Client
}

var _ storage.Store = (*Store)(nil)

// New bootstraps a Redis client with pooling/timeouts and verifies connectivity.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Store, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "addr", opts.Addr), "redis local store connected")
	}
	return &Store{store: raw, raw: raw}, nil
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// Get returns the value stored at key or storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if s.store == nil {
		return nil, errors.New("redis client not initialized")
	}
	value, err := s.store.Get(ctx, s.LocalKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores value with no TTL.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if s.store == nil {
		return errors.New("redis client not initialized")
	}
	return s.store.Set(ctx, s.LocalKey(key), value, 0).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if s.store == nil {
		return errors.New("redis client not initialized")
	}
	return s.store.Del(ctx, s.LocalKey(key)).Err()
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	if s.store == nil {
		return errors.New("redis client not initialized")
	}
	return s.store.Ping(ctx).Err()
}

// Close shuts down the underlying client if available.
func (s *Store) Close() error {
	if s.raw == nil {
		return nil
	}
	return s.raw.Close()
}

// LocalKey returns the namespaced key for a local storage entry.
func (s *Store) LocalKey(key string) string {
	return buildKey(localPrefix, key)
}

func buildKey(parts ...string) string {
	clean := []string{keyNamespace}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		clean = append(clean, part)
	}
	return strings.Join(clean, ":")
}
