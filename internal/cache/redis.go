package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/addynoven/portfolio-web/internal/xerrors"
)

const (
	redisMaxRetries      = 3
	redisMinRetryBackoff = 100 * time.Millisecond
	redisMaxRetryBackoff = 2 * time.Second
)

// RedisStore implements Store on a go-redis client. The client dials lazily,
// so construction never blocks on the network.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore parses a redis:// or rediss:// URL. An empty URL yields a nil
// store and no error: caching is simply disabled.
func NewRedisStore(rawURL string) (*RedisStore, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, xerrors.Wrap(err, "parse redis url")
	}
	opt.MaxRetries = redisMaxRetries
	opt.MinRetryBackoff = redisMinRetryBackoff
	opt.MaxRetryBackoff = redisMaxRetryBackoff
	return &RedisStore{rdb: redis.NewClient(opt)}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, xerrors.Wrapf(err, "redis get %q", key)
	}
	return b, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, val, ttl).Err(); err != nil {
		return xerrors.Wrapf(err, "redis set %q", key)
	}
	return nil
}

// Ping checks connectivity. Used for a startup log line, never to gate startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return xerrors.Wrap(err, "redis ping")
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
