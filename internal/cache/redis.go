package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/openridge/trailforge-backend/internal/pkg/logger"
)

type redisStore struct {
	log *logger.Logger
	rdb *goredis.Client
}

// NewRedisStore connects to REDIS_ADDR and verifies the connection before
// returning.
func NewRedisStore(log *logger.Logger) (Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisStore{
		log: log.With("service", "RedisLeaderboardCache"),
		rdb: rdb,
	}, nil
}

func (s *redisStore) Get(ctx context.Context, key Key) (*Board, bool, error) {
	raw, err := s.rdb.Get(ctx, key.String()).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var board Board
	if err := json.Unmarshal(raw, &board); err != nil {
		// A corrupt entry behaves like a miss; the next Set overwrites it.
		s.log.Warn("Dropping unreadable cache entry", "key", key.String(), "error", err)
		return nil, false, nil
	}
	return &board, true, nil
}

func (s *redisStore) Set(ctx context.Context, key Key, board *Board, ttl time.Duration) error {
	raw, err := json.Marshal(board)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key.String(), raw, ttl).Err()
}

func (s *redisStore) DeleteByPrefix(ctx context.Context, prefix string) error {
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}
