package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orghub/security-log/internal/storage"
)

// Sliding-window counter over a redis sorted set, keyed per caller. Used to
// shield the audit read API from scraping.
type SlidingWindow struct {
	redis  *storage.RedisClient
	limit  int
	window time.Duration
}

func NewSlidingWindow(redis *storage.RedisClient, limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		redis:  redis,
		limit:  limit,
		window: window,
	}
}

func (s *SlidingWindow) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("ratelimit:auditapi:%s", key)
	now := time.Now()
	windowStart := now.Add(-s.window)

	pipe := s.redis.Pipeline()

	// Drop entries that slid out of the window, then count what remains
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	countCmd := pipe.ZCard(ctx, redisKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	if countCmd.Val() >= int64(s.limit) {
		return false, nil
	}

	s.redis.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	s.redis.Expire(ctx, redisKey, s.window)

	return true, nil
}

func (s *SlidingWindow) Remaining(ctx context.Context, key string) (int, error) {
	redisKey := fmt.Sprintf("ratelimit:auditapi:%s", key)
	now := time.Now()
	windowStart := now.Add(-s.window)

	count, err := s.redis.ZCount(ctx, redisKey, fmt.Sprintf("%d", windowStart.UnixNano()), fmt.Sprintf("%d", now.UnixNano()))
	if err != nil {
		return 0, err
	}

	remaining := s.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}

func (s *SlidingWindow) Limit() int {
	return s.limit
}
