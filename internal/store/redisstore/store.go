package redisstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps the per-user message counters and the password reset
// rate limit. Counters are advisory: callers treat redis outages as
// "no limit" rather than refusing service.
type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func dayKey(userID uint64, now time.Time) string {
	return fmt.Sprintf("usage:day:%d:%s", userID, now.Format("2006-01-02"))
}

func monthKey(userID uint64, now time.Time) string {
	return fmt.Sprintf("usage:month:%d:%s", userID, now.Format("2006-01"))
}

// IncrToday bumps the day and month counters in one round trip. Keys
// expire on their own; the day key outlives its day so dashboards can
// look one day back.
func (s *Store) IncrToday(ctx context.Context, userID uint64) error {
	now := time.Now()
	pipe := s.rdb.TxPipeline()
	pipe.Incr(ctx, dayKey(userID, now))
	pipe.Expire(ctx, dayKey(userID, now), 48*time.Hour)
	pipe.Incr(ctx, monthKey(userID, now))
	pipe.Expire(ctx, monthKey(userID, now), 40*24*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) UsedToday(ctx context.Context, userID uint64) (int64, error) {
	n, err := s.rdb.Get(ctx, dayKey(userID, time.Now())).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

func (s *Store) UsedThisMonth(ctx context.Context, userID uint64) (int64, error) {
	n, err := s.rdb.Get(ctx, monthKey(userID, time.Now())).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

const (
	resetWindow      = time.Hour
	resetMaxRequests = 3
)

// AllowPasswordReset caps recovery mails per address per hour. Errors
// report true so a redis outage cannot lock users out of recovery.
func (s *Store) AllowPasswordReset(ctx context.Context, emailAddr string) (bool, error) {
	key := "reset:rl:" + strings.ToLower(strings.TrimSpace(emailAddr))
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return true, err
	}
	if n == 1 {
		if err := s.rdb.Expire(ctx, key, resetWindow).Err(); err != nil {
			return true, err
		}
	}
	return n <= resetMaxRequests, nil
}
