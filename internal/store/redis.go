package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// dayLockTTL bounds how long a crashed run can hold a daily lock.
const dayLockTTL = 10 * time.Minute

// NewRedisClient creates and pings a Redis client with optional password auth.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

// DayLocker serializes daily-card generation per (user, date) so a manual
// trigger and the schedule firing together cannot run concurrently.
type DayLocker struct {
	rdb *redis.Client
}

func NewDayLocker(rdb *redis.Client) *DayLocker {
	return &DayLocker{rdb: rdb}
}

func (l *DayLocker) key(userID, date string) string {
	return "daily:lock:" + userID + ":" + date
}

func (l *DayLocker) AcquireDayLock(ctx context.Context, userID, date string) (bool, error) {
	return l.rdb.SetNX(ctx, l.key(userID, date), "1", dayLockTTL).Result()
}

func (l *DayLocker) ReleaseDayLock(ctx context.Context, userID, date string) {
	l.rdb.Del(ctx, l.key(userID, date))
}
