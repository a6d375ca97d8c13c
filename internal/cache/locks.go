package cache

import (
	"context"
	"time"

	apperrors "carepulse/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

const lockPrefix = "submission:"

// SubmissionLocks marks a form token as in flight so a second submit of the
// same form is turned away. The TTL frees tokens whose holder died.
type SubmissionLocks struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewSubmissionLocks(client redis.Cmdable, ttl time.Duration) *SubmissionLocks {
	return &SubmissionLocks{client: client, ttl: ttl}
}

func (l *SubmissionLocks) TryAcquire(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockPrefix+key, 1, l.ttl).Result()
	if err != nil {
		return false, apperrors.NewCacheFailedError("lock", err)
	}
	return ok, nil
}

func (l *SubmissionLocks) Release(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, lockPrefix+key).Err(); err != nil {
		return apperrors.NewCacheFailedError("unlock", err)
	}
	return nil
}
