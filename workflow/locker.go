package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
)

// Locker serializes splits per parent invoice. Concurrent splits on the
// same parent would race on the final totals patch (last write wins), so
// the whole saga runs under one lock.
type Locker interface {
	// Obtain returns a release func, or ErrSplitInProgress when the key
	// is already held.
	Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

type redisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(client *redislock.Client) Locker {
	return &redisLocker{client: client}
}

func (l *redisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrSplitInProgress
	}
	if err != nil {
		return nil, err
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}
