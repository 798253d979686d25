package utils

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/reconcile_backend/config"
)

var ErrLockNotObtained = errors.New("could not obtain lock")

const lockRetryInterval = 50 * time.Millisecond

// ObtainLocks takes one Redis lock per key, in the order given, and returns a
// func that releases all of them. Callers that lock several keys must pass
// them in a globally consistent order.
//
// Without a configured Redis client it returns a no-op release: the database
// transaction is then the only serialization point.
func ObtainLocks(ctx context.Context, keys []string, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil || len(keys) == 0 {
		return func() {}, nil
	}

	retries := int(config.LedgerLockWait() / lockRetryInterval)
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(lockRetryInterval), retries),
	}

	held := make([]*redislock.Lock, 0, len(keys))
	release := func() {
		// background ctx: release must still happen when the request ctx is cancelled
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i].Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				config.LogError(logger, moduleName, functionName, "release lock", held[i].Key(), err)
			}
		}
	}

	for _, key := range keys {
		lock, err := locker.Obtain(ctx, key, config.LedgerLockTTL(), opts)
		if errors.Is(err, redislock.ErrNotObtained) {
			release()
			return nil, ErrLockNotObtained
		} else if err != nil {
			release()
			config.LogError(logger, moduleName, functionName, "obtain lock", key, err)
			return nil, err
		}
		held = append(held, lock)
	}
	return release, nil
}
