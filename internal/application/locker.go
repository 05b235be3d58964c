package application

import (
	"context"
	"time"
)

// Locker serializes check-then-act sequences on a key. The returned func
// releases the lock. Failures wrap domain.ErrLockUnavailable.
type Locker interface {
	Acquire(ctx context.Context, key string) (unlock func(), err error)
}

// WithLockTimeout bounds how long Acquire on l may wait. A non-positive d
// returns l unchanged.
func WithLockTimeout(l Locker, d time.Duration) Locker {
	if d <= 0 {
		return l
	}
	return timeoutLocker{Locker: l, timeout: d}
}

type timeoutLocker struct {
	Locker
	timeout time.Duration
}

func (t timeoutLocker) Acquire(ctx context.Context, key string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Locker.Acquire(ctx, key)
}

func jobLockKey(jobID string) string         { return "job:" + jobID }
func operatorLockKey(operator string) string { return "operator:" + operator }
func machineLockKey(machineID string) string { return "machine:" + machineID }
