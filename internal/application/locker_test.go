package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
	"github.com/HenryGill4/OpCentrix-sub006/internal/infrastructure/lock"
)

func TestWithLockTimeout(t *testing.T) {
	inner := lock.NewKeyedLocker()
	assert.Equal(t, Locker(inner), WithLockTimeout(inner, 0))

	locker := WithLockTimeout(inner, 20*time.Millisecond)

	unlock, err := locker.Acquire(context.Background(), jobLockKey("J1"))
	require.NoError(t, err)

	started := time.Now()
	_, err = locker.Acquire(context.Background(), jobLockKey("J1"))
	require.ErrorIs(t, err, domain.ErrLockUnavailable)
	assert.Less(t, time.Since(started), time.Second)

	// the held lock outlives the acquire timeout
	time.Sleep(30 * time.Millisecond)
	_, err = locker.Acquire(context.Background(), jobLockKey("J1"))
	require.ErrorIs(t, err, domain.ErrLockUnavailable)

	unlock()
	unlock2, err := locker.Acquire(context.Background(), jobLockKey("J1"))
	require.NoError(t, err)
	unlock2()
}
