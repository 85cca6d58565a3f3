package locker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cyprus7/quest-engine/internal/locker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_SerializesSameKey(t *testing.T) {
	l := locker.NewLocalLocker()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, locker.SessionKey("u", "q"))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestLocalLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := locker.NewLocalLocker()
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, locker.ChestKey("a"))
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := l.Lock(ctx, locker.ChestKey("b"))
	require.NoError(t, err)
	unlockB()
}

func TestLocalLocker_Timeout(t *testing.T) {
	l := locker.NewLocalLocker()

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, locker.ErrLockTimeout)

	unlock()
	unlock() // повторный вызов безопасен

	again, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	again()
}
