// Package locker serializes read-modify-write cycles per session or chest key.
package locker

import (
	"context"
	"errors"
	"sync"
)

// ErrLockTimeout is returned when a lock could not be acquired in time.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Locker acquires an exclusive lock on key. The returned unlock must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// SessionKey - ключ блокировки сессии пользователя в квесте.
func SessionKey(userID, questID string) string {
	return "session:" + userID + ":" + questID
}

// ChestKey - ключ блокировки экземпляра сундука.
func ChestKey(chestInstanceID string) string {
	return "chest:" + chestInstanceID
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

// localLocker - блокировки в пределах одного процесса.
type localLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// NewLocalLocker returns a Locker valid within a single process.
func NewLocalLocker() Locker {
	return &localLocker{locks: make(map[string]*lockEntry)}
}

func (l *localLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &lockEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, entry)
		return nil, errors.Join(ErrLockTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.ch
			l.release(key, entry)
		})
	}, nil
}

func (l *localLocker) release(key string, entry *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
}
