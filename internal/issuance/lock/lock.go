// Package lock serializes workflow transitions per key across goroutines or,
// with Redis, across processes.
package lock

import (
	"context"

	platformsync "idmanager/pkg/platform/sync"
)

// Locker acquires a per-key lock. release is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// ConnectionKey guards accept and offer creation for one agent connection.
func ConnectionKey(connectionID string) string {
	return "connection:" + connectionID
}

// RequestKey guards invitation creation and revocation for one request.
func RequestKey(code string) string {
	return "request:" + code
}

// LocalLocker is an in-process Locker.
type LocalLocker struct {
	mu *platformsync.KeyedMutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{mu: platformsync.NewKeyedMutex()}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if err := l.mu.Lock(ctx, key); err != nil {
		return nil, err
	}
	return once(func() { l.mu.Unlock(key) }), nil
}

func once(fn func()) func() {
	done := false
	return func() {
		if done {
			return
		}
		done = true
		fn()
	}
}

var _ Locker = (*LocalLocker)(nil)
