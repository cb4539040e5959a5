// ABOUTME: In-process keyed mutex that serializes scans of the same file
// ABOUTME: Entries are reference counted and dropped once no caller holds or waits

package service

import (
	"context"
	"sync"
)

// Locker serializes work per file ID. Release must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, fileID string) (release func(), err error)
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

// LocalLocker is a Locker for a single process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// NewLocalLocker creates an empty keyed mutex.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*lockEntry)}
}

// Lock waits for fileID's lock or ctx to end.
func (l *LocalLocker) Lock(ctx context.Context, fileID string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[fileID]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.locks[fileID] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.drop(fileID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.drop(fileID, e)
		})
	}, nil
}

func (l *LocalLocker) drop(fileID string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.locks, fileID)
	}
}

// Held returns the number of file IDs with a holder or waiter.
func (l *LocalLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
