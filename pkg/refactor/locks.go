package refactor

import (
	"context"
	"sync"
)

// fileLocks serializes extractions per source file.
type fileLocks struct {
	mu    sync.Mutex
	locks map[string]*fileLock
}

type fileLock struct {
	ch   chan struct{}
	refs int
}

func newFileLocks() *fileLocks {
	return &fileLocks{locks: make(map[string]*fileLock)}
}

// acquire blocks until path is free or ctx is done.
func (l *fileLocks) acquire(ctx context.Context, path string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[path]
	if !ok {
		lk = &fileLock{ch: make(chan struct{}, 1)}
		l.locks[path] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(path, lk)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.ch
			l.unref(path, lk)
		})
	}, nil
}

func (l *fileLocks) unref(path string, lk *fileLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, path)
	}
}

// held returns the number of paths with a holder or waiter.
func (l *fileLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
