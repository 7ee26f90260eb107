package memory

import (
	"context"
	"sync"
)

// groupLocks: мьютексы по ключу группы с подсчётом ссылок.
type groupLocks struct {
	mu    sync.Mutex
	locks map[string]*groupLock
}

type groupLock struct {
	ch   chan struct{}
	refs int
}

func newGroupLocks() *groupLocks {
	return &groupLocks{locks: make(map[string]*groupLock)}
}

// acquire блокирует группу до вызова release или отмены ctx.
func (g *groupLocks) acquire(ctx context.Context, key string) (func(), error) {
	g.mu.Lock()
	lock, ok := g.locks[key]
	if !ok {
		lock = &groupLock{ch: make(chan struct{}, 1)}
		g.locks[key] = lock
	}
	lock.refs++
	g.mu.Unlock()

	select {
	case lock.ch <- struct{}{}:
	case <-ctx.Done():
		g.unref(key, lock)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lock.ch
			g.unref(key, lock)
		})
	}, nil
}

func (g *groupLocks) unref(key string, lock *groupLock) {
	g.mu.Lock()
	defer g.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(g.locks, key)
	}
}
