package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	output "model-gateway-service/internal/core/ports/output"
)

// LocalLocker is an in-process per-model mutex. Entries are reference counted
// and removed once no goroutine holds or waits on them.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*localLock
}

type localLock struct {
	sem  chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[uuid.UUID]*localLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, modelID uuid.UUID) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[modelID]
	if !ok {
		lk = &localLock{sem: make(chan struct{}, 1)}
		l.locks[modelID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(modelID, lk)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.sem
			l.release(modelID, lk)
		})
	}, nil
}

func (l *LocalLocker) release(modelID uuid.UUID, lk *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, modelID)
	}
}

// Ensure interface compliance
var _ output.ModelLocker = (*LocalLocker)(nil)
