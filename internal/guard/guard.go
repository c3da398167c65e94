// Package guard provides short-lived exclusive locks keyed by string.
package guard

import (
	"context"
	"errors"
	"sync"
)

// ErrHeld is returned when another holder has the lock.
var ErrHeld = errors.New("lock held")

// Locker hands out non-blocking exclusive locks. The returned unlock func is
// safe to call more than once.
type Locker interface {
	TryLock(ctx context.Context, key string) (unlock func(), err error)
}

// Local is an in-process Locker.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocal() *Local {
	return &Local{held: map[string]struct{}{}}
}

func (l *Local) TryLock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, ErrHeld
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
