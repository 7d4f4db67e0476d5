package booking

import (
	"context"
	"sync"
)

// SlotLocks is an in-process Locker keyed by string. Entries exist only while
// someone holds or waits for the key.
type SlotLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

func NewSlotLocks() *SlotLocks {
	return &SlotLocks{locks: make(map[string]*keyLock)}
}

func (s *SlotLocks) Acquire(ctx context.Context, key string) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		s.unref(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			s.unref(key, l)
		})
	}, nil
}

func (s *SlotLocks) unref(key string, l *keyLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
}

// Len reports how many keys are currently held or waited on.
func (s *SlotLocks) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
