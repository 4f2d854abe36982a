package util

import (
	"context"
	"sync"
)

// DynamicSemaphore is a counting semaphore whose size can be changed after construction.
// Waiters are served in FIFO order. Not described in the upstream reference source this
// package otherwise follows closely (only its test expectations survived); built directly
// against those expectations.
type DynamicSemaphore struct {
	mu      sync.Mutex
	size    int64
	used    int64
	waiters []chan struct{}
}

// NewDynamicSemaphore creates a semaphore with the given initial size.
func NewDynamicSemaphore(size int) *DynamicSemaphore {
	return &DynamicSemaphore{size: int64(size)}
}

// TryAcquire acquires a permit without blocking, returning false if none is available or
// if other waiters are already queued ahead of this call.
func (s *DynamicSemaphore) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.used < s.size && len(s.waiters) == 0 {
		s.used++
		return true
	}
	return false
}

// Acquire blocks until a permit is available or ctx is done. On cancellation, no permit
// is consumed.
func (s *DynamicSemaphore) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.used < s.size && len(s.waiters) == 0 {
		s.used++
		s.mu.Unlock()
		return nil
	}

	ch := make(chan struct{}, 1)
	s.waiters = append(s.waiters, ch)
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		for i, w := range s.waiters {
			if w == ch {
				s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
				s.mu.Unlock()
				return ctx.Err()
			}
		}
		s.mu.Unlock()

		// A permit was handed off concurrently with cancellation; we're not taking it,
		// so give it back rather than leaking it.
		select {
		case <-ch:
		default:
		}
		s.Release()
		return ctx.Err()
	}
}

// Release returns one permit to the pool, or hands it directly to the oldest waiter if
// one is queued and capacity still allows it. If size was lowered below used, the freed
// permit is absorbed (used--) instead of handed off, so usage actually drains toward the
// new size even under sustained waiter pressure.
func (s *DynamicSemaphore) Release() {
	s.mu.Lock()
	s.used--
	if s.used < s.size && len(s.waiters) > 0 {
		ch := s.waiters[0]
		s.waiters = s.waiters[1:]
		s.used++
		s.mu.Unlock()
		ch <- struct{}{}
		return
	}
	s.mu.Unlock()
}

// SetSize changes the semaphore's capacity. Growing wakes queued waiters immediately, up
// to the new capacity. Shrinking takes effect lazily: future Acquire calls block until
// enough Release calls bring usage back under the new size.
func (s *DynamicSemaphore) SetSize(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grow := n - s.size
	s.size = n
	for grow > 0 && len(s.waiters) > 0 {
		ch := s.waiters[0]
		s.waiters = s.waiters[1:]
		s.used++
		grow--
		ch <- struct{}{}
	}
}

// Used returns the number of permits currently held.
func (s *DynamicSemaphore) Used() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.used)
}

// Waiters returns the number of goroutines currently blocked in Acquire.
func (s *DynamicSemaphore) Waiters() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}

// IsFull reports whether every permit is currently held.
func (s *DynamicSemaphore) IsFull() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used >= s.size
}
