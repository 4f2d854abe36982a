// Package partition splits one shared permit gate into N weighted sub-gates that admit
// independently but draw from the same underlying pool, borrowing spare capacity from
// each other and serving over-capacity waiters in FIFO order.
package partition

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bitset"

	"github.com/climiter/climiter"
	"github.com/climiter/climiter/gate"
)

// reserveFraction is the share of each partition's own limit held back from borrowing,
// so a partition under its own limit is never entirely starved by its siblings.
const reserveFraction = 0.1

// Partition is one weighted sub-gate over a shared gate.Gate.
type Partition struct {
	idx   int
	sched *scheduler
}

// NewStaticPartitions splits g into len(weights) partitions. weights are normalised to
// fractions internally; all must be strictly positive.
func NewStaticPartitions(g *gate.Gate, weights []float64) ([]*Partition, error) {
	if len(weights) == 0 {
		return nil, errors.New("partition: at least one weight is required")
	}
	sum := 0.0
	for _, w := range weights {
		if w <= 0 {
			return nil, errors.New("partition: weights must be positive")
		}
		sum += w
	}

	sched := &scheduler{
		g:          g,
		partitions: make([]*partitionState, len(weights)),
		waiterBits: bitset.New(uint(len(weights))),
	}
	partitions := make([]*Partition, len(weights))
	for i, w := range weights {
		sched.partitions[i] = &partitionState{fraction: w / sum}
		partitions[i] = &Partition{idx: i, sched: sched}
	}
	return partitions, nil
}

// TryAcquire attempts to acquire a token from this partition's share (or, if that share
// is exhausted, from spare capacity borrowed across partitions) without blocking.
func (p *Partition) TryAcquire() (*gate.Token, bool) {
	return p.sched.tryAcquire(p.idx)
}

// AcquireTimeout behaves like TryAcquire but, on immediate rejection, waits up to
// maxWait for a permit, parked on a FIFO queue tagged with this partition's index.
func (p *Partition) AcquireTimeout(ctx context.Context, maxWait time.Duration) (*gate.Token, bool) {
	return p.sched.acquireTimeout(ctx, p.idx, maxWait)
}

// Release returns token to the scheduler, which hands it to the oldest waiter of any
// partition if one exists, or otherwise returns it to the shared pool.
func (p *Partition) Release(token *gate.Token, outcome *climiter.Outcome) int {
	return p.sched.release(p.idx, token, outcome)
}

// InFlight returns this partition's own in-flight count (advisory; the shared gate's
// in-flight count is the authoritative total).
func (p *Partition) InFlight() int {
	return int(p.sched.partitions[p.idx].inFlight.Load())
}

// HasWaiters reports whether any caller is currently parked waiting for this partition.
func (p *Partition) HasWaiters() bool {
	return p.sched.waiterBits.Test(uint(p.idx))
}

type partitionState struct {
	fraction float64
	inFlight atomic.Int64
}

// limit is ceil(total * fraction): this partition's own share of the shared limit.
func (ps *partitionState) limit(total int) int {
	return int(math.Ceil(float64(total) * ps.fraction))
}

// spare is how much of this partition's own share is unused beyond its reserve buffer,
// available to lend to other partitions.
func (ps *partitionState) spare(total int) int {
	l := ps.limit(total)
	buffer := int(math.Ceil(float64(l) * reserveFraction))
	v := l - int(ps.inFlight.Load()) - buffer
	if v < 0 {
		return 0
	}
	return v
}

type waiter struct {
	partitionIdx int
	ch           chan *gate.Token
}

// scheduler owns admission policy and the FIFO waiter queue across every partition of
// one shared gate. All admission decisions for every partition funnel through sched.mu,
// which is what lets release hand a freed permit to the oldest waiter without racing a
// concurrent, unrelated TryAcquire from stealing it first.
type scheduler struct {
	mu         sync.Mutex
	g          *gate.Gate
	partitions []*partitionState
	waiters    []waiter
	waiterBits *bitset.BitSet
}

func (s *scheduler) canAdmitLocked(idx int) bool {
	total := s.g.State().Limit
	ps := s.partitions[idx]
	if int(ps.inFlight.Load()) < ps.limit(total) {
		return true
	}
	return s.spareLocked(total) > 0
}

func (s *scheduler) spareLocked(total int) int {
	sum := 0
	for _, ps := range s.partitions {
		sum += ps.spare(total)
	}
	return sum
}

func (s *scheduler) tryAcquire(idx int) (*gate.Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.waiters) > 0 || !s.canAdmitLocked(idx) {
		return nil, false
	}
	tok, ok := s.g.TryAcquire()
	if !ok {
		return nil, false
	}
	s.partitions[idx].inFlight.Add(1)
	return tok, true
}

func (s *scheduler) acquireTimeout(ctx context.Context, idx int, maxWait time.Duration) (*gate.Token, bool) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if len(s.waiters) == 0 && s.canAdmitLocked(idx) {
		if tok, ok := s.g.TryAcquire(); ok {
			s.partitions[idx].inFlight.Add(1)
			s.mu.Unlock()
			return tok, true
		}
	}

	ch := make(chan *gate.Token, 1)
	s.waiters = append(s.waiters, waiter{partitionIdx: idx, ch: ch})
	s.waiterBits.Set(uint(idx))
	s.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	select {
	case tok := <-ch:
		return tok, true
	case <-cctx.Done():
		s.mu.Lock()
		for i, w := range s.waiters {
			if w.ch == ch {
				s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
				if !s.hasWaiterForLocked(idx) {
					s.waiterBits.Clear(uint(idx))
				}
				s.mu.Unlock()
				return nil, false
			}
		}
		s.mu.Unlock()

		// Handed off concurrently with cancellation: take delivery and give it back,
		// rather than stranding a permit nobody will release.
		select {
		case tok := <-ch:
			s.release(idx, tok, nil)
		default:
		}
		return nil, false
	}
}

func (s *scheduler) hasWaiterForLocked(idx int) bool {
	for _, w := range s.waiters {
		if w.partitionIdx == idx {
			return true
		}
	}
	return false
}

func (s *scheduler) release(idx int, token *gate.Token, outcome *climiter.Outcome) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.partitions[idx].inFlight.Add(-1)
	newLimit := s.g.Release(token, outcome)

	if len(s.waiters) == 0 {
		return newLimit
	}

	w := s.waiters[0]
	s.waiters = s.waiters[1:]
	if !s.hasWaiterForLocked(w.partitionIdx) {
		s.waiterBits.Clear(uint(w.partitionIdx))
	}

	if tok, ok := s.g.TryAcquire(); ok {
		s.partitions[w.partitionIdx].inFlight.Add(1)
		w.ch <- tok
	} else {
		// The limit shrank between the release above and this re-acquire; put the
		// waiter back at the front rather than dropping it.
		s.waiters = append([]waiter{w}, s.waiters...)
		s.waiterBits.Set(uint(w.partitionIdx))
	}

	return newLimit
}
