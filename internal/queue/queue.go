// Package queue implements the three-stage path queue: two in-memory
// rings (left, right) with an optional disk-backed spill log (mid)
// between them, presented as a single FIFO with non-blocking push and a
// timed-blocking pop.
//
// The consumer drains left before mid before right. That priority order
// is what preserves FIFO across the composite structure: left holds the
// oldest resident items (drained out of right on a prior spill), mid
// holds whatever could not fit in left, and right holds the newest items
// still arriving from the producer.
//
// Three independent locks keep the common, no-spill case uncontended: one
// producer holds pushLock, one consumer holds popLock, and spillLock is
// only taken while migrating items between stages.
package queue

import (
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/pfind/internal/ring"
	"code.hybscloud.com/pfind/internal/spill"
)

// Queue is a spill-capable SPSC path queue.
type Queue struct {
	pushLock  sync.Mutex
	popLock   sync.Mutex
	spillLock sync.Mutex

	countMu sync.Mutex
	cond    *sync.Cond
	pushN   uint64
	popN    atomix.Uint64

	left  *ring.Ring
	mid   *spill.Log
	right *ring.Ring

	onSpill func()
}

// OnSpill registers a callback invoked the first time this queue creates
// its disk stage. Used by the pool to surface spill activity to the
// operational logger; nil by default.
func (q *Queue) OnSpill(fn func()) {
	q.onSpill = fn
}

// New creates a Queue whose two in-memory rings each have capacity
// memCapacity/2 (minimum 1). The disk stage is created lazily on first
// spill.
func New(memCapacity int) *Queue {
	half := memCapacity / 2
	if half < 1 {
		half = 1
	}
	q := &Queue{
		left:  ring.New(half),
		right: ring.New(half),
	}
	q.cond = sync.NewCond(&q.countMu)
	return q
}

// Push enqueues path. Push never blocks: when right is full it migrates
// resident items out of right (into left while mid is empty, into mid
// while mid holds anything, so that order is never inverted) and then
// retries.
func (q *Queue) Push(path string) error {
	q.pushLock.Lock()
	defer q.pushLock.Unlock()

	if !q.right.Push(path) {
		q.spillLock.Lock()
		if err := q.drainRightLocked(); err != nil {
			q.spillLock.Unlock()
			return err
		}
		q.spillLock.Unlock()
		// drainRightLocked empties right completely, so this retry
		// always succeeds.
		q.right.Push(path)
	}

	q.countMu.Lock()
	q.pushN++
	q.countMu.Unlock()
	q.cond.Signal()
	return nil
}

// drainRightLocked empties right into left (while left has room and mid
// is logically empty) or straight into mid (once mid holds anything),
// preserving FIFO order. Mid's emptiness, not its existence, decides the
// target: once created, mid is never torn down, and if it is later fully
// drained it again becomes a valid target for "prefer left" draining.
// Must be called with spillLock held.
func (q *Queue) drainRightLocked() error {
	midEmpty := q.mid == nil || q.mid.Empty()
	if !midEmpty {
		for {
			p, ok := q.right.Pop()
			if !ok {
				return nil
			}
			if err := q.mid.Push(p); err != nil {
				return err
			}
		}
	}

	for {
		p, ok := q.right.Pop()
		if !ok {
			return nil
		}
		if q.left.Push(p) {
			continue
		}
		if q.mid == nil {
			log, err := spill.New()
			if err != nil {
				return err
			}
			q.mid = log
			if q.onSpill != nil {
				q.onSpill()
			}
		}
		if err := q.mid.Push(p); err != nil {
			return err
		}
		// left has no room: everything still in right must also go
		// to mid, or it would be popped ahead of this older item.
		for {
			p2, ok := q.right.Pop()
			if !ok {
				return nil
			}
			if err := q.mid.Push(p2); err != nil {
				return err
			}
		}
	}
}

// Forever is the PopTimeout duration meaning "wait indefinitely", per
// spec §5's "pop_timeout(0) waits forever".
const Forever time.Duration = 0

// PopTimeout waits up to timeout for an item to become available.
// Forever (0) waits indefinitely; any positive duration returns
// ("", false, nil) once it elapses with no work, without consuming
// anything or mutating counts. Use TryPop for a non-blocking attempt.
func (q *Queue) PopTimeout(timeout time.Duration) (string, bool, error) {
	q.popLock.Lock()
	defer q.popLock.Unlock()

	if !q.awaitWork(timeout) {
		return "", false, nil
	}
	return q.popLocked()
}

// TryPop makes one non-blocking pop attempt: if the queue is currently
// empty it returns immediately rather than waiting at all. This is what
// a work-stealing peer probe uses — spec §4.D's steal is a single
// non-blocking pop() per peer queue, not a timed wait.
func (q *Queue) TryPop() (string, bool, error) {
	if !q.popLock.TryLock() {
		return "", false, nil
	}
	defer q.popLock.Unlock()

	q.countMu.Lock()
	hasWork := q.pushN-q.popN.LoadAcquire() != 0
	q.countMu.Unlock()
	if !hasWork {
		return "", false, nil
	}
	return q.popLocked()
}

// popLocked performs the left/mid/right priority pop. Must be called
// with popLock held and after confirming (or waiting for) work.
func (q *Queue) popLocked() (string, bool, error) {
	q.spillLock.Lock()
	defer q.spillLock.Unlock()

	if p, ok := q.left.Pop(); ok {
		q.popN.StoreRelease(q.popN.LoadRelaxed() + 1)
		return p, true, nil
	}
	if q.mid != nil {
		p, ok, err := q.mid.Pop()
		if err != nil {
			return "", false, err
		}
		if ok {
			q.popN.StoreRelease(q.popN.LoadRelaxed() + 1)
			return p, true, nil
		}
	}
	if p, ok := q.right.Pop(); ok {
		q.popN.StoreRelease(q.popN.LoadRelaxed() + 1)
		return p, true, nil
	}
	// Another consumer (a steal) drained it between our wake-up and
	// the spill lock: report a spurious empty, not an error.
	return "", false, nil
}

// awaitWork blocks on cond until pushN-popN > 0 or timeout elapses.
// timeout == Forever waits indefinitely. PopTimeout serializes callers
// on popLock, so at most one goroutine is ever inside awaitWork for a
// given queue at a time.
func (q *Queue) awaitWork(timeout time.Duration) bool {
	q.countMu.Lock()
	defer q.countMu.Unlock()

	if timeout == Forever {
		for q.pushN-q.popN.LoadAcquire() == 0 {
			q.cond.Wait()
		}
		return true
	}

	timedOut := false
	timer := time.AfterFunc(timeout, func() {
		q.countMu.Lock()
		timedOut = true
		q.cond.Broadcast()
		q.countMu.Unlock()
	})
	defer timer.Stop()

	for q.pushN-q.popN.LoadAcquire() == 0 {
		if timedOut {
			return false
		}
		q.cond.Wait()
	}
	return true
}

// IsEmpty reports whether the queue currently holds no resident paths.
func (q *Queue) IsEmpty() bool {
	q.countMu.Lock()
	defer q.countMu.Unlock()
	return q.pushN-q.popN.LoadAcquire() == 0
}

// Close releases the queue's spill log, if one was created.
func (q *Queue) Close() error {
	q.spillLock.Lock()
	defer q.spillLock.Unlock()
	if q.mid == nil {
		return nil
	}
	return q.mid.Close()
}
