// Package ring implements the bounded, single-producer/single-consumer
// memory ring used as the left and right stages of the three-stage path
// queue.
package ring

import (
	"code.hybscloud.com/atomix"
)

// State is a diagnostic snapshot of a Ring's occupancy.
type State int

const (
	Empty State = iota
	Partial
	Full
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Full:
		return "full"
	default:
		return "partial"
	}
}

// Ring is a fixed-capacity SPSC FIFO of path strings, backed by a Lamport
// ring buffer with cached head/tail indices. Capacity rounds up to a power
// of two so that index computation reduces to a mask.
//
// Push is producer-only, Pop is consumer-only. The producer's release on
// pushCount publishes the slot write to the consumer; the consumer's
// release on popCount publishes the freed slot back to the producer. No
// other synchronization is required between the two sides.
type Ring struct {
	_          pad
	pushCount  atomix.Uint64
	_          pad
	cachedPop  uint64
	_          pad
	popCount   atomix.Uint64
	_          pad
	cachedPush uint64
	_          pad
	buf        []string
	mask       uint64
}

// New creates a Ring whose capacity is capacity rounded up to the next
// power of two. Panics if capacity < 1.
func New(capacity int) *Ring {
	if capacity < 1 {
		panic("ring: capacity must be >= 1")
	}
	n := uint64(roundToPow2(capacity))
	return &Ring{
		buf:  make([]string, n),
		mask: n - 1,
	}
}

// Push attempts to enqueue path. Returns false (path returned unchanged to
// the caller via the zero-cost boolean contract) if the ring is full.
// Producer-only.
func (r *Ring) Push(path string) bool {
	push := r.pushCount.LoadRelaxed()
	if push-r.cachedPop > r.mask {
		r.cachedPop = r.popCount.LoadAcquire()
		if push-r.cachedPop > r.mask {
			return false
		}
	}
	r.buf[push&r.mask] = path
	r.pushCount.StoreRelease(push + 1)
	return true
}

// Pop attempts to dequeue the oldest resident path. Consumer-only.
func (r *Ring) Pop() (string, bool) {
	pop := r.popCount.LoadRelaxed()
	if pop >= r.cachedPush {
		r.cachedPush = r.pushCount.LoadAcquire()
		if pop >= r.cachedPush {
			return "", false
		}
	}
	path := r.buf[pop&r.mask]
	r.buf[pop&r.mask] = ""
	r.popCount.StoreRelease(pop + 1)
	return path, true
}

// State reports the ring's current occupancy. Diagnostic only: the result
// is stale the instant it is returned under concurrent access.
func (r *Ring) State() State {
	push := r.pushCount.LoadAcquire()
	pop := r.popCount.LoadAcquire()
	switch push - pop {
	case 0:
		return Empty
	case r.mask + 1:
		return Full
	default:
		return Partial
	}
}

// Cap returns the ring's capacity (rounded up to a power of two).
func (r *Ring) Cap() int {
	return int(r.mask + 1)
}

func roundToPow2(n int) int {
	if n < 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// pad is cache-line padding to prevent false sharing between the
// producer's and consumer's hot fields.
type pad [64]byte
