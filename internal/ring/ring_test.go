package ring_test

import (
	"strconv"
	"testing"

	"code.hybscloud.com/pfind/internal/ring"
)

func TestCapacityRoundsToPowerOfTwo(t *testing.T) {
	r := ring.New(5)
	if r.Cap() != 8 {
		t.Fatalf("Cap: got %d, want 8", r.Cap())
	}
}

func TestPushPopFIFO(t *testing.T) {
	r := ring.New(4)
	for i := 0; i < 4; i++ {
		if !r.Push(strconv.Itoa(i)) {
			t.Fatalf("Push(%d): unexpected full", i)
		}
	}
	if r.Push("overflow") {
		t.Fatalf("Push on full ring: want false, got true")
	}
	if r.State() != ring.Full {
		t.Fatalf("State: got %v, want Full", r.State())
	}

	for i := 0; i < 4; i++ {
		v, ok := r.Pop()
		if !ok {
			t.Fatalf("Pop(%d): unexpected empty", i)
		}
		if v != strconv.Itoa(i) {
			t.Fatalf("Pop(%d): got %q, want %q", i, v, strconv.Itoa(i))
		}
	}
	if _, ok := r.Pop(); ok {
		t.Fatalf("Pop on empty ring: want false")
	}
	if r.State() != ring.Empty {
		t.Fatalf("State: got %v, want Empty", r.State())
	}
}

// TestWrapCorrectness mirrors the spec's property: pushing K >= C distinct
// values with interleaved pops behaves like an unbounded FIFO of the same
// ordering.
func TestWrapCorrectness(t *testing.T) {
	r := ring.New(4)
	const total = 1000
	next := 0
	popped := 0

	for popped < total {
		for r.Cap() > 0 && next < total {
			if !r.Push(strconv.Itoa(next)) {
				break
			}
			next++
		}
		v, ok := r.Pop()
		if !ok {
			if next >= total {
				break
			}
			continue
		}
		if v != strconv.Itoa(popped) {
			t.Fatalf("Pop: got %q, want %q", v, strconv.Itoa(popped))
		}
		popped++
	}
	if popped != total {
		t.Fatalf("popped %d items, want %d", popped, total)
	}
}

func TestSPSCConcurrent(t *testing.T) {
	r := ring.New(73)
	const count = 20000
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < count; i++ {
			for !r.Push(strconv.Itoa(i)) {
			}
		}
	}()

	for i := 0; i < count; i++ {
		var v string
		var ok bool
		for {
			v, ok = r.Pop()
			if ok {
				break
			}
		}
		if v != strconv.Itoa(i) {
			t.Fatalf("Pop(%d): got %q, want %q", i, v, strconv.Itoa(i))
		}
	}
	<-done
}
