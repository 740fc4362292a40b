package queue_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"code.hybscloud.com/pfind/internal/queue"
)

// TestSpillTransition reproduces spec scenario 2 exactly: ring capacities
// 2 and 2 (memCapacity 4), pushing "1".."6" drives the queue through
// every stage combination, and popping returns them back in order.
func TestSpillTransition(t *testing.T) {
	q := queue.New(4)

	for i := 1; i <= 6; i++ {
		require.NoError(t, q.Push(strconv.Itoa(i)))
	}

	for i := 1; i <= 6; i++ {
		v, ok, err := q.PopTimeout(0)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, strconv.Itoa(i), v)
	}

	v, ok, err := q.PopTimeout(10 * time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, v)
}

// TestFIFOSingleThread pushes a longer run through all three stages and
// checks strict FIFO order (spec's "FIFO per queue" property).
func TestFIFOSingleThread(t *testing.T) {
	q := queue.New(8)
	const total = 500

	for i := 0; i < total; i++ {
		require.NoError(t, q.Push(strconv.Itoa(i)))
	}
	for i := 0; i < total; i++ {
		v, ok, err := q.PopTimeout(0)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, strconv.Itoa(i), v)
	}
}

// TestSPSCStress runs one producer pushing "0".."99999" against one
// consumer popping; the consumer must see exactly those values in order.
// queue.New splits memCapacity evenly, so New(73 + 131) builds two rings
// of 102 requested slots each (128 after power-of-two rounding); rings of
// unequal size such as 73 and 131 cannot be built through New.
func TestSPSCStress(t *testing.T) {
	if testing.Short() {
		t.Skip("stress test skipped in -short mode")
	}
	q := queue.New(73 + 131)
	const count = 100000

	errCh := make(chan error, 1)
	go func() {
		for i := 0; i < count; i++ {
			if err := q.Push(strconv.Itoa(i)); err != nil {
				errCh <- err
				return
			}
		}
		errCh <- nil
	}()

	for i := 0; i < count; i++ {
		v, ok, err := q.PopTimeout(time.Second)
		require.NoError(t, err)
		require.True(t, ok, "pop %d timed out", i)
		require.Equal(t, strconv.Itoa(i), v)
	}
	require.NoError(t, <-errCh)
}

func TestPopTimeoutOnEmptyQueue(t *testing.T) {
	q := queue.New(4)
	start := time.Now()
	v, ok, err := q.PopTimeout(30 * time.Millisecond)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, v)
	require.GreaterOrEqual(t, elapsed, 25*time.Millisecond)
}

func TestIsEmpty(t *testing.T) {
	q := queue.New(4)
	require.True(t, q.IsEmpty())
	require.NoError(t, q.Push("x"))
	require.False(t, q.IsEmpty())
	_, ok, err := q.PopTimeout(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, q.IsEmpty())
}

// TestMassConservation checks spec's "(pushed) - (popped) = resident"
// invariant across an interleaved push/pop sequence that crosses into
// the spill stage.
func TestMassConservation(t *testing.T) {
	q := queue.New(4)
	pushed, popped := 0, 0

	for i := 0; i < 20; i++ {
		require.NoError(t, q.Push(strconv.Itoa(i)))
		pushed++
		if i%3 == 0 {
			if _, ok, err := q.PopTimeout(0); err == nil && ok {
				popped++
			}
		}
	}
	for {
		_, ok, err := q.PopTimeout(10 * time.Millisecond)
		require.NoError(t, err)
		if !ok {
			break
		}
		popped++
	}
	require.Equal(t, pushed, popped)
}
