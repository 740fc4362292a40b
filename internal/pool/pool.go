// Package pool implements the work-stealing traversal coordinator: a
// fixed-size ring of queues, one per worker, with a global
// outstanding-work counter driving termination.
package pool

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/pfind/internal/queue"
	"code.hybscloud.com/spin"
)

// Item is a unit of work: a directory path and the depth at which it was
// discovered. Depth 0 is a root.
type Item struct {
	Path  string
	Depth int
}

// Scan, given a popped directory item, is the worker's inner loop: it
// must read the directory, emit and filter children, and push any
// discovered subdirectories back onto push. It returns an error only for
// fatal conditions; per-entry failures are the scanner's own concern and
// must not propagate here.
type Scan func(item Item, push func(Item)) error

const popTimeout = 200 * time.Millisecond

// Diag is the subset of internal/diag.Logger the pool reports to. A nil
// Diag is valid and silently drops every event.
type Diag interface {
	WorkerStarted(id int)
	WorkerStopped(id int)
	SpillCreated(worker int)
	FatalWorkerError(worker int, err error)
}

// Pool owns N queues, one per worker, and drives them to completion.
type Pool struct {
	queues  []*queue.Queue
	counter atomix.Int64
	scan    Scan
	onErr   func(err error)
	diag    Diag
}

// SetDiag attaches an operational logger. Must be called before Run.
func (p *Pool) SetDiag(d Diag) {
	p.diag = d
	for i, q := range p.queues {
		i := i
		q.OnSpill(func() {
			if p.diag != nil {
				p.diag.SpillCreated(i)
			}
		})
	}
}

// WorkerCount resolves the pool size: PFIND_WORKERS overrides the
// platform's reported available parallelism.
func WorkerCount(availableParallelism int) int {
	if v := os.Getenv("PFIND_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	if availableParallelism < 1 {
		return 1
	}
	return availableParallelism
}

// New creates a Pool of n queues, each with the given per-queue memory
// ring capacity. scan is the directory-processing callback; onErr, if
// non-nil, receives fatal per-worker errors (the worker that produced
// them simply stops contributing to the counter).
func New(n int, ringCapacity int, scan Scan, onErr func(err error)) *Pool {
	if n < 1 {
		n = 1
	}
	qs := make([]*queue.Queue, n)
	for i := range qs {
		qs[i] = queue.New(ringCapacity)
	}
	return &Pool{queues: qs, scan: scan, onErr: onErr}
}

// Run seeds each root onto queue 0 and blocks until every directory
// reachable from those roots has been fully processed.
func (p *Pool) Run(roots []string) error {
	for _, r := range roots {
		p.counter.AddAcqRel(1)
		if err := p.queues[0].Push(r); err != nil {
			return fmt.Errorf("pool: seed root %q: %w", r, err)
		}
	}

	var wg sync.WaitGroup
	wg.Add(len(p.queues))
	for i := range p.queues {
		go func(i int) {
			defer wg.Done()
			if p.diag != nil {
				p.diag.WorkerStarted(i)
			}
			p.worker(i)
			if p.diag != nil {
				p.diag.WorkerStopped(i)
			}
		}(i)
	}
	wg.Wait()

	for _, q := range p.queues {
		if err := q.Close(); err != nil {
			return fmt.Errorf("pool: close queue: %w", err)
		}
	}
	return nil
}

// worker implements the loop from spec §4.D: pop own queue, else steal
// round-robin from peers, else check termination, else back off.
func (p *Pool) worker(i int) {
	sw := spin.Wait{}

	for {
		path, ok, err := p.queues[i].PopTimeout(popTimeout)
		if err != nil {
			p.failWorker(i, err)
			return
		}
		if !ok {
			path, ok = p.steal(i)
		}
		if !ok {
			if p.counter.LoadAcquire() == 0 {
				return
			}
			sw.Once()
			continue
		}
		sw = spin.Wait{}

		item := decodeItem(path)
		fatal := false
		err = p.scan(item, func(child Item) {
			p.counter.AddAcqRel(1)
			if pushErr := p.queues[i].Push(encodeItem(child)); pushErr != nil {
				p.counter.AddAcqRel(-1)
				p.failWorker(i, pushErr)
				fatal = true
			}
		})
		if err != nil {
			p.failWorker(i, err)
			fatal = true
		}
		p.counter.AddAcqRel(-1)
		if fatal {
			return
		}
	}
}

// steal attempts a single non-blocking pop from each peer queue, starting
// at i+1 and wrapping around, per spec §4.D and §9's "simple round-robin
// probe" guidance. TryPop never waits, so a peer mid-awaitWork on its own
// local pop does not stall the thief.
func (p *Pool) steal(i int) (string, bool) {
	n := len(p.queues)
	for off := 1; off < n; off++ {
		j := (i + off) % n
		if path, ok, err := p.queues[j].TryPop(); err == nil && ok {
			return path, true
		}
	}
	return "", false
}

func (p *Pool) fail(err error) {
	if p.onErr != nil {
		p.onErr(err)
	}
}

func (p *Pool) failWorker(worker int, err error) {
	if p.diag != nil {
		p.diag.FatalWorkerError(worker, err)
	}
	p.fail(err)
}

// encodeItem/decodeItem pack an Item's depth onto its path so that it can
// travel through a Queue, whose wire format (and spill encoding) is a
// plain string. The depth is encoded as a decimal prefix terminated by a
// unit separator byte. decodeItem splits at the first such byte, which
// always ends the digit prefix, so a path that itself contains the byte
// comes back unchanged.
const depthSep = '\x1f'

func encodeItem(it Item) string {
	return strconv.Itoa(it.Depth) + string(depthSep) + it.Path
}

func decodeItem(s string) Item {
	for i := 0; i < len(s); i++ {
		if s[i] == depthSep {
			depth, _ := strconv.Atoi(s[:i])
			return Item{Path: s[i+1:], Depth: depth}
		}
	}
	return Item{Path: s, Depth: 0}
}
