// Package spill implements the on-disk overflow stage of the three-stage
// path queue: an unbounded, append-only FIFO backed by a temporary file
// that is unlinked immediately after opening, so that it is reclaimed by
// the OS on close even if the process exits abnormally.
//
// Paths are encoded as raw bytes followed by a single NUL byte. A
// line-oriented format would corrupt paths containing newlines, which are
// legal on POSIX filesystems; NUL is the one byte POSIX path components
// cannot contain, which makes it a safe, lossless delimiter.
package spill

import (
	"bufio"
	"fmt"
	"os"

	"code.hybscloud.com/atomix"
)

// Log is a single-producer/single-consumer disk-backed FIFO of path
// strings. It is created lazily by the owning queue on first spill and,
// once created, lives until the queue itself is discarded.
type Log struct {
	pushCount atomix.Uint64
	popCount  atomix.Uint64
	writer    *bufio.Writer
	reader    *bufio.Reader
	wf        *os.File
	rf        *os.File
}

// New creates a new spill log backed by a fresh unlinked temporary file.
func New() (*Log, error) {
	f, err := os.CreateTemp("", "pfind-spill-*")
	if err != nil {
		return nil, fmt.Errorf("spill: create temp file: %w", err)
	}
	name := f.Name()

	wf, err := os.OpenFile(name, os.O_WRONLY, 0o600)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return nil, fmt.Errorf("spill: open writer handle: %w", err)
	}
	rf, err := os.Open(name)
	if err != nil {
		_ = f.Close()
		_ = wf.Close()
		_ = os.Remove(name)
		return nil, fmt.Errorf("spill: open reader handle: %w", err)
	}
	_ = f.Close()
	// Unlink immediately: both handles keep the inode alive on POSIX
	// filesystems until they are closed, so the data is reclaimed
	// automatically whether the process exits cleanly or not.
	if err := os.Remove(name); err != nil {
		_ = wf.Close()
		_ = rf.Close()
		return nil, fmt.Errorf("spill: unlink temp file: %w", err)
	}

	return &Log{
		writer: bufio.NewWriter(wf),
		reader: bufio.NewReader(rf),
		wf:     wf,
		rf:     rf,
	}, nil
}

// Push appends path to the log. Every push flushes the writer so that a
// concurrent or later Pop never observes a torn record.
func (l *Log) Push(path string) error {
	if _, err := l.writer.WriteString(path); err != nil {
		return fmt.Errorf("spill: write: %w", err)
	}
	if err := l.writer.WriteByte(0); err != nil {
		return fmt.Errorf("spill: write delimiter: %w", err)
	}
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("spill: flush: %w", err)
	}
	l.pushCount.StoreRelease(l.pushCount.LoadRelaxed() + 1)
	return nil
}

// Pop removes and returns the oldest resident path, or ("", false, nil)
// if the log is empty.
func (l *Log) Pop() (string, bool, error) {
	if l.pushCount.LoadAcquire()-l.popCount.LoadAcquire() == 0 {
		return "", false, nil
	}
	raw, err := l.reader.ReadBytes(0)
	if err != nil {
		return "", false, fmt.Errorf("spill: read: %w", err)
	}
	path := string(raw[:len(raw)-1]) // strip the trailing NUL
	l.popCount.StoreRelease(l.popCount.LoadRelaxed() + 1)
	return path, true, nil
}

// Empty reports whether the log currently holds no resident paths.
func (l *Log) Empty() bool {
	return l.pushCount.LoadAcquire()-l.popCount.LoadAcquire() == 0
}

// Close releases the log's file handles. The temp file's directory entry
// is already gone; closing drops the last references to its data.
func (l *Log) Close() error {
	err1 := l.wf.Close()
	err2 := l.rf.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
