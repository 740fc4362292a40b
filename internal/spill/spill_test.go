package spill_test

import (
	"strconv"
	"testing"

	"code.hybscloud.com/pfind/internal/spill"
)

func TestPushPopFIFO(t *testing.T) {
	log, err := spill.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer log.Close()

	if !log.Empty() {
		t.Fatalf("Empty: want true on fresh log")
	}

	paths := []string{"a", "b/c", "with spaces", "trailing/slash/", "日本語"}
	for _, p := range paths {
		if err := log.Push(p); err != nil {
			t.Fatalf("Push(%q): %v", p, err)
		}
	}
	if log.Empty() {
		t.Fatalf("Empty: want false after pushes")
	}

	for i, want := range paths {
		got, ok, err := log.Pop()
		if err != nil {
			t.Fatalf("Pop(%d): %v", i, err)
		}
		if !ok {
			t.Fatalf("Pop(%d): unexpected empty", i)
		}
		if got != want {
			t.Fatalf("Pop(%d): got %q, want %q", i, got, want)
		}
	}

	if _, ok, err := log.Pop(); err != nil || ok {
		t.Fatalf("Pop on empty: got (ok=%v, err=%v), want (false, nil)", ok, err)
	}
}

// TestNewlineInPath verifies the NUL-delimited encoding survives bytes a
// line-oriented format would corrupt.
func TestNewlineInPath(t *testing.T) {
	log, err := spill.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer log.Close()

	const path = "weird\npath\twith\rcontrol\x01bytes"
	if err := log.Push(path); err != nil {
		t.Fatalf("Push: %v", err)
	}
	got, ok, err := log.Pop()
	if err != nil || !ok {
		t.Fatalf("Pop: got (%q, %v, %v)", got, ok, err)
	}
	if got != path {
		t.Fatalf("Pop: got %q, want %q", got, path)
	}
}

func TestManyPaths(t *testing.T) {
	log, err := spill.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer log.Close()

	const count = 5000
	for i := 0; i < count; i++ {
		if err := log.Push(strconv.Itoa(i)); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
	}
	for i := 0; i < count; i++ {
		got, ok, err := log.Pop()
		if err != nil || !ok {
			t.Fatalf("Pop(%d): got (%q, %v, %v)", i, got, ok, err)
		}
		if got != strconv.Itoa(i) {
			t.Fatalf("Pop(%d): got %q, want %q", i, got, strconv.Itoa(i))
		}
	}
}
