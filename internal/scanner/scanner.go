// Package scanner implements the worker's inner loop: reading one
// directory's entries, applying the filter policy, emitting matching
// paths, and reporting subdirectories for the pool to enqueue.
package scanner

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"code.hybscloud.com/pfind/internal/pool"
)

// Policy is the filter configuration the scanner applies to every entry.
// It is immutable for the lifetime of a run and shared read-only across
// all workers.
type Policy struct {
	IncludeHidden  bool
	FollowSymlinks bool
	MaxDepth       int // 0 means unlimited
	Ignore         map[string]struct{}
	StripCWDPrefix bool
	CWD            string
}

// skip reports whether name (a basename) should be silently dropped by
// the hidden-file and ignore-list rules. It does not evaluate depth,
// which needs the entry's position in the tree, not just its name.
func (p Policy) skip(name string) bool {
	if !p.IncludeHidden && strings.HasPrefix(name, ".") {
		return true
	}
	_, ignored := p.Ignore[name]
	return ignored
}

// Scanner turns a Policy into a pool.Scan callback.
type Scanner struct {
	Policy Policy
	Out    io.Writer
	Err    io.Writer
	Prog   string
}

// Scan implements pool.Scan: it lists item's directory, filters and
// emits each child, and reports subdirectories via push so the pool can
// enqueue them (and bump the outstanding-work counter).
func (s *Scanner) Scan(item pool.Item, push func(pool.Item)) error {
	entries, err := os.ReadDir(item.Path)
	if err != nil {
		s.diagnostic(item.Path, err)
		return nil
	}

	atDepthLimit := s.Policy.MaxDepth > 0 && item.Depth >= s.Policy.MaxDepth

	for _, entry := range entries {
		childPath := filepath.Join(item.Path, entry.Name())

		info, err := entry.Info()
		if err != nil {
			s.diagnostic(childPath, err)
			continue
		}

		displayPath := childPath
		isDir := info.IsDir()

		if info.Mode()&os.ModeSymlink != 0 {
			if !s.Policy.FollowSymlinks {
				// A symlink is emitted as itself, never followed or
				// descended into, when -L is disabled.
			} else {
				resolved, err := filepath.EvalSymlinks(childPath)
				if err != nil {
					s.diagnostic(childPath, err)
					continue
				}
				displayPath = resolved
				target, err := os.Stat(resolved)
				if err != nil {
					s.diagnostic(childPath, err)
					continue
				}
				isDir = target.IsDir()
			}
		}

		name := entry.Name()
		if !utf8.ValidString(name) {
			s.diagnostic(childPath, fmt.Errorf("invalid UTF-8 path component"))
			continue
		}
		if s.Policy.skip(name) {
			continue
		}

		s.emit(s.strip(displayPath))

		if isDir && !atDepthLimit {
			push(pool.Item{Path: childPath, Depth: item.Depth + 1})
		}
	}

	return nil
}

// strip trims a leading "./" or the policy's cwd+separator from path,
// purely cosmetic per --strip-cwd-prefix.
func (s *Scanner) strip(path string) string {
	if !s.Policy.StripCWDPrefix {
		return path
	}
	if rel := strings.TrimPrefix(path, "./"); rel != path {
		return rel
	}
	prefix := s.Policy.CWD
	if prefix != "" && !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.TrimPrefix(path, prefix)
}

func (s *Scanner) emit(path string) {
	fmt.Fprintln(s.Out, path)
}

// diagnostic writes a non-fatal per-entry failure to stderr in the exact
// "{program}: {context}: {message}" shape spec'd for user-visible
// diagnostics. Internal structured logging, if enabled, is a separate
// concern (see internal/diag) and never shares this stream.
func (s *Scanner) diagnostic(context string, err error) {
	fmt.Fprintf(s.Err, "%s: %s: %s\n", s.Prog, context, err)
}

// SkipRootSymlink reports whether root should be skipped silently because
// it is itself a symlink and symlink-following is disabled — spec's
// resolution of the "root is a symlink" open question.
func SkipRootSymlink(root string, followSymlinks bool) (bool, error) {
	if followSymlinks {
		return false, nil
	}
	info, err := os.Lstat(root)
	if err != nil {
		return false, err
	}
	return info.Mode()&os.ModeSymlink != 0, nil
}
