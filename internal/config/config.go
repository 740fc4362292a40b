// Package config holds the plain-data configuration parsed from CLI
// flags, plus the few parsing helpers that
// don't belong on the flag set itself.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config is the fully-resolved set of options the pool and scanner need.
// It carries no behavior; cmd/pfind builds one from pflag, validates it,
// and hands it to the core. The PFIND_WORKERS override is read by
// pool.WorkerCount, not stored here.
type Config struct {
	Roots          []string
	IncludeHidden  bool
	FollowSymlinks bool
	MaxDepth       int
	Ignore         []string
	StripCWDPrefix bool
	RingCapacity   int
	LogFile        string
	Verb           string   // "" | "print" | "exec"
	ActionArgs     []string // tokens collected after the verb
	ExprArgs       []string // tokens collected after "--"
}

// ParseSize converts strings like "512KiB", "1MB", "4096" into a byte
// count. Grounded on the same K/M/G-suffix shape used elsewhere in this
// dependency's ecosystem for size configuration, reused here for the
// ring-capacity byte budget even though the ring itself counts items,
// not bytes — RingCapacityFromBudget divides the parsed byte budget by
// an estimated per-path footprint to get an item count.
func ParseSize(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}

	upper := strings.ToUpper(s)
	type suffix struct {
		token string
		mult  int64
	}
	suffixes := []suffix{
		{"KIB", 1024}, {"MIB", 1024 * 1024}, {"GIB", 1024 * 1024 * 1024},
		{"KB", 1024}, {"MB", 1024 * 1024}, {"GB", 1024 * 1024 * 1024},
		{"K", 1024}, {"M", 1024 * 1024}, {"G", 1024 * 1024 * 1024},
	}
	for _, sfx := range suffixes {
		if strings.HasSuffix(upper, sfx.token) {
			numStr := s[:len(s)-len(sfx.token)]
			n, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("config: invalid size number in %q: %w", s, err)
			}
			return n * sfx.mult, nil
		}
	}
	return 0, fmt.Errorf("config: unknown size suffix in %q", s)
}

// defaultPathFootprintBytes estimates the average resident size of one
// queued path string (backing array + header) for translating the
// spec's ~512 KiB total in-memory path budget into an item count.
const defaultPathFootprintBytes = 64

// RingCapacityFromBudget splits a total byte budget evenly across
// workers and converts each worker's share into an item count.
func RingCapacityFromBudget(totalBytes int64, workers int) int {
	if workers < 1 {
		workers = 1
	}
	perWorker := totalBytes / int64(workers)
	items := perWorker / defaultPathFootprintBytes
	if items < 2 {
		return 2
	}
	return int(items)
}

// ParseIgnoreList turns a comma-separated basename list into a set.
func ParseIgnoreList(list string) map[string]struct{} {
	set := make(map[string]struct{})
	if list == "" {
		return set
	}
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			set[name] = struct{}{}
		}
	}
	return set
}

// IgnoreSet builds the same set directly from an already-split list.
func IgnoreSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}
