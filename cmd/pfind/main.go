// Command pfind is a breadth-first, find(1)-style parallel filesystem
// walker. Its core is a spill-capable path queue shared by a
// work-stealing pool of workers (see internal/queue and internal/pool);
// this file is the thin CLI surface around that core.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"code.hybscloud.com/pfind/internal/config"
	"code.hybscloud.com/pfind/internal/diag"
	"code.hybscloud.com/pfind/internal/pool"
	"code.hybscloud.com/pfind/internal/scanner"

	flag "github.com/spf13/pflag"
)

const prog = "pfind"

// defaultMemoryBudgetBytes is the spec's ~512 KiB total in-memory path
// budget, divided across workers by config.RingCapacityFromBudget.
const defaultMemoryBudgetBytes = 512 * 1024

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	cfg, code, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %s\n", prog, err)
		return code
	}
	if code >= 0 {
		return code // --help or similar: already printed, nothing to run
	}

	if len(cfg.Roots) == 0 {
		cfg.Roots = []string{"."}
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "%s: %s\n", prog, err)
		return 1
	}

	var logger *diag.Logger
	if cfg.LogFile != "" {
		logger, err = diag.NewFile(cfg.LogFile)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %s: %s\n", prog, cfg.LogFile, err)
			return 1
		}
		defer logger.Close()
	} else {
		logger = diag.Discard()
	}

	workers := pool.WorkerCount(runtime.GOMAXPROCS(0))
	ringCapacity := cfg.RingCapacity
	if ringCapacity <= 0 {
		ringCapacity = config.RingCapacityFromBudget(defaultMemoryBudgetBytes, workers)
	}

	policy := scanner.Policy{
		IncludeHidden:  cfg.IncludeHidden,
		FollowSymlinks: cfg.FollowSymlinks,
		MaxDepth:       cfg.MaxDepth,
		Ignore:         config.IgnoreSet(cfg.Ignore),
		StripCWDPrefix: cfg.StripCWDPrefix,
		CWD:            cwd,
	}
	sc := &scanner.Scanner{Policy: policy, Out: stdout, Err: stderr, Prog: prog}

	hadFatal := false
	p := pool.New(workers, ringCapacity, sc.Scan, func(err error) {
		hadFatal = true
		fmt.Fprintf(stderr, "%s: %s\n", prog, err)
	})
	p.SetDiag(logger)

	roots := make([]string, 0, len(cfg.Roots))
	for _, root := range cfg.Roots {
		skip, err := scanner.SkipRootSymlink(root, cfg.FollowSymlinks)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %s: %s\n", prog, root, err)
			hadFatal = true
			continue
		}
		if skip {
			continue
		}
		roots = append(roots, filepath.Clean(root))
	}

	if err := p.Run(roots); err != nil {
		fmt.Fprintf(stderr, "%s: %s\n", prog, err)
		return 1
	}
	if hadFatal {
		return 1
	}
	return 0
}

// parseArgs implements the CLI surface from spec.md §6: positional roots,
// flags, then an optional verb ("print"/"exec") or "--" that switches
// into raw token collection for the out-of-core action/expression
// language. Returns code == -1 to mean "proceed to run"; any other code
// means "exit with this code now" (0 for --help, 1 for a parse error).
func parseArgs(args []string) (config.Config, int, error) {
	fs := flag.NewFlagSet(prog, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	hidden := fs.BoolP("hidden", "H", false, "include hidden (dot-prefixed) entries")
	follow := fs.BoolP("follow-symlinks", "L", false, "follow symlinks")
	depth := fs.IntP("depth", "d", 0, "maximum traversal depth (>=1); 0 means unlimited")
	ignore := fs.StringP("ignore", "I", "", "comma-separated list of basenames to skip")
	stripCWD := fs.Bool("strip-cwd-prefix", false, "trim a leading ./ or cwd/ from emitted paths")
	ringCap := fs.String("ring-capacity", "", "per-worker in-memory ring capacity (item count, or a byte size like 64KiB)")
	logFile := fs.String("log-file", "", "write internal operational logs to this rotating file")

	roots, verb, verbArgs, err := splitVerb(args)
	if err != nil {
		return config.Config{}, 1, err
	}

	if err := fs.Parse(roots); err != nil {
		if err == flag.ErrHelp {
			return config.Config{}, 0, nil
		}
		return config.Config{}, 1, err
	}

	if *depth < 0 {
		return config.Config{}, 1, fmt.Errorf("--depth must be >= 1 (0 means unlimited)")
	}

	cfg := config.Config{
		Roots:          fs.Args(),
		IncludeHidden:  *hidden,
		FollowSymlinks: *follow,
		MaxDepth:       *depth,
		StripCWDPrefix: *stripCWD,
		LogFile:        *logFile,
		Verb:           verb,
	}
	if *ignore != "" {
		cfg.Ignore = splitCommaList(*ignore)
	}
	if *ringCap != "" {
		n, err := config.ParseSize(*ringCap)
		if err != nil {
			return config.Config{}, 1, err
		}
		// A value with a size suffix is a byte budget; a bare number is
		// already an item count.
		if strings.TrimRight(*ringCap, "0123456789") == *ringCap {
			n = int64(config.RingCapacityFromBudget(n, 1))
		}
		cfg.RingCapacity = int(n)
	}

	switch verb {
	case "print":
		cfg.ActionArgs = verbArgs
	case "exec":
		cfg.ActionArgs = verbArgs
	case "":
		cfg.ExprArgs = verbArgs
	}

	return cfg, -1, nil
}

// splitVerb separates the leading flag/positional-root tokens from a
// trailing verb ("print"/"exec") or "--" expression section, per
// spec.md §6: both transition into a pure token-collection state that
// this CLI surface stores but does not interpret.
func splitVerb(args []string) (leading []string, verb string, rest []string, err error) {
	for i, a := range args {
		switch a {
		case "print", "exec":
			return args[:i], a, args[i+1:], nil
		case "--":
			return args[:i], "", args[i+1:], nil
		}
	}
	return args, "", nil, nil
}

func splitCommaList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
