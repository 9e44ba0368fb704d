package runner

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"time"
)

// Test is one end-to-end scenario against a running terminal.
type Test struct {
	Name        string
	Description string
	// NeedsUpstream marks tests that only pass when the terminal can reach
	// its relay or authority.
	NeedsUpstream bool
	Run           func(ctx context.Context, cfg *Config) error
}

// Config holds test runner configuration.
type Config struct {
	TerminalURL string
	Env         string
	Timeout     time.Duration
	// SyncTimeout bounds how long a test waits for an entry to reach SYNCED.
	SyncTimeout time.Duration
	// SkipUpstream skips tests with NeedsUpstream set.
	SkipUpstream bool
}

// Result is the outcome of one test.
type Result struct {
	Test     *Test
	Passed   bool
	Skipped  bool
	Duration time.Duration
	Error    error
}

var registry = make(map[string]*Test)

// Register adds a test to the registry. Called from init in package tests.
func Register(t *Test) {
	if _, exists := registry[t.Name]; exists {
		panic(fmt.Sprintf("test %q already registered", t.Name))
	}
	registry[t.Name] = t
}

// GetTest returns a test by name.
func GetTest(name string) (*Test, bool) {
	t, ok := registry[name]
	return t, ok
}

// GetAllTests returns all registered tests sorted by name.
func GetAllTests() []*Test {
	tests := make([]*Test, 0, len(registry))
	for _, t := range registry {
		tests = append(tests, t)
	}
	slices.SortFunc(tests, func(a, b *Test) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return tests
}

// ListTests prints all available tests.
func ListTests() {
	fmt.Println("Available tests:")
	for _, t := range GetAllTests() {
		marker := " "
		if t.NeedsUpstream {
			marker = "*"
		}
		fmt.Printf(" %s %-20s %s\n", marker, t.Name, t.Description)
	}
	fmt.Println("\n* needs the terminal to reach its relay or authority")
}

// RunTest executes a single test under cfg.Timeout.
func RunTest(ctx context.Context, t *Test, cfg *Config) *Result {
	if t.NeedsUpstream && cfg.SkipUpstream {
		return &Result{Test: t, Passed: true, Skipped: true}
	}

	testCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	start := time.Now()
	err := t.Run(testCtx, cfg)

	return &Result{
		Test:     t,
		Passed:   err == nil,
		Duration: time.Since(start),
		Error:    err,
	}
}

// RunAll executes all registered tests in name order. It stops early
// when ctx is cancelled.
func RunAll(ctx context.Context, cfg *Config) []*Result {
	tests := GetAllTests()
	results := make([]*Result, 0, len(tests))

	for _, t := range tests {
		if ctx.Err() != nil {
			break
		}
		result := RunTest(ctx, t, cfg)
		results = append(results, result)
		printResult(result)
	}

	return results
}

// RunSingle executes a single test by name.
func RunSingle(ctx context.Context, name string, cfg *Config) (*Result, error) {
	t, ok := GetTest(name)
	if !ok {
		return nil, fmt.Errorf("unknown test: %s", name)
	}

	result := RunTest(ctx, t, cfg)
	printResult(result)
	return result, nil
}

func printResult(r *Result) {
	switch {
	case r.Skipped:
		fmt.Printf("- SKIP  %-20s  (upstream)\n", r.Test.Name)
		return
	case r.Passed:
		fmt.Printf("✓ PASS  %-20s  (%v)\n", r.Test.Name, r.Duration.Round(time.Millisecond))
	default:
		fmt.Printf("✗ FAIL  %-20s  (%v)\n", r.Test.Name, r.Duration.Round(time.Millisecond))
		fmt.Fprintf(os.Stderr, "        Error: %v\n", r.Error)
	}
}

// PrintSummary prints pass/fail/skip counts and the failures.
func PrintSummary(results []*Result) {
	var passed, failed, skipped int
	var total time.Duration

	for _, r := range results {
		total += r.Duration
		switch {
		case r.Skipped:
			skipped++
		case r.Passed:
			passed++
		default:
			failed++
		}
	}

	fmt.Println()
	fmt.Println("─────────────────────────────────────────")
	fmt.Printf("Total: %d  Passed: %d  Failed: %d  Skipped: %d  Duration: %v\n",
		len(results), passed, failed, skipped, total.Round(time.Millisecond))

	for _, r := range results {
		if !r.Passed {
			fmt.Printf("  - %s: %v\n", r.Test.Name, r.Error)
		}
	}
}

// LoadConfig builds a Config for env, with E2E_* overrides.
func LoadConfig(env string) *Config {
	cfg := &Config{
		Env:         env,
		Timeout:     60 * time.Second,
		SyncTimeout: 45 * time.Second,
	}

	if url := os.Getenv("E2E_TERMINAL_URL"); url != "" {
		cfg.TerminalURL = url
	}
	if d, err := time.ParseDuration(os.Getenv("E2E_SYNC_TIMEOUT")); err == nil && d > 0 {
		cfg.SyncTimeout = d
	}

	// Terminals run on the store floor; only local and a lab bench are known.
	if cfg.TerminalURL == "" {
		switch env {
		case "local":
			cfg.TerminalURL = "http://localhost:8080"
		case "lab":
			cfg.TerminalURL = "http://pdv-lab.local:8080"
		}
	}

	return cfg
}
