package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cornjacket/pdv-terminal/e2e/client"
	"github.com/cornjacket/pdv-terminal/e2e/runner"
	_ "github.com/cornjacket/pdv-terminal/e2e/tests" // Register all tests
)

const preflightTimeout = 30 * time.Second

func main() {
	env := flag.String("env", "local", "Environment (local, lab)")
	testName := flag.String("test", "", "Specific test to run (runs all if empty)")
	list := flag.Bool("list", false, "List available tests")
	skipUpstream := flag.Bool("skip-upstream", false, "Skip tests that need the terminal to reach its upstream")
	flag.Parse()

	if *list {
		runner.ListTests()
		os.Exit(0)
	}

	cfg := runner.LoadConfig(*env)
	cfg.SkipUpstream = *skipUpstream
	if cfg.TerminalURL == "" {
		fmt.Fprintf(os.Stderr, "Error: no terminal URL for env %q; set E2E_TERMINAL_URL\n", *env)
		os.Exit(2)
	}

	fmt.Printf("PDV E2E Runner\n")
	fmt.Printf("Environment: %s\n", cfg.Env)
	fmt.Printf("Terminal:    %s\n", cfg.TerminalURL)
	fmt.Printf("Sync wait:   %s\n", cfg.SyncTimeout)
	fmt.Println("─────────────────────────────────────────")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := waitForTerminal(ctx, cfg.TerminalURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	exitCode := 0

	if *testName != "" {
		result, err := runner.RunSingle(ctx, *testName, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if !result.Passed {
			exitCode = 1
		}
	} else {
		results := runner.RunAll(ctx, cfg)
		runner.PrintSummary(results)

		for _, r := range results {
			if !r.Passed {
				exitCode = 1
				break
			}
		}
	}

	os.Exit(exitCode)
}

// waitForTerminal polls the health endpoint until the terminal answers.
func waitForTerminal(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, preflightTimeout)
	defer cancel()

	var lastErr error
	for {
		if lastErr = client.CheckHealth(ctx, url); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("terminal at %s not healthy: %w", url, lastErr)
		case <-time.After(500 * time.Millisecond):
		}
	}
}
