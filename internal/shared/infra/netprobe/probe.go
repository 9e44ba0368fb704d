// Package netprobe answers one question: can this terminal reach the
// outside world right now?
package netprobe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout bounds a check when the caller passes no timeout.
const DefaultTimeout = 3 * time.Second

// Result is the outcome of one check.
type Result struct {
	Reachable bool
	// Target is the first target that answered, empty when none did.
	Target  string
	Elapsed time.Duration
	// Err is the last failure seen when no target answered.
	Err error
}

type target struct {
	raw    string
	scheme string
	host   string
}

// Prober checks a fixed set of targets.
type Prober struct {
	targets []target
	client  *http.Client
	dialer  *net.Dialer
	logger  *slog.Logger
}

// New parses targets. Supported forms are http(s)://host[/path], where any
// HTTP response counts as reachable, and tcp://host:port, where a completed
// handshake does.
func New(targets []string, logger *slog.Logger) (*Prober, error) {
	if len(targets) == 0 {
		return nil, errors.New("at least one probe target is required")
	}

	parsed := make([]target, 0, len(targets))
	for _, raw := range targets {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid probe target %q: %w", raw, err)
		}
		switch u.Scheme {
		case "http", "https":
		case "tcp":
			if u.Port() == "" {
				return nil, fmt.Errorf("invalid probe target %q: tcp targets need a port", raw)
			}
		default:
			return nil, fmt.Errorf("invalid probe target %q: unsupported scheme %q", raw, u.Scheme)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("invalid probe target %q: missing host", raw)
		}
		parsed = append(parsed, target{raw: raw, scheme: u.Scheme, host: u.Host})
	}

	return &Prober{
		targets: parsed,
		client: &http.Client{
			// A redirect is already proof of reachability.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		dialer: &net.Dialer{},
		logger: logger.With("component", "netprobe"),
	}, nil
}

// Reachable reports whether any target answered within timeout.
func (p *Prober) Reachable(ctx context.Context, timeout time.Duration) bool {
	return p.Check(ctx, timeout).Reachable
}

// Check probes every target concurrently and returns as soon as one
// answers or timeout elapses. It never returns an error; failures are
// reported as unreachable.
func (p *Prober) Check(ctx context.Context, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		target string
		err    error
	}
	// Buffered so stragglers never block after the first answer.
	results := make(chan outcome, len(p.targets))
	for _, t := range p.targets {
		go func() {
			results <- outcome{target: t.raw, err: p.probe(ctx, t)}
		}()
	}

	var lastErr error
	for range p.targets {
		o := <-results
		if o.err == nil {
			elapsed := time.Since(start)
			p.logger.Debug("probe succeeded", "target", o.target, "elapsed", elapsed)
			return Result{Reachable: true, Target: o.target, Elapsed: elapsed}
		}
		lastErr = o.err
	}

	elapsed := time.Since(start)
	p.logger.Debug("all probe targets unreachable", "elapsed", elapsed, "error", lastErr)
	return Result{Elapsed: elapsed, Err: lastErr}
}

func (p *Prober) probe(ctx context.Context, t target) error {
	if t.scheme == "tcp" {
		conn, err := p.dialer.DialContext(ctx, "tcp", t.host)
		if err != nil {
			return err
		}
		return conn.Close()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, t.raw, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
