// Package fetch resolves value references against a content-addressed
// download gateway.
//
// A reference is fetched with GET {BaseURL}/{reference}. With Wrapped set, the
// stored reference has the form "<hash>.<reference>" and the hash prefix is
// stripped first. Failed attempts are retried with a fixed sleep until
// MaxAttempts is reached; the last error is then returned as *ExhaustedError.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultBaseURL      = "https://arweave.net"
	DefaultTimeout      = 50 * time.Second
	DefaultMaxAttempts  = 5
	DefaultAttemptSleep = time.Second

	// bodies above this are rejected rather than buffered
	maxBodyBytes = 64 << 20
)

type Config struct {
	BaseURL      string
	Timeout      time.Duration // per attempt
	MaxAttempts  int
	AttemptSleep time.Duration
	Wrapped      bool // references are "<hash>.<reference>"

	// Client defaults to a fresh http.Client; its Timeout is not used, the
	// per-attempt Timeout above is applied through the request context.
	Client *http.Client

	// OnMalformed is called when a wrapped reference does not split into
	// exactly two parts. The fetch still proceeds.
	OnMalformed func(reference string, parts int)
	// OnRetry is called before sleeping after a failed attempt.
	OnRetry func(reference string, attempt int, err error)
}

// StatusError is a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Code)
}

// ExhaustedError is returned once every attempt failed.
type ExhaustedError struct {
	Reference string
	Attempts  int
	Err       error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("fetch %q: giving up after %d attempt(s): %v", e.Reference, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

type Fetcher struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.AttemptSleep < 0 {
		cfg.AttemptSleep = 0
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{cfg: cfg, client: client}
}

// Resolve returns the part of ref that is sent to the gateway.
// A wrapped reference that does not split into two parts, or whose resolved
// part is empty, is reported through OnMalformed and the best-effort second
// part (or the whole string) is used.
func (f *Fetcher) Resolve(ref string) string {
	if !f.cfg.Wrapped {
		return ref
	}
	parts := strings.Split(ref, ".")
	id := parts[0]
	if len(parts) >= 2 {
		id = parts[1]
	}
	if (len(parts) != 2 || id == "") && f.cfg.OnMalformed != nil {
		f.cfg.OnMalformed(ref, len(parts))
	}
	return id
}

// URL is the download location of ref.
func (f *Fetcher) URL(ref string) string {
	return f.cfg.BaseURL + "/" + f.Resolve(ref)
}

// Fetch downloads the body behind ref.
func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	url := f.URL(ref)
	attempt := 0
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		return f.get(ctx, url)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(f.cfg.AttemptSleep)),
		backoff.WithMaxTries(uint(f.cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, _ time.Duration) {
			if f.cfg.OnRetry != nil {
				f.cfg.OnRetry(ref, attempt, err)
			}
		}),
	)
	if err != nil {
		return nil, &ExhaustedError{Reference: ref, Attempts: attempt, Err: err}
	}
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	actx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodyBytes {
		return nil, backoff.Permanent(fmt.Errorf("fetch %s: body exceeds %d bytes", url, maxBodyBytes))
	}
	return body, nil
}

// IsExhausted reports whether err came from a fetch that ran out of attempts.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}
