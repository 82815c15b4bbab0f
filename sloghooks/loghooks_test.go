package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/ledgercache"
)

func newBuffered(opts Options) (*Hooks, *bytes.Buffer) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(l, opts), &buf
}

func TestRedactsReferences(t *testing.T) {
	h, buf := newBuffered(Options{})
	h.MalformedReference("secret.tx.id", 3)
	out := buf.String()
	if strings.Contains(out, "secret") {
		t.Fatalf("reference leaked: %s", out)
	}
	if !strings.Contains(out, "parts=3") {
		t.Fatalf("missing parts: %s", out)
	}
}

func TestSamplesRetries(t *testing.T) {
	h, buf := newBuffered(Options{RetryEvery: 3, Redact: func(s string) string { return s }})
	for i := 1; i <= 9; i++ {
		h.FetchRetry("tx", i, errors.New("502"))
	}
	if n := strings.Count(buf.String(), "ledgercache.fetch_retry"); n != 3 {
		t.Fatalf("logged %d retries, want 3", n)
	}
}

func TestPhasesOptIn(t *testing.T) {
	h, buf := newBuffered(Options{})
	h.PhaseChanged("c", ledgercache.PhaseListing)
	if buf.Len() != 0 {
		t.Fatalf("phase logged without LogPhases")
	}
	h.opts.LogPhases = true
	h.PhaseChanged("c", ledgercache.PhaseListing)
	if !strings.Contains(buf.String(), "phase=listing") {
		t.Fatalf("phase not logged: %s", buf.String())
	}
}

func TestProgressAndPass(t *testing.T) {
	h, buf := newBuffered(Options{})
	h.Progress("c", ledgercache.Progress{Current: 1, Total: 2}, 0)
	h.PassFailed("c", errors.New("boom"))
	out := buf.String()
	if !strings.Contains(out, `progress="[1 / 2] (50.00%)"`) || !strings.Contains(out, "err=boom") {
		t.Fatalf("output = %s", out)
	}
}

func TestNilLogger(t *testing.T) {
	h := New(nil, Options{})
	h.PassCompleted("c", 1, 1, 0)
	h.PassFailed("c", nil)
}
