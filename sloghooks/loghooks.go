package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/ledgercache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	RetryEvery    uint64
	ProgressEvery uint64
	// LogPhases logs every phase change at debug level.
	LogPhases bool
	// Optional reference redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	retryCtr    atomic.Uint64
	progressCtr atomic.Uint64
}

var _ ledgercache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(ref string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(ref)
	}
	sum := sha256.Sum256([]byte(ref))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) PhaseChanged(dataset string, p ledgercache.Phase) {
	if h.l == nil || !h.opts.LogPhases {
		return
	}
	h.l.Debug("ledgercache.phase",
		"dataset", dataset,
		"phase", p.String())
}

func (h *Hooks) Progress(dataset string, p ledgercache.Progress, took time.Duration) {
	if h.l == nil || !sample(h.opts.ProgressEvery, &h.progressCtr) {
		return
	}
	h.l.Info("ledgercache.progress",
		"dataset", dataset,
		"progress", p.String(),
		"took", took)
}

func (h *Hooks) FetchRetry(reference string, attempt int, err error) {
	if h.l == nil || !sample(h.opts.RetryEvery, &h.retryCtr) {
		return
	}
	h.l.Debug("ledgercache.fetch_retry",
		"reference", h.redact(reference),
		"attempt", attempt,
		"err", err)
}

func (h *Hooks) MalformedReference(reference string, parts int) {
	if h.l == nil {
		return
	}
	h.l.Warn("ledgercache.malformed_reference",
		"reference", h.redact(reference),
		"parts", parts)
}

func (h *Hooks) PassCompleted(dataset string, listed, refreshed int, took time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Info("ledgercache.pass_completed",
		"dataset", dataset,
		"listed", listed,
		"refreshed", refreshed,
		"took", took)
}

func (h *Hooks) PassFailed(dataset string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("ledgercache.pass_failed",
		"dataset", dataset,
		"err", err)
}
