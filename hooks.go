package ledgercache

import "time"

// Hooks are lightweight callbacks for pass-level events.
// Implementations MUST be cheap and non-blocking; FetchRetry and
// MalformedReference are called from fetch goroutines.
type Hooks interface {
	// The pass for dataset entered phase p.
	PhaseChanged(dataset string, p Phase)

	// A remote batch was committed. took is the batch's fetch+write time.
	Progress(dataset string, p Progress, took time.Duration)

	// A download attempt failed and will be retried.
	FetchRetry(reference string, attempt int, err error)

	// A wrapped reference did not split into exactly two parts.
	MalformedReference(reference string, parts int)

	// listed = keys known to the ledger, refreshed = keys rewritten or removed.
	PassCompleted(dataset string, listed, refreshed int, took time.Duration)
	PassFailed(dataset string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) PhaseChanged(string, Phase)                    {}
func (NopHooks) Progress(string, Progress, time.Duration)      {}
func (NopHooks) FetchRetry(string, int, error)                 {}
func (NopHooks) MalformedReference(string, int)                {}
func (NopHooks) PassCompleted(string, int, int, time.Duration) {}
func (NopHooks) PassFailed(string, error)                      {}

// MultiHooks fans every event out to each member in order.
type MultiHooks []Hooks

func (m MultiHooks) PhaseChanged(dataset string, p Phase) {
	for _, h := range m {
		h.PhaseChanged(dataset, p)
	}
}

func (m MultiHooks) Progress(dataset string, p Progress, took time.Duration) {
	for _, h := range m {
		h.Progress(dataset, p, took)
	}
}

func (m MultiHooks) FetchRetry(reference string, attempt int, err error) {
	for _, h := range m {
		h.FetchRetry(reference, attempt, err)
	}
}

func (m MultiHooks) MalformedReference(reference string, parts int) {
	for _, h := range m {
		h.MalformedReference(reference, parts)
	}
}

func (m MultiHooks) PassCompleted(dataset string, listed, refreshed int, took time.Duration) {
	for _, h := range m {
		h.PassCompleted(dataset, listed, refreshed, took)
	}
}

func (m MultiHooks) PassFailed(dataset string, err error) {
	for _, h := range m {
		h.PassFailed(dataset, err)
	}
}
