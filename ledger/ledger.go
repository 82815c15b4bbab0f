// Package ledger describes the authoritative, sort-key-ordered state source
// that ledgercache mirrors. The real ledger (a contract execution engine) lives
// outside this module; Memory is a stand-in for development and tests.
package ledger

import "context"

// LastPossibleSortKey sorts after every sort key the ledger can produce.
// Listing keys with it as the upper bound returns the full keyspace.
const LastPossibleSortKey = "999999999999,9999999999999,zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"

// Entry is the latest ledger-visible write for one key.
// In remote-value mode Value is a reference string, not the payload.
type Entry struct {
	SortKey string
	Value   any
}

// Ledger is the read-only view ledgercache needs.
type Ledger interface {
	// ReadLatestState advances the local view to the newest visible state.
	ReadLatestState(ctx context.Context) error
	// ListKeys returns every live key of the dataset as of upperBound.
	ListKeys(ctx context.Context, datasetID, upperBound string) ([]string, error)
	// GetLatest returns the newest entry for key; ok=false if there is none.
	GetLatest(ctx context.Context, datasetID, key string) (e Entry, ok bool, err error)
}
