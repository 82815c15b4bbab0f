package ledgercache

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/ledgercache/internal/keyspace"
)

var (
	// ErrInvalidDataset is returned for an empty dataset id or one containing '.'.
	ErrInvalidDataset = keyspace.ErrInvalidDataset

	// ErrNotReference: remote-value mode is on but the ledger value is not a string.
	ErrNotReference = errors.New("ledgercache: ledger value is not a reference")
)

// Tier names one of the two stores.
type Tier string

const (
	TierMetadata Tier = "metadata"
	TierBulk     Tier = "bulk"
)

// LedgerError wraps a failed call into the ledger. Nothing was written.
type LedgerError struct {
	Op      string
	Dataset string
	Err     error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledgercache: ledger %s(%s): %v", e.Op, e.Dataset, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

// StoreError wraps a failed metadata or bulk store call.
type StoreError struct {
	Tier Tier
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("ledgercache: %s store %s: %v", e.Tier, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// BatchError reports the remote batch that aborted a pass. Batch is 1-based.
// Committed is the number of keys written by earlier batches; they stay written.
type BatchError struct {
	Batch     int
	Committed int
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("ledgercache: batch %d failed (%d keys committed before it): %v",
		e.Batch, e.Committed, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
