package ledgercache

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/ledgercache/internal/keyspace"
	"github.com/unkn0wn-root/ledgercache/ledger"
)

// StaleRecord is one out-of-date key of a pass. Value is the ledger's value,
// or its reference in remote-value mode. Deleted marks a key the ledger lists
// but no longer has an entry for; its cached entries are removed.
type StaleRecord struct {
	Key     string
	SortKey string
	Value   any
	Deleted bool
}

func (c *cache) DetectStale(ctx context.Context, datasetID string) ([]StaleRecord, error) {
	if err := keyspace.ValidateDataset(datasetID); err != nil {
		return nil, err
	}
	_, stale, err := c.detectStale(ctx, datasetID)
	return stale, err
}

// listKeys advances the ledger view and returns every key of the dataset.
func (c *cache) listKeys(ctx context.Context, datasetID string) ([]string, error) {
	if err := c.ledger.ReadLatestState(ctx); err != nil {
		return nil, &LedgerError{Op: "readLatestState", Dataset: datasetID, Err: err}
	}
	keys, err := c.ledger.ListKeys(ctx, datasetID, ledger.LastPossibleSortKey)
	if err != nil {
		return nil, &LedgerError{Op: "listKeys", Dataset: datasetID, Err: err}
	}
	return keys, nil
}

// detectStale returns the number of listed keys and the stale subset, in
// listing order.
func (c *cache) detectStale(ctx context.Context, datasetID string) (int, []StaleRecord, error) {
	c.hooks.PhaseChanged(datasetID, PhaseListing)
	keys, err := c.listKeys(ctx, datasetID)
	if err != nil {
		return 0, nil, err
	}
	if len(keys) == 0 {
		return 0, nil, nil
	}

	c.hooks.PhaseChanged(datasetID, PhaseDiffing)
	latest, err := c.latest(ctx, datasetID, keys)
	if err != nil {
		return len(keys), nil, err
	}
	cached, err := c.store.sortKeys(ctx, datasetID, keys)
	if err != nil {
		return len(keys), nil, err
	}

	var stale []StaleRecord
	for i, k := range keys {
		l, have := latest[i], cached[i]
		switch {
		case !l.ok && have.ok:
			stale = append(stale, StaleRecord{Key: k, Deleted: true})
		case !l.ok:
			// listed but gone and never cached: nothing to do
		case !have.ok || have.value != l.entry.SortKey:
			stale = append(stale, StaleRecord{Key: k, SortKey: l.entry.SortKey, Value: l.entry.Value})
		}
	}
	return len(keys), stale, nil
}

type latestEntry struct {
	entry ledger.Entry
	ok    bool
}

// latest reads GetLatest for every key with bounded concurrency.
func (c *cache) latest(ctx context.Context, datasetID string, keys []string) ([]latestEntry, error) {
	out := make([]latestEntry, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.ledgerConcurrency)
	for i, k := range keys {
		g.Go(func() error {
			e, ok, err := c.ledger.GetLatest(gctx, datasetID, k)
			if err != nil {
				return &LedgerError{Op: "getLatest", Dataset: datasetID, Err: err}
			}
			out[i] = latestEntry{entry: e, ok: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
