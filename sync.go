package ledgercache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/ledgercache/fetch"
	"github.com/unkn0wn-root/ledgercache/internal/keyspace"
	pr "github.com/unkn0wn-root/ledgercache/provider"
)

func (c *cache) Sync(ctx context.Context, datasetID string) (int, error) {
	if err := keyspace.ValidateDataset(datasetID); err != nil {
		return 0, err
	}
	start := time.Now()
	c.log.Info("sync pass started", Fields{"dataset": datasetID})

	listed, refreshed, err := c.sync(ctx, datasetID)
	c.hooks.PhaseChanged(datasetID, PhaseDone)
	if err != nil {
		c.log.Error("sync pass failed", Fields{"dataset": datasetID, "refreshed": refreshed, "err": err})
		c.hooks.PassFailed(datasetID, err)
		return refreshed, err
	}
	took := time.Since(start)
	c.log.Info("sync pass done", Fields{"dataset": datasetID, "listed": listed, "refreshed": refreshed, "took": took.String()})
	c.hooks.PassCompleted(datasetID, listed, refreshed, took)
	return refreshed, nil
}

func (c *cache) sync(ctx context.Context, datasetID string) (listed, refreshed int, err error) {
	listed, stale, err := c.detectStale(ctx, datasetID)
	if err != nil {
		return listed, 0, err
	}
	c.log.Info("staleness computed", Fields{"dataset": datasetID, "listed": listed, "stale": len(stale)})
	if len(stale) == 0 {
		return listed, 0, nil
	}

	if !c.remote {
		c.hooks.PhaseChanged(datasetID, PhaseWriting)
		err := c.withBulk(ctx, func(bulk pr.Provider) error {
			return c.store.write(ctx, bulk, datasetID, stale)
		})
		if err != nil {
			return listed, 0, err
		}
		return listed, len(stale), nil
	}

	err = c.withBulk(ctx, func(bulk pr.Provider) error {
		refreshed, err = c.syncBatches(ctx, bulk, datasetID, stale)
		return err
	})
	return listed, refreshed, err
}

// syncBatches fetches and writes stale records batch by batch. Fetches within
// a batch run concurrently; a batch is written only after all of its fetches
// succeed, and the next batch starts only after that write.
func (c *cache) syncBatches(ctx context.Context, bulk pr.Provider, datasetID string, stale []StaleRecord) (int, error) {
	done := 0
	for i, batch := range chunk(stale, c.batchWidth) {
		t0 := time.Now()

		c.hooks.PhaseChanged(datasetID, PhaseFetching)
		resolved, err := c.resolveBatch(ctx, batch)
		if err != nil {
			return done, &BatchError{Batch: i + 1, Committed: done, Err: err}
		}

		c.hooks.PhaseChanged(datasetID, PhaseWriting)
		if err := c.store.write(ctx, bulk, datasetID, resolved); err != nil {
			return done, &BatchError{Batch: i + 1, Committed: done, Err: err}
		}

		done += len(batch)
		p := Progress{Current: done, Total: len(stale)}
		took := time.Since(t0)
		c.log.Info(p.String()+" values downloaded", Fields{"dataset": datasetID, "batch": i + 1, "took": took.String()})
		c.hooks.Progress(datasetID, p, took)
	}
	return done, nil
}

// resolveBatch replaces each record's reference with the downloaded payload.
func (c *cache) resolveBatch(ctx context.Context, batch []StaleRecord) ([]StaleRecord, error) {
	out := make([]StaleRecord, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(batch))
	for i, rec := range batch {
		if rec.Deleted {
			out[i] = rec
			continue
		}
		g.Go(func() error {
			ref, ok := rec.Value.(string)
			if !ok {
				return fmt.Errorf("%w: key %q holds %T", ErrNotReference, rec.Key, rec.Value)
			}
			body, err := c.fetcher.Fetch(gctx, ref)
			if err != nil {
				return err
			}
			payload, err := fetch.Envelope(body)
			if err != nil {
				return fmt.Errorf("key %q: %w", rec.Key, err)
			}
			rec.Value = payload
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
