package ledgercache

import (
	"context"
	"errors"

	"go.uber.org/multierr"

	"github.com/unkn0wn-root/ledgercache/codec"
	"github.com/unkn0wn-root/ledgercache/fetch"
	"github.com/unkn0wn-root/ledgercache/internal/keyspace"
	"github.com/unkn0wn-root/ledgercache/ledger"
	pr "github.com/unkn0wn-root/ledgercache/provider"
)

type cache struct {
	ledger  ledger.Ledger
	meta    pr.Provider
	bulk    pr.Opener
	values  codec.Tolerant
	sortKey codec.Codec[string]
	store   *dualStore

	remote            bool
	fetcher           Fetcher
	batchWidth        int
	ledgerConcurrency int

	log   Logger
	hooks Hooks
}

var _ Cache = (*cache)(nil)

func newCache(opts Options) (*cache, error) {
	if opts.Ledger == nil {
		return nil, errors.New("ledgercache: ledger is required")
	}
	if opts.Metadata == nil {
		return nil, errors.New("ledgercache: metadata provider is required")
	}

	c := &cache{
		ledger:  opts.Ledger,
		meta:    opts.Metadata,
		bulk:    opts.Bulk,
		values:  codec.NewTolerant(opts.Codec, opts.MaxDecode),
		sortKey: codec.String{},
		remote:  opts.RemoteValues,
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.batchWidth = coalesce(opts.BatchWidth, DefaultBatchWidth)
	c.ledgerConcurrency = coalesce(opts.LedgerConcurrency, DefaultLedgerConcurrency)
	if c.batchWidth < 0 || c.ledgerConcurrency < 0 {
		return nil, errors.New("ledgercache: batch width and ledger concurrency must be positive")
	}
	if c.bulk == nil {
		// no dedicated bulk tier: values share the metadata store
		c.bulk = pr.Shared(opts.Metadata)
	}
	c.store = &dualStore{meta: c.meta, values: c.values, sortKey: c.sortKey}

	if c.remote {
		c.fetcher = opts.Fetcher
		if c.fetcher == nil {
			c.fetcher = fetch.New(c.downloadConfig(opts.Download))
		}
	}
	return c, nil
}

// downloadConfig chains the engine's logging and hooks in front of any
// callbacks already set on cfg.
func (c *cache) downloadConfig(cfg fetch.Config) fetch.Config {
	onMalformed, onRetry := cfg.OnMalformed, cfg.OnRetry
	cfg.OnMalformed = func(ref string, parts int) {
		c.log.Warn("malformed wrapped reference; using best-effort part", Fields{"reference": ref, "parts": parts})
		c.hooks.MalformedReference(ref, parts)
		if onMalformed != nil {
			onMalformed(ref, parts)
		}
	}
	cfg.OnRetry = func(ref string, attempt int, err error) {
		c.log.Debug("download failed; retrying", Fields{"reference": ref, "attempt": attempt, "err": err})
		c.hooks.FetchRetry(ref, attempt, err)
		if onRetry != nil {
			onRetry(ref, attempt, err)
		}
	}
	return cfg
}

func (c *cache) Close(ctx context.Context) error {
	if c.meta != nil {
		return c.meta.Close(ctx)
	}
	return nil
}

// withBulk opens the bulk store for the duration of fn and always releases it.
func (c *cache) withBulk(ctx context.Context, fn func(bulk pr.Provider) error) (err error) {
	bulk, err := c.bulk.Open(ctx)
	if err != nil {
		return &StoreError{Tier: TierBulk, Op: "open", Err: err}
	}
	defer func() {
		if cerr := bulk.Close(ctx); cerr != nil {
			err = multierr.Append(err, &StoreError{Tier: TierBulk, Op: "close", Err: cerr})
		}
	}()
	return fn(bulk)
}

func (c *cache) GetRaw(ctx context.Context, datasetID, key string) (any, error) {
	vals, err := c.GetRawMany(ctx, datasetID, []string{key})
	if err != nil {
		return nil, err
	}
	return vals[0], nil
}

func (c *cache) GetRawMany(ctx context.Context, datasetID string, keys []string) ([]any, error) {
	if err := keyspace.ValidateDataset(datasetID); err != nil {
		return nil, err
	}
	out := make([]any, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	err := c.withBulk(ctx, func(bulk pr.Provider) error {
		raws, err := bulk.GetMany(ctx, keyspace.ValueKeys(datasetID, keys))
		if err != nil {
			return &StoreError{Tier: TierBulk, Op: "getMany", Err: err}
		}
		for i := range out {
			if i < len(raws) {
				out[i] = c.values.DecodeValue(raws[i])
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *cache) Clear(ctx context.Context, datasetID string, keys []string) (int, error) {
	if err := keyspace.ValidateDataset(datasetID); err != nil {
		return 0, err
	}
	if keys == nil {
		all, err := c.listKeys(ctx, datasetID)
		if err != nil {
			return 0, err
		}
		keys = all
	}
	if len(keys) == 0 {
		return 0, nil
	}
	removed := 0
	err := c.withBulk(ctx, func(bulk pr.Provider) error {
		n, err := c.store.cached(ctx, bulk, datasetID, keys)
		if err != nil {
			return err
		}
		removed = n
		return c.store.remove(ctx, bulk, datasetID, keys)
	})
	if err != nil {
		return 0, err
	}
	c.log.Info("cleared cached entries", Fields{"dataset": datasetID, "keys": len(keys), "removed": removed})
	return removed, nil
}
