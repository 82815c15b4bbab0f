package ledgercache

import (
	"context"

	c "github.com/unkn0wn-root/ledgercache/codec"
	"github.com/unkn0wn-root/ledgercache/fetch"
	"github.com/unkn0wn-root/ledgercache/ledger"
	pr "github.com/unkn0wn-root/ledgercache/provider"
)

// Cache is the synchronization engine plus the raw read path over its stores.
// Concurrent Sync calls for the same dataset are not serialized; they do
// redundant but idempotent work.
type Cache interface {
	// Sync runs one pass and returns the number of refreshed keys. On failure
	// the count covers the batches that were committed before the error.
	Sync(ctx context.Context, datasetID string) (int, error)

	// DetectStale returns the keys whose cached sort key differs from the ledger.
	DetectStale(ctx context.Context, datasetID string) ([]StaleRecord, error)

	// GetRaw reads straight from the bulk store. Missing keys yield nil.
	GetRaw(ctx context.Context, datasetID, key string) (any, error)
	// GetRawMany returns one value (or nil) per key, in order.
	GetRawMany(ctx context.Context, datasetID string, keys []string) ([]any, error)

	// Clear removes the cached entries of keys; nil keys means every key the
	// ledger knows for the dataset. Returns the number of keys that had a
	// cached entry in either store.
	Clear(ctx context.Context, datasetID string, keys []string) (int, error)

	Close(context.Context) error
}

// Fetcher resolves a value reference to the downloaded body.
// *fetch.Fetcher is the default.
type Fetcher interface {
	Fetch(ctx context.Context, reference string) ([]byte, error)
}

// Options configure a Cache. Ledger and Metadata are required.
type Options struct {
	// Required
	Ledger   ledger.Ledger
	Metadata pr.Provider // sort keys; closed by Cache.Close

	// Bulk opens the value store once per pass or read. nil => values are
	// kept in Metadata as well.
	Bulk pr.Opener

	Codec     c.Codec[any] // structured value codec; nil => JSON
	MaxDecode int          // > 0 => larger stored values are returned as codec.Opaque

	RemoteValues bool         // ledger values are references into the content network
	Download     fetch.Config // used when Fetcher is nil
	Fetcher      Fetcher

	BatchWidth        int // remote fetches per batch; 0 => 40
	LedgerConcurrency int // concurrent GetLatest calls; 0 => 16

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used
}

func New(opts Options) (Cache, error) {
	return newCache(opts)
}
