package ledgercache

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/ledgercache/codec"
	"github.com/unkn0wn-root/ledgercache/internal/keyspace"
	pr "github.com/unkn0wn-root/ledgercache/provider"
)

// dualStore writes both tiers for a set of keys. The two batches are
// independent; there is no cross-store transaction.
//
// Upserts go bulk first, then metadata: a crash in between leaves the old
// sort key, so the key stays stale and is rewritten by the next pass.
// Removals go metadata first, then bulk: a crash in between never leaves a
// sort key that claims a value which is gone.
type dualStore struct {
	meta    pr.Provider
	values  codec.Codec[any]
	sortKey codec.Codec[string]
}

// write applies recs. Deletion records are removed, the rest upserted.
func (s *dualStore) write(ctx context.Context, bulk pr.Provider, datasetID string, recs []StaleRecord) error {
	var (
		dels    []string
		values  = make([]pr.Entry, 0, len(recs))
		sortKey = make([]pr.Entry, 0, len(recs))
	)
	for _, r := range recs {
		if r.Deleted {
			dels = append(dels, r.Key)
			continue
		}
		vb, err := s.values.Encode(r.Value)
		if err != nil {
			return fmt.Errorf("ledgercache: encode value of %q: %w", r.Key, err)
		}
		sb, err := s.sortKey.Encode(r.SortKey)
		if err != nil {
			return fmt.Errorf("ledgercache: encode sort key of %q: %w", r.Key, err)
		}
		values = append(values, pr.Entry{Key: keyspace.ValueKey(datasetID, r.Key), Value: vb})
		sortKey = append(sortKey, pr.Entry{Key: keyspace.SortKeyKey(datasetID, r.Key), Value: sb})
	}

	if len(values) > 0 {
		if err := bulk.SetMany(ctx, values); err != nil {
			return &StoreError{Tier: TierBulk, Op: "setMany", Err: err}
		}
		if err := s.meta.SetMany(ctx, sortKey); err != nil {
			return &StoreError{Tier: TierMetadata, Op: "setMany", Err: err}
		}
	}
	if len(dels) > 0 {
		return s.remove(ctx, bulk, datasetID, dels)
	}
	return nil
}

// remove deletes both entries of every key.
func (s *dualStore) remove(ctx context.Context, bulk pr.Provider, datasetID string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.meta.DelMany(ctx, keyspace.SortKeyKeys(datasetID, keys)); err != nil {
		return &StoreError{Tier: TierMetadata, Op: "delMany", Err: err}
	}
	if err := bulk.DelMany(ctx, keyspace.ValueKeys(datasetID, keys)); err != nil {
		return &StoreError{Tier: TierBulk, Op: "delMany", Err: err}
	}
	return nil
}

// cached counts the keys that have an entry in either tier.
func (s *dualStore) cached(ctx context.Context, bulk pr.Provider, datasetID string, keys []string) (int, error) {
	sks, err := s.meta.GetMany(ctx, keyspace.SortKeyKeys(datasetID, keys))
	if err != nil {
		return 0, &StoreError{Tier: TierMetadata, Op: "getMany", Err: err}
	}
	vals, err := bulk.GetMany(ctx, keyspace.ValueKeys(datasetID, keys))
	if err != nil {
		return 0, &StoreError{Tier: TierBulk, Op: "getMany", Err: err}
	}
	n := 0
	for i := range keys {
		if (i < len(sks) && sks[i] != nil) || (i < len(vals) && vals[i] != nil) {
			n++
		}
	}
	return n, nil
}

// sortKeys reads the cached sort key of every key; "" with ok=false if absent.
func (s *dualStore) sortKeys(ctx context.Context, datasetID string, keys []string) ([]cachedSortKey, error) {
	raws, err := s.meta.GetMany(ctx, keyspace.SortKeyKeys(datasetID, keys))
	if err != nil {
		return nil, &StoreError{Tier: TierMetadata, Op: "getMany", Err: err}
	}
	out := make([]cachedSortKey, len(keys))
	for i := range out {
		if i >= len(raws) || raws[i] == nil {
			continue
		}
		sk, err := s.sortKey.Decode(raws[i])
		if err != nil {
			// unreadable bookkeeping counts as never cached
			continue
		}
		out[i] = cachedSortKey{value: sk, ok: true}
	}
	return out, nil
}

type cachedSortKey struct {
	value string
	ok    bool
}
