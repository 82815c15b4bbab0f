// Package ledgercache keeps a two-tier local cache consistent with an external,
// sort-key-ordered ledger without re-reading the ledger on every request.
//
// Components:
//   - Metadata store: last-synchronized sort key per logical key (e.g. Redis).
//   - Bulk store: serialized values (e.g. LevelDB), opened per pass or read.
//   - Ledger: authoritative source, consulted only while detecting staleness.
//   - Fetcher: optional dereferencing of values kept on a content-addressed network.
//
// Keys:
//
//	<dataset>.value.<key>    - bulk store
//	<dataset>.sortKey.<key>  - metadata store
//
// A key is stale when its ledger sort key differs from the cached one (a key
// that was never cached is always stale). Sync rewrites stale keys, bulk value
// first and sort key second. A crash in between leaves the old sort key in
// place, so the next pass rewrites the value again.
//
// Pass:
//
//	n, err := cache.Sync(ctx, "contract-id") // refreshed key count
//	v, _   := cache.GetRaw(ctx, "contract-id", "key")
package ledgercache
