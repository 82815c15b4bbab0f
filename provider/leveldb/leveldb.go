// Package leveldb is the disk-backed bulk store.
//
// LevelDB holds an exclusive lock on its directory, so handles are shared
// through a reference-counted opener: concurrent sync passes and raw reads
// reuse one open database, and the last scope to finish closes it.
package leveldb

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"

	pr "github.com/unkn0wn-root/ledgercache/provider"
)

var ErrEmptyPath = errors.New("leveldb provider: empty path")

type Config struct {
	Path string
	// Sync forces an fsync for every batch write.
	Sync bool
	// BlockCacheCapacity in bytes; 0 keeps the LevelDB default.
	BlockCacheCapacity int
}

type LevelDB struct {
	db   *leveldb.DB
	sync bool
}

var _ pr.Provider = (*LevelDB)(nil)

// Open opens (creating if needed) the database at cfg.Path.
func Open(cfg Config) (*LevelDB, error) {
	if cfg.Path == "" {
		return nil, ErrEmptyPath
	}
	db, err := leveldb.OpenFile(cfg.Path, &ldb_opt.Options{
		BlockCacheCapacity: cfg.BlockCacheCapacity,
	})
	if err != nil {
		return nil, fmt.Errorf("leveldb provider: open %s: %w", cfg.Path, err)
	}
	return &LevelDB{db: db, sync: cfg.Sync}, nil
}

// NewOpener returns a reference-counted opener for cfg.Path.
func NewOpener(cfg Config) *pr.RefCounted {
	return pr.NewRefCounted(func(context.Context) (pr.Provider, error) {
		return Open(cfg)
	})
}

func (p *LevelDB) GetMany(ctx context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := p.db.Get([]byte(k), nil)
		if errors.Is(err, leveldb.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if v == nil {
			v = []byte{}
		}
		out[i] = v
	}
	return out, nil
}

func (p *LevelDB) SetMany(_ context.Context, entries []pr.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := new(leveldb.Batch)
	for _, e := range entries {
		batch.Put([]byte(e.Key), e.Value)
	}
	return p.write(batch)
}

func (p *LevelDB) DelMany(_ context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	batch := new(leveldb.Batch)
	for _, k := range keys {
		batch.Delete([]byte(k))
	}
	return p.write(batch)
}

func (p *LevelDB) write(batch *leveldb.Batch) error {
	return p.db.Write(batch, &ldb_opt.WriteOptions{Sync: p.sync})
}

func (p *LevelDB) Close(context.Context) error {
	return p.db.Close()
}
