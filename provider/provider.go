// Package provider defines the batched byte stores behind ledgercache.
//
// Two tiers use it: the metadata store (sort-key bookkeeping, e.g. Redis) and
// the bulk store (serialized values, e.g. LevelDB on disk).
//
// Implementations MUST be byte-for-byte transparent: GetMany must return exactly
// the bytes previously passed to SetMany for a key. The keyspaces
// "<dataset>.value." and "<dataset>.sortKey." are owned by ledgercache.
package provider

import (
	"context"
	"sync"
)

// Entry is one key/value pair of a batched write.
type Entry struct {
	Key   string
	Value []byte
}

// Provider is a batched byte store. Safe for concurrent use.
//
// Batches are not transactions across tiers; callers must tolerate a crash
// between writes to two providers.
type Provider interface {
	// GetMany returns one slot per key, in order. A missing key yields nil.
	// An IO/remote error fails the whole call.
	GetMany(ctx context.Context, keys []string) ([][]byte, error)

	// SetMany upserts all entries.
	SetMany(ctx context.Context, entries []Entry) error

	// DelMany removes keys. Missing keys are not an error.
	DelMany(ctx context.Context, keys []string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Opener hands out a provider for one scoped use. The caller must Close the
// returned provider on every exit path.
type Opener interface {
	Open(ctx context.Context) (Provider, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context) (Provider, error)

func (f OpenerFunc) Open(ctx context.Context) (Provider, error) { return f(ctx) }

// Shared turns a long-lived provider into an Opener. Closing a scoped handle
// is a no-op; the owner closes p itself.
func Shared(p Provider) Opener {
	return OpenerFunc(func(context.Context) (Provider, error) {
		return borrowed{p}, nil
	})
}

type borrowed struct{ Provider }

func (borrowed) Close(context.Context) error { return nil }

// Get is a single-key convenience over GetMany.
func Get(ctx context.Context, p Provider, key string) ([]byte, bool, error) {
	vals, err := p.GetMany(ctx, []string{key})
	if err != nil {
		return nil, false, err
	}
	if len(vals) == 0 || vals[0] == nil {
		return nil, false, nil
	}
	return vals[0], true, nil
}

// RefCounted shares one underlying provider between concurrent scopes.
// The first Open calls open; the last Close calls Close on the shared provider.
// Used for stores that take an exclusive file lock (LevelDB).
type RefCounted struct {
	open func(ctx context.Context) (Provider, error)

	mu   sync.Mutex
	p    Provider
	refs int
}

func NewRefCounted(open func(ctx context.Context) (Provider, error)) *RefCounted {
	return &RefCounted{open: open}
}

func (r *RefCounted) Open(ctx context.Context) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.p == nil {
		p, err := r.open(ctx)
		if err != nil {
			return nil, err
		}
		r.p = p
	}
	r.refs++
	return &lease{Provider: r.p, owner: r}, nil
}

// Refs reports how many scopes currently hold the provider.
func (r *RefCounted) Refs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs
}

func (r *RefCounted) release(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs--
	if r.refs > 0 {
		return nil
	}
	p := r.p
	r.p = nil
	r.refs = 0
	return p.Close(ctx)
}

type lease struct {
	Provider
	owner *RefCounted
	once  sync.Once
}

func (l *lease) Close(ctx context.Context) error {
	var err error
	l.once.Do(func() { err = l.owner.release(ctx) })
	return err
}
