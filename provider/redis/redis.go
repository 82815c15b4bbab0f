package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/ledgercache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

type Redis struct {
	rdb         goredis.UniversalClient
	ttl         time.Duration
	closeClient bool
}

var _ pr.Provider = (*Redis)(nil)

type Config struct {
	Client goredis.UniversalClient
	// TTL applied to every written key; 0 disables expiry. An expired sort key
	// only makes the next sync pass refresh that key again.
	TTL         time.Duration
	CloseClient bool // set true only if this provider exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, ttl: cfg.TTL, closeClient: cfg.CloseClient}, nil
}

// GetMany issues a single MGET.
func (p *Redis) GetMany(ctx context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := p.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		switch vv := v.(type) {
		case nil:
		case string:
			out[i] = []byte(vv)
		case []byte:
			out[i] = vv
		default:
			return nil, fmt.Errorf("redis provider: unexpected %T at %s", v, keys[i])
		}
	}
	return out, nil
}

// SetMany uses MSET, or pipelined SET with expiry when a TTL is configured.
func (p *Redis) SetMany(ctx context.Context, entries []pr.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if p.ttl <= 0 {
		pairs := make([]any, 0, 2*len(entries))
		for _, e := range entries {
			pairs = append(pairs, e.Key, e.Value)
		}
		return p.rdb.MSet(ctx, pairs...).Err()
	}
	_, err := p.rdb.Pipelined(ctx, func(pl goredis.Pipeliner) error {
		for _, e := range entries {
			pl.Set(ctx, e.Key, e.Value, p.ttl)
		}
		return nil
	})
	return err
}

func (p *Redis) DelMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return p.rdb.Del(ctx, keys...).Err()
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
