// Package ristretto is an in-process metadata store with admission control.
// Rejected or evicted sort keys only cause redundant refreshes.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/ledgercache/provider"
)

type Provider struct {
	c   *rc.Cache
	ttl time.Duration
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64 // bytes; each entry costs len(key)+len(value)
	BufferItems int64
	TTL         time.Duration // 0 = no expiry
	Metrics     bool
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c, ttl: cfg.TTL}, nil
}

func (p *Provider) GetMany(_ context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		v, ok := p.c.Get(k)
		if !ok {
			continue
		}
		b, _ := v.([]byte)
		if b == nil {
			// self-heal: drop unexpected entry shape
			p.c.Del(k)
			continue
		}
		out[i] = b
	}
	return out, nil
}

// SetMany waits for the write buffers so a following GetMany observes the batch.
func (p *Provider) SetMany(_ context.Context, entries []pr.Entry) error {
	for _, e := range entries {
		v := append([]byte{}, e.Value...)
		p.c.SetWithTTL(e.Key, v, int64(len(e.Key)+len(v)), p.ttl)
	}
	p.c.Wait()
	return nil
}

func (p *Provider) DelMany(_ context.Context, keys []string) error {
	for _, k := range keys {
		p.c.Del(k)
	}
	return nil
}

func (p *Provider) Close(context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes ristretto's counters when Config.Metrics is set.
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }
