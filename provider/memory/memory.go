// Package memory is an in-process provider, mostly for single-node setups and tests.
package memory

import (
	"context"
	"sync"
	"time"

	pr "github.com/unkn0wn-root/ledgercache/provider"
)

type entry struct {
	v         []byte
	expiresAt time.Time // zero => no expiry
}

// Memory keeps values in a map. Optional TTL with a cleanup loop to prune
// expired entries; reads never return expired values either way.
type Memory struct {
	mu     sync.RWMutex
	m      map[string]entry
	ttl    time.Duration
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ pr.Provider = (*Memory)(nil)

func New() *Memory { return NewWithTTL(0, 0) }

// NewWithTTL expires entries ttl after their last write. cleanupInterval > 0
// starts a background sweep.
func NewWithTTL(ttl, cleanupInterval time.Duration) *Memory {
	s := &Memory{m: make(map[string]entry), ttl: ttl}
	if ttl > 0 && cleanupInterval > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Cleanup(time.Now())
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

// GetMany acquires the read lock once for the whole batch.
func (s *Memory) GetMany(_ context.Context, keys []string) ([][]byte, error) {
	now := time.Now()
	out := make([][]byte, len(keys))
	s.mu.RLock()
	for i, k := range keys {
		e, ok := s.m[k]
		if !ok || (!e.expiresAt.IsZero() && now.After(e.expiresAt)) {
			continue
		}
		out[i] = append([]byte{}, e.v...)
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Memory) SetMany(_ context.Context, entries []pr.Entry) error {
	var exp time.Time
	if s.ttl > 0 {
		exp = time.Now().Add(s.ttl)
	}
	s.mu.Lock()
	for _, e := range entries {
		s.m[e.Key] = entry{v: append([]byte{}, e.Value...), expiresAt: exp}
	}
	s.mu.Unlock()
	return nil
}

func (s *Memory) DelMany(_ context.Context, keys []string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.m, k)
	}
	s.mu.Unlock()
	return nil
}

// Len counts stored entries, expired ones included until swept.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

func (s *Memory) Cleanup(now time.Time) {
	s.mu.Lock()
	for k, e := range s.m {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(s.m, k)
		}
	}
	s.mu.Unlock()
}

func (s *Memory) Close(context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			s.ticker.Stop()
			close(s.stopCh)
			s.wg.Wait()
		}
	})
	return nil
}
