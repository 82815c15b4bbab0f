package ledger

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"
)

type version struct {
	sortKey string
	value   any
	removed bool
}

// Memory is an in-process ledger. Every Put/Remove appends a version with a
// strictly increasing sort key "<height>,<millis>,<hash>".
//
// Writes are staged until ReadLatestState, mimicking a client whose view
// lags the chain until it re-reads state.
type Memory struct {
	mu      sync.Mutex
	height  uint64
	now     func() time.Time
	visible map[string]map[string][]version
	staged  []staged

	// Err, when set, fails every call (to simulate an unreachable ledger).
	Err error
}

type staged struct {
	dataset, key string
	v            version
}

var _ Ledger = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		now:     time.Now,
		visible: make(map[string]map[string][]version),
	}
}

func (m *Memory) nextSortKey(dataset, key string) string {
	m.height++
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%s/%d", dataset, key, m.height)))
	return fmt.Sprintf("%012d,%013d,%x", m.height, m.now().UnixMilli(), sum)
}

// Put stages a write and returns its sort key.
func (m *Memory) Put(dataset, key string, value any) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	sk := m.nextSortKey(dataset, key)
	m.staged = append(m.staged, staged{dataset, key, version{sortKey: sk, value: value}})
	return sk
}

// Remove stages a deletion; the key disappears from ListKeys.
func (m *Memory) Remove(dataset, key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	sk := m.nextSortKey(dataset, key)
	m.staged = append(m.staged, staged{dataset, key, version{sortKey: sk, removed: true}})
	return sk
}

func (m *Memory) ReadLatestState(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, s := range m.staged {
		ds := m.visible[s.dataset]
		if ds == nil {
			ds = make(map[string][]version)
			m.visible[s.dataset] = ds
		}
		ds[s.key] = append(ds[s.key], s.v)
	}
	m.staged = nil
	return nil
}

// ListKeys returns keys, sorted, whose newest version at or before upperBound is live.
func (m *Memory) ListKeys(_ context.Context, datasetID, upperBound string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var keys []string
	for k, versions := range m.visible[datasetID] {
		if v, ok := latestAtOrBefore(versions, upperBound); ok && !v.removed {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// GetLatest reports removed keys as ok=false.
func (m *Memory) GetLatest(_ context.Context, datasetID, key string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return Entry{}, false, m.Err
	}
	versions := m.visible[datasetID][key]
	if len(versions) == 0 {
		return Entry{}, false, nil
	}
	v := versions[len(versions)-1]
	if v.removed {
		return Entry{}, false, nil
	}
	return Entry{SortKey: v.sortKey, Value: v.value}, true, nil
}

func latestAtOrBefore(versions []version, upperBound string) (version, bool) {
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].sortKey <= upperBound {
			return versions[i], true
		}
	}
	return version{}, false
}
