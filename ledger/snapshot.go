package ledger

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Snapshot is the YAML layout accepted by LoadSnapshot:
//
//	datasets:
//	  <dataset-id>:
//	    <key>: <value>
type Snapshot struct {
	Datasets map[string]map[string]any `yaml:"datasets"`
}

// LoadSnapshot builds a Memory ledger from a YAML file. Keys are written in
// sorted order so sort keys are reproducible for a given file.
func LoadSnapshot(path string) (*Memory, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ledger snapshot: %w", err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("ledger snapshot %s: %w", path, err)
	}
	m := NewMemory()
	m.Apply(snap)
	if err := m.ReadLatestState(context.Background()); err != nil {
		return nil, err
	}
	return m, nil
}

// Apply stages every value of snap as a Put.
func (m *Memory) Apply(snap Snapshot) {
	datasets := make([]string, 0, len(snap.Datasets))
	for ds := range snap.Datasets {
		datasets = append(datasets, ds)
	}
	sort.Strings(datasets)
	for _, ds := range datasets {
		kv := snap.Datasets[ds]
		keys := make([]string, 0, len(kv))
		for k := range kv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			m.Put(ds, k, kv[k])
		}
	}
}
