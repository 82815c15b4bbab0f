package keyspace

import (
	"errors"
	"strings"
)

const (
	valueSep   = ".value."
	sortKeySep = ".sortKey."
)

var ErrInvalidDataset = errors.New("ledgercache: invalid dataset id")

// ValidateDataset rejects ids that would make the physical layout ambiguous.
// The dataset id is the part before the first '.', so it may not contain one.
func ValidateDataset(datasetID string) error {
	if datasetID == "" || strings.Contains(datasetID, ".") {
		return ErrInvalidDataset
	}
	return nil
}

// ValueKey is the bulk-store key holding the serialized value: "<ds>.value.<key>".
func ValueKey(datasetID, key string) string {
	return datasetID + valueSep + key
}

// SortKeyKey is the metadata-store key holding the last synced sort key: "<ds>.sortKey.<key>".
func SortKeyKey(datasetID, key string) string {
	return datasetID + sortKeySep + key
}

// ValueKeys maps keys in order.
func ValueKeys(datasetID string, keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = ValueKey(datasetID, k)
	}
	return out
}

// SortKeyKeys maps keys in order.
func SortKeyKeys(datasetID string, keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = SortKeyKey(datasetID, k)
	}
	return out
}
