package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestWritesInvisibleUntilReadLatestState(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Put("d", "a", 1)

	keys, _ := m.ListKeys(ctx, "d", LastPossibleSortKey)
	if len(keys) != 0 {
		t.Fatalf("staged write visible: %v", keys)
	}
	if err := m.ReadLatestState(ctx); err != nil {
		t.Fatal(err)
	}
	keys, _ = m.ListKeys(ctx, "d", LastPossibleSortKey)
	if !reflect.DeepEqual(keys, []string{"a"}) {
		t.Fatalf("keys=%v", keys)
	}
}

func TestSortKeysIncreaseAndStayBelowSentinel(t *testing.T) {
	m := NewMemory()
	prev := ""
	for i := 0; i < 50; i++ {
		sk := m.Put("d", "k", i)
		if sk <= prev {
			t.Fatalf("sort key not increasing: %q after %q", sk, prev)
		}
		if sk >= LastPossibleSortKey {
			t.Fatalf("sort key %q not below sentinel", sk)
		}
		prev = sk
	}
}

func TestRemoveHidesKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	first := m.Put("d", "a", "x")
	m.Put("d", "b", "y")
	m.Remove("d", "a")
	_ = m.ReadLatestState(ctx)

	keys, _ := m.ListKeys(ctx, "d", LastPossibleSortKey)
	if !reflect.DeepEqual(keys, []string{"b"}) {
		t.Fatalf("keys=%v", keys)
	}
	if _, ok, _ := m.GetLatest(ctx, "d", "a"); ok {
		t.Fatalf("removed key returned")
	}
	// as of the first write, "a" was live
	keys, _ = m.ListKeys(ctx, "d", first)
	if !reflect.DeepEqual(keys, []string{"a"}) {
		t.Fatalf("keys at %s = %v", first, keys)
	}
}

func TestUnreachable(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Err = errors.New("down")
	if err := m.ReadLatestState(ctx); err == nil {
		t.Fatal("expected error")
	}
	if _, err := m.ListKeys(ctx, "d", LastPossibleSortKey); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	err := os.WriteFile(path, []byte(`
datasets:
  ctr1:
    b: "abc123.txid456"
    a:
      name: ada
`), 0o600)
	if err != nil {
		t.Fatal(err)
	}
	m, err := LoadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	keys, _ := m.ListKeys(ctx, "ctr1", LastPossibleSortKey)
	if !reflect.DeepEqual(keys, []string{"a", "b"}) {
		t.Fatalf("keys=%v", keys)
	}
	e, ok, _ := m.GetLatest(ctx, "ctr1", "b")
	if !ok || e.Value != "abc123.txid456" {
		t.Fatalf("entry=%+v ok=%v", e, ok)
	}
	ea, _, _ := m.GetLatest(ctx, "ctr1", "a")
	if ea.SortKey >= e.SortKey {
		t.Fatalf("sorted keys should get increasing sort keys: %s >= %s", ea.SortKey, e.SortKey)
	}
}
