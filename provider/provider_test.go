package provider_test

import (
	"context"
	"errors"
	"testing"

	pr "github.com/unkn0wn-root/ledgercache/provider"
	"github.com/unkn0wn-root/ledgercache/provider/bigcache"
	"github.com/unkn0wn-root/ledgercache/provider/memory"
	"github.com/unkn0wn-root/ledgercache/provider/ristretto"
)

func exercise(t *testing.T, name string, p pr.Provider) {
	t.Helper()
	ctx := context.Background()
	if err := p.SetMany(ctx, []pr.Entry{
		{Key: "d.sortKey.a", Value: []byte("000001")},
		{Key: "d.sortKey.b", Value: []byte("000002")},
	}); err != nil {
		t.Fatalf("%s: SetMany: %v", name, err)
	}
	got, err := p.GetMany(ctx, []string{"d.sortKey.a", "d.sortKey.zz", "d.sortKey.b"})
	if err != nil {
		t.Fatalf("%s: GetMany: %v", name, err)
	}
	if string(got[0]) != "000001" || got[1] != nil || string(got[2]) != "000002" {
		t.Fatalf("%s: got %q", name, got)
	}
	if err := p.DelMany(ctx, []string{"d.sortKey.a", "d.sortKey.zz"}); err != nil {
		t.Fatalf("%s: DelMany: %v", name, err)
	}
	if _, ok, _ := pr.Get(ctx, p, "d.sortKey.a"); ok {
		t.Fatalf("%s: deleted key still present", name)
	}
}

func TestInProcessProviders(t *testing.T) {
	bcp, err := bigcache.New(bigcache.Config{})
	if err != nil {
		t.Fatal(err)
	}
	rp, err := ristretto.New(ristretto.Config{NumCounters: 1e4, MaxCost: 1 << 20, BufferItems: 64})
	if err != nil {
		t.Fatal(err)
	}
	for name, p := range map[string]pr.Provider{
		"memory":    memory.New(),
		"bigcache":  bcp,
		"ristretto": rp,
	} {
		exercise(t, name, p)
		if err := p.Close(context.Background()); err != nil {
			t.Fatalf("%s: close: %v", name, err)
		}
	}
}

type closeCounter struct {
	pr.Provider
	closed int
}

func (c *closeCounter) Close(context.Context) error { c.closed++; return nil }

func TestSharedDoesNotCloseOwner(t *testing.T) {
	ctx := context.Background()
	inner := &closeCounter{Provider: memory.New()}
	op := pr.Shared(inner)
	p, err := op.Open(ctx)
	if err != nil {
		t.Fatal(err)
	}
	_ = p.Close(ctx)
	if inner.closed != 0 {
		t.Fatalf("shared provider closed by scope")
	}
}

func TestRefCountedOpenError(t *testing.T) {
	boom := errors.New("locked")
	rc := pr.NewRefCounted(func(context.Context) (pr.Provider, error) { return nil, boom })
	if _, err := rc.Open(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	if rc.Refs() != 0 {
		t.Fatalf("failed open leaked a ref")
	}
}

func TestRefCountedClosesOnLastRelease(t *testing.T) {
	ctx := context.Background()
	inner := &closeCounter{Provider: memory.New()}
	opens := 0
	rc := pr.NewRefCounted(func(context.Context) (pr.Provider, error) { opens++; return inner, nil })

	a, _ := rc.Open(ctx)
	b, _ := rc.Open(ctx)
	_ = a.Close(ctx)
	if inner.closed != 0 {
		t.Fatalf("closed while a scope is still open")
	}
	_ = b.Close(ctx)
	if inner.closed != 1 || opens != 1 {
		t.Fatalf("closed=%d opens=%d", inner.closed, opens)
	}
	c, _ := rc.Open(ctx)
	_ = c.Close(ctx)
	if opens != 2 {
		t.Fatalf("expected reopen after full release, opens=%d", opens)
	}
}
