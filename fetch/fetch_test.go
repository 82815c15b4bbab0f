package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestResolveUnwrapped(t *testing.T) {
	f := New(Config{BaseURL: "http://gw/"})
	if got := f.URL("txid456"); got != "http://gw/txid456" {
		t.Fatalf("URL = %q", got)
	}
	if got := f.URL("abc.def"); got != "http://gw/abc.def" {
		t.Fatalf("unwrapped refs must not be split, got %q", got)
	}
}

func TestResolveWrapped(t *testing.T) {
	var (
		mu        sync.Mutex
		malformed []string
	)
	f := New(Config{
		BaseURL: "http://gw",
		Wrapped: true,
		OnMalformed: func(ref string, parts int) {
			mu.Lock()
			malformed = append(malformed, ref)
			mu.Unlock()
		},
	})

	cases := []struct {
		ref, want string
		bad       bool
	}{
		{"abc123.txid456", "txid456", false},
		{"a.b.c", "b", true},
		{"noperiod", "noperiod", true},
		{"abc.", "", true},
		{"", "", true},
	}
	for _, c := range cases {
		if got := f.Resolve(c.ref); got != c.want {
			t.Fatalf("Resolve(%q) = %q, want %q", c.ref, got, c.want)
		}
	}
	var want []string
	for _, c := range cases {
		if c.bad {
			want = append(want, c.ref)
		}
	}
	if !slices.Equal(malformed, want) {
		t.Fatalf("malformed callbacks = %q, want %q", malformed, want)
	}
}

func TestFetchWrappedPath(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"data":{"n":1}}`))
	}))
	defer srv.Close()

	f := New(Config{BaseURL: srv.URL, Wrapped: true})
	body, err := f.Fetch(context.Background(), "abc123.txid456")
	if err != nil {
		t.Fatal(err)
	}
	if path != "/txid456" {
		t.Fatalf("requested %q", path)
	}
	if string(body) != `{"data":{"n":1}}` {
		t.Fatalf("body = %s", body)
	}
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":"ok"}`))
	}))
	defer srv.Close()

	var retries []int
	f := New(Config{
		BaseURL:      srv.URL,
		MaxAttempts:  5,
		AttemptSleep: time.Millisecond,
		OnRetry: func(_ string, attempt int, err error) {
			var se *StatusError
			if !errors.As(err, &se) || se.Code != http.StatusBadGateway {
				t.Errorf("retry err = %v", err)
			}
			retries = append(retries, attempt)
		},
	})
	if _, err := f.Fetch(context.Background(), "tx"); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
	if len(retries) != 2 || retries[0] != 1 || retries[1] != 2 {
		t.Fatalf("retries = %v", retries)
	}
}

func TestFetchExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Config{BaseURL: srv.URL, MaxAttempts: 3, AttemptSleep: time.Millisecond})
	_, err := f.Fetch(context.Background(), "tx")
	var ee *ExhaustedError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want *ExhaustedError", err)
	}
	if ee.Attempts != 3 || calls.Load() != 3 {
		t.Fatalf("attempts = %d calls = %d", ee.Attempts, calls.Load())
	}
	if !IsExhausted(err) {
		t.Fatalf("IsExhausted = false")
	}
}

func TestFetchPerAttemptTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		_, _ = w.Write([]byte(`{"data":1}`))
	}))
	defer srv.Close()

	f := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond, MaxAttempts: 2, AttemptSleep: time.Millisecond})
	if _, err := f.Fetch(context.Background(), "tx"); err != nil {
		t.Fatalf("second attempt should succeed: %v", err)
	}
}

func TestFetchContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := New(Config{BaseURL: srv.URL, MaxAttempts: 5, AttemptSleep: time.Second})
	if _, err := f.Fetch(ctx, "tx"); err == nil {
		t.Fatalf("expected error on canceled context")
	}
}

func TestEnvelope(t *testing.T) {
	v, err := Envelope([]byte(`{"data":{"b":2,"a":1}}`))
	if err != nil {
		t.Fatal(err)
	}
	raw, ok := v.(json.RawMessage)
	if !ok || string(raw) != `{"b":2,"a":1}` {
		t.Fatalf("got %T %s", v, v)
	}

	v, err = Envelope([]byte(`{"data":"plain text"}`))
	if err != nil || v != "plain text" {
		t.Fatalf("string payload = %#v, %v", v, err)
	}

	for _, body := range []string{`not json`, `{"other":1}`, `[1,2]`} {
		if _, err := Envelope([]byte(body)); !errors.Is(err, ErrNoData) {
			t.Fatalf("Envelope(%s) err = %v, want ErrNoData", body, err)
		}
	}
}
