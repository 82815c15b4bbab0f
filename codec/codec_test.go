package codec

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"
)

func structured() []any {
	return []any{
		map[string]any{"name": "ada", "tags": []any{"x", "y"}, "n": float64(3)},
		[]any{float64(1), "two", true, nil},
		float64(42.5),
		true,
	}
}

func inners() map[string]Codec[any] {
	return map[string]Codec[any]{
		"json":    JSON[any]{},
		"cbor":    MustCBOR[any](true),
		"msgpack": Msgpack[any]{},
		"struct":  Struct{},
	}
}

func TestTolerantRoundTripStructured(t *testing.T) {
	for name, inner := range inners() {
		tc := NewTolerant(inner, 0)
		for _, v := range structured() {
			enc, err := tc.Encode(v)
			if err != nil {
				t.Fatalf("%s: encode %v: %v", name, v, err)
			}
			got, err := tc.Decode(enc)
			if err != nil {
				t.Fatalf("%s: decode returned error: %v", name, err)
			}
			if !reflect.DeepEqual(normalizeNumbers(got), v) {
				t.Fatalf("%s: round trip mismatch: got %#v want %#v", name, got, v)
			}
		}
	}
}

// msgpack/cbor may hand back integer types for whole numbers.
func normalizeNumbers(v any) any {
	switch vv := v.(type) {
	case int8:
		return float64(vv)
	case int16:
		return float64(vv)
	case int32:
		return float64(vv)
	case int64:
		return float64(vv)
	case uint8:
		return float64(vv)
	case uint16:
		return float64(vv)
	case uint32:
		return float64(vv)
	case uint64:
		return float64(vv)
	case float32:
		return float64(vv)
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, x := range vv {
			out[k] = normalizeNumbers(x)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, x := range vv {
			out[i] = normalizeNumbers(x)
		}
		return out
	}
	return v
}

func TestTolerantStringsPassThrough(t *testing.T) {
	tc := NewTolerant(nil, 0)
	enc, err := tc.Encode("abc123.txid456")
	if err != nil {
		t.Fatal(err)
	}
	if string(enc) != "abc123.txid456" {
		t.Fatalf("string was re-encoded: %q", enc)
	}
	// already-JSON text stays as is too
	enc, _ = tc.Encode(`{"a":1}`)
	if string(enc) != `{"a":1}` {
		t.Fatalf("json text was re-encoded: %q", enc)
	}
}

func TestTolerantDecodeFallsBackToBytes(t *testing.T) {
	for name, inner := range inners() {
		tc := NewTolerant(inner, 0)
		for _, in := range [][]byte{
			[]byte("not json at all"),
			[]byte("abc123.txid456"),
			[]byte("hello"),
			{0xff, 0x00, 0x10},
			{},
		} {
			got, err := tc.Decode(in)
			if err != nil {
				t.Fatalf("%s: Decode(%q) returned error %v", name, in, err)
			}
			op, ok := got.(Opaque)
			if !ok {
				t.Fatalf("%s: Decode(%q) = %#v (%T), want Opaque", name, in, got, got)
			}
			if !bytes.Equal(op, in) {
				t.Fatalf("%s: Decode(%q) changed bytes to %q", name, in, op)
			}
		}
	}
}

func TestTolerantBinaryCodecsKeepTextOpaque(t *testing.T) {
	for name, inner := range inners() {
		if name == "json" {
			continue
		}
		tc := NewTolerant(inner, 0)
		for _, s := range []string{"0", "42", "true", "hello", "abc123.txid456", `{"a":1}`} {
			enc, err := tc.Encode(s)
			if err != nil {
				t.Fatalf("%s: Encode(%q): %v", name, s, err)
			}
			got := tc.DecodeValue(enc)
			op, ok := got.(Opaque)
			if !ok || string(op) != s {
				t.Fatalf("%s: Decode(Encode(%q)) = %#v (%T), want Opaque", name, s, got, got)
			}
		}
	}
}

func TestTolerantFramesBinaryCodecs(t *testing.T) {
	tc := NewTolerant(Msgpack[any]{}, 0)
	if !tc.Framed {
		t.Fatalf("msgpack should be framed")
	}
	enc, err := tc.Encode(map[string]any{"a": 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := unframe(enc); err != nil {
		t.Fatalf("encoded value is not framed: %x", enc)
	}
	if NewTolerant(nil, 0).Framed || NewTolerant(JSON[any]{}, 8).Framed {
		t.Fatalf("json must stay unframed")
	}
	// a frame with an unknown version is not decoded
	bad := append([]byte{}, enc...)
	bad[4] = 9
	if _, ok := tc.DecodeValue(bad).(Opaque); !ok {
		t.Fatalf("unknown frame version should be opaque")
	}
}

func TestTolerantNil(t *testing.T) {
	got, err := NewTolerant(nil, 0).Decode(nil)
	if err != nil || got != nil {
		t.Fatalf("Decode(nil) = %v, %v", got, err)
	}
}

func TestTolerantRawMessage(t *testing.T) {
	tc := NewTolerant(nil, 0)
	enc, err := tc.Encode(json.RawMessage(`{ "b": 2, "a": 1 }`))
	if err != nil {
		t.Fatal(err)
	}
	if string(enc) != `{"a":1,"b":2}` {
		t.Fatalf("raw message not canonicalized: %s", enc)
	}
}

func TestTolerantLimitFallsBack(t *testing.T) {
	tc := NewTolerant(JSON[any]{}, 4)
	got := tc.DecodeValue([]byte(`{"a":1}`))
	if _, ok := got.(Opaque); !ok {
		t.Fatalf("oversized payload should be opaque, got %T", got)
	}
	got = tc.DecodeValue([]byte(`12`))
	if got != float64(12) {
		t.Fatalf("small payload should decode, got %#v", got)
	}
}

func TestOpaqueJSON(t *testing.T) {
	b, err := json.Marshal(map[string]any{"value": Opaque("raw")})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"value":"raw"}` {
		t.Fatalf("got %s", b)
	}
}

func TestLimitRejectsOversized(t *testing.T) {
	c := Limit[string]{Inner: String{}, MaxDecode: 3}
	if _, err := c.Decode([]byte("abcd")); err == nil {
		t.Fatalf("expected error")
	}
	if v, err := c.Decode([]byte("abc")); err != nil || v != "abc" {
		t.Fatalf("got %q %v", v, err)
	}
}
