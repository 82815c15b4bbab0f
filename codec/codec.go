// Package codec turns cached values into bytes and back.
//
// Structured codecs (JSON, CBOR, Msgpack, Protobuf) are strict. Tolerant wraps
// one of them for the bulk store, where structured values and opaque
// pass-through strings live side by side and reads must never fail.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
