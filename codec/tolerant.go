package codec

import "encoding/json"

// Tolerant is the value codec used for the bulk store.
//
// Encode passes strings (and Opaque/[]byte) through untouched so a value that
// is already text is never encoded twice; everything else goes through Inner.
// Decode tries Inner and falls back to the original bytes as Opaque. It never
// returns an error. A nil input decodes to nil.
//
// With Framed set, Inner's output is stored behind a small header and only
// framed bytes are handed to Inner on Decode; everything else is Opaque.
// JSON needs no frame: pass-through text that parses as JSON decodes as JSON.
type Tolerant struct {
	Inner  Codec[any]
	Framed bool
}

var _ Codec[any] = Tolerant{}

// NewTolerant wraps inner (JSON when nil). maxDecode > 0 skips structured
// decoding for larger payloads, which are then returned as Opaque.
// Any inner codec other than JSON is framed.
func NewTolerant(inner Codec[any], maxDecode int) Tolerant {
	if inner == nil {
		inner = JSON[any]{}
	}
	_, isJSON := inner.(JSON[any])
	if maxDecode > 0 {
		inner = Limit[any]{Inner: inner, MaxDecode: maxDecode}
	}
	return Tolerant{Inner: inner, Framed: !isJSON}
}

func (t Tolerant) inner() Codec[any] {
	if t.Inner == nil {
		return JSON[any]{}
	}
	return t.Inner
}

func (t Tolerant) Encode(v any) ([]byte, error) {
	switch vv := v.(type) {
	case string:
		return []byte(vv), nil
	case Opaque:
		return []byte(vv), nil
	case []byte:
		return vv, nil
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(vv, &decoded); err != nil {
			return nil, err
		}
		return t.encode(decoded)
	}
	return t.encode(v)
}

func (t Tolerant) encode(v any) ([]byte, error) {
	b, err := t.inner().Encode(v)
	if err != nil || !t.Framed {
		return b, err
	}
	return frame(b), nil
}

func (t Tolerant) Decode(b []byte) (any, error) {
	if b == nil {
		return nil, nil
	}
	payload := b
	if t.Framed {
		p, err := unframe(b)
		if err != nil {
			return Opaque(b), nil
		}
		payload = p
	}
	v, err := t.inner().Decode(payload)
	if err != nil {
		return Opaque(b), nil
	}
	return v, nil
}

// DecodeValue is Decode without the always-nil error.
func (t Tolerant) DecodeValue(b []byte) any {
	v, _ := t.Decode(b)
	return v
}
