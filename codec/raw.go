package codec

import "encoding/json"

// String is a trivial codec for Go string values. Encode converts to []byte,
// and Decode converts back to string. By convention this assumes UTF-8 and
// performs no validation.
type String struct{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }

// Opaque holds stored bytes that did not decode as a structured value.
// The bytes are exactly what the store returned.
type Opaque []byte

func (o Opaque) String() string { return string(o) }

// MarshalJSON renders the bytes as a JSON string rather than base64.
func (o Opaque) MarshalJSON() ([]byte, error) { return json.Marshal(string(o)) }
