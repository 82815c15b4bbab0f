package fetch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoData means the downloaded body is not a {"data": ...} envelope.
var ErrNoData = errors.New("fetch: response has no data field")

// Envelope extracts the payload from a {"data": <payload>} body.
// A JSON string payload is returned as a Go string so it is stored verbatim;
// anything else is returned as json.RawMessage.
func Envelope(body []byte) (any, error) {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoData, err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 {
		return nil, ErrNoData
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return s, nil
	}
	return json.RawMessage(data), nil
}
