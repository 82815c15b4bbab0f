package codec

import (
	"bytes"
	"errors"
)

// Binary codecs (CBOR, msgpack, protobuf) accept almost any byte string, so
// their output is framed to stay distinguishable from pass-through text:
//
//	magic(4) | ver(1) | payload
//
// The first magic byte, 0xC1, never starts valid UTF-8, so no text value
// can be mistaken for a frame.
const (
	frameVersion byte = 1
	frameHdr          = 4 + 1
)

var (
	errNotFramed = errors.New("codec: not a framed value")
	frameMagic   = [...]byte{0xC1, 'L', 'C', 'V'}
)

func frame(payload []byte) []byte {
	out := make([]byte, 0, frameHdr+len(payload))
	out = append(out, frameMagic[:]...)
	out = append(out, frameVersion)
	return append(out, payload...)
}

func unframe(b []byte) ([]byte, error) {
	if len(b) < frameHdr || !bytes.Equal(b[:4], frameMagic[:]) || b[4] != frameVersion {
		return nil, errNotFramed
	}
	return b[frameHdr:], nil
}
