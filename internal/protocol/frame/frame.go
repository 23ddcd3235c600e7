// Package frame owns the byte-framing primitive: a 4-byte little-endian
// unsigned length prefix followed by exactly that many bytes of UTF-8 JSON.
package frame

import (
	"encoding/binary"
	"errors"
	"io"
)

const LengthPrefixLen = 4

var (
	ErrShortLength     = errors.New("frame: short length prefix")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrTruncated       = errors.New("frame: truncated payload")
)

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 64 * 1024 * 1024,
	}
}

// Read reads one complete frame payload. It blocks until the declared byte
// count is available or the stream closes; a partial payload is never
// returned. An EOF on the length boundary surfaces as io.EOF so callers can
// distinguish a clean close from a mid-frame break.
func Read(r io.Reader, limits Limits) ([]byte, error) {
	var prefix [LengthPrefixLen]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortLength
		}
		return nil, err
	}

	length := binary.LittleEndian.Uint32(prefix[:])
	if length > limits.MaxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrTruncated
			}
			return nil, err
		}
	}
	return payload, nil
}

// Write writes one length-prefixed frame.
func Write(w io.Writer, payload []byte, limits Limits) error {
	if uint64(len(payload)) > uint64(limits.MaxPayloadBytes) {
		return ErrPayloadTooLarge
	}
	var prefix [LengthPrefixLen]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}
