package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxPayloadSize is the largest payload the 2-byte length prefix can
// describe.
const MaxPayloadSize = 65535

// ErrPayloadTooLarge reports a message whose serialized payload cannot
// fit behind the length prefix. Nothing is written when it is returned.
var ErrPayloadTooLarge = errors.New("payload exceeds maximum frame size")

// FramingError reports a stream that ended or failed mid-frame.
type FramingError struct {
	err error
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("framing: %s", e.err)
}

func (e *FramingError) Unwrap() error {
	return e.err
}

// Encode writes one message as a length-prefixed frame: a little-endian
// 2-byte payload length followed by the tagged payload itself.
func Encode(w io.Writer, msg Message) error {
	payload, err := Marshal(msg)
	if err != nil {
		return err
	}
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	frame := make([]byte, 2+len(payload))
	binary.LittleEndian.PutUint16(frame, uint16(len(payload)))
	copy(frame[2:], payload)

	if _, err := w.Write(frame); err != nil {
		return &FramingError{err: err}
	}
	return nil
}

// Decode blocks until one full frame has arrived and returns the decoded
// message. A stream that closes mid-frame yields a *FramingError.
func Decode(r io.Reader) (Message, error) {
	var prefix [2]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, &FramingError{err: err}
	}

	payload := make([]byte, binary.LittleEndian.Uint16(prefix[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, &FramingError{err: err}
	}

	return Unmarshal(payload)
}
