package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderLen is the size of the big-endian length prefix.
const HeaderLen = 4

var (
	ErrShortHeader     = errors.New("frame: short length header")
	ErrEmptyMessage    = errors.New("frame: zero-length message")
	ErrMessageTooLarge = errors.New("frame: message too large")
	ErrTruncated       = errors.New("frame: truncated message body")
)

// Limits constrains decode/encode memory use.
type Limits struct {
	MaxMessageBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxMessageBytes: 16 * 1024 * 1024,
	}
}

// WithDefaults fills zero-valued fields from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	if l.MaxMessageBytes == 0 {
		l.MaxMessageBytes = DefaultLimits().MaxMessageBytes
	}
	return l
}

// ReadMessage reads one length-prefixed message body. The declared length is
// validated before any body buffer is allocated.
func ReadMessage(r io.Reader, limits Limits) ([]byte, error) {
	limits = limits.WithDefaults()

	var head [HeaderLen]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, ErrShortHeader
		}
		return nil, err
	}

	size := binary.BigEndian.Uint32(head[:])
	if err := CheckSize(size, limits); err != nil {
		return nil, err
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, ErrTruncated
		}
		return nil, err
	}
	return body, nil
}

// WriteMessage writes the length prefix and body in a single Write call.
func WriteMessage(w io.Writer, body []byte, limits Limits) error {
	limits = limits.WithDefaults()
	if uint64(len(body)) > uint64(limits.MaxMessageBytes) {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(body), limits.MaxMessageBytes)
	}
	if err := CheckSize(uint32(len(body)), limits); err != nil {
		return err
	}

	buf := make([]byte, HeaderLen+len(body))
	binary.BigEndian.PutUint32(buf[:HeaderLen], uint32(len(body)))
	copy(buf[HeaderLen:], body)
	_, err := w.Write(buf)
	return err
}

// CheckSize reports whether a declared body length is acceptable.
func CheckSize(size uint32, limits Limits) error {
	limits = limits.WithDefaults()
	if size == 0 {
		return ErrEmptyMessage
	}
	if size > limits.MaxMessageBytes {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, size, limits.MaxMessageBytes)
	}
	return nil
}

// EncodeHeader returns the 4-byte prefix for a body of the given size.
func EncodeHeader(size uint32) []byte {
	buf := make([]byte, HeaderLen)
	binary.BigEndian.PutUint32(buf, size)
	return buf
}
