package handshake

import (
	"math"
	"tls-psk/lib/types"

	"github.com/pkg/errors"
)

var (
	ErrNoMessage      = errors.New("no handshake message in progress")
	ErrLengthOverflow = errors.New("length does not fit its field")
	ErrShortBuffer    = errors.New("buffer shorter than requested")
)

// Buffer assembles one outbound handshake message in place. Length fields
// are reserved first and patched once their contents are written.
type Buffer struct {
	data []byte

	start int // Offset of the open message header, -1 when none.
}

func NewBuffer() *Buffer {
	return &Buffer{start: -1}
}

// Begin opens a message of type t with a zero length field.
func (b *Buffer) Begin(t Type) {
	b.start = len(b.data)
	b.data = append(b.data, header(t, types.Uint24{})...)
}

func (b *Buffer) Write(p []byte) { b.data = append(b.data, p...) }

func (b *Buffer) WriteUint8(v uint8) { b.data = append(b.data, v) }

func (b *Buffer) WriteUint16(v uint16) {
	b.data = append(b.data, uint8(v>>8), uint8(v))
}

func (b *Buffer) WriteUint32(v uint32) {
	b.data = append(b.data, uint8(v>>24), uint8(v>>16), uint8(v>>8), uint8(v))
}

// Reservation marks a uint16 length field written ahead of its contents.
type Reservation struct {
	at int
}

func (b *Buffer) ReserveUint16() Reservation {
	r := Reservation{at: len(b.data)}
	b.data = append(b.data, 0, 0)
	return r
}

// Commit writes the number of bytes written since r into r's field.
func (b *Buffer) Commit(r Reservation) error {
	if r.at+2 > len(b.data) {
		return errors.Wrap(ErrShortBuffer, "reservation beyond buffer")
	}

	n := len(b.data) - r.at - 2
	if n > math.MaxUint16 {
		return errors.Wrapf(ErrLengthOverflow, "%d bytes", n)
	}

	b.data[r.at] = uint8(n >> 8)
	b.data[r.at+1] = uint8(n)
	return nil
}

// Skip appends n zero bytes. Content written later is expected to replace them.
func (b *Buffer) Skip(n int) {
	b.data = append(b.data, make([]byte, n)...)
}

// FinishHeader sets the open message's length to everything written after its header.
func (b *Buffer) FinishHeader() error {
	if b.start < 0 {
		return ErrNoMessage
	}

	n := len(b.data) - b.start - headerLen
	l, err := types.NewUint24(uint32(n))
	if err != nil {
		return errors.Wrap(ErrLengthOverflow, err.Error())
	}

	copy(b.data[b.start+1:], l.Bytes())
	return nil
}

// WipeN zeroizes and drops the last n bytes.
func (b *Buffer) WipeN(n int) error {
	if n < 0 || n > len(b.data) {
		return errors.Wrapf(ErrShortBuffer, "wiping %d of %d bytes", n, len(b.data))
	}

	end := len(b.data) - n
	clear(b.data[end:])
	b.data = b.data[:end]
	return nil
}

func (b *Buffer) Bytes() []byte { return b.data }
func (b *Buffer) Len() int      { return len(b.data) }

// Message returns the open message, header included.
func (b *Buffer) Message() []byte {
	if b.start < 0 {
		return nil
	}
	return b.data[b.start:]
}

// Wipe zeroizes the full capacity and empties the buffer.
func (b *Buffer) Wipe() {
	clear(b.data[:cap(b.data)])
	b.data = b.data[:0]
	b.start = -1
}
