package types

import (
	"strconv"

	"github.com/pkg/errors"
)

// Uint24 is a big-endian 24-bit unsigned integer, the width of TLS
// handshake message lengths.
type Uint24 [3]uint8

const MaxUint24 = 1<<24 - 1

var ErrUint24Overflow = errors.New("value does not fit in 24 bits")

func NewUint24(u32 uint32) (Uint24, error) {
	if u32 > MaxUint24 {
		return Uint24{}, errors.Wrapf(ErrUint24Overflow, "%d", u32)
	}
	return Uint24{uint8(u32 >> 16), uint8(u32 >> 8), uint8(u32)}, nil
}

// ReadUint24 decodes the first three bytes of b.
func ReadUint24(b []byte) (Uint24, bool) {
	if len(b) < 3 {
		return Uint24{}, false
	}
	return Uint24{b[0], b[1], b[2]}, true
}

func (u24 Uint24) Uint32() uint32 {
	return uint32(u24[0])<<16 | uint32(u24[1])<<8 | uint32(u24[2])
}

func (u24 Uint24) Bytes() []byte { return u24[:] }

func (u24 Uint24) String() string {
	return strconv.FormatUint(uint64(u24.Uint32()), 10)
}
