package handshake

import (
	"crypto"
	"tls-psk/lib/types"

	"github.com/pkg/errors"
)

type Type uint8

// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-4
const (
	TypeClientHello         Type = 1
	TypeServerHello         Type = 2
	TypeNewSessionTicket    Type = 4
	TypeEndOfEarlyData      Type = 5
	TypeEncryptedExtensions Type = 8
	TypeFinished            Type = 20
	TypeMessageHash         Type = 254
)

const headerLen = 4 // type(1) + length(3)

var (
	ErrNeedMoreBytes            = errors.New("need more bytes")
	ErrNotExpectedHandshakeType = errors.New("handshake type differs from expected")
	ErrTrailingData             = errors.New("data longer than advertised")
)

// ParseHeader splits one handshake message off raw.
func ParseHeader(raw []byte) (t Type, body []byte, rest []byte, err error) {
	if len(raw) < headerLen {
		return 0, nil, nil, ErrNeedMoreBytes
	}

	t = Type(raw[0])
	u24, _ := types.ReadUint24(raw[1:])
	l := u24.Uint32()

	if len(raw[headerLen:]) < int(l) {
		return 0, nil, nil, ErrNeedMoreBytes
	}

	end := headerLen + int(l)
	return t, raw[headerLen:end], raw[end:], nil
}

// ParseMessage is ParseHeader for a buffer holding exactly one message of type want.
func ParseMessage(raw []byte, want Type) ([]byte, error) {
	t, body, rest, err := ParseHeader(raw)
	if err != nil {
		return nil, err
	}
	if t != want {
		return nil, errors.Wrapf(ErrNotExpectedHandshakeType, "got %d, want %d", t, want)
	}
	if len(rest) > 0 {
		return nil, ErrTrailingData
	}

	return body, nil
}

func header(t Type, l types.Uint24) []byte {
	return append([]byte{byte(t)}, l.Bytes()...)
}

// NewMessageHash builds the synthetic message that replaces ClientHello1
// in the transcript after a HelloRetryRequest.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-4.4.1
func NewMessageHash(digest []byte) []byte {
	// Digests are at most 64 bytes.
	l, _ := types.NewUint24(uint32(len(digest)))
	return append(header(TypeMessageHash, l), digest...)
}

func MessageHash(h crypto.Hash, clientHello []byte) []byte {
	d := h.New()
	d.Write(clientHello)
	return NewMessageHash(d.Sum(nil))
}
