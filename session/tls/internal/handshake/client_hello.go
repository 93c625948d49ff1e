package handshake

import (
	"tls-psk/session/tls/common"
	"tls-psk/session/tls/common/ciphersuite"

	"github.com/pkg/errors"
	"golang.org/x/crypto/cryptobyte"
)

// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-4.1.2
type ClientHello struct {
	Version      common.Version // Legacy. Always TLS 1.2
	Random       [32]byte
	SessionID    []byte // Legacy.
	CipherSuites []ciphersuite.ID
}

// BeginClientHello opens a ClientHello and writes every field up to the
// extensions block, whose length field is returned for the caller to commit.
func (b *Buffer) BeginClientHello(ch ClientHello) Reservation {
	b.Begin(TypeClientHello)

	b.WriteUint16(uint16(common.VersionTLS12))
	b.Write(ch.Random[:])

	b.WriteUint8(uint8(len(ch.SessionID)))
	b.Write(ch.SessionID)

	b.WriteUint16(uint16(2 * len(ch.CipherSuites)))
	for _, id := range ch.CipherSuites {
		b.Write(id.Bytes())
	}

	// Only the "null" compression method.
	b.WriteUint8(1)
	b.WriteUint8(0)

	return b.ReserveUint16()
}

var ErrMalformedClientHello = errors.New("malformed client hello")

// ParseClientHello reads a ClientHello body and returns the raw extensions block
// without its length prefix.
func ParseClientHello(body []byte) (ClientHello, []byte, error) {
	var (
		ch          ClientHello
		version     uint16
		random      []byte
		sessionID   cryptobyte.String
		suites      cryptobyte.String
		compression cryptobyte.String
		extensions  cryptobyte.String
	)

	s := cryptobyte.String(body)
	if !s.ReadUint16(&version) ||
		!s.ReadBytes(&random, 32) ||
		!s.ReadUint8LengthPrefixed(&sessionID) ||
		!s.ReadUint16LengthPrefixed(&suites) ||
		!s.ReadUint8LengthPrefixed(&compression) {
		return ClientHello{}, nil, ErrMalformedClientHello
	}

	ch.Version = common.Version(version)
	copy(ch.Random[:], random)
	ch.SessionID = []byte(sessionID)

	for !suites.Empty() {
		var id ciphersuite.ID
		if !suites.CopyBytes(id[:]) {
			return ClientHello{}, nil, errors.Wrap(ErrMalformedClientHello, "odd cipher suites length")
		}
		ch.CipherSuites = append(ch.CipherSuites, id)
	}

	if s.Empty() {
		return ch, nil, nil
	}
	if !s.ReadUint16LengthPrefixed(&extensions) || !s.Empty() {
		return ClientHello{}, nil, errors.Wrap(ErrMalformedClientHello, "extensions")
	}

	return ch, []byte(extensions), nil
}
