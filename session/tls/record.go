package tls

import (
	"bytes"
	"tls-psk/session/tls/common"

	"github.com/pkg/errors"
	"golang.org/x/crypto/cryptobyte"
)

// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-5.1
type contentType uint8

const (
	typeHandshake       contentType = 22
	typeApplicationData contentType = 23
)

const (
	recordHeaderLen = 5
	maxRecordLen    = 1 << 14
	// Plaintext limit plus content type and the largest AEAD expansion.
	maxCiphertextLen = maxRecordLen + 256
)

// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-5.2
type tlsInnerPlainText struct {
	content     []byte
	contentType contentType
	zeros       []uint8 // padding.
}

func (t tlsInnerPlainText) bytes() []byte {
	b := make([]byte, 0, len(t.content)+1+len(t.zeros))
	b = append(b, t.content...)
	b = append(b, byte(t.contentType))
	return append(b, t.zeros...)
}

// This discards padding.
func (t *tlsInnerPlainText) fillFrom(b []byte) error {
	b = bytes.TrimRight(b, "\x00")
	if len(b) == 0 {
		return errors.New("no content type")
	}

	t.content = b[:len(b)-1]
	t.contentType = contentType(b[len(b)-1])
	t.zeros = nil

	return nil
}

// recordHeader is the header of a protected record, also its additional data.
func recordHeader(length int) []byte {
	return []byte{
		byte(typeApplicationData),
		byte(common.VersionTLS12 >> 8), byte(common.VersionTLS12),
		byte(length >> 8), byte(length),
	}
}

var errMalformedRecord = errors.New("malformed record")

// splitRecord returns the header and encrypted body of one protected record.
func splitRecord(record []byte) (header, body []byte, err error) {
	var (
		typ     uint8
		version uint16
		payload cryptobyte.String
	)

	s := cryptobyte.String(record)
	if !s.ReadUint8(&typ) || !s.ReadUint16(&version) || !s.ReadUint16LengthPrefixed(&payload) || !s.Empty() {
		return nil, nil, errMalformedRecord
	}
	if contentType(typ) != typeApplicationData {
		return nil, nil, errors.Wrapf(errMalformedRecord, "content type %d", typ)
	}
	if len(payload) > maxCiphertextLen {
		return nil, nil, errors.Wrap(errMalformedRecord, "record too long")
	}

	return record[:recordHeaderLen], payload, nil
}
