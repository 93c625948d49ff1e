// Package hkdf is tls-specific "crypto/hkdf" wrapper.
package hkdf

import (
	"crypto"
	"crypto/hkdf"
	"hash"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/crypto/cryptobyte"
)

var (
	ErrLabelTooLong  = errors.New("label or context too long")
	ErrOutputTooLong = errors.New("output length does not fit hkdf label")
)

// Extract treats an empty secret or salt as a string of Hash.length zeros.
func Extract(h crypto.Hash, secret []byte, salt []byte) ([]byte, error) {
	if len(secret) == 0 || len(salt) == 0 {
		zeros := make([]byte, h.Size())
		if len(secret) == 0 {
			secret = zeros
		}
		if len(salt) == 0 {
			salt = zeros
		}
	}

	prk, err := hkdf.Extract(h.New, secret, salt)
	if err != nil {
		return nil, errors.Wrap(err, "extracting via hkdf")
	}

	return prk, nil
}

const labelPrefix = "tls13 "

// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-7.1
type hkdfLabel struct {
	length  uint16
	label   string
	context []byte
}

func (l hkdfLabel) marshal() (string, error) {
	if len(labelPrefix)+len(l.label) > 255 || len(l.context) > 255 {
		return "", ErrLabelTooLong
	}

	b := cryptobyte.NewBuilder(make([]byte, 0, 2+1+len(labelPrefix)+len(l.label)+1+len(l.context)))
	b.AddUint16(l.length)
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes([]byte(labelPrefix))
		b.AddBytes([]byte(l.label))
	})
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(l.context)
	})

	raw, err := b.Bytes()
	if err != nil {
		return "", errors.Wrap(err, "marshaling hkdf label")
	}
	return string(raw), nil
}

func ExpandLabel(
	h crypto.Hash,
	secret []byte,
	label string,
	context []byte,
	length int,
) ([]byte, error) {
	if length < 0 || length > math.MaxUint16 {
		return nil, errors.Wrapf(ErrOutputTooLong, "%d bytes", length)
	}

	info, err := hkdfLabel{
		length:  uint16(length),
		label:   label,
		context: context,
	}.marshal()
	if err != nil {
		return nil, err
	}

	out, err := hkdf.Expand(h.New, secret, info, length)
	if err != nil {
		return nil, errors.Wrap(err, "expanding via hkdf")
	}

	return out, nil
}

// DeriveSecret uses the current digest of transcript as context.
// A nil transcript stands for the hash of no messages.
func DeriveSecret(
	h crypto.Hash,
	secret []byte,
	label string,
	transcript hash.Hash,
) ([]byte, error) {
	if transcript == nil {
		transcript = h.New()
	}

	return ExpandLabel(h, secret, label, transcript.Sum(nil), h.Size())
}
