package extension

import (
	"tls-psk/session/tls/common"
	"tls-psk/session/tls/common/session"

	"github.com/pkg/errors"
	"golang.org/x/crypto/cryptobyte"
)

// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-4.2.1
type SupportedVersionsCH struct{ Versions []common.Version }

var _ Extension = (*SupportedVersionsCH)(nil)

func (s *SupportedVersionsCH) ExtensionType() ExtensionType { return TypeSupportedVersions }

func (s *SupportedVersionsCH) Data() []byte {
	out := []byte{uint8(2 * len(s.Versions))}
	for _, v := range s.Versions {
		out = append(out, v.Bytes()...)
	}
	return out
}

func (s *SupportedVersionsCH) fillFrom(data []byte) error {
	var list cryptobyte.String

	in := cryptobyte.String(data)
	if !in.ReadUint8LengthPrefixed(&list) || !in.Empty() || len(list)%2 != 0 {
		return ErrMalformed
	}

	s.Versions = s.Versions[:0]
	for !list.Empty() {
		var v uint16
		list.ReadUint16(&v)
		s.Versions = append(s.Versions, common.Version(v))
	}
	return nil
}

// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-4.2.9
type PskKeyExchangeModes struct {
	KeModes []session.PSKMode
}

var _ Extension = (*PskKeyExchangeModes)(nil)

func (k *PskKeyExchangeModes) ExtensionType() ExtensionType { return TypePskKeyExchangeModes }

func (k *PskKeyExchangeModes) Data() []byte {
	out := []byte{uint8(len(k.KeModes))}
	for _, m := range k.KeModes {
		out = append(out, uint8(m))
	}
	return out
}

func (k *PskKeyExchangeModes) fillFrom(data []byte) error {
	var modes cryptobyte.String

	in := cryptobyte.String(data)
	if !in.ReadUint8LengthPrefixed(&modes) || !in.Empty() || modes.Empty() {
		return ErrMalformed
	}

	k.KeModes = k.KeModes[:0]
	for _, m := range modes {
		k.KeModes = append(k.KeModes, session.PSKMode(m))
	}
	return nil
}

// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-4.2.10
type EarlyDataCH struct{}

var _ Extension = (*EarlyDataCH)(nil)

func (e *EarlyDataCH) ExtensionType() ExtensionType { return TypeEarlyData }
func (e *EarlyDataCH) Data() []byte                 { return nil }
func (e *EarlyDataCH) fillFrom(data []byte) error {
	if len(data) != 0 {
		return ErrMalformed
	}
	return nil
}

// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-4.2.11
type PreSharedKeySH struct {
	SelectedIdentity uint16
}

var _ Extension = (*PreSharedKeySH)(nil)

func (p *PreSharedKeySH) ExtensionType() ExtensionType { return TypePreSharedKey }

func (p *PreSharedKeySH) Data() []byte {
	return []byte{uint8(p.SelectedIdentity >> 8), uint8(p.SelectedIdentity)}
}

func (p *PreSharedKeySH) fillFrom(data []byte) error {
	in := cryptobyte.String(data)
	if !in.ReadUint16(&p.SelectedIdentity) || !in.Empty() {
		return errors.Wrap(ErrMalformed, "selected identity")
	}
	return nil
}

type PSKIdentity struct {
	Identity            []byte
	ObfuscatedTicketAge uint32
}

type PSKBinderEntry []byte

type PreSharedKeyCH struct {
	Identities []PSKIdentity
	Binders    []PSKBinderEntry
}

var _ Extension = (*PreSharedKeyCH)(nil)

func (p *PreSharedKeyCH) ExtensionType() ExtensionType { return TypePreSharedKey }

// Data ignores encoding errors; use Marshal to see them.
func (p *PreSharedKeyCH) Data() []byte {
	b := cryptobyte.NewBuilder(nil)
	p.marshal(b)
	out, _ := b.Bytes()
	return out
}

func (p *PreSharedKeyCH) marshal(b *cryptobyte.Builder) {
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, id := range p.Identities {
			AddIdentity(b, id)
		}
	})
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, binder := range p.Binders {
			b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddBytes(binder)
			})
		}
	})
}

// AddIdentity writes one PskIdentity entry.
func AddIdentity(b *cryptobyte.Builder, id PSKIdentity) {
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(id.Identity)
	})
	b.AddUint32(id.ObfuscatedTicketAge)
}

func (p *PreSharedKeyCH) fillFrom(data []byte) error {
	identityList, binderList, err := SplitPreSharedKeyCH(data)
	if err != nil {
		return err
	}

	p.Identities = p.Identities[:0]
	ids := cryptobyte.String(identityList)
	for !ids.Empty() {
		var (
			id       PSKIdentity
			identity cryptobyte.String
		)
		if !ids.ReadUint16LengthPrefixed(&identity) || !ids.ReadUint32(&id.ObfuscatedTicketAge) {
			return errors.Wrap(ErrMalformed, "reading identity")
		}
		id.Identity = identity
		p.Identities = append(p.Identities, id)
	}

	p.Binders = p.Binders[:0]
	binders := cryptobyte.String(binderList)
	for !binders.Empty() {
		var binder cryptobyte.String
		if !binders.ReadUint8LengthPrefixed(&binder) {
			return errors.Wrap(ErrMalformed, "reading binder")
		}
		p.Binders = append(p.Binders, PSKBinderEntry(binder))
	}

	return nil
}

// SplitPreSharedKeyCH returns the identity and binder lists of a ClientHello
// pre_shared_key payload, each without its length prefix. Both alias data.
func SplitPreSharedKeyCH(data []byte) (identityList, binderList []byte, err error) {
	var ids, binders cryptobyte.String

	in := cryptobyte.String(data)
	if !in.ReadUint16LengthPrefixed(&ids) {
		return nil, nil, errors.Wrap(ErrMalformed, "reading identity list")
	}
	if !in.ReadUint16LengthPrefixed(&binders) || !in.Empty() {
		return nil, nil, errors.Wrap(ErrMalformed, "reading binder list")
	}
	if ids.Empty() || binders.Empty() {
		return nil, nil, errors.Wrap(ErrMalformed, "empty list")
	}

	return ids, binders, nil
}

// BinderAt returns the i-th binder of a binder list.
func BinderAt(binderList []byte, i int) ([]byte, error) {
	s := cryptobyte.String(binderList)

	var binder cryptobyte.String
	for n := 0; n <= i; n++ {
		if !s.ReadUint8LengthPrefixed(&binder) {
			return nil, errors.Wrapf(ErrMalformed, "no binder at index %d", i)
		}
	}
	return binder, nil
}
