package extension

import (
	"slices"

	"github.com/pkg/errors"
	"golang.org/x/crypto/cryptobyte"
)

type ExtensionType uint16

// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-4.2
const (
	TypeServerName          ExtensionType = 0
	TypeSupportedGroups     ExtensionType = 10
	TypeSignatureAlgos      ExtensionType = 13
	TypeALPN                ExtensionType = 16 // Application Layer Protocol Negotiation.
	TypePreSharedKey        ExtensionType = 41
	TypeEarlyData           ExtensionType = 42
	TypeSupportedVersions   ExtensionType = 43
	TypeCookie              ExtensionType = 44
	TypePskKeyExchangeModes ExtensionType = 45
	TypeKeyShare            ExtensionType = 51
)

func (e ExtensionType) Bytes() []byte {
	return []byte{uint8(e >> 8), uint8(e)}
}

// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-4.2
type Extension interface {
	ExtensionType() ExtensionType
	Data() []byte

	fillFrom(data []byte) error
}

var (
	ErrMalformed           = errors.New("malformed extension")
	ErrDuplicateExtension  = errors.New("extension appears more than once")
	ErrNoMatchingExtension = errors.New("no matching extension")
)

// Marshal encodes ext with its type and length header.
func Marshal(ext Extension) ([]byte, error) {
	b := cryptobyte.NewBuilder(nil)
	b.AddUint16(uint16(ext.ExtensionType()))
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(ext.Data())
	})

	out, err := b.Bytes()
	if err != nil {
		return nil, errors.Wrapf(err, "marshaling extension %d", ext.ExtensionType())
	}
	return out, nil
}

type rawExtension struct {
	t    ExtensionType
	data []byte
}

// Extensions is a parsed extensions block in wire order.
type Extensions struct{ raws []rawExtension }

// Parse reads an extensions block without its outer length prefix.
// Data slices alias raw.
func Parse(raw []byte) (Extensions, error) {
	var exts Extensions

	s := cryptobyte.String(raw)
	for !s.Empty() {
		var (
			t    uint16
			data cryptobyte.String
		)
		if !s.ReadUint16(&t) || !s.ReadUint16LengthPrefixed(&data) {
			return Extensions{}, errors.Wrap(ErrMalformed, "reading extension header")
		}
		if exts.Has(ExtensionType(t)) {
			return Extensions{}, errors.Wrapf(ErrDuplicateExtension, "type %d", t)
		}

		exts.raws = append(exts.raws, rawExtension{t: ExtensionType(t), data: data})
	}

	return exts, nil
}

func (e Extensions) Len() int { return len(e.raws) }

func (e Extensions) Extract(v Extension) error {
	data, ok := e.Raw(v.ExtensionType())
	if !ok {
		return ErrNoMatchingExtension
	}

	if err := v.fillFrom(data); err != nil {
		return errors.Wrapf(err, "reading extension %d", v.ExtensionType())
	}
	return nil
}

// Raw returns the payload of the extension of type t.
func (e Extensions) Raw(t ExtensionType) ([]byte, bool) {
	idx := e.Index(t)
	if idx == -1 {
		return nil, false
	}
	return e.raws[idx].data, true
}

func (e Extensions) Has(t ExtensionType) bool {
	return e.Index(t) != -1
}

func (e Extensions) Index(t ExtensionType) int {
	return slices.IndexFunc(e.raws,
		func(ext rawExtension) bool {
			return ext.t == t
		},
	)
}

// IsLast reports whether t is the final extension in the block.
func (e Extensions) IsLast(t ExtensionType) bool {
	return len(e.raws) > 0 && e.raws[len(e.raws)-1].t == t
}
