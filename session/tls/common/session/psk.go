package session

import (
	"crypto"
	"math"
	"tls-psk/lib/mem"
	"tls-psk/session/tls/internal/util/hkdf"

	"github.com/pkg/errors"
)

// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-4.2.9
type PSKMode uint8

const (
	PSKModePSK_KE     PSKMode = 0
	PSKModePSK_DHE_KE PSKMode = 1
)

type PSKType string

const (
	PSKTypeResumption PSKType = "res"
	PSKTypeExternal   PSKType = "ext"
)

// BinderLabel is the key schedule label of the binder key.
// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-7.1
func (t PSKType) BinderLabel() string {
	return string(t) + " binder"
}

var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInvalidHMACAlgorithm = errors.New("invalid hmac algorithm")
)

// PreSharedKey holds one credential. Identity, secret and early secret are
// owned by the key; use Clone to copy and Wipe to release them.
type PreSharedKey struct {
	Type PSKType

	identity    mem.Blob
	secret      mem.Blob
	earlySecret mem.Blob

	hash crypto.Hash

	earlyData EarlyDataConfig
}

func NewExternalPSK() *PreSharedKey {
	psk := new(PreSharedKey)
	_ = psk.Init(PSKTypeExternal)
	return psk
}

// Init resets psk to an empty key of type t using HMAC-SHA256.
// Buffers already held are zeroized.
func (psk *PreSharedKey) Init(t PSKType) error {
	if psk == nil {
		return errors.Wrap(ErrInvalidArgument, "nil psk")
	}

	Wipe(psk)
	*psk = PreSharedKey{
		Type: t,
		hash: crypto.SHA256,
	}

	return nil
}

func (psk *PreSharedKey) SetIdentity(identity []byte) error {
	if psk == nil {
		return errors.Wrap(ErrInvalidArgument, "nil psk")
	}
	if len(identity) == 0 {
		return errors.Wrap(ErrInvalidArgument, "empty identity")
	}
	// Identity length is a uint16 on the wire.
	if len(identity) > math.MaxUint16 {
		return errors.Wrap(ErrInvalidArgument, "identity too long")
	}

	psk.identity.Set(identity)
	return nil
}

func (psk *PreSharedKey) SetSecret(secret []byte) error {
	if psk == nil {
		return errors.Wrap(ErrInvalidArgument, "nil psk")
	}
	if len(secret) == 0 {
		return errors.Wrap(ErrInvalidArgument, "empty secret")
	}

	psk.secret.Set(secret)
	psk.earlySecret.Free()
	return nil
}

func (psk *PreSharedKey) SetHMAC(alg PSKHMAC) error {
	if psk == nil {
		return errors.Wrap(ErrInvalidArgument, "nil psk")
	}

	h, err := alg.hash()
	if err != nil {
		return err
	}

	psk.hash = h
	psk.earlySecret.Free()
	return nil
}

func (psk *PreSharedKey) Identity() []byte    { return psk.identity.Bytes() }
func (psk *PreSharedKey) Secret() []byte      { return psk.secret.Bytes() }
func (psk *PreSharedKey) EarlySecret() []byte { return psk.earlySecret.Bytes() }
func (psk *PreSharedKey) Hash() crypto.Hash   { return psk.hash }

// DigestSize is the binder and early secret length.
func (psk *PreSharedKey) DigestSize() int { return psk.hash.Size() }

func (psk *PreSharedKey) EarlyData() *EarlyDataConfig { return &psk.earlyData }

// DeriveEarlySecret computes HKDF-Extract(0, secret) into the key's early
// secret buffer. The buffer is allocated once and reused by later calls,
// so the secret stays available to the rest of the key schedule.
// SetSecret and SetHMAC discard it.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-7.1
func (psk *PreSharedKey) DeriveEarlySecret() ([]byte, error) {
	if psk.secret.IsEmpty() {
		return nil, errors.Wrap(ErrInvalidArgument, "psk secret is not set")
	}

	early, err := hkdf.Extract(psk.hash, psk.secret.Bytes(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "extracting early secret")
	}
	defer mem.Zero(early)

	psk.earlySecret.Realloc(psk.hash.Size())
	if copy(psk.earlySecret.Bytes(), early) != psk.hash.Size() {
		return nil, errors.New("early secret size mismatch")
	}

	return psk.earlySecret.Bytes(), nil
}

// Clone deep-copies src into dst. A nil src is a no-op.
// dst's previous buffers are zeroized and dst never aliases src.
func Clone(dst, src *PreSharedKey) error {
	if src == nil {
		return nil
	}
	if dst == nil {
		return errors.Wrap(ErrInvalidArgument, "nil destination")
	}

	Wipe(dst)
	dst.Type = src.Type
	dst.hash = src.hash

	if err := dst.SetIdentity(src.Identity()); err != nil {
		Wipe(dst)
		return errors.Wrap(err, "copying identity")
	}
	if err := dst.SetSecret(src.Secret()); err != nil {
		Wipe(dst)
		return errors.Wrap(err, "copying secret")
	}
	dst.earlySecret = src.earlySecret.Clone()
	dst.earlyData = src.earlyData.clone()

	return nil
}

// Wipe zeroizes and releases every buffer owned by psk. Nil is a no-op.
func Wipe(psk *PreSharedKey) {
	if psk == nil {
		return
	}

	psk.earlySecret.Free()
	psk.identity.Free()
	psk.secret.Free()
	psk.earlyData.wipe()
}
