package tls

import "github.com/pkg/errors"

var (
	ErrDuplicateIdentity  = errors.New("psk identity already present")
	ErrOfferedPSKsTooLong = errors.New("offered psks exceed extension size")
	ErrSizeOverflow       = errors.New("size arithmetic overflow")
	ErrOutOfData          = errors.New("no more offered psks")
	ErrBadMessage         = errors.New("malformed pre_shared_key")
	ErrBinderMismatch     = errors.New("psk binder mismatch")
	ErrInternalSize       = errors.New("unexpected secret size")
	ErrNoMatchingPSK      = errors.New("no acceptable psk offered")
	ErrWrongMode          = errors.New("operation not valid in this mode")
	ErrNoHandshake        = errors.New("no client hello in progress")
	ErrPSKExtensionFrozen = errors.New("pre_shared_key already written")
)
