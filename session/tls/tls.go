// Package tls implements the pre-shared key part of a TLS 1.3 handshake:
// the per-connection PSK list, binder computation and verification, and the
// pre_shared_key extension on both ends.
//
// NOTE: It only supports TLS 1.3
//
// Reference:
// - https://datatracker.ietf.org/doc/html/rfc8446#section-4.2.11
// - https://datatracker.ietf.org/doc/html/rfc8446#section-7.1
package tls

import (
	"crypto/rand"
	"io"
	"log/slog"
	"time"
	"tls-psk/session/tls/common"
	"tls-psk/session/tls/common/ciphersuite"

	"github.com/benbjohnson/clock"
)

// Unimplemented:
// - Ticket-derived (resumption) PSK secrets.
// - Ticket age obfuscation. Ages are always sent as 0 and ignored on receipt.
// - Key share. Only psk_ke is offered.

// SelectPSKFunc picks one of the identities a client offered.
// Returning nil means none is acceptable.
type SelectPSKFunc func(conn *Conn, offered *OfferedPSKList) (*OfferedPSK, error)

type Options struct {
	Mode common.Mode

	// Defaults to ciphersuite.Default().
	CipherSuites []ciphersuite.Suite

	// Nil discards logs.
	Logger *slog.Logger
	Clock  clock.Clock
	Random io.Reader

	// Minimum wall time of a binder verification, also applied when no
	// offered identity is known. Zero disables padding, and then an unknown
	// identity is rejected faster than a bad binder.
	BinderTimingFloor time.Duration

	// Server only. Defaults to SelectFirstPSK.
	SelectPSK SelectPSKFunc
}

func (o Options) withDefaults() Options {
	if len(o.CipherSuites) == 0 {
		o.CipherSuites = ciphersuite.Default()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Random == nil {
		o.Random = rand.Reader
	}
	if o.SelectPSK == nil {
		o.SelectPSK = SelectFirstPSK
	}
	return o
}
