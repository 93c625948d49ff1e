package session

import (
	"tls-psk/lib/mem"
	"tls-psk/session/tls/common"
	"tls-psk/session/tls/common/ciphersuite"

	"github.com/pkg/errors"
)

// EarlyDataConfig describes the 0-RTT parameters bound to a PSK.
// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-4.2.10
type EarlyDataConfig struct {
	MaxEarlyDataSize uint32
	ProtocolVersion  common.Version
	CipherSuite      ciphersuite.ID

	applicationProtocol mem.Blob
	context             mem.Blob
}

func (c *EarlyDataConfig) ApplicationProtocol() []byte { return c.applicationProtocol.Bytes() }
func (c *EarlyDataConfig) Context() []byte             { return c.context.Bytes() }

// Enabled reports whether the PSK may be used for early data.
func (c *EarlyDataConfig) Enabled() bool { return c.MaxEarlyDataSize > 0 }

// ConfigureEarlyData enables early data for psk with the given limit.
// The suite must be a registered TLS 1.3 suite whose hash matches the PSK.
func (psk *PreSharedKey) ConfigureEarlyData(maxEarlyDataSize uint32, suite ciphersuite.ID) error {
	if psk == nil {
		return errors.Wrap(ErrInvalidArgument, "nil psk")
	}

	s, ok := ciphersuite.Get(suite)
	if !ok {
		return errors.Wrapf(ErrInvalidArgument, "unknown cipher suite %x", suite.Bytes())
	}
	if s.Hash() != psk.hash {
		return errors.Wrap(ErrInvalidArgument, "cipher suite hash does not match psk hmac")
	}

	psk.earlyData.MaxEarlyDataSize = maxEarlyDataSize
	psk.earlyData.ProtocolVersion = common.VersionTLS13
	psk.earlyData.CipherSuite = suite

	return nil
}

// SetApplicationProtocol records the ALPN value early data is sent under.
// Protocol names are at most 255 bytes on the wire.
func (psk *PreSharedKey) SetApplicationProtocol(proto []byte) error {
	if psk == nil {
		return errors.Wrap(ErrInvalidArgument, "nil psk")
	}
	if len(proto) > 255 {
		return errors.Wrap(ErrInvalidArgument, "application protocol too long")
	}

	psk.earlyData.applicationProtocol.Set(proto)
	return nil
}

func (psk *PreSharedKey) SetEarlyDataContext(ctx []byte) error {
	if psk == nil {
		return errors.Wrap(ErrInvalidArgument, "nil psk")
	}
	if len(ctx) > 0xffff {
		return errors.Wrap(ErrInvalidArgument, "early data context too long")
	}

	psk.earlyData.context.Set(ctx)
	return nil
}

func (c *EarlyDataConfig) clone() EarlyDataConfig {
	return EarlyDataConfig{
		MaxEarlyDataSize:    c.MaxEarlyDataSize,
		ProtocolVersion:     c.ProtocolVersion,
		CipherSuite:         c.CipherSuite,
		applicationProtocol: c.applicationProtocol.Clone(),
		context:             c.context.Clone(),
	}
}

func (c *EarlyDataConfig) wipe() {
	c.applicationProtocol.Free()
	c.context.Free()
	*c = EarlyDataConfig{}
}
