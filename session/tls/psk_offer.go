package tls

import (
	"crypto"
	"math"
	"tls-psk/lib/mem"
	sliceutil "tls-psk/lib/slice"
	"tls-psk/session/tls/common"
	"tls-psk/session/tls/common/session"
	"tls-psk/session/tls/internal/alert"
	"tls-psk/session/tls/internal/handshake/extension"

	"github.com/pkg/errors"
	"golang.org/x/crypto/cryptobyte"
)

// Type and length of the pre_shared_key extension.
const extensionHeaderSize = 4

func addSize(a uint32, more ...uint32) (uint32, error) {
	for _, b := range more {
		if a > math.MaxUint32-b {
			return 0, ErrSizeOverflow
		}
		a += b
	}
	return a, nil
}

// offeredPSKSize is the wire size of one identity and its binder.
func offeredPSKSize(psk *session.PreSharedKey) (uint32, error) {
	return addSize(
		2, // identity length
		4, // obfuscated ticket age
		1, // binder length
		uint32(len(psk.Identity())),
		uint32(psk.DigestSize()),
	)
}

// offeredPSKsSize is the wire size of the pre_shared_key payload for list.
func offeredPSKsSize(list []*session.PreSharedKey) (uint32, error) {
	size := uint32(2 + 2) // identity list length + binder list length
	for _, psk := range list {
		entry, err := offeredPSKSize(psk)
		if err != nil {
			return 0, err
		}
		if size, err = addSize(size, entry); err != nil {
			return 0, err
		}
	}
	return size, nil
}

// skipBinder reports whether psk gets no binder. After a retry only PSKs
// bound to the negotiated suite's hash can be used.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-4.1.4
func (conn *Conn) skipBinder(psk *session.PreSharedKey) bool {
	return conn.retried && psk.Hash() != conn.suite.Hash()
}

// binderPSKs lists the PSKs that get a binder, in offer order.
func (conn *Conn) binderPSKs() []*session.PreSharedKey {
	return sliceutil.Filter(conn.psk.list, func(psk *session.PreSharedKey) bool {
		return !conn.skipBinder(psk)
	})
}

// binderListSize is the number of bytes writeBinderList will produce.
func (conn *Conn) binderListSize() (uint16, error) {
	size := uint32(2)
	for _, psk := range conn.binderPSKs() {
		var err error
		if size, err = addSize(size, 1, uint32(psk.DigestSize())); err != nil {
			return 0, err
		}
	}

	if size > math.MaxUint16 {
		return 0, errors.Wrapf(ErrOfferedPSKsTooLong, "binder list of %d bytes", size)
	}
	return uint16(size), nil
}

// WritePSKExtension appends the pre_shared_key extension to the open
// ClientHello. Binders are left as a zeroed placeholder and filled in by
// FinishClientHello, so no other extension may follow.
func (conn *Conn) WritePSKExtension() error {
	if conn.mode != common.ModeClient {
		return errors.Wrap(ErrWrongMode, "only clients offer psks")
	}
	if !conn.inHello {
		return ErrNoHandshake
	}
	if len(conn.psk.list) == 0 {
		return nil
	}
	if conn.psk.binderListSize > 0 {
		return ErrPSKExtensionFrozen
	}

	binders, err := conn.binderListSize()
	if err != nil {
		return err
	}

	// Every PSK is listed, including those skipped for binders.
	b := cryptobyte.NewBuilder(nil)
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, psk := range conn.psk.list {
			extension.AddIdentity(b, extension.PSKIdentity{Identity: psk.Identity()})
		}
	})
	identities, err := b.Bytes()
	if err != nil {
		return errors.Wrap(err, "encoding identity list")
	}

	conn.hs.Write(extension.TypePreSharedKey.Bytes())
	extLen := conn.hs.ReserveUint16()
	conn.hs.Write(identities)
	conn.hs.Skip(int(binders))
	if err := conn.hs.Commit(extLen); err != nil {
		return errors.Wrap(err, "committing extension length")
	}

	conn.psk.binderListSize = binders
	return nil
}

// finishPSKExtension replaces the binder placeholder with the real binders.
// The message header must already cover the placeholder.
func finishPSKExtension(conn *Conn) error {
	reserved := conn.psk.binderListSize
	if reserved == 0 {
		return nil
	}
	conn.psk.binderListSize = 0

	if err := conn.hs.FinishHeader(); err != nil {
		return errors.Wrap(err, "finishing handshake header")
	}
	if err := conn.hs.WipeN(int(reserved)); err != nil {
		return errors.Wrap(err, "removing binder placeholder")
	}

	partial := conn.hs.Message()

	out := cryptobyte.NewBuilder(make([]byte, 0, reserved))
	if err := writeBinderList(conn, partial, out); err != nil {
		return err
	}

	binders, err := out.Bytes()
	if err != nil {
		return errors.Wrap(err, "encoding binder list")
	}
	if len(binders) != int(reserved) {
		return errors.Wrapf(ErrInternalSize, "binder list is %d bytes, reserved %d", len(binders), reserved)
	}

	conn.hs.Write(binders)
	return nil
}

// writeBinderList appends the length-prefixed binder list for partial to out.
func writeBinderList(conn *Conn, partial []byte, out *cryptobyte.Builder) error {
	// One binder hash per hash algorithm, for this call only.
	hashes := make(map[crypto.Hash][]byte, len(transcriptHashes))

	var err error
	out.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, psk := range conn.binderPSKs() {
			h := psk.Hash()
			bh, ok := hashes[h]
			if !ok {
				if bh, err = binderHash(conn.transcript, h, partial); err != nil {
					return
				}
				hashes[h] = bh
			}

			var binder []byte
			if binder, err = calculateBinder(psk, bh); err != nil {
				return
			}
			b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddBytes(binder)
			})
			mem.Zero(binder)
		}
	})
	if err != nil {
		return errors.Wrap(err, "computing binder")
	}

	conn.logger.Debug("binder list written", "psks", len(conn.psk.list), "hashes", len(hashes))
	return nil
}

// AcceptServerPSK applies the server's pre_shared_key selection.
func (conn *Conn) AcceptServerPSK(sh *extension.PreSharedKeySH) error {
	if conn.mode != common.ModeClient {
		return errors.Wrap(ErrWrongMode, "only clients accept a psk selection")
	}

	idx := int(sh.SelectedIdentity)
	if idx >= len(conn.psk.list) {
		return alert.NewError(errors.Errorf("selected identity %d out of range", idx), alert.IllegalParameter)
	}

	psk := conn.psk.list[idx]
	if !conn.suite.IsZero() && psk.Hash() != conn.suite.Hash() {
		return alert.NewError(errors.New("selected psk does not match cipher suite"), alert.IllegalParameter)
	}

	conn.psk.chosen = psk
	conn.psk.chosenIndex = sh.SelectedIdentity
	return nil
}
