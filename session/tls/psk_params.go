package tls

import (
	"bytes"
	"math"
	"tls-psk/session/tls/common"
	"tls-psk/session/tls/common/session"

	"github.com/pkg/errors"
)

type pskParams struct {
	list []*session.PreSharedKey

	// Bytes reserved for the binder list in the open ClientHello.
	binderListSize uint16

	chosen      *session.PreSharedKey
	chosenIndex uint16
}

func newPSKParams() pskParams {
	return pskParams{}
}

func (p *pskParams) first() *session.PreSharedKey {
	if len(p.list) == 0 {
		return nil
	}
	return p.list[0]
}

func (p *pskParams) find(identity []byte) *session.PreSharedKey {
	for _, psk := range p.list {
		// Identities are not secret.
		if bytes.Equal(psk.Identity(), identity) {
			return psk
		}
	}
	return nil
}

func (p *pskParams) wipeAll() {
	for _, psk := range p.list {
		session.Wipe(psk)
	}
	clear(p.list)
	*p = newPSKParams()
}

// AppendPSK stores a deep copy of psk at the end of the offer list.
// The caller keeps ownership of psk.
func (conn *Conn) AppendPSK(psk *session.PreSharedKey) error {
	if psk == nil {
		return errors.Wrap(session.ErrInvalidArgument, "nil psk")
	}

	// The open ClientHello has room for the binders already listed.
	if conn.psk.binderListSize > 0 {
		return errors.Wrap(ErrPSKExtensionFrozen, "appending psk")
	}

	if conn.psk.find(psk.Identity()) != nil {
		return ErrDuplicateIdentity
	}

	if conn.mode == common.ModeClient {
		total, err := offeredPSKsSize(conn.psk.list)
		if err != nil {
			return err
		}
		size, err := offeredPSKSize(psk)
		if err != nil {
			return err
		}
		if total, err = addSize(total, size, extensionHeaderSize); err != nil {
			return err
		}
		if total > math.MaxUint16 {
			return errors.Wrapf(ErrOfferedPSKsTooLong, "%d bytes", total)
		}
	}

	entry := new(session.PreSharedKey)
	if err := session.Clone(entry, psk); err != nil {
		session.Wipe(entry)
		return errors.Wrap(err, "copying psk")
	}

	conn.psk.list = append(conn.psk.list, entry)

	conn.logger.Debug("psk appended", "count", len(conn.psk.list), "hash", psk.Hash().String())
	return nil
}

// WipePSKs zeroizes and drops every stored PSK.
func (conn *Conn) WipePSKs() {
	conn.psk.wipeAll()
}

func (conn *Conn) PSKCount() int { return len(conn.psk.list) }

// PSK returns the i-th stored key, or nil when out of range.
// The key stays owned by the connection.
func (conn *Conn) PSK(i int) *session.PreSharedKey {
	if i < 0 || i >= len(conn.psk.list) {
		return nil
	}
	return conn.psk.list[i]
}

// PSKByIdentity returns the stored key with identity, or nil.
func (conn *Conn) PSKByIdentity(identity []byte) *session.PreSharedKey {
	return conn.psk.find(identity)
}

// ChosenPSK returns the key the server accepted, and its offer index.
func (conn *Conn) ChosenPSK() (*session.PreSharedKey, uint16, bool) {
	if conn.psk.chosen == nil {
		return nil, 0, false
	}
	return conn.psk.chosen, conn.psk.chosenIndex, true
}
