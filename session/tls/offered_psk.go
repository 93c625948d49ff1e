package tls

import (
	"bytes"
	"tls-psk/session/tls/common"
	"tls-psk/session/tls/common/session"
	"tls-psk/session/tls/internal/alert"
	"tls-psk/session/tls/internal/handshake/extension"

	"github.com/pkg/errors"
	"golang.org/x/crypto/cryptobyte"
)

// OfferedPSK is one identity from a received identity list.
// Identity aliases the received message.
type OfferedPSK struct {
	identity []byte
	index    uint16
}

func (o *OfferedPSK) Identity() []byte { return o.identity }

// Index is the position of the identity in the offer.
func (o *OfferedPSK) Index() uint16 { return o.index }

// OfferedPSKList iterates a received identity list without copying it.
type OfferedPSKList struct {
	wire cryptobyte.String
	cur  cryptobyte.String
	next uint16
}

// NewOfferedPSKList wraps an identity list without its length prefix.
func NewOfferedPSKList(wire []byte) *OfferedPSKList {
	return &OfferedPSKList{wire: wire, cur: wire}
}

func (l *OfferedPSKList) HasNext() bool { return !l.cur.Empty() }

// Next reads the following identity. The ticket age is skipped unread:
// servers ignore it for external PSKs.
func (l *OfferedPSKList) Next() (*OfferedPSK, error) {
	if l.cur.Empty() {
		return nil, ErrOutOfData
	}

	var identity cryptobyte.String
	if !l.cur.ReadUint16LengthPrefixed(&identity) {
		return nil, errors.Wrap(ErrBadMessage, "identity longer than list")
	}
	if identity.Empty() {
		return nil, errors.Wrap(ErrBadMessage, "empty identity")
	}
	if !l.cur.Skip(4) {
		return nil, errors.Wrap(ErrBadMessage, "missing ticket age")
	}

	o := &OfferedPSK{identity: identity, index: l.next}
	l.next++
	return o, nil
}

func (l *OfferedPSKList) Reset() {
	l.cur = l.wire
	l.next = 0
}

// Get returns the n-th identity without moving l.
func (l *OfferedPSKList) Get(n int) (*OfferedPSK, error) {
	if n < 0 {
		return nil, errors.Wrapf(ErrOutOfData, "offered psk %d", n)
	}

	dup := *l
	dup.Reset()

	var (
		o   *OfferedPSK
		err error
	)
	for i := 0; i <= n; i++ {
		if o, err = dup.Next(); err != nil {
			return nil, errors.Wrapf(err, "offered psk %d", n)
		}
	}
	return o, nil
}

// SelectFirstPSK picks the first offered identity stored on conn whose
// hash suits the negotiated cipher suite.
func SelectFirstPSK(conn *Conn, offered *OfferedPSKList) (*OfferedPSK, error) {
	for offered.HasNext() {
		o, err := offered.Next()
		if err != nil {
			return nil, err
		}

		psk := conn.PSKByIdentity(o.Identity())
		if psk == nil {
			continue
		}
		if !conn.suite.IsZero() && psk.Hash() != conn.suite.Hash() {
			continue
		}
		return o, nil
	}

	return nil, nil
}

func decodeError(err error) error {
	return alert.NewError(err, alert.DecodeError)
}

// ReceivePSKExtension processes the pre_shared_key extension of a received
// ClientHello. clientHello is the whole message, header included, and
// extData the extension payload, which must end the message.
//
// ErrNoMatchingPSK means the handshake may go on without a PSK.
// Call UpdateTranscript with clientHello afterwards.
func (conn *Conn) ReceivePSKExtension(clientHello, extData []byte) (*extension.PreSharedKeySH, error) {
	if conn.mode != common.ModeServer {
		return nil, errors.Wrap(ErrWrongMode, "only servers receive psk offers")
	}

	identityList, binderList, err := extension.SplitPreSharedKeyCH(extData)
	if err != nil {
		return nil, decodeError(errors.Wrap(ErrBadMessage, err.Error()))
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-4.2.11
	if !bytes.HasSuffix(clientHello, extData) {
		return nil, alert.NewError(errors.New("pre_shared_key is not the last extension"), alert.IllegalParameter)
	}

	// An unknown identity takes as long as a bad binder.
	start := conn.clock.Now()

	offered := NewOfferedPSKList(identityList)
	chosen, err := conn.selectPSK(conn, offered)
	if err != nil {
		if errors.Is(err, ErrBadMessage) || errors.Is(err, ErrOutOfData) {
			return nil, decodeError(err)
		}
		return nil, errors.Wrap(err, "selecting psk")
	}
	var psk *session.PreSharedKey
	if chosen != nil {
		psk = conn.PSKByIdentity(chosen.Identity())
	}
	if psk == nil {
		if conn.binderTimingFloor > 0 {
			conn.padTiming(start, conn.binderTimingFloor)
		}
		return nil, ErrNoMatchingPSK
	}

	binder, err := extension.BinderAt(binderList, int(chosen.Index()))
	if err != nil {
		return nil, decodeError(errors.Wrap(ErrBadMessage, err.Error()))
	}

	// The partial ClientHello ends before the binder list and its length.
	partial := clientHello[:len(clientHello)-2-len(binderList)]
	if err := conn.VerifyBinder(psk, partial, binder); err != nil {
		return nil, err
	}

	conn.psk.chosen = psk
	conn.psk.chosenIndex = chosen.Index()

	conn.logger.Debug("psk selected", "index", chosen.Index())
	return &extension.PreSharedKeySH{SelectedIdentity: chosen.Index()}, nil
}
