package tls

import (
	"crypto/cipher"
	"math"
	"tls-psk/lib/mem"
	"tls-psk/session/tls/common"
	"tls-psk/session/tls/common/ciphersuite"
	"tls-psk/session/tls/common/session"
	"tls-psk/session/tls/internal/alert"
	"tls-psk/session/tls/internal/handshake"
	"tls-psk/session/tls/internal/util/hkdf"

	"github.com/pkg/errors"
)

var (
	ErrEarlyDataDisabled = errors.New("early data not available")
	ErrNoMoreEarlyData   = errors.New("no more early data is permitted")
)

// EarlyDataProtector protects 0-RTT records under client_early_traffic_secret.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-4.2.10
type EarlyDataProtector struct {
	suite  ciphersuite.Suite
	cipher cipher.AEAD
	iv     []byte
	seq    uint64

	maxEarlyData uint32
	processed    uint32
}

// earlyDataPSK is the key 0-RTT is bound to: the first offered one on a
// client and the accepted one on a server.
func (conn *Conn) earlyDataPSK() (*session.PreSharedKey, error) {
	if conn.retried {
		return nil, errors.Wrap(ErrEarlyDataDisabled, "handshake was retried")
	}

	var psk *session.PreSharedKey
	switch conn.mode {
	case common.ModeClient:
		psk = conn.psk.first()
	case common.ModeServer:
		if conn.psk.chosen != nil && conn.psk.chosenIndex == 0 {
			psk = conn.psk.chosen
		}
	}

	if psk == nil || !psk.EarlyData().Enabled() {
		return nil, ErrEarlyDataDisabled
	}
	return psk, nil
}

// EarlyDataProtector derives the early traffic keys. The transcript must end
// with the ClientHello.
func (conn *Conn) EarlyDataProtector() (*EarlyDataProtector, error) {
	psk, err := conn.earlyDataPSK()
	if err != nil {
		return nil, err
	}

	cfg := psk.EarlyData()
	suite, ok := ciphersuite.Get(cfg.CipherSuite)
	if !ok {
		return nil, errors.Wrapf(ErrEarlyDataDisabled, "unknown cipher suite %x", cfg.CipherSuite.Bytes())
	}

	early := psk.EarlySecret()
	if len(early) == 0 {
		if early, err = psk.DeriveEarlySecret(); err != nil {
			return nil, err
		}
	}

	tr, err := conn.transcript.snapshot(psk.Hash())
	if err != nil {
		return nil, errors.Wrap(err, "copying transcript")
	}

	secret, err := hkdf.DeriveSecret(psk.Hash(), early, "c e traffic", tr)
	if err != nil {
		return nil, errors.Wrap(err, "deriving early traffic secret")
	}
	defer mem.Zero(secret)

	p := &EarlyDataProtector{suite: suite, maxEarlyData: cfg.MaxEarlyDataSize}
	if err := p.setKey(secret); err != nil {
		return nil, err
	}

	conn.logger.Debug("early traffic keys derived", "max", cfg.MaxEarlyDataSize)
	return p, nil
}

// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-7.3
func (p *EarlyDataProtector) setKey(secret []byte) error {
	h := p.suite.Hash()

	key, err := hkdf.ExpandLabel(h, secret, "key", nil, p.suite.AEAD().KeyLen())
	if err != nil {
		return errors.Wrap(err, "generating key")
	}
	defer mem.Zero(key)

	p.cipher, err = p.suite.AEAD().New(key)
	if err != nil {
		return errors.Wrap(err, "setting cipher")
	}

	p.iv, err = hkdf.ExpandLabel(h, secret, "iv", nil, p.cipher.NonceSize())
	if err != nil {
		return errors.Wrap(err, "generating iv")
	}

	return nil
}

func (p *EarlyDataProtector) nonce() []byte {
	nonce := make([]byte, len(p.iv))
	copy(nonce, p.iv)
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-1-i] ^= byte(p.seq >> (8 * i))
	}
	return nonce
}

func (p *EarlyDataProtector) seal(inner tlsInnerPlainText) ([]byte, error) {
	if p.seq == math.MaxUint64 {
		return nil, errors.New("record sequence exhausted")
	}

	plaintext := inner.bytes()
	header := recordHeader(len(plaintext) + p.cipher.Overhead())

	sealed := p.cipher.Seal(nil, p.nonce(), plaintext, header)
	mem.Zero(plaintext)
	p.seq++

	return append(header, sealed...), nil
}

// Seal protects data as one application data record.
func (p *EarlyDataProtector) Seal(data []byte) ([]byte, error) {
	if len(data) > maxRecordLen {
		return nil, errors.Errorf("record of %d bytes", len(data))
	}
	if uint64(p.processed)+uint64(len(data)) > uint64(p.maxEarlyData) {
		return nil, ErrNoMoreEarlyData
	}

	record, err := p.seal(tlsInnerPlainText{content: data, contentType: typeApplicationData})
	if err != nil {
		return nil, err
	}

	p.processed += uint32(len(data))
	return record, nil
}

// SealEndOfEarlyData protects the EndOfEarlyData message that closes 0-RTT.
func (p *EarlyDataProtector) SealEndOfEarlyData() ([]byte, error) {
	buf := handshake.NewBuffer()
	buf.Begin(handshake.TypeEndOfEarlyData)
	if err := buf.FinishHeader(); err != nil {
		return nil, err
	}

	return p.seal(tlsInnerPlainText{content: buf.Bytes(), contentType: typeHandshake})
}

// Open removes protection from one record. end is true when the record
// carried EndOfEarlyData, after which no early data follows.
func (p *EarlyDataProtector) Open(record []byte) (data []byte, end bool, err error) {
	header, body, err := splitRecord(record)
	if err != nil {
		return nil, false, alert.NewError(err, alert.DecodeError)
	}
	if p.seq == math.MaxUint64 {
		return nil, false, errors.New("record sequence exhausted")
	}

	opened, err := p.cipher.Open(nil, p.nonce(), body, header)
	if err != nil {
		return nil, false, alert.NewError(errors.Wrap(err, "opening record"), alert.BadRecordMAC)
	}
	p.seq++

	var inner tlsInnerPlainText
	if err := inner.fillFrom(opened); err != nil {
		return nil, false, alert.NewError(err, alert.UnexpectedMessage)
	}

	switch inner.contentType {
	case typeApplicationData:
		if uint64(p.processed)+uint64(len(inner.content)) > uint64(p.maxEarlyData) {
			return nil, false, alert.NewError(ErrNoMoreEarlyData, alert.UnexpectedMessage)
		}
		p.processed += uint32(len(inner.content))
		return inner.content, false, nil

	case typeHandshake:
		if _, err := handshake.ParseMessage(inner.content, handshake.TypeEndOfEarlyData); err != nil {
			return nil, false, alert.NewError(err, alert.UnexpectedMessage)
		}
		return nil, true, nil
	}

	return nil, false, alert.NewError(errors.Errorf("content type %d", inner.contentType), alert.UnexpectedMessage)
}
