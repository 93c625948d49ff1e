package tls

import (
	"bytes"
	"io"
	"log/slog"
	"time"
	"tls-psk/session/tls/common"
	"tls-psk/session/tls/common/ciphersuite"
	"tls-psk/session/tls/common/session"
	"tls-psk/session/tls/internal/handshake"
	"tls-psk/session/tls/internal/handshake/extension"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// Conn is the PSK state of one handshake. It is not safe for concurrent use.
type Conn struct {
	mode common.Mode

	suites []ciphersuite.Suite
	suite  ciphersuite.Suite // Negotiated. Zero until known.

	// Set after a HelloRetryRequest.
	retried bool

	logger            *slog.Logger
	clock             clock.Clock
	random            io.Reader
	binderTimingFloor time.Duration
	selectPSK         SelectPSKFunc

	psk        pskParams
	transcript *transcript

	hs         *handshake.Buffer
	extensions handshake.Reservation
	inHello    bool
}

func NewConn(opts Options) (*Conn, error) {
	if opts.Mode != common.ModeClient && opts.Mode != common.ModeServer {
		return nil, errors.Wrapf(session.ErrInvalidArgument, "mode %s", opts.Mode)
	}
	opts = opts.withDefaults()

	return &Conn{
		mode:              opts.Mode,
		suites:            opts.CipherSuites,
		logger:            opts.Logger.With("mode", opts.Mode.String()),
		clock:             opts.Clock,
		random:            opts.Random,
		binderTimingFloor: opts.BinderTimingFloor,
		selectPSK:         opts.SelectPSK,
		psk:               newPSKParams(),
		transcript:        newTranscript(),
		hs:                handshake.NewBuffer(),
	}, nil
}

func (conn *Conn) Mode() common.Mode { return conn.mode }

func (conn *Conn) CipherSuite() ciphersuite.Suite { return conn.suite }

// SetCipherSuite records the negotiated suite.
func (conn *Conn) SetCipherSuite(suite ciphersuite.Suite) {
	conn.suite = suite
}

// IsRetried reports whether a HelloRetryRequest was processed.
func (conn *Conn) IsRetried() bool { return conn.retried }

// UpdateTranscript appends a complete handshake message to the transcript.
func (conn *Conn) UpdateTranscript(msg []byte) {
	conn.transcript.write(msg)
}

// HelloRetry switches the handshake to its retried form. The transcript
// must hold exactly ClientHello1.
func (conn *Conn) HelloRetry(suite ciphersuite.Suite, helloRetryRequest []byte) error {
	if conn.retried {
		return errors.New("second hello retry request")
	}
	if suite.IsZero() {
		return errors.Wrap(session.ErrInvalidArgument, "zero cipher suite")
	}

	conn.suite = suite
	conn.retried = true
	conn.transcript.retry(helloRetryRequest)
	conn.psk.chosen = nil

	conn.logger.Debug("hello retry", "hash", suite.Hash().String())
	return nil
}

// BeginClientHello starts a ClientHello and writes the extensions every
// PSK offer needs. Further extensions may follow before WritePSKExtension.
func (conn *Conn) BeginClientHello() error {
	if conn.mode != common.ModeClient {
		return errors.Wrap(ErrWrongMode, "only clients send client hello")
	}

	var random [32]byte
	if _, err := io.ReadFull(conn.random, random[:]); err != nil {
		return errors.Wrap(err, "reading random")
	}

	conn.hs.Wipe()
	conn.psk.binderListSize = 0
	conn.extensions = conn.hs.BeginClientHello(handshake.ClientHello{
		Random:       random,
		CipherSuites: ciphersuite.AsIDs(conn.suites),
	})
	conn.inHello = true

	exts := []extension.Extension{
		&extension.SupportedVersionsCH{Versions: []common.Version{common.VersionTLS13}},
		&extension.PskKeyExchangeModes{KeModes: []session.PSKMode{session.PSKModePSK_KE}},
	}
	// Early data is never offered in the retried hello.
	// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-4.2.10
	if first := conn.psk.first(); first != nil && first.EarlyData().Enabled() && !conn.retried {
		exts = append(exts, &extension.EarlyDataCH{})
	}

	for _, ext := range exts {
		if err := conn.WriteExtension(ext); err != nil {
			return err
		}
	}

	return nil
}

// WriteExtension appends ext to the open ClientHello.
func (conn *Conn) WriteExtension(ext extension.Extension) error {
	if !conn.inHello {
		return ErrNoHandshake
	}
	if conn.psk.binderListSize > 0 {
		return errors.Wrap(ErrPSKExtensionFrozen, "pre_shared_key must be the last extension")
	}

	raw, err := extension.Marshal(ext)
	if err != nil {
		return err
	}

	conn.hs.Write(raw)
	return nil
}

// FinishClientHello closes the open ClientHello, fills in the binders and
// adds the message to the transcript.
func (conn *Conn) FinishClientHello() ([]byte, error) {
	if !conn.inHello {
		return nil, ErrNoHandshake
	}
	conn.inHello = false

	if err := conn.hs.Commit(conn.extensions); err != nil {
		return nil, errors.Wrap(err, "committing extensions length")
	}
	if err := conn.hs.FinishHeader(); err != nil {
		return nil, errors.Wrap(err, "finishing header")
	}

	if err := finishPSKExtension(conn); err != nil {
		conn.hs.Wipe()
		return nil, errors.Wrap(err, "finishing pre_shared_key")
	}

	msg := bytes.Clone(conn.hs.Message())
	conn.hs.Wipe()

	conn.transcript.write(msg)
	return msg, nil
}

// Wipe releases every secret the connection holds.
func (conn *Conn) Wipe() {
	conn.WipePSKs()
	conn.hs.Wipe()
	conn.inHello = false
}
