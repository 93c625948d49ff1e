package tls

import (
	"bytes"
	"testing"
	"tls-psk/session/tls/common"
	"tls-psk/session/tls/common/ciphersuite"
	"tls-psk/session/tls/common/session"
	"tls-psk/session/tls/internal/alert"
	"tls-psk/session/tls/internal/handshake"
	"tls-psk/session/tls/internal/handshake/extension"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func newTestPSK(t *testing.T, identity, secret string, alg session.PSKHMAC) *session.PreSharedKey {
	t.Helper()

	psk := session.NewExternalPSK()
	require.NoError(t, psk.SetIdentity([]byte(identity)))
	require.NoError(t, psk.SetSecret([]byte(secret)))
	require.NoError(t, psk.SetHMAC(alg))
	return psk
}

func newTestConn(t *testing.T, mode common.Mode, clk clock.Clock) *Conn {
	t.Helper()

	conn, err := NewConn(Options{
		Mode:   mode,
		Clock:  clk,
		Random: bytes.NewReader(make([]byte, 1024)),
	})
	require.NoError(t, err)
	return conn
}

func parseHello(t *testing.T, msg []byte) (handshake.ClientHello, extension.Extensions) {
	t.Helper()

	body, err := handshake.ParseMessage(msg, handshake.TypeClientHello)
	require.NoError(t, err)

	ch, raw, err := handshake.ParseClientHello(body)
	require.NoError(t, err)

	exts, err := extension.Parse(raw)
	require.NoError(t, err)
	return ch, exts
}

// pskExtensionOf returns the pre_shared_key payload of a ClientHello, aliasing msg.
func pskExtensionOf(t *testing.T, msg []byte) []byte {
	t.Helper()

	_, exts := parseHello(t, msg)
	require.True(t, exts.IsLast(extension.TypePreSharedKey))

	data, ok := exts.Raw(extension.TypePreSharedKey)
	require.True(t, ok)
	return data
}

func buildClientHello(t *testing.T, conn *Conn) []byte {
	t.Helper()

	require.NoError(t, conn.BeginClientHello())
	require.NoError(t, conn.WritePSKExtension())
	msg, err := conn.FinishClientHello()
	require.NoError(t, err)
	return msg
}

type HandshakeTestSuite struct {
	suite.Suite

	clock  *clock.Mock
	client *Conn
	server *Conn
}

func TestHandshakeTestSuite(t *testing.T) {
	suite.Run(t, new(HandshakeTestSuite))
}

func (s *HandshakeTestSuite) SetupTest() {
	s.clock = clock.NewMock()
	s.client = newTestConn(s.T(), common.ModeClient, s.clock)
	s.server = newTestConn(s.T(), common.ModeServer, s.clock)
}

func (s *HandshakeTestSuite) TearDownTest() {
	s.client.Wipe()
	s.server.Wipe()
}

// appendBoth stores the same key on both ends.
func (s *HandshakeTestSuite) appendBoth(psk *session.PreSharedKey) {
	s.Require().NoError(s.client.AppendPSK(psk))
	s.Require().NoError(s.server.AppendPSK(psk))
}

func (s *HandshakeTestSuite) TestSelectAndVerify() {
	s.Require().NoError(s.client.AppendPSK(newTestPSK(s.T(), "client only", "x", session.PSKHMACSHA256)))
	s.appendBoth(newTestPSK(s.T(), "shared", "secret", session.PSKHMACSHA384))

	ch := buildClientHello(s.T(), s.client)

	sh, err := s.server.ReceivePSKExtension(ch, pskExtensionOf(s.T(), ch))
	s.Require().NoError(err)
	s.Equal(uint16(1), sh.SelectedIdentity)

	psk, idx, ok := s.server.ChosenPSK()
	s.Require().True(ok)
	s.Equal(uint16(1), idx)
	s.Equal([]byte("shared"), psk.Identity())

	suite, _ := ciphersuite.Get(ciphersuite.TLS_AES_256_GCM_SHA384)
	s.client.SetCipherSuite(suite)
	s.Require().NoError(s.client.AcceptServerPSK(sh))

	chosen, _, ok := s.client.ChosenPSK()
	s.Require().True(ok)
	s.Equal([]byte("shared"), chosen.Identity())
}

func (s *HandshakeTestSuite) TestTamperedBinder() {
	s.appendBoth(newTestPSK(s.T(), "shared", "secret", session.PSKHMACSHA256))

	ch := buildClientHello(s.T(), s.client)
	ch[len(ch)-1] ^= 0x01

	_, err := s.server.ReceivePSKExtension(ch, pskExtensionOf(s.T(), ch))
	s.ErrorIs(err, ErrBinderMismatch)
	s.Equal(alert.DecryptError, alert.DescriptionOf(err))

	_, _, ok := s.server.ChosenPSK()
	s.False(ok)
}

func (s *HandshakeTestSuite) TestTamperedPartial() {
	s.appendBoth(newTestPSK(s.T(), "shared", "secret", session.PSKHMACSHA256))

	ch := buildClientHello(s.T(), s.client)
	// A byte of the random.
	ch[4+2] ^= 0x01

	_, err := s.server.ReceivePSKExtension(ch, pskExtensionOf(s.T(), ch))
	s.ErrorIs(err, ErrBinderMismatch)
}

func (s *HandshakeTestSuite) TestWrongSecret() {
	s.Require().NoError(s.client.AppendPSK(newTestPSK(s.T(), "shared", "client secret", session.PSKHMACSHA256)))
	s.Require().NoError(s.server.AppendPSK(newTestPSK(s.T(), "shared", "server secret", session.PSKHMACSHA256)))

	ch := buildClientHello(s.T(), s.client)

	_, err := s.server.ReceivePSKExtension(ch, pskExtensionOf(s.T(), ch))
	s.ErrorIs(err, ErrBinderMismatch)
}

func (s *HandshakeTestSuite) TestNoMatchingPSK() {
	s.Require().NoError(s.client.AppendPSK(newTestPSK(s.T(), "unknown", "secret", session.PSKHMACSHA256)))
	s.Require().NoError(s.server.AppendPSK(newTestPSK(s.T(), "other", "secret", session.PSKHMACSHA256)))

	ch := buildClientHello(s.T(), s.client)

	_, err := s.server.ReceivePSKExtension(ch, pskExtensionOf(s.T(), ch))
	s.ErrorIs(err, ErrNoMatchingPSK)
}

func (s *HandshakeTestSuite) TestNotLastExtension() {
	s.appendBoth(newTestPSK(s.T(), "shared", "secret", session.PSKHMACSHA256))

	ch := buildClientHello(s.T(), s.client)
	ext := bytes.Clone(pskExtensionOf(s.T(), ch))

	_, err := s.server.ReceivePSKExtension(append(bytes.Clone(ch), 0x00), ext)
	s.Equal(alert.IllegalParameter, alert.DescriptionOf(err))
}

func (s *HandshakeTestSuite) TestMalformedExtension() {
	s.appendBoth(newTestPSK(s.T(), "shared", "secret", session.PSKHMACSHA256))

	ext := []byte{0x00, 0x03, 0x00, 0x00, 0xaa, 0x00, 0x00}
	_, err := s.server.ReceivePSKExtension(ext, ext)
	s.ErrorIs(err, ErrBadMessage)
	s.Equal(alert.DecodeError, alert.DescriptionOf(err))

	// Zero length identity.
	ext = []byte{0x00, 0x06, 0x00, 0x00, 0, 0, 0, 0, 0x00, 0x02, 0x01, 0x00}
	_, err = s.server.ReceivePSKExtension(ext, ext)
	s.ErrorIs(err, ErrBadMessage)
	s.Equal(alert.DecodeError, alert.DescriptionOf(err))
}

func (s *HandshakeTestSuite) TestCustomSelector() {
	s.appendBoth(newTestPSK(s.T(), "first", "secret 1", session.PSKHMACSHA256))
	s.appendBoth(newTestPSK(s.T(), "second", "secret 2", session.PSKHMACSHA256))

	server, err := NewConn(Options{
		Mode:  common.ModeServer,
		Clock: s.clock,
		SelectPSK: func(conn *Conn, offered *OfferedPSKList) (*OfferedPSK, error) {
			return offered.Get(1)
		},
	})
	s.Require().NoError(err)
	defer server.Wipe()
	s.Require().NoError(server.AppendPSK(s.server.PSK(0)))
	s.Require().NoError(server.AppendPSK(s.server.PSK(1)))

	ch := buildClientHello(s.T(), s.client)

	sh, err := server.ReceivePSKExtension(ch, pskExtensionOf(s.T(), ch))
	s.Require().NoError(err)
	s.Equal(uint16(1), sh.SelectedIdentity)
}

func (s *HandshakeTestSuite) TestHelloRetry() {
	s.appendBoth(newTestPSK(s.T(), "shared", "secret", session.PSKHMACSHA384))

	ch1 := buildClientHello(s.T(), s.client)
	s.server.UpdateTranscript(ch1)

	hrr := []byte{byte(handshake.TypeServerHello), 0, 0, 2, 0xab, 0xcd}
	suite, _ := ciphersuite.Get(ciphersuite.TLS_AES_256_GCM_SHA384)
	s.Require().NoError(s.client.HelloRetry(suite, hrr))
	s.Require().NoError(s.server.HelloRetry(suite, hrr))
	s.True(s.client.IsRetried())

	ch2 := buildClientHello(s.T(), s.client)
	s.NotEqual(ch1, ch2)

	sh, err := s.server.ReceivePSKExtension(ch2, pskExtensionOf(s.T(), ch2))
	s.Require().NoError(err)
	s.Equal(uint16(0), sh.SelectedIdentity)

	s.Error(s.client.HelloRetry(suite, hrr))
}

func (s *HandshakeTestSuite) TestHelloRetryTranscriptDiffers() {
	s.appendBoth(newTestPSK(s.T(), "shared", "secret", session.PSKHMACSHA256))

	ch := buildClientHello(s.T(), s.client)

	// The server never saw ClientHello1 and HelloRetryRequest.
	s.server.UpdateTranscript([]byte{byte(handshake.TypeClientHello), 0, 0, 0})
	_, err := s.server.ReceivePSKExtension(ch, pskExtensionOf(s.T(), ch))
	s.ErrorIs(err, ErrBinderMismatch)
}

func (s *HandshakeTestSuite) TestEarlyData() {
	psk := newTestPSK(s.T(), "shared", "secret", session.PSKHMACSHA256)
	s.Require().NoError(psk.ConfigureEarlyData(16, ciphersuite.TLS_CHACHA20_POLY1305_SHA256))
	s.appendBoth(psk)

	ch := buildClientHello(s.T(), s.client)

	_, exts := parseHello(s.T(), ch)
	s.True(exts.Has(extension.TypeEarlyData))

	sender, err := s.client.EarlyDataProtector()
	s.Require().NoError(err)

	_, err = s.server.EarlyDataProtector()
	s.ErrorIs(err, ErrEarlyDataDisabled)

	_, err = s.server.ReceivePSKExtension(ch, pskExtensionOf(s.T(), ch))
	s.Require().NoError(err)
	s.server.UpdateTranscript(ch)

	receiver, err := s.server.EarlyDataProtector()
	s.Require().NoError(err)

	record, err := sender.Seal([]byte("hello early"))
	s.Require().NoError(err)
	s.NotContains(string(record), "hello early")

	data, end, err := receiver.Open(record)
	s.Require().NoError(err)
	s.False(end)
	s.Equal([]byte("hello early"), data)

	_, err = sender.Seal([]byte("too much data"))
	s.ErrorIs(err, ErrNoMoreEarlyData)

	eoed, err := sender.SealEndOfEarlyData()
	s.Require().NoError(err)
	_, end, err = receiver.Open(eoed)
	s.Require().NoError(err)
	s.True(end)
}

func (s *HandshakeTestSuite) TestEarlyDataTampered() {
	psk := newTestPSK(s.T(), "shared", "secret", session.PSKHMACSHA256)
	s.Require().NoError(psk.ConfigureEarlyData(1024, ciphersuite.TLS_AES_128_GCM_SHA256))
	s.appendBoth(psk)

	ch := buildClientHello(s.T(), s.client)
	_, err := s.server.ReceivePSKExtension(ch, pskExtensionOf(s.T(), ch))
	s.Require().NoError(err)
	s.server.UpdateTranscript(ch)

	sender, err := s.client.EarlyDataProtector()
	s.Require().NoError(err)
	receiver, err := s.server.EarlyDataProtector()
	s.Require().NoError(err)

	record, err := sender.Seal([]byte("data"))
	s.Require().NoError(err)
	record[len(record)-1] ^= 0x01

	_, _, err = receiver.Open(record)
	s.Equal(alert.BadRecordMAC, alert.DescriptionOf(err))

	_, _, err = receiver.Open(record[:3])
	s.Equal(alert.DecodeError, alert.DescriptionOf(err))
}

func (s *HandshakeTestSuite) TestEarlyDataNotAfterRetry() {
	psk := newTestPSK(s.T(), "shared", "secret", session.PSKHMACSHA256)
	s.Require().NoError(psk.ConfigureEarlyData(1024, ciphersuite.TLS_AES_128_GCM_SHA256))
	s.appendBoth(psk)

	buildClientHello(s.T(), s.client)
	suite, _ := ciphersuite.Get(ciphersuite.TLS_AES_128_GCM_SHA256)
	s.Require().NoError(s.client.HelloRetry(suite, []byte{2, 0, 0, 0}))

	ch2 := buildClientHello(s.T(), s.client)
	_, exts := parseHello(s.T(), ch2)
	s.False(exts.Has(extension.TypeEarlyData))

	_, err := s.client.EarlyDataProtector()
	s.ErrorIs(err, ErrEarlyDataDisabled)
}

func TestNewConnInvalidMode(t *testing.T) {
	_, err := NewConn(Options{})
	require.ErrorIs(t, err, session.ErrInvalidArgument)
}

func TestWrongMode(t *testing.T) {
	server := newTestConn(t, common.ModeServer, clock.NewMock())
	require.ErrorIs(t, server.BeginClientHello(), ErrWrongMode)

	client := newTestConn(t, common.ModeClient, clock.NewMock())
	_, err := client.ReceivePSKExtension(nil, nil)
	require.ErrorIs(t, err, ErrWrongMode)

	_, err = client.FinishClientHello()
	require.ErrorIs(t, err, ErrNoHandshake)
}
