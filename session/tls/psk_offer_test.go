package tls

import (
	"testing"
	"tls-psk/session/tls/common"
	"tls-psk/session/tls/common/ciphersuite"
	"tls-psk/session/tls/common/session"
	"tls-psk/session/tls/internal/handshake/extension"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestOfferedPSKSize(t *testing.T) {
	for alg, digest := range map[session.PSKHMAC]uint32{
		session.PSKHMACSHA224: 28,
		session.PSKHMACSHA256: 32,
		session.PSKHMACSHA384: 48,
	} {
		psk := newTestPSK(t, "identity", "secret", alg)
		size, err := offeredPSKSize(psk)
		require.NoError(t, err)
		assert.Equal(t, 2+4+1+uint32(len("identity"))+digest, size)
	}
}

func TestOfferedPSKsSize(t *testing.T) {
	size, err := offeredPSKsSize(nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), size)

	list := []*session.PreSharedKey{
		newTestPSK(t, "a", "secret", session.PSKHMACSHA256),
		newTestPSK(t, "bb", "secret", session.PSKHMACSHA384),
	}
	size, err = offeredPSKsSize(list)
	require.NoError(t, err)
	assert.Equal(t, uint32(4+(7+1+32)+(7+2+48)), size)
}

func TestAddSizeOverflow(t *testing.T) {
	_, err := addSize(0xffffffff, 1)
	assert.ErrorIs(t, err, ErrSizeOverflow)

	n, err := addSize(1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), n)
}

type OfferTestSuite struct {
	suite.Suite

	conn *Conn
}

func TestOfferTestSuite(t *testing.T) {
	suite.Run(t, new(OfferTestSuite))
}

func (s *OfferTestSuite) SetupTest() {
	s.conn = newTestConn(s.T(), common.ModeClient, clock.NewMock())

	s.Require().NoError(s.conn.AppendPSK(newTestPSK(s.T(), "sha256 a", "secret a", session.PSKHMACSHA256)))
	s.Require().NoError(s.conn.AppendPSK(newTestPSK(s.T(), "sha384", "secret b", session.PSKHMACSHA384)))
	s.Require().NoError(s.conn.AppendPSK(newTestPSK(s.T(), "sha256 c", "secret c", session.PSKHMACSHA256)))
}

func (s *OfferTestSuite) TearDownTest() {
	s.conn.Wipe()
}

func (s *OfferTestSuite) parse(msg []byte) *extension.PreSharedKeyCH {
	var ext extension.PreSharedKeyCH

	exts, err := extension.Parse(append(extension.TypePreSharedKey.Bytes(), lengthPrefixed(pskExtensionOf(s.T(), msg))...))
	s.Require().NoError(err)
	s.Require().NoError(exts.Extract(&ext))
	return &ext
}

func lengthPrefixed(b []byte) []byte {
	return append([]byte{uint8(len(b) >> 8), uint8(len(b))}, b...)
}

func (s *OfferTestSuite) TestWriteExtension() {
	msg := buildClientHello(s.T(), s.conn)
	ext := s.parse(msg)

	s.Require().Len(ext.Identities, 3)
	s.Require().Len(ext.Binders, 3)
	for i, id := range ext.Identities {
		s.Equal(s.conn.PSK(i).Identity(), id.Identity)
		s.Zero(id.ObfuscatedTicketAge)
		s.Len(ext.Binders[i], s.conn.PSK(i).DigestSize())
	}

	// Binders are the real ones, not the placeholder.
	s.NotEqual(make([]byte, 32), []byte(ext.Binders[0]))
	// Different keys under the same hash give different binders.
	s.NotEqual(ext.Binders[0], ext.Binders[2])

	s.Zero(s.conn.psk.binderListSize)
}

func (s *OfferTestSuite) TestPlaceholderMatchesBinderList() {
	s.Require().NoError(s.conn.BeginClientHello())
	s.Require().NoError(s.conn.WritePSKExtension())

	reserved := s.conn.psk.binderListSize
	s.Equal(uint16(2+(1+32)+(1+48)+(1+32)), reserved)
	before := s.conn.hs.Len()

	msg, err := s.conn.FinishClientHello()
	s.Require().NoError(err)
	s.Equal(before, len(msg))
}

func (s *OfferTestSuite) TestBinderMatchesVerification() {
	msg := buildClientHello(s.T(), s.conn)
	ext := s.parse(msg)

	// Recompute with the transcript as it was before the ClientHello.
	s.conn.transcript.reset()

	_, binderList, err := extension.SplitPreSharedKeyCH(pskExtensionOf(s.T(), msg))
	s.Require().NoError(err)
	partial := msg[:len(msg)-2-len(binderList)]

	for i, binder := range ext.Binders {
		s.NoError(s.conn.VerifyBinder(s.conn.PSK(i), partial, binder), i)
	}
}

func (s *OfferTestSuite) TestHelloRetrySkipsOtherHashes() {
	buildClientHello(s.T(), s.conn)

	suite, _ := ciphersuite.Get(ciphersuite.TLS_AES_256_GCM_SHA384)
	s.Require().NoError(s.conn.HelloRetry(suite, []byte{2, 0, 0, 0}))

	msg := buildClientHello(s.T(), s.conn)
	ext := s.parse(msg)

	// The identity list still names every key.
	s.Require().Len(ext.Identities, 3)
	s.Require().Len(ext.Binders, 1)
	s.Len(ext.Binders[0], 48)
}

func (s *OfferTestSuite) TestHelloRetrySHA256() {
	buildClientHello(s.T(), s.conn)

	s.Error(s.conn.HelloRetry(ciphersuite.Suite{}, nil))

	suite, _ := ciphersuite.Get(ciphersuite.TLS_AES_128_GCM_SHA256)
	s.Require().NoError(s.conn.HelloRetry(suite, []byte{2, 0, 0, 0}))

	ext := s.parse(buildClientHello(s.T(), s.conn))
	s.Len(ext.Binders, 2)
}

func (s *OfferTestSuite) TestWriteTwice() {
	s.Require().NoError(s.conn.BeginClientHello())
	s.Require().NoError(s.conn.WritePSKExtension())
	s.ErrorIs(s.conn.WritePSKExtension(), ErrPSKExtensionFrozen)
	s.ErrorIs(s.conn.WriteExtension(&extension.EarlyDataCH{}), ErrPSKExtensionFrozen)
}

func (s *OfferTestSuite) TestAppendAfterWrite() {
	s.Require().NoError(s.conn.BeginClientHello())
	s.Require().NoError(s.conn.WritePSKExtension())

	err := s.conn.AppendPSK(newTestPSK(s.T(), "late", "secret d", session.PSKHMACSHA256))
	s.ErrorIs(err, ErrPSKExtensionFrozen)
	s.Equal(3, s.conn.PSKCount())

	msg, err := s.conn.FinishClientHello()
	s.Require().NoError(err)
	s.Len(s.parse(msg).Identities, 3)

	// The hello is closed, so the list may grow again.
	s.NoError(s.conn.AppendPSK(newTestPSK(s.T(), "late", "secret d", session.PSKHMACSHA256)))
}

func TestWritePSKExtensionEmpty(t *testing.T) {
	conn := newTestConn(t, common.ModeClient, clock.NewMock())

	require.NoError(t, conn.BeginClientHello())
	require.NoError(t, conn.WritePSKExtension())
	msg, err := conn.FinishClientHello()
	require.NoError(t, err)

	_, extensions := parseHello(t, msg)
	assert.False(t, extensions.Has(extension.TypePreSharedKey))
	assert.True(t, extensions.Has(extension.TypeSupportedVersions))
}
