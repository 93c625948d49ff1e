package tls

import (
	"crypto"
	"testing"
	"tls-psk/session/tls/internal/handshake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptSnapshot(t *testing.T) {
	tr := newTranscript()
	tr.write([]byte("one"))

	for _, h := range transcriptHashes {
		dup, err := tr.snapshot(h)
		require.NoError(t, err)

		dup.Write([]byte("two"))
		assert.Equal(t, hashOf(h, []byte("onetwo")), dup.Sum(nil), h.String())

		again, err := tr.snapshot(h)
		require.NoError(t, err)
		assert.Equal(t, hashOf(h, []byte("one")), again.Sum(nil), h.String())
	}
}

func TestTranscriptRetry(t *testing.T) {
	clientHello := []byte{1, 0, 0, 2, 0xaa, 0xbb}
	hrr := []byte{2, 0, 0, 1, 0xcc}

	tr := newTranscript()
	tr.write(clientHello)
	tr.retry(hrr)

	for _, h := range transcriptHashes {
		state, err := tr.snapshot(h)
		require.NoError(t, err)

		expected := hashOf(h, handshake.MessageHash(h, clientHello), hrr)
		assert.Equal(t, expected, state.Sum(nil), h.String())
	}
}

func TestTranscriptReset(t *testing.T) {
	tr := newTranscript()
	tr.write([]byte("data"))
	tr.reset()

	state, err := tr.snapshot(crypto.SHA256)
	require.NoError(t, err)
	assert.Equal(t, hashOf(crypto.SHA256), state.Sum(nil))
}
