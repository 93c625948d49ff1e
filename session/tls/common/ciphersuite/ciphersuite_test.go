package ciphersuite

import (
	"crypto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	suite, ok := Get(TLS_AES_128_GCM_SHA256)
	require.True(t, ok)
	assert.Equal(t, TLS_AES_128_GCM_SHA256, suite.ID())
	assert.Equal(t, crypto.SHA256, suite.Hash())
	assert.Equal(t, 16, suite.AEAD().KeyLen())
}

func TestGetUnregistered(t *testing.T) {
	_, ok := Get(ID([2]uint8{0xFF, 0xFF}))
	assert.False(t, ok)

	_, ok = Get(TLS_AES_128_CCM_SHA256)
	assert.False(t, ok)
}

func TestSuiteHashes(t *testing.T) {
	testcases := []struct {
		id   ID
		hash crypto.Hash
	}{
		{TLS_AES_128_GCM_SHA256, crypto.SHA256},
		{TLS_AES_256_GCM_SHA384, crypto.SHA384},
		{TLS_CHACHA20_POLY1305_SHA256, crypto.SHA256},
	}

	for _, tc := range testcases {
		suite, ok := Get(tc.id)
		require.True(t, ok)
		assert.Equal(t, tc.hash, suite.Hash())
		assert.False(t, suite.IsZero())
	}

	assert.True(t, Suite{}.IsZero())
}

func TestDefault(t *testing.T) {
	def := Default()
	require.Len(t, def, 3)
	assert.ElementsMatch(t,
		[]ID{TLS_AES_128_GCM_SHA256, TLS_AES_256_GCM_SHA384, TLS_CHACHA20_POLY1305_SHA256},
		AsIDs(def),
	)

	if hasAESGCMHardwareSupport {
		assert.Equal(t, TLS_AES_128_GCM_SHA256, def[0].ID())
	} else {
		assert.Equal(t, TLS_CHACHA20_POLY1305_SHA256, def[0].ID())
	}
}
