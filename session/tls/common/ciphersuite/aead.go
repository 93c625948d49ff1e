package ciphersuite

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

var ErrKeyLen = errors.New("invalid key length")

type AEADFunc func(key []byte) (cipher.AEAD, error)

type AEAD struct {
	keyLen int
	newFn  AEADFunc
}

func (a AEAD) KeyLen() int { return a.keyLen }

func (a AEAD) New(key []byte) (cipher.AEAD, error) { return a.newFn(key) }

func aeadAES_128_GCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 16 {
		return nil, ErrKeyLen
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func aeadAES_256_GCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, ErrKeyLen
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func aeadCHACHA20_POLY1305(key []byte) (cipher.AEAD, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrKeyLen
	}

	return chacha20poly1305.New(key)
}
