package tls

import (
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding"
	"hash"
	"tls-psk/session/tls/internal/handshake"

	"github.com/pkg/errors"
)

// Every hash a PSK may be bound to. The suite is not known until the
// server answers, so all of them run in parallel.
var transcriptHashes = []crypto.Hash{crypto.SHA224, crypto.SHA256, crypto.SHA384}

var errNoTranscript = errors.New("transcript hash unavailable")

// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-4.4.1
type transcript struct {
	states map[crypto.Hash]hash.Hash
}

func newTranscript() *transcript {
	t := &transcript{states: make(map[crypto.Hash]hash.Hash, len(transcriptHashes))}
	t.reset()
	return t
}

func (t *transcript) reset() {
	for _, h := range transcriptHashes {
		t.states[h] = h.New()
	}
}

func (t *transcript) write(msg []byte) {
	for _, state := range t.states {
		state.Write(msg)
	}
}

// snapshot returns an independent copy of the running state for h.
func (t *transcript) snapshot(h crypto.Hash) (hash.Hash, error) {
	state, ok := t.states[h]
	if !ok {
		return nil, errors.Wrapf(errNoTranscript, "hash %s", h)
	}

	m, ok := state.(encoding.BinaryMarshaler)
	if !ok {
		return nil, errors.Wrapf(errNoTranscript, "hash %s cannot be copied", h)
	}
	raw, err := m.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "marshaling hash state")
	}

	dup := h.New()
	if err := dup.(encoding.BinaryUnmarshaler).UnmarshalBinary(raw); err != nil {
		return nil, errors.Wrap(err, "unmarshaling hash state")
	}

	return dup, nil
}

// retry replaces ClientHello1 with a message_hash and appends the
// HelloRetryRequest. It must be called with exactly ClientHello1 written.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-4.4.1
func (t *transcript) retry(helloRetryRequest []byte) {
	for h, state := range t.states {
		fresh := h.New()
		fresh.Write(handshake.NewMessageHash(state.Sum(nil)))
		fresh.Write(helloRetryRequest)
		t.states[h] = fresh
	}
}
