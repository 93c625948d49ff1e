package tls

import (
	"crypto"
	"crypto/hmac"
	"crypto/subtle"
	"time"
	"tls-psk/lib/mem"
	"tls-psk/session/tls/common/session"
	"tls-psk/session/tls/internal/alert"
	"tls-psk/session/tls/internal/util/hkdf"

	"github.com/pkg/errors"
)

// binderHash is Hash(transcript || partial). The running transcript is left untouched.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-4.2.11.2
func binderHash(tr *transcript, h crypto.Hash, partial []byte) ([]byte, error) {
	state, err := tr.snapshot(h)
	if err != nil {
		return nil, errors.Wrap(err, "copying transcript")
	}

	state.Write(partial)
	return state.Sum(nil), nil
}

// calculateBinder computes the binder the way a Finished message is computed,
// keyed with the PSK's binder key.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-4.2.11.2
func calculateBinder(psk *session.PreSharedKey, binderHash []byte) ([]byte, error) {
	size := psk.DigestSize()
	if len(binderHash) != size {
		return nil, errors.Wrapf(ErrInternalSize, "binder hash is %d bytes, want %d", len(binderHash), size)
	}

	early, err := psk.DeriveEarlySecret()
	if err != nil {
		return nil, errors.Wrap(err, "deriving early secret")
	}
	if len(early) != size {
		return nil, errors.Wrapf(ErrInternalSize, "early secret is %d bytes", len(early))
	}

	binderKey, err := hkdf.DeriveSecret(psk.Hash(), early, psk.Type.BinderLabel(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "deriving binder key")
	}
	defer mem.Zero(binderKey)

	finishedKey, err := hkdf.ExpandLabel(psk.Hash(), binderKey, "finished", nil, size)
	if err != nil {
		return nil, errors.Wrap(err, "expanding finished key")
	}
	defer mem.Zero(finishedKey)

	mac := hmac.New(psk.Hash().New, finishedKey)
	mac.Write(binderHash)
	binder := mac.Sum(nil)

	if len(binder) != size {
		return nil, errors.Wrapf(ErrInternalSize, "binder is %d bytes", len(binder))
	}
	return binder, nil
}

// VerifyBinder checks received against the binder of psk over the current
// transcript and partial, the ClientHello up to its binder list.
func (conn *Conn) VerifyBinder(psk *session.PreSharedKey, partial, received []byte) error {
	if conn.binderTimingFloor > 0 {
		defer conn.padTiming(conn.clock.Now(), conn.binderTimingFloor)
	}

	bh, err := binderHash(conn.transcript, psk.Hash(), partial)
	if err != nil {
		return err
	}

	expected, err := calculateBinder(psk, bh)
	if err != nil {
		return err
	}
	defer mem.Zero(expected)

	// ConstantTimeCompare rejects differing lengths without looking at content.
	if subtle.ConstantTimeCompare(expected, received) != 1 {
		conn.logger.Warn("psk binder mismatch")
		return alert.NewError(ErrBinderMismatch, alert.DecryptError)
	}

	return nil
}

// padTiming sleeps until floor has passed since start.
func (conn *Conn) padTiming(start time.Time, floor time.Duration) {
	if remaining := floor - conn.clock.Since(start); remaining > 0 {
		conn.clock.Sleep(remaining)
	}
}
