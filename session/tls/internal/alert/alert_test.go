package alert

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestAlertBytes(t *testing.T) {
	a := Alert{Level: LevelFatal, Description: DecryptError}
	assert.Equal(t, []byte{2, 51}, a.Bytes())
}

func TestDescriptionString(t *testing.T) {
	assert.Equal(t, "decode_error", DecodeError.String())
	assert.Equal(t, "unknown_psk_identity", UnknownPSKIdentity.String())
	assert.Equal(t, "unknown: 200", Description(200).String())
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("binder mismatch")
	err := errors.Wrap(NewError(cause, DecryptError), "verifying binder")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, DecryptError, DescriptionOf(err))
	assert.Contains(t, err.Error(), "alert(decrypt_error)")
}

func TestDescriptionOfPlainError(t *testing.T) {
	assert.Equal(t, InternalError, DescriptionOf(errors.New("oops")))
}
