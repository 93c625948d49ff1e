package alert

import (
	"errors"
	"fmt"
)

type Level uint8

const (
	LevelWarning Level = 1
	LevelFatal   Level = 2
)

// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-6
type Description uint8

const (
	CloseNotify        Description = 0
	UnexpectedMessage  Description = 10
	BadRecordMAC       Description = 20
	RecordOverflow     Description = 22
	HandshakeFailure   Description = 40
	IllegalParameter   Description = 47
	DecodeError        Description = 50
	DecryptError       Description = 51
	InternalError      Description = 80
	MissingExtension   Description = 109
	UnknownPSKIdentity Description = 115
)

type Alert struct {
	Level       Level // This can be ignored.
	Description Description
}

func (a Alert) Bytes() []byte {
	return []byte{byte(a.Level), byte(a.Description)}
}

func (d Description) String() string {
	switch d {
	case CloseNotify:
		return "close_notify"
	case UnexpectedMessage:
		return "unexpected_message"
	case BadRecordMAC:
		return "bad_record_mac"
	case RecordOverflow:
		return "record_overflow"
	case HandshakeFailure:
		return "handshake_failure"
	case IllegalParameter:
		return "illegal_parameter"
	case DecodeError:
		return "decode_error"
	case DecryptError:
		return "decrypt_error"
	case InternalError:
		return "internal_error"
	case MissingExtension:
		return "missing_extension"
	case UnknownPSKIdentity:
		return "unknown_psk_identity"
	}

	return fmt.Sprintf("unknown: %d", d)
}

type Error struct {
	Description Description
	cause       error
}

func NewError(cause error, desc Description) Error {
	return Error{
		Description: desc,
		cause:       cause,
	}
}

func (e Error) Error() string {
	msg := ""
	if e.cause != nil {
		msg = e.cause.Error()
	}

	return fmt.Sprintf("alert(%s), %s", e.Description.String(), msg)
}

func (e Error) Cause() error {
	return e.cause
}

func (e Error) Unwrap() error {
	return e.cause
}

func (e Error) Is(err error) bool {
	return errors.Is(e.cause, err)
}

// DescriptionOf returns the alert carried by err, or InternalError.
func DescriptionOf(err error) Description {
	var alertErr Error
	if errors.As(err, &alertErr) {
		return alertErr.Description
	}
	return InternalError
}
