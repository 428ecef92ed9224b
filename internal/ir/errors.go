package ir

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a caller-visible failure category.
type ErrorCode string

const (
	// CodeMalformedSeed means the seed text is not a signed 128-bit integer
	// literal. It is raised before any derivation or network call.
	CodeMalformedSeed ErrorCode = "MALFORMED_SEED"

	// CodeAddressAlreadyInUse means initialize targeted an address that
	// already holds a record. The existing record is untouched.
	CodeAddressAlreadyInUse ErrorCode = "ADDRESS_ALREADY_IN_USE"

	// CodeAlreadyClockedIn means ClockIn was requested while not off shift.
	CodeAlreadyClockedIn ErrorCode = "ALREADY_CLOCKED_IN"

	// CodeNotClockedIn covers every other transition the current state does
	// not permit.
	CodeNotClockedIn ErrorCode = "NOT_CLOCKED_IN"

	// CodeRecordNotFound means no initialized record exists at the address.
	CodeRecordNotFound ErrorCode = "RECORD_NOT_FOUND"

	// CodeChannelUnavailable means the submission channel failed before the
	// payload was handed to the executor.
	CodeChannelUnavailable ErrorCode = "CHANNEL_UNAVAILABLE"

	// CodeIndeterminate means the payload may or may not have been applied.
	CodeIndeterminate ErrorCode = "INDETERMINATE"

	// CodeInvalidInstruction means the executor refused a payload without
	// consulting record state: bad signature, unknown fields, address and
	// seed disagreement, or a replayed nonce.
	CodeInvalidInstruction ErrorCode = "INVALID_INSTRUCTION"
)

// anchorCodes are the numeric codes the on-chain program reported for its
// two custom errors.
var anchorCodes = map[ErrorCode]uint32{
	CodeAlreadyClockedIn: 6000,
	CodeNotClockedIn:     6001,
}

// Anchor returns the numeric program error code, if the code has one.
func (c ErrorCode) Anchor() (uint32, bool) {
	n, ok := anchorCodes[c]
	return n, ok
}

// Error is the typed failure shared by every layer. Internal layers may wrap
// it with fmt.Errorf; CodeOf and the predicates see through wrapping.
type Error struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Address identifies the affected record, when known.
	Address Address

	// Err is the underlying cause, if any.
	Err error
}

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates an Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error that carries an underlying cause.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithAddress returns a copy of e scoped to addr.
func (e *Error) WithAddress(addr Address) *Error {
	out := *e
	out.Address = addr
	return &out
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if !e.Address.IsZero() {
		msg = fmt.Sprintf("%s (address=%s)", msg, e.Address)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code, so errors.Is(err, &Error{Code: c}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsDomain reports whether err is an authoritative rejection by the executor.
// Domain rejections are final and never retried automatically.
func IsDomain(err error) bool {
	return Classify(err) == ClassRejected
}

// IsTransport reports whether err leaves the outcome of a submission unknown.
// The caller must re-fetch the record before deciding whether to retry.
func IsTransport(err error) bool {
	return Classify(err) == ClassUnconfirmed
}

// Class groups error codes by what the caller should conclude.
type Class int

const (
	// ClassNone is returned for a nil error.
	ClassNone Class = iota
	// ClassRejected: the action was invalid given current record state.
	ClassRejected
	// ClassUnconfirmed: the outcome could not be confirmed.
	ClassUnconfirmed
	// ClassInvalid: the request was refused before reaching record state.
	ClassInvalid
	// ClassInternal: anything without a taxonomy code.
	ClassInternal
)

// Classify maps err onto a Class.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	switch CodeOf(err) {
	case CodeAddressAlreadyInUse, CodeAlreadyClockedIn, CodeNotClockedIn, CodeRecordNotFound:
		return ClassRejected
	case CodeChannelUnavailable, CodeIndeterminate:
		return ClassUnconfirmed
	case CodeMalformedSeed, CodeInvalidInstruction:
		return ClassInvalid
	default:
		return ClassInternal
	}
}

// Summary is the caller-facing sentence for the class.
func (c Class) Summary() string {
	switch c {
	case ClassNone:
		return "ok"
	case ClassRejected:
		return "your action was invalid given current state"
	case ClassUnconfirmed:
		return "we could not confirm your action succeeded"
	case ClassInvalid:
		return "your request was not valid"
	default:
		return "something went wrong"
	}
}

// String returns a short lowercase name for the class.
func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassRejected:
		return "rejected"
	case ClassUnconfirmed:
		return "unconfirmed"
	case ClassInvalid:
		return "invalid"
	default:
		return "internal"
	}
}
