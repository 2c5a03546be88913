// Package rhierr is the flat, typed error taxonomy shared by the trade-listing
// dispatcher, subscriber, and supervisor.
package rhierr

import (
	"errors"
	"fmt"
)

type Family string

const (
	FamilyProtocol      Family = "protocol"
	FamilyAuthorization Family = "authorization"
	FamilyState         Family = "state"
	FamilyPrecondition  Family = "precondition"
)

type Code string

const (
	UnsupportedKind      Code = "unsupported_kind"
	InvalidEnvelope      Code = "invalid_envelope"
	InvalidPayload       Code = "invalid_payload"
	MissingRecipient     Code = "missing_recipient"
	MissingTag           Code = "missing_tag"
	TagMismatch          Code = "tag_mismatch"
	InvalidListingAddr   Code = "invalid_listing_addr"
	InvalidOrder         Code = "invalid_order"
	Unauthorized         Code = "unauthorized"
	MissingOrder         Code = "missing_order"
	InvalidTransition    Code = "invalid_transition"
	ListingNotValidated  Code = "listing_not_validated"
	ListingEventMismatch Code = "listing_event_mismatch"
)

// Error is the typed error every dispatcher handler returns. Code is what
// the subscriber and feedback path classify on; Family groups related codes
// (protocol-level, authorization, state-machine, precondition) for callers
// that only care about the broad category.
type Error struct {
	Family  Family
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(family Family, code Code, msg string) *Error {
	return &Error{Family: family, Code: code, Message: msg}
}

func Newf(family Family, code Code, format string, args ...any) *Error {
	return New(family, code, fmt.Sprintf(format, args...))
}

func Wrap(family Family, code Code, msg string, err error) *Error {
	return &Error{Family: family, Code: code, Message: msg, Err: err}
}

// Silent reports whether the subscriber should drop the event without
// emitting a job-feedback event (UnsupportedKind, MissingRecipient).
func Silent(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == UnsupportedKind || e.Code == MissingRecipient
}

// CodeOf extracts the Code of err, or "" if err is not (or does not wrap) an *Error.
func CodeOf(err error) Code {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}
