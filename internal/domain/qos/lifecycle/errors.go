// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"errors"
	"fmt"
	"time"
)

// Error classes. Every error returned by the coordinator matches exactly one
// of these via errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrValidation          = errors.New("validation failed")
	ErrOutOfRange          = errors.New("out of range")
	ErrUnidentified        = errors.New("client not identified")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUpstreamRejected    = errors.New("upstream rejected")
	ErrInternal            = errors.New("internal error")
)

// Code is the stable machine-readable code exposed to callers.
type Code string

const (
	CodeNotFound              Code = "NOT_FOUND"
	CodeProfileNotFound       Code = "QUALITY_ON_DEMAND.QOS_PROFILE_NOT_FOUND"
	CodeConflict              Code = "CONFLICT"
	CodeSessionNotAllocated   Code = "QUALITY_ON_DEMAND.SESSION_NOT_ALLOCATED"
	CodeExtensionNotAllowed   Code = "QUALITY_ON_DEMAND.SESSION_EXTENSION_NOT_ALLOWED"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeInvalidSinkCredential Code = "INVALID_CREDENTIAL"
	CodeProfileNotApplicable  Code = "QUALITY_ON_DEMAND.QOS_PROFILE_NOT_APPLICABLE"
	CodeDurationOutOfRange    Code = "QUALITY_ON_DEMAND.DURATION_OUT_OF_RANGE"
	CodeUnauthenticated       Code = "UNAUTHENTICATED"
	CodeServiceUnavailable    Code = "SERVICE_UNAVAILABLE"
	CodeBadGateway            Code = "BAD_GATEWAY"
	CodeInternal              Code = "INTERNAL"
)

// Error is the coordinator's typed error. It carries a class (for errors.Is),
// a stable code, a human-readable message and optional context.
type Error struct {
	Class   error
	Code    Code
	Message string

	// ConflictSessionID and ConflictExpiresAt describe the clashing session
	// and are only set for overlap conflicts. Masking happens at the edge.
	ConflictSessionID string
	ConflictExpiresAt time.Time

	// UpstreamStatus is the status reported by the network provider, if any.
	UpstreamStatus int

	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Class != nil {
		msg = e.Class.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Is(target error) bool {
	return target != nil && target == e.Class
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(class error, code Code, err error, format string, args ...any) *Error {
	return &Error{Class: class, Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func NotFound(code Code, format string, args ...any) *Error {
	return newError(ErrNotFound, code, nil, format, args...)
}

func Conflict(code Code, format string, args ...any) *Error {
	return newError(ErrConflict, code, nil, format, args...)
}

// OverlapConflict reports an existing session occupying the same flow.
func OverlapConflict(sessionID string, expiresAt time.Time) *Error {
	e := newError(ErrConflict, CodeConflict, nil, "conflict with existing session %s until %s", sessionID, expiresAt.UTC().Format(time.RFC3339))
	e.ConflictSessionID = sessionID
	e.ConflictExpiresAt = expiresAt
	return e
}

func Validation(code Code, err error, format string, args ...any) *Error {
	return newError(ErrValidation, code, err, format, args...)
}

func OutOfRange(format string, args ...any) *Error {
	return newError(ErrOutOfRange, CodeDurationOutOfRange, nil, format, args...)
}

func Unidentified() *Error {
	return newError(ErrUnidentified, CodeUnauthenticated, nil, "client identity could not be resolved")
}

func UpstreamUnavailable(status int, err error, format string, args ...any) *Error {
	e := newError(ErrUpstreamUnavailable, CodeServiceUnavailable, err, format, args...)
	e.UpstreamStatus = status
	return e
}

func UpstreamRejected(status int, err error, format string, args ...any) *Error {
	e := newError(ErrUpstreamRejected, CodeBadGateway, err, format, args...)
	e.UpstreamStatus = status
	return e
}

func Internal(err error, format string, args ...any) *Error {
	return newError(ErrInternal, CodeInternal, err, format, args...)
}

// CodeOf returns the stable code of err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return CodeInternal
}

// ClassOf returns the error class of err, defaulting to ErrInternal.
func ClassOf(err error) error {
	for _, class := range []error{
		ErrNotFound, ErrConflict, ErrValidation, ErrOutOfRange, ErrUnidentified,
		ErrUpstreamUnavailable, ErrUpstreamRejected, ErrInternal,
	} {
		if errors.Is(err, class) {
			return class
		}
	}
	return ErrInternal
}
