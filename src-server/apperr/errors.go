// Package apperr holds the error kinds that are allowed to reach the HTTP
// layer. Service packages wrap file system and database failures into one of
// these before returning, so handlers only ever branch on this package.
package apperr

import (
	"errors"
	"fmt"
)

// The upload itself is broken (size limit, partial transfer, missing file).
type UploadError struct {
	Reason string
	Err    error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload failed: %s: %v", e.Reason, e.Err)
	}
	return "upload failed: " + e.Reason
}

func (e *UploadError) Unwrap() error { return e.Err }

type NotAnImageError struct {
	MIME string
}

func (e *NotAnImageError) Error() string {
	return fmt.Sprintf("not a supported image: %q", e.MIME)
}

type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "can't decode image: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// ProcessingError is what the image pipeline reports for every stage that is
// not a storage problem. Err is the specific cause (UploadError, DecodeError...).
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("image processing failed at %s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// StorageError means the storage directory or file can't be created/written.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage unavailable: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Field, e.Msg, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// DuplicateError is a unique-constraint conflict; Msg is safe to show.
type DuplicateError struct {
	Field string
	Msg   string
	Err   error
}

func (e *DuplicateError) Error() string { return e.Msg }
func (e *DuplicateError) Unwrap() error { return e.Err }

type NoEventsGeneratedError struct{}

func (e *NoEventsGeneratedError) Error() string {
	return "no events were added, check the selected weekdays and the date range"
}

type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

type AuthReason int

const (
	AuthNotFound AuthReason = iota + 1
	AuthInactive
	AuthBadCredential
	AuthNotLoggedIn
)

func (r AuthReason) String() string {
	switch r {
	case AuthNotFound:
		return "not-found"
	case AuthInactive:
		return "inactive"
	case AuthBadCredential:
		return "bad-credential"
	case AuthNotLoggedIn:
		return "not-logged-in"
	}
	return "unknown"
}

type AuthError struct {
	Reason AuthReason
}

func (e *AuthError) Error() string {
	switch e.Reason {
	case AuthNotFound:
		return "the e-mail is not registered"
	case AuthInactive:
		return "the account is not active"
	case AuthBadCredential:
		return "the password is incorrect"
	case AuthNotLoggedIn:
		return "please log in first"
	}
	return "authentication failed"
}

type ForbiddenError struct {
	Action string
}

func (e *ForbiddenError) Error() string {
	return "not allowed to " + e.Action
}

// IsAuthReason reports whether err is an AuthError with the given reason.
func IsAuthReason(err error, reason AuthReason) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Reason == reason
}
