package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"parish/src-server/apperr"
)

func TestHTTPStatus(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"upload", &apperr.UploadError{Reason: "partial"}, http.StatusBadRequest},
		{"not image", &apperr.NotAnImageError{MIME: "text/plain"}, http.StatusUnsupportedMediaType},
		{
			"decode inside processing",
			&apperr.ProcessingError{Stage: "decode", Err: &apperr.DecodeError{Err: errors.New("eof")}},
			http.StatusUnsupportedMediaType,
		},
		{"processing", &apperr.ProcessingError{Stage: "encode", Err: errors.New("x")}, http.StatusUnprocessableEntity},
		{"storage", &apperr.StorageError{Op: "mkdir", Path: "/x", Err: errors.New("denied")}, http.StatusServiceUnavailable},
		{"validation", &apperr.ValidationError{Field: "date_from", Msg: "bad"}, http.StatusBadRequest},
		{"duplicate", &apperr.DuplicateError{Field: "email", Msg: "taken"}, http.StatusConflict},
		{"no events", fmt.Errorf("wrapped: %w", &apperr.NoEventsGeneratedError{}), http.StatusBadRequest},
		{"not found", &apperr.NotFoundError{Entity: "bell", ID: 3}, http.StatusNotFound},
		{"auth", &apperr.AuthError{Reason: apperr.AuthInactive}, http.StatusUnauthorized},
		{"forbidden", &apperr.ForbiddenError{Action: "delete bells"}, http.StatusForbidden},
		{"raw", errors.New("driver: bad connection"), http.StatusInternalServerError},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := apperr.HTTPStatus(tc.err); got != tc.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestUserMessageHidesRawErrors(t *testing.T) {
	msg := apperr.UserMessage(errors.New("pq: password authentication failed for user admin"))
	if msg != "Something went wrong, please try again." {
		t.Errorf("raw error leaked: %q", msg)
	}

	dup := &apperr.DuplicateError{Field: "email", Msg: "This email address is already registered."}
	if got := apperr.UserMessage(fmt.Errorf("Register: %w", dup)); got != dup.Msg {
		t.Errorf("UserMessage() = %q, want %q", got, dup.Msg)
	}
}

func TestIsAuthReason(t *testing.T) {
	err := fmt.Errorf("login: %w", &apperr.AuthError{Reason: apperr.AuthBadCredential})
	if !apperr.IsAuthReason(err, apperr.AuthBadCredential) {
		t.Error("expected bad-credential reason")
	}
	if apperr.IsAuthReason(err, apperr.AuthNotFound) {
		t.Error("unexpected not-found reason")
	}
}
