package apperr

import (
	"errors"
	"net/http"
)

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	var (
		uploadErr     *UploadError
		notImageErr   *NotAnImageError
		decodeErr     *DecodeError
		storageErr    *StorageError
		processingErr *ProcessingError
		validationErr *ValidationError
		duplicateErr  *DuplicateError
		noEventsErr   *NoEventsGeneratedError
		notFoundErr   *NotFoundError
		authErr       *AuthError
		forbiddenErr  *ForbiddenError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &storageErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &notImageErr), errors.As(err, &decodeErr):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &uploadErr), errors.As(err, &validationErr), errors.As(err, &noEventsErr):
		return http.StatusBadRequest
	case errors.As(err, &processingErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &duplicateErr):
		return http.StatusConflict
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &forbiddenErr):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// UserMessage is the text shown to the user, the flash message of the API.
// Unknown errors never leak their text.
func UserMessage(err error) string {
	var (
		uploadErr     *UploadError
		notImageErr   *NotAnImageError
		decodeErr     *DecodeError
		storageErr    *StorageError
		processingErr *ProcessingError
		validationErr *ValidationError
		duplicateErr  *DuplicateError
		noEventsErr   *NoEventsGeneratedError
		notFoundErr   *NotFoundError
		authErr       *AuthError
		forbiddenErr  *ForbiddenError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &storageErr):
		return "The file storage is not available right now, please try again later."
	case errors.As(err, &uploadErr):
		return "The upload did not complete, please try again."
	case errors.As(err, &notImageErr):
		return "Only JPEG, PNG, GIF or WebP images are allowed."
	case errors.As(err, &decodeErr):
		return "The image seems to be damaged and can't be read."
	case errors.As(err, &processingErr):
		return "Sorry, the image could not be processed. Please try again."
	case errors.As(err, &validationErr):
		return "invalid " + validationErr.Field + ": " + validationErr.Msg
	case errors.As(err, &duplicateErr):
		return duplicateErr.Msg
	case errors.As(err, &noEventsErr):
		return noEventsErr.Error()
	case errors.As(err, &notFoundErr):
		return notFoundErr.Error()
	case errors.As(err, &authErr):
		return authErr.Error()
	case errors.As(err, &forbiddenErr):
		return forbiddenErr.Error()
	}
	return "Something went wrong, please try again."
}
