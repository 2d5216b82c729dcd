package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidInput is returned for malformed or missing fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned when a credential or token is missing or does not match.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned for insufficient rights and for invalid or revoked tokens.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique field is already taken.
	ErrConflict = errors.New("already exists")
	// ErrInconsistent is returned when stored records reference each other incorrectly.
	ErrInconsistent = errors.New("inconsistent data")
	// ErrUnavailable is returned when a store fails or times out.
	ErrUnavailable = errors.New("storage unavailable")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Message: e.Message,
		Code:    e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Client errors keep the
// wrapped message; server errors never expose it.
//
// Conflicts answer 403, not 409, to stay compatible with existing clients.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidInput):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_INPUT")
	case errors.Is(err, ErrUnauthorized):
		return NewHTTPError(http.StatusUnauthorized, err.Error(), "UNAUTHORIZED")
	case errors.Is(err, ErrConflict):
		return NewHTTPError(http.StatusForbidden, err.Error(), "CONFLICT")
	case errors.Is(err, ErrForbidden):
		return NewHTTPError(http.StatusForbidden, err.Error(), "FORBIDDEN")
	case errors.Is(err, ErrNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, ErrInconsistent):
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INCONSISTENT_DATA")
	case errors.Is(err, ErrUnavailable):
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "UNAVAILABLE")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
