package consoleapi

import (
	"errors"
	"fmt"
)

// ErrNoCredentials is returned when neither the request nor the client carries a token.
var ErrNoCredentials = errors.New("no backend credentials available")

// ErrorResponse represents an error response from the API
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code == "" && e.Message == "" {
		return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("API error (status %d): %s - %s", e.StatusCode, e.Code, e.Message)
}

// BackendMessage is the text the backend wants shown to the user.
func (e *APIError) BackendMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
