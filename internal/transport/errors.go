package transport

import (
	"errors"
	"fmt"
)

// ErrEmptyText is returned when asked to publish a blank message.
var ErrEmptyText = errors.New("message text is empty")

// Error is a non-success response from the publishing API.
type Error struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("x api returned %d: %s", e.StatusCode, e.Message)
}

// StatusCode extracts the HTTP status from err, or 0 if err is not an *Error.
func StatusCode(err error) int {
	var te *Error
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}
