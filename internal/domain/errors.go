package domain

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("flightapi: not found")

// APIError is a non-2xx answer from the backend. The body is either
// {error, details} JSON or plain text; Raw always keeps what was sent.
type APIError struct {
	Status  int
	Message string
	Details string
	Raw     string
}

func (e *APIError) Error() string {
	msg := e.UserMessage()
	if msg == "" {
		msg = "no body"
	}
	return fmt.Sprintf("backend status %d: %s", e.Status, msg)
}

// UserMessage is the server-provided text, verbatim when there is one.
func (e *APIError) UserMessage() string {
	switch {
	case e.Message != "" && e.Details != "":
		return e.Message + ": " + e.Details
	case e.Message != "":
		return e.Message
	case e.Details != "":
		return e.Details
	default:
		return e.Raw
	}
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == 404
}
