package services

import (
	"errors"
	"fmt"
)

var (
	// ErrUnprocessable means the recognition service explicitly reported it
	// could not detect a card in the photo. Surfaced differently from a
	// generic failure so the user is told to re-shoot, not to retry.
	ErrUnprocessable = errors.New("recognition service could not detect a card")

	// ErrInvalidResponse means a remote payload did not match the expected schema.
	ErrInvalidResponse = errors.New("invalid response from server")

	// ErrUnreachable is a transport-level failure before any response arrived.
	ErrUnreachable = errors.New("server unreachable")

	// ErrTimeout is a request that ran out of time.
	ErrTimeout = errors.New("request timed out")

	// ErrRateLimited is a local cooldown rejection; no network call was attempted.
	ErrRateLimited = errors.New("rate limited, try again shortly")
)

// ServerError carries the body of a non-2xx remote response.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("server error: %s", e.Message)
}
