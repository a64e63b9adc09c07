package client

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRejected means the backend answered 2xx but did not confirm the
	// operation (AddVisit without "success", DutyOn without a tracker id).
	ErrRejected     = errors.New("request rejected by server")
	ErrNoThumbnail  = errors.New("identity has no thumbnail")
	ErrInvalidReply = errors.New("invalid server response")
)

const maxErrorBody = 512

// StatusError is a non-2xx response that maps to no sentinel.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}
