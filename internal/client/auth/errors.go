package auth

import "errors"

var (
	// ErrRefreshFailed is matched (errors.Is) by every *RefreshFailure.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrNoRefreshToken means there was nothing to refresh with.
	ErrNoRefreshToken = errors.New("no reference token available")

	// ErrIncompleteTokens means the refresh response lacked a usable token pair.
	ErrIncompleteTokens = errors.New("refresh response has no usable token")

	errRefreshAborted = errors.New("refresh aborted")
)

// RefreshFailure is delivered to the leader and every queued caller when a
// refresh attempt fails. Stored credentials have been cleared by then and
// the user has to log in again.
type RefreshFailure struct {
	Err error
}

func (e *RefreshFailure) Error() string {
	return "token refresh failed: " + e.Err.Error()
}

func (e *RefreshFailure) Unwrap() error {
	return e.Err
}

func (e *RefreshFailure) Is(target error) bool {
	return target == ErrRefreshFailed
}
