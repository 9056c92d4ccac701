package impact

import "fmt"

// AuthError indicates invalid or expired credentials. It is fatal to the
// current operation and is never retried automatically.
type AuthError struct {
	StatusCode int
	Op         string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed (status %d)", e.Op, e.StatusCode)
}

// RemoteError indicates a non-auth failure from the remote API: a 5xx
// response, an unexpected status, or a body that could not be parsed.
type RemoteError struct {
	StatusCode int
	Op         string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: remote API error: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: remote API returned status %d", e.Op, e.StatusCode)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
