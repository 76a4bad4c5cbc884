package remote

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned without any network I/O while the availability
// breaker is open.
var ErrUnavailable = errors.New("remote counter service unavailable")

// NetworkError is a failed remote call: a non-2xx status, a timeout, or a
// transport failure.
type NetworkError struct {
	// Op is the HTTP method.
	Op string

	// Key is the remote key addressed.
	Key string

	// Status is the HTTP status code, 0 when no response arrived.
	Status int

	// Timeout is set when the per-request deadline elapsed.
	Timeout bool

	// Err is the transport error, if any.
	Err error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s %s: timed out", e.Op, e.Key)
	case e.Status != 0:
		return fmt.Sprintf("%s %s: unexpected status %d", e.Op, e.Key, e.Status)
	default:
		return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
	}
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err wraps a *NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
