package fetch

import "fmt"

// ErrInvalidInput marks URLs rejected before any network call.
type ErrInvalidInput struct {
	URL    string
	Reason string
}

func (e ErrInvalidInput) Error() string {
	return fmt.Sprintf("invalid url %s: %s", e.URL, e.Reason)
}

// ErrPayloadTooLarge marks a response exceeding the configured size cap,
// whether announced via Content-Length or detected while streaming.
type ErrPayloadTooLarge struct {
	URL     string
	Limit   int64
	Length  int64
	Claimed bool
}

func (e ErrPayloadTooLarge) Error() string {
	if e.Claimed {
		return fmt.Sprintf("remote file is too big: allowed %d, content-length %d (%s)", e.Limit, e.Length, e.URL)
	}
	return fmt.Sprintf("remote file is too big: allowed %d (%s)", e.Limit, e.URL)
}

// ErrTimeout marks a fetch exceeding the bounded wait.
type ErrTimeout struct {
	URL string
}

func (e ErrTimeout) Error() string {
	return fmt.Sprintf("could not get content from %s because the connection timed out", e.URL)
}

// ErrUnreachable marks a connection-level failure.
type ErrUnreachable struct {
	URL   string
	Cause error
}

func (e ErrUnreachable) Error() string {
	return fmt.Sprintf("could not get content from %s because a connection error occurred: %v", e.URL, e.Cause)
}

func (e ErrUnreachable) Unwrap() error { return e.Cause }

// ErrRemote marks a non-2xx response.
type ErrRemote struct {
	URL        string
	StatusCode int
	Status     string
}

func (e ErrRemote) Error() string {
	return fmt.Sprintf("could not get content from %s: server responded with %s", e.URL, e.Status)
}
