package datalayer

import (
	"errors"
	"fmt"
)

// ClientFetchError is a failed read or upload against the gallery server.
type ClientFetchError struct {
	// Key is the address that was requested.
	Key string
	// StatusCode is zero when the server could not be reached.
	StatusCode int
	// Code is the server's error code, when it sent one.
	Code    string
	Message string
	Err     error
}

func (e *ClientFetchError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("fetch %s: %s", e.Key, e.Message)
	}
	return fmt.Sprintf("fetch %s: status %d: %s", e.Key, e.StatusCode, e.Message)
}

func (e *ClientFetchError) Unwrap() error {
	return e.Err
}

// asFetchError wraps err as a *ClientFetchError unless it already is one.
func asFetchError(key string, err error) *ClientFetchError {
	var fe *ClientFetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &ClientFetchError{Key: key, Message: err.Error(), Err: err}
}
