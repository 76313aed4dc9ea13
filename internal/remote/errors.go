package remote

import (
	"errors"
	"fmt"
)

// Kind classifies a remote store failure by how the workflow should react.
type Kind int

const (
	// KindNetwork covers transport failures and timeouts.
	KindNetwork Kind = iota
	// KindInvalidData covers 4xx responses other than auth and not-found.
	KindInvalidData
	// KindSessionExpired covers 401 and 403 responses.
	KindSessionExpired
	// KindNotFound covers 404 responses.
	KindNotFound
	// KindServer covers 5xx responses.
	KindServer
)

// StoreError is a classified failure from one of the remote stores.
type StoreError struct {
	Op     string
	Kind   Kind
	Status int
	Err    error
}

func (e *StoreError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: http %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the same call later could succeed.
func (e *StoreError) Transient() bool {
	return e.Kind == KindNetwork || e.Kind == KindServer
}

// UserMessage is the notification text shown to the field user.
func (e *StoreError) UserMessage() string {
	switch e.Kind {
	case KindInvalidData:
		return "the server rejected the visit data; check the form and try again"
	case KindSessionExpired:
		return "your session expired; sign in again"
	case KindNotFound:
		return "the record no longer exists on the server"
	case KindServer:
		return "the server had a problem; the visit was kept on this device"
	default:
		return "could not reach the server; the visit was kept on this device"
	}
}

func classify(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return KindSessionExpired
	case status == 404:
		return KindNotFound
	case status >= 400 && status < 500:
		return KindInvalidData
	default:
		return KindServer
	}
}

// KindOf extracts the failure kind; non-store errors count as network.
func KindOf(err error) Kind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindNetwork
}

// IsNotFound reports whether err is a 404 from a remote store.
func IsNotFound(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == KindNotFound
}

// FailureMessage returns the user-facing text for any sync failure.
func FailureMessage(err error) string {
	var se *StoreError
	if errors.As(err, &se) {
		return se.UserMessage()
	}
	return "could not reach the server; the visit was kept on this device"
}
