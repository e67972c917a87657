package api

import "fmt"

// TransportError indicates the request never completed: the server was
// unreachable, the connection dropped, or the call timed out. These are always
// recoverable by a user-initiated retry and never change client state.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: could not reach server: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectedError indicates the server answered with a non-success status and,
// usually, a reason. Session and document state are left untouched by the
// caller; the reason is surfaced to the user.
type RejectedError struct {
	Op     string
	Status int
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: server rejected request (%d): %s", e.Op, e.Status, e.Reason)
}
