// Package workflow holds the per-view state containers: upload page,
// collection board, summariser and mutation actions.
package workflow

import "errors"

var (
	// ErrBusy is returned when an action is re-triggered while its previous
	// invocation is still outstanding.
	ErrBusy = errors.New("action already in progress")
	// ErrInvalidState is returned for a transition the current phase does not allow.
	ErrInvalidState = errors.New("action not allowed in current state")
	// ErrDeclined is returned when the user refuses a confirmation prompt.
	ErrDeclined = errors.New("action declined")
)

// ValidationError is a client-side check that failed before any request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// BackendError wraps a failed backend call with the message shown to the user.
type BackendError struct {
	Message string
	Err     error
}

func (e *BackendError) Error() string { return e.Message }

func (e *BackendError) Unwrap() error { return e.Err }

// inFlight is a per-action disabled flag.
type inFlight struct {
	active map[string]bool
}

func (f *inFlight) begin(action string) bool {
	if f.active == nil {
		f.active = make(map[string]bool)
	}
	if f.active[action] {
		return false
	}
	f.active[action] = true
	return true
}

func (f *inFlight) end(action string) {
	delete(f.active, action)
}

func (f *inFlight) running(action string) bool {
	return f.active[action]
}
