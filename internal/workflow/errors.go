package workflow

import "errors"

var (
	// ErrNotFound means the entity id does not exist in the module store.
	ErrNotFound = errors.New("entity not found")
	// ErrInvalidStatus means the requested status is not in the module's
	// known status set (built-in plus configured custom statuses).
	ErrInvalidStatus = errors.New("unknown status")
	// ErrIllegalTransition means the requested status is known but not
	// reachable from the entity's current status.
	ErrIllegalTransition = errors.New("transition not allowed from current status")
	// ErrConflict means a concurrent writer updated the entity first; the
	// caller should re-fetch and retry.
	ErrConflict = errors.New("entity was modified concurrently")
	// ErrActionPending means an administrative action is already pending.
	ErrActionPending = errors.New("an administrative action is already pending")
	// ErrNoActionPending means there is no administrative action to resolve.
	ErrNoActionPending = errors.New("no administrative action is pending")
	// ErrUnknownField means a detail update named a column the module does
	// not carry.
	ErrUnknownField = errors.New("unknown field")
	// ErrUnknownAction means the requested administrative action is not one
	// of the supported kinds.
	ErrUnknownAction = errors.New("unknown administrative action")
)
