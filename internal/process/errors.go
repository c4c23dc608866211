package process

import (
	"errors"
	"fmt"
)

// ErrProcessNotFound reports an unknown process ID on the platform surface.
var ErrProcessNotFound = errors.New("process not found")

// StateError reports an operation invalid for the process's current status.
type StateError struct {
	ProcessID string
	Status    Status
	Op        string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("process %s: cannot %s in status %s", e.ProcessID, e.Op, e.Status)
}

// ActionFailedError is the terminal error of a run whose action exhausted
// its retry budget with no recovery path.
type ActionFailedError struct {
	Action   string
	Attempts int
	Err      error
}

func (e *ActionFailedError) Error() string {
	return fmt.Sprintf("action %s failed after %d attempt(s): %v", e.Action, e.Attempts, e.Err)
}

func (e *ActionFailedError) Unwrap() error { return e.Err }

// StuckError is the terminal error of a run the stuck policy chose (or
// defaulted) to fail. The diagnosis stays available on the process.
type StuckError struct {
	Goal string
}

func (e *StuckError) Error() string {
	return fmt.Sprintf("no plan found for goal %s", e.Goal)
}
