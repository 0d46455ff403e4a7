package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key, record or directory entry does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidRecord is returned when a persisted record fails restore validation.
var ErrInvalidRecord = errors.New("invalid record")

// ErrUnknownAction is returned when a step names an action that is neither
// built-in, registered, nor absent.
var ErrUnknownAction = errors.New("unknown action")

// ErrDestinationNotFound is returned when a step's "to" cannot be resolved.
var ErrDestinationNotFound = errors.New("destination not found")

// DefinitionError reports a malformed workflow document at load time.
type DefinitionError struct {
	File string
	Err  error
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("invalid workflow %s: %v", e.File, e.Err)
}

func (e *DefinitionError) Unwrap() error { return e.Err }

// StepEvaluationError reports a failure to template, resolve or route a step.
// The run that produced it has been exited.
type StepEvaluationError struct {
	RunID     string
	Workflow  string
	StepIndex int
	StepID    string
	Err       error
}

func (e *StepEvaluationError) Error() string {
	return fmt.Sprintf("workflow %q run %s: step %d (%s) evaluation failed: %v",
		e.Workflow, e.RunID, e.StepIndex, e.StepID, e.Err)
}

func (e *StepEvaluationError) Unwrap() error { return e.Err }

// DispatchError reports a failure of the resolved action itself.
// The run that produced it has been exited.
type DispatchError struct {
	RunID     string
	Workflow  string
	StepIndex int
	StepID    string
	Action    string
	Err       error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("workflow %q run %s: step %d (%s) action %q failed: %v",
		e.Workflow, e.RunID, e.StepIndex, e.StepID, e.Action, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// PersistenceError wraps a failure of the key/value backend.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
