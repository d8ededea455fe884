package dispatch

import "errors"

var (
	// ErrWorkflowNotFound indicates that no workflow definition is registered
	// under the requested name.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrTaskNotFound indicates that no task is registered under the requested name.
	ErrTaskNotFound = errors.New("task not found")

	// ErrWorkflowAlreadyRegistered indicates a duplicate workflow registration.
	ErrWorkflowAlreadyRegistered = errors.New("workflow already registered")

	// ErrTaskAlreadyRegistered indicates a duplicate task registration.
	ErrTaskAlreadyRegistered = errors.New("task already registered")

	// ErrTerminated indicates a workflow execution was terminated on request.
	ErrTerminated = errors.New("workflow terminated")
)
