package temporal

import (
	"context"

	"go.temporal.io/sdk/client"

	"github.com/relaypoint/dispatch"
)

// WorkflowClient abstracts the subset of the Temporal client surface the
// executor drives, so test doubles can substitute the remote client. The real
// adapter is obtained with Wrap; all error values produced by the wrapped
// client pass through untranslated.
type WorkflowClient interface {
	// ExecuteWorkflow issues a start call to the remote engine and returns a
	// handle to the new execution.
	ExecuteWorkflow(ctx context.Context, opts client.StartWorkflowOptions, workflow string, args ...any) (dispatch.Handle, error)

	// GetWorkflowHandle resolves a handle for an existing execution from its
	// workflow ID and run ID without issuing a remote call.
	GetWorkflowHandle(workflowID, runID string) dispatch.Handle

	// SignalWorkflow delivers a named payload to a running execution.
	SignalWorkflow(ctx context.Context, workflowID, runID, name string, payload any) error

	// Close closes the underlying connection.
	Close()
}

// Wrap adapts a concrete Temporal client to the WorkflowClient interface.
// The client is shared, not owned: closing the returned WorkflowClient closes
// the given client, so callers who inject one into an executor retain
// lifecycle responsibility.
func Wrap(c client.Client) WorkflowClient {
	return &workflowClient{c: c}
}

type workflowClient struct {
	c client.Client
}

func (w *workflowClient) ExecuteWorkflow(ctx context.Context, opts client.StartWorkflowOptions, workflow string, args ...any) (dispatch.Handle, error) {
	run, err := w.c.ExecuteWorkflow(ctx, opts, workflow, args...)
	if err != nil {
		return nil, err
	}
	return &workflowHandle{id: run.GetID(), runID: run.GetRunID(), run: run, c: w.c}, nil
}

func (w *workflowClient) GetWorkflowHandle(workflowID, runID string) dispatch.Handle {
	return &workflowHandle{id: workflowID, runID: runID, c: w.c}
}

func (w *workflowClient) SignalWorkflow(ctx context.Context, workflowID, runID, name string, payload any) error {
	return w.c.SignalWorkflow(ctx, workflowID, runID, name, payload)
}

func (w *workflowClient) Close() {
	w.c.Close()
}

// workflowHandle implements dispatch.Handle over a Temporal execution. run is
// set when the handle came from a start call; handles resolved by ID fetch the
// run lazily on Result.
type workflowHandle struct {
	id    string
	runID string
	run   client.WorkflowRun
	c     client.Client
}

func (h *workflowHandle) ID() string { return h.id }

func (h *workflowHandle) RunID() string { return h.runID }

func (h *workflowHandle) Result(ctx context.Context, valuePtr any) error {
	run := h.run
	if run == nil {
		run = h.c.GetWorkflow(ctx, h.id, h.runID)
	}
	return run.Get(ctx, valuePtr)
}

func (h *workflowHandle) Signal(ctx context.Context, name string, payload any) error {
	return h.c.SignalWorkflow(ctx, h.id, h.runID, name, payload)
}

func (h *workflowHandle) Terminate(ctx context.Context, reason string) error {
	return h.c.TerminateWorkflow(ctx, h.id, h.runID, reason)
}

func (h *workflowHandle) Cancel(ctx context.Context) error {
	return h.c.CancelWorkflow(ctx, h.id, h.runID)
}
