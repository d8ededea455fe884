package temporal

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/relaypoint/dispatch"
)

// NewWorkflowContext adapts a Temporal workflow.Context into the
// dispatch.WorkflowContext used by executor task dispatch. Use this when
// calling dispatch helpers from workflows that are not started through the
// executor but run in the same Temporal worker.
func NewWorkflowContext(e *Executor, ctx workflow.Context) dispatch.WorkflowContext {
	return newWorkflowContext(e, ctx)
}

func newWorkflowContext(e *Executor, ctx workflow.Context) *workflowContext {
	info := workflow.GetInfo(ctx)
	return &workflowContext{
		executor:   e,
		ctx:        ctx,
		workflowID: info.WorkflowExecution.ID,
		runID:      info.WorkflowExecution.RunID,
	}
}

// workflowContext implements dispatch.WorkflowContext over Temporal's
// deterministic workflow context. Task dispatch maps to activity execution.
type workflowContext struct {
	executor   *Executor
	ctx        workflow.Context
	workflowID string
	runID      string
}

func (w *workflowContext) Context() context.Context {
	return dispatch.WithWorkflowContext(context.Background(), w)
}

func (w *workflowContext) WorkflowID() string { return w.workflowID }

func (w *workflowContext) RunID() string { return w.runID }

func (w *workflowContext) Now() time.Time {
	return workflow.Now(w.ctx)
}

func (w *workflowContext) ExecuteTask(ctx context.Context, call dispatch.TaskCall, result any) error {
	fut, err := w.ExecuteTaskAsync(ctx, call)
	if err != nil {
		return err
	}
	return fut.Get(ctx, result)
}

func (w *workflowContext) ExecuteTaskAsync(_ context.Context, call dispatch.TaskCall) (dispatch.Future, error) {
	if call.Name == "" {
		return nil, errors.New("task name is required")
	}
	actx := workflow.WithActivityOptions(w.ctx, w.activityOptions(call))
	fut := workflow.ExecuteActivity(actx, call.Name, call.Args...)
	return &activityFuture{future: fut, ctx: actx}, nil
}

func (w *workflowContext) Signals(name string) dispatch.Receiver {
	return &signalReceiver{
		ctx: w.ctx,
		ch:  workflow.GetSignalChannel(w.ctx, name),
	}
}

// activityOptions merges the task's registered defaults with the per-call
// overrides, then fills in the executor-level queue and timeout defaults.
func (w *workflowContext) activityOptions(call dispatch.TaskCall) workflow.ActivityOptions {
	merged := call.Options
	if task, err := w.executor.registry.Task(call.Name); err == nil {
		merged = mergeTaskOptions(task.Defaults(), call.Options)
	}

	queue := merged.Queue
	if queue == "" {
		queue = w.executor.cfg.TaskQueue
	}
	timeout := merged.Timeout
	if timeout == 0 {
		timeout = defaultTaskTimeout
	}

	return workflow.ActivityOptions{
		TaskQueue:           queue,
		StartToCloseTimeout: timeout,
		RetryPolicy:         convertRetryPolicy(merged.RetryPolicy),
	}
}

// activityFuture adapts a Temporal workflow.Future. Get ignores the Go
// context: blocking is governed by the workflow context, per Temporal's
// determinism rules.
type activityFuture struct {
	future workflow.Future
	ctx    workflow.Context
}

func (f *activityFuture) Get(_ context.Context, valuePtr any) error {
	return f.future.Get(f.ctx, valuePtr)
}

func (f *activityFuture) IsReady() bool {
	return f.future.IsReady()
}

// signalReceiver adapts a Temporal signal channel.
type signalReceiver struct {
	ctx workflow.Context
	ch  workflow.ReceiveChannel
}

func (r *signalReceiver) Receive(ctx context.Context, valuePtr any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.ch.Receive(r.ctx, valuePtr)
	return nil
}

func (r *signalReceiver) ReceiveAsync(valuePtr any) bool {
	return r.ch.ReceiveAsync(valuePtr)
}
