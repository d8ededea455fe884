// Package inmem provides an in-memory executor for development and tests. It
// runs workflow handlers in goroutines with no durability and no replay
// semantics and should not be used for production workloads.
package inmem

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relaypoint/dispatch"
)

// RunStatus is the lifecycle state of an in-memory workflow execution.
type RunStatus string

const (
	RunStatusRunning    RunStatus = "running"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCanceled   RunStatus = "canceled"
	RunStatusTerminated RunStatus = "terminated"
)

type (
	// Executor implements dispatch.Executor entirely in-process. Workflow
	// handlers run in goroutines, task dispatch calls the task function
	// directly, and signals travel over channels.
	Executor struct {
		cfg      dispatch.Config
		registry *dispatch.Registry

		mu       sync.RWMutex
		runs     map[string]*handle
		statuses map[string]RunStatus // keyed by run ID
	}

	handle struct {
		id    string
		runID string
		done  chan struct{}
		wfCtx *wfCtx

		mu      sync.Mutex
		result  any
		err     error
		termErr error
	}

	wfCtx struct {
		ctx    context.Context
		cancel context.CancelCauseFunc
		id     string
		runID  string
		exec   *Executor

		mu      sync.Mutex
		signals map[string]chan any
	}

	taskFuture struct {
		ready  chan struct{}
		result any
		err    error
	}

	signalReceiver struct {
		ch <-chan any
	}
)

var _ dispatch.Executor = (*Executor)(nil)

// New constructs an in-memory executor sharing the given registry.
func New(cfg dispatch.Config, reg *dispatch.Registry) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, errors.New("inmem executor: registry is required")
	}
	return &Executor{
		cfg:      cfg,
		registry: reg,
		runs:     make(map[string]*handle),
		statuses: make(map[string]RunStatus),
	}, nil
}

// StartWorkflow launches the named registered workflow in a goroutine and
// returns a handle to the run. The run detaches from the caller's context;
// use Terminate or Cancel on the handle to stop it.
func (e *Executor) StartWorkflow(ctx context.Context, name string, args []any, opts ...dispatch.StartOption) (dispatch.Handle, error) {
	def, err := e.registry.Workflow(name)
	if err != nil {
		return nil, err
	}
	input := dispatch.PackArgs(args)
	if err := e.registry.ValidateInput(name, input); err != nil {
		return nil, err
	}

	sopts := dispatch.BuildStartOptions(opts...)
	id := sopts.WorkflowID
	if id == "" {
		id = name + "-" + uuid.NewString()
	}

	runCtx, cancel := context.WithCancelCause(context.Background())
	tcancel := context.CancelFunc(func() {})
	if sopts.RunTimeout > 0 {
		runCtx, tcancel = context.WithTimeout(runCtx, sopts.RunTimeout)
	}

	wctx := &wfCtx{
		ctx:     runCtx,
		cancel:  cancel,
		id:      id,
		runID:   uuid.NewString(),
		exec:    e,
		signals: make(map[string]chan any),
	}
	h := &handle{id: id, runID: wctx.runID, done: make(chan struct{}), wfCtx: wctx}

	e.mu.Lock()
	if _, dup := e.runs[id]; dup {
		e.mu.Unlock()
		tcancel()
		cancel(nil)
		return nil, fmt.Errorf("workflow id %q already in use", id)
	}
	e.runs[id] = h
	e.statuses[wctx.runID] = RunStatusRunning
	e.mu.Unlock()

	go func() {
		defer close(h.done)
		defer tcancel()
		res, err := def.Handler(wctx, input)
		h.mu.Lock()
		if err != nil && h.termErr != nil {
			err = h.termErr
		}
		h.result = res
		h.err = err
		h.mu.Unlock()
		e.mu.Lock()
		switch {
		case err == nil:
			e.statuses[wctx.runID] = RunStatusCompleted
		case errors.Is(err, dispatch.ErrTerminated):
			e.statuses[wctx.runID] = RunStatusTerminated
		case errors.Is(err, context.Canceled):
			e.statuses[wctx.runID] = RunStatusCanceled
		default:
			e.statuses[wctx.runID] = RunStatusFailed
		}
		e.mu.Unlock()
	}()

	return h, nil
}

// ExecuteWorkflow starts the named workflow and waits for its result, bounded
// by the configured timeout.
func (e *Executor) ExecuteWorkflow(ctx context.Context, name string, args []any, result any, opts ...dispatch.StartOption) error {
	h, err := e.StartWorkflow(ctx, name, args, opts...)
	if err != nil {
		return err
	}
	waitCtx := ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	return h.Result(waitCtx, result)
}

// TerminateWorkflow terminates the run matching exactly the given workflow ID
// and run ID.
func (e *Executor) TerminateWorkflow(ctx context.Context, workflowID, runID, reason string) error {
	e.mu.RLock()
	h, ok := e.runs[workflowID]
	e.mu.RUnlock()
	if !ok || (runID != "" && h.runID != runID) {
		return dispatch.ErrWorkflowNotFound
	}
	return h.Terminate(ctx, reason)
}

// SignalWorkflow delivers a named payload to a running execution.
func (e *Executor) SignalWorkflow(ctx context.Context, workflowID, runID, name string, payload any) error {
	e.mu.RLock()
	h, ok := e.runs[workflowID]
	e.mu.RUnlock()
	if !ok || (runID != "" && h.runID != runID) {
		return dispatch.ErrWorkflowNotFound
	}
	return h.Signal(ctx, name, payload)
}

// WrapAsActivity records fn in the registry under name. In-memory dispatch
// has no worker to bind to, so registration is the whole operation.
func (e *Executor) WrapAsActivity(name string, fn any) (*dispatch.Task, error) {
	task, err := dispatch.NewTask(name, fn)
	if err != nil {
		return nil, err
	}
	if err := e.registry.RegisterTask(task); err != nil {
		return nil, err
	}
	return task, nil
}

// ExecuteTask dispatches a task and blocks for its result. Routing matches
// the Temporal executor: inside a workflow context the call goes through the
// WorkflowContext, outside one the task function runs directly.
func (e *Executor) ExecuteTask(ctx context.Context, task *dispatch.Task, args []any, result any) error {
	if task == nil {
		return errors.New("inmem executor: task is required")
	}
	if wc := dispatch.WorkflowContextFrom(ctx); wc != nil {
		return wc.ExecuteTask(ctx, dispatch.TaskCall{Name: task.Name(), Args: args, Options: task.Defaults()}, result)
	}
	out, err := task.Call(ctx, args)
	if err != nil {
		return err
	}
	return dispatch.Assign(result, out)
}

// ExecuteTaskAsync dispatches a task and returns a Future for its pending
// result, routed the same way as ExecuteTask.
func (e *Executor) ExecuteTaskAsync(ctx context.Context, task *dispatch.Task, args []any) (dispatch.Future, error) {
	if task == nil {
		return nil, errors.New("inmem executor: task is required")
	}
	if wc := dispatch.WorkflowContextFrom(ctx); wc != nil {
		return wc.ExecuteTaskAsync(ctx, dispatch.TaskCall{Name: task.Name(), Args: args, Options: task.Defaults()})
	}
	return task.CallAsync(ctx, args), nil
}

// Close is a no-op; in-memory runs hold no external resources.
func (e *Executor) Close() error { return nil }

// RunStatus reports the lifecycle state of the execution with the given run ID.
func (e *Executor) RunStatus(runID string) (RunStatus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	status, ok := e.statuses[runID]
	if !ok {
		return "", dispatch.ErrWorkflowNotFound
	}
	return status, nil
}

// Registry returns the shared application registry.
func (e *Executor) Registry() *dispatch.Registry { return e.registry }

func (h *handle) ID() string { return h.id }

func (h *handle) RunID() string { return h.runID }

func (h *handle) Result(ctx context.Context, valuePtr any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	return dispatch.Assign(valuePtr, h.result)
}

func (h *handle) Signal(ctx context.Context, name string, payload any) error {
	ch := h.wfCtx.signalChannel(name)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return errors.New("workflow completed")
	case ch <- payload:
		return nil
	}
}

// Terminate stops the run by canceling its context. The handler observes the
// cancellation; the handle reports the termination error with the reason.
func (h *handle) Terminate(_ context.Context, reason string) error {
	select {
	case <-h.done:
		return dispatch.ErrWorkflowNotFound
	default:
	}
	termErr := fmt.Errorf("%w: %s", dispatch.ErrTerminated, reason)
	h.mu.Lock()
	h.termErr = termErr
	h.mu.Unlock()
	h.wfCtx.cancel(termErr)
	return nil
}

func (h *handle) Cancel(_ context.Context) error {
	h.wfCtx.cancel(context.Canceled)
	return nil
}

func (w *wfCtx) Context() context.Context {
	return dispatch.WithWorkflowContext(w.ctx, w)
}

func (w *wfCtx) WorkflowID() string { return w.id }

func (w *wfCtx) RunID() string { return w.runID }

func (w *wfCtx) Now() time.Time { return time.Now() }

func (w *wfCtx) ExecuteTask(ctx context.Context, call dispatch.TaskCall, result any) error {
	fut, err := w.ExecuteTaskAsync(ctx, call)
	if err != nil {
		return err
	}
	return fut.Get(ctx, result)
}

func (w *wfCtx) ExecuteTaskAsync(ctx context.Context, call dispatch.TaskCall) (dispatch.Future, error) {
	if call.Name == "" {
		return nil, errors.New("task name is required")
	}
	task, err := w.exec.registry.Task(call.Name)
	if err != nil {
		return nil, err
	}

	timeout := call.Options.Timeout
	if timeout == 0 {
		timeout = task.Defaults().Timeout
	}

	fut := &taskFuture{ready: make(chan struct{})}
	go func() {
		defer close(fut.ready)
		actCtx, cancel := withOptionalTimeout(w.ctx, timeout)
		defer cancel()
		fut.result, fut.err = task.Call(actCtx, call.Args)
	}()
	return fut, nil
}

func (w *wfCtx) Signals(name string) dispatch.Receiver {
	return signalReceiver{ch: w.signalChannel(name)}
}

func (w *wfCtx) signalChannel(name string) chan any {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.signals[name]
	if !ok {
		ch = make(chan any, 1)
		w.signals[name] = ch
	}
	return ch
}

func (f *taskFuture) Get(ctx context.Context, valuePtr any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.ready:
	}
	if f.err != nil {
		return f.err
	}
	return dispatch.Assign(valuePtr, f.result)
}

func (f *taskFuture) IsReady() bool {
	select {
	case <-f.ready:
		return true
	default:
		return false
	}
}

func (r signalReceiver) Receive(ctx context.Context, valuePtr any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case val := <-r.ch:
		return dispatch.Assign(valuePtr, val)
	}
}

func (r signalReceiver) ReceiveAsync(valuePtr any) bool {
	select {
	case val := <-r.ch:
		return dispatch.Assign(valuePtr, val) == nil
	default:
		return false
	}
}

func withOptionalTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, timeout)
}
