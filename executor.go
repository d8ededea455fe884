// Package dispatch defines a thin execution layer that routes workflow and
// task execution to a durable orchestration backend. It provides pluggable
// interfaces so application code can target Temporal or an in-memory backend
// without modification.
//
// # Core Abstractions
//
//   - Executor: Starts, awaits and terminates workflow executions and
//     dispatches registered tasks. Implementations translate these calls into
//     backend client operations; they own no scheduling, retry, or recovery
//     logic of their own.
//
//   - Registry: The application context shared with an executor. It holds the
//     named workflow definitions and tasks an executor may launch.
//
//   - Handle: A reference to a running workflow execution used to wait for the
//     result, signal, cancel, or terminate it.
//
//   - WorkflowContext: The deterministic surface available inside workflow
//     handlers. Task dispatch performed through a WorkflowContext is routed
//     through the backend's activity machinery; dispatch performed outside one
//     runs the task function directly.
//
// # Available Implementations
//
// Two executor implementations ship with dispatch:
//
//   - temporal: durable execution backed by a Temporal cluster. Durability,
//     retries, task routing, and history are entirely the engine's.
//
//   - inmem: synchronous in-process execution for development and tests. No
//     durability and no replay semantics.
//
// # Usage
//
//	reg := dispatch.NewRegistry()
//	reg.RegisterWorkflow(dispatch.Workflow{Name: "greet", Handler: greet})
//
//	exec, _ := temporal.New(dispatch.DefaultConfig(), reg)
//	defer exec.Close()
//
//	var greeting string
//	err := exec.ExecuteWorkflow(ctx, "greet", []any{"world"}, &greeting)
package dispatch

import (
	"context"
	"time"
)

type (
	// Executor forwards workflow and task execution calls to an orchestration
	// backend. Implementations hold a shared client and a shared Registry; both
	// must be in place before any operation is attempted. A single Executor is
	// safe for concurrent use by multiple callers.
	Executor interface {
		// StartWorkflow launches the named registered workflow and returns a
		// handle to the running execution. When more than one positional
		// argument is supplied the arguments are packed into a single ordered
		// sequence passed as the workflow input. A workflow ID is generated
		// when none is supplied via options, and the task queue defaults from
		// the workflow definition and then the executor configuration.
		StartWorkflow(ctx context.Context, name string, args []any, opts ...StartOption) (Handle, error)

		// ExecuteWorkflow starts the named workflow and always waits for the
		// remote result, decoding it into result (a non-nil pointer, or nil to
		// discard the value).
		ExecuteWorkflow(ctx context.Context, name string, args []any, result any, opts ...StartOption) error

		// TerminateWorkflow resolves a handle for exactly the given workflow ID
		// and run ID and requests termination with the given reason.
		TerminateWorkflow(ctx context.Context, workflowID, runID, reason string) error

		// WrapAsActivity tags fn with a name so the backend runtime recognizes
		// it as a remotely invocable unit, and records it in the registry. It
		// is a marking operation only; no execution happens.
		WrapAsActivity(name string, fn any) (*Task, error)

		// ExecuteTask dispatches a task and blocks for its result. Inside a
		// workflow context the call is routed through the backend's activity
		// machinery; outside one the task function runs directly.
		ExecuteTask(ctx context.Context, task *Task, args []any, result any) error

		// ExecuteTaskAsync dispatches a task and returns a Future for its
		// pending result.
		ExecuteTaskAsync(ctx context.Context, task *Task, args []any) (Future, error)

		// Close releases resources owned by the executor. Clients injected by
		// the caller are shared, not owned, and are left open.
		Close() error
	}

	// Handle is an opaque reference to a running workflow execution. The
	// executor neither creates nor owns the execution's lifecycle beyond
	// issuing start and terminate calls.
	Handle interface {
		// ID returns the workflow identifier.
		ID() string

		// RunID returns the backend-assigned run identifier, when known.
		RunID() string

		// Result blocks until the workflow completes and decodes its result
		// into valuePtr. Pass nil to wait without decoding.
		Result(ctx context.Context, valuePtr any) error

		// Signal sends an asynchronous named payload to the workflow.
		Signal(ctx context.Context, name string, payload any) error

		// Terminate requests termination of the execution with a reason.
		Terminate(ctx context.Context, reason string) error

		// Cancel requests cooperative cancellation of the execution.
		Cancel(ctx context.Context) error
	}

	// Future represents a pending task result. Get may be called multiple
	// times and returns the same outcome on each call.
	Future interface {
		// Get blocks until the task completes and decodes the result into
		// valuePtr. Pass nil to wait without decoding.
		Get(ctx context.Context, valuePtr any) error

		// IsReady reports whether the task has completed and Get will not block.
		IsReady() bool
	}

	// Receiver delivers typed signal payloads to workflow code.
	Receiver interface {
		// Receive blocks until a signal arrives and decodes it into valuePtr.
		Receive(ctx context.Context, valuePtr any) error

		// ReceiveAsync attempts a non-blocking receive, reporting whether a
		// signal was delivered.
		ReceiveAsync(valuePtr any) bool
	}

	// WorkflowContext exposes executor operations to workflow handlers within
	// the backend's execution environment. Implementations wrap backend
	// contexts (Temporal workflow.Context, in-process contexts) behind a
	// uniform API. A WorkflowContext is bound to a single execution and must
	// not be shared across goroutines.
	WorkflowContext interface {
		// Context returns a Go context carrying this WorkflowContext, suitable
		// for passing to Executor task dispatch methods.
		Context() context.Context

		// WorkflowID returns the identifier of this execution.
		WorkflowID() string

		// RunID returns the backend-assigned run identifier.
		RunID() string

		// Now returns the current workflow time from a replay-safe source.
		Now() time.Time

		// ExecuteTask schedules the named task through the backend and blocks
		// until it completes, decoding the result into result.
		ExecuteTask(ctx context.Context, call TaskCall, result any) error

		// ExecuteTaskAsync schedules the named task and returns a Future so
		// handlers can run several tasks concurrently.
		ExecuteTaskAsync(ctx context.Context, call TaskCall) (Future, error)

		// Signals returns a receiver for the named signal channel.
		Signals(name string) Receiver
	}

	// TaskCall describes a single task invocation issued from workflow code.
	TaskCall struct {
		// Name identifies the registered task.
		Name string

		// Args are the positional arguments, in order.
		Args []any

		// Options overrides the task's registered defaults for this invocation.
		Options TaskOptions
	}

	// TaskOptions configures queue, timeout and retries for task dispatch.
	// Zero values defer to the backend defaults.
	TaskOptions struct {
		// Queue overrides the queue the task is scheduled on. Empty inherits
		// the workflow's queue.
		Queue string

		// Timeout bounds a single task execution. Zero means backend default.
		Timeout time.Duration

		// RetryPolicy controls retry behavior for this task. Retries are
		// performed by the backend, never by the executor.
		RetryPolicy RetryPolicy
	}

	// RetryPolicy defines retry semantics shared by workflows and tasks.
	// Zero-valued fields mean the backend uses its defaults.
	RetryPolicy struct {
		// MaxAttempts caps the total number of attempts. Zero means backend default.
		MaxAttempts int

		// InitialInterval is the delay before the first retry.
		InitialInterval time.Duration

		// BackoffCoefficient multiplies the delay after each retry.
		BackoffCoefficient float64
	}

	// StartOptions collects the resolved options for a workflow start call.
	StartOptions struct {
		// WorkflowID is the caller-supplied workflow identifier. Empty means
		// the executor generates one.
		WorkflowID string

		// TaskQueue overrides the queue the workflow is scheduled on.
		TaskQueue string

		// RunTimeout bounds the total workflow execution time at the backend.
		RunTimeout time.Duration

		// Memo stores small diagnostic payloads alongside the execution for
		// backends that persist them.
		Memo map[string]any

		// RetryPolicy controls backend restarts of the workflow.
		RetryPolicy RetryPolicy
	}

	// StartOption customizes a single workflow start call.
	StartOption func(*StartOptions)
)

// WithWorkflowID uses id verbatim instead of an auto-generated identifier.
func WithWorkflowID(id string) StartOption {
	return func(o *StartOptions) { o.WorkflowID = id }
}

// WithTaskQueue schedules the workflow on queue instead of the configured default.
func WithTaskQueue(queue string) StartOption {
	return func(o *StartOptions) { o.TaskQueue = queue }
}

// WithRunTimeout bounds the total workflow execution time at the backend.
func WithRunTimeout(d time.Duration) StartOption {
	return func(o *StartOptions) { o.RunTimeout = d }
}

// WithMemo attaches diagnostic metadata to the execution.
func WithMemo(memo map[string]any) StartOption {
	return func(o *StartOptions) { o.Memo = memo }
}

// WithRetryPolicy controls backend restarts of the workflow.
func WithRetryPolicy(p RetryPolicy) StartOption {
	return func(o *StartOptions) { o.RetryPolicy = p }
}

// BuildStartOptions folds opts into a StartOptions value. Executor
// implementations use this to resolve per-call settings.
func BuildStartOptions(opts ...StartOption) StartOptions {
	var o StartOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// PackArgs reduces positional workflow arguments to the single input value
// handed to the backend: nil for no arguments, the argument itself for exactly
// one, and an ordered sequence for more than one.
func PackArgs(args []any) any {
	switch len(args) {
	case 0:
		return nil
	case 1:
		return args[0]
	default:
		packed := make([]any, len(args))
		copy(packed, args)
		return packed
	}
}
