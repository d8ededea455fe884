// Package temporal implements the dispatch executor on top of the Temporal
// Go SDK. The executor is a thin adapter: it translates dispatch calls into
// operations on a Temporal client and owns no scheduling, retry, or recovery
// logic. Durability, retries, task queues, and workflow history belong to the
// Temporal cluster.
package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/worker"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"

	"github.com/relaypoint/dispatch"
	"github.com/relaypoint/dispatch/telemetry"
)

// Executor implements dispatch.Executor backed by a Temporal cluster. It holds
// a shared WorkflowClient and a shared Registry; neither is owned and both
// must be in place before operations are attempted (the client may be dialed
// lazily from configuration via EnsureClient).
//
// Thread-safety: all methods are safe for concurrent use.
//
// Lifecycle: construct via New, register workflows and wrap tasks, then start
// workflows. Workers auto-start on first workflow start unless disabled; call
// Close during shutdown to release a client the executor dialed itself.
type Executor struct {
	cfg      dispatch.Config
	registry *dispatch.Registry

	logger  telemetry.Logger
	metrics telemetry.Metrics
	tracer  telemetry.Tracer

	inst              InstrumentationOptions
	dialOpts          []grpc.DialOption
	dataConverter     converter.DataConverter
	workerOpts        worker.Options
	autoStartDisabled bool
	limiter           *rate.Limiter

	mu             sync.Mutex
	client         WorkflowClient
	raw            client.Client
	ownsClient     bool
	workers        map[string]*workerBundle
	workersStarted bool
}

var _ dispatch.Executor = (*Executor)(nil)

// New constructs a Temporal executor from configuration and the shared
// registry. Without WithClient or WithTemporalClient the executor dials a
// lazy client from configuration on first use.
func New(cfg dispatch.Config, reg *dispatch.Registry, opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, fmt.Errorf("temporal executor: registry is required")
	}
	e := &Executor{
		cfg:      cfg,
		registry: reg,
		logger:   telemetry.NewNoopLogger(),
		metrics:  telemetry.NewNoopMetrics(),
		tracer:   telemetry.NewNoopTracer(),
		workers:  make(map[string]*workerBundle),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.raw != nil {
		if err := e.bindAll(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// EnsureClient returns the executor's client, dialing one from configuration
// when none has been injected or dialed yet. When a client is already set it
// is returned unchanged, with no side effect. Safe to call repeatedly.
func (e *Executor) EnsureClient(ctx context.Context) (WorkflowClient, error) {
	e.mu.Lock()
	if e.client != nil {
		cli := e.client
		e.mu.Unlock()
		return cli, nil
	}
	e.mu.Unlock()

	inst, err := configureInstrumentation(e.inst)
	if err != nil {
		return nil, fmt.Errorf("temporal executor: %w", err)
	}
	clientOpts := client.Options{
		HostPort:  e.cfg.HostPort,
		Namespace: e.cfg.Namespace,
	}
	if len(e.dialOpts) > 0 {
		clientOpts.ConnectionOptions = client.ConnectionOptions{DialOptions: e.dialOpts}
	}
	if e.dataConverter != nil {
		clientOpts.DataConverter = e.dataConverter
	}
	applyClientInstrumentation(&clientOpts, inst)

	raw, err := client.NewLazyClient(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("temporal executor: create client: %w", err)
	}

	e.mu.Lock()
	if e.client != nil {
		// Lost the dial race; keep the winner.
		cli := e.client
		e.mu.Unlock()
		raw.Close()
		return cli, nil
	}
	e.raw = raw
	e.client = Wrap(raw)
	e.ownsClient = true
	cli := e.client
	e.mu.Unlock()

	if err := e.bindAll(); err != nil {
		// Unwind so a later call does not observe a client with unbound
		// registrations.
		e.mu.Lock()
		e.raw = nil
		e.client = nil
		e.ownsClient = false
		e.workers = make(map[string]*workerBundle)
		e.mu.Unlock()
		raw.Close()
		return nil, err
	}
	e.logger.Info(ctx, "temporal client created", "host_port", e.cfg.HostPort, "namespace", e.cfg.Namespace)
	return cli, nil
}

// RegisterWorkflow records def in the registry and binds its handler to the
// worker for its task queue.
func (e *Executor) RegisterWorkflow(def dispatch.Workflow) error {
	if err := e.registry.RegisterWorkflow(def); err != nil {
		return err
	}
	return e.bindWorkflow(def)
}

// WrapAsActivity tags fn with name so the Temporal runtime recognizes it as
// an activity, records it in the registry, and registers it with the worker
// for the default task queue. No execution happens.
func (e *Executor) WrapAsActivity(name string, fn any) (*dispatch.Task, error) {
	task, err := dispatch.NewTask(name, fn)
	if err != nil {
		return nil, err
	}
	if err := e.registry.RegisterTask(task); err != nil {
		return nil, err
	}
	if err := e.bindTask(task); err != nil {
		return nil, err
	}
	return task, nil
}

// StartWorkflow looks up the named workflow definition, packs the positional
// arguments into a single input, fills in the workflow ID and task queue
// defaults, and issues the start call on the client. Any engine failure
// (connection refused, ID conflict) passes through untranslated.
func (e *Executor) StartWorkflow(ctx context.Context, name string, args []any, opts ...dispatch.StartOption) (dispatch.Handle, error) {
	ctx, span := e.tracer.Start(ctx, "dispatch.workflow.start",
		trace.WithAttributes(attribute.String("workflow", name)))
	defer span.End()

	h, err := e.startWorkflow(ctx, name, args, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return h, err
}

func (e *Executor) startWorkflow(ctx context.Context, name string, args []any, opts ...dispatch.StartOption) (dispatch.Handle, error) {
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
	queue := sopts.TaskQueue
	if queue == "" {
		queue = def.TaskQueue
	}
	if queue == "" {
		queue = e.cfg.TaskQueue
	}

	cli, err := e.EnsureClient(ctx)
	if err != nil {
		return nil, err
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if !e.autoStartDisabled {
		e.ensureWorkersStarted()
	}

	swo := client.StartWorkflowOptions{
		ID:                 id,
		TaskQueue:          queue,
		WorkflowRunTimeout: sopts.RunTimeout,
	}
	if len(sopts.Memo) > 0 {
		swo.Memo = sopts.Memo
	}
	if rp := convertRetryPolicy(sopts.RetryPolicy); rp != nil {
		swo.RetryPolicy = rp
	}

	var h dispatch.Handle
	if input == nil {
		h, err = cli.ExecuteWorkflow(ctx, swo, def.Name)
	} else {
		h, err = cli.ExecuteWorkflow(ctx, swo, def.Name, input)
	}
	if err != nil {
		return nil, err
	}
	e.metrics.IncCounter("dispatch.workflow.started", 1, "workflow", def.Name)
	e.logger.Debug(ctx, "workflow started", "workflow", def.Name, "workflow_id", h.ID(), "task_queue", queue)
	return h, nil
}

// ExecuteWorkflow starts the named workflow and always waits for its result,
// decoding it into result. The configured timeout bounds the wait.
func (e *Executor) ExecuteWorkflow(ctx context.Context, name string, args []any, result any, opts ...dispatch.StartOption) error {
	ctx, span := e.tracer.Start(ctx, "dispatch.workflow.execute",
		trace.WithAttributes(attribute.String("workflow", name)))
	defer span.End()

	h, err := e.StartWorkflow(ctx, name, args, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	waitCtx := ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	start := time.Now()
	err = h.Result(waitCtx, result)
	e.metrics.RecordTimer("dispatch.workflow.duration", time.Since(start), "workflow", name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// TerminateWorkflow resolves a handle for exactly the given workflow ID and
// run ID, then requests termination with the given reason. Engine refusals
// (not found, already completed) pass through untranslated.
func (e *Executor) TerminateWorkflow(ctx context.Context, workflowID, runID, reason string) error {
	cli, err := e.EnsureClient(ctx)
	if err != nil {
		return err
	}
	h := cli.GetWorkflowHandle(workflowID, runID)
	return h.Terminate(ctx, reason)
}

// SignalWorkflow delivers a named payload to a running execution.
func (e *Executor) SignalWorkflow(ctx context.Context, workflowID, runID, name string, payload any) error {
	cli, err := e.EnsureClient(ctx)
	if err != nil {
		return err
	}
	return cli.SignalWorkflow(ctx, workflowID, runID, name, payload)
}

// CancelWorkflow requests cooperative cancellation of a running execution.
func (e *Executor) CancelWorkflow(ctx context.Context, workflowID, runID string) error {
	cli, err := e.EnsureClient(ctx)
	if err != nil {
		return err
	}
	return cli.GetWorkflowHandle(workflowID, runID).Cancel(ctx)
}

// ExecuteTask dispatches a task and blocks for its result. Inside a workflow
// context the call is routed through Temporal's activity machinery; outside
// one the task function runs directly in the calling process.
func (e *Executor) ExecuteTask(ctx context.Context, task *dispatch.Task, args []any, result any) error {
	if task == nil {
		return fmt.Errorf("temporal executor: task is required")
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
		return nil, fmt.Errorf("temporal executor: task is required")
	}
	if wc := dispatch.WorkflowContextFrom(ctx); wc != nil {
		return wc.ExecuteTaskAsync(ctx, dispatch.TaskCall{Name: task.Name(), Args: args, Options: task.Defaults()})
	}
	return task.CallAsync(ctx, args), nil
}

// Close releases the client when the executor dialed it from configuration.
// Injected clients are shared, not owned, and are left open. Stop workers
// first via Worker().Stop() during graceful shutdown.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ownsClient && e.raw != nil {
		e.raw.Close()
		e.raw = nil
		e.client = nil
		e.ownsClient = false
	}
	return nil
}

// Config returns the executor's configuration value.
func (e *Executor) Config() dispatch.Config { return e.cfg }

// Registry returns the shared application registry.
func (e *Executor) Registry() *dispatch.Registry { return e.registry }
