package temporal

import (
	"context"
	"fmt"
	"sync"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/relaypoint/dispatch"
	"github.com/relaypoint/dispatch/telemetry"
)

// bindAll binds every registered workflow and task to the worker for its
// queue. Called once a raw client is available; registrations that arrive
// later bind individually.
func (e *Executor) bindAll() error {
	for _, def := range e.registry.Workflows() {
		if err := e.bindWorkflow(def); err != nil {
			return err
		}
	}
	for _, task := range e.registry.Tasks() {
		if err := e.bindTask(task); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) bindWorkflow(def dispatch.Workflow) error {
	queue := def.TaskQueue
	if queue == "" {
		queue = e.cfg.TaskQueue
	}
	bundle, err := e.workerForQueue(queue)
	if err != nil || bundle == nil {
		return err
	}
	bundle.registerWorkflow(def.Name, func(tctx workflow.Context, input any) (any, error) {
		wc := newWorkflowContext(e, tctx)
		return def.Handler(wc, input)
	})
	return nil
}

func (e *Executor) bindTask(task *dispatch.Task) error {
	queue := task.Defaults().Queue
	if queue == "" {
		queue = e.cfg.TaskQueue
	}
	bundle, err := e.workerForQueue(queue)
	if err != nil || bundle == nil {
		return err
	}
	bundle.registerTask(task)
	return nil
}

// workerForQueue returns the worker bundle for queue, creating it on first
// use. Worker management needs the raw Temporal client; with only a
// WorkflowClient injected (handle-only mode, e.g. test doubles) it returns
// nil and registrations stay registry-only.
func (e *Executor) workerForQueue(queue string) (*workerBundle, error) {
	if queue == "" {
		return nil, fmt.Errorf("temporal executor: no task queue configured")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.raw == nil {
		return nil, nil
	}
	if bundle, ok := e.workers[queue]; ok {
		return bundle, nil
	}

	inst, err := configureInstrumentation(e.inst)
	if err != nil {
		return nil, fmt.Errorf("temporal executor: %w", err)
	}
	workerOpts := e.workerOpts
	applyWorkerInstrumentation(&workerOpts, inst)

	bundle := &workerBundle{
		queue:      queue,
		worker:     worker.New(e.raw, queue, workerOpts),
		logger:     e.logger,
		registered: make(map[string]struct{}),
	}
	e.workers[queue] = bundle
	if e.workersStarted {
		bundle.start()
	}
	return bundle, nil
}

func (e *Executor) ensureWorkersStarted() {
	e.mu.Lock()
	if e.workersStarted {
		e.mu.Unlock()
		return
	}
	e.workersStarted = true
	bundles := make([]*workerBundle, 0, len(e.workers))
	for _, b := range e.workers {
		bundles = append(bundles, b)
	}
	e.mu.Unlock()
	for _, b := range bundles {
		b.start()
	}
}

// Worker returns a controller for the lifecycle of all workers managed by the
// executor. With auto-start active (the default) workers start on the first
// workflow start and the controller is optional.
func (e *Executor) Worker() *WorkerController {
	return &WorkerController{executor: e}
}

// WorkerController starts and stops the pollers for every task queue the
// executor manages. Controllers share executor state, so operations affect
// all workers globally.
type WorkerController struct {
	executor *Executor
}

// Start launches all registered workers. Workers created afterwards start as
// they are created.
func (c *WorkerController) Start() {
	c.executor.ensureWorkersStarted()
}

// Stop gracefully stops all workers managed by the executor.
func (c *WorkerController) Stop() {
	c.executor.mu.Lock()
	bundles := make([]*workerBundle, 0, len(c.executor.workers))
	for _, b := range c.executor.workers {
		bundles = append(bundles, b)
	}
	c.executor.mu.Unlock()

	for _, b := range bundles {
		b.stop()
	}
}

// workerBundle pairs a Temporal worker with its queue. Registration is
// deduplicated so rebinding after a lazy dial is harmless.
type workerBundle struct {
	queue  string
	worker worker.Worker
	logger telemetry.Logger

	startOnce sync.Once

	mu         sync.Mutex
	registered map[string]struct{}
}

func (b *workerBundle) registerWorkflow(name string, fn any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, done := b.registered["workflow/"+name]; done {
		return
	}
	b.registered["workflow/"+name] = struct{}{}
	b.worker.RegisterWorkflowWithOptions(fn, workflow.RegisterOptions{Name: name})
}

func (b *workerBundle) registerTask(t *dispatch.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, done := b.registered["task/"+t.Name()]; done {
		return
	}
	b.registered["task/"+t.Name()] = struct{}{}
	b.worker.RegisterActivityWithOptions(t.Func(), activity.RegisterOptions{Name: t.Name()})
}

func (b *workerBundle) start() {
	b.startOnce.Do(func() {
		go func() {
			if err := b.worker.Run(worker.InterruptCh()); err != nil {
				b.logger.Error(context.Background(), "temporal worker exited", "queue", b.queue, "err", err)
			}
		}()
	})
}

func (b *workerBundle) stop() {
	b.worker.Stop()
}
