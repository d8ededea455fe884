package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

type (
	// Workflow binds a workflow handler to a logical name and default queue.
	// Definitions are registered once and looked up by name at start time.
	Workflow struct {
		// Name is the logical identifier registered with the backend.
		Name string

		// TaskQueue is the default queue used when starting this workflow.
		// Empty falls back to the executor configuration.
		TaskQueue string

		// Handler is the workflow entry point invoked by the backend.
		Handler WorkflowFunc

		// InputSchema optionally holds a JSON Schema document validated
		// against the workflow input before each start call. Nil disables
		// validation.
		InputSchema json.RawMessage
	}

	// WorkflowFunc is the workflow entry point. It receives the executor's
	// WorkflowContext and the start input, which is the single packed value
	// produced by PackArgs.
	WorkflowFunc func(wc WorkflowContext, input any) (any, error)

	// Registry is the application context shared with executors. It holds the
	// named workflow definitions and tasks an executor may launch. Safe for
	// concurrent use.
	Registry struct {
		mu        sync.RWMutex
		workflows map[string]*registeredWorkflow
		tasks     map[string]*Task
	}

	registeredWorkflow struct {
		def    Workflow
		schema *jsonschema.Schema
	}
)

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		workflows: make(map[string]*registeredWorkflow),
		tasks:     make(map[string]*Task),
	}
}

// RegisterWorkflow records a workflow definition under its name. The
// definition's input schema, when present, is compiled eagerly so malformed
// schemas fail at registration rather than at start time.
func (r *Registry) RegisterWorkflow(def Workflow) error {
	if def.Name == "" {
		return fmt.Errorf("workflow name is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("workflow %q: handler is required", def.Name)
	}
	var schema *jsonschema.Schema
	if len(def.InputSchema) > 0 {
		compiled, err := compileSchema(def.Name, def.InputSchema)
		if err != nil {
			return fmt.Errorf("workflow %q: %w", def.Name, err)
		}
		schema = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.workflows[def.Name]; dup {
		return fmt.Errorf("workflow %q: %w", def.Name, ErrWorkflowAlreadyRegistered)
	}
	r.workflows[def.Name] = &registeredWorkflow{def: def, schema: schema}
	return nil
}

// Workflow returns the definition registered under name.
func (r *Registry) Workflow(name string) (Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.workflows[name]
	if !ok {
		return Workflow{}, fmt.Errorf("workflow %q: %w", name, ErrWorkflowNotFound)
	}
	return reg.def, nil
}

// ValidateInput checks input against the named workflow's input schema.
// Workflows without a schema accept any input.
func (r *Registry) ValidateInput(name string, input any) error {
	r.mu.RLock()
	reg, ok := r.workflows[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("workflow %q: %w", name, ErrWorkflowNotFound)
	}
	if reg.schema == nil {
		return nil
	}
	// The schema library validates JSON-decoded values, so the input makes a
	// round trip through its serialized form first.
	data, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("workflow %q: input is not serializable: %w", name, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("workflow %q: input is not serializable: %w", name, err)
	}
	if err := reg.schema.Validate(doc); err != nil {
		return fmt.Errorf("workflow %q: input rejected by schema: %w", name, err)
	}
	return nil
}

// RegisterTask records a wrapped task under its name.
func (r *Registry) RegisterTask(t *Task) error {
	if t == nil {
		return fmt.Errorf("task is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tasks[t.Name()]; dup {
		return fmt.Errorf("task %q: %w", t.Name(), ErrTaskAlreadyRegistered)
	}
	r.tasks[t.Name()] = t
	return nil
}

// Task returns the task registered under name.
func (r *Registry) Task(name string) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[name]
	if !ok {
		return nil, fmt.Errorf("task %q: %w", name, ErrTaskNotFound)
	}
	return t, nil
}

// Tasks returns the registered tasks in no particular order. Executor
// implementations use this to register tasks with backend workers.
func (r *Registry) Tasks() []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tasks := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, t)
	}
	return tasks
}

// Workflows returns the registered workflow definitions in no particular order.
func (r *Registry) Workflows() []Workflow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Workflow, 0, len(r.workflows))
	for _, reg := range r.workflows {
		defs = append(defs, reg.def)
	}
	return defs
}

func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse input schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	url := name + "-input.schema.json"
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add input schema: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile input schema: %w", err)
	}
	return schema, nil
}
