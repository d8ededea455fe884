package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func noopHandler(wc WorkflowContext, input any) (any, error) { return nil, nil }

func TestRegistryWorkflowRegistration(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, reg.RegisterWorkflow(Workflow{Name: "sync", Handler: noopHandler}))

	def, err := reg.Workflow("sync")
	require.NoError(t, err)
	require.Equal(t, "sync", def.Name)

	err = reg.RegisterWorkflow(Workflow{Name: "sync", Handler: noopHandler})
	require.ErrorIs(t, err, ErrWorkflowAlreadyRegistered)

	_, err = reg.Workflow("absent")
	require.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestRegistryRejectsInvalidDefinitions(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.ErrorContains(t, reg.RegisterWorkflow(Workflow{Handler: noopHandler}), "name is required")
	require.ErrorContains(t, reg.RegisterWorkflow(Workflow{Name: "nohandler"}), "handler is required")
	require.ErrorContains(t, reg.RegisterWorkflow(Workflow{
		Name:        "badschema",
		Handler:     noopHandler,
		InputSchema: []byte(`{"type": 12}`),
	}), "schema")
}

func TestRegistryValidateInput(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, reg.RegisterWorkflow(Workflow{
		Name:    "typed",
		Handler: noopHandler,
		InputSchema: []byte(`{
			"type": "object",
			"required": ["name"],
			"properties": {"name": {"type": "string"}}
		}`),
	}))
	require.NoError(t, reg.RegisterWorkflow(Workflow{Name: "open", Handler: noopHandler}))

	require.NoError(t, reg.ValidateInput("typed", map[string]any{"name": "ok"}))
	require.ErrorContains(t, reg.ValidateInput("typed", map[string]any{"count": 3}), "rejected by schema")
	require.ErrorContains(t, reg.ValidateInput("typed", "not an object"), "rejected by schema")

	require.NoError(t, reg.ValidateInput("open", "anything"))
	require.NoError(t, reg.ValidateInput("open", nil))

	require.ErrorIs(t, reg.ValidateInput("absent", nil), ErrWorkflowNotFound)
}

func TestRegistryTaskRegistration(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	task, err := NewTask("noop", func() {})
	require.NoError(t, err)
	require.NoError(t, reg.RegisterTask(task))

	got, err := reg.Task("noop")
	require.NoError(t, err)
	require.Same(t, task, got)

	require.ErrorIs(t, reg.RegisterTask(task), ErrTaskAlreadyRegistered)

	_, err = reg.Task("absent")
	require.ErrorIs(t, err, ErrTaskNotFound)

	require.ErrorContains(t, reg.RegisterTask(nil), "required")
}

func TestRegistryEnumerations(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, reg.RegisterWorkflow(Workflow{Name: "a", Handler: noopHandler}))
	require.NoError(t, reg.RegisterWorkflow(Workflow{Name: "b", Handler: noopHandler}))
	ta, err := NewTask("ta", func() {})
	require.NoError(t, err)
	require.NoError(t, reg.RegisterTask(ta))

	require.Len(t, reg.Workflows(), 2)
	require.Len(t, reg.Tasks(), 1)
}
