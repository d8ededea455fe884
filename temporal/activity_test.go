package temporal

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/relaypoint/dispatch"
)

func TestWrappedTaskRunsAsActivity(t *testing.T) {
	exec := newTestExecutor(t, newFakeClient())
	task, err := exec.WrapAsActivity("double", func(n int) (int, error) { return n * 2, nil })
	require.NoError(t, err)

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestActivityEnvironment()
	env.RegisterActivityWithOptions(task.Func(), activity.RegisterOptions{Name: task.Name()})

	val, err := env.ExecuteActivity(task.Name(), 21)
	require.NoError(t, err)

	var got int
	require.NoError(t, val.Get(&got))
	require.Equal(t, 42, got)
}

func TestExecuteTaskInsideWorkflowRoutesThroughActivity(t *testing.T) {
	exec := newTestExecutor(t, newFakeClient())
	task, err := exec.WrapAsActivity("double", func(n int) (int, error) { return n * 2, nil })
	require.NoError(t, err)

	wf := func(ctx workflow.Context) (int, error) {
		wc := NewWorkflowContext(exec, ctx)
		var out int
		if err := exec.ExecuteTask(wc.Context(), task, []any{21}, &out); err != nil {
			return 0, err
		}
		return out, nil
	}

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivityWithOptions(task.Func(), activity.RegisterOptions{Name: task.Name()})
	env.ExecuteWorkflow(wf)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var got int
	require.NoError(t, env.GetWorkflowResult(&got))
	require.Equal(t, 42, got)
}

func TestExecuteTaskAsyncInsideWorkflowRunsConcurrently(t *testing.T) {
	exec := newTestExecutor(t, newFakeClient())
	task, err := exec.WrapAsActivity("add", func(a, b int) (int, error) { return a + b, nil })
	require.NoError(t, err)

	wf := func(ctx workflow.Context) (int, error) {
		wc := NewWorkflowContext(exec, ctx)
		first, err := wc.ExecuteTaskAsync(wc.Context(), dispatch.TaskCall{Name: "add", Args: []any{1, 2}})
		if err != nil {
			return 0, err
		}
		second, err := wc.ExecuteTaskAsync(wc.Context(), dispatch.TaskCall{Name: "add", Args: []any{3, 4}})
		if err != nil {
			return 0, err
		}
		var a, b int
		if err := first.Get(wc.Context(), &a); err != nil {
			return 0, err
		}
		if err := second.Get(wc.Context(), &b); err != nil {
			return 0, err
		}
		return a + b, nil
	}

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivityWithOptions(task.Func(), activity.RegisterOptions{Name: task.Name()})
	env.ExecuteWorkflow(wf)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var got int
	require.NoError(t, env.GetWorkflowResult(&got))
	require.Equal(t, 10, got)
}

func TestWorkflowSignalsDeliverPayloads(t *testing.T) {
	exec := newTestExecutor(t, newFakeClient())

	wf := func(ctx workflow.Context) (string, error) {
		wc := NewWorkflowContext(exec, ctx)
		var msg string
		if err := wc.Signals("resume").Receive(wc.Context(), &msg); err != nil {
			return "", err
		}
		return msg, nil
	}

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow("resume", "carry on")
	}, 0)
	env.ExecuteWorkflow(wf)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var got string
	require.NoError(t, env.GetWorkflowResult(&got))
	require.Equal(t, "carry on", got)
}

func TestWorkflowContextExposesExecutionIdentity(t *testing.T) {
	exec := newTestExecutor(t, newFakeClient())

	wf := func(ctx workflow.Context) (string, error) {
		wc := NewWorkflowContext(exec, ctx)
		if dispatch.WorkflowContextFrom(wc.Context()) == nil {
			return "", nil
		}
		return wc.WorkflowID(), nil
	}

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.ExecuteWorkflow(wf)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var got string
	require.NoError(t, env.GetWorkflowResult(&got))
	require.NotEmpty(t, got)
}
